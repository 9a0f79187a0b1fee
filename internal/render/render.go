package render

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/valyala/bytebufferpool"
)

//go:embed templates/mail/*.html
var embedFS embed.FS

var (
	embedded    *template.Template
	templateDir string
	globalVars  map[string]interface{}
)

// Initialize parses the embedded templates and optionally records a
// directory whose files override them. gVars are merged into every render.
func Initialize(gVars map[string]interface{}, tmplDir string) error {
	globalVars = gVars
	if tmplDir != "" {
		info, err := os.Stat(tmplDir)
		if err != nil {
			return fmt.Errorf("template directory does not exist: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("template path is not a directory: %s", tmplDir)
		}
		templateDir = tmplDir
	}
	return parseEmbedded()
}

// parseEmbedded registers each embedded template under its path relative to
// templates/, e.g. "mail/new-passkey.html".
func parseEmbedded() error {
	root := template.New("")
	err := fs.WalkDir(embedFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return err
		}
		content, err := embedFS.ReadFile(path)
		if err != nil {
			return err
		}
		name := strings.TrimPrefix(path, "templates/")
		_, err = root.New(name).Parse(string(content))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to parse embedded templates: %w", err)
	}
	embedded = root
	return nil
}

// renderFromDir renders templateName from the override directory. The second
// return reports whether the override produced output.
func renderFromDir(templateName string, vars map[string]interface{}) (string, bool) {
	contents, err := os.ReadFile(filepath.Join(templateDir, templateName))
	if err != nil {
		return "", false
	}
	t, err := template.New(templateName).Parse(string(contents))
	if err != nil {
		slog.Warn("Failed to parse template override, falling back to embedded",
			"template", templateName, "error", err)
		return "", false
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := t.Execute(buf, vars); err != nil {
		slog.Warn("Failed to render template override, falling back to embedded",
			"template", templateName, "error", err)
		return "", false
	}
	return buf.String(), true
}

// RenderHTML renders the named template with vars layered over the global
// vars. A ".html" suffix is implied when missing.
func RenderHTML(templateName string, vars map[string]interface{}) (string, error) {
	merged := make(map[string]interface{}, len(globalVars)+len(vars))
	for k, v := range globalVars {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}

	if !strings.HasSuffix(templateName, ".html") {
		templateName += ".html"
	}

	if templateDir != "" {
		if out, ok := renderFromDir(templateName, merged); ok {
			return out, nil
		}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := embedded.ExecuteTemplate(buf, templateName, merged); err != nil {
		return "", err
	}
	return buf.String(), nil
}
