package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resetRenderState clears globals between tests to avoid cross-test interference.
func resetRenderState() {
	globalVars = nil
	templateDir = ""
	embedded = nil
}

func TestRenderHTML_EmbeddedOnly(t *testing.T) {
	resetRenderState()
	if err := Initialize(map[string]interface{}{"siteName": "DataVault"}, ""); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	out, err := RenderHTML("mail/new-passkey.html", map[string]interface{}{
		"displayName":  "Alice",
		"deviceLabel":  "MacBook Touch ID",
		"registeredAt": "2025-01-01 10:00",
	})
	if err != nil {
		t.Fatalf("RenderHTML returned error: %v", err)
	}
	if !strings.Contains(out, "DataVault") || !strings.Contains(out, "MacBook Touch ID") {
		t.Fatalf("rendered output missing expected variables: %q", out)
	}
}

func TestRenderHTML_DirOverridesEmbedded(t *testing.T) {
	resetRenderState()
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "mail")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}

	content := "OVERRIDE_NEW_PASSKEY"
	path := filepath.Join(subDir, "new-passkey.html")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp template: %v", err)
	}

	if err := Initialize(map[string]interface{}{}, tmpDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	out, err := RenderHTML("mail/new-passkey.html", nil)
	if err != nil {
		t.Fatalf("RenderHTML returned error: %v", err)
	}
	if out != content {
		t.Fatalf("expected overridden content %q, got %q", content, out)
	}
}

func TestRenderHTML_FallbackOnDiskFailure(t *testing.T) {
	resetRenderState()
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "mail")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}

	broken := "{{ ." // invalid template syntax forces the embedded fallback
	path := filepath.Join(subDir, "failed-attempts.html")
	if err := os.WriteFile(path, []byte(broken), 0o644); err != nil {
		t.Fatalf("failed to write broken temp template: %v", err)
	}

	if err := Initialize(map[string]interface{}{}, tmpDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	out, err := RenderHTML("mail/failed-attempts", nil)
	if err != nil {
		t.Fatalf("RenderHTML should have fallen back to embedded template, got error: %v", err)
	}
	if out == "" {
		t.Fatalf("expected non-empty HTML from embedded fallback")
	}
}
