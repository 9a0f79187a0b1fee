package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/datavault/datavault/internal/audit"
	"github.com/datavault/datavault/internal/auth"
	"github.com/datavault/datavault/internal/config"
	"github.com/datavault/datavault/internal/fieldcipher"
	"github.com/datavault/datavault/internal/handlers/api"
	"github.com/datavault/datavault/internal/mail"
	"github.com/datavault/datavault/internal/middlewares"
	"github.com/datavault/datavault/internal/middlewares/sessions"
	"github.com/datavault/datavault/internal/oauth"
	"github.com/datavault/datavault/internal/passkeys"
	"github.com/datavault/datavault/internal/render"
	"github.com/datavault/datavault/internal/store"
	"github.com/datavault/datavault/internal/users"
	"github.com/datavault/datavault/internal/vault"
	"github.com/datavault/datavault/model"
	"github.com/datavault/datavault/params"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "datavault - personal data vault server"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if dbConfig.ReplicaDsn != "" {
		err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{mysql.Open(dbConfig.ReplicaDsn)},
		}))
		if err != nil {
			slog.Error("Failed to register read replica", "error", err)
			os.Exit(1)
		}
	}

	sqlDB, err := db.DB()
	if err == nil {
		if dbConfig.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
		}
		if dbConfig.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
		}
		if dbConfig.ConnMaxIdleTime > 0 {
			sqlDB.SetConnMaxIdleTime(time.Duration(dbConfig.ConnMaxIdleTime) * time.Second)
		}
		if dbConfig.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)
		}
	}

	if err := db.AutoMigrate(model.Models...); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	return db
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

func mustInitMailSender(mailCfg config.MailConfig) mail.MailSender {
	if mailCfg.Backend == "" {
		return nil
	}
	if mailCfg.Backend == "smtp" {
		from := mailCfg.From
		if from == "" {
			from = mailCfg.SMTP.From
		}
		sender, err := mail.NewSMTPMailSender(mail.SMTPConfig{
			Host:     mailCfg.SMTP.Host,
			Port:     mailCfg.SMTP.Port,
			Username: mailCfg.SMTP.Username,
			Password: mailCfg.SMTP.Password,
			TLS:      mailCfg.SMTP.TLS,
			CertFile: mailCfg.SMTP.CertFile,
			KeyFile:  mailCfg.SMTP.KeyFile,
			CAFile:   mailCfg.SMTP.CAFile,
		}, from)
		if err != nil {
			slog.Error("Failed to initialize SMTP mail sender", "error", err)
			os.Exit(1)
		}
		return sender
	}
	slog.Error("Unsupported mail sender backend", "backend", mailCfg.Backend)
	os.Exit(1)
	return nil
}

func mustInitOAuthProviders(cfg *config.Config) []oauth.OAuthProvider {
	var providers []oauth.OAuthProvider
	for providerName, providerCfg := range cfg.AuthProviders.OAuth {
		callbackURL, _ := url.JoinPath(cfg.BaseURL, "oauth", providerName, "callback")
		switch providerName {
		case "google":
			provider := oauth.NewGoogleOAuthProvider(callbackURL, providerCfg.ClientID, providerCfg.ClientSecret)
			providers = append(providers, provider)
		default:
			slog.Error("Unsupported OAuth provider", "provider", providerName)
			os.Exit(1)
		}
	}
	return providers
}

func mustInitWebAuthn(waCfg config.WebAuthnConfig) *webauthn.WebAuthn {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          waCfg.RPID,
		RPDisplayName: waCfg.RPDisplayName,
		RPOrigins:     waCfg.RPOrigins,
	})
	if err != nil {
		slog.Error("Failed to initialize WebAuthn", "error", err)
		os.Exit(1)
	}
	return wa
}

// mailAlertSender bridges passkey security events to alert mail. Delivery is
// fire-and-forget so a slow SMTP server never stalls a ceremony.
type mailAlertSender struct {
	sender mail.MailSender
}

func (a *mailAlertSender) PasskeyRegistered(user *model.User, cred *model.Credential) {
	go func() {
		if err := mail.SendNewPasskeyAlert(a.sender, user.Email, user.DisplayName, cred.DeviceLabel, cred.CreatedAt); err != nil {
			slog.Warn("Failed to send new passkey alert", "user", user.ID, "error", err)
		}
	}()
}

func (a *mailAlertSender) FailedBiometricAttempts(user *model.User, count int64) {
	go func() {
		if err := mail.SendFailedAttemptsAlert(a.sender, user.Email, user.DisplayName, count); err != nil {
			slog.Warn("Failed to send failed attempts alert", "user", user.ID, "error", err)
		}
	}()
}

func setupAPIRoutes(
	router fiber.Router,
	sessionConfig sessions.Config,
	userService *users.UserService,
	passkeyService *passkeys.Service,
	vaultService *vault.Service,
	tokenIssuer *auth.TokenIssuer,
	oauthProviders []oauth.OAuthProvider,
) {
	var (
		authHandler         = api.NewAuthHandler(userService, tokenIssuer)
		oauthHandler        = api.NewOAuthHandler(userService, oauthProviders)
		passkeyHandler      = api.NewPasskeyHandler(passkeyService, userService, tokenIssuer)
		vaultHandler        = api.NewVaultHandler(vaultService)
		profileHandler      = api.NewProfileHandler(userService)
		securityLogsHandler = api.NewSecurityLogsHandler()
	)

	router.Use(sessions.New(sessionConfig))

	router.Post("/api/register", authHandler.PostRegister)
	router.Post("/api/login", authHandler.PostLogin)
	router.Post("/api/logout", authHandler.PostLogout)
	router.Get("/oauth/:provider", oauthHandler.GetOAuthRedirect)
	router.Get("/oauth/:provider/callback", oauthHandler.GetOAuthCallback)
	router.Post("/api/passkeys/login/begin", passkeyHandler.PostLoginBegin)
	router.Post("/api/passkeys/login/finish", passkeyHandler.PostLoginFinish)

	authed := router.Group("", api.RequireAuth(userService, tokenIssuer))
	authed.Post("/api/passkeys/register/begin", passkeyHandler.PostRegisterBegin)
	authed.Post("/api/passkeys/register/finish", passkeyHandler.PostRegisterFinish)
	authed.Get("/api/passkeys", passkeyHandler.GetCredentials)
	authed.Delete("/api/passkeys/:id", passkeyHandler.DeleteCredential)
	authed.Delete("/api/passkeys", passkeyHandler.DeleteAllCredentials)
	authed.Get("/api/profile", profileHandler.GetProfile)
	authed.Put("/api/profile/settings", profileHandler.PutSettings)
	authed.Get("/api/vault/cards", vaultHandler.GetCards)
	authed.Post("/api/vault/cards", vaultHandler.PostCard)
	authed.Get("/api/vault/cards/:id", vaultHandler.GetCard)
	authed.Put("/api/vault/cards/:id", vaultHandler.PutCard)
	authed.Delete("/api/vault/cards/:id", vaultHandler.DeleteCard)
	authed.Get("/api/vault/contacts", vaultHandler.GetContacts)
	authed.Post("/api/vault/contacts", vaultHandler.PostContact)
	authed.Get("/api/vault/contacts/:id", vaultHandler.GetContact)
	authed.Put("/api/vault/contacts/:id", vaultHandler.PutContact)
	authed.Delete("/api/vault/contacts/:id", vaultHandler.DeleteContact)
	authed.Get("/api/security-logs", securityLogsHandler.GetSecurityLogs)
}

func run(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(cfg.Debug || ctx.IsSet(debugFlag.Name))

	globalVars := map[string]interface{}{
		"siteName": cfg.SiteName,
		"baseURL":  cfg.BaseURL,
	}
	if err := render.Initialize(globalVars, cfg.TemplateDir); err != nil {
		slog.Error("Failed to initialize templates", "error", err)
		return err
	}

	mailSender := mustInitMailSender(cfg.Mail)
	db := mustInitDatabase(cfg.MySQL)
	redisStorage := mustInitRedisStorage(cfg.Redis)
	cacheStorage := store.NewRedisStorage(redisStorage.Conn())

	cipher, err := fieldcipher.New(cfg.MasterSecret)
	if err != nil {
		slog.Error("Failed to initialize field cipher", "error", err)
		return err
	}

	// repositories
	var (
		userRepo       = users.NewUserRepository(db)
		authMethodRepo = users.NewAuthMethodRepository(db)
		credRepo       = passkeys.NewCredentialRepository(db)
		cardRepo       = vault.NewCardRepository(db)
		contactRepo    = vault.NewContactRepository(db)
		auditRepo      = audit.NewAuditEventRepository(db)
	)
	audit.Initialize(auditRepo)

	var alerts passkeys.AlertSender
	if mailSender != nil {
		alerts = &mailAlertSender{sender: mailSender}
	}

	// services
	var (
		userService    = users.NewUserService(userRepo, authMethodRepo)
		tokenIssuer    = auth.NewTokenIssuer(cfg.MasterSecret)
		vaultService   = vault.NewService(cipher, cardRepo, contactRepo)
		passkeyService = passkeys.NewService(
			mustInitWebAuthn(cfg.WebAuthn), db, cacheStorage,
			credRepo, userRepo, authMethodRepo, cfg.MasterSecret, alerts,
		)
	)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowOrigins, ", "),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	setupAPIRoutes(
		router,
		sessions.Config{
			Storage:        redisStorage,
			SessionMaxAge:  cfg.Session.SessionMaxAge,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieHttpOnly: cfg.Session.CookieHttpOnly,
			CookieName:     cfg.Session.CookieName,
		},
		userService,
		passkeyService,
		vaultService,
		tokenIssuer,
		mustInitOAuthProviders(cfg),
	)

	go startHealthCheckServer(params.HealthCheckServerAddr, redisStorage.Conn(), db)
	return router.Listen(cfg.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
