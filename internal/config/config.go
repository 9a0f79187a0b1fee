package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/datavault/datavault/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr   = ":3000"
	DefaultCookieMaxAge = 7 * 24 * time.Hour
)

type MySQLConfig struct {
	Dsn             string `mapstructure:"dsn"`
	ReplicaDsn      string `mapstructure:"replicaDsn"` // optional read replica
	TablePrefix     string `mapstructure:"tablePrefix"`
	MaxIdleConns    int    `mapstructure:"maxIdleConns"`
	MaxOpenConns    int    `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int    `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int    `mapstructure:"connMaxLifetime"`
}

type SessionConfig struct {
	SessionMaxAge  time.Duration `mapstructure:"sessionMaxAge"`
	CookieName     string        `mapstructure:"cookieName"`
	CookieHttpOnly bool          `mapstructure:"cookieHttpOnly"`
	CookieSecure   bool          `mapstructure:"cookieSecure"`
}

type WebAuthnConfig struct {
	RPID          string   `mapstructure:"rpID"`          // relying party id, the origin host
	RPDisplayName string   `mapstructure:"rpDisplayName"` // shown on the platform prompt
	RPOrigins     []string `mapstructure:"rpOrigins"`
}

type OAuthProviderConfig struct {
	ClientID     string   `mapstructure:"clientID"`
	ClientSecret string   `mapstructure:"clientSecret"`
	Scope        []string `mapstructure:"scope"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	TLS      bool   `mapstructure:"tls"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
}

type MailConfig struct {
	Backend string     `mapstructure:"backend"` // empty disables alert mail
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type Config struct {
	Debug         bool           `mapstructure:"debug"`
	SiteName      string         `mapstructure:"siteName"`
	BaseURL       string         `mapstructure:"baseURL"`
	MasterSecret  string         `mapstructure:"masterSecret"` // field-key derivation + token signing
	ListenAddr    string         `mapstructure:"listenAddr"`
	TemplateDir   string         `mapstructure:"templateDir"`
	AllowOrigins  []string       `mapstructure:"allowOrigins"`
	Redis         RedisConfig    `mapstructure:"redis"`
	Session       SessionConfig  `mapstructure:"session"`
	Mail          MailConfig     `mapstructure:"mail"`
	MySQL         MySQLConfig    `mapstructure:"mysql"`
	WebAuthn      WebAuthnConfig `mapstructure:"webauthn"`
	AuthProviders struct {
		OAuth map[string]OAuthProviderConfig `mapstructure:"oauth"`
	} `mapstructure:"authProviders"`
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Session.SessionMaxAge == 0 {
		c.Session.SessionMaxAge = DefaultCookieMaxAge
	}
	if len(c.MasterSecret) < params.MinMasterSecretLength {
		return fmt.Errorf("masterSecret must be at least %d characters", params.MinMasterSecretLength)
	}
	if c.WebAuthn.RPID == "" {
		return fmt.Errorf("webauthn.rpID is required")
	}
	if c.WebAuthn.RPDisplayName == "" {
		c.WebAuthn.RPDisplayName = c.SiteName
	}
	if len(c.WebAuthn.RPOrigins) == 0 && c.BaseURL != "" {
		c.WebAuthn.RPOrigins = []string{c.BaseURL}
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	viper.SetConfigFile(filename)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
