package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Google's scopes for IMAP/SMTP access and the account email address.
const (
	ScopeMail          = "https://mail.google.com/"
	ScopeUserinfoEmail = "https://www.googleapis.com/auth/userinfo.email"

	DefaultUserinfoURL = "https://www.googleapis.com/userinfo/email"
)

// Config is the config structure.
type Config struct {
	Server   Server   `yaml:"server"`
	Auth     Auth     `yaml:"auth"`
	Database Database `yaml:"database"`
}

// Server is the server config.
type Server struct {
	Addr    string `yaml:"addr" env:"SERVER_ADDR" validate:"required"`
	BaseURL string `yaml:"base_url" env:"SERVER_BASE_URL" validate:"required,url"`
	// SecureCookies marks session and flow cookies Secure. Turn on behind HTTPS.
	SecureCookies bool `yaml:"secure_cookies" env:"SERVER_SECURE_COOKIES"`
}

// Auth is the OAuth client config.
type Auth struct {
	// Issuer enables OIDC discovery when set. Empty means Google's fixed endpoints.
	Issuer       string        `yaml:"issuer" env:"OAUTH_ISSUER" validate:"omitempty,url"`
	ClientID     string        `yaml:"client_id" env:"OAUTH_CLIENT_ID" validate:"required"`
	ClientSecret string        `yaml:"client_secret" env:"OAUTH_CLIENT_SECRET"`
	RedirectURL  string        `yaml:"redirect_url" env:"OAUTH_REDIRECT_URL" validate:"omitempty,url"` // Optional: if not set, auto-constructed from server.base_url
	UserinfoURL  string        `yaml:"userinfo_url" env:"OAUTH_USERINFO_URL" validate:"omitempty,url"`
	Scopes       []string      `yaml:"scopes" env:"OAUTH_SCOPES" envSeparator:"," validate:"min=1"`
	StateTTL     time.Duration `yaml:"state_ttl" env:"OAUTH_STATE_TTL" validate:"gt=0"`
	FlowTTL      time.Duration `yaml:"flow_ttl" env:"OAUTH_FLOW_TTL" validate:"gt=0"`
}

// Database is the sqlite config.
type Database struct {
	Path string `yaml:"path" env:"DATABASE_PATH" validate:"required"`
}

// GetRedirectURL returns the OAuth callback URL
// If RedirectURL is explicitly configured, use it
// Otherwise, construct from server base_url + hardcoded callback path
func (a *Auth) GetRedirectURL(serverBaseURL string) string {
	if a.RedirectURL != "" {
		return a.RedirectURL
	}
	return serverBaseURL + "/auth/callback"
}

// Load loads config from file, then a .env file if present, then env vars.
// A missing config file is not an error: defaults and env vars still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// Override from env vars if present
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the config used when nothing is configured.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:    ":8080",
			BaseURL: "http://localhost:8080",
		},
		Auth: Auth{
			UserinfoURL: DefaultUserinfoURL,
			Scopes:      []string{ScopeMail, ScopeUserinfoEmail},
			StateTTL:    10 * time.Minute,
			FlowTTL:     30 * time.Minute,
		},
		Database: Database{
			Path: "data/quickmail.db",
		},
	}
}

// Validate checks the config against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
