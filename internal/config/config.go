// config.go

// Environment variable loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MGallo-Code/authgate/internal/oauth"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all configuration for the gateway.
type Config struct {
	RedisURL       string
	DatabaseURL    string // optional; empty disables the login audit trail
	Port           string
	LogLevel       slog.Level
	SessionBackend string

	// OAuthRedirectURL is this gateway's callback, registered with every provider.
	OAuthRedirectURL string
	AfterLoginURL    string
	AfterLogoutURL   string

	// HTTPTimeout bounds each token, revoke, introspect and JWKS call. Default 5s.
	HTTPTimeout time.Duration
	// JWKSCacheTTL caches key sets per provider. Default 0: fetch on every verification.
	JWKSCacheTTL time.Duration
	// SessionTTL is how long an idle session lives. Default 2h.
	SessionTTL time.Duration

	ProvidersFile string
	// Providers with credentials present in the environment. Entries with
	// Discover set still need oauth.Discover before use.
	Providers []Provider
}

// Provider is one entry of the providers file with its credentials filled in.
type Provider struct {
	oauth.Config
	// Discover fills missing endpoints from the issuer's discovery document at startup.
	Discover bool
}

// providerEntry is the on-disk shape of one provider.
type providerEntry struct {
	ID            string   `yaml:"id"`
	Type          string   `yaml:"type"` // "oidc" or "oauth2"
	AuthURL       string   `yaml:"auth_url"`
	TokenURL      string   `yaml:"token_url"`
	RevokeURL     string   `yaml:"revoke_url"`
	IntrospectURL string   `yaml:"introspect_url"`
	JWKSURL       string   `yaml:"jwks_url"`
	Issuer        string   `yaml:"issuer"`
	Discover      bool     `yaml:"discover"`
	Scopes        []string `yaml:"scopes"`
}

type providersFile struct {
	Providers []providerEntry `yaml:"providers"`
}

// LoadConfig reads .env (if present) and environment variables, then the providers file.
// Returns an error if required variables are missing or no provider is usable.
func LoadConfig() (*Config, error) {
	// .env is a dev convenience; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{}

	cfg.SessionBackend = strings.ToLower(os.Getenv("SESSION_BACKEND"))
	if cfg.SessionBackend == "" {
		cfg.SessionBackend = BackendRedis
	}
	switch cfg.SessionBackend {
	case BackendRedis:
		cfg.RedisURL = os.Getenv("REDIS_URL")
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required")
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("SESSION_BACKEND must be %q or %q", BackendRedis, BackendMemory)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.OAuthRedirectURL = os.Getenv("OAUTH_REDIRECT_URL")
	if cfg.OAuthRedirectURL == "" {
		return nil, fmt.Errorf("OAUTH_REDIRECT_URL is required")
	}
	cfg.AfterLoginURL = os.Getenv("AFTER_LOGIN_URL")
	if cfg.AfterLoginURL == "" {
		return nil, fmt.Errorf("AFTER_LOGIN_URL is required")
	}
	cfg.AfterLogoutURL = os.Getenv("AFTER_LOGOUT_URL")
	if cfg.AfterLogoutURL == "" {
		cfg.AfterLogoutURL = cfg.AfterLoginURL
	}

	// Attempt to get port num, default to 7865
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "7865"
	}

	// Parse log level, default to info
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	cfg.HTTPTimeout = envDuration("HTTP_TIMEOUT", oauth.DefaultHTTPTimeout)
	cfg.SessionTTL = envDuration("SESSION_TTL", 2*time.Hour)
	// 0 is meaningful here (no cache), so envDuration's positive-only rule doesn't fit
	if v := os.Getenv("JWKS_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			slog.Warn("invalid env var, using default", "key", "JWKS_CACHE_TTL", "value", v, "default", 0)
		} else {
			cfg.JWKSCacheTTL = d
		}
	}

	cfg.ProvidersFile = os.Getenv("PROVIDERS_FILE")
	if cfg.ProvidersFile == "" {
		cfg.ProvidersFile = "providers.yaml"
	}
	raw, err := os.ReadFile(cfg.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("reading providers file: %w", err)
	}
	cfg.Providers, err = ParseProviders(raw, cfg.OAuthRedirectURL, cfg.HTTPTimeout)
	if err != nil {
		return nil, err
	}
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no provider in %s has credentials set", cfg.ProvidersFile)
	}

	return cfg, nil
}

// ParseProviders decodes a providers file and attaches credentials from
// <ID>_CLIENT_ID and <ID>_CLIENT_SECRET. Providers without both are skipped
// with an error log so one missing secret doesn't take the whole gateway down.
func ParseProviders(raw []byte, redirectURL string, timeout time.Duration) ([]Provider, error) {
	var file providersFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing providers file: %w", err)
	}

	seen := make(map[string]bool, len(file.Providers))
	out := make([]Provider, 0, len(file.Providers))
	for i, e := range file.Providers {
		if e.ID == "" {
			return nil, fmt.Errorf("providers[%d]: id is required", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("providers[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true

		capability, err := parseType(e.Type)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", e.ID, err)
		}
		// Discovery reads an OpenID Connect document, so it only makes sense for oidc
		if e.Discover {
			if e.Type != "" && capability != oauth.CapabilityOIDC {
				return nil, fmt.Errorf("provider %s: discover requires type oidc, got %q", e.ID, e.Type)
			}
			capability = oauth.CapabilityOIDC
		}

		idKey, secretKey := credentialKeys(e.ID)
		clientID, secret := os.Getenv(idKey), os.Getenv(secretKey)
		if clientID == "" || secret == "" {
			slog.Error("provider credentials missing from environment, skipping provider",
				"provider", e.ID, "client_id_key", idKey, "client_secret_key", secretKey)
			continue
		}

		p := Provider{
			Config: oauth.Config{
				ID:            oauth.ProviderID(e.ID),
				Capability:    capability,
				ClientID:      clientID,
				ClientSecret:  oauth.Secret(secret),
				AuthURL:       e.AuthURL,
				TokenURL:      e.TokenURL,
				RevokeURL:     e.RevokeURL,
				IntrospectURL: e.IntrospectURL,
				JWKSURL:       e.JWKSURL,
				Issuer:        e.Issuer,
				RedirectURL:   redirectURL,
				Scopes:        e.Scopes,
				HTTPTimeout:   timeout,
			},
			Discover: e.Discover,
		}
		if p.Discover {
			if p.Issuer == "" {
				return nil, fmt.Errorf("provider %s: discover needs an issuer", e.ID)
			}
		} else if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parseType(t string) (oauth.Capability, error) {
	switch strings.ToLower(t) {
	case "oidc":
		return oauth.CapabilityOIDC, nil
	case "oauth2", "":
		return oauth.CapabilityOpaque, nil
	default:
		return 0, fmt.Errorf("type must be oidc or oauth2, got %q", t)
	}
}

// credentialKeys maps a provider id to its env var names: "my-idp" -> MY_IDP_CLIENT_ID.
func credentialKeys(id string) (string, string) {
	prefix := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, id)
	return prefix + "_CLIENT_ID", prefix + "_CLIENT_SECRET"
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
