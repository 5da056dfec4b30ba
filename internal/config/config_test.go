package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MGallo-Code/authgate/internal/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providersYAML = `
providers:
  - id: google
    type: oidc
    auth_url: https://accounts.google.com/o/oauth2/v2/auth
    token_url: https://oauth2.googleapis.com/token
    revoke_url: https://oauth2.googleapis.com/revoke
    jwks_url: https://www.googleapis.com/oauth2/v3/certs
    issuer: https://accounts.google.com
    scopes: [openid, email, profile]
  - id: fusion
    type: oidc
    issuer: https://auth.example.com
    discover: true
  - id: github
    type: oauth2
    auth_url: https://github.com/login/oauth/authorize
    token_url: https://github.com/login/oauth/access_token
    scopes: ["read:user"]
`

// setRequired sets the minimum env for a valid config, with google and github credentials.
func setRequired(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(providersYAML), 0o600))

	t.Setenv("PROVIDERS_FILE", path)
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SESSION_BACKEND", "")
	t.Setenv("OAUTH_REDIRECT_URL", "https://gw.example.com/api/v1/oauth-redirect")
	t.Setenv("AFTER_LOGIN_URL", "https://app.example.com/")
	t.Setenv("AFTER_LOGOUT_URL", "")
	t.Setenv("GOOGLE_CLIENT_ID", "g-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "g-secret")
	t.Setenv("GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "gh-secret")
	t.Setenv("FUSION_CLIENT_ID", "")
	t.Setenv("FUSION_CLIENT_SECRET", "")
}

// --- LoadConfig ---

func TestLoadConfig(t *testing.T) {
	t.Run("returns valid config with all required vars", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, BackendRedis, cfg.SessionBackend)
		assert.Equal(t, "7865", cfg.Port)
		assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
		assert.Zero(t, cfg.JWKSCacheTTL, "keys are fetched per verification unless a TTL is set")
		assert.Equal(t, cfg.AfterLoginURL, cfg.AfterLogoutURL, "logout redirect defaults to after-login URL")
	})

	t.Run("skips providers without credentials", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)
		var ids []oauth.ProviderID
		for _, p := range cfg.Providers {
			ids = append(ids, p.ID)
		}
		assert.Equal(t, []oauth.ProviderID{oauth.ProviderGoogle, oauth.ProviderGitHub}, ids)
	})

	t.Run("attaches credentials and redirect url", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)
		g := cfg.Providers[0]
		assert.Equal(t, "g-id", g.ClientID)
		assert.Equal(t, "g-secret", g.ClientSecret.Reveal())
		assert.Equal(t, oauth.CapabilityOIDC, g.Capability)
		assert.Equal(t, cfg.OAuthRedirectURL, g.RedirectURL)
		assert.Equal(t, []string{"openid", "email", "profile"}, g.Scopes)
		assert.Equal(t, oauth.CapabilityOpaque, cfg.Providers[1].Capability)
	})

	t.Run("errors when REDIS_URL is missing", func(t *testing.T) {
		setRequired(t)
		t.Setenv("REDIS_URL", "")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("memory backend needs no REDIS_URL", func(t *testing.T) {
		setRequired(t)
		t.Setenv("REDIS_URL", "")
		t.Setenv("SESSION_BACKEND", "memory")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, BackendMemory, cfg.SessionBackend)
	})

	t.Run("rejects unknown session backend", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SESSION_BACKEND", "memcached")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	for _, key := range []string{"OAUTH_REDIRECT_URL", "AFTER_LOGIN_URL"} {
		t.Run("errors when "+key+" is missing", func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "")

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}

	t.Run("errors when providers file is missing", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PROVIDERS_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("errors when no provider has credentials", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GOOGLE_CLIENT_ID", "")
		t.Setenv("GITHUB_CLIENT_SECRET", "")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("durations", func(t *testing.T) {
		setRequired(t)
		t.Setenv("HTTP_TIMEOUT", "3s")
		t.Setenv("SESSION_TTL", "bogus")
		t.Setenv("JWKS_CACHE_TTL", "10m")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, 2*time.Hour, cfg.SessionTTL, "invalid value falls back to default")
		assert.Equal(t, 10*time.Minute, cfg.JWKSCacheTTL)
	})

	t.Run("JWKS_CACHE_TTL accepts zero", func(t *testing.T) {
		setRequired(t)
		t.Setenv("JWKS_CACHE_TTL", "0s")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Zero(t, cfg.JWKSCacheTTL)
	})

	t.Run("log level", func(t *testing.T) {
		setRequired(t)
		t.Setenv("LOG_LEVEL", "DEBUG")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "DEBUG", cfg.LogLevel.String())
	})
}

// --- ParseProviders ---

func TestParseProviders(t *testing.T) {
	t.Setenv("ACME_CLIENT_ID", "id")
	t.Setenv("ACME_CLIENT_SECRET", "secret")

	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "providers:\n  - type: oidc\n"},
		{"duplicate id", "providers:\n  - id: acme\n    discover: true\n    issuer: https://a\n  - id: acme\n    discover: true\n    issuer: https://a\n"},
		{"bad type", "providers:\n  - id: acme\n    type: saml\n"},
		{"discover without issuer", "providers:\n  - id: acme\n    discover: true\n"},
		{"discover with oauth2 type", "providers:\n  - id: acme\n    type: oauth2\n    discover: true\n    issuer: https://a\n"},
		{"oidc without jwks", "providers:\n  - id: acme\n    type: oidc\n    auth_url: https://a/auth\n    token_url: https://a/token\n    issuer: https://a\n"},
		{"not yaml", "providers: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProviders([]byte(tt.yaml), "https://gw/cb", time.Second)
			assert.Error(t, err)
		})
	}
}

func TestParseProviders_DiscoverDefersValidation(t *testing.T) {
	t.Setenv("ACME_CLIENT_ID", "id")
	t.Setenv("ACME_CLIENT_SECRET", "secret")

	ps, err := ParseProviders([]byte("providers:\n  - id: acme\n    type: oidc\n    discover: true\n    issuer: https://a\n"), "https://gw/cb", time.Second)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.True(t, ps[0].Discover)
	assert.Equal(t, time.Second, ps[0].HTTPTimeout)
}

func TestParseProviders_DiscoverWithoutTypeIsOIDC(t *testing.T) {
	t.Setenv("ACME_CLIENT_ID", "id")
	t.Setenv("ACME_CLIENT_SECRET", "secret")

	ps, err := ParseProviders([]byte("providers:\n  - id: acme\n    discover: true\n    issuer: https://a\n"), "https://gw/cb", time.Second)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, oauth.CapabilityOIDC, ps[0].Capability)
}

func TestCredentialKeys(t *testing.T) {
	id, secret := credentialKeys("my-idp.v2")
	assert.Equal(t, "MY_IDP_V2_CLIENT_ID", id)
	assert.Equal(t, "MY_IDP_V2_CLIENT_SECRET", secret)
}
