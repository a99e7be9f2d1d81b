package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/clubhouse/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadConfig()
		require.Equal(t, "identity.db", cfg.DatabaseFile)
		require.Equal(t, 24*time.Hour, cfg.SessionTTL)
		require.Equal(t, 48*time.Hour, cfg.VerifyTTL)
		require.Equal(t, time.Hour, cfg.ResetTTL)
		require.Equal(t, 8, cfg.MinPasswordLength)
		require.Equal(t, 8080, cfg.Port)
		require.Equal(t, "dev", cfg.Env)
		require.True(t, cfg.ExposeTokens)
		require.Equal(t, httpx.DefaultRateLimits(), cfg.RateLimits)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("ENV", "prod")
		t.Setenv("IDENTITY_SESSION_TTL", "90m")
		t.Setenv("HOUSEKEEPING_INTERVAL", "15")
		t.Setenv("IDENTITY_MIN_PASSWORD", "12")
		t.Setenv("PORT", "not-a-port")
		t.Setenv("RATELIMIT_STRICT", "1000/1m")
		t.Setenv("RATELIMIT_MODERATE", "lots")

		cfg := LoadConfig()
		require.Equal(t, "prod", cfg.Env)
		require.False(t, cfg.ExposeTokens, "tokens stay hidden outside dev")
		require.Equal(t, 90*time.Minute, cfg.SessionTTL)
		require.Equal(t, 15*time.Minute, cfg.HousekeepingInterval)
		require.Equal(t, 12, cfg.MinPasswordLength)
		require.Equal(t, 8080, cfg.Port)
		require.Equal(t, 1000, cfg.RateLimits.Strict.Requests)
		require.Equal(t, 20, cfg.RateLimits.Moderate.Requests)
	})
}

func TestInitSecrets(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pepperFile := filepath.Join(t.TempDir(), "pepper")

	t.Run("dev generates an ephemeral secret", func(t *testing.T) {
		s, err := InitSecrets(Config{Env: "dev", PepperFile: pepperFile}, logger)
		require.NoError(t, err)
		require.NotEmpty(t, s.Pepper)
		require.GreaterOrEqual(t, len(s.TokenSecret), 32)
	})

	t.Run("prod requires a secret", func(t *testing.T) {
		_, err := InitSecrets(Config{Env: "prod", PepperFile: pepperFile}, logger)
		require.Error(t, err)

		_, err = InitSecrets(Config{Env: "prod", PepperFile: pepperFile, TokenSecret: "short"}, logger)
		require.Error(t, err)

		s, err := InitSecrets(Config{Env: "prod", PepperFile: pepperFile, TokenSecret: strings.Repeat("x", 32)}, logger)
		require.NoError(t, err)
		require.Equal(t, strings.Repeat("x", 32), string(s.TokenSecret))
	})

	t.Run("pepper is stable across starts", func(t *testing.T) {
		a, err := InitSecrets(Config{Env: "dev", PepperFile: pepperFile}, logger)
		require.NoError(t, err)
		b, err := InitSecrets(Config{Env: "dev", PepperFile: pepperFile}, logger)
		require.NoError(t, err)
		require.Equal(t, a.Pepper, b.Pepper)
	})
}

func TestNewBootstrapsAndServes(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		DatabaseFile:         filepath.Join(dir, "identity.db"),
		PepperFile:           filepath.Join(dir, "pepper"),
		Issuer:               "clubhouse-test",
		Env:                  "dev",
		LogLevel:             "error",
		LogFormat:            "text",
		BootstrapEmail:       "root@example.org",
		BootstrapPassword:    "bootstrap password",
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	}

	application, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.db.Close() })

	n, err := application.db.Users().CountUsers(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// A second bootstrap against the same database is a no-op.
	require.NoError(t, application.bootstrap())
}
