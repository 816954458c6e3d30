package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banktransfer/internal/app"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		app.EnvBaseURL, app.EnvTimeout, app.EnvMaxRetries, app.EnvBackoffBase, app.EnvBackoffCap,
		app.EnvRateLimit, app.EnvUsername, app.EnvPassword, app.EnvTokenClaim, app.EnvLogLevel, app.EnvLogFile,
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := app.Load("", "")
	require.NoError(t, err)

	assert.Equal(t, app.Default(), cfg)
	assert.Equal(t, "http://localhost:8123", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout.D())
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.BackoffBase.D())
	assert.Equal(t, 30*time.Second, cfg.BackoffCap.D())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAcceptsSecondsAndDurations(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "config.yaml", `
base_url: https://bank.example.com
timeout: 10
max_retries: 5
backoff_base: 250ms
backoff_cap: 1.5
token_ttl: 1h
log_level: debug
`)
	cfg, err := app.Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "https://bank.example.com", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout.D())
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffBase.D())
	assert.Equal(t, 1500*time.Millisecond, cfg.BackoffCap.D())
	assert.Equal(t, time.Hour, cfg.TokenTTL.D())
	assert.Equal(t, "alice", cfg.Username, "unset keys keep defaults")
}

func TestLoad_JSONFile(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "config.json", `{"base_url": "http://127.0.0.1:9000", "timeout": 5, "max_retries": 0}`)
	cfg, err := app.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout.D())
	assert.Equal(t, 0, cfg.MaxRetries)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "config.yaml", "base_url: http://file:1\nmax_retries: 1\ntimeout: 7\n")
	envFile := writeTemp(t, ".env", "BANKING_API_URL=http://dotenv:2\nBANKING_API_MAX_RETRIES=2\nBANKING_API_USERNAME=bob\n")
	t.Setenv(app.EnvBaseURL, "http://process:3")

	cfg, err := app.Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "http://process:3", cfg.BaseURL, "process env beats .env")
	assert.Equal(t, 2, cfg.MaxRetries, ".env beats file")
	assert.Equal(t, "bob", cfg.Username)
	assert.Equal(t, 7*time.Second, cfg.Timeout.D(), "file beats defaults")
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	_, err := app.Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)

	_, err = app.Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	_, err = app.Load(writeTemp(t, "bad.yaml", "timeout: soon\n"), "")
	assert.Error(t, err)

	t.Setenv(app.EnvMaxRetries, "three")
	_, err = app.Load("", "")
	assert.ErrorContains(t, err, app.EnvMaxRetries)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*app.Config)
	}{
		{"bad scheme", func(c *app.Config) { c.BaseURL = "ftp://bank" }},
		{"no host", func(c *app.Config) { c.BaseURL = "http://" }},
		{"zero timeout", func(c *app.Config) { c.Timeout = 0 }},
		{"negative retries", func(c *app.Config) { c.MaxRetries = -1 }},
		{"too many retries", func(c *app.Config) { c.MaxRetries = 1000 }},
		{"cap below base", func(c *app.Config) { c.BackoffCap = app.Duration(time.Millisecond) }},
		{"negative rate", func(c *app.Config) { c.RateLimit = -1 }},
		{"bad level", func(c *app.Config) { c.LogLevel = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := app.Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := app.Default()
	cfg.BaseURL = "https://bank.example.com"
	cfg.BackoffBase = app.Duration(500 * time.Millisecond)
	cfg.RateLimit = 2.5

	require.NoError(t, cfg.Save(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := app.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
