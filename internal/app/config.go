package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"banktransfer/internal/logging"
)

// Environment variables read by Load.
const (
	EnvBaseURL     = "BANKING_API_URL"
	EnvTimeout     = "BANKING_API_TIMEOUT"
	EnvMaxRetries  = "BANKING_API_MAX_RETRIES"
	EnvBackoffBase = "BANKING_API_BACKOFF_BASE"
	EnvBackoffCap  = "BANKING_API_BACKOFF_CAP"
	EnvRateLimit   = "BANKING_API_RATE_LIMIT"
	EnvUsername    = "BANKING_API_USERNAME"
	EnvPassword    = "BANKING_API_PASSWORD"
	EnvTokenClaim  = "BANKING_API_TOKEN_CLAIM"
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogFile     = "LOG_FILE"
)

// maxRetriesLimit bounds MaxRetries so a typo cannot stall the CLI for hours.
const maxRetriesLimit = 20

// Duration is a time.Duration that reads either a Go duration string ("1.5s")
// or a plain number of seconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML writes the duration string form.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// MarshalJSON encodes d as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// UnmarshalYAML accepts "30s", "1m" or 30.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	v, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return v, nil
}

// Config holds runtime settings for the client.
type Config struct {
	BaseURL     string   `yaml:"base_url" json:"base_url"`
	Timeout     Duration `yaml:"timeout" json:"timeout"`
	MaxRetries  int      `yaml:"max_retries" json:"max_retries"`
	BackoffBase Duration `yaml:"backoff_base" json:"backoff_base"`
	BackoffCap  Duration `yaml:"backoff_cap" json:"backoff_cap"`

	RateLimit        float64  `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	BreakerThreshold uint32   `yaml:"breaker_threshold,omitempty" json:"breaker_threshold,omitempty"`
	BreakerCooldown  Duration `yaml:"breaker_cooldown,omitempty" json:"breaker_cooldown,omitempty"`

	Username   string   `yaml:"username" json:"username"`
	Password   string   `yaml:"password" json:"password"`
	TokenClaim string   `yaml:"token_claim" json:"token_claim"`
	TokenTTL   Duration `yaml:"token_ttl" json:"token_ttl"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	LogFile  string `yaml:"log_file,omitempty" json:"log_file,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:         "http://localhost:8123",
		Timeout:         Duration(30 * time.Second),
		MaxRetries:      3,
		BackoffBase:     Duration(time.Second),
		BackoffCap:      Duration(30 * time.Second),
		BreakerCooldown: Duration(30 * time.Second),
		Username:        "alice",
		Password:        "any",
		TokenClaim:      "transfer",
		TokenTTL:        Duration(30 * time.Minute),
		LogLevel:        "info",
	}
}

// Load builds a Config from defaults, the file at path (skipped when empty)
// and the environment. envFile, when set, must exist; its values apply only
// where the process environment does not already set the variable.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		if err != nil {
			return Config{}, fmt.Errorf("read env file: %w", err)
		}
		dotenv = m
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = Duration(d)
		return nil
	}

	str(EnvBaseURL, &c.BaseURL)
	str(EnvUsername, &c.Username)
	str(EnvPassword, &c.Password)
	str(EnvTokenClaim, &c.TokenClaim)
	str(EnvLogLevel, &c.LogLevel)
	str(EnvLogFile, &c.LogFile)

	if err := dur(EnvTimeout, &c.Timeout); err != nil {
		return err
	}
	if err := dur(EnvBackoffBase, &c.BackoffBase); err != nil {
		return err
	}
	if err := dur(EnvBackoffCap, &c.BackoffCap); err != nil {
		return err
	}
	if v, ok := lookup(EnvMaxRetries); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvMaxRetries, v)
		}
		c.MaxRetries = n
	}
	if v, ok := lookup(EnvRateLimit); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", EnvRateLimit, v)
		}
		c.RateLimit = f
	}
	return nil
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("base_url %q: scheme must be http or https", c.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("base_url %q: missing host", c.BaseURL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.MaxRetries < 0 || c.MaxRetries > maxRetriesLimit {
		errs = append(errs, fmt.Errorf("max_retries must be between 0 and %d", maxRetriesLimit))
	}
	if c.BackoffBase <= 0 {
		errs = append(errs, errors.New("backoff_base must be positive"))
	}
	if c.BackoffCap < c.BackoffBase {
		errs = append(errs, errors.New("backoff_cap must not be below backoff_base"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit must not be negative"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Save writes cfg as YAML to path, creating parent directories. The file
// holds the password, so it is written with owner-only permissions.
func (c Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := writeFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultPath returns ~/.banktransfer/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".banktransfer", "config.yaml"), nil
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// Best-effort cleanup if anything fails before rename.
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
