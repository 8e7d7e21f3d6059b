package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/joho/godotenv"
)

// DefaultFile is the dotenv file read when no path is given.
const DefaultFile = ".env"

// Config holds process settings and the tracking policy.
type Config struct {
	DBPath    string
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	IdleScanInterval     time.Duration
	OvertimeScanInterval time.Duration
	PresenceTTL          time.Duration

	Policy domain.Policy
}

// Default returns a Config with production defaults. DBPath is left empty
// and resolved by Load.
func Default() *Config {
	return &Config{
		HTTPAddr:             ":8080",
		LogLevel:             "info",
		LogFormat:            "text",
		IdleScanInterval:     5 * time.Minute,
		OvertimeScanInterval: time.Hour,
		PresenceTTL:          5 * time.Minute,
		Policy:               domain.DefaultPolicy(),
	}
}

// Load reads the optional dotenv file at path, then TEMPO_* environment
// variables, falling back to defaults for unset keys. Process environment
// wins over the file. A missing file is not an error.
func Load(path string) (*Config, error) {
	env, err := newLookup(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := env(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := env(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("TEMPO_DB", &cfg.DBPath)
	str("TEMPO_HTTP_ADDR", &cfg.HTTPAddr)
	str("TEMPO_LOG_LEVEL", &cfg.LogLevel)
	str("TEMPO_LOG_FORMAT", &cfg.LogFormat)
	dur("TEMPO_IDLE_SCAN_INTERVAL", &cfg.IdleScanInterval)
	dur("TEMPO_OVERTIME_SCAN_INTERVAL", &cfg.OvertimeScanInterval)
	dur("TEMPO_PRESENCE_TTL", &cfg.PresenceTTL)

	p := &cfg.Policy
	dur("TEMPO_MAX_ACTIVITY_GAP", &p.MaxActivityGap)
	dur("TEMPO_CONTINUOUS_THRESHOLD", &p.ContinuousThreshold)
	dur("TEMPO_PING_INTERVAL", &p.PingInterval)
	dur("TEMPO_IDLE_TIMEOUT", &p.IdleTimeout)
	dur("TEMPO_AUTO_CHECKOUT_AFTER", &p.AutoCheckoutAfter)
	dur("TEMPO_OVERTIME_THRESHOLD", &p.OvertimeThreshold)

	if v, ok := env("TEMPO_MAX_WRITE_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TEMPO_MAX_WRITE_RETRIES: %w", err))
		} else {
			p.MaxWriteRetries = n
		}
	}
	if v, ok := env("TEMPO_EXEMPT_ROLES"); ok {
		roles, err := parseRoles(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TEMPO_EXEMPT_ROLES: %w", err))
		} else {
			p.ExemptRoles = roles
		}
	}
	if v, ok := env("TEMPO_TIMEZONE"); ok {
		loc, err := time.LoadLocation(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TEMPO_TIMEZONE: %w", err))
		} else {
			p.Location = loc
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath, err = defaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the policy and scheduler cadences.
func (c *Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	if c.IdleScanInterval <= 0 || c.OvertimeScanInterval <= 0 {
		return &domain.ValidationError{Field: "scan_interval", Reason: "must be positive"}
	}
	if c.PresenceTTL < 0 {
		return &domain.ValidationError{Field: "presence_ttl", Reason: "must not be negative"}
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return &domain.ValidationError{Field: "log_format", Reason: fmt.Sprintf("must be text or json, got %q", c.LogFormat)}
	}
	return nil
}

// NewLogger builds the process logger described by the config.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, &domain.ValidationError{Field: "log_level", Reason: fmt.Sprintf("unknown level %q", s)}
}

func parseRoles(v string) ([]domain.Role, error) {
	var roles []domain.Role
	for _, part := range strings.Split(v, ",") {
		r := strings.TrimSpace(strings.ToLower(part))
		if r == "" {
			continue
		}
		if !domain.ValidRoles[r] {
			return nil, fmt.Errorf("unknown role %q", r)
		}
		roles = append(roles, domain.Role(r))
	}
	return roles, nil
}

type lookup func(key string) (string, bool)

// newLookup layers the process environment over the dotenv file at path.
func newLookup(path string) (lookup, error) {
	fileVals := map[string]string{}
	if path != "" {
		vals, err := godotenv.Read(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		default:
			fileVals = vals
		}
	}
	return func(key string) (string, bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, true
		}
		v := strings.TrimSpace(fileVals[key])
		return v, v != ""
	}, nil
}

func defaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".tempo", "tempo.db"), nil
}
