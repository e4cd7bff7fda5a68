package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/crimson-sun/sentrylog/internal/severity"
)

// Defaults for Sentry client options left unset.
const (
	DefaultServerName     = "sentrylog"
	DefaultEnvironment    = "production"
	DefaultSampleRate     = 1.0
	DefaultMaxBreadcrumbs = 100
	DefaultFlushTimeout   = 5 * time.Second
)

// Config holds all sentrylog configuration.
type Config struct {
	Sentry    SentryConfig    `json:"sentry"`
	Transport TransportConfig `json:"transport"`
	Log       LogConfig       `json:"log"`
}

// SentryConfig holds the options passed to the Sentry client.
type SentryConfig struct {
	DSN            string   `json:"dsn,omitempty"`
	ServerName     string   `json:"serverName,omitempty"`
	Environment    string   `json:"environment,omitempty"`
	Debug          bool     `json:"debug,omitempty"`
	SampleRate     float64  `json:"sampleRate,omitempty"`
	MaxBreadcrumbs int      `json:"maxBreadcrumbs,omitempty"`
	FlushTimeout   Duration `json:"flushTimeout,omitempty"`
}

// TransportConfig holds record translation settings.
type TransportConfig struct {
	Levels         map[string]string `json:"levels,omitempty"`
	AutoClearScope *bool             `json:"autoClearScope,omitempty"` // nil means true
	Silent         bool              `json:"silent,omitempty"`
	LevelKey       string            `json:"levelKey,omitempty"`
}

// LogConfig holds settings for sentrylog's own diagnostics.
type LogConfig struct {
	Level string `json:"level,omitempty"` // "debug", "info", "warn", "error"
	JSON  bool   `json:"json,omitempty"`
}

// Load reads the optional YAML file at path, then fills anything it left
// unset from environment variables and finally from defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	cfg.Sentry = ResolveSentry(cfg.Sentry)

	if v := os.Getenv("SENTRYLOG_LEVELS"); v != "" {
		levels, err := ParseLevels(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: SENTRYLOG_LEVELS: %w", err)
		}
		if cfg.Transport.Levels == nil {
			cfg.Transport.Levels = make(map[string]string, len(levels))
		}
		for k, l := range levels {
			if _, set := cfg.Transport.Levels[k]; !set {
				cfg.Transport.Levels[k] = string(l)
			}
		}
	}
	if cfg.Transport.AutoClearScope == nil {
		if v, ok := getenvBool("SENTRYLOG_AUTO_CLEAR_SCOPE"); ok {
			cfg.Transport.AutoClearScope = &v
		}
	}
	if !cfg.Transport.Silent {
		cfg.Transport.Silent, _ = getenvBool("SENTRYLOG_SILENT")
	}
	if cfg.Transport.LevelKey == "" {
		cfg.Transport.LevelKey = getenv("SENTRYLOG_LEVEL_KEY", "level")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = getenv("SENTRYLOG_LOG_LEVEL", "info")
	}
	if !cfg.Log.JSON {
		cfg.Log.JSON, _ = getenvBool("SENTRYLOG_LOG_JSON")
	}
	return cfg, nil
}

// ResolveSentry fills unset Sentry options. Precedence: explicit value,
// then the specific environment variable, then the generic fallback
// variable, then the hardcoded default.
func ResolveSentry(s SentryConfig) SentryConfig {
	if s.DSN == "" {
		s.DSN = os.Getenv("SENTRY_DSN")
	}
	if s.ServerName == "" {
		s.ServerName = DefaultServerName
	}
	if s.Environment == "" {
		s.Environment = firstenv([]string{"SENTRY_ENVIRONMENT", "APP_ENV"}, DefaultEnvironment)
	}
	if !s.Debug {
		s.Debug = os.Getenv("SENTRY_DEBUG") != ""
	}
	if s.SampleRate == 0 {
		s.SampleRate = DefaultSampleRate
	}
	if s.MaxBreadcrumbs == 0 {
		s.MaxBreadcrumbs = DefaultMaxBreadcrumbs
	}
	if s.FlushTimeout.Duration == 0 {
		s.FlushTimeout.Duration = getenvDuration("SENTRYLOG_FLUSH_TIMEOUT", DefaultFlushTimeout)
	}
	return s
}

// AutoClear reports the effective auto-clear-scope setting.
func (t TransportConfig) AutoClear() bool {
	return t.AutoClearScope == nil || *t.AutoClearScope
}

// LevelMap converts the configured overlay to severities.
func (t TransportConfig) LevelMap() map[string]severity.Level {
	if len(t.Levels) == 0 {
		return nil
	}
	m := make(map[string]severity.Level, len(t.Levels))
	for k, v := range t.Levels {
		m[k] = severity.Level(v)
	}
	return m
}

// ParseLevels parses "warn=info,error=fatal" into a level overlay.
// Values are not checked against the remote vocabulary.
func ParseLevels(s string) (map[string]severity.Level, error) {
	m := make(map[string]severity.Level)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, level, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid level mapping %q, want name=severity", pair)
		}
		m[name] = severity.Level(strings.TrimSpace(level))
	}
	return m, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// firstenv returns the first non-empty variable among keys.
func firstenv(keys []string, fallback string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return fallback
}

func getenvBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
