package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configurable parameters for the application.
type Config struct {
	RootDir   string
	Exclude   []string
	Port      int
	TraceSize int

	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	RateLimiterTTL  time.Duration
	WatcherDebounce time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	DefaultEngine string // "" = static, "expr", "jinja2"
	DefaultHost   string
	Debug         bool
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		RootDir:   "./rules",
		Exclude:   []string{"fragments/**"},
		Port:      8080,
		TraceSize: 200,

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  100,
		LogMaxBackups: 3,
		LogMaxAgeDays: 28,

		RateLimiterTTL:  10 * time.Minute,
		WatcherDebounce: 500 * time.Millisecond,

		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.RootDir == "" {
		errs = append(errs, errors.New("root_dir must not be empty"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.TraceSize < 0 {
		errs = append(errs, fmt.Errorf("trace_size must not be negative, got %d", c.TraceSize))
	}
	switch c.DefaultEngine {
	case "", "expr", "jinja2":
	default:
		errs = append(errs, fmt.Errorf("unknown default_engine %q", c.DefaultEngine))
	}
	if c.RateLimiterTTL <= 0 {
		errs = append(errs, errors.New("rate_limiter_ttl must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// NewViper returns a viper instance seeded with DefaultConfig and bound to
// CLIENTMOCK_* environment variables. With path empty, clientmock.yaml is
// looked up in the working directory and may be absent.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("CLIENTMOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("clientmock")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("root_dir", cfg.RootDir)
	v.SetDefault("exclude", cfg.Exclude)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("trace_size", cfg.TraceSize)
	v.SetDefault("default_engine", cfg.DefaultEngine)
	v.SetDefault("default_host", cfg.DefaultHost)
	v.SetDefault("debug", cfg.Debug)

	v.SetDefault("log.level", cfg.LogLevel)
	v.SetDefault("log.format", cfg.LogFormat)
	v.SetDefault("log.file", cfg.LogFile)
	v.SetDefault("log.max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log.max_backups", cfg.LogMaxBackups)
	v.SetDefault("log.max_age_days", cfg.LogMaxAgeDays)

	v.SetDefault("rate_limiter_ttl", cfg.RateLimiterTTL)
	v.SetDefault("watcher_debounce", cfg.WatcherDebounce)
	v.SetDefault("read_timeout", cfg.ReadTimeout)
	v.SetDefault("write_timeout", cfg.WriteTimeout)
	v.SetDefault("idle_timeout", cfg.IdleTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
}

// ConfigFromViper reads a validated Config out of v.
func ConfigFromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		RootDir:   v.GetString("root_dir"),
		Exclude:   v.GetStringSlice("exclude"),
		Port:      v.GetInt("port"),
		TraceSize: v.GetInt("trace_size"),

		LogLevel:      v.GetString("log.level"),
		LogFormat:     v.GetString("log.format"),
		LogFile:       v.GetString("log.file"),
		LogMaxSizeMB:  v.GetInt("log.max_size_mb"),
		LogMaxBackups: v.GetInt("log.max_backups"),
		LogMaxAgeDays: v.GetInt("log.max_age_days"),

		RateLimiterTTL:  v.GetDuration("rate_limiter_ttl"),
		WatcherDebounce: v.GetDuration("watcher_debounce"),

		ReadTimeout:     v.GetDuration("read_timeout"),
		WriteTimeout:    v.GetDuration("write_timeout"),
		IdleTimeout:     v.GetDuration("idle_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),

		DefaultEngine: v.GetString("default_engine"),
		DefaultHost:   v.GetString("default_host"),
		Debug:         v.GetBool("debug"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads the config file at path (optional when empty), applies
// environment overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return Config{}, err
	}
	return ConfigFromViper(v)
}
