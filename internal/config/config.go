package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultDatabaseURL      = "todo_planner.db"
	DefaultHTTPAddr         = ":8080"
	DefaultGenerateInterval = time.Hour
	DefaultGenerateDays     = 730
	// DefaultManualGenerateDays is the horizon of runs started by hand (CLI, HTTP, bot).
	DefaultManualGenerateDays = 365
	DefaultMaxGenerateDays    = 3650
	DefaultDigestTime         = "08:00"
	DefaultLogLevel           = "info"
)

// Config keeps runtime settings for the planner.
type Config struct {
	DatabaseURL      string        `toml:"database_url"`
	HTTPAddr         string        `toml:"http_addr"`
	TelegramToken    string        `toml:"telegram_token"`
	GenerateInterval time.Duration `toml:"-"`
	GenerateDays     int           `toml:"generate_days"`
	MaxGenerateDays  int           `toml:"max_generate_days"`
	AdminSubjects    []string      `toml:"admin_subjects"`
	DigestTime       string        `toml:"digest_time"`
	LogLevel         string        `toml:"log_level"`

	// GenerateIntervalRaw holds the TOML form of GenerateInterval, e.g. "1h".
	GenerateIntervalRaw string `toml:"generate_interval"`
}

// Load reads configuration from an optional TOML file (TODO_PLANNER_CONFIG)
// and then from environment variables, with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:      DefaultDatabaseURL,
		HTTPAddr:         DefaultHTTPAddr,
		GenerateInterval: DefaultGenerateInterval,
		GenerateDays:     DefaultGenerateDays,
		MaxGenerateDays:  DefaultMaxGenerateDays,
		DigestTime:       DefaultDigestTime,
		LogLevel:         DefaultLogLevel,
	}

	if path := strings.TrimSpace(os.Getenv("TODO_PLANNER_CONFIG")); path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	if c.GenerateDays <= 0 {
		return fmt.Errorf("generate days must be positive, got %d", c.GenerateDays)
	}
	if c.MaxGenerateDays <= 0 {
		return fmt.Errorf("max generate days must be positive, got %d", c.MaxGenerateDays)
	}
	if c.GenerateDays > c.MaxGenerateDays {
		return fmt.Errorf("generate days %d exceed max generate days %d", c.GenerateDays, c.MaxGenerateDays)
	}
	if c.GenerateInterval <= 0 {
		return errors.New("generate interval must be positive")
	}
	if c.DatabaseURL == "" {
		return errors.New("database url is required")
	}
	return nil
}

// BotEnabled reports whether a Telegram token was configured.
func (c Config) BotEnabled() bool {
	return c.TelegramToken != ""
}

func loadFile(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}
	if raw := strings.TrimSpace(cfg.GenerateIntervalRaw); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("generate_interval %q: %w", raw, err)
		}
		cfg.GenerateInterval = interval
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := env("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := env("TELEGRAM_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}
	if v := env("DIGEST_TIME"); v != "" {
		cfg.DigestTime = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env("GENERATE_INTERVAL"); v != "" {
		interval, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("GENERATE_INTERVAL: %w", err)
		}
		cfg.GenerateInterval = interval
	}
	if v := env("GENERATE_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GENERATE_DAYS: %w", err)
		}
		cfg.GenerateDays = days
	}
	if v := env("MAX_GENERATE_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_GENERATE_DAYS: %w", err)
		}
		cfg.MaxGenerateDays = days
	}
	if v := env("ADMIN_SUBJECTS"); v != "" {
		cfg.AdminSubjects = splitList(v)
	}
	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseInterval accepts a Go duration ("90m") or a bare number of hours ("2").
func parseInterval(raw string) (time.Duration, error) {
	if hours, err := strconv.Atoi(raw); err == nil {
		return time.Duration(hours) * time.Hour, nil
	}
	return time.ParseDuration(raw)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
