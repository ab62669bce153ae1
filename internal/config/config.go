package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// DefaultFinalizeSchedule runs the weekly sweep at 00:10 local time every
// Monday.
const DefaultFinalizeSchedule = "10 0 * * 1"

type Config struct {
	DatabaseURI      string
	TelegramToken    string
	Timezone         string
	LogLevel         string
	LogFormat        string
	MetricsAddr      string
	DispatchWorkers  int
	DispatchTimeout  time.Duration
	SendRate         float64
	FinalizeSchedule string

	loc *time.Location
}

func Load() (*Config, error) {
	// .env file is optional in production
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from getenv and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	var errs []error
	workers, err := strconv.Atoi(env("DISPATCH_WORKERS", "4"))
	if err != nil || workers <= 0 {
		errs = append(errs, errors.New("DISPATCH_WORKERS must be a positive integer"))
	}
	timeout, err := time.ParseDuration(env("DISPATCH_TIMEOUT", "30s"))
	if err != nil || timeout <= 0 {
		errs = append(errs, errors.New("DISPATCH_TIMEOUT must be a positive duration"))
	}
	rate, err := strconv.ParseFloat(env("SEND_RATE", "25"), 64)
	if err != nil || rate <= 0 {
		errs = append(errs, errors.New("SEND_RATE must be a positive number"))
	}

	cfg := &Config{
		DatabaseURI:      env("DATABASE_URI", "sqlite://workout_bot.db"),
		TelegramToken:    getenv("TELEGRAM_TOKEN"),
		Timezone:         env("TIMEZONE", "Asia/Almaty"),
		LogLevel:         env("LOG_LEVEL", "info"),
		LogFormat:        env("LOG_FORMAT", "console"),
		MetricsAddr:      env("METRICS_ADDR", ":9090"),
		DispatchWorkers:  workers,
		DispatchTimeout:  timeout,
		SendRate:         rate,
		FinalizeSchedule: env("FINALIZE_SCHEDULE", DefaultFinalizeSchedule),
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err))
	}
	cfg.loc = loc

	if _, err := cron.ParseStandard(cfg.FinalizeSchedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid FINALIZE_SCHEDULE %q: %w", cfg.FinalizeSchedule, err))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location is the zone every reminder time is interpreted in.
func (c *Config) Location() *time.Location {
	return c.loc
}

// RequireToken fails when no Telegram token is configured.
func (c *Config) RequireToken() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	return nil
}
