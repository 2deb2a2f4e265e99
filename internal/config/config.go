package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	RedisURL  string `env:"REDIS_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	BroadcastTickInterval time.Duration `env:"BROADCAST_TICK_INTERVAL" default:"100ms"`
	MaxSubscribers        int           `env:"MAX_SUBSCRIBERS" default:"1024"`

	MutateRatePerSecond float64 `env:"MUTATE_RATE_PER_SECOND" default:"20"`
	MutateRateBurst     int     `env:"MUTATE_RATE_BURST" default:"40"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	// RedisURL may be empty: the service then runs without the persistence
	// collaborator and starts from defaults.
	if cfg.BroadcastTickInterval < 10*time.Millisecond {
		return fmt.Errorf("BROADCAST_TICK_INTERVAL must be at least 10ms, got %v", cfg.BroadcastTickInterval)
	}
	if cfg.MaxSubscribers < 1 {
		return fmt.Errorf("MAX_SUBSCRIBERS must be positive, got %d", cfg.MaxSubscribers)
	}
	if cfg.MutateRatePerSecond <= 0 {
		return fmt.Errorf("MUTATE_RATE_PER_SECOND must be positive, got %v", cfg.MutateRatePerSecond)
	}
	if cfg.MutateRateBurst < 1 {
		return fmt.Errorf("MUTATE_RATE_BURST must be positive, got %d", cfg.MutateRateBurst)
	}
	return nil
}
