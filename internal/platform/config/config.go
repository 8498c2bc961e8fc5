package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"review-workflow"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	RedisURL    string `env:"REDIS_URL"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	// WorkflowDefinitionPath empty means the built-in v1/v2 graphs.
	WorkflowDefinitionPath string `env:"WORKFLOW_DEFINITION_PATH"`

	ReviewPeriod     time.Duration   `env:"REVIEW_PERIOD" envDefault:"720h"`
	WarningLeadTimes []time.Duration `env:"WARNING_LEAD_TIMES" envSeparator:"," envDefault:"168h,72h"`
	VoteCastCooldown time.Duration   `env:"VOTE_CAST_COOLDOWN" envDefault:"30m"`
	RevotePolicy     string          `env:"REVOTE_POLICY" envDefault:"overwrite"`
	DebounceBackend  string          `env:"DEBOUNCE_BACKEND" envDefault:"postgres"`
	DebounceTTL      time.Duration   `env:"DEBOUNCE_TTL" envDefault:"1080h"`

	SweepTrigger    string        `env:"SWEEP_TRIGGER" envDefault:"river"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"15m"`
	SweepBatchSize  int           `env:"SWEEP_BATCH_SIZE" envDefault:"100"`
	RelayInterval   time.Duration `env:"RELAY_INTERVAL" envDefault:"5s"`
	RelayBatchSize  int           `env:"RELAY_BATCH_SIZE" envDefault:"100"`
	DeliveryURL     string        `env:"DELIVERY_WEBHOOK_URL"`
	DeliveryRate    float64       `env:"DELIVERY_RATE_PER_SECOND" envDefault:"20"`
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"10s"`

	EnableDeadlineSweep bool `env:"ENABLE_DEADLINE_SWEEP" envDefault:"true"`
	EnableOutboxRelay   bool `env:"ENABLE_OUTBOX_RELAY" envDefault:"true"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.RevotePolicy = strings.ToLower(strings.TrimSpace(cfg.RevotePolicy))
	cfg.DebounceBackend = strings.ToLower(strings.TrimSpace(cfg.DebounceBackend))
	cfg.SweepTrigger = strings.ToLower(strings.TrimSpace(cfg.SweepTrigger))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var problems []error
	switch c.RevotePolicy {
	case "overwrite", "reject":
	default:
		problems = append(problems, fmt.Errorf("REVOTE_POLICY must be overwrite or reject, got %q", c.RevotePolicy))
	}
	switch c.DebounceBackend {
	case "postgres", "redis":
	default:
		problems = append(problems, fmt.Errorf("DEBOUNCE_BACKEND must be postgres or redis, got %q", c.DebounceBackend))
	}
	if c.DebounceBackend == "redis" && strings.TrimSpace(c.RedisURL) == "" {
		problems = append(problems, errors.New("REDIS_URL is required when DEBOUNCE_BACKEND=redis"))
	}
	switch c.SweepTrigger {
	case "river", "ticker":
	default:
		problems = append(problems, fmt.Errorf("SWEEP_TRIGGER must be river or ticker, got %q", c.SweepTrigger))
	}
	if c.ReviewPeriod <= 0 {
		problems = append(problems, errors.New("REVIEW_PERIOD must be positive"))
	}
	if c.SweepInterval <= 0 || c.RelayInterval <= 0 {
		problems = append(problems, errors.New("SWEEP_INTERVAL and RELAY_INTERVAL must be positive"))
	}
	if c.DeliveryRate <= 0 {
		problems = append(problems, errors.New("DELIVERY_RATE_PER_SECOND must be positive"))
	}
	return errors.Join(problems...)
}
