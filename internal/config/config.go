package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type StripeConfig struct {
	SecretKey     string        `yaml:"secret_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout"` // per gateway call
}

type BillingConfig struct {
	Stripe StripeConfig `yaml:"stripe"`
	// EventGuardTTL bounds how long a provider event id is remembered by the
	// fast-path duplicate guard.
	EventGuardTTL time.Duration `yaml:"event_guard_ttl"`
}

type PlanConfig struct {
	Name         string `yaml:"name"`
	Amount       int64  `yaml:"amount"` // minor units
	Currency     string `yaml:"currency"`
	DurationDays int    `yaml:"duration_days"`
	PriceID      string `yaml:"price_id"` // provider price identifier
}

type SchedulerConfig struct {
	ExpiryInterval time.Duration `yaml:"expiry_interval"`
}

type SyncConfig struct {
	RateLimit  int           `yaml:"rate_limit"` // requests per window per user
	RateWindow time.Duration `yaml:"rate_window"`
}

type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Log       LogConfig             `yaml:"log"`
	Database  DatabaseConfig        `yaml:"database"`
	Redis     RedisConfig           `yaml:"redis"`
	Auth      AuthConfig            `yaml:"auth"`
	Billing   BillingConfig         `yaml:"billing"`
	Plans     map[string]PlanConfig `yaml:"plans"`
	Scheduler SchedulerConfig       `yaml:"scheduler"`
	Sync      SyncConfig            `yaml:"sync"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Billing.Stripe.Timeout <= 0 {
		cfg.Billing.Stripe.Timeout = 10 * time.Second
	}
	if cfg.Billing.EventGuardTTL <= 0 {
		cfg.Billing.EventGuardTTL = 24 * time.Hour
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = time.Hour
	}
	if cfg.Sync.RateLimit <= 0 {
		cfg.Sync.RateLimit = 10
	}
	if cfg.Sync.RateWindow <= 0 {
		cfg.Sync.RateWindow = time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Billing.Stripe.SecretKey == "" {
		return nil, errors.New("billing.stripe.secret_key is required")
	}
	if cfg.Billing.Stripe.WebhookSecret == "" {
		return nil, errors.New("billing.stripe.webhook_secret is required")
	}
	if len(cfg.Plans) == 0 {
		return nil, errors.New("at least one plan must be configured")
	}
	for key, p := range cfg.Plans {
		if p.Amount <= 0 || p.DurationDays <= 0 || p.Currency == "" {
			return nil, fmt.Errorf("plan %q: amount, currency and duration_days are required", key)
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
