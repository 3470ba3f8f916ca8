package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
database:
  url: "postgres://localhost/billing"
redis:
  url: "localhost:6379"
auth:
  jwt_secret: "secret"
billing:
  stripe:
    secret_key: "sk_test"
    webhook_secret: "whsec_test"
plans:
  monthly:
    name: "Monthly"
    amount: 999
    currency: "eur"
    duration_days: 30
    price_id: "price_monthly"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML), false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("default port: %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("default log config: %+v", cfg.Log)
	}
	if cfg.Billing.EventGuardTTL != 24*time.Hour {
		t.Fatalf("default guard ttl: %v", cfg.Billing.EventGuardTTL)
	}
	if cfg.Sync.RateLimit != 10 || cfg.Sync.RateWindow != time.Minute {
		t.Fatalf("default sync limits: %+v", cfg.Sync)
	}
	if cfg.Scheduler.ExpiryInterval != time.Hour {
		t.Fatalf("default expiry interval: %v", cfg.Scheduler.ExpiryInterval)
	}
	if cfg.Runtime.Dev {
		t.Fatal("dev should be false")
	}
}

func TestLoadConfigRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing database", `
redis: {url: "localhost:6379"}
auth: {jwt_secret: "s"}
billing: {stripe: {secret_key: "sk", webhook_secret: "wh"}}
plans: {m: {name: M, amount: 1, currency: eur, duration_days: 30}}
`},
		{"missing webhook secret", `
database: {url: "postgres://x"}
redis: {url: "localhost:6379"}
auth: {jwt_secret: "s"}
billing: {stripe: {secret_key: "sk"}}
plans: {m: {name: M, amount: 1, currency: eur, duration_days: 30}}
`},
		{"no plans", `
database: {url: "postgres://x"}
redis: {url: "localhost:6379"}
auth: {jwt_secret: "s"}
billing: {stripe: {secret_key: "sk", webhook_secret: "wh"}}
`},
		{"invalid plan", `
database: {url: "postgres://x"}
redis: {url: "localhost:6379"}
auth: {jwt_secret: "s"}
billing: {stripe: {secret_key: "sk", webhook_secret: "wh"}}
plans: {m: {name: M, amount: 0, currency: eur, duration_days: 30}}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.body), false); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
