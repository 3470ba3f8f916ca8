package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/leonart92/pronostiX-sub002/internal/config"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
	"github.com/leonart92/pronostiX-sub002/internal/infra/db/postgres"
	"github.com/leonart92/pronostiX-sub002/internal/infra/redis"
)

// This script sets up a clean, predictable database state for manual
// end-to-end testing of the reconciliation flows.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisClient.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	log.Println("[1/4] Ensuring schema...")
	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("failed to create schema: %v", err)
	}

	log.Println("[2/4] Wiping Redis cache...")
	if err := redisClient.FlushDB(ctx); err != nil {
		log.Fatalf("failed to flush redis: %v", err)
	}

	log.Println("[3/4] Wiping all existing billing data...")
	if _, err := pool.Exec(ctx, `TRUNCATE users, subscriptions, payments RESTART IDENTITY CASCADE;`); err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	log.Println("[4/4] Seeding test user...")
	userRepo := postgres.NewPostgresUserRepo(pool)
	u, err := model.NewUser("00000000-0000-0000-0000-000000000001", "e2e@example.com", "e2e-user")
	if err != nil {
		log.Fatalf("build test user: %v", err)
	}
	if err := userRepo.Save(ctx, nil, u); err != nil {
		log.Fatalf("seed test user: %v", err)
	}

	log.Println("--- E2E Environment Setup Complete ---")
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id                  UUID PRIMARY KEY,
    email               TEXT NOT NULL UNIQUE,
    username            TEXT NOT NULL,
    stripe_customer_id  TEXT NOT NULL DEFAULT '',
    subscription_status TEXT NOT NULL DEFAULT 'none',
    subscription_id     UUID,
    registered_at       TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_stripe_customer ON users (stripe_customer_id) WHERE stripe_customer_id <> '';

CREATE TABLE IF NOT EXISTS subscriptions (
    id                     UUID PRIMARY KEY,
    user_id                UUID NOT NULL REFERENCES users (id),
    plan_key               TEXT NOT NULL,
    stripe_subscription_id TEXT NOT NULL DEFAULT '',
    stripe_customer_id     TEXT NOT NULL DEFAULT '',
    stripe_price_id        TEXT NOT NULL DEFAULT '',
    status                 TEXT NOT NULL,
    start_at               TIMESTAMPTZ NOT NULL,
    end_at                 TIMESTAMPTZ NOT NULL,
    current_period_start   TIMESTAMPTZ NOT NULL,
    current_period_end     TIMESTAMPTZ NOT NULL,
    cancel_at_period_end   BOOLEAN NOT NULL DEFAULT FALSE,
    cancelled_at           TIMESTAMPTZ,
    amount                 BIGINT NOT NULL DEFAULT 0,
    currency               TEXT NOT NULL DEFAULT '',
    last_event_at          TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
    created_at             TIMESTAMPTZ NOT NULL,
    updated_at             TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_external ON subscriptions (stripe_subscription_id) WHERE stripe_subscription_id <> '';
CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions (user_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_lapse ON subscriptions (current_period_end) WHERE status IN ('active','trialing');

CREATE TABLE IF NOT EXISTS payments (
    id                       UUID PRIMARY KEY,
    user_id                  UUID NOT NULL,
    subscription_id          UUID,
    stripe_payment_intent_id TEXT NOT NULL DEFAULT '',
    stripe_session_id        TEXT NOT NULL DEFAULT '',
    amount                   BIGINT NOT NULL,
    currency                 TEXT NOT NULL,
    status                   TEXT NOT NULL,
    paid_at                  TIMESTAMPTZ,
    failed_at                TIMESTAMPTZ,
    refunded_at              TIMESTAMPTZ,
    failure_reason           TEXT NOT NULL DEFAULT '',
    refunds                  JSONB NOT NULL DEFAULT '[]',
    applied_events           JSONB NOT NULL DEFAULT '[]',
    created_at               TIMESTAMPTZ NOT NULL,
    updated_at               TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_intent ON payments (stripe_payment_intent_id) WHERE stripe_payment_intent_id <> '';
CREATE INDEX IF NOT EXISTS idx_payments_session ON payments (stripe_session_id) WHERE stripe_session_id <> '';
CREATE INDEX IF NOT EXISTS idx_payments_user ON payments (user_id);
`
