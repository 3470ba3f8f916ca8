// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leonart92/pronostiX-sub002/internal/config"
	pg "github.com/leonart92/pronostiX-sub002/internal/infra/db/postgres"
	"github.com/leonart92/pronostiX-sub002/internal/infra/logging"
	"github.com/leonart92/pronostiX-sub002/internal/infra/metrics"
	red "github.com/leonart92/pronostiX-sub002/internal/infra/redis"
	"github.com/leonart92/pronostiX-sub002/internal/infra/sched"
	stripeinfra "github.com/leonart92/pronostiX-sub002/internal/infra/stripe"
	"github.com/leonart92/pronostiX-sub002/internal/infra/web"
	"github.com/leonart92/pronostiX-sub002/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	guard := red.NewIdempotencyGuard(redisClient)
	limiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	subRepo := pg.NewPostgresSubscriptionRepo(pool)
	payRepo := pg.NewPostgresPaymentRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Stripe ----
	gateway := stripeinfra.NewGateway(cfg.Billing.Stripe.SecretKey, cfg.Billing.Stripe.Timeout, logger)

	// ---- Use cases ----
	catalog, err := usecase.NewPlanCatalog(cfg.Plans)
	if err != nil {
		logger.Fatal().Err(err).Msg("plan catalog")
	}
	subProjection := usecase.NewSubscriptionProjection(subRepo, catalog, txManager, logger)
	ledger := usecase.NewPaymentLedger(payRepo, txManager, logger)
	reconciler := usecase.NewReconcileUseCase(userRepo, subProjection, ledger, catalog, gateway, guard, cfg.Billing.EventGuardTTL, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret)
	server := web.NewServer(cfg, reconciler, subProjection, catalog, auth, limiter, stripeinfra.ParseEvent, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Expiry worker ----
	worker := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, subProjection, userRepo, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
