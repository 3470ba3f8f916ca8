package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/leonart92/pronostiX-sub002/internal/config"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
	"github.com/leonart92/pronostiX-sub002/internal/usecase"
)

// WebhookParser verifies a provider webhook payload against its signature
// header and decodes the envelope.
type WebhookParser func(payload []byte, sigHeader, secret string) (*model.ProviderEvent, error)

// RateLimiter is the per-user request limiter behind the sync endpoint.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Server struct {
	reconcile usecase.ReconcileUseCase
	subs      usecase.SubscriptionProjection
	plans     usecase.PlanCatalog
	auth      *AuthManager
	limiter   RateLimiter
	parse     WebhookParser

	webhookSecret string
	rateLimit     int
	rateWindow    time.Duration

	log *zerolog.Logger
	srv *http.Server
}

func NewServer(
	cfg *config.Config,
	reconcile usecase.ReconcileUseCase,
	subs usecase.SubscriptionProjection,
	plans usecase.PlanCatalog,
	auth *AuthManager,
	limiter RateLimiter,
	parse WebhookParser,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	s := &Server{
		reconcile:     reconcile,
		subs:          subs,
		plans:         plans,
		auth:          auth,
		limiter:       limiter,
		parse:         parse,
		webhookSecret: cfg.Billing.Stripe.WebhookSecret,
		rateLimit:     cfg.Sync.RateLimit,
		rateWindow:    cfg.Sync.RateWindow,
		log:           &l,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID)
	r.Use(Recover(s.log))
	r.Use(RequestLog(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhook/stripe", s.handleStripeWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", s.handlePlans)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireUser)
			r.Post("/billing/sync", s.handleSessionSync)
			r.Get("/billing/subscription", s.handleCurrentSubscription)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
