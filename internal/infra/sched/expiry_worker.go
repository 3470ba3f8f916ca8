package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
	"github.com/leonart92/pronostiX-sub002/internal/domain/ports/repository"
	"github.com/leonart92/pronostiX-sub002/internal/infra/metrics"
	"github.com/leonart92/pronostiX-sub002/internal/usecase"
)

const expiryBatchSize = 200

// ExpiryWorker periodically expires subscriptions whose paid period lapsed
// without a provider renewal event, then refreshes the owners' cached status.
// Provider-driven cancellation stays authoritative; this is the local
// backstop for the missed-webhook case.
type ExpiryWorker struct {
	interval time.Duration
	subs     usecase.SubscriptionProjection
	users    repository.UserRepository
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subs usecase.SubscriptionProjection, users repository.UserRepository, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		subs:     subs,
		users:    users,
		log:      &l,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	expired, err := w.subs.FinishLapsed(ctx, time.Now(), expiryBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if len(expired) == 0 {
		return
	}
	for _, sub := range expired {
		w.reflectOwner(ctx, sub)
	}
	metrics.IncSubscriptionsExpired(len(expired))
	w.log.Info().Int("count", len(expired)).Msg("subscriptions expired")
}

func (w *ExpiryWorker) reflectOwner(ctx context.Context, sub *model.Subscription) {
	user, err := w.users.FindByID(ctx, repository.NoTX, sub.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		w.log.Error().Err(err).Str("user", sub.UserID).Msg("load owner for cache reflect")
		return
	}
	user.ReflectSubscription(sub)
	if err := w.users.Save(ctx, repository.NoTX, user); err != nil {
		w.log.Error().Err(err).Str("user", sub.UserID).Msg("save owner cache")
	}
}
