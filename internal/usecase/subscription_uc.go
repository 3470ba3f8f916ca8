// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
	"github.com/leonart92/pronostiX-sub002/internal/domain/ports/repository"
)

// Compile-time check
var _ SubscriptionProjection = (*subscriptionUC)(nil)

// SubscriptionProjection owns the Subscription entity lifecycle. Upsert is
// the single entry point both reconciliation paths share, so push and pull
// cannot produce divergent rows for the same external id.
type SubscriptionProjection interface {
	// Upsert applies an authoritative provider snapshot: lookup by external
	// id, fallback to the user's current entitled row, create from the
	// catalog when neither exists. Snapshots older than the row's
	// last-applied marker are dropped.
	Upsert(ctx context.Context, snap *model.SubscriptionSnapshot) (*model.Subscription, error)
	// Cancel transitions the row for the external id to cancelled.
	Cancel(ctx context.Context, externalID string, at, eventAt time.Time) (*model.Subscription, error)
	// FinishLapsed expires entitled rows whose period end passed before asOf
	// and returns the rows it transitioned.
	FinishLapsed(ctx context.Context, asOf time.Time, limit int) ([]*model.Subscription, error)
	FindCurrent(ctx context.Context, userID string) (*model.Subscription, error)
}

type subscriptionUC struct {
	subs  repository.SubscriptionRepository
	plans PlanCatalog
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewSubscriptionProjection(subs repository.SubscriptionRepository, plans PlanCatalog, tm repository.TransactionManager, logger *zerolog.Logger) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionProjection").Logger()
	return &subscriptionUC{subs: subs, plans: plans, tm: tm, log: &l}
}

func (uc *subscriptionUC) Upsert(ctx context.Context, snap *model.SubscriptionSnapshot) (*model.Subscription, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	var out *model.Subscription
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByExternalID(ctx, tx, snap.SubscriptionID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if sub == nil {
			sub, err = uc.adoptOrCreate(ctx, tx, snap)
			if err != nil {
				return err
			}
		}
		if !sub.ApplySnapshot(snap) {
			uc.log.Debug().
				Str("subscription", sub.ID).
				Time("event_at", snap.EventAt).
				Time("last_event_at", sub.LastEventAt).
				Msg("stale snapshot dropped")
			out = sub
			return nil
		}
		if err := uc.subs.Save(ctx, tx, sub); err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// adoptOrCreate resolves the local row for a snapshot with no external-id
// match: the user's current entitled row is adopted (it was created before
// the external id was known), otherwise a fresh row is seeded from the
// catalog. This lookup is also the best-effort guard keeping a user at one
// entitled subscription.
func (uc *subscriptionUC) adoptOrCreate(ctx context.Context, tx repository.Tx, snap *model.SubscriptionSnapshot) (*model.Subscription, error) {
	if snap.UserID != "" {
		current, err := uc.subs.FindCurrentByUser(ctx, tx, snap.UserID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if current != nil {
			return current, nil
		}
	}

	plan := uc.resolvePlan(snap)
	if snap.UserID == "" {
		// No local row and no owner hint: nothing to reconcile yet.
		return nil, domain.ErrNotFound
	}
	if plan.IsZero() {
		uc.log.Warn().
			Str("price_id", snap.PriceID).
			Str("plan_key", snap.PlanKey).
			Msg("snapshot references no known plan")
		plan = &model.Plan{Key: snap.PlanKey, DurationDays: 30}
	}
	sub, err := model.NewSubscription(uuid.NewString(), snap.UserID, plan, snap.SubscriptionID, snap.CustomerID, time.Now())
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (uc *subscriptionUC) resolvePlan(snap *model.SubscriptionSnapshot) *model.Plan {
	if snap.PriceID != "" {
		if p, err := uc.plans.ByPriceID(snap.PriceID); err == nil {
			return p
		}
	}
	if snap.PlanKey != "" {
		if p, err := uc.plans.ByKey(snap.PlanKey); err == nil {
			return p
		}
	}
	return nil
}

func (uc *subscriptionUC) Cancel(ctx context.Context, externalID string, at, eventAt time.Time) (*model.Subscription, error) {
	var out *model.Subscription
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByExternalID(ctx, tx, externalID)
		if err != nil {
			return err
		}
		if eventAt.Before(sub.LastEventAt) {
			out = sub
			return nil
		}
		sub.Cancel(at)
		sub.LastEventAt = eventAt
		if err := uc.subs.Save(ctx, tx, sub); err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *subscriptionUC) FinishLapsed(ctx context.Context, asOf time.Time, limit int) ([]*model.Subscription, error) {
	lapsed, err := uc.subs.ListLapsed(ctx, repository.NoTX, asOf, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]*model.Subscription, 0, len(lapsed))
	for _, sub := range lapsed {
		err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			fresh, err := uc.subs.FindByID(ctx, tx, sub.ID)
			if err != nil {
				return err
			}
			if !fresh.Status.Entitled() || asOf.Before(fresh.CurrentPeriodEnd) {
				return nil
			}
			fresh.Status = model.SubscriptionStatusExpired
			fresh.UpdatedAt = time.Now()
			if err := uc.subs.Save(ctx, tx, fresh); err != nil {
				return err
			}
			out = append(out, fresh)
			return nil
		})
		if err != nil {
			uc.log.Error().Err(err).Str("subscription", sub.ID).Msg("finish lapsed subscription")
		}
	}
	return out, nil
}

func (uc *subscriptionUC) FindCurrent(ctx context.Context, userID string) (*model.Subscription, error) {
	return uc.subs.FindCurrentByUser(ctx, repository.NoTX, userID)
}
