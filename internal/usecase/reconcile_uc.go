// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
	"github.com/leonart92/pronostiX-sub002/internal/domain/ports/adapter"
	"github.com/leonart92/pronostiX-sub002/internal/domain/ports/repository"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ApplyOutcome tells the transport layer how an event concluded so it can
// acknowledge (or not) accordingly.
type ApplyOutcome string

const (
	OutcomeApplied   ApplyOutcome = "applied"
	OutcomeDuplicate ApplyOutcome = "duplicate"
	OutcomeIgnored   ApplyOutcome = "ignored"
	OutcomeFailed    ApplyOutcome = "failed"
)

// SessionSummary is the reconciled view returned by the pull path.
type SessionSummary struct {
	SubscriptionID    string                   `json:"subscription_id"`
	Status            model.SubscriptionStatus `json:"status"`
	PlanKey           string                   `json:"plan"`
	CurrentPeriodEnd  time.Time                `json:"current_period_end"`
	CancelAtPeriodEnd bool                     `json:"cancel_at_period_end"`
}

// ReconcileUseCase is the orchestrator keeping local User / Subscription /
// Payment state convergent with the provider. The push path ingests webhook
// events; the pull path reads the checkout session and routes the provider
// snapshot through the same projection logic.
type ReconcileUseCase interface {
	ApplyProviderEvent(ctx context.Context, evt *model.ProviderEvent) (ApplyOutcome, error)
	SyncFromSession(ctx context.Context, userID, sessionID string) (*SessionSummary, error)
}

type reconcileUC struct {
	users   repository.UserRepository
	subs    SubscriptionProjection
	ledger  PaymentLedger
	plans   PlanCatalog
	gateway adapter.CheckoutGateway
	guard   adapter.IdempotencyGuard

	guardTTL time.Duration
	log      *zerolog.Logger
}

func NewReconcileUseCase(
	users repository.UserRepository,
	subs SubscriptionProjection,
	ledger PaymentLedger,
	plans PlanCatalog,
	gateway adapter.CheckoutGateway,
	guard adapter.IdempotencyGuard,
	guardTTL time.Duration,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "Reconciler").Logger()
	if guardTTL <= 0 {
		guardTTL = 24 * time.Hour
	}
	return &reconcileUC{
		users:    users,
		subs:     subs,
		ledger:   ledger,
		plans:    plans,
		gateway:  gateway,
		guard:    guard,
		guardTTL: guardTTL,
		log:      &l,
	}
}

func guardKey(eventID string) string { return "evt:" + eventID }

// ApplyProviderEvent applies one provider event. Duplicate delivery is the
// expected steady state and short-circuits to success with no side effects;
// any error is surfaced so the transport can signal the provider to retry.
// The guard is marked only after the dispatch branch committed, so a
// half-applied event stays retryable.
func (uc *reconcileUC) ApplyProviderEvent(ctx context.Context, evt *model.ProviderEvent) (ApplyOutcome, error) {
	if err := evt.Validate(); err != nil {
		return OutcomeFailed, err
	}
	log := uc.log.With().Str("event", evt.ID).Str("type", evt.Type).Logger()

	if seen, err := uc.guard.Seen(ctx, guardKey(evt.ID)); err != nil {
		// The guard is an optimization; the per-payment ledger still holds.
		log.Warn().Err(err).Msg("idempotency guard unavailable")
	} else if seen {
		log.Debug().Msg("duplicate event short-circuited")
		return OutcomeDuplicate, nil
	}

	outcome, err := uc.dispatch(ctx, &log, evt)
	if err != nil {
		log.Error().Err(err).Msg("event dispatch failed")
		return OutcomeFailed, err
	}

	if err := uc.guard.Mark(ctx, guardKey(evt.ID), uc.guardTTL); err != nil {
		log.Warn().Err(err).Msg("idempotency guard mark failed")
	}
	return outcome, nil
}

func (uc *reconcileUC) dispatch(ctx context.Context, log *zerolog.Logger, evt *model.ProviderEvent) (ApplyOutcome, error) {
	switch evt.Type {
	case model.EventCheckoutCompleted:
		return uc.applyCheckoutCompleted(ctx, log, evt)

	case model.EventSubscriptionCreated, model.EventSubscriptionUpdated:
		return uc.applySubscriptionSnapshot(ctx, log, evt)

	case model.EventSubscriptionDeleted:
		return uc.applySubscriptionDeleted(ctx, log, evt)

	case model.EventPaymentSucceeded:
		return uc.applyPaymentSucceeded(ctx, log, evt)

	case model.EventPaymentFailed:
		return uc.applyPaymentFailed(ctx, log, evt)

	case model.EventChargeRefunded:
		return uc.applyChargeRefunded(ctx, log, evt)

	case model.EventDisputeCreated:
		return uc.applyDisputeCreated(ctx, log, evt)

	case model.EventInvoiceSucceeded, model.EventInvoiceFailed:
		// Informational only.
		var inv model.InvoicePayload
		if err := evt.DecodeObject(&inv); err != nil {
			return OutcomeFailed, err
		}
		log.Info().
			Str("invoice", inv.ID).
			Str("subscription", inv.Subscription).
			Int64("amount_due", inv.AmountDue).
			Int64("amount_paid", inv.AmountPaid).
			Msg("invoice event recorded")
		return OutcomeApplied, nil

	default:
		// Unrecognized types are accepted and ignored so the provider's
		// event catalog can grow without breaking delivery.
		log.Debug().Msg("unhandled event type ignored")
		return OutcomeIgnored, nil
	}
}

func (uc *reconcileUC) applyCheckoutCompleted(ctx context.Context, log *zerolog.Logger, evt *model.ProviderEvent) (ApplyOutcome, error) {
	var sess model.CheckoutSessionPayload
	if err := evt.DecodeObject(&sess); err != nil {
		return OutcomeFailed, err
	}
	userID := sess.UserID()
	if userID == "" {
		log.Warn().Str("session", sess.ID).Msg("checkout session has no user reference")
		return OutcomeIgnored, nil
	}

	var sub *model.Subscription
	if sess.Subscription != "" {
		snap := &model.SubscriptionSnapshot{
			SubscriptionID: sess.Subscription,
			CustomerID:     sess.Customer,
			Status:         model.SubscriptionStatusActive,
			EventAt:        evt.CreatedAt,
			UserID:         userID,
			PlanKey:        sess.PlanKey(),
		}
		var err error
		sub, err = uc.subs.Upsert(ctx, snap)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("checkout subscription upsert: %w", err)
		}
	}

	var subID *string
	if sub != nil {
		id := sub.ID
		subID = &id
	}
	if sess.PaymentIntent != "" || sess.ID != "" {
		if _, err := uc.ledger.AttachSession(ctx, SessionAttachment{
			SessionID:      sess.ID,
			IntentID:       sess.PaymentIntent,
			UserID:         userID,
			SubscriptionID: subID,
			Amount:         sess.AmountTotal,
			Currency:       sess.Currency,
			Paid:           sess.PaymentStatus == "paid",
			At:             evt.CreatedAt,
		}); err != nil {
			return OutcomeFailed, fmt.Errorf("checkout payment attach: %w", err)
		}
	}

	if err := uc.updateBillingProfile(ctx, userID, sess.Customer, sub); err != nil {
		return OutcomeFailed, err
	}
	log.Info().Str("session", sess.ID).Str("user", userID).Msg("checkout session reconciled")
	return OutcomeApplied, nil
}

func (uc *reconcileUC) applySubscriptionSnapshot(ctx context.Context, log *zerolog.Logger, evt *model.ProviderEvent) (ApplyOutcome, error) {
	var payload model.SubscriptionPayload
	if err := evt.DecodeObject(&payload); err != nil {
		return OutcomeFailed, err
	}
	snap := payload.Snapshot(evt.CreatedAt)
	if snap.UserID == "" {
		snap.UserID = uc.ownerByCustomer(ctx, snap.CustomerID)
	}
	sub, err := uc.subs.Upsert(ctx, snap)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info().Str("subscription", payload.ID).Msg("snapshot for unknown subscription, nothing to reconcile yet")
			return OutcomeIgnored, nil
		}
		return OutcomeFailed, fmt.Errorf("subscription upsert: %w", err)
	}
	if err := uc.reflectUser(ctx, sub); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeApplied, nil
}

func (uc *reconcileUC) applySubscriptionDeleted(ctx context.Context, log *zerolog.Logger, evt *model.ProviderEvent) (ApplyOutcome, error) {
	var payload model.SubscriptionPayload
	if err := evt.DecodeObject(&payload); err != nil {
		return OutcomeFailed, err
	}
	at := payload.CanceledAt.Time()
	if at.IsZero() {
		at = evt.CreatedAt
	}
	sub, err := uc.subs.Cancel(ctx, payload.ID, at, evt.CreatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info().Str("subscription", payload.ID).Msg("deletion for unknown subscription, nothing to reconcile")
			return OutcomeIgnored, nil
		}
		return OutcomeFailed, fmt.Errorf("subscription cancel: %w", err)
	}
	if err := uc.reflectUser(ctx, sub); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeApplied, nil
}

func (uc *reconcileUC) applyPaymentSucceeded(ctx context.Context, log *zerolog.Logger, evt *model.ProviderEvent) (ApplyOutcome, error) {
	var intent model.PaymentIntentPayload
	if err := evt.DecodeObject(&intent); err != nil {
		return OutcomeFailed, err
	}
	userID := intent.UserID()
	if userID == "" {
		userID = uc.ownerByCustomer(ctx, intent.Customer)
	}
	if _, err := uc.ledger.RecordSuccess(ctx, uc.ledgerEvent(evt), intent.ID, userID, intent.Amount, intent.Currency); err != nil {
		return OutcomeFailed, fmt.Errorf("record success: %w", err)
	}
	return OutcomeApplied, nil
}

func (uc *reconcileUC) applyPaymentFailed(ctx context.Context, log *zerolog.Logger, evt *model.ProviderEvent) (ApplyOutcome, error) {
	var intent model.PaymentIntentPayload
	if err := evt.DecodeObject(&intent); err != nil {
		return OutcomeFailed, err
	}
	if _, err := uc.ledger.RecordFailure(ctx, uc.ledgerEvent(evt), intent.ID, intent.FailureReason()); err != nil {
		return OutcomeFailed, fmt.Errorf("record failure: %w", err)
	}
	return OutcomeApplied, nil
}

func (uc *reconcileUC) applyChargeRefunded(ctx context.Context, log *zerolog.Logger, evt *model.ProviderEvent) (ApplyOutcome, error) {
	var charge model.ChargePayload
	if err := evt.DecodeObject(&charge); err != nil {
		return OutcomeFailed, err
	}
	if charge.PaymentIntent == "" {
		log.Warn().Str("charge", charge.ID).Msg("refund event without payment intent reference")
		return OutcomeIgnored, nil
	}
	refunds := make([]model.Refund, 0, len(charge.Refunds.Data))
	for _, r := range charge.Refunds.Data {
		refunds = append(refunds, model.Refund{
			StripeRefundID: r.ID,
			Amount:         r.Amount,
			Reason:         r.Reason,
			CreatedAt:      r.Created.Time(),
		})
	}
	if _, err := uc.ledger.RecordRefunds(ctx, uc.ledgerEvent(evt), charge.PaymentIntent, refunds); err != nil {
		return OutcomeFailed, fmt.Errorf("record refunds: %w", err)
	}
	return OutcomeApplied, nil
}

func (uc *reconcileUC) applyDisputeCreated(ctx context.Context, log *zerolog.Logger, evt *model.ProviderEvent) (ApplyOutcome, error) {
	var dispute model.DisputePayload
	if err := evt.DecodeObject(&dispute); err != nil {
		return OutcomeFailed, err
	}
	if dispute.PaymentIntent == "" {
		log.Warn().Str("dispute", dispute.ID).Msg("dispute event without payment intent reference")
		return OutcomeIgnored, nil
	}
	if _, err := uc.ledger.RecordDispute(ctx, uc.ledgerEvent(evt), dispute.PaymentIntent, dispute.Reason); err != nil {
		return OutcomeFailed, fmt.Errorf("record dispute: %w", err)
	}
	return OutcomeApplied, nil
}

// SyncFromSession reconciles state from an explicit checkout session lookup.
// The subscription snapshot fetched here flows through the same Upsert used
// by the push path, so both paths converge on identical rows.
func (uc *reconcileUC) SyncFromSession(ctx context.Context, userID, sessionID string) (*SessionSummary, error) {
	if userID == "" || sessionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	log := uc.log.With().Str("user", userID).Str("session", sessionID).Logger()

	sess, err := uc.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve session: %w", err)
	}
	owner := sess.Metadata["user_id"]
	if owner == "" || owner != userID {
		// Security audit trail: a caller probing someone else's session.
		log.Warn().Str("owner", owner).Str("audit", "session_ownership_mismatch").Msg("session sync rejected")
		return nil, domain.ErrUnauthorized
	}
	if !sess.Paid() {
		return nil, domain.ErrSessionUnpaid
	}
	if sess.SubscriptionID == "" {
		return nil, domain.ErrNotFound
	}

	snap, err := uc.gateway.RetrieveSubscription(ctx, sess.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription: %w", err)
	}
	// The pull path reads current provider state; stamp the retrieval time
	// so an explicit sync outranks older queued webhook snapshots.
	snap.EventAt = time.Now()
	snap.UserID = userID
	if snap.PlanKey == "" {
		snap.PlanKey = sess.Metadata["plan"]
	}

	sub, err := uc.subs.Upsert(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("subscription upsert: %w", err)
	}

	var subID *string
	if sub != nil {
		id := sub.ID
		subID = &id
	}
	if sess.PaymentIntentID != "" || sess.ID != "" {
		if _, err := uc.ledger.AttachSession(ctx, SessionAttachment{
			SessionID:      sess.ID,
			IntentID:       sess.PaymentIntentID,
			UserID:         userID,
			SubscriptionID: subID,
			Amount:         sess.AmountTotal,
			Currency:       sess.Currency,
			Paid:           true,
			At:             time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("payment attach: %w", err)
		}
	}

	if err := uc.updateBillingProfile(ctx, userID, sess.CustomerID, sub); err != nil {
		return nil, err
	}

	log.Info().Str("subscription", sub.ID).Str("status", string(sub.Status)).Msg("session sync reconciled")
	return &SessionSummary{
		SubscriptionID:    sub.StripeSubscriptionID,
		Status:            sub.Status,
		PlanKey:           sub.PlanKey,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}, nil
}

// reflectUser is the User Projection Sync: it overwrites the user's cached
// status from the subscription. Pure projection, safe to repeat, never reads
// payments or calls the provider.
func (uc *reconcileUC) reflectUser(ctx context.Context, sub *model.Subscription) error {
	if sub == nil {
		return nil
	}
	user, err := uc.users.FindByID(ctx, repository.NoTX, sub.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.log.Warn().Str("user", sub.UserID).Msg("subscription owner not found, cache reflect skipped")
			return nil
		}
		return err
	}
	user.ReflectSubscription(sub)
	if err := uc.users.Save(ctx, repository.NoTX, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// updateBillingProfile persists the provider customer id on the user and
// reflects the subscription cache in the same synchronous call.
func (uc *reconcileUC) updateBillingProfile(ctx context.Context, userID, customerID string, sub *model.Subscription) error {
	user, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.log.Warn().Str("user", userID).Msg("billing profile owner not found")
			return nil
		}
		return err
	}
	if customerID != "" && user.StripeCustomerID != customerID {
		user.StripeCustomerID = customerID
	}
	if sub != nil {
		user.ReflectSubscription(sub)
	} else {
		user.UpdatedAt = time.Now()
	}
	if err := uc.users.Save(ctx, repository.NoTX, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (uc *reconcileUC) ownerByCustomer(ctx context.Context, customerID string) string {
	if customerID == "" {
		return ""
	}
	user, err := uc.users.FindByCustomerID(ctx, repository.NoTX, customerID)
	if err != nil {
		return ""
	}
	return user.ID
}

func (uc *reconcileUC) ledgerEvent(evt *model.ProviderEvent) LedgerEvent {
	return LedgerEvent{ID: evt.ID, Type: evt.Type, At: evt.CreatedAt}
}
