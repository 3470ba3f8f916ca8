// File: internal/usecase/payment_uc.go
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
	"github.com/leonart92/pronostiX-sub002/internal/infra/metrics"
)

// Compile-time check
var _ PaymentLedger = (*paymentUC)(nil)

// LedgerEvent identifies the provider event a ledger mutation is applied
// under. The event id is appended to the payment's applied-event list in the
// same row write as the mutation it guards.
type LedgerEvent struct {
	ID   string
	Type string
	At   time.Time
}

// PaymentLedger owns Payment rows: attempts, successes, failures, refunds
// and disputes. Every state-mutating call is idempotent per event id.
type PaymentLedger interface {
	// RecordSuccess marks the payment for the intent succeeded, creating the
	// row when absent (the success payload carries amount and currency).
	RecordSuccess(ctx context.Context, evt LedgerEvent, intentID, userID string, amount int64, currency string) (*model.Payment, error)
	// RecordFailure marks an existing payment failed. A failed intent with no
	// prior row is logged and skipped: a failure-only payload has no reliable
	// amount or currency to synthesize a row from.
	RecordFailure(ctx context.Context, evt LedgerEvent, intentID, reason string) (*model.Payment, error)
	// RecordRefunds appends refund records and recomputes status.
	RecordRefunds(ctx context.Context, evt LedgerEvent, intentID string, refunds []model.Refund) (*model.Payment, error)
	// RecordDispute marks the payment disputed.
	RecordDispute(ctx context.Context, evt LedgerEvent, intentID, reason string) (*model.Payment, error)
	// AttachSession reconciles a payment retroactively from a checkout
	// session, creating the row if no row exists for the session or intent.
	AttachSession(ctx context.Context, sess SessionAttachment) (*model.Payment, error)
}

// SessionAttachment carries the checkout-session fields needed to reconcile
// a payment row outside the intent event flow.
type SessionAttachment struct {
	SessionID      string
	IntentID       string
	UserID         string
	SubscriptionID *string
	Amount         int64
	Currency       string
	Paid           bool
	At             time.Time
}

type paymentUC struct {
	payments repository.PaymentRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewPaymentLedger(payments repository.PaymentRepository, tm repository.TransactionManager, logger *zerolog.Logger) *paymentUC {
	l := logger.With().Str("component", "PaymentLedger").Logger()
	return &paymentUC{payments: payments, tm: tm, log: &l}
}

func (uc *paymentUC) RecordSuccess(ctx context.Context, evt LedgerEvent, intentID, userID string, amount int64, currency string) (*model.Payment, error) {
	var out *model.Payment
	applied := false
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.payments.FindByIntentID(ctx, tx, intentID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if p == nil {
			if userID == "" {
				// No row and no owner: accept the event, reconcile later
				// from the checkout session.
				uc.log.Info().Str("intent", intentID).Msg("success event for unknown intent without owner")
				return nil
			}
			p, err = model.NewPayment(uuid.NewString(), userID, amount, currency, evt.At)
			if err != nil {
				return err
			}
			p.StripePaymentIntentID = intentID
		}
		if p.HasEvent(evt.ID) {
			out = p
			return nil
		}
		p.MarkSucceeded(evt.At)
		p.RecordEvent(evt.Type, evt.ID, evt.At)
		if err := uc.payments.Save(ctx, tx, p); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		out = p
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if applied {
		metrics.IncPayment(string(model.PaymentStatusSucceeded))
	}
	return out, nil
}

func (uc *paymentUC) RecordFailure(ctx context.Context, evt LedgerEvent, intentID, reason string) (*model.Payment, error) {
	var out *model.Payment
	applied := false
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.payments.FindByIntentID(ctx, tx, intentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				uc.log.Info().Str("intent", intentID).Str("reason", reason).Msg("failure event for unknown intent, nothing to reconcile")
				return nil
			}
			return err
		}
		if p.HasEvent(evt.ID) {
			out = p
			return nil
		}
		p.MarkFailed(reason, evt.At)
		p.RecordEvent(evt.Type, evt.ID, evt.At)
		if err := uc.payments.Save(ctx, tx, p); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		out = p
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if applied {
		metrics.IncPayment(string(model.PaymentStatusFailed))
	}
	return out, nil
}

func (uc *paymentUC) RecordRefunds(ctx context.Context, evt LedgerEvent, intentID string, refunds []model.Refund) (*model.Payment, error) {
	var out *model.Payment
	var refundedDelta int64
	var currency string
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.payments.FindByIntentID(ctx, tx, intentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				uc.log.Warn().Str("intent", intentID).Msg("refund event for unknown intent, nothing to reconcile")
				return nil
			}
			return err
		}
		if p.HasEvent(evt.ID) {
			out = p
			return nil
		}
		before := p.RefundedAmount()
		for _, r := range refunds {
			p.ApplyRefund(r.StripeRefundID, r.Amount, r.Reason, r.CreatedAt)
		}
		p.RecordEvent(evt.Type, evt.ID, evt.At)
		if err := uc.payments.Save(ctx, tx, p); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		out = p
		refundedDelta = p.RefundedAmount() - before
		currency = p.Currency
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refundedDelta > 0 {
		metrics.AddRefundAmount(currency, refundedDelta)
	}
	return out, nil
}

func (uc *paymentUC) RecordDispute(ctx context.Context, evt LedgerEvent, intentID, reason string) (*model.Payment, error) {
	var out *model.Payment
	applied := false
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.payments.FindByIntentID(ctx, tx, intentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				uc.log.Warn().Str("intent", intentID).Str("reason", reason).Msg("dispute event for unknown intent, nothing to reconcile")
				return nil
			}
			return err
		}
		if p.HasEvent(evt.ID) {
			out = p
			return nil
		}
		p.MarkDisputed(evt.At)
		p.RecordEvent(evt.Type, evt.ID, evt.At)
		if err := uc.payments.Save(ctx, tx, p); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		out = p
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if applied {
		metrics.IncPayment(string(model.PaymentStatusDisputed))
	}
	return out, nil
}

func (uc *paymentUC) AttachSession(ctx context.Context, sess SessionAttachment) (*model.Payment, error) {
	var out *model.Payment
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.findForSession(ctx, tx, sess)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		created := false
		if p == nil {
			p, err = model.NewPayment(uuid.NewString(), sess.UserID, sess.Amount, sess.Currency, sess.At)
			if err != nil {
				return err
			}
			if sess.Paid {
				p.MarkSucceeded(sess.At)
			}
			created = true
		}
		changed := created
		if p.StripeSessionID == "" && sess.SessionID != "" {
			p.StripeSessionID = sess.SessionID
			changed = true
		}
		if p.StripePaymentIntentID == "" && sess.IntentID != "" {
			p.StripePaymentIntentID = sess.IntentID
			changed = true
		}
		if p.SubscriptionID == nil && sess.SubscriptionID != nil {
			p.SubscriptionID = sess.SubscriptionID
			changed = true
		}
		if !changed {
			// Existing row already carries everything the session knows.
			out = p
			return nil
		}
		if err := uc.payments.Save(ctx, tx, p); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// findForSession prefers the intent id (the stable identity) and falls back
// to the session id for rows created before the intent id was known.
func (uc *paymentUC) findForSession(ctx context.Context, tx repository.Tx, sess SessionAttachment) (*model.Payment, error) {
	if sess.IntentID != "" {
		if p, err := uc.payments.FindByIntentID(ctx, tx, sess.IntentID); err == nil {
			return p, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if sess.SessionID != "" {
		return uc.payments.FindBySessionID(ctx, tx, sess.SessionID)
	}
	return nil, domain.ErrNotFound
}
