package model

import (
	"time"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusDisputed  PaymentStatus = "disputed"
)

// Refund is one provider refund applied to a payment. Records are appended,
// never mutated or removed.
type Refund struct {
	StripeRefundID string    `json:"stripe_refund_id"`
	Amount         int64     `json:"amount"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// AppliedEvent is one ledger entry marking a provider event as applied to
// this payment. The embedded list is the idempotency ledger: re-delivery of
// a recorded event id must be a no-op.
type AppliedEvent struct {
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	AppliedAt time.Time `json:"applied_at"`
}

// Payment records one payment attempt. Rows reconciled from a checkout
// session may temporarily lack the intent id.
type Payment struct {
	ID             string  // UUID
	UserID         string  // UUID
	SubscriptionID *string // UUID, set once the subscription row exists

	StripePaymentIntentID string // external id, unique when present
	StripeSessionID       string

	Amount   int64 // minor units
	Currency string
	Status   PaymentStatus

	PaidAt        *time.Time
	FailedAt      *time.Time
	RefundedAt    *time.Time
	FailureReason string

	Refunds       []Refund
	AppliedEvents []AppliedEvent

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPayment(id, userID string, amount int64, currency string, now time.Time) (*Payment, error) {
	if id == "" || userID == "" || amount < 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Payment{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Status:    PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasEvent reports whether the provider event id has already been applied.
func (p *Payment) HasEvent(eventID string) bool {
	for _, e := range p.AppliedEvents {
		if e.EventID == eventID {
			return true
		}
	}
	return false
}

// RecordEvent appends a ledger entry for the event. Callers append in the
// same row write as the mutation it guards, so the ledger never records an
// uncommitted change.
func (p *Payment) RecordEvent(eventType, eventID string, at time.Time) {
	if p.HasEvent(eventID) {
		return
	}
	p.AppliedEvents = append(p.AppliedEvents, AppliedEvent{
		EventType: eventType,
		EventID:   eventID,
		AppliedAt: at,
	})
	p.UpdatedAt = at
}

// MarkSucceeded transitions to succeeded and stamps the paid time.
func (p *Payment) MarkSucceeded(at time.Time) {
	p.Status = PaymentStatusSucceeded
	if p.PaidAt == nil {
		p.PaidAt = &at
	}
	p.UpdatedAt = at
}

// MarkFailed transitions to failed with the provider's reason.
func (p *Payment) MarkFailed(reason string, at time.Time) {
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	if p.FailedAt == nil {
		p.FailedAt = &at
	}
	p.UpdatedAt = at
}

// MarkDisputed transitions to disputed. Dispute records, like refunds, only
// ever accumulate.
func (p *Payment) MarkDisputed(at time.Time) {
	p.Status = PaymentStatusDisputed
	p.UpdatedAt = at
}

// ApplyRefund appends a refund record (deduplicated by refund id) and
// recomputes status: once cumulative refunds reach the original amount the
// payment becomes refunded and the refund time is stamped. Partial refunds
// leave the status untouched.
func (p *Payment) ApplyRefund(refundID string, amount int64, reason string, at time.Time) bool {
	for _, r := range p.Refunds {
		if r.StripeRefundID == refundID {
			return false
		}
	}
	p.Refunds = append(p.Refunds, Refund{
		StripeRefundID: refundID,
		Amount:         amount,
		Reason:         reason,
		CreatedAt:      at,
	})
	if p.RefundedAmount() >= p.Amount {
		p.Status = PaymentStatusRefunded
		if p.RefundedAt == nil {
			p.RefundedAt = &at
		}
	}
	p.UpdatedAt = at
	return true
}

func (p *Payment) RefundedAmount() int64 {
	var sum int64
	for _, r := range p.Refunds {
		sum += r.Amount
	}
	return sum
}

// NetAmount is the original amount minus cumulative refunds.
func (p *Payment) NetAmount() int64 {
	return p.Amount - p.RefundedAmount()
}
