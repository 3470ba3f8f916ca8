package model

import (
	"encoding/json"
	"time"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
)

// Provider event types this engine reacts to. Anything else is accepted and
// ignored so new provider event kinds never break delivery.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventPaymentSucceeded    = "payment_intent.succeeded"
	EventPaymentFailed       = "payment_intent.payment_failed"
	EventChargeRefunded      = "charge.refunded"
	EventDisputeCreated      = "charge.dispute.created"
	EventInvoiceSucceeded    = "invoice.payment_succeeded"
	EventInvoiceFailed       = "invoice.payment_failed"
)

// ProviderEvent is one signature-verified provider notification. Object is
// the raw JSON of the event's data object; payloads are decoded lazily by
// the branch that needs them so unknown types cost nothing.
type ProviderEvent struct {
	ID        string
	Type      string
	CreatedAt time.Time
	Object    json.RawMessage
}

func (e *ProviderEvent) Validate() error {
	if e.ID == "" || e.Type == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// unixTime decodes provider epoch-second timestamps.
type unixTime int64

func (u unixTime) Time() time.Time {
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(int64(u), 0).UTC()
}

// CheckoutSessionPayload mirrors the provider checkout session object.
type CheckoutSessionPayload struct {
	ID            string            `json:"id"`
	Customer      string            `json:"customer"`
	Subscription  string            `json:"subscription"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

func (p *CheckoutSessionPayload) UserID() string  { return p.Metadata["user_id"] }
func (p *CheckoutSessionPayload) PlanKey() string { return p.Metadata["plan"] }

// SubscriptionPayload mirrors the provider subscription object.
type SubscriptionPayload struct {
	ID                 string   `json:"id"`
	Customer           string   `json:"customer"`
	Status             string   `json:"status"`
	CurrentPeriodStart unixTime `json:"current_period_start"`
	CurrentPeriodEnd   unixTime `json:"current_period_end"`
	CancelAtPeriodEnd  bool     `json:"cancel_at_period_end"`
	CanceledAt         unixTime `json:"canceled_at"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			CurrentPeriodStart unixTime `json:"current_period_start"`
			CurrentPeriodEnd   unixTime `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// Snapshot converts the payload into the authoritative view both
// reconciliation paths share. eventAt is the provider's event creation time.
func (p *SubscriptionPayload) Snapshot(eventAt time.Time) *SubscriptionSnapshot {
	snap := &SubscriptionSnapshot{
		SubscriptionID:    p.ID,
		CustomerID:        p.Customer,
		Status:            SubscriptionStatus(p.Status),
		PeriodStart:       p.CurrentPeriodStart.Time(),
		PeriodEnd:         p.CurrentPeriodEnd.Time(),
		CancelAtPeriodEnd: p.CancelAtPeriodEnd,
		EventAt:           eventAt,
		UserID:            p.Metadata["user_id"],
		PlanKey:           p.Metadata["plan"],
	}
	if t := p.CanceledAt.Time(); !t.IsZero() {
		snap.CancelledAt = &t
	}
	// Newer provider API versions carry the billing period on the item.
	if len(p.Items.Data) > 0 {
		item := p.Items.Data[0]
		snap.PriceID = item.Price.ID
		if snap.PeriodStart.IsZero() {
			snap.PeriodStart = item.CurrentPeriodStart.Time()
		}
		if snap.PeriodEnd.IsZero() {
			snap.PeriodEnd = item.CurrentPeriodEnd.Time()
		}
	}
	return snap
}

// PaymentIntentPayload mirrors the provider payment intent object.
type PaymentIntentPayload struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Customer         string            `json:"customer"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func (p *PaymentIntentPayload) UserID() string { return p.Metadata["user_id"] }

func (p *PaymentIntentPayload) FailureReason() string {
	if p.LastPaymentError == nil {
		return ""
	}
	return p.LastPaymentError.Message
}

// ChargePayload mirrors the provider charge object for refund events.
type ChargePayload struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	AmountRefunded int64  `json:"amount_refunded"`
	Refunds        struct {
		Data []struct {
			ID      string   `json:"id"`
			Amount  int64    `json:"amount"`
			Reason  string   `json:"reason"`
			Created unixTime `json:"created"`
		} `json:"data"`
	} `json:"refunds"`
}

// DisputePayload mirrors the provider dispute object.
type DisputePayload struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
}

// InvoicePayload carries just enough of the invoice object to log it.
type InvoicePayload struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountDue    int64  `json:"amount_due"`
	AmountPaid   int64  `json:"amount_paid"`
}

// DecodeObject decodes the event's data object into dst.
func (e *ProviderEvent) DecodeObject(dst any) error {
	if len(e.Object) == 0 {
		return domain.ErrInvalidArgument
	}
	if err := json.Unmarshal(e.Object, dst); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}
