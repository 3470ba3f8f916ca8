package adapter

import (
	"context"

	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
)

// CheckoutSession is the gateway's view of a provider checkout session.
type CheckoutSession struct {
	ID              string
	PaymentStatus   string // "paid" | "unpaid" | "no_payment_required"
	CustomerID      string
	SubscriptionID  string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	Metadata        map[string]string
}

func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
}

// CheckoutGateway reads authoritative state from the billing provider. It is
// consumed by the pull path only and never mutates provider state. Both calls
// must be bounded by the caller's context deadline; implementations map
// not-found to domain.ErrNotFound and transport failures to
// domain.ErrUpstreamUnavailable.
type CheckoutGateway interface {
	RetrieveSession(ctx context.Context, id string) (*CheckoutSession, error)
	RetrieveSubscription(ctx context.Context, id string) (*model.SubscriptionSnapshot, error)
}
