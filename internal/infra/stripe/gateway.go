package stripe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
	"github.com/leonart92/pronostiX-sub002/internal/domain/ports/adapter"
)

var _ adapter.CheckoutGateway = (*Gateway)(nil)

// Gateway is the read-only Stripe client behind the pull-path sync. It never
// mutates provider state.
type Gateway struct {
	api     *client.API
	timeout time.Duration
	log     *zerolog.Logger
}

func NewGateway(secretKey string, timeout time.Duration, logger *zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	l := logger.With().Str("component", "stripe-gateway").Logger()
	return &Gateway{api: api, timeout: timeout, log: &l}
}

func (g *Gateway) RetrieveSession(ctx context.Context, id string) (*adapter.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, g.mapErr(err, "retrieve session", id)
	}

	out := &adapter.CheckoutSession{
		ID:            sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Currency:      string(sess.Currency),
		Metadata:      sess.Metadata,
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	return out, nil
}

func (g *Gateway) RetrieveSubscription(ctx context.Context, id string) (*model.SubscriptionSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, g.mapErr(err, "retrieve subscription", id)
	}

	snap := &model.SubscriptionSnapshot{
		SubscriptionID:    sub.ID,
		Status:            model.SubscriptionStatus(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		UserID:            sub.Metadata["user_id"],
		PlanKey:           sub.Metadata["plan"],
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if sub.CanceledAt > 0 {
		t := time.Unix(sub.CanceledAt, 0).UTC()
		snap.CancelledAt = &t
	}
	// The billing period lives on the subscription item.
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		snap.PeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		snap.PeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		if item.Price != nil {
			snap.PriceID = item.Price.ID
		}
	}
	return snap, nil
}

func (g *Gateway) mapErr(err error, op, id string) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		if sErr.HTTPStatusCode == http.StatusNotFound {
			return domain.ErrNotFound
		}
		g.log.Warn().Str("op", op).Str("id", id).Int("status", sErr.HTTPStatusCode).Msg("stripe api error")
		return domain.ErrUpstreamUnavailable
	}
	g.log.Warn().Str("op", op).Str("id", id).Err(err).Msg("stripe transport error")
	return domain.ErrUpstreamUnavailable
}
