package stripe

import (
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
)

// ParseEvent verifies the webhook signature and decodes the envelope. A bad
// signature or malformed envelope yields domain.ErrUnauthorized or
// domain.ErrInvalidArgument so the handler can reject without retry.
func ParseEvent(payload []byte, sigHeader, secret string) (*model.ProviderEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	out := &model.ProviderEvent{
		ID:        evt.ID,
		Type:      string(evt.Type),
		CreatedAt: time.Unix(evt.Created, 0).UTC(),
		Object:    evt.Data.Raw,
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
