package model

import "github.com/leonart92/pronostiX-sub002/internal/domain"

// Plan is one purchasable plan: a fixed duration and price plus the provider
// price identifier used at checkout. Pure catalog data, no lifecycle.
type Plan struct {
	Key           string // stable catalog key, e.g. "monthly"
	Name          string
	Amount        int64 // minor units
	Currency      string
	DurationDays  int
	StripePriceID string
}

func (p *Plan) IsZero() bool { return p == nil || p.Key == "" }

func NewPlan(key, name string, amount int64, currency string, durationDays int, priceID string) (*Plan, error) {
	if key == "" || name == "" || amount <= 0 || currency == "" || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		Key:           key,
		Name:          name,
		Amount:        amount,
		Currency:      currency,
		DurationDays:  durationDays,
		StripePriceID: priceID,
	}, nil
}
