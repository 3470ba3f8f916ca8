package repository

import (
	"context"

	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
)

// PaymentRepository is the port for payment rows. Save upserts the whole row,
// refund and applied-event lists included, so a mutation and its ledger entry
// commit together.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindByIntentID looks a row up by the provider payment-intent id.
	FindByIntentID(ctx context.Context, tx Tx, intentID string) (*model.Payment, error)
	FindBySessionID(ctx context.Context, tx Tx, sessionID string) (*model.Payment, error)
}
