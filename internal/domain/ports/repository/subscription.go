package repository

import (
	"context"
	"time"

	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
)

// SubscriptionRepository is the port for subscription rows.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	// FindByExternalID looks a row up by the provider subscription id.
	FindByExternalID(ctx context.Context, tx Tx, externalID string) (*model.Subscription, error)
	// FindCurrentByUser returns the most recent subscription still in an
	// entitled status (active or trialing) for the user.
	FindCurrentByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// ListLapsed returns entitled rows whose period end passed before asOf.
	ListLapsed(ctx context.Context, tx Tx, asOf time.Time, limit int) ([]*model.Subscription, error)
}
