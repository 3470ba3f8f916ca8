package repository

import (
	"context"

	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByCustomerID(ctx context.Context, tx Tx, customerID string) (*model.User, error)
}
