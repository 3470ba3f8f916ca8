package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
	"github.com/leonart92/pronostiX-sub002/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `id, email, username, stripe_customer_id, subscription_status, subscription_id, registered_at, updated_at`

func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (
  id, email, username, stripe_customer_id, subscription_status, subscription_id, registered_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
) ON CONFLICT (id) DO UPDATE SET
  email=$2, username=$3, stripe_customer_id=$4, subscription_status=$5, subscription_id=$6, updated_at=$8;`

	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.Username, u.StripeCustomerID, u.SubscriptionStatus, u.SubscriptionID, u.RegisteredAt, u.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q, id)
}

func (r *PostgresUserRepo) FindByCustomerID(ctx context.Context, tx repository.Tx, customerID string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id=$1 LIMIT 1`
	return r.scanOne(ctx, tx, q, customerID)
}

func (r *PostgresUserRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, q+";", args...)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.StripeCustomerID, &u.SubscriptionStatus, &u.SubscriptionID, &u.RegisteredAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &u, nil
}
