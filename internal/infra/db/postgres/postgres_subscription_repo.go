package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
	"github.com/leonart92/pronostiX-sub002/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)

type PostgresSubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSubscriptionRepo(pool *pgxpool.Pool) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{pool: pool}
}

const subColumns = `id, user_id, plan_key, stripe_subscription_id, stripe_customer_id, stripe_price_id,
  status, start_at, end_at, current_period_start, current_period_end, cancel_at_period_end, cancelled_at,
  amount, currency, last_event_at, created_at, updated_at`

func (r *PostgresSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, plan_key, stripe_subscription_id, stripe_customer_id, stripe_price_id,
  status, start_at, end_at, current_period_start, current_period_end, cancel_at_period_end, cancelled_at,
  amount, currency, last_event_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
) ON CONFLICT (id) DO UPDATE SET
  plan_key=$3, stripe_subscription_id=$4, stripe_customer_id=$5, stripe_price_id=$6,
  status=$7, start_at=$8, end_at=$9, current_period_start=$10, current_period_end=$11,
  cancel_at_period_end=$12, cancelled_at=$13, amount=$14, currency=$15, last_event_at=$16, updated_at=$18;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanKey, s.StripeSubscriptionID, s.StripeCustomerID, s.StripePriceID,
		s.Status, s.StartAt, s.EndAt, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CancelAtPeriodEnd, s.CancelledAt,
		s.Amount, s.Currency, s.LastEventAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *PostgresSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q, id)
}

func (r *PostgresSubscriptionRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE stripe_subscription_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q, externalID)
}

func (r *PostgresSubscriptionRepo) FindCurrentByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions
  WHERE user_id=$1 AND status IN ('active','trialing')
  ORDER BY created_at DESC LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q, userID)
}

func (r *PostgresSubscriptionRepo) ListLapsed(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + subColumns + ` FROM subscriptions
  WHERE status IN ('active','trialing') AND current_period_end < $1
  ORDER BY current_period_end ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, asOf, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func (r *PostgresSubscriptionRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q+";", args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	if err := row.Scan(
		&s.ID, &s.UserID, &s.PlanKey, &s.StripeSubscriptionID, &s.StripeCustomerID, &s.StripePriceID,
		&s.Status, &s.StartAt, &s.EndAt, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.CancelledAt,
		&s.Amount, &s.Currency, &s.LastEventAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}
