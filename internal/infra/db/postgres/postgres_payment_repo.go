package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
	"github.com/leonart92/pronostiX-sub002/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*PostgresPaymentRepo)(nil)

// PostgresPaymentRepo persists payments with the refund list and the
// applied-event ledger as JSONB columns, so a status mutation and its ledger
// entry land in one row write.
type PostgresPaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPaymentRepo(pool *pgxpool.Pool) *PostgresPaymentRepo {
	return &PostgresPaymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, subscription_id, stripe_payment_intent_id, stripe_session_id,
  amount, currency, status, paid_at, failed_at, refunded_at, failure_reason,
  refunds, applied_events, created_at, updated_at`

func (r *PostgresPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	refunds, err := json.Marshal(p.Refunds)
	if err != nil {
		return domain.ErrOperationFailed
	}
	events, err := json.Marshal(p.AppliedEvents)
	if err != nil {
		return domain.ErrOperationFailed
	}

	const q = `
INSERT INTO payments (
  id, user_id, subscription_id, stripe_payment_intent_id, stripe_session_id,
  amount, currency, status, paid_at, failed_at, refunded_at, failure_reason,
  refunds, applied_events, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (id) DO UPDATE SET
  subscription_id=$3, stripe_payment_intent_id=$4, stripe_session_id=$5,
  amount=$6, currency=$7, status=$8, paid_at=$9, failed_at=$10, refunded_at=$11,
  failure_reason=$12, refunds=$13, applied_events=$14, updated_at=$16;`

	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.SubscriptionID, p.StripePaymentIntentID, p.StripeSessionID,
		p.Amount, p.Currency, p.Status, p.PaidAt, p.FailedAt, p.RefundedAt, p.FailureReason,
		refunds, events, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *PostgresPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q, id)
}

func (r *PostgresPaymentRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE stripe_payment_intent_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q, intentID)
}

func (r *PostgresPaymentRepo) FindBySessionID(ctx context.Context, tx repository.Tx, sessionID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE stripe_session_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q, sessionID)
}

func (r *PostgresPaymentRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Payment, error) {
	row, err := pickRow(ctx, r.pool, tx, q+";", args...)
	if err != nil {
		return nil, err
	}

	var (
		p       model.Payment
		refunds []byte
		events  []byte
	)
	if err := row.Scan(
		&p.ID, &p.UserID, &p.SubscriptionID, &p.StripePaymentIntentID, &p.StripeSessionID,
		&p.Amount, &p.Currency, &p.Status, &p.PaidAt, &p.FailedAt, &p.RefundedAt, &p.FailureReason,
		&refunds, &events, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}

	if len(refunds) > 0 {
		if err := json.Unmarshal(refunds, &p.Refunds); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &p.AppliedEvents); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &p, nil
}
