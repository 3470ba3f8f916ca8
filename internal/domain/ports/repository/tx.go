package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Repositories accept it alongside ctx
// and resolve the concrete executor on the infra side (pgx.Tx for Postgres);
// nil means the non-transactional path.
type Tx interface{}

// NoTX is passed where no transaction is in flight.
var NoTX Tx

// TransactionManager executes fn inside one database transaction, handing it
// the tx handle to pass back into repositories. fn returning an error rolls
// the transaction back. Used wherever a read-modify-write on a single record
// must be atomic (the engine never spans entities in one transaction).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
