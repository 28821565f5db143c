package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Queryer is the subset of pgx shared by a pool and a transaction.
type Queryer interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// TxManager runs a function as one all-or-nothing unit. A call made while the context already
// carries a unit joins it instead of opening a nested one.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type txState struct {
	tx          pgx.Tx
	outer       context.Context
	afterCommit []func(ctx context.Context)
}

func stateFrom(ctx context.Context) (*txState, bool) {
	state, ok := ctx.Value(txKey{}).(*txState)
	return state, ok
}

// InTransaction reports whether ctx belongs to an open unit.
func InTransaction(ctx context.Context) bool {
	_, ok := stateFrom(ctx)
	return ok
}

// AfterCommit registers fn to run once the outermost unit commits. Nothing runs on rollback.
// Outside a unit fn runs immediately. fn receives a context without the transaction attached.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	state, ok := stateFrom(ctx)
	if !ok {
		fn(ctx)
		return
	}
	state.afterCommit = append(state.afterCommit, fn)
}

func runAfterCommit(state *txState) {
	for _, fn := range state.afterCommit {
		fn(state.outer)
	}
}

type PgxTxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *PgxTxManager {
	return &PgxTxManager{pool: pool}
}

func (m *PgxTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	state := &txState{tx: tx, outer: ctx}
	if err := fn(context.WithValue(ctx, txKey{}, state)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	runAfterCommit(state)
	return nil
}

// QueryerFrom returns the transaction carried by ctx, or the pool when there is none.
func QueryerFrom(ctx context.Context, pool *pgxpool.Pool) Queryer {
	if state, ok := stateFrom(ctx); ok && state.tx != nil {
		return state.tx
	}
	return pool
}
