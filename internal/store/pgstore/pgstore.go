// Package pgstore implements store.Store on PostgreSQL via pgx. Each store.Tx
// is one pgx transaction; mutex rows live outside transactions so a taken
// lock is visible to competing spawners immediately.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erauner12/hubmirror/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return &tx{tx: pgtx}, nil
}

// AcquireMutex claims the named lock row. ON CONFLICT DO NOTHING turns the
// losing insert into zero affected rows instead of an error.
func (s *Store) AcquireMutex(ctx context.Context, name, holder string) (bool, error) {
	ct, err := s.pool.Exec(ctx, `
		INSERT INTO mutexes (name, holder)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (name) DO NOTHING
	`, name, holder)
	if err != nil {
		return false, mapErr(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *Store) ReleaseMutex(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM mutexes WHERE name = $1`, name)
	return mapErr(err)
}

type tx struct {
	tx pgx.Tx
}

var _ store.Tx = (*tx)(nil)

// lastReplicated is the effective freshness instant of a row. Rows never
// stamped on a channel compare as -infinity, so a never-replicated row is
// older than any cutoff.
const lastReplicated = `GREATEST(
	COALESCE(last_replicated_via_webhook_at, '-infinity'::timestamptz),
	COALESCE(last_replicated_via_api_at, '-infinity'::timestamptz)
)`

func (t *tx) Commit(ctx context.Context) error {
	return mapErr(t.tx.Commit(ctx))
}

func (t *tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return mapErr(err)
	}
	return nil
}

// mapErr folds driver errors into the store's sentinels: no rows becomes
// ErrNotFound and SQLSTATE class 23 (unique, foreign key, not null) becomes
// ErrIntegrity so workers know the write is retryable.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%s (%s): %w", pgErr.ConstraintName, pgErr.Code, store.ErrIntegrity)
	}
	return err
}
