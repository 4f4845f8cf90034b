package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/bpms/internal/repository"
)

// DB is satisfied by both *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const defaultTxAttempts = 3

type Store struct {
	pool     *pgxpool.Pool
	attempts int
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		attempts: defaultTxAttempts,
	}
}

// RunTx runs fn in a serializable transaction, retrying on serialization
// failures and deadlocks.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, kv repository.KV) error,
) error {
	var err error
	for range s.attempts {
		err = s.runTxOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return errors.Join(err, ctx.Err())
		}
	}

	return err
}

func (s *Store) runTxOnce(
	ctx context.Context,
	fn func(ctx context.Context, kv repository.KV) error,
) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, s.KV().With(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) KV() *KVRepo { return &KVRepo{pool: s.pool} }

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.KV().Get(ctx, key)
}

func (s *Store) Set(ctx context.Context, key string, val []byte) error {
	return s.KV().Set(ctx, key, val)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.KV().Delete(ctx, key)
}
