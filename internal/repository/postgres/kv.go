package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/bpms/internal/repository"
)

type KVRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *KVRepo) With(db DB) *KVRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *KVRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *KVRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const op = "postgres.KVRepo.Get"

	var val []byte
	err := r.handle().QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`,
		key,
	).Scan(&val)
	if err != nil {
		err = wrapDBErr(op, err)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return val, true, nil
}

func (r *KVRepo) Set(ctx context.Context, key string, val []byte) error {
	const op = "postgres.KVRepo.Set"

	_, err := r.handle().Exec(ctx,
		`INSERT INTO kv_entries(key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, val,
	)

	return wrapDBErr(op, err)
}

func (r *KVRepo) Delete(ctx context.Context, key string) error {
	const op = "postgres.KVRepo.Delete"

	_, err := r.handle().Exec(ctx,
		`DELETE FROM kv_entries WHERE key = $1`,
		key,
	)

	return wrapDBErr(op, err)
}
