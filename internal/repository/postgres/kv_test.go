package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pg "github.com/kirinyoku/bpms/internal/postgres"
	"github.com/kirinyoku/bpms/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_DATABASE_URL and skips the test when it is
// unset or unreachable.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pg.New(ctx, pg.Config{DSN: dsn, MaxConns: 4})
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool))

	return NewStore(pool)
}

func cleanup(t *testing.T, pool *pgxpool.Pool, keys ...string) {
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM kv_entries WHERE key = ANY($1)`, keys)
	})
}

func TestStore_GetSetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := "test_" + uuid.NewString()
	cleanup(t, s.pool, key)

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, key, []byte(`{"a":1}`)))
	require.NoError(t, s.Set(ctx, key, []byte(`{"a":2}`)))

	v, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":2}`, string(v))

	require.NoError(t, s.Delete(ctx, key))
	_, ok, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RunTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, b := "test_"+uuid.NewString(), "test_"+uuid.NewString()
	cleanup(t, s.pool, a, b)

	require.NoError(t, s.RunTx(ctx, func(ctx context.Context, kv repository.KV) error {
		if err := kv.Set(ctx, a, []byte("1")); err != nil {
			return err
		}
		v, ok, err := kv.Get(ctx, a)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), v)
		return nil
	}))

	boom := errors.New("boom")
	err := s.RunTx(ctx, func(ctx context.Context, kv repository.KV) error {
		require.NoError(t, kv.Set(ctx, b, []byte("2")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok, err := s.Get(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = s.Get(ctx, b)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestWrapDBErr(t *testing.T) {
	assert.NoError(t, wrapDBErr("op", nil))
	assert.ErrorIs(t, wrapDBErr("op", pgx.ErrNoRows), repository.ErrNotFound)
	assert.ErrorIs(t, wrapDBErr("op", &pgconn.PgError{Code: "23505"}), repository.ErrConflict)

	err := wrapDBErr("op", &pgconn.PgError{Code: "40001"})
	assert.True(t, IsRetryable(err))
}
