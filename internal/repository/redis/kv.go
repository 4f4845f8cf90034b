package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirinyoku/bpms/internal/repository"
	"github.com/redis/go-redis/v9"
)

// KV stores application keys as plain Redis strings under KeyKV.
type KV struct {
	rdb *redis.Client
}

func NewKV(rdb *redis.Client) *KV {
	return &KV{rdb: rdb}
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const op = "redis.KV.Get"

	b, err := s.rdb.Get(ctx, KeyKV(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	return b, true, nil
}

func (s *KV) Set(ctx context.Context, key string, val []byte) error {
	const op = "redis.KV.Set"

	if err := s.rdb.Set(ctx, KeyKV(key), val, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	const op = "redis.KV.Delete"

	if err := s.rdb.Del(ctx, KeyKV(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RunTx stages the writes of fn and flushes them in a single MULTI/EXEC.
// Reads are not isolated from concurrent writers: the last EXEC wins.
func (s *KV) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, kv repository.KV) error,
) error {
	const op = "redis.KV.RunTx"

	buf := repository.NewBuffer(s)
	if err := fn(ctx, buf); err != nil {
		buf.Discard()
		return err
	}

	ops := buf.Ops()
	if len(ops) == 0 {
		return nil
	}

	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, o := range ops {
			if o.Delete {
				p.Del(ctx, KeyKV(o.Key))
				continue
			}
			p.Set(ctx, KeyKV(o.Key), o.Value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
