package repository

import (
	"context"
)

// KV is the key-value substrate every store in the application persists to.
// Values are opaque bytes; callers encode them as JSON.
type KV interface {
	// Get returns ok=false when key is absent.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
}

// Transactor applies every write made through the KV passed to fn
// atomically, or none of them when fn returns an error.
type Transactor interface {
	RunTx(ctx context.Context, fn func(ctx context.Context, kv KV) error) error
}

// Store is a KV backend that also supports atomic batches.
type Store interface {
	KV
	Transactor
}
