package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/kirinyoku/bpms/internal/repository"
)

// Store is an in-process KV. It is the default substrate and the one the
// service tests run against.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data map[string][]byte
}

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}

	return slices.Clone(v), true, nil
}

func (s *Store) Set(_ context.Context, key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = slices.Clone(val)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// RunTx serializes transactions. Writes made through the KV handed to fn
// become visible to other readers only after fn returns nil.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, kv repository.KV) error,
) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	buf := repository.NewBuffer(s)
	if err := fn(ctx, buf); err != nil {
		buf.Discard()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range buf.Ops() {
		if op.Delete {
			delete(s.data, op.Key)
			continue
		}
		s.data[op.Key] = op.Value
	}

	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}
