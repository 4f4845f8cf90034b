package repository

import (
	"context"
	"slices"
)

// Op is one staged write. Delete ops carry a nil Value.
type Op struct {
	Key    string
	Value  []byte
	Delete bool
}

// Buffer stages writes on top of a base KV and serves reads from the staged
// writes first. Backends without native transactions use it to implement
// RunTx.
type Buffer struct {
	base  KV
	ops   map[string]Op
	order []string
	done  bool
}

func NewBuffer(base KV) *Buffer {
	return &Buffer{
		base: base,
		ops:  make(map[string]Op),
	}
}

func (b *Buffer) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b.done {
		return nil, false, ErrTxDone
	}

	if op, ok := b.ops[key]; ok {
		if op.Delete {
			return nil, false, nil
		}
		return slices.Clone(op.Value), true, nil
	}

	return b.base.Get(ctx, key)
}

func (b *Buffer) Set(_ context.Context, key string, val []byte) error {
	return b.stage(Op{Key: key, Value: slices.Clone(val)})
}

func (b *Buffer) Delete(_ context.Context, key string) error {
	return b.stage(Op{Key: key, Delete: true})
}

func (b *Buffer) stage(op Op) error {
	if b.done {
		return ErrTxDone
	}

	if _, seen := b.ops[op.Key]; !seen {
		b.order = append(b.order, op.Key)
	}
	b.ops[op.Key] = op

	return nil
}

// Ops returns the last staged write per key in first-touch order and closes
// the buffer for further use.
func (b *Buffer) Ops() []Op {
	b.done = true

	out := make([]Op, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.ops[k])
	}

	return out
}

// Discard closes the buffer without returning its writes.
func (b *Buffer) Discard() {
	b.done = true
	b.ops = nil
	b.order = nil
}
