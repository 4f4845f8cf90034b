package uow

import (
	"context"

	"github.com/kirinyoku/bpms/internal/repository"
)

// AfterCommit is a function that runs after a successful commit.
type AfterCommit func(ctx context.Context)

// UoW groups several KV writes into one atomic step.
type UoW struct {
	tx repository.Transactor
}

func NewUoW(tx repository.Transactor) *UoW {
	return &UoW{tx: tx}
}

// Do runs fn inside a transaction. Hooks registered through after run in
// registration order once the commit succeeded; they are dropped otherwise.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, kv repository.KV, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.tx.RunTx(ctx, func(ctx context.Context, kv repository.KV) error {
		hooks = hooks[:0]
		return fn(ctx, kv, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
