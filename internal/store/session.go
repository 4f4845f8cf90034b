package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/bpms/internal/domain"
	"github.com/kirinyoku/bpms/internal/repository"
)

type Sessions struct {
	kv     repository.KV
	logger *slog.Logger
}

func NewSessions(kv repository.KV, logger *slog.Logger) *Sessions {
	return &Sessions{kv: kv, logger: discardLogger(logger)}
}

func (s *Sessions) With(kv repository.KV) *Sessions {
	cp := *s
	cp.kv = kv
	return &cp
}

func (s *Sessions) Get(ctx context.Context) (*domain.Session, error) {
	const op = "store.Sessions.Get"

	sess, ok, err := readJSON[domain.Session](ctx, s.kv, s.logger, KeySession)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok || sess.Email == "" {
		return nil, nil
	}

	return &sess, nil
}

func (s *Sessions) Set(ctx context.Context, sess domain.Session) error {
	const op = "store.Sessions.Set"

	if err := writeJSON(ctx, s.kv, KeySession, sess); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Sessions) Clear(ctx context.Context) error {
	const op = "store.Sessions.Clear"

	if err := s.kv.Delete(ctx, KeySession); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
