package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/bpms/internal/domain"
	"github.com/kirinyoku/bpms/internal/repository"
)

// Tickets persists one ticket list per event under KeyTickets.
type Tickets struct {
	kv     repository.KV
	logger *slog.Logger
}

func NewTickets(kv repository.KV, logger *slog.Logger) *Tickets {
	return &Tickets{kv: kv, logger: discardLogger(logger)}
}

func (s *Tickets) With(kv repository.KV) *Tickets {
	cp := *s
	cp.kv = kv
	return &cp
}

func (s *Tickets) Load(ctx context.Context, eventID string) ([]domain.Ticket, error) {
	const op = "store.Tickets.Load"

	list, _, err := readJSON[[]domain.Ticket](ctx, s.kv, s.logger, KeyTickets(eventID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Tickets) Save(ctx context.Context, eventID string, list []domain.Ticket) error {
	const op = "store.Tickets.Save"

	if list == nil {
		list = []domain.Ticket{}
	}

	if err := writeJSON(ctx, s.kv, KeyTickets(eventID), list); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
