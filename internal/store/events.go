package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kirinyoku/bpms/internal/domain"
	"github.com/kirinyoku/bpms/internal/repository"
)

// Events persists the active-pointer event and the event history.
type Events struct {
	kv     repository.KV
	logger *slog.Logger
}

func NewEvents(kv repository.KV, logger *slog.Logger) *Events {
	return &Events{kv: kv, logger: discardLogger(logger)}
}

// With returns a copy bound to kv, typically a transaction handle.
func (s *Events) With(kv repository.KV) *Events {
	cp := *s
	cp.kv = kv
	return &cp
}

// GetActive returns the active-pointer event or nil when none is stored.
func (s *Events) GetActive(ctx context.Context) (*domain.Event, error) {
	const op = "store.Events.GetActive"

	ev, ok, err := readJSON[domain.Event](ctx, s.kv, s.logger, KeyActiveEvent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// an empty object is what a cleared pointer used to look like
	if !ok || ev.ID == "" {
		return nil, nil
	}

	return &ev, nil
}

// SetActive replaces the active pointer. History is left untouched.
func (s *Events) SetActive(ctx context.Context, ev domain.Event) error {
	const op = "store.Events.SetActive"

	if err := writeJSON(ctx, s.kv, KeyActiveEvent, ev); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Events) ClearActive(ctx context.Context) error {
	const op = "store.Events.ClearActive"

	if err := s.kv.Delete(ctx, KeyActiveEvent); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ListHistory returns every known event in stored order. Corrupted data
// yields an empty list.
func (s *Events) ListHistory(ctx context.Context) ([]domain.Event, error) {
	const op = "store.Events.ListHistory"

	list, _, err := readJSON[[]domain.Event](ctx, s.kv, s.logger, KeyEvents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if list == nil {
		list = []domain.Event{}
	}

	return list, nil
}

func (s *Events) SaveHistory(ctx context.Context, list []domain.Event) error {
	const op = "store.Events.SaveHistory"

	if list == nil {
		list = []domain.Event{}
	}

	if err := writeJSON(ctx, s.kv, KeyEvents, list); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UpsertHistory appends ev when its id is new and replaces the existing
// entry in place otherwise. Events without an id are ignored.
func (s *Events) UpsertHistory(ctx context.Context, ev domain.Event) error {
	const op = "store.Events.UpsertHistory"

	if ev.ID == "" {
		return nil
	}

	list, err := s.ListHistory(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if i := slices.IndexFunc(list, func(e domain.Event) bool { return e.ID == ev.ID }); i >= 0 {
		list[i] = ev
	} else {
		list = append(list, ev)
	}

	if err := s.SaveHistory(ctx, list); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Find looks id up in the active pointer first, then in history.
func (s *Events) Find(ctx context.Context, id string) (*domain.Event, error) {
	const op = "store.Events.Find"

	if id == "" {
		return nil, nil
	}

	active, err := s.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if active != nil && active.ID == id {
		return active, nil
	}

	list, err := s.ListHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if i := slices.IndexFunc(list, func(e domain.Event) bool { return e.ID == id }); i >= 0 {
		return &list[i], nil
	}

	return nil, nil
}
