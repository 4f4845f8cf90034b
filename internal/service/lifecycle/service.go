package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/bpms/internal/clock"
	"github.com/kirinyoku/bpms/internal/domain"
	"github.com/kirinyoku/bpms/internal/repository"
	"github.com/kirinyoku/bpms/internal/store"
	"github.com/kirinyoku/bpms/internal/uow"
)

// Notifier is told about every event touched by a committed change.
type Notifier interface {
	EventChanged(ctx context.Context, eventID string)
}

type Service struct {
	events   *store.Events
	uow      *uow.UoW
	clock    clock.Clock
	notifier Notifier
	newID    func() string
}

type Option func(*Service)

// WithIDGenerator overrides the event id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithNotifier registers n for after-commit change notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func New(tx repository.Transactor, events *store.Events, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		events: events,
		uow:    uow.NewUoW(tx),
		clock:  clk,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Active returns the active-pointer event, or nil.
func (s *Service) Active(ctx context.Context) (*domain.Event, error) {
	const op = "service.lifecycle.Active"

	ev, err := s.events.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ev, nil
}

// History returns every known event in stored order.
func (s *Service) History(ctx context.Context) ([]domain.Event, error) {
	const op = "service.lifecycle.History"

	list, err := s.events.ListHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

// PreviousEvent returns the most recently created event other than the
// active pointer, or nil when there is none.
func (s *Service) PreviousEvent(ctx context.Context) (*domain.Event, error) {
	const op = "service.lifecycle.PreviousEvent"

	active, err := s.events.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	list, err := s.events.ListHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if active != nil {
		list = slices.DeleteFunc(list, func(e domain.Event) bool { return e.ID == active.ID })
	}
	if len(list) == 0 {
		return nil, nil
	}

	latest := slices.MaxFunc(list, func(a, b domain.Event) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return &latest, nil
}

// CreateDraft archives the current active-pointer event as completed and
// installs a new draft event in its place.
//
// Returns:
//   - domain.Event: the created event.
//   - error: *domain.ValidationError when a field is invalid; nothing is
//     written in that case.
func (s *Service) CreateDraft(ctx context.Context, fields domain.EventFields) (domain.Event, error) {
	const op = "service.lifecycle.CreateDraft"

	ev, err := s.create(ctx, fields, domain.EventDraft)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	return ev, nil
}

// CreateActiveDirect is the onboarding variant of CreateDraft: the new
// event starts out active and no draft stage exists.
func (s *Service) CreateActiveDirect(ctx context.Context, fields domain.EventFields) (domain.Event, error) {
	const op = "service.lifecycle.CreateActiveDirect"

	ev, err := s.create(ctx, fields, domain.EventActive)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	return ev, nil
}

func (s *Service) create(ctx context.Context, fields domain.EventFields, status domain.EventStatus) (domain.Event, error) {
	clean, err := validateFields(fields)
	if err != nil {
		return domain.Event{}, err
	}

	now := s.clock.Now()
	ev := domain.Event{
		ID:        s.newID(),
		Name:      clean.Name,
		Date:      clean.Date,
		Time:      clean.Time,
		Venue:     clean.Venue,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.uow.Do(ctx, func(ctx context.Context, kv repository.KV, after func(uow.AfterCommit)) error {
		events := s.events.With(kv)

		list, err := s.archivePrevious(ctx, events, now)
		if err != nil {
			return err
		}

		var touched []string
		if status == domain.EventActive {
			list, touched = demoteActive(list, ev.ID, now)
		}
		list = append(list, ev)

		if err := events.SaveHistory(ctx, list); err != nil {
			return err
		}
		if err := events.SetActive(ctx, ev); err != nil {
			return err
		}

		s.notify(after, append(touched, ev.ID)...)
		return nil
	})
	if err != nil {
		return domain.Event{}, err
	}

	return ev, nil
}

// archivePrevious marks the current active pointer completed in history and
// returns the resulting history list.
func (s *Service) archivePrevious(ctx context.Context, events *store.Events, now time.Time) ([]domain.Event, error) {
	prev, err := events.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	list, err := events.ListHistory(ctx)
	if err != nil {
		return nil, err
	}

	if prev == nil {
		return list, nil
	}

	archived := *prev
	archived.Status = domain.EventCompleted
	archived.UpdatedAt = now

	return upsert(list, archived), nil
}

// ToggleActivation flips the active-pointer event between draft and active.
//
// Returns:
//   - domain.Event: the updated event.
//   - error: lifecycle.ErrNoActiveEvent when no event exists yet.
//   - error: lifecycle.ErrEventCompleted when the event is completed.
func (s *Service) ToggleActivation(ctx context.Context) (domain.Event, error) {
	const op = "service.lifecycle.ToggleActivation"

	var out domain.Event

	err := s.uow.Do(ctx, func(ctx context.Context, kv repository.KV, after func(uow.AfterCommit)) error {
		events := s.events.With(kv)

		ev, err := events.GetActive(ctx)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrNoActiveEvent
		}

		now := s.clock.Now()

		switch ev.Status {
		case domain.EventCompleted:
			return ErrEventCompleted
		case domain.EventActive:
			ev.Status = domain.EventDraft
		default:
			ev.Status = domain.EventActive
		}
		ev.UpdatedAt = now

		list, err := events.ListHistory(ctx)
		if err != nil {
			return err
		}

		var touched []string
		if ev.Status == domain.EventActive {
			list, touched = demoteActive(list, ev.ID, now)
		}
		list = upsert(list, *ev)

		if err := events.SaveHistory(ctx, list); err != nil {
			return err
		}
		if err := events.SetActive(ctx, *ev); err != nil {
			return err
		}

		out = *ev
		s.notify(after, append(touched, ev.ID)...)
		return nil
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ActivateFromHistory makes the history entry id the single active event and
// installs it as the active pointer. Any other active event is completed.
//
// Returns:
//   - domain.Event: the activated event.
//   - error: lifecycle.ErrNotConfirmed when confirmed is false.
//   - error: lifecycle.ErrEventNotFound when id is not in history.
//   - error: lifecycle.ErrEventCompleted when the entry is completed.
func (s *Service) ActivateFromHistory(ctx context.Context, id string, confirmed bool) (domain.Event, error) {
	const op = "service.lifecycle.ActivateFromHistory"

	if !confirmed {
		return domain.Event{}, fmt.Errorf("%s: %w", op, ErrNotConfirmed)
	}

	var out domain.Event

	err := s.uow.Do(ctx, func(ctx context.Context, kv repository.KV, after func(uow.AfterCommit)) error {
		events := s.events.With(kv)

		list, err := events.ListHistory(ctx)
		if err != nil {
			return err
		}

		i := slices.IndexFunc(list, func(e domain.Event) bool { return e.ID == id })
		if id == "" || i < 0 {
			return ErrEventNotFound
		}
		if list[i].Status == domain.EventCompleted {
			return ErrEventCompleted
		}

		// a pointer written before it was mirrored into history still
		// takes part in the exclusivity check
		current, err := events.GetActive(ctx)
		if err != nil {
			return err
		}
		if current != nil && !slices.ContainsFunc(list, func(e domain.Event) bool { return e.ID == current.ID }) {
			list = append(list, *current)
		}

		now := s.clock.Now()

		list, touched := demoteActive(list, id, now)
		list[i].Status = domain.EventActive
		list[i].UpdatedAt = now

		if err := events.SaveHistory(ctx, list); err != nil {
			return err
		}
		if err := events.SetActive(ctx, list[i]); err != nil {
			return err
		}

		out = list[i]
		s.notify(after, append(touched, id)...)
		return nil
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Edit replaces the editable fields of the active-pointer event. Only draft
// events can be edited.
//
// Returns:
//   - domain.Event: the updated event.
//   - error: lifecycle.ErrNoActiveEvent when no event exists yet.
//   - error: lifecycle.ErrNotDraft when the event is active or completed.
//   - error: *domain.ValidationError when a field is invalid.
func (s *Service) Edit(ctx context.Context, fields domain.EventFields) (domain.Event, error) {
	const op = "service.lifecycle.Edit"

	var out domain.Event

	err := s.uow.Do(ctx, func(ctx context.Context, kv repository.KV, after func(uow.AfterCommit)) error {
		events := s.events.With(kv)

		ev, err := events.GetActive(ctx)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrNoActiveEvent
		}
		if ev.Status != domain.EventDraft {
			return ErrNotDraft
		}

		clean, err := validateFields(fields)
		if err != nil {
			return err
		}

		ev.Name = clean.Name
		ev.Date = clean.Date
		ev.Time = clean.Time
		ev.Venue = clean.Venue
		ev.UpdatedAt = s.clock.Now()

		if err := events.SetActive(ctx, *ev); err != nil {
			return err
		}
		if err := events.UpsertHistory(ctx, *ev); err != nil {
			return err
		}

		out = *ev
		s.notify(after, ev.ID)
		return nil
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) notify(after func(uow.AfterCommit), ids ...string) {
	if s.notifier == nil {
		return
	}

	slices.Sort(ids)
	ids = slices.Compact(ids)

	after(func(ctx context.Context) {
		for _, id := range ids {
			s.notifier.EventChanged(ctx, id)
		}
	})
}

// demoteActive completes every active event except keepID. It returns the
// updated list and the ids it changed.
func demoteActive(list []domain.Event, keepID string, now time.Time) ([]domain.Event, []string) {
	var changed []string
	for i := range list {
		if list[i].ID == keepID || list[i].Status != domain.EventActive {
			continue
		}
		list[i].Status = domain.EventCompleted
		list[i].UpdatedAt = now
		changed = append(changed, list[i].ID)
	}
	return list, changed
}

func upsert(list []domain.Event, ev domain.Event) []domain.Event {
	if i := slices.IndexFunc(list, func(e domain.Event) bool { return e.ID == ev.ID }); i >= 0 {
		list[i] = ev
		return list
	}
	return append(list, ev)
}
