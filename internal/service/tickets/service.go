package tickets

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kirinyoku/bpms/internal/clock"
	"github.com/kirinyoku/bpms/internal/domain"
	"github.com/kirinyoku/bpms/internal/repository"
	"github.com/kirinyoku/bpms/internal/store"
	"github.com/kirinyoku/bpms/internal/uow"
)

type Config struct {
	// Location decides where "end of the event day" falls.
	Location *time.Location
	// UndatedTTL is the lifetime of tickets for events without a date.
	UndatedTTL time.Duration
}

// Notifier is told about the owning event after a committed ticket change.
type Notifier interface {
	EventChanged(ctx context.Context, eventID string)
}

type Service struct {
	tickets  *store.Tickets
	events   *store.Events
	uow      *uow.UoW
	clock    clock.Clock
	cfg      Config
	newCode  func() string
	notifier Notifier
}

type Option func(*Service)

// WithNotifier registers n for after-commit change notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithCodeGenerator replaces RandomCode.
func WithCodeGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newCode = fn
		}
	}
}

func New(
	tx repository.Transactor,
	tickets *store.Tickets,
	events *store.Events,
	clk clock.Clock,
	cfg Config,
	opts ...Option,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	if cfg.UndatedTTL <= 0 {
		cfg.UndatedTTL = 30 * 24 * time.Hour
	}

	s := &Service{
		tickets: tickets,
		events:  events,
		uow:     uow.NewUoW(tx),
		clock:   clk,
		cfg:     cfg,
		newCode: RandomCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate mints count new tickets for eventID and appends them to the
// event's ticket set. All tickets of a batch share one expiry.
//
// Parameters:
//   - ctx: request-scoped context.
//   - eventID: owning event; must exist in the event store.
//   - count: number of tickets to mint, at least one.
//
// Returns:
//   - []domain.Ticket: the new tickets in generation order.
//   - error: tickets.ErrEventIDRequired, tickets.ErrInvalidCount or
//     tickets.ErrEventNotFound; nothing is written in those cases.
func (s *Service) Generate(ctx context.Context, eventID string, count int) ([]domain.Ticket, error) {
	const op = "service.tickets.Generate"

	if eventID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEventIDRequired)
	}

	if count <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCount)
	}

	var batch []domain.Ticket

	err := s.uow.Do(ctx, func(ctx context.Context, kv repository.KV, after func(uow.AfterCommit)) error {
		ev, err := s.events.With(kv).Find(ctx, eventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrEventNotFound
		}

		ts := s.tickets.With(kv)

		list, err := ts.Load(ctx, eventID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		expiresAt := s.expiry(*ev, now)

		taken := make(map[string]struct{}, len(list)+count)
		for _, t := range list {
			taken[t.Code] = struct{}{}
		}

		batch = make([]domain.Ticket, 0, count)
		for range count {
			code := s.newCode()
			for {
				if _, dup := taken[code]; !dup {
					break
				}
				code = s.newCode()
			}
			taken[code] = struct{}{}

			batch = append(batch, domain.Ticket{
				Code:      code,
				Status:    domain.TicketUnused,
				ExpiresAt: expiresAt,
				CreatedAt: now,
			})
		}

		if err := ts.Save(ctx, eventID, append(list, batch...)); err != nil {
			return err
		}

		s.notify(after, eventID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return batch, nil
}

// expiry is the last millisecond of the event day, or UndatedTTL from now
// when the event has no usable date.
func (s *Service) expiry(ev domain.Event, now time.Time) time.Time {
	day, ok := ev.Day(s.cfg.Location)
	if !ok {
		return now.Add(s.cfg.UndatedTTL)
	}

	return day.AddDate(0, 0, 1).Add(-time.Millisecond)
}

// List returns the event's tickets with their status derived at the current
// time. An empty eventID reads the default ticket set.
func (s *Service) List(ctx context.Context, eventID string) ([]domain.Ticket, error) {
	const op = "service.tickets.List"

	list, err := s.tickets.Load(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	for i := range list {
		list[i].Status = list[i].StatusAt(now)
	}

	if list == nil {
		list = []domain.Ticket{}
	}

	return list, nil
}

// Counts tallies the event's tickets by derived status.
func (s *Service) Counts(ctx context.Context, eventID string) (domain.TicketCounts, error) {
	const op = "service.tickets.Counts"

	list, err := s.List(ctx, eventID)
	if err != nil {
		return domain.TicketCounts{}, fmt.Errorf("%s: %w", op, err)
	}

	var c domain.TicketCounts
	for _, t := range list {
		switch t.Status {
		case domain.TicketUsed:
			c.Used++
		case domain.TicketExpired:
			c.Expired++
		default:
			c.Unused++
		}
	}
	c.Total = len(list)

	return c, nil
}

// Redeem marks the ticket with code as used. Codes match case-insensitively.
//
// Returns:
//   - domain.Ticket: the redeemed ticket.
//   - error: tickets.ErrTicketNotFound, tickets.ErrTicketUsed or
//     tickets.ErrTicketExpired.
func (s *Service) Redeem(ctx context.Context, eventID, code string) (domain.Ticket, error) {
	const op = "service.tickets.Redeem"

	code = strings.ToUpper(strings.TrimSpace(code))

	var out domain.Ticket

	err := s.uow.Do(ctx, func(ctx context.Context, kv repository.KV, after func(uow.AfterCommit)) error {
		ts := s.tickets.With(kv)

		list, err := ts.Load(ctx, eventID)
		if err != nil {
			return err
		}

		i := slices.IndexFunc(list, func(t domain.Ticket) bool { return t.Code == code })
		if code == "" || i < 0 {
			return ErrTicketNotFound
		}

		now := s.clock.Now()

		switch list[i].StatusAt(now) {
		case domain.TicketUsed:
			return ErrTicketUsed
		case domain.TicketExpired:
			return ErrTicketExpired
		}

		list[i].UsedAt = &now
		list[i].Status = domain.TicketUsed

		if err := ts.Save(ctx, eventID, list); err != nil {
			return err
		}

		out = list[i]
		s.notify(after, eventID)
		return nil
	})
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) notify(after func(uow.AfterCommit), eventID string) {
	if s.notifier == nil {
		return
	}

	after(func(ctx context.Context) {
		s.notifier.EventChanged(ctx, eventID)
	})
}
