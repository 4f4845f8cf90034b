package dashboard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kirinyoku/bpms/internal/clock"
	"github.com/kirinyoku/bpms/internal/domain"
	redisrepo "github.com/kirinyoku/bpms/internal/repository/redis"
	"github.com/kirinyoku/bpms/internal/service/tickets"
	"github.com/kirinyoku/bpms/internal/store"
)

const (
	CheckEventDetails    = "event_details"
	CheckEventActivated  = "event_activated"
	CheckTicketsGenerate = "tickets_generated"
)

type Config struct {
	Location   *time.Location
	SummaryTTL time.Duration
}

type Service struct {
	events  *store.Events
	tickets *tickets.Service
	cache   *redisrepo.Cache
	clock   clock.Clock
	cfg     Config
}

// New builds the dashboard service. cache may be nil, in which case every
// Summary call is computed from storage.
func New(events *store.Events, ts *tickets.Service, cache *redisrepo.Cache, clk clock.Clock, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 15 * time.Second
	}

	return &Service{
		events:  events,
		tickets: ts,
		cache:   cache,
		clock:   clk,
		cfg:     cfg,
	}
}

// Summary returns the derived figures shown on the event manager dashboard.
func (s *Service) Summary(ctx context.Context) (domain.Summary, error) {
	const op = "service.dashboard.Summary"

	var (
		sum domain.Summary
		err error
	)

	if s.cache != nil {
		sum, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyDashboardSummary(), s.cfg.SummaryTTL, s.build)
	} else {
		sum, err = s.build(ctx)
	}
	if err != nil {
		return domain.Summary{}, fmt.Errorf("%s: %w", op, err)
	}

	return sum, nil
}

// Invalidate drops a cached summary. It is a no-op without a cache.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateDashboard(ctx)
}

func (s *Service) build(ctx context.Context) (domain.Summary, error) {
	ev, err := s.events.GetActive(ctx)
	if err != nil {
		return domain.Summary{}, err
	}

	sum := domain.Summary{Event: ev}

	if ev != nil {
		if day, ok := ev.Day(s.cfg.Location); ok {
			sum.DaysUntilEvent = daysBetween(s.clock.Now().In(s.cfg.Location), day)
			sum.Countdown = countdown(sum.DaysUntilEvent)
		}

		counts, err := s.tickets.Counts(ctx, ev.ID)
		if err != nil {
			return domain.Summary{}, err
		}
		sum.Tickets = counts
	}

	sum.Checklist = []domain.ChecklistItem{
		{Key: CheckEventDetails, Done: ev != nil},
		{Key: CheckEventActivated, Done: ev != nil && ev.Status == domain.EventActive},
		{Key: CheckTicketsGenerate, Done: sum.Tickets.Total > 0},
	}
	sum.Progress = progress(sum.Checklist)

	return sum, nil
}

// daysBetween counts calendar days from the day of now to day.
func daysBetween(now, day time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	target := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())

	return int(math.Round(target.Sub(today).Hours() / 24))
}

func countdown(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("%d days since event", -days)
	case days == 0:
		return "Today is the event day!"
	default:
		return fmt.Sprintf("%d days until event", days)
	}
}

func progress(items []domain.ChecklistItem) int {
	if len(items) == 0 {
		return 0
	}

	done := 0
	for _, it := range items {
		if it.Done {
			done++
		}
	}

	return int(math.Round(float64(done) * 100 / float64(len(items))))
}
