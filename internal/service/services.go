package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirinyoku/bpms/internal/clock"
	"github.com/kirinyoku/bpms/internal/repository"
	redisrepo "github.com/kirinyoku/bpms/internal/repository/redis"
	"github.com/kirinyoku/bpms/internal/service/auth"
	"github.com/kirinyoku/bpms/internal/service/dashboard"
	"github.com/kirinyoku/bpms/internal/service/lifecycle"
	"github.com/kirinyoku/bpms/internal/service/tickets"
	"github.com/kirinyoku/bpms/internal/store"
)

type Services struct {
	Lifecycle *lifecycle.Service
	Tickets   *tickets.Service
	Auth      *auth.Service
	Dashboard *dashboard.Service

	logger *slog.Logger
}

type Config struct {
	Location  *time.Location
	Tickets   tickets.Config
	Dashboard dashboard.Config
}

// Deps groups the optional Redis-backed collaborators. Any field may be nil.
type Deps struct {
	Cache   *redisrepo.Cache
	PubSub  *redisrepo.EventsPubSub
	Limiter *redisrepo.SlidingWindowLimiter
}

func NewServices(
	st repository.Store,
	deps Deps,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Services {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.Tickets.Location == nil {
		cfg.Tickets.Location = cfg.Location
	}
	if cfg.Dashboard.Location == nil {
		cfg.Dashboard.Location = cfg.Location
	}

	events := store.NewEvents(st, logger)
	ticketStore := store.NewTickets(st, logger)
	sessions := store.NewSessions(st, logger)

	n := &changeNotifier{pubsub: deps.PubSub, logger: logger}

	ticketSvc := tickets.New(st, ticketStore, events, clk, cfg.Tickets, tickets.WithNotifier(n))
	dash := dashboard.New(events, ticketSvc, deps.Cache, clk, cfg.Dashboard)
	n.dashboard = dash

	authOpts := []auth.Option{auth.WithNotifier(n)}
	if deps.Limiter != nil {
		authOpts = append(authOpts, auth.WithLimiter(deps.Limiter))
	}

	return &Services{
		Lifecycle: lifecycle.New(st, events, clk, lifecycle.WithNotifier(n)),
		Tickets:   ticketSvc,
		Auth:      auth.New(st, sessions, events, clk, authOpts...),
		Dashboard: dash,
		logger:    logger,
	}
}

// changeNotifier fans a committed change out to the dashboard cache and to
// other processes listening on Redis.
type changeNotifier struct {
	dashboard *dashboard.Service
	pubsub    *redisrepo.EventsPubSub
	logger    *slog.Logger
}

func (n *changeNotifier) EventChanged(ctx context.Context, eventID string) {
	if err := n.dashboard.Invalidate(ctx); err != nil {
		n.logger.WarnContext(ctx, "dashboard cache invalidation failed", "event_id", eventID, "error", err)
	}

	if n.pubsub == nil {
		return
	}

	if err := n.pubsub.PublishEventChanged(ctx, eventID); err != nil {
		n.logger.WarnContext(ctx, "publish event change failed", "event_id", eventID, "error", err)
	}
}

// OnRemoteChange drops derived views after another process changed eventID.
func (s *Services) OnRemoteChange() func(ctx context.Context, eventID string) {
	return func(ctx context.Context, eventID string) {
		s.logger.DebugContext(ctx, "remote event change", "event_id", eventID)
		if err := s.Dashboard.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "dashboard cache invalidation failed", "event_id", eventID, "error", err)
		}
	}
}
