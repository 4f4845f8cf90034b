package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirinyoku/bpms/internal/clock"
	"github.com/kirinyoku/bpms/internal/config"
	"github.com/kirinyoku/bpms/internal/postgres"
	"github.com/kirinyoku/bpms/internal/redis"
	"github.com/kirinyoku/bpms/internal/repository"
	"github.com/kirinyoku/bpms/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/bpms/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/bpms/internal/repository/redis"
	"github.com/kirinyoku/bpms/internal/service"
	httpgin "github.com/kirinyoku/bpms/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	pubsub     *redisrepo.EventsPubSub
	closers    []func()
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	// Optional Redis: cache, pub/sub, login limiter and idempotency.
	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		var err error
		rdb, err = redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	store, err := a.openStore(ctx, rdb)
	if err != nil {
		a.close()
		return nil, err
	}

	var (
		deps service.Deps
		idem *redisrepo.IdempotencyStore
	)
	if rdb != nil {
		deps = service.Deps{
			Cache:   redisrepo.NewCache(rdb),
			PubSub:  redisrepo.NewEventsPubSub(rdb),
			Limiter: redisrepo.NewSlidingWindowLimiter(rdb, "signin", cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow),
		}
		idem = redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)
		a.pubsub = deps.PubSub
	}

	// Initialize services
	a.services = service.NewServices(store, deps, clock.NewSystem(cfg.Location), logger, service.Config{
		Location: cfg.Location,
	})

	// Initialize Gin router
	router := httpgin.NewRouter(a.services, idem, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context, rdb *goredis.Client) (repository.Store, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverRedis:
		return redisrepo.NewKV(rdb), nil
	case config.DriverPostgres:
		pool, err := postgres.New(ctx, postgres.Config{DSN: a.cfg.Postgres.DSN()})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		return postgresrepo.NewStore(pool), nil
	default:
		return memory.New(), nil
	}
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.close()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening",
			"host", a.cfg.Server.Host,
			"port", a.cfg.Server.Port,
			"storage", a.cfg.Storage.Driver,
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Changes made by other processes sharing the same Redis
	if a.pubsub != nil {
		g.Go(func() error {
			err := a.pubsub.Subscribe(gCtx, a.services.OnRemoteChange())
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("event change subscription: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
