package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kirinyoku/bpms/internal/clock"
	"github.com/kirinyoku/bpms/internal/domain"
	"github.com/kirinyoku/bpms/internal/repository"
	"github.com/kirinyoku/bpms/internal/store"
	"github.com/kirinyoku/bpms/internal/uow"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const passwordMinLen = 6

// Limiter throttles sign-in attempts per client key.
type Limiter interface {
	Allow(ctx context.Context, id string) (allowed bool, retryAfter time.Duration, err error)
}

// Notifier is told about the event that sign-out removed from the pointer.
type Notifier interface {
	EventChanged(ctx context.Context, eventID string)
}

type Service struct {
	sessions *store.Sessions
	events   *store.Events
	uow      *uow.UoW
	clock    clock.Clock
	limiter  Limiter
	accounts []domain.Account
	notifier Notifier
}

type Option func(*Service)

func WithLimiter(l Limiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithAccounts(accounts []domain.Account) Option {
	return func(s *Service) {
		s.accounts = accounts
	}
}

func New(
	tx repository.Transactor,
	sessions *store.Sessions,
	events *store.Events,
	clk clock.Clock,
	opts ...Option,
) *Service {
	s := &Service{
		sessions: sessions,
		events:   events,
		uow:      uow.NewUoW(tx),
		clock:    clk,
		accounts: DemoAccounts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignIn checks email and password against the demo accounts and stores the
// resulting session.
//
// Parameters:
//   - ctx: request-scoped context.
//   - email, password: raw form values.
//   - clientKey: rate-limit bucket (client IP); empty disables the check.
//
// Returns:
//   - domain.Session: the stored session.
//   - error: *domain.ValidationError for malformed input.
//   - error: auth.ErrInvalidCredentials when no account matches.
//   - error: auth.ErrRateLimited (as RateLimitedError) when throttled.
func (s *Service) SignIn(ctx context.Context, email, password, clientKey string) (domain.Session, error) {
	const op = "service.auth.SignIn"

	email = strings.TrimSpace(email)

	verr := &domain.ValidationError{}
	switch {
	case email == "":
		verr.Add("email", "Email is required")
	case !emailRe.MatchString(email):
		verr.Add("email", "Please enter a valid email address")
	}
	switch {
	case password == "":
		verr.Add("password", "Password is required")
	case len(password) < passwordMinLen:
		verr.Add("password", "Password must be at least 6 characters")
	}
	if err := verr.Err(); err != nil {
		return domain.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	if s.limiter != nil && clientKey != "" {
		ok, retry, err := s.limiter.Allow(ctx, clientKey)
		if err != nil {
			return domain.Session{}, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return domain.Session{}, fmt.Errorf("%s: %w", op, RateLimitedError{RetryAfter: retry})
		}
	}

	acc, ok := findAccount(s.accounts, email, password)
	if !ok {
		return domain.Session{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	sess := domain.Session{
		Email:     acc.Email,
		Role:      acc.Role,
		LoginTime: s.clock.Now(),
	}

	if err := s.sessions.Set(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// Current returns the stored session, or nil when signed out.
func (s *Service) Current(ctx context.Context) (*domain.Session, error) {
	const op = "service.auth.Current"

	sess, err := s.sessions.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// SignOut drops the session and the active-pointer event. History and
// tickets are kept.
func (s *Service) SignOut(ctx context.Context) error {
	const op = "service.auth.SignOut"

	err := s.uow.Do(ctx, func(ctx context.Context, kv repository.KV, after func(uow.AfterCommit)) error {
		if err := s.sessions.With(kv).Clear(ctx); err != nil {
			return err
		}

		events := s.events.With(kv)

		active, err := events.GetActive(ctx)
		if err != nil {
			return err
		}

		if err := events.ClearActive(ctx); err != nil {
			return err
		}

		if active != nil && s.notifier != nil {
			after(func(ctx context.Context) {
				s.notifier.EventChanged(ctx, active.ID)
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
