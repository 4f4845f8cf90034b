package tickets

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kirinyoku/bpms/internal/clock"
	"github.com/kirinyoku/bpms/internal/domain"
	"github.com/kirinyoku/bpms/internal/repository/memory"
	"github.com/kirinyoku/bpms/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, clk clock.Clock, events ...domain.Event) (*Service, *memory.Store) {
	t.Helper()

	kv := memory.New()
	es := store.NewEvents(kv, nil)
	for _, ev := range events {
		require.NoError(t, es.UpsertHistory(context.Background(), ev))
	}

	return New(kv, store.NewTickets(kv, nil), es, clk, Config{}), kv
}

func TestRandomCode(t *testing.T) {
	for range 200 {
		code := RandomCode()
		require.Len(t, code, CodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(CodeAlphabet, r), "unexpected symbol %q", r)
		}
		assert.False(t, strings.ContainsAny(code, "IO01"))
	}
}

func TestService_Generate(t *testing.T) {
	ctx := context.Background()
	dated := domain.Event{ID: "e1", Name: "Finals", Date: "2025-12-31", Status: domain.EventActive}

	t.Run("rejects missing event id and bad count", func(t *testing.T) {
		svc, kv := newTestService(t, clock.NewFixed(now), dated)
		before := kv.Keys()

		_, err := svc.Generate(ctx, "", 5)
		require.ErrorIs(t, err, ErrEventIDRequired)

		_, err = svc.Generate(ctx, "e1", 0)
		require.ErrorIs(t, err, ErrInvalidCount)

		_, err = svc.Generate(ctx, "e1", -3)
		require.ErrorIs(t, err, ErrInvalidCount)

		_, err = svc.Generate(ctx, "unknown", 1)
		require.ErrorIs(t, err, ErrEventNotFound)

		assert.Equal(t, before, kv.Keys())
	})

	t.Run("expires at end of event day", func(t *testing.T) {
		svc, _ := newTestService(t, clock.NewFixed(now), dated)

		batch, err := svc.Generate(ctx, "e1", 5)
		require.NoError(t, err)
		require.Len(t, batch, 5)

		want := time.Date(2025, 12, 31, 23, 59, 59, 999_000_000, time.UTC)
		seen := map[string]bool{}
		for _, tk := range batch {
			assert.True(t, tk.ExpiresAt.Equal(want), "got %s", tk.ExpiresAt)
			assert.Equal(t, domain.TicketUnused, tk.Status)
			assert.Nil(t, tk.UsedAt)
			assert.True(t, tk.CreatedAt.Equal(now))
			assert.False(t, seen[tk.Code], "duplicate code %s", tk.Code)
			seen[tk.Code] = true
		}
	})

	t.Run("undated event expires in thirty days", func(t *testing.T) {
		undated := domain.Event{ID: "e2", Name: "Open Call", Status: domain.EventDraft}
		svc, _ := newTestService(t, clock.NewFixed(now), undated)

		batch, err := svc.Generate(ctx, "e2", 1)
		require.NoError(t, err)
		assert.True(t, batch[0].ExpiresAt.Equal(now.Add(30*24*time.Hour)))
	})

	t.Run("retries colliding codes", func(t *testing.T) {
		codes := []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB", "AAAAAAAA", "BBBBBBBB", "CCCCCCCC"}
		next := 0
		gen := func() string {
			c := codes[next]
			next++
			return c
		}

		kv := memory.New()
		es := store.NewEvents(kv, nil)
		require.NoError(t, es.UpsertHistory(ctx, dated))
		svc := New(kv, store.NewTickets(kv, nil), es, clock.NewFixed(now), Config{}, WithCodeGenerator(gen))

		first, err := svc.Generate(ctx, "e1", 2)
		require.NoError(t, err)
		assert.Equal(t, "AAAAAAAA", first[0].Code)
		assert.Equal(t, "BBBBBBBB", first[1].Code)

		second, err := svc.Generate(ctx, "e1", 1)
		require.NoError(t, err)
		assert.Equal(t, "CCCCCCCC", second[0].Code)

		all, err := svc.List(ctx, "e1")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("codes may repeat across events", func(t *testing.T) {
		other := domain.Event{ID: "e3", Name: "Semis", Date: "2025-11-30", Status: domain.EventDraft}

		kv := memory.New()
		es := store.NewEvents(kv, nil)
		require.NoError(t, es.UpsertHistory(ctx, dated))
		require.NoError(t, es.UpsertHistory(ctx, other))
		svc := New(kv, store.NewTickets(kv, nil), es, clock.NewFixed(now), Config{},
			WithCodeGenerator(func() string { return "SAMECODE" }))

		_, err := svc.Generate(ctx, "e1", 1)
		require.NoError(t, err)
		_, err = svc.Generate(ctx, "e3", 1)
		require.NoError(t, err)

		assert.Contains(t, kv.Keys(), store.KeyTickets("e1"))
		assert.Contains(t, kv.Keys(), store.KeyTickets("e3"))
	})
}

func TestService_ListAndRedeem(t *testing.T) {
	ctx := context.Background()
	ev := domain.Event{ID: "e1", Name: "Finals", Date: "2025-05-10", Status: domain.EventActive}

	svc, kv := newTestService(t, clock.NewFixed(now), ev)
	batch, err := svc.Generate(ctx, "e1", 3)
	require.NoError(t, err)

	redeemed, err := svc.Redeem(ctx, "e1", strings.ToLower(batch[0].Code))
	require.NoError(t, err)
	require.NotNil(t, redeemed.UsedAt)
	assert.True(t, redeemed.UsedAt.Equal(now))

	_, err = svc.Redeem(ctx, "e1", batch[0].Code)
	require.ErrorIs(t, err, ErrTicketUsed)

	_, err = svc.Redeem(ctx, "e1", "ZZZZZZZZ")
	require.ErrorIs(t, err, ErrTicketNotFound)

	// same storage, clock moved past the event day
	later := New(kv, store.NewTickets(kv, nil), store.NewEvents(kv, nil),
		clock.NewFixed(time.Date(2025, 5, 11, 0, 0, 0, 0, time.UTC)), Config{})

	list, err := later.List(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, domain.TicketUsed, list[0].Status)
	assert.Equal(t, domain.TicketExpired, list[1].Status)
	assert.Equal(t, domain.TicketExpired, list[2].Status)

	_, err = later.Redeem(ctx, "e1", batch[1].Code)
	require.ErrorIs(t, err, ErrTicketExpired)

	counts, err := later.Counts(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketCounts{Used: 1, Expired: 2, Total: 3}, counts)

	counts, err = svc.Counts(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketCounts{Unused: 2, Used: 1, Total: 3}, counts)
}

func TestService_ListEmpty(t *testing.T) {
	svc, _ := newTestService(t, clock.NewFixed(now))

	list, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}

type recorder struct{ ids []string }

func (r *recorder) EventChanged(_ context.Context, id string) { r.ids = append(r.ids, id) }

func TestService_NotifiesAfterCommit(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	es := store.NewEvents(kv, nil)
	require.NoError(t, es.UpsertHistory(ctx, domain.Event{ID: "e1", Name: "Finals", Status: domain.EventActive}))

	rec := &recorder{}
	svc := New(kv, store.NewTickets(kv, nil), es, clock.NewFixed(now), Config{}, WithNotifier(rec))

	batch, err := svc.Generate(ctx, "e1", 1)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "e1", batch[0].Code)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "e1", batch[0].Code)
	require.ErrorIs(t, err, ErrTicketUsed)

	assert.Equal(t, []string{"e1", "e1"}, rec.ids)
}
