package store

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/kirinyoku/bpms/internal/domain"
	"github.com/kirinyoku/bpms/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(id string) domain.Event {
	return domain.Event{
		ID:        id,
		Name:      "Miss Universe",
		Date:      "2025-06-01",
		Venue:     "Grand Hall",
		Status:    domain.EventDraft,
		CreatedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEvents_GetActive(t *testing.T) {
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		s := NewEvents(memory.New(), nil)

		ev, err := s.GetActive(ctx)
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("round trip", func(t *testing.T) {
		s := NewEvents(memory.New(), nil)
		want := sampleEvent("e1")

		require.NoError(t, s.SetActive(ctx, want))

		got, err := s.GetActive(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Venue, got.Venue)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

		history, err := s.ListHistory(ctx)
		require.NoError(t, err)
		assert.Empty(t, history, "SetActive must not append to history")
	})

	t.Run("corrupted data is logged and treated as absent", func(t *testing.T) {
		kv := memory.New()
		require.NoError(t, kv.Set(ctx, KeyActiveEvent, []byte("{not json")))

		var logs bytes.Buffer
		s := NewEvents(kv, slog.New(slog.NewTextHandler(&logs, nil)))

		ev, err := s.GetActive(ctx)
		require.NoError(t, err)
		assert.Nil(t, ev)
		assert.Contains(t, logs.String(), KeyActiveEvent)
	})

	t.Run("empty object is absent", func(t *testing.T) {
		kv := memory.New()
		require.NoError(t, kv.Set(ctx, KeyActiveEvent, []byte("{}")))

		ev, err := NewEvents(kv, nil).GetActive(ctx)
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("clear", func(t *testing.T) {
		s := NewEvents(memory.New(), nil)
		require.NoError(t, s.SetActive(ctx, sampleEvent("e1")))
		require.NoError(t, s.ClearActive(ctx))

		ev, err := s.GetActive(ctx)
		require.NoError(t, err)
		assert.Nil(t, ev)
	})
}

func TestEvents_UpsertHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("insert then replace in place", func(t *testing.T) {
		s := NewEvents(memory.New(), nil)

		require.NoError(t, s.UpsertHistory(ctx, sampleEvent("a")))
		require.NoError(t, s.UpsertHistory(ctx, sampleEvent("b")))

		changed := sampleEvent("a")
		changed.Status = domain.EventCompleted
		changed.Name = "Renamed"
		require.NoError(t, s.UpsertHistory(ctx, changed))

		list, err := s.ListHistory(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "a", list[0].ID)
		assert.Equal(t, "Renamed", list[0].Name)
		assert.Equal(t, domain.EventCompleted, list[0].Status)
		assert.Equal(t, "b", list[1].ID)
	})

	t.Run("round trip holds exactly one entry per id", func(t *testing.T) {
		s := NewEvents(memory.New(), nil)
		e := sampleEvent("x")
		e.Time = "18:30"

		require.NoError(t, s.UpsertHistory(ctx, e))
		require.NoError(t, s.UpsertHistory(ctx, e))

		list, err := s.ListHistory(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, e.Name, list[0].Name)
		assert.Equal(t, e.Date, list[0].Date)
		assert.Equal(t, e.Time, list[0].Time)
		assert.Equal(t, e.Venue, list[0].Venue)
		assert.Equal(t, e.Status, list[0].Status)
	})

	t.Run("missing id is a no-op", func(t *testing.T) {
		kv := memory.New()
		s := NewEvents(kv, nil)

		require.NoError(t, s.UpsertHistory(ctx, domain.Event{Name: "anon"}))
		assert.Empty(t, kv.Keys())
	})

	t.Run("corrupted history reads as empty", func(t *testing.T) {
		kv := memory.New()
		require.NoError(t, kv.Set(ctx, KeyEvents, []byte(`{"id":1}`)))

		list, err := NewEvents(kv, nil).ListHistory(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestEvents_Find(t *testing.T) {
	ctx := context.Background()
	s := NewEvents(memory.New(), nil)

	require.NoError(t, s.UpsertHistory(ctx, sampleEvent("old")))
	active := sampleEvent("cur")
	active.Status = domain.EventActive
	require.NoError(t, s.SetActive(ctx, active))

	got, err := s.Find(ctx, "cur")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.EventActive, got.Status)

	got, err = s.Find(ctx, "old")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "old", got.ID)

	got, err = s.Find(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKeyTickets(t *testing.T) {
	assert.Equal(t, "bpms_tickets_e1", KeyTickets("e1"))
	assert.Equal(t, "bpms_tickets_default", KeyTickets(""))
}
