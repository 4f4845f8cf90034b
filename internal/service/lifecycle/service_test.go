package lifecycle

import (
	"context"
	"fmt"
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

type recorder struct{ ids []string }

func (r *recorder) EventChanged(_ context.Context, id string) { r.ids = append(r.ids, id) }

func newTestService(t *testing.T) (*Service, *memory.Store, *recorder) {
	t.Helper()

	kv := memory.New()
	rec := &recorder{}
	seq := 0
	svc := New(kv, store.NewEvents(kv, nil), clock.NewFixed(now),
		WithNotifier(rec),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("event-%d", seq)
		}),
	)

	return svc, kv, rec
}

func validFields() domain.EventFields {
	return domain.EventFields{Name: "Miss Universe", Date: "2025-06-01", Venue: "Grand Hall"}
}

func countActive(list []domain.Event) int {
	n := 0
	for _, e := range list {
		if e.Status == domain.EventActive {
			n++
		}
	}
	return n
}

func TestService_CreateDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("creates draft and installs pointer", func(t *testing.T) {
		svc, _, rec := newTestService(t)

		ev, err := svc.CreateDraft(ctx, domain.EventFields{
			Name:  "  Miss Universe ",
			Date:  "2025-06-01",
			Time:  "19:00",
			Venue: "Grand Hall",
		})
		require.NoError(t, err)
		assert.Equal(t, "event-1", ev.ID)
		assert.Equal(t, "Miss Universe", ev.Name)
		assert.Equal(t, domain.EventDraft, ev.Status)
		assert.True(t, ev.CreatedAt.Equal(now))
		assert.True(t, ev.UpdatedAt.Equal(now))

		active, err := svc.Active(ctx)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, ev.ID, active.ID)
		assert.Equal(t, []string{"event-1"}, rec.ids)
	})

	t.Run("archives previous pointer as completed", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		first, err := svc.CreateDraft(ctx, validFields())
		require.NoError(t, err)
		second, err := svc.CreateDraft(ctx, validFields())
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		history, err := svc.History(ctx)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, first.ID, history[0].ID)
		assert.Equal(t, domain.EventCompleted, history[0].Status)
		assert.Equal(t, second.ID, history[1].ID)
		assert.Equal(t, domain.EventDraft, history[1].Status)
	})

	t.Run("validation failure writes nothing", func(t *testing.T) {
		svc, kv, rec := newTestService(t)

		_, err := svc.CreateDraft(ctx, domain.EventFields{Name: "ab", Date: "2025-13-40", Venue: "Hall"})
		require.Error(t, err)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "Event name must be at least 3 characters", verr.Fields["name"])
		assert.Equal(t, "Please enter a valid date", verr.Fields["date"])
		assert.Equal(t, "Venue/Location must be at least 5 characters", verr.Fields["venue"])
		assert.Empty(t, kv.Keys())
		assert.Empty(t, rec.ids)
	})
}

func TestValidateFields(t *testing.T) {
	long := strings.Repeat("x", 101)

	tests := []struct {
		name  string
		in    domain.EventFields
		field string
		msg   string
	}{
		{"missing name", domain.EventFields{Date: "2025-01-01", Venue: "Grand Hall"}, "name", "Event name is required"},
		{"long name", domain.EventFields{Name: long, Date: "2025-01-01", Venue: "Grand Hall"}, "name", "Event name must not exceed 100 characters"},
		{"missing date", domain.EventFields{Name: "Gala", Venue: "Grand Hall"}, "date", "Event date is required"},
		{"missing venue", domain.EventFields{Name: "Gala", Date: "2025-01-01", Venue: "   "}, "venue", "Venue/Location is required"},
		{"long venue", domain.EventFields{Name: "Gala", Date: "2025-01-01", Venue: strings.Repeat("v", 201)}, "venue", "Venue/Location must not exceed 200 characters"},
		{"bad time", domain.EventFields{Name: "Gala", Date: "2025-01-01", Venue: "Grand Hall", Time: "25:99"}, "time", "Please enter a valid time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateFields(tt.in)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.msg, verr.Fields[tt.field])
		})
	}

	t.Run("boundaries pass", func(t *testing.T) {
		out, err := validateFields(domain.EventFields{
			Name:  "abc",
			Date:  "2024-02-29",
			Venue: strings.Repeat("v", 200),
		})
		require.NoError(t, err)
		assert.Equal(t, "abc", out.Name)
	})
}

func TestService_CreateActiveDirect(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	first, err := svc.CreateActiveDirect(ctx, validFields())
	require.NoError(t, err)
	assert.Equal(t, domain.EventActive, first.Status)

	second, err := svc.CreateActiveDirect(ctx, validFields())
	require.NoError(t, err)
	assert.Equal(t, domain.EventActive, second.Status)

	history, err := svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.EventCompleted, history[0].Status)
	assert.Equal(t, 1, countActive(history))
}

func TestService_ToggleActivation(t *testing.T) {
	ctx := context.Background()

	t.Run("no pointer", func(t *testing.T) {
		svc, kv, _ := newTestService(t)

		_, err := svc.ToggleActivation(ctx)
		require.ErrorIs(t, err, ErrNoActiveEvent)
		assert.Empty(t, kv.Keys())
	})

	t.Run("flips draft and active", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.CreateDraft(ctx, validFields())
		require.NoError(t, err)

		ev, err := svc.ToggleActivation(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.EventActive, ev.Status)

		history, err := svc.History(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.EventActive, history[0].Status)

		ev, err = svc.ToggleActivation(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.EventDraft, ev.Status)

		active, err := svc.Active(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.EventDraft, active.Status)
	})

	t.Run("completed pointer is terminal", func(t *testing.T) {
		svc, kv, _ := newTestService(t)
		events := store.NewEvents(kv, nil)
		require.NoError(t, events.SetActive(ctx, domain.Event{ID: "done", Status: domain.EventCompleted}))

		_, err := svc.ToggleActivation(ctx)
		require.ErrorIs(t, err, ErrEventCompleted)

		active, err := svc.Active(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.EventCompleted, active.Status)
	})

	t.Run("activation completes any other active event", func(t *testing.T) {
		svc, kv, _ := newTestService(t)
		events := store.NewEvents(kv, nil)
		require.NoError(t, events.UpsertHistory(ctx, domain.Event{ID: "stale", Status: domain.EventActive}))

		_, err := svc.CreateDraft(ctx, validFields())
		require.NoError(t, err)
		_, err = svc.ToggleActivation(ctx)
		require.NoError(t, err)

		history, err := svc.History(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, countActive(history))
		assert.Equal(t, domain.EventCompleted, history[0].Status)
	})
}

func TestService_ActivateFromHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("requires confirmation", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ev, err := svc.CreateDraft(ctx, validFields())
		require.NoError(t, err)

		_, err = svc.ActivateFromHistory(ctx, ev.ID, false)
		require.ErrorIs(t, err, ErrNotConfirmed)
	})

	t.Run("unknown id leaves state unchanged", func(t *testing.T) {
		svc, kv, _ := newTestService(t)
		_, err := svc.CreateDraft(ctx, validFields())
		require.NoError(t, err)

		before := snapshot(t, kv)
		_, err = svc.ActivateFromHistory(ctx, "missing", true)
		require.ErrorIs(t, err, ErrEventNotFound)
		assert.Equal(t, before, snapshot(t, kv))
	})

	t.Run("completed entry cannot be reopened", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		first, err := svc.CreateDraft(ctx, validFields())
		require.NoError(t, err)
		_, err = svc.CreateDraft(ctx, validFields())
		require.NoError(t, err)

		_, err = svc.ActivateFromHistory(ctx, first.ID, true)
		require.ErrorIs(t, err, ErrEventCompleted)
	})

	t.Run("activates draft and demotes current active", func(t *testing.T) {
		svc, kv, _ := newTestService(t)
		events := store.NewEvents(kv, nil)

		require.NoError(t, events.UpsertHistory(ctx, domain.Event{ID: "waiting", Name: "Spring Gala", Status: domain.EventDraft}))
		running, err := svc.CreateActiveDirect(ctx, validFields())
		require.NoError(t, err)

		ev, err := svc.ActivateFromHistory(ctx, "waiting", true)
		require.NoError(t, err)
		assert.Equal(t, domain.EventActive, ev.Status)
		assert.True(t, ev.UpdatedAt.Equal(now))

		active, err := svc.Active(ctx)
		require.NoError(t, err)
		assert.Equal(t, "waiting", active.ID)

		history, err := svc.History(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, countActive(history))
		for _, e := range history {
			if e.ID == running.ID {
				assert.Equal(t, domain.EventCompleted, e.Status)
			}
		}
	})
}

func TestService_Edit(t *testing.T) {
	ctx := context.Background()

	t.Run("edits draft", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.CreateDraft(ctx, validFields())
		require.NoError(t, err)

		ev, err := svc.Edit(ctx, domain.EventFields{Name: "Miss World", Date: "2025-07-01", Time: "20:00", Venue: "Open Air Stage"})
		require.NoError(t, err)
		assert.Equal(t, "Miss World", ev.Name)
		assert.Equal(t, "20:00", ev.Time)

		history, err := svc.History(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Miss World", history[0].Name)
	})

	t.Run("non-draft event is left unchanged", func(t *testing.T) {
		svc, kv, _ := newTestService(t)
		_, err := svc.CreateActiveDirect(ctx, validFields())
		require.NoError(t, err)

		before := snapshot(t, kv)
		_, err = svc.Edit(ctx, domain.EventFields{Name: "Other", Date: "2025-07-01", Venue: "Other Hall"})
		require.ErrorIs(t, err, ErrNotDraft)
		assert.Equal(t, before, snapshot(t, kv))
	})

	t.Run("invalid fields are rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.CreateDraft(ctx, validFields())
		require.NoError(t, err)

		_, err = svc.Edit(ctx, domain.EventFields{Name: "", Date: "2025-07-01", Venue: "Grand Hall"})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "name")
	})
}

func TestService_PreviousEvent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	prev, err := svc.PreviousEvent(ctx)
	require.NoError(t, err)
	assert.Nil(t, prev)

	first, err := svc.CreateDraft(ctx, validFields())
	require.NoError(t, err)
	_, err = svc.CreateDraft(ctx, validFields())
	require.NoError(t, err)

	prev, err = svc.PreviousEvent(ctx)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, first.ID, prev.ID)
}

// The walkthrough from the product brief: draft, activate, then a new draft.
func TestService_LifecycleScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	first, err := svc.CreateDraft(ctx, domain.EventFields{Name: "Miss Universe", Date: "2025-06-01", Venue: "Grand Hall"})
	require.NoError(t, err)

	_, err = svc.ToggleActivation(ctx)
	require.NoError(t, err)

	second, err := svc.CreateDraft(ctx, domain.EventFields{Name: "Miss Earth", Date: "2025-09-01", Venue: "City Arena"})
	require.NoError(t, err)

	history, err := svc.History(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, countActive(history), 1)

	var archived *domain.Event
	for i := range history {
		if history[i].ID == first.ID {
			archived = &history[i]
		}
	}
	require.NotNil(t, archived)
	assert.Equal(t, domain.EventCompleted, archived.Status)

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, domain.EventDraft, active.Status)
}

func snapshot(t *testing.T, kv *memory.Store) map[string]string {
	t.Helper()

	out := make(map[string]string)
	for _, k := range kv.Keys() {
		v, _, err := kv.Get(context.Background(), k)
		require.NoError(t, err)
		out[k] = string(v)
	}
	return out
}
