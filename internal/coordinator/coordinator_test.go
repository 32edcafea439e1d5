package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remsync/internal/bootstrap"
	"github.com/roach88/remsync/internal/gateway"
	"github.com/roach88/remsync/internal/model"
	"github.com/roach88/remsync/internal/state"
)

var when = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// setup bootstraps a session against gw and returns its store and coordinator.
func setup(t *testing.T, gw gateway.Gateway, opts ...Option) (*state.Store, *Coordinator) {
	t.Helper()
	st := state.NewStore(state.WithLogger(quiet()))
	_, err := bootstrap.New(st, gw, nil, bootstrap.WithLogger(quiet())).Run(context.Background())
	require.NoError(t, err)
	return st, New(st, gw, append([]Option{WithLogger(quiet())}, opts...)...)
}

func memory(opts ...gateway.MemoryOption) *gateway.Memory {
	return gateway.NewMemory(append([]gateway.MemoryOption{gateway.WithNow(func() time.Time { return when })}, opts...)...)
}

func kindsSince(st *state.Store, seq int64) []state.Kind {
	var out []state.Kind
	for _, a := range st.History() {
		if a.Seq > seq {
			out = append(out, a.Kind)
		}
	}
	return out
}

func TestCreateThenComplete(t *testing.T) {
	gw := memory()
	st, c := setup(t, gw)
	require.Empty(t, st.Snapshot().Reminders)
	require.Equal(t, model.Stats{}, st.Snapshot().Stats)

	created, err := c.Create(context.Background(), model.CreateInput{
		Title:    "Buy milk",
		RemindAt: when.Add(2 * time.Hour),
		Priority: model.PriorityLow,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ID("r1"), created.ID)
	assert.Equal(t, model.StatusActive, created.Status)

	s := st.Snapshot()
	require.Len(t, s.Reminders, 1)
	assert.Equal(t, created, s.Reminders[0])
	assert.Equal(t, 1, s.Stats.Active)

	mark := st.Seq()
	done, err := c.Complete(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)

	s = st.Snapshot()
	require.Len(t, s.Reminders, 1)
	assert.Equal(t, model.ID("r1"), s.Reminders[0].ID)
	assert.Equal(t, model.StatusCompleted, s.Reminders[0].Status)
	assert.Equal(t, 1, s.Stats.Completed)
	assert.Equal(t, 0, s.Stats.Active)
	assert.Equal(t, []state.Kind{state.KindUpdateReminder, state.KindSetStats}, kindsSince(st, mark))
}

func TestCreateFailureLeavesStateUntouched(t *testing.T) {
	gw := memory(gateway.WithReminders([]model.Reminder{{ID: "r1", Title: "existing", RemindAt: when}}))
	st, c := setup(t, gw)
	before, err := st.Snapshot().Hash()
	require.NoError(t, err)
	seq := st.Seq()

	gw.Fail(gateway.OpCreateReminder, errors.New("timeout"))
	_, err = c.Create(context.Background(), model.CreateInput{Title: "New", RemindAt: when})
	require.Error(t, err)
	assert.True(t, IsMutationError(err))
	assert.True(t, gateway.IsRemoteError(err))
	assert.False(t, model.IsValidationError(err))

	after, err := st.Snapshot().Hash()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, seq, st.Seq(), "no action may be dispatched for a failed mutation")
	assert.Equal(t, 1, gw.Calls(gateway.OpFetchStats), "no resync after a failed create")
}

func TestCompleteFailureLeavesStateUntouched(t *testing.T) {
	gw := memory(gateway.WithReminders([]model.Reminder{{ID: "r1", Title: "open", RemindAt: when}}))
	st, c := setup(t, gw)
	before := st.Snapshot().Reminders
	statsCalls := gw.Calls(gateway.OpFetchStats)
	seq := st.Seq()

	gw.Fail(gateway.OpCompleteReminder, nil)
	_, err := c.Complete(context.Background(), "r1")
	require.Error(t, err)
	assert.True(t, IsMutationError(err))

	assert.Equal(t, before, st.Snapshot().Reminders)
	assert.Equal(t, model.StatusActive, st.Snapshot().Reminders[0].Status)
	assert.Equal(t, seq, st.Seq())
	assert.Equal(t, statsCalls, gw.Calls(gateway.OpFetchStats), "no resync after a failed complete")
}

func TestResponseWithoutIDIsNotCommitted(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		run    func(*Coordinator) error
		op     Operation
	}{
		{
			name:   "create with empty body",
			status: http.StatusCreated,
			run: func(c *Coordinator) error {
				_, err := c.Create(context.Background(), model.CreateInput{Title: "Buy milk", RemindAt: when})
				return err
			},
			op: OpCreate,
		},
		{
			name:   "update with empty object",
			status: http.StatusOK,
			body:   `{}`,
			run: func(c *Coordinator) error {
				title := "renamed"
				_, err := c.Update(context.Background(), "7", model.ReminderPatch{Title: &title})
				return err
			},
			op: OpUpdate,
		},
		{
			name:   "complete with empty object",
			status: http.StatusOK,
			body:   `{}`,
			run: func(c *Coordinator) error {
				_, err := c.Complete(context.Background(), "7")
				return err
			},
			op: OpComplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			st := state.NewStore(state.WithLogger(quiet()))
			st.Dispatch(state.SetReminders{Reminders: []model.Reminder{{ID: "7", Title: "kept", RemindAt: when}}})
			seq := st.Seq()
			c := New(st, gateway.NewHTTP(srv.URL, gateway.WithHTTPLogger(quiet())), WithLogger(quiet()))

			err := tt.run(c)
			require.Error(t, err)
			var me *MutationError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.op, me.Op)
			assert.True(t, gateway.IsRemoteError(err))
			assert.Contains(t, err.Error(), "response missing id")

			assert.Equal(t, seq, st.Seq(), "nothing may be committed")
			s := st.Snapshot()
			require.Len(t, s.Reminders, 1)
			assert.Equal(t, model.ID("7"), s.Reminders[0].ID)
			assert.Equal(t, "kept", s.Reminders[0].Title)
		})
	}
}

func TestCompleteCommitsServerStats(t *testing.T) {
	gw := memory(gateway.WithReminders([]model.Reminder{{ID: "r1", Title: "a", RemindAt: when}}))
	st, c := setup(t, gw)

	served := model.Stats{Active: 7, Completed: 42, Total: 49, CompletionRate: 97.7, CurrentStreak: 3, BestStreak: 9}
	gw.PinStats(&served)

	_, err := c.Complete(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, served, st.Snapshot().Stats)
}

func TestFailedDeleteLeavesReminder(t *testing.T) {
	gw := memory(gateway.WithReminders([]model.Reminder{{ID: "r1", Title: "keep me", RemindAt: when}}))
	st, c := setup(t, gw)
	gw.Fail(gateway.OpDeleteReminder, nil)

	err := c.Delete(context.Background(), "r1")
	require.Error(t, err)
	var me *MutationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, OpDelete, me.Op)
	assert.Equal(t, model.ID("r1"), me.ID)

	s := st.Snapshot()
	require.Len(t, s.Reminders, 1)
	assert.Equal(t, model.ID("r1"), s.Reminders[0].ID)
}

func TestDeleteRemovesAndResyncs(t *testing.T) {
	gw := memory(gateway.WithReminders([]model.Reminder{{ID: "r1", Title: "a", RemindAt: when}}))
	st, c := setup(t, gw)
	require.Equal(t, 1, st.Snapshot().Stats.Active)

	require.NoError(t, c.Delete(context.Background(), "r1"))
	s := st.Snapshot()
	assert.Empty(t, s.Reminders)
	assert.Equal(t, 0, s.Stats.Active)
	assert.Equal(t, 2, gw.Calls(gateway.OpFetchStats))
}

func TestDeleteWithoutResync(t *testing.T) {
	gw := memory(gateway.WithReminders([]model.Reminder{{ID: "r1", Title: "a", RemindAt: when}}))
	st, c := setup(t, gw, WithDeleteResync(false))

	require.NoError(t, c.Delete(context.Background(), "r1"))
	assert.Empty(t, st.Snapshot().Reminders)
	assert.Equal(t, 1, gw.Calls(gateway.OpFetchStats))
	assert.Equal(t, 1, st.Snapshot().Stats.Active, "stats hold the last server value")
}

func TestDeleteNotFound(t *testing.T) {
	gw := memory()
	_, c := setup(t, gw)

	err := c.Delete(context.Background(), "ghost")
	assert.True(t, IsMutationError(err))
	assert.True(t, IsNotFound(err))
}

func TestUpdateInPlaceWithoutResync(t *testing.T) {
	gw := memory(gateway.WithReminders([]model.Reminder{
		{ID: "r1", Title: "first", RemindAt: when},
		{ID: "r2", Title: "second", RemindAt: when.Add(time.Hour)},
	}))
	st, c := setup(t, gw)
	statsCalls := gw.Calls(gateway.OpFetchStats)

	title := "  renamed  "
	prio := model.PriorityHigh
	r, err := c.Update(context.Background(), "r2", model.ReminderPatch{Title: &title, Priority: &prio, CategoryID: model.PtrID("2")})
	require.NoError(t, err)
	assert.Equal(t, "renamed", r.Title)

	s := st.Snapshot()
	require.Len(t, s.Reminders, 2)
	assert.Equal(t, model.ID("r2"), s.Reminders[1].ID)
	assert.Equal(t, "renamed", s.Reminders[1].Title)
	assert.Equal(t, model.PriorityHigh, s.Reminders[1].Priority)
	assert.Equal(t, model.StatusActive, s.Reminders[1].Status)
	assert.Equal(t, statsCalls, gw.Calls(gateway.OpFetchStats))
}

func TestUpdateFailure(t *testing.T) {
	gw := memory(gateway.WithReminders([]model.Reminder{{ID: "r1", Title: "first", RemindAt: when}}))
	st, c := setup(t, gw)
	gw.FailOnce(gateway.OpUpdateReminder, nil)

	title := "x"
	_, err := c.Update(context.Background(), "r1", model.ReminderPatch{Title: &title})
	assert.True(t, IsMutationError(err))
	assert.Equal(t, "first", st.Snapshot().Reminders[0].Title)
}

func TestValidationHappensBeforeNetwork(t *testing.T) {
	gw := memory()
	st, c := setup(t, gw)
	seq := st.Seq()
	ctx := context.Background()

	_, err := c.Create(ctx, model.CreateInput{Title: "   ", RemindAt: when})
	assert.True(t, model.IsValidationError(err))
	assert.False(t, IsMutationError(err))

	_, err = c.Create(ctx, model.CreateInput{Title: "no time"})
	assert.True(t, model.IsValidationError(err))

	_, err = c.Create(ctx, model.CreateInput{Title: "bad prio", RemindAt: when, Priority: "urgent"})
	assert.True(t, model.IsValidationError(err))

	_, err = c.Create(ctx, model.CreateInput{Title: "bad cat", RemindAt: when, CategoryID: model.PtrID("404")})
	assert.True(t, model.IsValidationError(err))

	_, err = c.Complete(ctx, "")
	assert.True(t, model.IsValidationError(err))

	assert.True(t, model.IsValidationError(c.Delete(ctx, " ")))

	_, err = c.Update(ctx, "r1", model.ReminderPatch{})
	assert.True(t, model.IsValidationError(err))

	_, err = c.UpdateSettings(ctx, model.SettingsPatch{})
	assert.True(t, model.IsValidationError(err))

	assert.Equal(t, 0, gw.Calls(gateway.OpCreateReminder))
	assert.Equal(t, 0, gw.Calls(gateway.OpCompleteReminder))
	assert.Equal(t, 0, gw.Calls(gateway.OpDeleteReminder))
	assert.Equal(t, 0, gw.Calls(gateway.OpUpdateReminder))
	assert.Equal(t, 0, gw.Calls(gateway.OpUpdateUserSettings))
	assert.Equal(t, seq, st.Seq())
}

func TestCategoryCheckDeferredWhenCategoriesMissing(t *testing.T) {
	gw := memory()
	gw.Fail(gateway.OpFetchCategories, nil)
	st, c := setup(t, gw)
	require.Empty(t, st.Snapshot().Categories)

	_, err := c.Create(context.Background(), model.CreateInput{Title: "t", RemindAt: when, CategoryID: model.PtrID("404")})
	require.Error(t, err)
	assert.True(t, IsMutationError(err), "the service rejects the unknown category")
	assert.True(t, IsNotFound(err))
}

func TestResyncFailureKeepsCommit(t *testing.T) {
	gw := memory()
	st, c := setup(t, gw)
	gw.FailOnce(gateway.OpFetchStats, nil)

	r, err := c.Create(context.Background(), model.CreateInput{Title: "t", RemindAt: when})
	require.Error(t, err)
	assert.True(t, IsResyncError(err))
	assert.False(t, IsMutationError(err))
	assert.Equal(t, model.ID("r1"), r.ID)

	s := st.Snapshot()
	require.Len(t, s.Reminders, 1)
	assert.Equal(t, 0, s.Stats.Active, "stats lag until the next resync")

	require.NoError(t, c.RefreshStats(context.Background()))
	assert.Equal(t, 1, st.Snapshot().Stats.Active)
}

func TestRefreshStatsDropsStaleResponse(t *testing.T) {
	gw := memory()
	st, c := setup(t, gw)

	entered := make(chan struct{})
	release := make(chan struct{})
	gw.SetHook(gateway.OpFetchStats, func(ctx context.Context, call int) error {
		if call == 2 { // the first refresh after bootstrap
			close(entered)
			<-release
		}
		return nil
	})

	slow := make(chan error, 1)
	go func() { slow <- c.RefreshStats(context.Background()) }()
	<-entered

	fresh := model.Stats{Active: 2, Total: 2}
	gw.PinStats(&fresh)
	require.NoError(t, c.RefreshStats(context.Background()))
	assert.Equal(t, fresh, st.Snapshot().Stats)

	stale := model.Stats{Active: 99}
	gw.PinStats(&stale)
	close(release)
	require.NoError(t, <-slow)

	assert.Equal(t, fresh, st.Snapshot().Stats, "an older resync must not overwrite a newer one")
}

func TestConcurrentCompletesBothCommit(t *testing.T) {
	gw := memory(gateway.WithReminders([]model.Reminder{
		{ID: "r1", Title: "a", RemindAt: when},
		{ID: "r2", Title: "b", RemindAt: when},
	}))
	st, c := setup(t, gw)

	var wg sync.WaitGroup
	for _, id := range []model.ID{"r1", "r2"} {
		wg.Add(1)
		go func(id model.ID) {
			defer wg.Done()
			_, err := c.Complete(context.Background(), id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	s := st.Snapshot()
	assert.Len(t, s.CompletedReminders(), 2)
	assert.Equal(t, 2, s.Stats.Completed)
	assert.Equal(t, 0, s.Stats.Active)
}

func TestUpdateSettings(t *testing.T) {
	gw := memory()
	st, c := setup(t, gw)

	lang := "en"
	u, err := c.UpdateSettings(context.Background(), model.SettingsPatch{Language: &lang})
	require.NoError(t, err)
	assert.Equal(t, "en", u.Language)
	require.NotNil(t, st.Snapshot().User)
	assert.Equal(t, "en", st.Snapshot().User.Language)

	gw.Fail(gateway.OpUpdateUserSettings, nil)
	other := "de"
	_, err = c.UpdateSettings(context.Background(), model.SettingsPatch{Language: &other})
	assert.True(t, IsMutationError(err))
	assert.Equal(t, "en", st.Snapshot().User.Language)
}
