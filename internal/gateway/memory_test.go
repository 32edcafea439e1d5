package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remsync/internal/model"
)

var now = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

func TestMemoryCreateCompleteDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithNow(fixedNow))

	r, err := m.CreateReminder(ctx, model.CreateInput{Title: " Buy milk ", RemindAt: now.Add(time.Hour), Priority: model.PriorityLow})
	require.NoError(t, err)
	assert.Equal(t, model.ID("r1"), r.ID)
	assert.Equal(t, "Buy milk", r.Title)
	assert.Equal(t, model.StatusActive, r.Status)
	assert.Equal(t, model.RepeatNone, r.RepeatType)

	st, err := m.FetchStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Active: 1, Total: 1}, st)

	done, err := m.CompleteReminder(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	st, err = m.FetchStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Active)
	assert.Equal(t, 1, st.Completed)
	assert.Equal(t, 100.0, st.CompletionRate)
	assert.Equal(t, 1, st.CurrentStreak)

	active, err := m.FetchReminders(ctx, ReminderFilter{Status: model.StatusActive})
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, m.DeleteReminder(ctx, "r1"))
	assert.True(t, IsNotFound(m.DeleteReminder(ctx, "r1")))
	assert.Empty(t, m.Reminders())
}

func TestMemorySeededIDsAreNotReused(t *testing.T) {
	m := NewMemory(WithNow(fixedNow), WithReminders([]model.Reminder{{ID: "r7", Title: "seeded", RemindAt: now}}))

	r, err := m.CreateReminder(context.Background(), model.CreateInput{Title: "next", RemindAt: now})
	require.NoError(t, err)
	assert.Equal(t, model.ID("r8"), r.ID)
}

func TestMemoryFetchRemindersFilterAndOrder(t *testing.T) {
	cat := model.PtrID("2")
	m := NewMemory(WithReminders([]model.Reminder{
		{ID: "r1", Title: "late", RemindAt: now.Add(3 * time.Hour)},
		{ID: "r2", Title: "early", RemindAt: now.Add(time.Hour), CategoryID: cat},
		{ID: "r3", Title: "done", RemindAt: now, Status: model.StatusCompleted},
	}))
	ctx := context.Background()

	all, err := m.FetchReminders(ctx, ReminderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.ID("r3"), all[0].ID)
	assert.Equal(t, model.ID("r1"), all[2].ID)

	active, err := m.FetchReminders(ctx, ReminderFilter{Status: model.StatusActive})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, model.ID("r2"), active[0].ID)

	inCat, err := m.FetchReminders(ctx, ReminderFilter{CategoryID: cat})
	require.NoError(t, err)
	require.Len(t, inCat, 1)

	paged, err := m.FetchReminders(ctx, ReminderFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, model.ID("r2"), paged[0].ID)
}

func TestMemoryFaultInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")

	m.FailOnce(OpFetchCategories, boom)
	_, err := m.FetchCategories(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsRemoteError(err))

	cats, err := m.FetchCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 5)

	m.Fail(OpFetchUser, nil)
	_, err = m.FetchUser(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = m.FetchUser(ctx)
	assert.Error(t, err)

	m.Recover(OpFetchUser)
	u, err := m.FetchUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ru", u.Language)

	assert.Equal(t, 3, m.Calls(OpFetchUser))
	assert.Equal(t, 2, m.Calls(OpFetchCategories))
}

func TestMemoryHook(t *testing.T) {
	m := NewMemory()
	var seen []int
	m.SetHook(OpFetchStats, func(ctx context.Context, call int) error {
		seen = append(seen, call)
		if call == 2 {
			return errors.New("second call fails")
		}
		return nil
	})

	_, err := m.FetchStats(context.Background())
	require.NoError(t, err)
	_, err = m.FetchStats(context.Background())
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, seen)

	m.SetHook(OpFetchStats, nil)
	_, err = m.FetchStats(context.Background())
	assert.NoError(t, err)
}

func TestMemoryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().FetchUser(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryPinStats(t *testing.T) {
	m := NewMemory(WithStats(model.Stats{Completed: 9}))
	st, err := m.FetchStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, st.Completed)

	m.PinStats(nil)
	st, err = m.FetchStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, st)
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithReminders([]model.Reminder{{ID: "r1", Title: "a", RemindAt: now}}))

	title := "b"
	r, err := m.UpdateReminder(ctx, "r1", model.ReminderPatch{Title: &title, CategoryID: model.PtrID("3")})
	require.NoError(t, err)
	assert.Equal(t, "b", r.Title)
	assert.True(t, r.InCategory("3"))

	_, err = m.UpdateReminder(ctx, "r1", model.ReminderPatch{CategoryID: model.PtrID("99")})
	assert.True(t, IsNotFound(err))

	_, err = m.UpdateReminder(ctx, "missing", model.ReminderPatch{Title: &title})
	assert.True(t, IsNotFound(err))
}

func TestMemoryUpdateUserSettings(t *testing.T) {
	theme := model.ThemeDark
	u, err := NewMemory().UpdateUserSettings(context.Background(), model.SettingsPatch{Theme: &theme})
	require.NoError(t, err)
	assert.Equal(t, model.ThemeDark, u.Theme)
}

func TestComputeStats(t *testing.T) {
	day := func(d int) *time.Time {
		t := time.Date(2026, 2, d, 18, 0, 0, 0, time.UTC)
		return &t
	}
	tests := []struct {
		name string
		rs   []model.Reminder
		want model.Stats
	}{
		{"empty", nil, model.Stats{}},
		{"active only", []model.Reminder{{Status: model.StatusActive}}, model.Stats{Active: 1, Total: 1}},
		{
			"rate rounds to one decimal",
			[]model.Reminder{
				{Status: model.StatusCompleted, CompletedAt: day(1)},
				{Status: model.StatusCompleted, CompletedAt: day(1)},
				{Status: model.StatusMissed},
			},
			model.Stats{Completed: 2, Missed: 1, Total: 3, CompletionRate: 66.7, BestStreak: 1},
		},
		{
			"current streak through today",
			[]model.Reminder{
				{Status: model.StatusCompleted, CompletedAt: day(8)},
				{Status: model.StatusCompleted, CompletedAt: day(9)},
				{Status: model.StatusCompleted, CompletedAt: day(10)},
			},
			model.Stats{Completed: 3, Total: 3, CompletionRate: 100, CurrentStreak: 3, BestStreak: 3},
		},
		{
			"broken streak",
			[]model.Reminder{
				{Status: model.StatusCompleted, CompletedAt: day(1)},
				{Status: model.StatusCompleted, CompletedAt: day(2)},
				{Status: model.StatusCompleted, CompletedAt: day(9)},
			},
			model.Stats{Completed: 3, Total: 3, CompletionRate: 100, CurrentStreak: 1, BestStreak: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStats(tt.rs, now))
		})
	}
}
