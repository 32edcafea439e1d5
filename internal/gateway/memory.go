package gateway

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/remsync/internal/model"
)

// DefaultCategories mirrors the categories the reminder service creates for
// every new account.
func DefaultCategories() []model.Category {
	return []model.Category{
		{ID: "1", Name: "Личное", Icon: "👤", Color: "#6C5CE7", IsDefault: true, Order: 0},
		{ID: "2", Name: "Работа", Icon: "💼", Color: "#0984E3", IsDefault: true, Order: 1},
		{ID: "3", Name: "Учёба", Icon: "📚", Color: "#00B894", IsDefault: true, Order: 2},
		{ID: "4", Name: "Здоровье", Icon: "❤️", Color: "#E17055", IsDefault: true, Order: 3},
		{ID: "5", Name: "Покупки", Icon: "🛒", Color: "#FDCB6E", IsDefault: true, Order: 4},
	}
}

// DefaultUser is the account a fresh Memory service serves.
func DefaultUser() model.User {
	return model.User{
		ID:                   "1",
		TelegramID:           123456789,
		Username:             "demo",
		FirstName:            "Demo",
		Language:             "ru",
		Timezone:             "Europe/Moscow",
		NotificationsEnabled: true,
		Theme:                model.ThemeAuto,
		CreatedAt:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Hook runs before an operation executes, outside the service lock. call is
// the 1-based count of invocations of that operation. A non-nil error fails
// the call.
type Hook func(ctx context.Context, call int) error

type fault struct {
	err  error
	once bool
}

// Memory is an in-process reminder service. It assigns ids r1, r2, ... and
// computes Stats from its own reminders the way the real service does.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	now        func() time.Time
	user       model.User
	reminders  []model.Reminder
	categories []model.Category
	stats      *model.Stats
	nextID     int
	faults     map[Op]fault
	hooks      map[Op]Hook
	calls      map[Op]int
}

// MemoryOption configures a Memory service.
type MemoryOption func(*Memory)

// WithNow sets the service clock. Default: time.Now.
func WithNow(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithUser seeds the account.
func WithUser(u model.User) MemoryOption {
	return func(m *Memory) {
		m.user = u
	}
}

// WithCategories replaces the default categories.
func WithCategories(cats []model.Category) MemoryOption {
	return func(m *Memory) {
		m.categories = append([]model.Category{}, cats...)
	}
}

// WithReminders seeds existing reminders.
func WithReminders(rs []model.Reminder) MemoryOption {
	return func(m *Memory) {
		for _, r := range rs {
			m.seed(r)
		}
	}
}

// WithStats pins the Stats response instead of computing it.
func WithStats(st model.Stats) MemoryOption {
	return func(m *Memory) {
		m.stats = &st
	}
}

// NewMemory creates a service with the default user and categories.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:        time.Now,
		user:       DefaultUser(),
		categories: DefaultCategories(),
		faults:     make(map[Op]fault),
		hooks:      make(map[Op]Hook),
		calls:      make(map[Op]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Gateway = (*Memory)(nil)

// Fail makes every call to op fail with err (ErrUnavailable when nil).
func (m *Memory) Fail(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = fault{err: err}
}

// FailOnce makes the next call to op fail.
func (m *Memory) FailOnce(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = fault{err: err, once: true}
}

// Recover clears any injected failure for op.
func (m *Memory) Recover(op Op) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.faults, op)
}

// SetHook installs h for op. A nil hook removes it.
func (m *Memory) SetHook(op Op, h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h == nil {
		delete(m.hooks, op)
		return
	}
	m.hooks[op] = h
}

// PinStats fixes the Stats response. Nil returns to computed stats.
func (m *Memory) PinStats(st *model.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st == nil {
		m.stats = nil
		return
	}
	c := *st
	m.stats = &c
}

// Calls returns how many times op was invoked.
func (m *Memory) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Reminders returns every stored reminder, including completed ones.
func (m *Memory) Reminders() []model.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.reminders)
}

// enter counts the call, runs the hook and applies injected faults.
func (m *Memory) enter(ctx context.Context, op Op) error {
	m.mu.Lock()
	m.calls[op]++
	call := m.calls[op]
	hook := m.hooks[op]
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return &RemoteError{Op: op, Err: err}
		}
	}
	if err := ctx.Err(); err != nil {
		return &RemoteError{Op: op, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.faults[op]
	if !ok {
		return nil
	}
	if f.once {
		delete(m.faults, op)
	}
	err := f.err
	if err == nil {
		err = ErrUnavailable
	}
	return &RemoteError{Op: op, StatusCode: http.StatusServiceUnavailable, Err: err}
}

// FetchUser implements Gateway.
func (m *Memory) FetchUser(ctx context.Context) (model.User, error) {
	if err := m.enter(ctx, OpFetchUser); err != nil {
		return model.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user, nil
}

// FetchReminders implements Gateway. Results are ordered by remind_at.
func (m *Memory) FetchReminders(ctx context.Context, filter ReminderFilter) ([]model.Reminder, error) {
	if err := m.enter(ctx, OpFetchReminders); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Reminder{}
	for _, r := range m.reminders {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.CategoryID != nil && !r.InCategory(*filter.CategoryID) {
			continue
		}
		if filter.From != nil && r.RemindAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && r.RemindAt.After(*filter.To) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RemindAt.Before(out[j].RemindAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []model.Reminder{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// FetchCategories implements Gateway.
func (m *Memory) FetchCategories(ctx context.Context) ([]model.Category, error) {
	if err := m.enter(ctx, OpFetchCategories); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Category{}, m.categories...), nil
}

// FetchStats implements Gateway.
func (m *Memory) FetchStats(ctx context.Context) (model.Stats, error) {
	if err := m.enter(ctx, OpFetchStats); err != nil {
		return model.Stats{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stats != nil {
		return *m.stats, nil
	}
	return ComputeStats(m.reminders, m.now()), nil
}

// CreateReminder implements Gateway.
func (m *Memory) CreateReminder(ctx context.Context, in model.CreateInput) (model.Reminder, error) {
	if err := m.enter(ctx, OpCreateReminder); err != nil {
		return model.Reminder{}, err
	}
	in = in.Normalize()
	if err := in.Validate(nil); err != nil {
		return model.Reminder{}, &RemoteError{Op: OpCreateReminder, StatusCode: http.StatusUnprocessableEntity, Message: err.Error()}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if in.CategoryID != nil && !m.hasCategory(*in.CategoryID) {
		return model.Reminder{}, &RemoteError{Op: OpCreateReminder, StatusCode: http.StatusNotFound, Message: "Category not found"}
	}
	m.nextID++
	r := model.Reminder{
		ID:           model.ID("r" + strconv.Itoa(m.nextID)),
		Title:        in.Title,
		Description:  in.Description,
		RemindAt:     in.RemindAt,
		Priority:     in.Priority,
		Status:       model.StatusActive,
		RepeatType:   in.RepeatType,
		RepeatDays:   in.RepeatDays,
		NotifyBefore: in.NotifyBefore,
		CreatedAt:    m.now().UTC(),
	}
	if in.CategoryID != nil {
		r.CategoryID = model.PtrID(*in.CategoryID)
	}
	m.reminders = append(m.reminders, r)
	return r.Clone(), nil
}

// UpdateReminder implements Gateway.
func (m *Memory) UpdateReminder(ctx context.Context, id model.ID, patch model.ReminderPatch) (model.Reminder, error) {
	if err := m.enter(ctx, OpUpdateReminder); err != nil {
		return model.Reminder{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return model.Reminder{}, notFound(OpUpdateReminder)
	}
	if !patch.ClearCategory && patch.CategoryID != nil && !m.hasCategory(*patch.CategoryID) {
		return model.Reminder{}, &RemoteError{Op: OpUpdateReminder, StatusCode: http.StatusNotFound, Message: "Category not found"}
	}
	m.reminders[i] = patch.Apply(m.reminders[i])
	return m.reminders[i].Clone(), nil
}

// CompleteReminder implements Gateway.
func (m *Memory) CompleteReminder(ctx context.Context, id model.ID) (model.Reminder, error) {
	if err := m.enter(ctx, OpCompleteReminder); err != nil {
		return model.Reminder{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return model.Reminder{}, notFound(OpCompleteReminder)
	}
	done := m.now().UTC()
	m.reminders[i].Status = model.StatusCompleted
	m.reminders[i].CompletedAt = &done
	return m.reminders[i].Clone(), nil
}

// DeleteReminder implements Gateway.
func (m *Memory) DeleteReminder(ctx context.Context, id model.ID) error {
	if err := m.enter(ctx, OpDeleteReminder); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return notFound(OpDeleteReminder)
	}
	m.reminders = append(m.reminders[:i:i], m.reminders[i+1:]...)
	return nil
}

// UpdateUserSettings implements Gateway.
func (m *Memory) UpdateUserSettings(ctx context.Context, patch model.SettingsPatch) (model.User, error) {
	if err := m.enter(ctx, OpUpdateUserSettings); err != nil {
		return model.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = patch.Apply(m.user)
	return m.user, nil
}

// seed stores r as is and keeps generated ids clear of seeded ones.
func (m *Memory) seed(r model.Reminder) {
	if r.Status == "" {
		r.Status = model.StatusActive
	}
	if r.Priority == "" {
		r.Priority = model.PriorityMedium
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(r.ID.String(), "r")); err == nil && n > m.nextID {
		m.nextID = n
	}
	if i := m.indexOf(r.ID); i >= 0 {
		m.reminders[i] = r.Clone()
		return
	}
	m.reminders = append(m.reminders, r.Clone())
}

func (m *Memory) indexOf(id model.ID) int {
	for i, r := range m.reminders {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (m *Memory) hasCategory(id model.ID) bool {
	for _, c := range m.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func notFound(op Op) error {
	return &RemoteError{Op: op, StatusCode: http.StatusNotFound, Message: "Reminder not found"}
}

func cloneAll(in []model.Reminder) []model.Reminder {
	out := make([]model.Reminder, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// ComputeStats derives Stats from a reminder collection.
//
// completion_rate is completed / (completed + missed) as a percentage
// rounded to one decimal. Streaks count consecutive calendar days (UTC) with
// at least one completion; the current streak must include today or
// yesterday relative to now.
func ComputeStats(rs []model.Reminder, now time.Time) model.Stats {
	var st model.Stats
	days := map[time.Time]bool{}
	for _, r := range rs {
		st.Total++
		switch r.Status {
		case model.StatusActive:
			st.Active++
		case model.StatusCompleted:
			st.Completed++
			if r.CompletedAt != nil {
				days[dayOf(*r.CompletedAt)] = true
			}
		case model.StatusMissed:
			st.Missed++
		}
	}
	if denom := st.Completed + st.Missed; denom > 0 {
		st.CompletionRate = math.Round(float64(st.Completed)/float64(denom)*1000) / 10
	}
	st.CurrentStreak, st.BestStreak = streaks(days, now.UTC())
	return st
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func streaks(days map[time.Time]bool, now time.Time) (current, best int) {
	if len(days) == 0 {
		return 0, 0
	}
	sorted := make([]time.Time, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	run := 1
	best = 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Sub(sorted[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}

	if gap := dayOf(now).Sub(sorted[len(sorted)-1]); gap == 0 || gap == 24*time.Hour {
		current = run
	}
	return current, best
}
