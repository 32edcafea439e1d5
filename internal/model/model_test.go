package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type categorySet map[ID]bool

func (s categorySet) HasCategory(id ID) bool { return s[id] }

func TestIDUnmarshalAcceptsNumberAndString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ID
	}{
		{"number", `42`, "42"},
		{"string", `"r1"`, "r1"},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			require.NoError(t, json.Unmarshal([]byte(tt.input), &id))
			assert.Equal(t, tt.want, id)
		})
	}

	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}

func TestIDMarshalsAsString(t *testing.T) {
	data, err := json.Marshal(struct {
		ID ID `json:"id"`
	}{ID: "7"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"7"}`, string(data))
}

func TestReminderWireFormat(t *testing.T) {
	raw := `{
		"id": 12,
		"title": "Buy milk",
		"remind_at": "2026-01-02T09:00:00Z",
		"priority": "high",
		"status": "active",
		"category_id": 3,
		"repeat_type": "none",
		"notify_before": 15,
		"created_at": "2026-01-01T08:00:00Z"
	}`
	var r Reminder
	require.NoError(t, json.Unmarshal([]byte(raw), &r))

	assert.Equal(t, ID("12"), r.ID)
	assert.Equal(t, PriorityHigh, r.Priority)
	assert.Equal(t, StatusActive, r.Status)
	require.NotNil(t, r.CategoryID)
	assert.True(t, r.InCategory("3"))
	assert.Equal(t, 15, r.NotifyBefore)
	assert.Nil(t, r.CompletedAt)
}

func TestReminderCloneIsDeep(t *testing.T) {
	done := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Reminder{ID: "r1", CategoryID: PtrID("c1"), CompletedAt: &done}
	c := r.Clone()

	*c.CategoryID = "c2"
	*c.CompletedAt = done.Add(time.Hour)

	assert.Equal(t, ID("c1"), *r.CategoryID)
	assert.Equal(t, done, *r.CompletedAt)
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Ann Lee", User{FirstName: "Ann", LastName: "Lee", Username: "ann"}.DisplayName())
	assert.Equal(t, "Ann", User{FirstName: " Ann "}.DisplayName())
	assert.Equal(t, "ann", User{Username: "ann"}.DisplayName())
}

func TestCreateInputValidate(t *testing.T) {
	when := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cats := categorySet{"c1": true}

	tests := []struct {
		name      string
		input     CreateInput
		wantField string
	}{
		{"valid", CreateInput{Title: "Call mom", RemindAt: when}, ""},
		{"valid with category", CreateInput{Title: "Call mom", RemindAt: when, CategoryID: PtrID("c1")}, ""},
		{"blank title", CreateInput{Title: "   ", RemindAt: when}, "title"},
		{"long title", CreateInput{Title: strings.Repeat("x", MaxTitleLength+1), RemindAt: when}, "title"},
		{"long description", CreateInput{Title: "a", Description: strings.Repeat("d", MaxDescriptionLength+1), RemindAt: when}, "description"},
		{"missing time", CreateInput{Title: "a"}, "remind_at"},
		{"bad priority", CreateInput{Title: "a", RemindAt: when, Priority: "urgent"}, "priority"},
		{"unknown category", CreateInput{Title: "a", RemindAt: when, CategoryID: PtrID("c9")}, "category_id"},
		{"notify too far", CreateInput{Title: "a", RemindAt: when, NotifyBefore: MaxNotifyBefore + 1}, "notify_before"},
		{"negative notify", CreateInput{Title: "a", RemindAt: when, NotifyBefore: -1}, "notify_before"},
		{"days without custom", CreateInput{Title: "a", RemindAt: when, RepeatType: RepeatDaily, RepeatDays: "1,2"}, "repeat_days"},
		{"bad weekday", CreateInput{Title: "a", RemindAt: when, RepeatType: RepeatCustom, RepeatDays: "1,8"}, "repeat_days"},
		{"unknown repeat", CreateInput{Title: "a", RemindAt: when, RepeatType: "hourly"}, "repeat_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate(cats)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			var errs ValidationErrors
			require.ErrorAs(t, err, &errs)
			assert.True(t, errs.Has(tt.wantField), "expected violation on %s, got %v", tt.wantField, errs)
		})
	}
}

func TestCreateInputValidateCollectsAllErrors(t *testing.T) {
	err := CreateInput{Priority: "urgent", NotifyBefore: -5}.Validate(nil)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.True(t, errs.Has("title"))
	assert.True(t, errs.Has("remind_at"))
	assert.True(t, errs.Has("priority"))
	assert.True(t, errs.Has("notify_before"))
}

func TestCreateInputNormalize(t *testing.T) {
	in := CreateInput{Title: "  Walk  "}.Normalize()
	assert.Equal(t, "Walk", in.Title)
	assert.Equal(t, PriorityMedium, in.Priority)
	assert.Equal(t, RepeatNone, in.RepeatType)
}

func TestReminderPatchValidateAndApply(t *testing.T) {
	title := " New title "
	prio := PriorityLow
	patch := ReminderPatch{Title: &title, Priority: &prio}
	require.NoError(t, patch.Validate(nil))

	r := Reminder{ID: "r1", Title: "Old", Priority: PriorityHigh, CategoryID: PtrID("c1")}
	got := patch.Apply(r)
	assert.Equal(t, "New title", got.Title)
	assert.Equal(t, PriorityLow, got.Priority)
	assert.True(t, got.InCategory("c1"))
	assert.Equal(t, "Old", r.Title, "apply must not mutate the input")

	cleared := ReminderPatch{ClearCategory: true}.Apply(r)
	assert.Nil(t, cleared.CategoryID)
}

func TestReminderPatchValidateRejects(t *testing.T) {
	empty := ""
	assert.True(t, IsValidationError(ReminderPatch{}.Validate(nil)))
	assert.True(t, IsValidationError(ReminderPatch{Title: &empty}.Validate(nil)))
	assert.True(t, IsValidationError(ReminderPatch{CategoryID: PtrID("zz")}.Validate(categorySet{})))
	assert.NoError(t, ReminderPatch{ClearCategory: true}.Validate(categorySet{}))
}

func TestSettingsPatch(t *testing.T) {
	tz := "Europe/Moscow"
	theme := ThemeDark
	on := false
	patch := SettingsPatch{Timezone: &tz, Theme: &theme, NotificationsEnabled: &on}
	require.NoError(t, patch.Validate())

	u := patch.Apply(User{Timezone: "UTC", Theme: ThemeAuto, NotificationsEnabled: true})
	assert.Equal(t, "Europe/Moscow", u.Timezone)
	assert.Equal(t, ThemeDark, u.Theme)
	assert.False(t, u.NotificationsEnabled)

	badTZ := "Mars/Olympus"
	badTheme := "neon"
	err := SettingsPatch{Timezone: &badTZ, Theme: &badTheme}.Validate()
	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.True(t, errs.Has("timezone"))
	assert.True(t, errs.Has("theme"))

	assert.Error(t, SettingsPatch{}.Validate())
}
