package model

import (
	"strings"
	"time"
)

// Priority ranks a reminder.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is the lifecycle state of a reminder.
//
// The client only ever moves reminders from active to completed. Other
// statuses the service may report (missed, cancelled) are carried verbatim.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
	StatusCancelled Status = "cancelled"
)

// RepeatType controls reminder recurrence.
type RepeatType string

const (
	RepeatNone     RepeatType = "none"
	RepeatDaily    RepeatType = "daily"
	RepeatWeekly   RepeatType = "weekly"
	RepeatMonthly  RepeatType = "monthly"
	RepeatWeekdays RepeatType = "weekdays"
	RepeatCustom   RepeatType = "custom"
)

// Valid reports whether r is a known repeat type. The empty value means none.
func (r RepeatType) Valid() bool {
	switch r {
	case "", RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatWeekdays, RepeatCustom:
		return true
	}
	return false
}

// Theme values accepted in user settings.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

// User is the authenticated account.
type User struct {
	ID                   ID        `json:"id"`
	TelegramID           int64     `json:"telegram_id"`
	Username             string    `json:"username,omitempty"`
	FirstName            string    `json:"first_name,omitempty"`
	LastName             string    `json:"last_name,omitempty"`
	Language             string    `json:"language"`
	Timezone             string    `json:"timezone"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	Theme                string    `json:"theme"`
	IsPremium            bool      `json:"is_premium"`
	CreatedAt            time.Time `json:"created_at"`
}

// DisplayName joins first and last name, falling back to the username.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	return u.Username
}

// Reminder is a scheduled item owned by the user.
type Reminder struct {
	ID           ID         `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	RemindAt     time.Time  `json:"remind_at"`
	Priority     Priority   `json:"priority"`
	Status       Status     `json:"status"`
	CategoryID   *ID        `json:"category_id"`
	RepeatType   RepeatType `json:"repeat_type,omitempty"`
	RepeatDays   string     `json:"repeat_days,omitempty"`
	NotifyBefore int        `json:"notify_before"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// InCategory reports whether the reminder belongs to the given category.
func (r Reminder) InCategory(id ID) bool {
	return r.CategoryID != nil && *r.CategoryID == id
}

// Clone returns a deep copy of the reminder.
func (r Reminder) Clone() Reminder {
	out := r
	if r.CategoryID != nil {
		c := *r.CategoryID
		out.CategoryID = &c
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Category groups reminders.
type Category struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Icon      string `json:"icon,omitempty"`
	IsDefault bool   `json:"is_default"`
	Order     int    `json:"order"`
}

// Stats are aggregate counters computed by the service.
type Stats struct {
	Active         int     `json:"active"`
	Completed      int     `json:"completed"`
	Missed         int     `json:"missed"`
	Total          int     `json:"total"`
	CompletionRate float64 `json:"completion_rate"`
	CurrentStreak  int     `json:"current_streak"`
	BestStreak     int     `json:"best_streak"`
}

// CloneUser returns a copy of u, or nil.
func CloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
