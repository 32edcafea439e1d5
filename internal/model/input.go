package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode/utf8"
)

// Field limits enforced by the reminder service.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxNotifyBefore      = 1440
)

// Validation error codes.
const (
	CodeRequired     = "required"
	CodeTooLong      = "too_long"
	CodeOutOfRange   = "out_of_range"
	CodeInvalidValue = "invalid_value"
	CodeUnknownRef   = "unknown_reference"
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every violation found in one input.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (errs ValidationErrors) Error() string {
	switch len(errs) {
	case 0:
		return "invalid input"
	case 1:
		return "invalid input: " + errs[0].Error()
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Has reports whether a violation was recorded for field.
func (errs ValidationErrors) Has(field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func (errs ValidationErrors) orNil() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// IsValidationError reports whether err (or anything it wraps) is an input
// validation failure.
func IsValidationError(err error) bool {
	var many ValidationErrors
	if errors.As(err, &many) {
		return true
	}
	var one ValidationError
	return errors.As(err, &one)
}

// CategorySet answers membership questions for category references.
// A nil CategorySet accepts any category id.
type CategorySet interface {
	HasCategory(id ID) bool
}

// CreateInput carries the fields for a new reminder.
type CreateInput struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	RemindAt     time.Time  `json:"remind_at"`
	Priority     Priority   `json:"priority,omitempty"`
	CategoryID   *ID        `json:"category_id,omitempty"`
	RepeatType   RepeatType `json:"repeat_type,omitempty"`
	RepeatDays   string     `json:"repeat_days,omitempty"`
	NotifyBefore int        `json:"notify_before"`
}

// Normalize trims the title and applies service defaults.
func (in CreateInput) Normalize() CreateInput {
	in.Title = strings.TrimSpace(in.Title)
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if in.RepeatType == "" {
		in.RepeatType = RepeatNone
	}
	return in
}

// Validate checks the input against the service's field rules.
func (in CreateInput) Validate(categories CategorySet) error {
	var errs ValidationErrors
	errs = validateTitle(errs, in.Title)
	errs = validateDescription(errs, &in.Description)
	if in.RemindAt.IsZero() {
		errs = append(errs, ValidationError{Field: "remind_at", Message: "remind_at is required", Code: CodeRequired})
	}
	if in.Priority != "" && !in.Priority.Valid() {
		errs = append(errs, invalidPriority(in.Priority))
	}
	errs = validateCategory(errs, in.CategoryID, categories)
	errs = validateRepeat(errs, in.RepeatType, in.RepeatDays)
	errs = validateNotifyBefore(errs, &in.NotifyBefore)
	return errs.orNil()
}

// ReminderPatch is a partial update. Nil fields are left unchanged.
//
// ClearCategory removes the category reference; it takes precedence over
// CategoryID.
type ReminderPatch struct {
	Title         *string     `json:"title,omitempty"`
	Description   *string     `json:"description,omitempty"`
	RemindAt      *time.Time  `json:"remind_at,omitempty"`
	Priority      *Priority   `json:"priority,omitempty"`
	CategoryID    *ID         `json:"category_id,omitempty"`
	ClearCategory bool        `json:"-"`
	RepeatType    *RepeatType `json:"repeat_type,omitempty"`
	RepeatDays    *string     `json:"repeat_days,omitempty"`
	NotifyBefore  *int        `json:"notify_before,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ReminderPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.RemindAt == nil &&
		p.Priority == nil && p.CategoryID == nil && !p.ClearCategory &&
		p.RepeatType == nil && p.RepeatDays == nil && p.NotifyBefore == nil
}

// Validate checks every field the patch sets.
func (p ReminderPatch) Validate(categories CategorySet) error {
	var errs ValidationErrors
	if p.IsEmpty() {
		errs = append(errs, ValidationError{Field: "patch", Message: "patch sets no fields", Code: CodeRequired})
	}
	if p.Title != nil {
		errs = validateTitle(errs, *p.Title)
	}
	if p.Description != nil {
		errs = validateDescription(errs, p.Description)
	}
	if p.RemindAt != nil && p.RemindAt.IsZero() {
		errs = append(errs, ValidationError{Field: "remind_at", Message: "remind_at must not be zero", Code: CodeInvalidValue})
	}
	if p.Priority != nil && !p.Priority.Valid() {
		errs = append(errs, invalidPriority(*p.Priority))
	}
	if !p.ClearCategory {
		errs = validateCategory(errs, p.CategoryID, categories)
	}
	if p.RepeatType != nil || p.RepeatDays != nil {
		rt := RepeatCustom
		if p.RepeatType != nil {
			rt = *p.RepeatType
		}
		days := ""
		if p.RepeatDays != nil {
			days = *p.RepeatDays
		}
		errs = validateRepeat(errs, rt, days)
	}
	if p.NotifyBefore != nil {
		errs = validateNotifyBefore(errs, p.NotifyBefore)
	}
	return errs.orNil()
}

// Apply returns r with the patch applied. Used by backends that own storage.
func (p ReminderPatch) Apply(r Reminder) Reminder {
	out := r.Clone()
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.RemindAt != nil {
		out.RemindAt = *p.RemindAt
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.ClearCategory {
		out.CategoryID = nil
	} else if p.CategoryID != nil {
		out.CategoryID = PtrID(*p.CategoryID)
	}
	if p.RepeatType != nil {
		out.RepeatType = *p.RepeatType
	}
	if p.RepeatDays != nil {
		out.RepeatDays = *p.RepeatDays
	}
	if p.NotifyBefore != nil {
		out.NotifyBefore = *p.NotifyBefore
	}
	return out
}

// SettingsPatch updates user preferences. Nil fields are left unchanged.
type SettingsPatch struct {
	Language             *string `json:"language,omitempty"`
	Timezone             *string `json:"timezone,omitempty"`
	NotificationsEnabled *bool   `json:"notifications_enabled,omitempty"`
	Theme                *string `json:"theme,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p SettingsPatch) IsEmpty() bool {
	return p.Language == nil && p.Timezone == nil && p.NotificationsEnabled == nil && p.Theme == nil
}

// Validate checks the settings values.
func (p SettingsPatch) Validate() error {
	var errs ValidationErrors
	if p.IsEmpty() {
		errs = append(errs, ValidationError{Field: "settings", Message: "patch sets no fields", Code: CodeRequired})
	}
	if p.Language != nil && strings.TrimSpace(*p.Language) == "" {
		errs = append(errs, ValidationError{Field: "language", Message: "language must not be empty", Code: CodeRequired})
	}
	if p.Timezone != nil {
		if _, err := time.LoadLocation(*p.Timezone); err != nil || *p.Timezone == "" {
			errs = append(errs, ValidationError{Field: "timezone", Message: fmt.Sprintf("unknown timezone %q", *p.Timezone), Code: CodeInvalidValue})
		}
	}
	if p.Theme != nil {
		switch *p.Theme {
		case ThemeLight, ThemeDark, ThemeAuto:
		default:
			errs = append(errs, ValidationError{Field: "theme", Message: fmt.Sprintf("theme must be light, dark or auto, got %q", *p.Theme), Code: CodeInvalidValue})
		}
	}
	return errs.orNil()
}

// Apply returns u with the settings applied.
func (p SettingsPatch) Apply(u User) User {
	if p.Language != nil {
		u.Language = *p.Language
	}
	if p.Timezone != nil {
		u.Timezone = *p.Timezone
	}
	if p.NotificationsEnabled != nil {
		u.NotificationsEnabled = *p.NotificationsEnabled
	}
	if p.Theme != nil {
		u.Theme = *p.Theme
	}
	return u
}

func validateTitle(errs ValidationErrors, title string) ValidationErrors {
	t := strings.TrimSpace(title)
	if t == "" {
		return append(errs, ValidationError{Field: "title", Message: "title is required", Code: CodeRequired})
	}
	if n := utf8.RuneCountInString(t); n > MaxTitleLength {
		errs = append(errs, ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("title is %d characters, max %d", n, MaxTitleLength),
			Code:    CodeTooLong,
		})
	}
	return errs
}

func validateDescription(errs ValidationErrors, desc *string) ValidationErrors {
	if n := utf8.RuneCountInString(*desc); n > MaxDescriptionLength {
		errs = append(errs, ValidationError{
			Field:   "description",
			Message: fmt.Sprintf("description is %d characters, max %d", n, MaxDescriptionLength),
			Code:    CodeTooLong,
		})
	}
	return errs
}

func invalidPriority(p Priority) ValidationError {
	return ValidationError{
		Field:   "priority",
		Message: fmt.Sprintf("priority must be low, medium or high, got %q", p),
		Code:    CodeInvalidValue,
	}
}

func validateCategory(errs ValidationErrors, id *ID, categories CategorySet) ValidationErrors {
	if id == nil {
		return errs
	}
	if id.IsZero() {
		return append(errs, ValidationError{Field: "category_id", Message: "category_id must not be empty", Code: CodeInvalidValue})
	}
	if categories != nil && !categories.HasCategory(*id) {
		return append(errs, ValidationError{
			Field:   "category_id",
			Message: fmt.Sprintf("category %q does not exist", *id),
			Code:    CodeUnknownRef,
		})
	}
	return errs
}

func validateRepeat(errs ValidationErrors, rt RepeatType, days string) ValidationErrors {
	if !rt.Valid() {
		return append(errs, ValidationError{
			Field:   "repeat_type",
			Message: fmt.Sprintf("unknown repeat type %q", rt),
			Code:    CodeInvalidValue,
		})
	}
	if days == "" {
		return errs
	}
	if rt != RepeatCustom {
		return append(errs, ValidationError{
			Field:   "repeat_days",
			Message: "repeat_days requires repeat_type custom",
			Code:    CodeInvalidValue,
		})
	}
	for _, d := range strings.Split(days, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(d))
		if err != nil || n < 1 || n > 7 {
			return append(errs, ValidationError{
				Field:   "repeat_days",
				Message: fmt.Sprintf("repeat_days must list weekdays 1-7, got %q", days),
				Code:    CodeInvalidValue,
			})
		}
	}
	return errs
}

func validateNotifyBefore(errs ValidationErrors, minutes *int) ValidationErrors {
	if *minutes < 0 || *minutes > MaxNotifyBefore {
		errs = append(errs, ValidationError{
			Field:   "notify_before",
			Message: fmt.Sprintf("notify_before must be between 0 and %d minutes, got %d", MaxNotifyBefore, *minutes),
			Code:    CodeOutOfRange,
		})
	}
	return errs
}
