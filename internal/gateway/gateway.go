// Package gateway defines the remote data gateway the session core talks to
// and ships two implementations: an HTTP client for the reminder service
// and an in-process Memory service used by tests, scenarios and demo mode.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/roach88/remsync/internal/model"
)

// Op names a gateway operation. Used for errors, fault injection and logs.
type Op string

const (
	OpFetchUser          Op = "fetch_user"
	OpFetchReminders     Op = "fetch_reminders"
	OpFetchCategories    Op = "fetch_categories"
	OpFetchStats         Op = "fetch_stats"
	OpCreateReminder     Op = "create_reminder"
	OpUpdateReminder     Op = "update_reminder"
	OpCompleteReminder   Op = "complete_reminder"
	OpDeleteReminder     Op = "delete_reminder"
	OpUpdateUserSettings Op = "update_user_settings"
)

// Ops lists every gateway operation.
var Ops = []Op{
	OpFetchUser, OpFetchReminders, OpFetchCategories, OpFetchStats,
	OpCreateReminder, OpUpdateReminder, OpCompleteReminder, OpDeleteReminder,
	OpUpdateUserSettings,
}

// ReminderFilter narrows FetchReminders. Zero fields are not sent.
type ReminderFilter struct {
	Status     model.Status
	CategoryID *model.ID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Gateway is the remote service as seen by the session core. Every call is
// independently failable; implementations do not retry.
type Gateway interface {
	FetchUser(ctx context.Context) (model.User, error)
	FetchReminders(ctx context.Context, filter ReminderFilter) ([]model.Reminder, error)
	FetchCategories(ctx context.Context) ([]model.Category, error)
	FetchStats(ctx context.Context) (model.Stats, error)
	CreateReminder(ctx context.Context, in model.CreateInput) (model.Reminder, error)
	UpdateReminder(ctx context.Context, id model.ID, patch model.ReminderPatch) (model.Reminder, error)
	CompleteReminder(ctx context.Context, id model.ID) (model.Reminder, error)
	DeleteReminder(ctx context.Context, id model.ID) error
	UpdateUserSettings(ctx context.Context, patch model.SettingsPatch) (model.User, error)
}

// ErrUnavailable is the default injected failure of the Memory service.
var ErrUnavailable = errors.New("service unavailable")

// RemoteError reports a failed gateway call.
//
// StatusCode is the HTTP status when the service answered, zero for
// transport failures.
type RemoteError struct {
	Op         Op
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap returns the underlying cause.
func (e *RemoteError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode == http.StatusNotFound
	}
	return false
}

// IsRemoteError reports whether err came from a gateway call.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
