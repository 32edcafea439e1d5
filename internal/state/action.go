package state

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/remsync/internal/model"
)

// Kind names an action on the wire and in the journal.
type Kind string

const (
	KindSetLoading     Kind = "SET_LOADING"
	KindSetError       Kind = "SET_ERROR"
	KindSetUser        Kind = "SET_USER"
	KindSetReminders   Kind = "SET_REMINDERS"
	KindAddReminder    Kind = "ADD_REMINDER"
	KindUpdateReminder Kind = "UPDATE_REMINDER"
	KindRemoveReminder Kind = "REMOVE_REMINDER"
	KindSetCategories  Kind = "SET_CATEGORIES"
	KindSetStats       Kind = "SET_STATS"
	KindInitComplete   Kind = "INIT_COMPLETE"
)

// Kinds lists every action kind in declaration order.
var Kinds = []Kind{
	KindSetLoading, KindSetError, KindSetUser, KindSetReminders, KindAddReminder,
	KindUpdateReminder, KindRemoveReminder, KindSetCategories, KindSetStats, KindInitComplete,
}

// Action is a request to change session state.
type Action interface {
	Kind() Kind
}

// SetLoading sets the loading flag.
type SetLoading struct {
	Loading bool `json:"loading"`
}

// SetError records the last orchestration error and clears loading.
type SetError struct {
	Message string `json:"message"`
}

// SetUser replaces the user wholesale.
type SetUser struct {
	User model.User `json:"user"`
}

// SetReminders replaces the reminder collection, keeping the given order.
type SetReminders struct {
	Reminders []model.Reminder `json:"reminders"`
}

// AddReminder prepends a server-confirmed reminder.
type AddReminder struct {
	Reminder model.Reminder `json:"reminder"`
}

// UpdateReminder replaces the entry with the same id in place.
type UpdateReminder struct {
	Reminder model.Reminder `json:"reminder"`
}

// RemoveReminder drops the entry with the given id.
type RemoveReminder struct {
	ID model.ID `json:"id"`
}

// SetCategories replaces the category set.
type SetCategories struct {
	Categories []model.Category `json:"categories"`
}

// SetStats replaces the server-computed statistics.
type SetStats struct {
	Stats model.Stats `json:"stats"`
}

// InitComplete marks the end of bootstrap. It clears loading only.
type InitComplete struct{}

func (SetLoading) Kind() Kind     { return KindSetLoading }
func (SetError) Kind() Kind       { return KindSetError }
func (SetUser) Kind() Kind        { return KindSetUser }
func (SetReminders) Kind() Kind   { return KindSetReminders }
func (AddReminder) Kind() Kind    { return KindAddReminder }
func (UpdateReminder) Kind() Kind { return KindUpdateReminder }
func (RemoveReminder) Kind() Kind { return KindRemoveReminder }
func (SetCategories) Kind() Kind  { return KindSetCategories }
func (SetStats) Kind() Kind       { return KindSetStats }
func (InitComplete) Kind() Kind   { return KindInitComplete }

// EncodeAction returns the action's kind and JSON payload for storage.
func EncodeAction(a Action) (Kind, []byte, error) {
	if a == nil {
		return "", nil, fmt.Errorf("encode action: nil action")
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return "", nil, fmt.Errorf("encode action %s: %w", a.Kind(), err)
	}
	return a.Kind(), payload, nil
}

// DecodeAction rebuilds an action from its stored kind and payload.
func DecodeAction(kind Kind, payload []byte) (Action, error) {
	var (
		a   Action
		err error
	)
	switch kind {
	case KindSetLoading:
		a, err = decodeInto[SetLoading](payload)
	case KindSetError:
		a, err = decodeInto[SetError](payload)
	case KindSetUser:
		a, err = decodeInto[SetUser](payload)
	case KindSetReminders:
		a, err = decodeInto[SetReminders](payload)
	case KindAddReminder:
		a, err = decodeInto[AddReminder](payload)
	case KindUpdateReminder:
		a, err = decodeInto[UpdateReminder](payload)
	case KindRemoveReminder:
		a, err = decodeInto[RemoveReminder](payload)
	case KindSetCategories:
		a, err = decodeInto[SetCategories](payload)
	case KindSetStats:
		a, err = decodeInto[SetStats](payload)
	case KindInitComplete:
		a = InitComplete{}
	default:
		return nil, fmt.Errorf("decode action: unknown kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode action %s: %w", kind, err)
	}
	return a, nil
}

func decodeInto[T Action](payload []byte) (Action, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}
