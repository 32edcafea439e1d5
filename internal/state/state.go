package state

import (
	"github.com/roach88/remsync/internal/canon"
	"github.com/roach88/remsync/internal/model"
)

// State is the session state. Treat it as immutable: Reduce returns a new
// value and never writes through the slices of its input.
type State struct {
	User       *model.User      `json:"user"`
	Reminders  []model.Reminder `json:"reminders"`
	Categories []model.Category `json:"categories"`
	Stats      model.Stats      `json:"stats"`
	Loading    bool             `json:"loading"`
	Error      string           `json:"error"`
}

// Initial returns the state of a session that has not bootstrapped yet.
// Loading starts true so the UI shows a spinner until InitComplete.
func Initial() State {
	return State{
		Reminders:  []model.Reminder{},
		Categories: []model.Category{},
		Loading:    true,
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.User = model.CloneUser(s.User)
	out.Reminders = cloneReminders(s.Reminders)
	out.Categories = append([]model.Category{}, s.Categories...)
	return out
}

// Reminder returns the reminder with the given id.
func (s State) Reminder(id model.ID) (model.Reminder, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.Reminders[i].Clone(), true
	}
	return model.Reminder{}, false
}

// HasCategory reports whether a category with id is known.
func (s State) HasCategory(id model.ID) bool {
	for _, c := range s.Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// CategoryIDs returns the known category ids in order.
func (s State) CategoryIDs() []model.ID {
	ids := make([]model.ID, len(s.Categories))
	for i, c := range s.Categories {
		ids[i] = c.ID
	}
	return ids
}

// RemindersWithStatus returns the reminders in the given status, in
// collection order.
func (s State) RemindersWithStatus(status model.Status) []model.Reminder {
	var out []model.Reminder
	for _, r := range s.Reminders {
		if r.Status == status {
			out = append(out, r.Clone())
		}
	}
	return out
}

// ActiveReminders returns the reminders still pending.
func (s State) ActiveReminders() []model.Reminder {
	return s.RemindersWithStatus(model.StatusActive)
}

// CompletedReminders returns the reminders already done.
func (s State) CompletedReminders() []model.Reminder {
	return s.RemindersWithStatus(model.StatusCompleted)
}

// Hash returns the canonical content hash of the state.
func (s State) Hash() (string, error) {
	return canon.Hash(canon.DomainState, s)
}

func (s State) indexOf(id model.ID) int {
	for i, r := range s.Reminders {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func cloneReminders(in []model.Reminder) []model.Reminder {
	out := make([]model.Reminder, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
