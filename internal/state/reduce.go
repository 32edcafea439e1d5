package state

import "github.com/roach88/remsync/internal/model"

// Reduce applies one action to s and returns the resulting state.
//
// Reduce is pure and total. Unknown or nil actions return s unchanged, and
// precondition violations are resolved without failing:
//   - AddReminder for an id already present replaces that entry in place
//   - UpdateReminder for an absent id is a no-op
//   - SetReminders keeps the first entry of any duplicated id
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case SetLoading:
		s.Loading = act.Loading
	case SetError:
		s.Error = act.Message
		s.Loading = false
	case SetUser:
		u := act.User
		s.User = &u
	case SetReminders:
		s.Reminders = dedupe(act.Reminders)
	case AddReminder:
		s.Reminders = addReminder(s.Reminders, act.Reminder)
	case UpdateReminder:
		s.Reminders = updateReminder(s.Reminders, act.Reminder)
	case RemoveReminder:
		s.Reminders = removeReminder(s.Reminders, act.ID)
	case SetCategories:
		s.Categories = append([]model.Category{}, act.Categories...)
	case SetStats:
		s.Stats = act.Stats
	case InitComplete:
		s.Loading = false
	}
	return s
}

// ReduceAll folds actions over s in order.
func ReduceAll(s State, actions ...Action) State {
	for _, a := range actions {
		s = Reduce(s, a)
	}
	return s
}

func dedupe(in []model.Reminder) []model.Reminder {
	out := make([]model.Reminder, 0, len(in))
	seen := make(map[model.ID]bool, len(in))
	for _, r := range in {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r.Clone())
	}
	return out
}

func addReminder(in []model.Reminder, r model.Reminder) []model.Reminder {
	for i := range in {
		if in[i].ID == r.ID {
			return replaceAt(in, i, r)
		}
	}
	out := make([]model.Reminder, 0, len(in)+1)
	out = append(out, r.Clone())
	return append(out, in...)
}

func updateReminder(in []model.Reminder, r model.Reminder) []model.Reminder {
	for i := range in {
		if in[i].ID == r.ID {
			return replaceAt(in, i, r)
		}
	}
	return in
}

func replaceAt(in []model.Reminder, i int, r model.Reminder) []model.Reminder {
	out := make([]model.Reminder, len(in))
	copy(out, in)
	out[i] = r.Clone()
	return out
}

func removeReminder(in []model.Reminder, id model.ID) []model.Reminder {
	for i := range in {
		if in[i].ID == id {
			out := make([]model.Reminder, 0, len(in)-1)
			out = append(out, in[:i]...)
			return append(out, in[i+1:]...)
		}
	}
	return in
}
