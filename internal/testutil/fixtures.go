package testutil

import (
	"io"
	"log/slog"
	"time"

	"github.com/roach88/remsync/internal/model"
)

// Epoch is the reference instant fixtures are built around.
var Epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// QuietLogger discards all output.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Reminder builds an active medium-priority reminder due offset after Epoch.
func Reminder(id, title string, offset time.Duration) model.Reminder {
	return model.Reminder{
		ID:         model.ID(id),
		Title:      title,
		RemindAt:   Epoch.Add(offset),
		Priority:   model.PriorityMedium,
		Status:     model.StatusActive,
		RepeatType: model.RepeatNone,
		CreatedAt:  Epoch,
	}
}

// Completed returns r marked completed at Epoch.
func Completed(r model.Reminder) model.Reminder {
	done := Epoch
	r.Status = model.StatusCompleted
	r.CompletedAt = &done
	return r
}
