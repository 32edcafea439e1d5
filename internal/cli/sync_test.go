package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remsync/internal/gateway"
	"github.com/roach88/remsync/internal/model"
	"github.com/roach88/remsync/internal/state"
	"github.com/roach88/remsync/internal/testutil"
)

func seeded() *gateway.Memory {
	work := model.ID("2")
	water := testutil.Reminder("r1", "Water plants", time.Hour)
	report := testutil.Reminder("r2", "Send report", 2*time.Hour)
	report.Priority = model.PriorityHigh
	report.CategoryID = &work
	return newMemory(gateway.WithReminders([]model.Reminder{water, report}))
}

func TestSync_Text(t *testing.T) {
	run := runCLI(t, seeded(), "sync")
	require.NoError(t, run.err)

	assert.Contains(t, run.stdout, "User: Demo (id 1, ru, Europe/Moscow)")
	assert.Contains(t, run.stdout, "Stats: 2 active, 0 completed, 0 missed, 2 total")
	assert.Contains(t, run.stdout, "Reminders (2):")
	assert.Contains(t, run.stdout, "[r1] 2026-03-01 10:00  Water plants")
	assert.Contains(t, run.stdout, "Send report #Работа !")
	assert.NotContains(t, run.stderr, "Warning")
}

func TestSync_JSON(t *testing.T) {
	run := runCLI(t, seeded(), "--format", "json", "sync")
	require.NoError(t, run.err)

	var resp struct {
		Status string      `json:"status"`
		Data   state.State `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Data.Loading)
	assert.Empty(t, resp.Data.Error)
	require.NotNil(t, resp.Data.User)
	assert.Equal(t, model.ID("1"), resp.Data.User.ID)
	assert.Len(t, resp.Data.Reminders, 2)
	assert.Len(t, resp.Data.Categories, 5)
	assert.Equal(t, 2, resp.Data.Stats.Total)
}

func TestSync_PartialFailureWarns(t *testing.T) {
	mem := seeded()
	mem.Fail(gateway.OpFetchStats, nil)

	run := runCLI(t, mem, "sync")
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, "Reminders (2):")
	assert.Contains(t, run.stdout, "Stats: 0 active, 0 completed, 0 missed, 0 total")
	assert.Contains(t, run.stderr, "Warning: stats failed to load")
}

func TestSync_PartialFailureJSON(t *testing.T) {
	mem := seeded()
	mem.Fail(gateway.OpFetchUser, nil)

	run := runCLI(t, mem, "--format", "json", "sync")
	require.NoError(t, run.err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &resp))
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "user failed to load")
}

func TestSync_EmptyAccount(t *testing.T) {
	run := runCLI(t, newMemory(), "sync")
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, "No reminders.")
}

func TestSync_Demo(t *testing.T) {
	run := runCLI(t, nil, "--demo", "sync")
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, "Stand-up notes")
	assert.Contains(t, run.stdout, "Drink water")
}

func TestSync_BadConfig(t *testing.T) {
	run := runCLI(t, newMemory(), "--config", "/nonexistent/remsync.yaml", "sync")
	require.Error(t, run.err)
	assert.Equal(t, ExitCommandError, GetExitCode(run.err))
	assert.Contains(t, run.err.Error(), "failed to load config")
}
