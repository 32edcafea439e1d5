// Package mcpserver exposes a session's reminders as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/roach88/remsync/internal/coordinator"
	"github.com/roach88/remsync/internal/model"
	"github.com/roach88/remsync/internal/state"
)

const (
	serverName    = "remsync"
	serverVersion = "1.0.0"
)

// Backend is the session surface the tools drive. *session.Session
// implements it.
type Backend interface {
	Snapshot() state.State
	Create(ctx context.Context, in model.CreateInput) (model.Reminder, error)
	Update(ctx context.Context, id model.ID, patch model.ReminderPatch) (model.Reminder, error)
	Complete(ctx context.Context, id model.ID) (model.Reminder, error)
	Delete(ctx context.Context, id model.ID) error
	UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.User, error)
	RefreshStats(ctx context.Context) error
}

// Server is the MCP server for a reminder session.
type Server struct {
	mcpServer *server.MCPServer
	backend   Backend
}

// NewServer creates a new MCP server over the given session.
func NewServer(backend Backend) *Server {
	s := &Server{
		backend: backend,
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves the tools over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List reminders in the session, optionally filtered by status or category"),
			mcp.WithString("status", mcp.Description("Filter by status: active, completed, missed, cancelled, or empty for all")),
			mcp.WithString("category_id", mcp.Description("Only reminders in this category")),
		),
		s.handleListReminders,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_stats",
			mcp.WithDescription("Get reminder statistics (active, completed, completion rate, streaks)"),
			mcp.WithBoolean("refresh", mcp.Description("Fetch fresh statistics from the service first")),
		),
		s.handleGetStats,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Add a new reminder with a title and time, plus optional details"),
			mcp.WithString("title", mcp.Required(), mcp.Description("Reminder title")),
			mcp.WithString("remind_at", mcp.Required(), mcp.Description("Reminder time in RFC3339 format (e.g. 2026-03-02T10:00:00Z)")),
			mcp.WithString("description", mcp.Description("Optional description")),
			mcp.WithString("priority", mcp.Description("Priority: low, medium, high (default: medium)")),
			mcp.WithString("category_id", mcp.Description("Category ID")),
			mcp.WithString("repeat_type", mcp.Description("Repeat: none, daily, weekly, monthly, weekdays, custom")),
			mcp.WithString("repeat_days", mcp.Description("Weekdays 1-7, comma separated (custom repeat only)")),
			mcp.WithNumber("notify_before", mcp.Description("Minutes of advance notice, 0-1440")),
		),
		s.handleAddReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("update_reminder",
			mcp.WithDescription("Update a reminder's fields"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("remind_at", mcp.Description("New time in RFC3339 format")),
			mcp.WithString("priority", mcp.Description("New priority: low, medium, high")),
			mcp.WithString("category_id", mcp.Description("New category ID")),
			mcp.WithBoolean("clear_category", mcp.Description("Remove the reminder from its category")),
			mcp.WithNumber("notify_before", mcp.Description("Minutes of advance notice, 0-1440")),
		),
		s.handleUpdateReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("complete_reminder",
			mcp.WithDescription("Mark a reminder as completed"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleCompleteReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder permanently"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleDeleteReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("update_settings",
			mcp.WithDescription("Change user settings: language, timezone, theme, notifications"),
			mcp.WithString("language", mcp.Description("Interface language code, e.g. en or ru")),
			mcp.WithString("timezone", mcp.Description("IANA timezone, e.g. Europe/Moscow")),
			mcp.WithString("theme", mcp.Description("Theme: light, dark, auto")),
			mcp.WithBoolean("notifications_enabled", mcp.Description("Enable or disable notifications")),
		),
		s.handleUpdateSettings,
	)
}

func (s *Server) handleListReminders(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := model.Status(req.GetString("status", ""))
	category := model.ID(strings.TrimSpace(req.GetString("category_id", "")))

	reminders := []model.Reminder{}
	for _, r := range s.backend.Snapshot().Reminders {
		if status != "" && r.Status != status {
			continue
		}
		if category != "" && !r.InCategory(category) {
			continue
		}
		reminders = append(reminders, r)
	}

	if len(reminders) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}

	return jsonResult(reminders), nil
}

func (s *Server) handleGetStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if req.GetBool("refresh", false) {
		if err := s.backend.RefreshStats(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to refresh stats: %v", err)), nil
		}
	}
	return jsonResult(s.backend.Snapshot().Stats), nil
}

func (s *Server) handleAddReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	remindAt := req.GetString("remind_at", "")

	if strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	if remindAt == "" {
		return mcp.NewToolResultError("remind_at is required"), nil
	}

	at, err := time.Parse(time.RFC3339, remindAt)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid remind_at format: %v (use RFC3339, e.g. 2026-03-02T10:00:00Z)", err)), nil
	}

	in := model.CreateInput{
		Title:        title,
		Description:  req.GetString("description", ""),
		RemindAt:     at,
		Priority:     model.Priority(req.GetString("priority", "")),
		RepeatType:   model.RepeatType(req.GetString("repeat_type", "")),
		RepeatDays:   req.GetString("repeat_days", ""),
		NotifyBefore: int(req.GetFloat("notify_before", 0)),
	}
	if id, ok := idArg(req, "category_id"); ok {
		in.CategoryID = &id
	}

	added, err := s.backend.Create(ctx, in)
	return mutationResult("add reminder", added, err), nil
}

func (s *Server) handleUpdateReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := idArg(req, "id")
	if !ok {
		return mcp.NewToolResultError("id is required"), nil
	}

	var patch model.ReminderPatch
	if v := req.GetString("title", ""); v != "" {
		patch.Title = &v
	}
	if v := req.GetString("description", ""); v != "" {
		patch.Description = &v
	}
	if v := req.GetString("remind_at", ""); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid remind_at: %v", err)), nil
		}
		patch.RemindAt = &t
	}
	if v := req.GetString("priority", ""); v != "" {
		p := model.Priority(v)
		patch.Priority = &p
	}
	if c, ok := idArg(req, "category_id"); ok {
		patch.CategoryID = &c
	}
	patch.ClearCategory = req.GetBool("clear_category", false)
	if v, ok := req.GetArguments()["notify_before"].(float64); ok {
		n := int(v)
		patch.NotifyBefore = &n
	}

	updated, err := s.backend.Update(ctx, id, patch)
	return mutationResult("update reminder", updated, err), nil
}

func (s *Server) handleCompleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := idArg(req, "id")
	if !ok {
		return mcp.NewToolResultError("id is required"), nil
	}

	_, err := s.backend.Complete(ctx, id)
	if err != nil && !coordinator.IsResyncError(err) {
		return mcp.NewToolResultError(fmt.Sprintf("failed to complete reminder: %v", err)), nil
	}
	return mcp.NewToolResultText(withWarning(fmt.Sprintf("Reminder %s marked as completed.", id), err)), nil
}

func (s *Server) handleDeleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := idArg(req, "id")
	if !ok {
		return mcp.NewToolResultError("id is required"), nil
	}

	err := s.backend.Delete(ctx, id)
	if err != nil && !coordinator.IsResyncError(err) {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete reminder: %v", err)), nil
	}
	return mcp.NewToolResultText(withWarning(fmt.Sprintf("Reminder %s deleted.", id), err)), nil
}

func (s *Server) handleUpdateSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var patch model.SettingsPatch
	if v := req.GetString("language", ""); v != "" {
		patch.Language = &v
	}
	if v := req.GetString("timezone", ""); v != "" {
		patch.Timezone = &v
	}
	if v := req.GetString("theme", ""); v != "" {
		patch.Theme = &v
	}
	if v, ok := req.GetArguments()["notifications_enabled"].(bool); ok {
		patch.NotificationsEnabled = &v
	}

	user, err := s.backend.UpdateSettings(ctx, patch)
	return mutationResult("update settings", user, err), nil
}

// idArg reads an id given as a string or a number.
func idArg(req mcp.CallToolRequest, key string) (model.ID, bool) {
	switch v := req.GetArguments()[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return model.ID(s), true
		}
	case float64:
		if v >= 0 {
			return model.ID(strconv.FormatInt(int64(v), 10)), true
		}
	}
	return "", false
}

// mutationResult renders a mutation's value, or its failure. A committed
// mutation whose stats resync failed still succeeds, with a warning.
func mutationResult(action string, v any, err error) *mcp.CallToolResult {
	if err != nil && !coordinator.IsResyncError(err) {
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", action, err))
	}
	output, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(withWarning(string(output), err))
}

func withWarning(text string, err error) string {
	var re *coordinator.ResyncError
	if errors.As(err, &re) {
		return text + "\nWarning: statistics may be stale: " + re.Err.Error()
	}
	return text
}

func jsonResult(v any) *mcp.CallToolResult {
	output, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(output))
}
