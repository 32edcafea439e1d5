package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/remsync/internal/model"
)

// Defaults for the reminder service client.
const (
	DefaultBaseURL = "http://localhost:8000/api/v1"
	DefaultTimeout = 15 * time.Second

	// InitDataHeader carries the host platform's signed launch data.
	InitDataHeader = "X-Telegram-Init-Data"
)

// HTTP talks to the reminder service's REST API.
type HTTP struct {
	baseURL  string
	client   *http.Client
	initData string
	logger   *slog.Logger
}

// HTTPOption configures an HTTP gateway.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the underlying client (and its timeout).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithTimeout sets the per-request timeout. Default: 15s.
// The client is copied first, so a shared client keeps its own timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		c := *h.client
		c.Timeout = d
		h.client = &c
	}
}

// WithInitData attaches the platform launch data to every request.
func WithInitData(data string) HTTPOption {
	return func(h *HTTP) {
		h.initData = data
	}
}

// WithHTTPLogger sets the logger. Default: slog.Default().
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTP) {
		h.logger = l
	}
}

// NewHTTP creates a client for the service at baseURL.
// An empty baseURL selects DefaultBaseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	h := &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ Gateway = (*HTTP)(nil)

// FetchUser implements Gateway.
func (h *HTTP) FetchUser(ctx context.Context) (model.User, error) {
	var u model.User
	err := h.do(ctx, OpFetchUser, http.MethodGet, "/users/me", nil, nil, &u)
	return u, err
}

// FetchReminders implements Gateway. The service wraps lists in an
// {items,total,has_more} envelope; a bare array is accepted too.
func (h *HTTP) FetchReminders(ctx context.Context, filter ReminderFilter) ([]model.Reminder, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.CategoryID != nil {
		q.Set("category_id", filter.CategoryID.String())
	}
	if filter.From != nil {
		q.Set("from_date", filter.From.Format(time.RFC3339))
	}
	if filter.To != nil {
		q.Set("to_date", filter.To.Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	var raw json.RawMessage
	if err := h.do(ctx, OpFetchReminders, http.MethodGet, "/reminders", q, nil, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []model.Reminder
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &RemoteError{Op: OpFetchReminders, Message: "decode response", Err: err}
		}
		return items, nil
	}
	var env struct {
		Items   []model.Reminder `json:"items"`
		Total   int              `json:"total"`
		HasMore bool             `json:"has_more"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &RemoteError{Op: OpFetchReminders, Message: "decode response", Err: err}
	}
	if env.Items == nil {
		env.Items = []model.Reminder{}
	}
	return env.Items, nil
}

// FetchCategories implements Gateway.
func (h *HTTP) FetchCategories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	if err := h.do(ctx, OpFetchCategories, http.MethodGet, "/categories", nil, nil, &cats); err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []model.Category{}
	}
	return cats, nil
}

// FetchStats implements Gateway.
func (h *HTTP) FetchStats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := h.do(ctx, OpFetchStats, http.MethodGet, "/users/me/stats", nil, nil, &st)
	return st, err
}

// CreateReminder implements Gateway.
func (h *HTTP) CreateReminder(ctx context.Context, in model.CreateInput) (model.Reminder, error) {
	body := map[string]any{
		"title":         in.Title,
		"remind_at":     in.RemindAt,
		"notify_before": in.NotifyBefore,
	}
	if in.Description != "" {
		body["description"] = in.Description
	}
	if in.Priority != "" {
		body["priority"] = in.Priority
	}
	if in.CategoryID != nil {
		body["category_id"] = wireID(*in.CategoryID)
	}
	if in.RepeatType != "" {
		body["repeat_type"] = in.RepeatType
	}
	if in.RepeatDays != "" {
		body["repeat_days"] = in.RepeatDays
	}

	var r model.Reminder
	err := h.do(ctx, OpCreateReminder, http.MethodPost, "/reminders", nil, body, &r)
	return r, err
}

// UpdateReminder implements Gateway.
func (h *HTTP) UpdateReminder(ctx context.Context, id model.ID, patch model.ReminderPatch) (model.Reminder, error) {
	body := map[string]any{}
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.Description != nil {
		body["description"] = *patch.Description
	}
	if patch.RemindAt != nil {
		body["remind_at"] = *patch.RemindAt
	}
	if patch.Priority != nil {
		body["priority"] = *patch.Priority
	}
	if patch.ClearCategory {
		body["category_id"] = nil
	} else if patch.CategoryID != nil {
		body["category_id"] = wireID(*patch.CategoryID)
	}
	if patch.RepeatType != nil {
		body["repeat_type"] = *patch.RepeatType
	}
	if patch.RepeatDays != nil {
		body["repeat_days"] = *patch.RepeatDays
	}
	if patch.NotifyBefore != nil {
		body["notify_before"] = *patch.NotifyBefore
	}

	var r model.Reminder
	err := h.do(ctx, OpUpdateReminder, http.MethodPatch, "/reminders/"+url.PathEscape(id.String()), nil, body, &r)
	return r, err
}

// CompleteReminder implements Gateway.
func (h *HTTP) CompleteReminder(ctx context.Context, id model.ID) (model.Reminder, error) {
	var r model.Reminder
	err := h.do(ctx, OpCompleteReminder, http.MethodPost, "/reminders/"+url.PathEscape(id.String())+"/complete", nil, nil, &r)
	return r, err
}

// DeleteReminder implements Gateway.
func (h *HTTP) DeleteReminder(ctx context.Context, id model.ID) error {
	return h.do(ctx, OpDeleteReminder, http.MethodDelete, "/reminders/"+url.PathEscape(id.String()), nil, nil, nil)
}

// UpdateUserSettings implements Gateway.
func (h *HTTP) UpdateUserSettings(ctx context.Context, patch model.SettingsPatch) (model.User, error) {
	var u model.User
	err := h.do(ctx, OpUpdateUserSettings, http.MethodPatch, "/users/me", nil, patch, &u)
	return u, err
}

// do sends one request and decodes a JSON response into out (if non-nil).
func (h *HTTP) do(ctx context.Context, op Op, method, path string, query url.Values, body, out any) error {
	endpoint := h.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &RemoteError{Op: op, Message: "encode request", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &RemoteError{Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.initData != "" {
		req.Header.Set(InitDataHeader, h.initData)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug("request failed", "op", op, "method", method, "path", path, "error", err)
		return &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	h.logger.Debug("request complete",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: errorDetail(payload, resp.Status)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// errorDetail extracts the service's "detail" field, which is a string for
// domain errors and a list of field errors for request validation failures.
func errorDetail(payload []byte, fallback string) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || len(body.Detail) == 0 {
		if s := strings.TrimSpace(string(payload)); s != "" && len(s) < 512 {
			return s
		}
		return fallback
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	return string(body.Detail)
}

// wireID sends numeric ids as JSON numbers, the service's key type.
func wireID(id model.ID) any {
	if n, err := strconv.ParseInt(id.String(), 10, 64); err == nil {
		return n
	}
	return id.String()
}

// String describes the gateway for logs.
func (h *HTTP) String() string {
	return fmt.Sprintf("http(%s)", h.baseURL)
}
