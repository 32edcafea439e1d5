// Package coordinator applies user mutations to the session.
//
// Every operation validates locally, calls the gateway, and commits to the
// store only after the service confirms: exactly one state transition on
// success, none on failure. Errors propagate to the caller and are never
// retried here.
//
// After create, complete and delete the coordinator refreshes Stats from the
// service. Stats are never computed locally.
package coordinator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/remsync/internal/gateway"
	"github.com/roach88/remsync/internal/model"
	"github.com/roach88/remsync/internal/state"
)

// Coordinator runs mutations for one session. Safe for concurrent use;
// independent calls may be in flight together.
type Coordinator struct {
	store          *state.Store
	gw             gateway.Gateway
	logger         *slog.Logger
	resyncOnDelete bool

	// stats orders resyncs against each other and against the bootstrap
	// fetch when the gate is shared.
	stats *state.TicketGate
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithDeleteResync controls the Stats refresh after delete. Default: true.
func WithDeleteResync(enabled bool) Option {
	return func(c *Coordinator) {
		c.resyncOnDelete = enabled
	}
}

// WithStatsGate shares the Stats ticket gate with other writers of Stats,
// typically the bootstrap orchestrator. Default: a private gate.
func WithStatsGate(g *state.TicketGate) Option {
	return func(c *Coordinator) {
		c.stats = g
	}
}

// New creates a coordinator over store and gw.
func New(store *state.Store, gw gateway.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:          store,
		gw:             gw,
		logger:         slog.Default(),
		resyncOnDelete: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stats == nil {
		c.stats = state.NewTicketGate()
	}
	return c
}

// Create adds a reminder. On success the server's reminder is prepended to
// the collection, then Stats are refreshed. A returned *ResyncError means
// the reminder was created and committed but Stats may be stale.
func (c *Coordinator) Create(ctx context.Context, in model.CreateInput) (model.Reminder, error) {
	in = in.Normalize()
	if err := in.Validate(c.categories()); err != nil {
		return model.Reminder{}, err
	}

	r, err := c.gw.CreateReminder(ctx, in)
	if err == nil {
		err = requireID(gateway.OpCreateReminder, r)
	}
	if err != nil {
		return model.Reminder{}, c.failed(OpCreate, "", err)
	}
	c.store.Dispatch(state.AddReminder{Reminder: r})
	c.logger.Info("reminder created", "id", r.ID)

	return r, c.resync(ctx, OpCreate)
}

// Update changes reminder fields. Stats are not refreshed: update never
// moves a reminder between active and completed.
func (c *Coordinator) Update(ctx context.Context, id model.ID, patch model.ReminderPatch) (model.Reminder, error) {
	if err := validateID(id); err != nil {
		return model.Reminder{}, err
	}
	if err := patch.Validate(c.categories()); err != nil {
		return model.Reminder{}, err
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		patch.Title = &t
	}

	r, err := c.gw.UpdateReminder(ctx, id, patch)
	if err == nil {
		err = requireID(gateway.OpUpdateReminder, r)
	}
	if err != nil {
		return model.Reminder{}, c.failed(OpUpdate, id, err)
	}
	c.store.Dispatch(state.UpdateReminder{Reminder: r})
	c.logger.Info("reminder updated", "id", r.ID)
	return r, nil
}

// Complete marks a reminder done, then refreshes Stats. Completion changes
// the active/completed partition, so the refresh is mandatory.
func (c *Coordinator) Complete(ctx context.Context, id model.ID) (model.Reminder, error) {
	if err := validateID(id); err != nil {
		return model.Reminder{}, err
	}

	r, err := c.gw.CompleteReminder(ctx, id)
	if err == nil {
		err = requireID(gateway.OpCompleteReminder, r)
	}
	if err != nil {
		return model.Reminder{}, c.failed(OpComplete, id, err)
	}
	c.store.Dispatch(state.UpdateReminder{Reminder: r})
	c.logger.Info("reminder completed", "id", r.ID)

	return r, c.resync(ctx, OpComplete)
}

// Delete removes a reminder after the service confirms the deletion.
func (c *Coordinator) Delete(ctx context.Context, id model.ID) error {
	if err := validateID(id); err != nil {
		return err
	}

	if err := c.gw.DeleteReminder(ctx, id); err != nil {
		return c.failed(OpDelete, id, err)
	}
	c.store.Dispatch(state.RemoveReminder{ID: id})
	c.logger.Info("reminder deleted", "id", id)

	if !c.resyncOnDelete {
		return nil
	}
	return c.resync(ctx, OpDelete)
}

// UpdateSettings changes user preferences and replaces the session user
// with the service's response.
func (c *Coordinator) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.User, error) {
	if err := patch.Validate(); err != nil {
		return model.User{}, err
	}

	u, err := c.gw.UpdateUserSettings(ctx, patch)
	if err != nil {
		return model.User{}, c.failed(OpUpdateSettings, "", err)
	}
	c.store.Dispatch(state.SetUser{User: u})
	c.logger.Info("settings updated", "user", u.ID)
	return u, nil
}

// RefreshStats fetches Stats and commits them unless a newer refresh has
// already landed.
func (c *Coordinator) RefreshStats(ctx context.Context) error {
	ticket := c.stats.Take()

	st, err := c.gw.FetchStats(ctx)
	if err != nil {
		return err
	}

	if !c.stats.Commit(ticket, func() { c.store.Dispatch(state.SetStats{Stats: st}) }) {
		c.logger.Debug("discarding stale stats", "ticket", ticket)
	}
	return nil
}

func (c *Coordinator) resync(ctx context.Context, op Operation) error {
	if err := c.RefreshStats(ctx); err != nil {
		c.logger.Warn("stats resync failed", "op", op, "error", err)
		return &ResyncError{Op: op, Err: err}
	}
	return nil
}

func (c *Coordinator) failed(op Operation, id model.ID, err error) error {
	c.logger.Warn("mutation failed", "op", op, "id", id, "error", err)
	return &MutationError{Op: op, ID: id, Err: err}
}

// categories returns the known category set, or nil before categories
// loaded. A session whose category fetch failed cannot check references
// locally and defers to the service.
func (c *Coordinator) categories() model.CategorySet {
	s := c.store.Snapshot()
	if len(s.Categories) == 0 {
		return nil
	}
	return s
}

// requireID rejects a success response that carries no reminder id.
func requireID(op gateway.Op, r model.Reminder) error {
	if r.ID.IsZero() {
		return &gateway.RemoteError{Op: op, Message: "response missing id"}
	}
	return nil
}

func validateID(id model.ID) error {
	if strings.TrimSpace(id.String()) == "" {
		return model.ValidationErrors{{Field: "id", Message: "id is required", Code: model.CodeRequired}}
	}
	return nil
}

