// Package session wires the state store, bootstrap orchestrator and
// mutation coordinator for one client session over a single gateway.
package session

import (
	"context"
	"log/slog"

	"github.com/roach88/remsync/internal/bootstrap"
	"github.com/roach88/remsync/internal/bridge"
	"github.com/roach88/remsync/internal/coordinator"
	"github.com/roach88/remsync/internal/gateway"
	"github.com/roach88/remsync/internal/model"
	"github.com/roach88/remsync/internal/state"
)

// Session is the entry point UI-layer collaborators use.
type Session struct {
	store   *state.Store
	boot    *bootstrap.Orchestrator
	coord   *coordinator.Coordinator
	gateway gateway.Gateway
	logger  *slog.Logger
}

type options struct {
	logger         *slog.Logger
	bridge         bridge.Bridge
	clock          state.SeqSource
	recorder       state.Recorder
	resyncOnDelete bool
	historyLimit   int
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the logger for every component. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithBridge sets the platform readiness gate. Default: bridge.Ready{}.
func WithBridge(b bridge.Bridge) Option {
	return func(o *options) {
		o.bridge = b
	}
}

// WithClock sets the action sequence source.
func WithClock(c state.SeqSource) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithRecorder records every applied action, typically to a journal.
func WithRecorder(r state.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithDeleteResync controls the Stats refresh after delete. Default: true.
func WithDeleteResync(enabled bool) Option {
	return func(o *options) {
		o.resyncOnDelete = enabled
	}
}

// WithHistoryLimit bounds the in-memory action history.
func WithHistoryLimit(n int) Option {
	return func(o *options) {
		o.historyLimit = n
	}
}

// New creates a session over gw. Call Start to bootstrap it.
func New(gw gateway.Gateway, opts ...Option) *Session {
	o := options{
		logger:         slog.Default(),
		bridge:         bridge.Ready{},
		resyncOnDelete: true,
		historyLimit:   state.DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}

	storeOpts := []state.StoreOption{
		state.WithLogger(o.logger),
		state.WithHistoryLimit(o.historyLimit),
	}
	if o.clock != nil {
		storeOpts = append(storeOpts, state.WithClock(o.clock))
	}
	if o.recorder != nil {
		storeOpts = append(storeOpts, state.WithRecorder(o.recorder))
	}
	store := state.NewStore(storeOpts...)
	stats := state.NewTicketGate()

	return &Session{
		store: store,
		boot: bootstrap.New(store, gw, o.bridge,
			bootstrap.WithLogger(o.logger),
			bootstrap.WithStatsGate(stats)),
		coord: coordinator.New(store, gw,
			coordinator.WithLogger(o.logger),
			coordinator.WithDeleteResync(o.resyncOnDelete),
			coordinator.WithStatsGate(stats)),
		gateway: gw,
		logger:  o.logger,
	}
}

// Start runs the bootstrap. See bootstrap.Orchestrator.Run.
func (s *Session) Start(ctx context.Context) (bootstrap.Report, error) {
	return s.boot.Run(ctx)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() state.State {
	return s.store.Snapshot()
}

// Subscribe streams state changes. See state.Store.Subscribe.
func (s *Session) Subscribe(buffer int) (<-chan state.Change, func()) {
	return s.store.Subscribe(buffer)
}

// History returns the recent applied actions.
func (s *Session) History() []state.Applied {
	return s.store.History()
}

// Store exposes the underlying store for diagnostics.
func (s *Session) Store() *state.Store {
	return s.store
}

// Gateway returns the session's gateway.
func (s *Session) Gateway() gateway.Gateway {
	return s.gateway
}

// Create adds a reminder.
func (s *Session) Create(ctx context.Context, in model.CreateInput) (model.Reminder, error) {
	return s.coord.Create(ctx, in)
}

// Update changes a reminder.
func (s *Session) Update(ctx context.Context, id model.ID, patch model.ReminderPatch) (model.Reminder, error) {
	return s.coord.Update(ctx, id, patch)
}

// Complete marks a reminder done.
func (s *Session) Complete(ctx context.Context, id model.ID) (model.Reminder, error) {
	return s.coord.Complete(ctx, id)
}

// Delete removes a reminder.
func (s *Session) Delete(ctx context.Context, id model.ID) error {
	return s.coord.Delete(ctx, id)
}

// UpdateSettings changes user preferences.
func (s *Session) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (model.User, error) {
	return s.coord.UpdateSettings(ctx, patch)
}

// RefreshStats re-fetches Stats from the service.
func (s *Session) RefreshStats(ctx context.Context) error {
	return s.coord.RefreshStats(ctx)
}
