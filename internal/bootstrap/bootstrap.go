// Package bootstrap populates a fresh session from the remote service.
//
// Four resources (user, active reminders, categories, stats) are fetched
// concurrently once the platform bridge reports ready. Each fetch settles on
// its own: a failed resource keeps its initial value and never fails its
// siblings or sets the session error. Loading always ends with InitComplete.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/remsync/internal/bridge"
	"github.com/roach88/remsync/internal/gateway"
	"github.com/roach88/remsync/internal/model"
	"github.com/roach88/remsync/internal/state"
)

// Resource names one bootstrap fetch.
type Resource string

const (
	ResourceUser       Resource = "user"
	ResourceReminders  Resource = "reminders"
	ResourceCategories Resource = "categories"
	ResourceStats      Resource = "stats"
)

// Resources lists the bootstrap fetches in commit order.
var Resources = []Resource{ResourceUser, ResourceReminders, ResourceCategories, ResourceStats}

// ErrAlreadyRan is returned by a second call to Run.
var ErrAlreadyRan = errors.New("bootstrap: already ran for this session")

// OrchestrationError is a failure outside the four fetches, such as the
// platform bridge failing. It is recorded as the session's last error.
type OrchestrationError struct {
	Err error
}

// Error implements the error interface.
func (e *OrchestrationError) Error() string {
	return "bootstrap failed: " + e.Err.Error()
}

// Unwrap returns the cause.
func (e *OrchestrationError) Unwrap() error { return e.Err }

// IsOrchestrationError reports whether err is a bootstrap orchestration failure.
func IsOrchestrationError(err error) bool {
	var oe *OrchestrationError
	return errors.As(err, &oe)
}

// Failure is one resource that could not be loaded.
type Failure struct {
	Resource Resource
	Err      error
}

// Report summarises a bootstrap run.
type Report struct {
	Loaded   []Resource
	Failures []Failure
}

// Failed reports whether res failed to load.
func (r Report) Failed(res Resource) bool {
	for _, f := range r.Failures {
		if f.Resource == res {
			return true
		}
	}
	return false
}

// Complete reports whether every resource loaded.
func (r Report) Complete() bool {
	return len(r.Failures) == 0 && len(r.Loaded) == len(Resources)
}

// Orchestrator runs the bootstrap for one session.
type Orchestrator struct {
	store  *state.Store
	gw     gateway.Gateway
	bridge bridge.Bridge
	logger *slog.Logger
	filter gateway.ReminderFilter
	stats  *state.TicketGate
	ran    atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithReminderFilter overrides the reminder fetch filter.
// Default: active reminders only.
func WithReminderFilter(f gateway.ReminderFilter) Option {
	return func(o *Orchestrator) {
		o.filter = f
	}
}

// WithStatsGate shares the Stats ticket gate with the mutation
// coordinator, so a slow bootstrap fetch never overwrites a newer resync.
// Default: a private gate.
func WithStatsGate(g *state.TicketGate) Option {
	return func(o *Orchestrator) {
		o.stats = g
	}
}

// New creates an orchestrator writing into store. A nil bridge is treated
// as always ready.
func New(store *state.Store, gw gateway.Gateway, br bridge.Bridge, opts ...Option) *Orchestrator {
	if br == nil {
		br = bridge.Ready{}
	}
	o := &Orchestrator{
		store:  store,
		gw:     gw,
		bridge: br,
		logger: slog.Default(),
		filter: gateway.ReminderFilter{Status: model.StatusActive},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.stats == nil {
		o.stats = state.NewTicketGate()
	}
	return o
}

type fetched struct {
	user       model.User
	reminders  []model.Reminder
	categories []model.Category
	stats      model.Stats
	ticket     uint64
	errs       map[Resource]error
}

// Run performs the bootstrap. It runs at most once per Orchestrator.
//
// If ctx ends before the bridge is ready, Run returns ctx.Err() and leaves
// loading set. A bridge failure returns *OrchestrationError after recording
// it as the session error and completing loading. Per-resource failures are
// reported in Report and never returned as an error.
func (o *Orchestrator) Run(ctx context.Context) (rep Report, err error) {
	if !o.ran.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyRan
	}

	defer func() {
		if r := recover(); r != nil {
			rep, err = o.fail(fmt.Errorf("panic: %v", r))
		}
	}()

	o.store.Dispatch(state.SetLoading{Loading: true})

	if err := o.waitReady(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			o.logger.Info("bootstrap abandoned before platform ready", "error", err)
			return Report{}, err
		}
		return o.fail(err)
	}

	res := o.fetchAll(ctx)

	actions := make([]state.Action, 0, len(Resources)+1)
	haveStats := false
	for _, r := range Resources {
		if ferr := res.errs[r]; ferr != nil {
			rep.Failures = append(rep.Failures, Failure{Resource: r, Err: ferr})
			o.logger.Warn("bootstrap resource failed",
				"resource", r,
				"error", ferr)
			continue
		}
		rep.Loaded = append(rep.Loaded, r)
		switch r {
		case ResourceUser:
			actions = append(actions, state.SetUser{User: res.user})
		case ResourceReminders:
			actions = append(actions, state.SetReminders{Reminders: res.reminders})
		case ResourceCategories:
			actions = append(actions, state.SetCategories{Categories: res.categories})
		case ResourceStats:
			haveStats = true
		}
	}

	commit := func(stats bool) {
		if stats {
			actions = append(actions, state.SetStats{Stats: res.stats})
		}
		o.store.Dispatch(append(actions, state.InitComplete{})...)
	}
	if !haveStats {
		commit(false)
	} else if !o.stats.Commit(res.ticket, func() { commit(true) }) {
		o.logger.Debug("discarding stale bootstrap stats", "ticket", res.ticket)
		commit(false)
	}

	o.logger.Info("bootstrap complete",
		"loaded", len(rep.Loaded),
		"failed", len(rep.Failures))
	return rep, nil
}

// fail records an orchestration failure and still completes loading.
func (o *Orchestrator) fail(cause error) (Report, error) {
	o.logger.Error("bootstrap orchestration failed", "error", cause)
	o.store.Dispatch(
		state.SetError{Message: cause.Error()},
		state.InitComplete{},
	)
	return Report{}, &OrchestrationError{Err: cause}
}

func (o *Orchestrator) waitReady(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bridge panic: %v", r)
		}
	}()
	return o.bridge.WaitReady(ctx)
}

// fetchAll issues the four fetches concurrently and waits for all of them
// to settle. Results are committed by the caller in fixed order so the
// action log does not depend on network arrival order.
func (o *Orchestrator) fetchAll(ctx context.Context) fetched {
	var (
		res = fetched{errs: make(map[Resource]error, len(Resources))}
		mu  sync.Mutex
		wg  sync.WaitGroup
	)

	settle := func(r Resource, fn func() error) {
		defer wg.Done()
		err := guard(fn)
		mu.Lock()
		res.errs[r] = err
		mu.Unlock()
	}

	res.ticket = o.stats.Take()
	wg.Add(len(Resources))
	go settle(ResourceUser, func() (err error) {
		res.user, err = o.gw.FetchUser(ctx)
		return err
	})
	go settle(ResourceReminders, func() (err error) {
		res.reminders, err = o.gw.FetchReminders(ctx, o.filter)
		return err
	})
	go settle(ResourceCategories, func() (err error) {
		res.categories, err = o.gw.FetchCategories(ctx)
		return err
	})
	go settle(ResourceStats, func() (err error) {
		res.stats, err = o.gw.FetchStats(ctx)
		return err
	})
	wg.Wait()
	return res
}

// guard converts a panic inside a fetch into that resource's failure.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panic: %v", r)
		}
	}()
	return fn()
}
