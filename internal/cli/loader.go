package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/remsync/internal/config"
	"github.com/roach88/remsync/internal/gateway"
	"github.com/roach88/remsync/internal/journal"
	"github.com/roach88/remsync/internal/model"
	"github.com/roach88/remsync/internal/session"
)

// GatewayFactory builds the remote gateway for a command.
type GatewayFactory func(cfg *config.Config, logger *slog.Logger) (gateway.Gateway, error)

// runtime is everything a session-backed command needs.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	session *session.Session
	journal *journal.Journal
}

// loadConfig loads config honouring --config.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// openRuntime loads config, builds the gateway and optional journal, and
// creates a session. label names the journal session.
func openRuntime(ctx context.Context, opts *RootOptions, cmd *cobra.Command, label string) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger(cmd.ErrOrStderr(), opts.Verbose)

	factory := opts.Gateway
	if factory == nil {
		factory = defaultGateway(opts.Demo)
	}
	gw, err := factory(cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build gateway", err)
	}

	rt := &runtime{cfg: cfg, logger: logger}
	sessOpts := []session.Option{
		session.WithLogger(logger),
		session.WithDeleteResync(cfg.Sync.ResyncOnDelete),
	}

	if path := journalPath(opts, cfg); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, WrapExitError(ExitCommandError, "failed to create journal directory", err)
			}
		}
		j, err := journal.Open(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		rec, err := j.StartSession(ctx, label)
		if err != nil {
			_ = j.Close()
			return nil, WrapExitError(ExitCommandError, "failed to start journal session", err)
		}
		logger.Debug("journal session started", "path", path, "session", rec.SessionID())
		rt.journal = j
		sessOpts = append(sessOpts, session.WithRecorder(rec))
	}

	rt.session = session.New(gw, sessOpts...)
	return rt, nil
}

// start bootstraps the session. Partial loads are logged, not fatal.
func (rt *runtime) start(ctx context.Context) error {
	report, err := rt.session.Start(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "bootstrap failed", err)
	}
	for _, f := range report.Failures {
		rt.logger.Warn("resource failed to load", "resource", f.Resource, "error", f.Err)
	}
	return nil
}

func (rt *runtime) Close() error {
	if rt.journal == nil {
		return nil
	}
	return rt.journal.Close()
}

func journalPath(opts *RootOptions, cfg *config.Config) string {
	if opts.Journal != "" {
		return opts.Journal
	}
	if cfg.Journal.Enabled {
		return cfg.Journal.Path
	}
	return ""
}

func defaultGateway(demo bool) GatewayFactory {
	return func(cfg *config.Config, logger *slog.Logger) (gateway.Gateway, error) {
		if demo {
			return demoGateway(time.Now), nil
		}
		if cfg.API.InitData == "" {
			logger.Warn("api.init_data is empty; the service will reject requests")
		}
		return gateway.NewHTTP(cfg.API.BaseURL,
			gateway.WithTimeout(cfg.APITimeout()),
			gateway.WithInitData(cfg.API.InitData),
			gateway.WithHTTPLogger(logger),
		), nil
	}
}

// demoGateway seeds the in-memory service with a few reminders.
func demoGateway(now func() time.Time) *gateway.Memory {
	base := now().UTC().Truncate(time.Minute)
	work, health := model.ID("2"), model.ID("4")
	return gateway.NewMemory(
		gateway.WithNow(now),
		gateway.WithReminders([]model.Reminder{
			{ID: "1", Title: "Stand-up notes", RemindAt: base.Add(time.Hour), Priority: model.PriorityHigh,
				Status: model.StatusActive, CategoryID: &work, RepeatType: model.RepeatDaily, CreatedAt: base},
			{ID: "2", Title: "Drink water", RemindAt: base.Add(2 * time.Hour), Priority: model.PriorityLow,
				Status: model.StatusActive, CategoryID: &health, RepeatType: model.RepeatNone, NotifyBefore: 5, CreatedAt: base},
		}),
	)
}

// parseID rejects blank ids before any network call.
func parseID(arg string) (model.ID, error) {
	id := model.ID(strings.TrimSpace(arg))
	if id.IsZero() {
		return "", NewExitError(ExitCommandError, "reminder id must not be empty")
	}
	return id, nil
}

// operationError maps a failed operation to an exit error.
func operationError(op string, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if model.IsValidationError(err) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s", op), err)
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", op), err)
}
