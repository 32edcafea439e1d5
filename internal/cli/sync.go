package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/remsync/internal/model"
	"github.com/roach88/remsync/internal/state"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	All bool // include completed reminders in text output
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Bootstrap a session and print the snapshot",
		Long: `Wait for the platform to be ready, load the user, active reminders,
categories and statistics, and print the resulting snapshot.

A resource that fails to load is reported as a warning; the rest of the
snapshot is still printed.

Examples:
  remsync sync
  remsync sync --demo --format json
  remsync sync --journal ./remsync.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "list every loaded reminder, not just active ones")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx, opts.RootOptions, cmd, "sync")
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.session.Start(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "bootstrap failed", err)
	}

	var warnings []string
	for _, f := range report.Failures {
		warnings = append(warnings, fmt.Sprintf("%s failed to load: %v", f.Resource, f.Err))
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	snap := rt.session.Snapshot()
	if opts.Format == "json" {
		return formatter.Success(snap, warnings...)
	}
	writeSnapshot(cmd.OutOrStdout(), snap, opts.All)
	formatter.Warn(warnings...)
	return nil
}

// writeSnapshot renders a snapshot for humans.
func writeSnapshot(w io.Writer, s state.State, all bool) {
	if s.User != nil {
		fmt.Fprintf(w, "User: %s (id %s, %s, %s)\n", s.User.DisplayName(), s.User.ID, s.User.Language, s.User.Timezone)
	} else {
		fmt.Fprintln(w, "User: "+dimStyle.Render("not loaded"))
	}

	names := make(map[model.ID]string, len(s.Categories))
	for _, c := range s.Categories {
		names[c.ID] = c.Name
	}

	fmt.Fprintf(w, "Stats: %d active, %d completed, %d missed, %d total\n",
		s.Stats.Active, s.Stats.Completed, s.Stats.Missed, s.Stats.Total)

	reminders := s.Reminders
	if !all {
		reminders = s.ActiveReminders()
	}
	if len(reminders) == 0 {
		fmt.Fprintln(w, "No reminders.")
		return
	}

	fmt.Fprintf(w, "Reminders (%d):\n", len(reminders))
	for _, r := range reminders {
		writeReminder(w, r, names)
	}
}

func writeReminder(w io.Writer, r model.Reminder, categories map[model.ID]string) {
	var b strings.Builder
	fmt.Fprintf(&b, "  [%s] %s  %s", r.ID, r.RemindAt.Format("2006-01-02 15:04"), r.Title)
	if r.CategoryID != nil {
		if name, ok := categories[*r.CategoryID]; ok {
			fmt.Fprintf(&b, " #%s", name)
		}
	}
	line := b.String()
	switch {
	case r.Status == model.StatusCompleted:
		line = passStyle.Render(line + " (completed)")
	case r.Priority == model.PriorityHigh:
		line = warnStyle.Render(line + " !")
	}
	fmt.Fprintln(w, line)
}
