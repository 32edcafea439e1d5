package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/remsync/internal/journal"
	"github.com/roach88/remsync/internal/state"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string   // defaults to the latest session
	Kinds     []string // optional - filter to these action kinds
	List      bool     // list sessions instead of tracing one
}

// TraceResult holds the timeline of one recorded session.
type TraceResult struct {
	Session  journal.SessionInfo `json:"session"`
	Timeline []journal.Entry     `json:"timeline"`
	Counts   map[state.Kind]int  `json:"counts"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded actions of a session",
		Long: `Show the ordered timeline of actions dispatched in one recorded session.

Each entry carries its sequence number, action kind, canonical payload and
the hash of the state after the action was applied.

Examples:
  remsync trace --db ./remsync.db --list
  remsync trace --db ./remsync.db
  remsync trace --db ./remsync.db --session 0190c3d2-... --kind SET_STATS
  remsync trace --db ./remsync.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session to trace (default latest)")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "only show these action kinds")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded sessions")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sessions, err := j.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if opts.List {
		if opts.Format == "json" {
			return formatter.Success(sessions)
		}
		outputSessionsText(cmd, sessions)
		return nil
	}

	info, err := pickSession(sessions, opts.SessionID)
	if err != nil {
		return err
	}

	kinds := make([]state.Kind, 0, len(opts.Kinds))
	for _, k := range opts.Kinds {
		kinds = append(kinds, state.Kind(strings.ToUpper(strings.TrimSpace(k))))
	}

	entries, err := j.ReadSession(ctx, info.ID, kinds...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	result := TraceResult{Session: info, Timeline: entries, Counts: map[state.Kind]int{}}
	for _, e := range entries {
		result.Counts[e.Kind]++
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputTraceText(cmd, result, opts.Verbose)
	return nil
}

func pickSession(sessions []journal.SessionInfo, id string) (journal.SessionInfo, error) {
	if id == "" {
		if len(sessions) == 0 {
			return journal.SessionInfo{}, WrapExitError(ExitCommandError, "journal has no sessions", journal.ErrSessionNotFound)
		}
		return sessions[len(sessions)-1], nil
	}
	if found := filterSessions(sessions, id); len(found) == 1 {
		return found[0], nil
	}
	return journal.SessionInfo{}, WrapExitError(ExitCommandError, fmt.Sprintf("session %s", id), journal.ErrSessionNotFound)
}

func outputSessionsText(cmd *cobra.Command, sessions []journal.SessionInfo) {
	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %-10s  %s  %d action(s)\n", s.ID, s.Label, dimStyle.Render(s.StartedAt), s.Actions)
	}
}

func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session: %s (%s)\n", result.Session.ID, result.Session.Label)
	fmt.Fprintf(w, "Started: %s\n", result.Session.StartedAt)
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No actions recorded.")
		return
	}

	fmt.Fprintln(w, "Timeline:")
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %-16s %s\n", e.Seq, e.Kind, truncate(string(e.Payload), 80))
		if verbose {
			fmt.Fprintf(w, "       %s\n", dimStyle.Render("state "+short(e.StateHash)))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Counts:")
	kinds := make([]string, 0, len(result.Counts))
	for k := range result.Counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-16s %d\n", k, result.Counts[state.Kind(k)])
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

