package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/remsync/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	journal.ReplayResult
	Label string `json:"label"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []ReplaySessionResult `json:"sessions"`
	TotalSessions int                   `json:"total_sessions"`
	AllVerified   bool                  `json:"all_verified"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the action journal and verify determinism",
		Long: `Replay recorded sessions from the action journal.

Each session is reduced twice from the initial state. The two runs must
reach the same final state hash, and every step must reproduce the state
hash recorded when the action was first applied.

Exit codes:
  0 - All sessions verified
  1 - Verification failed (differences detected)
  2 - Command error (journal not found, etc.)

Examples:
  remsync replay --db ./remsync.db
  remsync replay --db ./remsync.db --session 0190c3d2-...
  remsync replay --db ./remsync.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay specific session only")

	return cmd
}

// openJournal opens an existing journal; it never creates one.
func openJournal(path string) (*journal.Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	sessions, err := j.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	if opts.SessionID != "" {
		sessions = filterSessions(sessions, opts.SessionID)
		if len(sessions) == 0 {
			return WrapExitError(ExitCommandError, fmt.Sprintf("session %s", opts.SessionID), journal.ErrSessionNotFound)
		}
	}

	result := ReplayResult{
		Sessions:      make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions: len(sessions),
		AllVerified:   true,
	}

	if len(sessions) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in journal.")
		return nil
	}

	for _, s := range sessions {
		rr, err := j.Replay(ctx, s.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", s.ID), err)
		}
		result.Sessions = append(result.Sessions, ReplaySessionResult{ReplayResult: rr, Label: s.Label})
		if !verified(rr) {
			result.AllVerified = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

func filterSessions(sessions []journal.SessionInfo, id string) []journal.SessionInfo {
	for _, s := range sessions {
		if s.ID == id {
			return []journal.SessionInfo{s}
		}
	}
	return nil
}

func verified(r journal.ReplayResult) bool {
	return r.Deterministic && r.Consistent
}

func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllVerified {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "replay verification failed",
		}
	}

	if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
		return err
	}
	if !result.AllVerified {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		if verified(s.ReplayResult) {
			fmt.Fprintln(w, passStyle.Render(fmt.Sprintf("✓ Session: %s (%s)", s.SessionID, s.Label)))
		} else {
			fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("✗ Session: %s (%s)", s.SessionID, s.Label)))
		}
		fmt.Fprintf(w, "  Steps: %d\n", s.Steps)
		if verbose {
			fmt.Fprintf(w, "  Final hash: %s\n", s.FinalHash)
		}
		if !s.Deterministic {
			fmt.Fprintln(w, warnStyle.Render("  Warning: Non-deterministic replay detected!"))
		}
		for _, m := range s.Mismatches {
			fmt.Fprintf(w, "  seq %d %s: recorded %s, replayed %s\n", m.Seq, m.Kind, short(m.Recorded), short(m.Replayed))
		}
		fmt.Fprintln(w)
	}

	if result.AllVerified {
		fmt.Fprintln(w, passStyle.Render("✓ All sessions verified deterministic"))
		return nil
	}

	fmt.Fprintln(w, failStyle.Render("✗ Replay verification failed"))
	return NewExitError(ExitFailure, "replay verification failed")
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
