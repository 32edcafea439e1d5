package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/remsync/internal/coordinator"
	"github.com/roach88/remsync/internal/model"
	"github.com/roach88/remsync/internal/session"
)

// mutation runs one operation against a bootstrapped session and returns
// the JSON payload and the text line to print.
type mutation func(ctx context.Context, s *session.Session) (data any, text string, err error)

// runMutation bootstraps a session, runs fn and prints its result. A
// committed mutation whose stats resync failed exits 0 with a warning.
func runMutation(opts *RootOptions, cmd *cobra.Command, op string, fn mutation) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx, opts, cmd, op)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.start(ctx); err != nil {
		return err
	}

	data, text, err := fn(ctx, rt.session)
	var warnings []string
	var re *coordinator.ResyncError
	switch {
	case errors.As(err, &re):
		warnings = append(warnings, "statistics may be stale: "+re.Err.Error())
	case err != nil:
		return operationError(op, err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(data, warnings...)
	}
	return formatter.Success(text, warnings...)
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	At           string
	Description  string
	Priority     string
	Category     string
	Repeat       string
	RepeatDays   string
	NotifyBefore int
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a reminder",
		Long: `Create a reminder on the service and add it to the snapshot.

Input is validated locally first; an invalid reminder never reaches the
service. Statistics are refreshed after the reminder is created.

Examples:
  remsync add "Call mom" --at 2026-03-02T18:00:00Z
  remsync add "Stand-up" --at 2026-03-02T09:30:00+01:00 --repeat weekdays --priority high`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := time.Parse(time.RFC3339, opts.At)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --at (use RFC3339)", err)
			}
			in := model.CreateInput{
				Title:        args[0],
				Description:  opts.Description,
				RemindAt:     at,
				Priority:     model.Priority(opts.Priority),
				RepeatType:   model.RepeatType(opts.Repeat),
				RepeatDays:   opts.RepeatDays,
				NotifyBefore: opts.NotifyBefore,
			}
			if opts.Category != "" {
				in.CategoryID = model.PtrID(model.ID(opts.Category))
			}
			return runMutation(opts.RootOptions, cmd, "add reminder", func(ctx context.Context, s *session.Session) (any, string, error) {
				r, err := s.Create(ctx, in)
				return r, fmt.Sprintf("Created reminder %s: %s", r.ID, r.Title), err
			})
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "when to remind, RFC3339 (required)")
	_ = cmd.MarkFlagRequired("at")
	cmd.Flags().StringVar(&opts.Description, "description", "", "longer description")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "low|medium|high (default medium)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category id")
	cmd.Flags().StringVar(&opts.Repeat, "repeat", "", "none|daily|weekly|monthly|weekdays|custom")
	cmd.Flags().StringVar(&opts.RepeatDays, "repeat-days", "", "comma-separated weekdays 1-7 (Mon=1) for custom repeats")
	cmd.Flags().IntVar(&opts.NotifyBefore, "notify-before", 0, "minutes of advance notice")

	return cmd
}

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Title         string
	At            string
	Description   string
	Priority      string
	Category      string
	ClearCategory bool
	Repeat        string
	RepeatDays    string
	NotifyBefore  int
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a reminder",
		Long: `Send a partial update for a reminder. Only flags given on the command
line are sent.

Examples:
  remsync update 12 --title "Call mom and dad"
  remsync update 12 --clear-category`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			patch, err := opts.patch(cmd)
			if err != nil {
				return err
			}
			return runMutation(opts.RootOptions, cmd, "update reminder", func(ctx context.Context, s *session.Session) (any, string, error) {
				r, err := s.Update(ctx, id, patch)
				return r, fmt.Sprintf("Updated reminder %s: %s", r.ID, r.Title), err
			})
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "new title")
	cmd.Flags().StringVar(&opts.At, "at", "", "new time, RFC3339")
	cmd.Flags().StringVar(&opts.Description, "description", "", "new description")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "low|medium|high")
	cmd.Flags().StringVar(&opts.Category, "category", "", "move to category id")
	cmd.Flags().BoolVar(&opts.ClearCategory, "clear-category", false, "remove the category")
	cmd.Flags().StringVar(&opts.Repeat, "repeat", "", "none|daily|weekly|monthly|weekdays|custom")
	cmd.Flags().StringVar(&opts.RepeatDays, "repeat-days", "", "comma-separated weekdays 1-7 (Mon=1)")
	cmd.Flags().IntVar(&opts.NotifyBefore, "notify-before", 0, "minutes of advance notice")
	cmd.MarkFlagsMutuallyExclusive("category", "clear-category")

	return cmd
}

// patch builds a patch from the flags that were set.
func (o *UpdateOptions) patch(cmd *cobra.Command) (model.ReminderPatch, error) {
	var p model.ReminderPatch
	flags := cmd.Flags()

	if flags.Changed("title") {
		p.Title = &o.Title
	}
	if flags.Changed("description") {
		p.Description = &o.Description
	}
	if flags.Changed("at") {
		at, err := time.Parse(time.RFC3339, o.At)
		if err != nil {
			return p, WrapExitError(ExitCommandError, "invalid --at (use RFC3339)", err)
		}
		p.RemindAt = &at
	}
	if flags.Changed("priority") {
		pr := model.Priority(o.Priority)
		p.Priority = &pr
	}
	if flags.Changed("category") {
		p.CategoryID = model.PtrID(model.ID(o.Category))
	}
	p.ClearCategory = o.ClearCategory
	if flags.Changed("repeat") {
		rt := model.RepeatType(o.Repeat)
		p.RepeatType = &rt
	}
	if flags.Changed("repeat-days") {
		p.RepeatDays = &o.RepeatDays
	}
	if flags.Changed("notify-before") {
		p.NotifyBefore = &o.NotifyBefore
	}
	return p, nil
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "complete <id>",
		Short:         "Mark a reminder completed",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runMutation(rootOpts, cmd, "complete reminder", func(ctx context.Context, s *session.Session) (any, string, error) {
				r, err := s.Complete(ctx, id)
				return r, fmt.Sprintf("Reminder %s marked as completed.", id), err
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a reminder",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runMutation(rootOpts, cmd, "delete reminder", func(ctx context.Context, s *session.Session) (any, string, error) {
				err := s.Delete(ctx, id)
				return map[string]any{"id": id, "deleted": true}, fmt.Sprintf("Reminder %s deleted.", id), err
			})
		},
	}
}

// SettingsOptions holds flags for the settings command.
type SettingsOptions struct {
	*RootOptions
	Language      string
	Timezone      string
	Theme         string
	Notifications bool
}

// NewSettingsCommand creates the settings command.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Update user settings",
		Long: `Update language, timezone, theme or notification settings.

Examples:
  remsync settings --timezone Europe/Berlin
  remsync settings --theme dark --notifications=false`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.SettingsPatch
			flags := cmd.Flags()
			if flags.Changed("language") {
				patch.Language = &opts.Language
			}
			if flags.Changed("timezone") {
				patch.Timezone = &opts.Timezone
			}
			if flags.Changed("theme") {
				patch.Theme = &opts.Theme
			}
			if flags.Changed("notifications") {
				patch.NotificationsEnabled = &opts.Notifications
			}
			return runMutation(opts.RootOptions, cmd, "update settings", func(ctx context.Context, s *session.Session) (any, string, error) {
				u, err := s.UpdateSettings(ctx, patch)
				return u, fmt.Sprintf("Settings updated: language=%s timezone=%s theme=%s notifications=%t",
					u.Language, u.Timezone, u.Theme, u.NotificationsEnabled), err
			})
		},
	}

	cmd.Flags().StringVar(&opts.Language, "language", "", "interface language code")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "", "IANA timezone, e.g. Europe/Berlin")
	cmd.Flags().StringVar(&opts.Theme, "theme", "", "light|dark|auto")
	cmd.Flags().BoolVar(&opts.Notifications, "notifications", true, "enable notifications")

	return cmd
}
