package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/remsync/internal/config"
	"github.com/roach88/remsync/internal/harness"
)

// ValidationIssue is one problem found by validate.
type ValidationIssue struct {
	Source  string `json:"source"` // "config" or a scenario path
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Config    *config.Config    `json:"config,omitempty"`
	Scenarios int               `json:"scenarios"`
	Errors    []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [scenarios-dir]",
		Short: "Validate config and scenario files",
		Long: `Validate the effective configuration against its schema and, when a
directory is given, check every scenario file in it without running them.

The effective configuration merges built-in defaults, the config file and
REMSYNC_* environment variables (REMSYNC_API__BASE_URL sets api.base_url).

Examples:
  remsync validate
  remsync validate --config ./remsync.yaml
  remsync validate ./scenarios --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result := ValidationResult{}

	cfg, err := config.Load(opts.ConfigPath)
	switch {
	case err == nil:
		result.Config = cfg
		formatter.VerboseLog("Config valid: api.base_url=%s", cfg.API.BaseURL)
	default:
		result.Errors = append(result.Errors, configIssues(err)...)
	}

	if scenariosDir != "" {
		paths, err := harness.FindScenarios(scenariosDir, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		result.Scenarios = len(paths)
		for _, path := range paths {
			formatter.VerboseLog("Checking scenario: %s", path)
			if _, err := harness.LoadScenario(path); err != nil {
				result.Errors = append(result.Errors, ValidationIssue{Source: path, Message: err.Error()})
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	if result.Valid {
		if opts.Format == "json" {
			return formatter.Success(result)
		}
		msg := "✓ Config valid"
		if scenariosDir != "" {
			msg += fmt.Sprintf(", %d scenario(s) valid", result.Scenarios)
		}
		fmt.Fprintln(cmd.OutOrStdout(), passStyle.Render(msg))
		return nil
	}

	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: "E_VALIDATION", Message: fmt.Sprintf("%d validation error(s)", len(result.Errors))},
		}); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("✗ %d validation error(s)", len(result.Errors))))
		for _, issue := range result.Errors {
			if issue.Field != "" {
				fmt.Fprintf(w, "  %s: %s: %s\n", issue.Source, issue.Field, issue.Message)
			} else {
				fmt.Fprintf(w, "  %s: %s\n", issue.Source, issue.Message)
			}
		}
	}
	return NewExitError(ExitFailure, "validation failed")
}

// configIssues flattens a config load error into issues.
func configIssues(err error) []ValidationIssue {
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		return []ValidationIssue{{Source: "config", Message: err.Error()}}
	}
	issues := make([]ValidationIssue, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		issues = append(issues, ValidationIssue{Source: "config", Field: f.Path, Message: f.Message})
	}
	return issues
}
