package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/remsync/internal/mcpserver"
)

// NewMCPCommand creates the mcp command.
func NewMCPCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the session as MCP tools over stdio",
		Long: `Bootstrap a session and expose it to an MCP client over stdin/stdout.

Tools: list_reminders, get_stats, add_reminder, update_reminder,
complete_reminder, delete_reminder and update_settings. Logs go to stderr.

Example:
  remsync mcp --demo`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := openRuntime(ctx, rootOpts, cmd, "mcp")
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.start(ctx); err != nil {
				return err
			}

			rt.logger.Info("serving MCP over stdio")
			if err := mcpserver.NewServer(rt.session).ServeStdio(); err != nil {
				return WrapExitError(ExitFailure, "mcp server", err)
			}
			return nil
		},
	}
}
