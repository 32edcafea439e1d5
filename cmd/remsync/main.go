// Command remsync bootstraps and mutates the client-side state of a
// reminder account.
//
// Usage:
//
//	remsync sync                      # load and print the snapshot
//	remsync add "Call mom" --at ...   # create a reminder
//	remsync mcp --demo                # serve MCP tools over stdio
//	remsync test ./scenarios          # run conformance scenarios
//
// Configuration is read from ~/.remsync/config.yaml and REMSYNC_* variables.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/remsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
