package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "finagent",
		Short: "Inspect business file archives and cached finance agent analyses",
		Long: `finagent works on the same data as the finance agent server.

  finagent tree ./extracted              # print the directory tree
  finagent tree ./extracted -f json      # nested JSON export
  finagent example show                  # print the cached example analysis`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	logger := func() *slog.Logger {
		if !verbose {
			return slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	cmd.AddCommand(newTreeCmd(logger), newExampleCmd())
	return cmd
}
