package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RRaffay/Finance-Data-Agent/internal/example"
)

func newExampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "example",
		Short: "Work with the cached example analysis",
	}
	cmd.AddCommand(newExampleShowCmd())
	return cmd
}

func newExampleShowCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cached example objective, analysis and tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = os.Getenv("EXAMPLE_DIR")
			}
			if dir == "" {
				dir = "example_data"
			}
			cache := example.NewCache(dir)

			rec, err := cache.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if m, err := cache.Manifest(); err == nil {
				fmt.Fprintf(out, "%s %s\n", color.HiBlackString("recorded:"), m.RecordedAt.Format("2006-01-02 15:04:05"))
				if m.SessionID != "" {
					fmt.Fprintf(out, "%s %s\n", color.HiBlackString("session:"), m.SessionID)
				}
			}

			fmt.Fprintf(out, "\n%s\n%s\n", color.CyanString("Objective"), rec.Objective)
			fmt.Fprintf(out, "\n%s\n%s\n", color.CyanString("Analysis"), rec.Analysis)

			var tree bytes.Buffer
			if err := json.Indent(&tree, rec.Tree, "", "  "); err != nil {
				return fmt.Errorf("indent tree: %w", err)
			}
			fmt.Fprintf(out, "\n%s\n%s\n", color.CyanString("Tree"), tree.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Example cache directory (default $EXAMPLE_DIR or example_data)")
	return cmd
}
