package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RRaffay/Finance-Data-Agent/internal/config"
	"github.com/RRaffay/Finance-Data-Agent/internal/llm"
	"github.com/RRaffay/Finance-Data-Agent/internal/loader"
	"github.com/RRaffay/Finance-Data-Agent/internal/tree"
)

func newTreeCmd(logger func() *slog.Logger) *cobra.Command {
	var (
		format  string
		analyze bool
	)

	cmd := &cobra.Command{
		Use:   "tree <dir>",
		Short: "Print the directory tree the agent would see for dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}

			var summarizer tree.Summarizer
			if analyze {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				factory := llm.NewOpenAIFactory(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, 2*time.Minute)
				cm, err := factory(cmd.Context(), cfg.SummaryModel)
				if err != nil {
					return fmt.Errorf("create summary model: %w", err)
				}
				summarizer = tree.NewFileSummarizer(cm)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			t, err := tree.NewBuilder(loader.New(), summarizer, logger()).Build(ctx, args[0], analyze)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				return writeTreeJSON(out, t)
			}
			writeTreeText(out, t)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Summarize each file with the summary model")
	return cmd
}

func writeTreeJSON(w io.Writer, t *tree.Tree) error {
	raw, err := t.JSON()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("indent tree: %w", err)
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(w)
	return err
}

func writeTreeText(w io.Writer, t *tree.Tree) {
	for _, line := range strings.SplitAfter(t.Text(), "\n") {
		if line == "" {
			continue
		}
		if strings.Contains(line, "(Path: ") {
			fmt.Fprint(w, line)
			continue
		}
		fmt.Fprint(w, color.CyanString("%s", line))
	}

	exts := make([]string, 0, len(t.Counts))
	total := 0
	for ext, n := range t.Counts {
		exts = append(exts, ext)
		total += n
	}
	sort.Strings(exts)

	parts := make([]string, 0, len(exts))
	for _, ext := range exts {
		parts = append(parts, fmt.Sprintf("%s: %d", ext, t.Counts[ext]))
	}
	fmt.Fprintf(w, "\n%s %s\n", color.GreenString("%d files", total), color.HiBlackString(strings.Join(parts, ", ")))
}
