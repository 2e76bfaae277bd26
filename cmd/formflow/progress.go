package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/formflow/pkg/progress"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect or discard saved form progress",
}

// withProgress opens the configured store for the duration of fn.
func withProgress(cmd *cobra.Command, fn func(context.Context, *progress.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	backend, err := cfg.OpenBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(ctx, cfg.ProgressStore(backend, cfg.Logger()))
}

var progressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List forms with saved progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProgress(cmd, func(ctx context.Context, store *progress.Store) error {
			ids, err := store.List(ctx)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				if ids == nil {
					ids = []string{}
				}
				return printJSON(cmd.OutOrStdout(), ids)
			}
			tw := newTable(cmd.OutOrStdout(), "Form", "Step", "Answers", "Saved", "Expires")
			for _, id := range ids {
				p, ok := store.Load(ctx, id)
				if !ok {
					continue
				}
				saved := time.UnixMilli(p.Timestamp)
				tw.AppendRow([]any{id, p.StepIndex + 1, len(p.Answers), saved.Format(time.DateTime), saved.Add(store.Retention()).Format(time.DateTime)})
			}
			tw.Render()
			return nil
		})
	},
}

var progressShowCmd = &cobra.Command{
	Use:   "show <formId>",
	Short: "Show the saved progress of a form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProgress(cmd, func(ctx context.Context, store *progress.Store) error {
			p, ok := store.Load(ctx, args[0])
			if !ok {
				return fmt.Errorf("no saved progress for %q", args[0])
			}
			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return printJSON(out, p)
			}
			fmt.Fprintf(out, "Form %s at step %d, saved %s\n", p.FormID, p.StepIndex+1,
				time.UnixMilli(p.Timestamp).Format(time.DateTime))
			fmt.Fprintf(out, "Completed steps: %v\n", stepNumbers(p.CompletedSteps.Sorted()))

			ids := make([]string, 0, len(p.Answers))
			for id := range p.Answers {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			tw := newTable(out, "Field", "Answer")
			for _, id := range ids {
				tw.AppendRow([]any{id, fmt.Sprint(p.Answers[id])})
			}
			tw.Render()
			return nil
		})
	},
}

var progressClearCmd = &cobra.Command{
	Use:   "clear <formId>",
	Short: "Discard the saved progress of a form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProgress(cmd, func(ctx context.Context, store *progress.Store) error {
			if err := store.Clear(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Progress for %q cleared.\n", args[0])
			return nil
		})
	},
}

func stepNumbers(indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = idx + 1
	}
	return out
}

func init() {
	rootCmd.AddCommand(progressCmd)
	progressCmd.AddCommand(progressListCmd, progressShowCmd, progressClearCmd)
}
