package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/formflow"
	"github.com/aretw0/formflow/internal/presentation/tui"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/loader"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/runner"
)

var fillCmd = &cobra.Command{
	Use:   "fill <form.yaml>",
	Short: "Fill a form interactively in the terminal",
	Long: `Walks through the form step by step. Progress is saved as you go, so an
interrupted session resumes where it stopped. Without a submit URL the answers
are written to stdout (or --output) as JSON when you submit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := cfg.Logger()
		def, err := loader.LoadFile(args[0])
		if err != nil {
			return err
		}

		backend, err := cfg.OpenBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		opts := append(cfg.EngineOptions(cfg.ProgressStore(backend, logger)), formflow.WithLogger(logger))
		if cfg.Submitter() == nil {
			outPath, _ := cmd.Flags().GetString("output")
			opts = append(opts, formflow.WithSubmitter(writeAnswers(cmd.OutOrStdout(), outPath)))
		}
		eng, err := formflow.New(def, opts...)
		if err != nil {
			return err
		}
		eng.Start(ctx)
		defer eng.Stop(context.WithoutCancel(ctx))

		out := cmd.OutOrStdout()
		tui.PrintBanner(out, def.Title)
		if eng.Current() > 0 || len(eng.Answers()) > 0 {
			fmt.Fprintf(out, "Resuming at step %d of %d.\n\n", eng.Current()+1, eng.TotalSteps())
		}

		plain, _ := cmd.Flags().GetBool("plain")
		var prompter runner.Prompter
		if plain || !runner.IsInteractive(os.Stdin) {
			prompter = runner.NewPlainPrompter(cmd.InOrStdin(), out)
		} else {
			prompter = runner.NewSurveyPrompter(out)
		}
		runOpts := []runner.Option{
			runner.WithPrompter(prompter),
			runner.WithRenderer(tui.NewRenderer()),
			runner.WithHeading(tui.Heading(out)),
			runner.WithLogger(logger),
		}
		if yes, _ := cmd.Flags().GetBool("yes"); yes {
			runOpts = append(runOpts, runner.WithoutSubmitConfirmation())
		}

		res, err := runner.New(runOpts...).Run(ctx, eng)
		if runner.IsAborted(err) {
			fmt.Fprintln(out, "\nStopped. Your progress was saved; run the same command to resume.")
			return nil
		}
		if err != nil {
			return err
		}
		if !res.Submitted {
			fmt.Fprintln(out, "Not submitted. Your progress was saved.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fillCmd)
	fillCmd.Flags().Bool("plain", false, "Use line based prompts even on a terminal")
	fillCmd.Flags().BoolP("yes", "y", false, "Submit without asking for confirmation")
	fillCmd.Flags().StringP("output", "o", "", "Write submitted answers to this file instead of stdout")
	fillCmd.Flags().String("submit-url", "", "POST completed answers to this URL")
}

// writeAnswers is the submitter used when no endpoint is configured.
func writeAnswers(stdout io.Writer, path string) ports.Submitter {
	return ports.SubmitFunc(func(ctx context.Context, formID string, answers domain.AnswerMap) error {
		payload := map[string]any{"formId": formID, "answers": answers}
		if path == "" {
			return printJSON(stdout, payload)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to write answers: %w", err)
		}
		if err := printJSON(f, payload); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
}
