package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/formflow/internal/runtime"
	"github.com/aretw0/formflow/pkg/loader"
	"github.com/aretw0/formflow/pkg/validation"
)

var errAnswersRejected = errors.New("answers rejected")

var validateCmd = &cobra.Command{
	Use:   "validate <form.yaml> [answers.yaml]",
	Short: "Check a form definition and optionally a set of answers",
	Long: `Loads the form definition and reports structural problems. With an answers
file (second argument or --answers) the answers is validated against every field, step by step, exactly as a
submission would be.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := loader.LoadFile(args[0])
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		answersPath, _ := cmd.Flags().GetString("answers")
		if len(args) == 2 {
			answersPath = args[1]
		}
		out := cmd.OutOrStdout()
		if answersPath == "" {
			fmt.Fprintf(out, "Form %q is valid! ✅\n", def.ID)
			return nil
		}

		answers, err := loader.LoadAnswers(answersPath)
		if err != nil {
			return err
		}
		validator := validation.Derive(def)
		type stepError struct {
			Step    int    `json:"step"`
			FieldID string `json:"fieldId"`
			Message string `json:"message"`
		}
		var found []stepError
		for _, step := range runtime.Segment(def.Fields).Steps {
			for _, fe := range validator.ValidateStep(step, answers) {
				found = append(found, stepError{Step: step.Index + 1, FieldID: fe.FieldID, Message: fe.Message})
			}
		}

		if jsonOutput(cmd) {
			if found == nil {
				found = []stepError{}
			}
			if err := printJSON(out, found); err != nil {
				return err
			}
		} else if len(found) > 0 {
			tw := newTable(out, "Step", "Field", "Error")
			for _, e := range found {
				tw.AppendRow([]any{e.Step, e.FieldID, e.Message})
			}
			tw.Render()
		}
		if len(found) > 0 {
			return fmt.Errorf("%w: %d error(s)", errAnswersRejected, len(found))
		}
		if !jsonOutput(cmd) {
			fmt.Fprintf(out, "Answers are valid for %q! ✅\n", def.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("answers", "", "YAML or JSON file of answers to check")
}
