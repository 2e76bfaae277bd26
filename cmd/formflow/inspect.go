package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/formflow/internal/runtime"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/loader"
	"github.com/aretw0/formflow/pkg/registry"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <form.yaml>",
	Short: "Show how a form is split into steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := loader.LoadFile(args[0])
		if err != nil {
			return err
		}
		seg := runtime.Segment(def.Fields)
		if jsonOutput(cmd) {
			return printJSON(cmd.OutOrStdout(), seg.Steps)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s): %d step(s)\n", def.Title, def.ID, len(seg.Steps))
		tw := newTable(out, "Step", "Title", "Field", "Type", "Required", "Constraints")
		for _, step := range seg.Steps {
			if len(step.Fields) == 0 {
				tw.AppendRow([]any{step.Index + 1, step.Title, "", "", "", ""})
				continue
			}
			for _, f := range step.Fields {
				tw.AppendRow([]any{step.Index + 1, step.Title, f.ID, f.Type, f.Required, describeConstraints(f)})
			}
			tw.AppendSeparator()
		}
		tw.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func describeConstraints(f domain.FieldDefinition) string {
	c := f.Constraints
	var parts []string
	if len(c.Options) > 0 {
		parts = append(parts, "options: "+strings.Join(c.Options, ", "))
	}
	if c.MinLength != nil {
		parts = append(parts, fmt.Sprintf("min length %d", *c.MinLength))
	}
	if c.MaxLength != nil {
		parts = append(parts, fmt.Sprintf("max length %d", *c.MaxLength))
	}
	if c.Pattern != "" {
		parts = append(parts, "pattern "+c.Pattern)
	}
	if f.Type == domain.FieldNumberRating || f.Type == domain.FieldOpinionScale {
		lo, hi := registry.RatingBounds(f)
		parts = append(parts, fmt.Sprintf("range %d-%d", lo, hi))
	}
	if len(c.AcceptedFileTypes) > 0 {
		parts = append(parts, "accepts "+strings.Join(c.AcceptedFileTypes, ", "))
	}
	if c.MaxFileSizeMB != nil {
		parts = append(parts, fmt.Sprintf("max %gMB", *c.MaxFileSizeMB))
	}
	return strings.Join(parts, "; ")
}
