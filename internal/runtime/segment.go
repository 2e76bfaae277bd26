package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/formflow/pkg/domain"
)

// Segmentation is the step partition of a form.
type Segmentation struct {
	Steps       []domain.Step
	IsMultiStep bool
}

// Segment splits fields into steps at every delimiter field.
//
// A delimiter always closes the current step, even an empty one, so a leading
// delimiter yields an empty first step. The fields after the last delimiter
// form the final step only when there are any. A delimiter's label becomes the
// title of the step that follows it; otherwise titles are "Step n".
func Segment(fields []domain.FieldDefinition) Segmentation {
	var (
		steps       []domain.Step
		buffer      []domain.FieldDefinition
		pending     string
		delimiters  int
		closeBuffer = func() {
			steps = append(steps, newStep(len(steps), pending, buffer))
			buffer = nil
		}
	)

	for _, f := range fields {
		if !f.Type.IsDelimiter() {
			buffer = append(buffer, f)
			continue
		}
		delimiters++
		closeBuffer()
		pending = strings.TrimSpace(f.Label)
	}

	if len(buffer) > 0 || delimiters == 0 {
		closeBuffer()
	}

	return Segmentation{
		Steps:       steps,
		IsMultiStep: len(steps) > 1,
	}
}

func newStep(index int, title string, fields []domain.FieldDefinition) domain.Step {
	if title == "" {
		title = fmt.Sprintf("Step %d", index+1)
	}
	return domain.Step{
		Index:  index,
		Title:  title,
		Fields: append([]domain.FieldDefinition(nil), fields...),
	}
}
