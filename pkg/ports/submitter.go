package ports

import (
	"context"

	"github.com/aretw0/formflow/pkg/domain"
)

// Submitter receives the final answers of a form. This is where transport
// and storage of a submission happen.
//
// Implementations may return *domain.SubmitError to classify a failure.
type Submitter interface {
	Submit(ctx context.Context, formID string, answers domain.AnswerMap) error
}

// SubmitFunc adapts a function to the Submitter interface.
type SubmitFunc func(ctx context.Context, formID string, answers domain.AnswerMap) error

func (f SubmitFunc) Submit(ctx context.Context, formID string, answers domain.AnswerMap) error {
	return f(ctx, formID, answers)
}
