package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/formflow"
	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/registry"
	"github.com/aretw0/formflow/pkg/validation"
)

// ContentRenderer turns markdown into terminal output.
type ContentRenderer func(string) (string, error)

// Heading decorates a step heading, e.g. with colour.
type Heading func(string) string

// Result is how a fill session ended.
type Result struct {
	Submitted bool
	Answers   domain.AnswerMap
}

// Runner drives an engine through its steps with a Prompter.
type Runner struct {
	prompter Prompter
	renderer ContentRenderer
	heading  Heading
	logger   *slog.Logger
	confirm  bool
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithPrompter sets how questions are asked.
func WithPrompter(p Prompter) Option {
	return func(r *Runner) {
		r.prompter = p
	}
}

// WithRenderer renders statement fields as markdown.
func WithRenderer(renderer ContentRenderer) Option {
	return func(r *Runner) {
		r.renderer = renderer
	}
}

// WithHeading styles step headings.
func WithHeading(h Heading) Option {
	return func(r *Runner) {
		r.heading = h
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithoutSubmitConfirmation submits as soon as the last step validates.
func WithoutSubmitConfirmation() Option {
	return func(r *Runner) {
		r.confirm = false
	}
}

func New(opts ...Option) *Runner {
	r := &Runner{
		heading: func(s string) string { return s },
		logger:  logging.NewNop(),
		confirm: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.prompter == nil {
		r.prompter = NewPlainPrompter(nil, nil)
	}
	return r
}

// Run fills the form until it is submitted or the respondent declines to
// submit. The engine must already be started. ErrAborted is returned when a
// prompt is interrupted; progress saved so far is kept by the engine.
func (r *Runner) Run(ctx context.Context, eng *formflow.Engine) (Result, error) {
	for {
		if err := r.fillStep(ctx, eng); err != nil {
			return Result{}, err
		}

		out := eng.Next(ctx)
		if out.Moved {
			continue
		}
		if !out.AtLastStep {
			r.showErrors(ctx, out.Errors)
			continue
		}

		done, err := r.submit(ctx, eng)
		if err != nil || done {
			return Result{Submitted: eng.SubmitStatus() == domain.SubmitSuccess, Answers: eng.Answers()}, err
		}
	}
}

func (r *Runner) fillStep(ctx context.Context, eng *formflow.Engine) error {
	step := eng.CurrentStep()
	title := step.Title
	if eng.IsMultiStep() {
		title = fmt.Sprintf("%s (%d/%d)", title, step.Index+1, eng.TotalSteps())
	}
	if err := r.prompter.Info(ctx, "\n"+r.heading(title)); err != nil {
		return err
	}

	for _, f := range step.Fields {
		entry, ok := registry.Lookup(f.Type)
		if !ok {
			continue
		}
		if entry.Structural {
			if err := r.show(ctx, f); err != nil {
				return err
			}
			continue
		}
		if err := r.answer(ctx, eng, f); err != nil {
			return err
		}
	}
	return nil
}

// answer asks until the sanitiser accepts the value.
func (r *Runner) answer(ctx context.Context, eng *formflow.Engine, f domain.FieldDefinition) error {
	for {
		value, ok, err := r.ask(ctx, f, eng.GetValue(f.ID), eng.FieldError(f.ID))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := eng.SetValue(f.ID, value); err != nil {
			r.logger.Debug("answer rejected", "field_id", f.ID, "err", err)
			if infoErr := r.prompter.Info(ctx, err.Error()); infoErr != nil {
				return infoErr
			}
			continue
		}
		return nil
	}
}

func (r *Runner) show(ctx context.Context, f domain.FieldDefinition) error {
	text := strings.TrimSpace(f.Label)
	if text == "" {
		return nil
	}
	if f.Type == domain.FieldStatement && r.renderer != nil {
		if rendered, err := r.renderer(text); err == nil {
			text = strings.TrimRight(rendered, "\n")
		}
	}
	return r.prompter.Info(ctx, text)
}

func (r *Runner) showErrors(ctx context.Context, errs []validation.FieldError) {
	for _, fe := range errs {
		_ = r.prompter.Info(ctx, "  ! "+fe.Message)
	}
}

// submit returns done=true when the session is over: submitted, or the
// respondent declined.
func (r *Runner) submit(ctx context.Context, eng *formflow.Engine) (bool, error) {
	if r.confirm {
		ok, err := r.prompter.Confirm(ctx, ConfirmConfig{Message: "Submit your answers?", Default: true})
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
	}

	for {
		out := eng.Submit(ctx)
		if out.Succeeded {
			r.logger.Info("form submitted", "form_id", eng.FormID())
			return true, r.prompter.Info(ctx, "Thanks, your answers were submitted.")
		}
		if len(out.FieldErrors) > 0 {
			_ = r.prompter.Info(ctx, out.Message)
			r.showErrors(ctx, out.FieldErrors)
			r.jumpToFirstError(ctx, eng, out.FieldErrors)
			return false, nil
		}

		if err := r.prompter.Info(ctx, out.Message); err != nil {
			return false, err
		}
		eng.ClearError()
		retry, err := r.prompter.Confirm(ctx, ConfirmConfig{Message: "Try again?", Default: true})
		if err != nil || !retry {
			return true, err
		}
	}
}

func (r *Runner) jumpToFirstError(ctx context.Context, eng *formflow.Engine, errs []validation.FieldError) {
	for _, step := range eng.Steps() {
		for _, f := range step.Fields {
			for _, fe := range errs {
				if fe.FieldID == f.ID && eng.GoToStep(ctx, step.Index) {
					return
				}
			}
		}
	}
}

// IsAborted reports whether err came from an interrupted prompt.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
