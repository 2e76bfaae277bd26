package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/validation"
)

// SubmitOutcome reports what a Submit call did.
type SubmitOutcome struct {
	// Started is false when another submission was already in flight.
	Started     bool
	Succeeded   bool
	FieldErrors []validation.FieldError
	Kind        domain.SubmitErrorKind
	Message     string
}

// Submission is the guarded submission pipeline of one engine.
//
// idle -> validating -> submitting -> success | idle (with error).
// At most one submission is in flight at a time.
type Submission struct {
	formID    string
	validator *validation.Composite
	submitter ports.Submitter
	onSuccess func(context.Context)
	hooks     domain.LifecycleHooks
	logger    *slog.Logger

	mu       sync.Mutex
	status   domain.SubmitStatus
	inFlight bool
	errMsg   string
	errKind  domain.SubmitErrorKind
}

// SubmissionOption configures a Submission.
type SubmissionOption func(*Submission)

// WithSuccessHook runs fn after the collaborator accepted the answers.
func WithSuccessHook(fn func(context.Context)) SubmissionOption {
	return func(s *Submission) {
		s.onSuccess = fn
	}
}

// WithSubmissionHooks registers observability hooks.
func WithSubmissionHooks(hooks domain.LifecycleHooks) SubmissionOption {
	return func(s *Submission) {
		s.hooks = hooks
	}
}

// WithSubmissionLogger sets the logger.
func WithSubmissionLogger(logger *slog.Logger) SubmissionOption {
	return func(s *Submission) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSubmission creates an idle pipeline.
func NewSubmission(formID string, validator *validation.Composite, submitter ports.Submitter, opts ...SubmissionOption) *Submission {
	s := &Submission{
		formID:    formID,
		validator: validator,
		submitter: submitter,
		status:    domain.SubmitIdle,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current pipeline phase.
func (s *Submission) Status() domain.SubmitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// InFlight reports whether a submission is running.
func (s *Submission) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// HasError reports whether a failure message is retained.
func (s *Submission) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg != ""
}

// Error returns the retained failure message, or "".
func (s *Submission) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// ErrorKind returns the category of the retained failure.
func (s *Submission) ErrorKind() domain.SubmitErrorKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errKind
}

// ClearError drops the retained failure message.
func (s *Submission) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
	s.errKind = ""
}

// Submit validates answers and hands them to the collaborator.
//
// The in-flight flag is checked and set before anything blocks, so a second
// call made while the first is running returns immediately with Started=false.
// A successful submission is terminal: later calls also return Started=false
// and never reach the collaborator. Once the collaborator is called the
// attempt runs to completion: it is detached from ctx cancellation. Failures
// never escape as errors; they are classified into the retained message.
func (s *Submission) Submit(ctx context.Context, answers domain.AnswerMap) SubmitOutcome {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Debug("submission already in flight", "form_id", s.formID)
		return SubmitOutcome{}
	}
	if s.status == domain.SubmitSuccess {
		s.mu.Unlock()
		s.logger.Debug("form already submitted", "form_id", s.formID)
		return SubmitOutcome{}
	}
	s.inFlight = true
	s.status = domain.SubmitValidating
	s.errMsg = ""
	s.errKind = ""
	s.mu.Unlock()

	s.emit(ctx, s.hooks.OnSubmit, &domain.SubmitEvent{Status: domain.SubmitValidating})

	if errs := s.validator.ValidateAll(answers); len(errs) > 0 {
		s.finish(domain.SubmitIdle, domain.SubmitErrValidation, MsgFixFields)
		s.logger.Info("submission blocked by validation", "form_id", s.formID, "errors", len(errs))
		s.emit(ctx, s.hooks.OnSubmitResult, &domain.SubmitEvent{Status: domain.SubmitIdle, Kind: domain.SubmitErrValidation, Message: MsgFixFields})
		return SubmitOutcome{Started: true, FieldErrors: errs, Kind: domain.SubmitErrValidation, Message: MsgFixFields}
	}

	s.mu.Lock()
	s.status = domain.SubmitSubmitting
	s.mu.Unlock()

	callCtx := context.WithoutCancel(ctx)
	started := time.Now()
	err := s.call(callCtx, answers)
	elapsed := time.Since(started)

	if err != nil {
		kind, msg := ClassifySubmitError(err)
		s.finish(domain.SubmitIdle, kind, msg)
		s.logger.Warn("submission failed", "form_id", s.formID, "kind", kind, "err", err)
		s.emit(ctx, s.hooks.OnSubmitResult, &domain.SubmitEvent{Status: domain.SubmitIdle, Kind: kind, Message: msg, Duration: elapsed})
		return SubmitOutcome{Started: true, Kind: kind, Message: msg}
	}

	s.finish(domain.SubmitSuccess, "", "")
	s.logger.Info("submission accepted", "form_id", s.formID, "duration", elapsed)
	if s.onSuccess != nil {
		s.onSuccess(callCtx)
	}
	s.emit(ctx, s.hooks.OnSubmitResult, &domain.SubmitEvent{Status: domain.SubmitSuccess, Duration: elapsed})
	return SubmitOutcome{Started: true, Succeeded: true}
}

// call invokes the collaborator, converting a panic into an error so the
// in-flight flag is always released.
func (s *Submission) call(ctx context.Context, answers domain.AnswerMap) (err error) {
	if s.submitter == nil {
		return &domain.SubmitError{Kind: domain.SubmitErrUnknown, Message: MsgGeneric}
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("submitter panicked", "form_id", s.formID, "panic", r)
			err = &domain.SubmitError{Kind: domain.SubmitErrUnknown, Message: MsgGeneric}
		}
	}()
	return s.submitter.Submit(ctx, s.formID, answers)
}

func (s *Submission) finish(status domain.SubmitStatus, kind domain.SubmitErrorKind, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.errKind = kind
	s.errMsg = msg
	s.inFlight = false
}

func (s *Submission) emit(ctx context.Context, hook func(context.Context, *domain.SubmitEvent), ev *domain.SubmitEvent) {
	if hook == nil {
		return
	}
	ev.EventBase = domain.EventBase{Timestamp: time.Now(), Type: domain.EventSubmit, FormID: s.formID}
	if ev.Status != domain.SubmitValidating {
		ev.Type = domain.EventSubmitResult
	}
	hook(ctx, ev)
}
