package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/progress"
	"github.com/aretw0/formflow/pkg/registry"
	"github.com/aretw0/formflow/pkg/sanitize"
	"github.com/aretw0/formflow/pkg/validation"
)

const (
	// DefaultAutosaveInterval is the period of the recurring progress save.
	DefaultAutosaveInterval = 30 * time.Second
	// DefaultSaveDebounce delays the save that follows a navigation operation.
	DefaultSaveDebounce = time.Second
)

// Save triggers reported in progress events.
const (
	TriggerAutosave   = "autosave"
	TriggerNavigation = "navigation"
	TriggerStop       = "stop"
)

// NextOutcome reports what Next did.
type NextOutcome struct {
	// Moved is true when the current step changed.
	Moved bool
	// AtLastStep is true when the last step validated, which is the caller's
	// cue to submit.
	AtLastStep bool
	Errors     []validation.FieldError
}

// Engine is one form-filling session: answers, navigation, persistence
// triggers and the submission pipeline of a single form.
//
// All methods are safe for concurrent use. Persistence triggers (autosave
// ticker, debounced navigation save, final flush) run between Start and Stop.
type Engine struct {
	def        domain.FormDefinition
	steps      []domain.Step
	multiStep  bool
	validator  *validation.Composite
	submission *Submission

	store          *progress.Store
	sanitizer      *sanitize.Sanitizer
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
	autosave       time.Duration
	debounce       time.Duration
	keepOnSuccess  bool
	submitter      ports.Submitter
	submissionOpts []SubmissionOption

	mu          sync.Mutex
	nav         *Navigator
	answers     domain.AnswerMap
	fieldErrors map[string]string
	submitted   bool

	// lifecycle serialises Start and Stop; a Stop never lands mid-restore.
	lifecycle     sync.Mutex
	running       bool
	baseCtx       context.Context
	stopTick      chan struct{}
	debounceTimer *time.Timer
	wg            sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgressStore enables persistence and recovery.
func WithProgressStore(store *progress.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithSanitizer cleans string answers on SetValue.
func WithSanitizer(s *sanitize.Sanitizer) Option {
	return func(e *Engine) {
		e.sanitizer = s
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAutosaveInterval sets the recurring save period. Zero disables it.
func WithAutosaveInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.autosave = d
	}
}

// WithSaveDebounce sets the delay of the post-navigation save. Zero saves
// right after each navigation operation, without coalescing.
func WithSaveDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// WithKeepProgressOnSuccess keeps the stored snapshot after a successful
// submission.
func WithKeepProgressOnSuccess() Option {
	return func(e *Engine) {
		e.keepOnSuccess = true
	}
}

// WithSubmissionOptions passes options through to the submission pipeline.
func WithSubmissionOptions(opts ...SubmissionOption) Option {
	return func(e *Engine) {
		e.submissionOpts = append(e.submissionOpts, opts...)
	}
}

// NewEngine builds an engine for def. The definition is copied; later
// changes by the caller are not observed.
func NewEngine(def domain.FormDefinition, submitter ports.Submitter, opts ...Option) (*Engine, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		def:         def.Clone(),
		submitter:   submitter,
		logger:      logging.NewNop(),
		autosave:    DefaultAutosaveInterval,
		debounce:    DefaultSaveDebounce,
		fieldErrors: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}

	seg := Segment(e.def.Fields)
	e.steps = seg.Steps
	e.multiStep = seg.IsMultiStep
	e.validator = validation.Derive(e.def, validation.WithLogger(e.logger))
	e.nav = NewNavigator(len(e.steps))
	e.answers = registry.DefaultAnswers(e.def)

	subOpts := []SubmissionOption{
		WithSubmissionHooks(e.hooks),
		WithSubmissionLogger(e.logger),
		WithSuccessHook(e.onSubmitted),
	}
	e.submission = NewSubmission(e.def.ID, e.validator, submitter, append(subOpts, e.submissionOpts...)...)
	return e, nil
}

// Start recovers persisted progress and arms the autosave ticker. Calling
// Start on a running engine does nothing.
//
// Recovery is a full overwrite: answers and navigation flags are replaced by
// the snapshot, never merged with the current values. Answers start from the
// type defaults, so fields missing from the snapshot (redacted, or added to
// the form since) are still keyed, and ids the form no longer has are dropped.
//
// Start and Stop are serialised, so lifecycle hooks must not call either.
func (e *Engine) Start(ctx context.Context) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.baseCtx = context.WithoutCancel(ctx)
	e.mu.Unlock()

	if e.store != nil {
		if p, ok := e.store.Load(ctx, e.def.ID); ok {
			e.mu.Lock()
			e.answers = e.restoredAnswers(p.Answers)
			e.nav.Restore(p.Navigation())
			e.fieldErrors = make(map[string]string)
			step := e.nav.Current()
			e.mu.Unlock()

			e.logger.Info("progress restored", "form_id", e.def.ID, "step", step)
			if e.hooks.OnProgressLoaded != nil {
				e.hooks.OnProgressLoaded(ctx, &domain.ProgressEvent{
					EventBase: e.event(domain.EventProgressLoaded),
					Trigger:   "start",
					StepIndex: step,
				})
			}
		}
	}

	e.emitStep(ctx, e.hooks.OnStepEnter, domain.EventStepEnter, e.Current(), nil)

	if e.store != nil && e.autosave > 0 {
		stop := make(chan struct{})
		e.mu.Lock()
		e.stopTick = stop
		e.mu.Unlock()

		e.wg.Add(1)
		go e.autosaveLoop(e.baseCtx, e.autosave, stop)
	}
}

func (e *Engine) restoredAnswers(saved domain.AnswerMap) domain.AnswerMap {
	answers := registry.DefaultAnswers(e.def)
	for id, v := range saved.Clone() {
		if _, known := answers[id]; known {
			answers[id] = v
		}
	}
	return answers
}

// Stop disarms the timers and flushes a final save. The engine may be
// started again afterwards.
func (e *Engine) Stop(ctx context.Context) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
	e.cancelDebounceLocked()
	e.mu.Unlock()

	e.wg.Wait()
	e.save(ctx, TriggerStop)
}

func (e *Engine) autosaveLoop(ctx context.Context, every time.Duration, stop <-chan struct{}) {
	defer e.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.save(ctx, TriggerAutosave)
		}
	}
}

// scheduleSave re-arms the post-navigation save. Callers hold e.mu.
func (e *Engine) scheduleSave() {
	if !e.running || e.store == nil {
		return
	}
	e.cancelDebounceLocked()
	ctx := e.baseCtx
	if e.debounce <= 0 {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.save(ctx, TriggerNavigation)
		}()
		return
	}
	e.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(e.debounce, func() {
		defer e.wg.Done()
		e.mu.Lock()
		current := e.debounceTimer == timer
		if current {
			e.debounceTimer = nil
		}
		e.mu.Unlock()
		if current {
			e.save(ctx, TriggerNavigation)
		}
	})
	e.debounceTimer = timer
}

// cancelDebounceLocked stops a pending post-navigation save. A timer stopped
// before firing never runs its func, so its WaitGroup slot is released here.
func (e *Engine) cancelDebounceLocked() {
	if e.debounceTimer == nil {
		return
	}
	if e.debounceTimer.Stop() {
		e.wg.Done()
	}
	e.debounceTimer = nil
}

// save writes the current snapshot. Nothing is written once the form has
// been submitted successfully.
func (e *Engine) save(ctx context.Context, trigger string) {
	if e.store == nil {
		return
	}
	e.mu.Lock()
	if e.submitted {
		e.mu.Unlock()
		return
	}
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.store.Save(ctx, snapshot)
	if e.hooks.OnProgressSaved != nil {
		e.hooks.OnProgressSaved(ctx, &domain.ProgressEvent{
			EventBase: e.event(domain.EventProgressSaved),
			Trigger:   trigger,
			StepIndex: snapshot.StepIndex,
		})
	}
}

func (e *Engine) snapshotLocked() domain.Progress {
	state := e.nav.State()
	return domain.Progress{
		FormID:         e.def.ID,
		StepIndex:      state.CurrentStepIndex,
		Answers:        e.answers.Clone(),
		CompletedSteps: state.CompletedSteps,
		VisitedSteps:   state.VisitedSteps,
		StepErrors:     state.StepErrors,
	}
}

// Snapshot returns the progress record that a save would write now.
func (e *Engine) Snapshot() domain.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// ClearProgress deletes the stored snapshot of this form.
func (e *Engine) ClearProgress(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	e.mu.Lock()
	e.cancelDebounceLocked()
	e.mu.Unlock()
	return e.store.Clear(ctx, e.def.ID)
}

// Definition returns a copy of the form definition.
func (e *Engine) Definition() domain.FormDefinition {
	return e.def.Clone()
}

// FormID returns the id of the form.
func (e *Engine) FormID() string {
	return e.def.ID
}

// Steps returns the segmented steps.
func (e *Engine) Steps() []domain.Step {
	out := make([]domain.Step, len(e.steps))
	copy(out, e.steps)
	return out
}

// IsMultiStep reports whether the form had at least one delimiter.
func (e *Engine) IsMultiStep() bool {
	return e.multiStep
}

// Validator returns the composite validator derived from the form.
func (e *Engine) Validator() *validation.Composite {
	return e.validator
}

// GetValue returns the answer for fieldID, or the type default when none
// has been recorded.
func (e *Engine) GetValue(fieldID string) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.answers[fieldID]; ok {
		return v
	}
	if f, ok := e.def.Field(fieldID); ok {
		return registry.DefaultAnswer(f.Type)
	}
	return nil
}

// SetValue records an answer. String answers of text-like fields pass
// through the sanitizer. Recording an answer clears that field's error.
func (e *Engine) SetValue(fieldID string, value any) error {
	field, ok := e.def.Field(fieldID)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownField, fieldID)
	}
	entry, ok := registry.Lookup(field.Type)
	if !ok || entry.Structural {
		return fmt.Errorf("%w: %q is a %s field", domain.ErrNotAnswerable, fieldID, field.Type)
	}

	if e.sanitizer != nil && entry.Shape == registry.ShapeString {
		clean, err := e.sanitizer.Value(value)
		if err != nil {
			return fmt.Errorf("answer for %q rejected: %w", fieldID, err)
		}
		value = clean
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.answers[fieldID] = value
	delete(e.fieldErrors, fieldID)
	return nil
}

// Answers returns a copy of the answer map.
func (e *Engine) Answers() domain.AnswerMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.answers.Clone()
}

// FieldError returns the last recorded error message for fieldID, or "".
func (e *Engine) FieldError(fieldID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fieldErrors[fieldID]
}

// FieldErrors returns a copy of all recorded field errors.
func (e *Engine) FieldErrors() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.fieldErrors))
	for k, v := range e.fieldErrors {
		out[k] = v
	}
	return out
}

// State returns a copy of the navigation state.
func (e *Engine) State() domain.NavigationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.State()
}

// Current returns the current step index.
func (e *Engine) Current() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.Current()
}

// CurrentStep returns the step being shown.
func (e *Engine) CurrentStep() domain.Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps[e.nav.Current()]
}

// TotalSteps returns the number of steps.
func (e *Engine) TotalSteps() int {
	return len(e.steps)
}

// IsLastStep reports whether the current step is the final one.
func (e *Engine) IsLastStep() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.IsLastStep()
}

// CanAccess reports whether step i may be jumped to.
func (e *Engine) CanAccess(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.CanAccess(i)
}

// Completion is the fraction of completed steps.
func (e *Engine) Completion() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.Completion()
}

// StepErrors returns the errors recorded for step i.
func (e *Engine) StepErrors(i int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.StepErrors(i)
}

// ValidateCurrentStep validates the fields of the current step against the
// current answers and records the per-field errors.
func (e *Engine) ValidateCurrentStep() (StepResult, []validation.FieldError) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validateCurrentLocked()
}

func (e *Engine) validateCurrentLocked() (StepResult, []validation.FieldError) {
	step := e.steps[e.nav.Current()]
	errs := e.validator.ValidateStep(step, e.answers)
	for _, id := range step.FieldIDs() {
		delete(e.fieldErrors, id)
	}
	for _, fe := range errs {
		e.fieldErrors[fe.FieldID] = fe.Message
	}
	return StepResult{Valid: len(errs) == 0, Errors: validation.Messages(errs)}, errs
}

// GoToStep jumps to step i when it is accessible.
func (e *Engine) GoToStep(ctx context.Context, i int) bool {
	e.mu.Lock()
	moved := e.nav.GoToStep(i)
	e.scheduleSave()
	e.mu.Unlock()

	if moved {
		e.emitStep(ctx, e.hooks.OnStepEnter, domain.EventStepEnter, i, nil)
	}
	return moved
}

// NextStep applies a validation outcome computed by the caller.
func (e *Engine) NextStep(ctx context.Context, result StepResult) bool {
	e.mu.Lock()
	from := e.nav.Current()
	moved := e.nav.NextStep(result)
	to := e.nav.Current()
	e.scheduleSave()
	e.mu.Unlock()

	e.afterNext(ctx, from, to, moved, result)
	return moved
}

// Next validates the current step and applies the outcome.
func (e *Engine) Next(ctx context.Context) NextOutcome {
	e.mu.Lock()
	from := e.nav.Current()
	wasLast := e.nav.IsLastStep()
	result, errs := e.validateCurrentLocked()
	moved := e.nav.NextStep(result)
	to := e.nav.Current()
	e.scheduleSave()
	e.mu.Unlock()

	e.afterNext(ctx, from, to, moved, result)
	return NextOutcome{
		Moved:      moved,
		AtLastStep: result.Valid && wasLast,
		Errors:     errs,
	}
}

func (e *Engine) afterNext(ctx context.Context, from, to int, moved bool, result StepResult) {
	if !result.Valid {
		e.emitStep(ctx, e.hooks.OnStepRejected, domain.EventStepRejected, from, result.Errors)
		return
	}
	e.emitStep(ctx, e.hooks.OnStepComplete, domain.EventStepComplete, from, nil)
	if moved {
		e.emitStep(ctx, e.hooks.OnStepEnter, domain.EventStepEnter, to, nil)
	}
}

// PreviousStep moves back one step.
func (e *Engine) PreviousStep(ctx context.Context) bool {
	e.mu.Lock()
	moved := e.nav.PreviousStep()
	to := e.nav.Current()
	e.scheduleSave()
	e.mu.Unlock()

	if moved {
		e.emitStep(ctx, e.hooks.OnStepEnter, domain.EventStepEnter, to, nil)
	}
	return moved
}

// Submit runs the submission pipeline over a snapshot of the answers. A call
// made while another submission is in flight returns with Started=false.
func (e *Engine) Submit(ctx context.Context) SubmitOutcome {
	answers := e.Answers()
	out := e.submission.Submit(ctx, answers)
	if !out.Started || len(out.FieldErrors) == 0 {
		return out
	}

	e.mu.Lock()
	for _, fe := range out.FieldErrors {
		e.fieldErrors[fe.FieldID] = fe.Message
	}
	e.mu.Unlock()
	return out
}

func (e *Engine) onSubmitted(ctx context.Context) {
	if e.keepOnSuccess {
		return
	}
	e.mu.Lock()
	e.submitted = true
	e.cancelDebounceLocked()
	e.mu.Unlock()

	if e.store == nil {
		return
	}
	if err := e.store.Clear(ctx, e.def.ID); err != nil {
		e.logger.Warn("failed to clear progress after submission", "form_id", e.def.ID, "err", err)
	}
}

// SubmitStatus returns the pipeline phase.
func (e *Engine) SubmitStatus() domain.SubmitStatus {
	return e.submission.Status()
}

// IsSubmitting reports whether a submission is in flight.
func (e *Engine) IsSubmitting() bool {
	return e.submission.InFlight()
}

// SubmitError returns the retained submission failure message, or "".
func (e *Engine) SubmitError() string {
	return e.submission.Error()
}

// SubmitErrorKind returns the category of the retained failure.
func (e *Engine) SubmitErrorKind() domain.SubmitErrorKind {
	return e.submission.ErrorKind()
}

// ClearError drops the retained submission failure.
func (e *Engine) ClearError() {
	e.submission.ClearError()
}

func (e *Engine) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, FormID: e.def.ID}
}

func (e *Engine) emitStep(ctx context.Context, hook func(context.Context, *domain.StepEvent), t domain.EventType, step int, errs []string) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.StepEvent{EventBase: e.event(t), StepIndex: step, Errors: errs})
}
