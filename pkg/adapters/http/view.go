package http

import (
	"strconv"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/session"
	"github.com/aretw0/formflow/pkg/validation"
)

// FieldView is a field of the current step as a client renders it.
type FieldView struct {
	ID       string           `json:"id"`
	Type     domain.FieldType `json:"type"`
	Label    string           `json:"label,omitempty"`
	Required bool             `json:"required,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type StepView struct {
	Index  int         `json:"index"`
	Title  string      `json:"title"`
	Fields []FieldView `json:"fields"`
}

// SessionView is the wire representation of a session.
type SessionView struct {
	ID              string                 `json:"id"`
	FormID          string                 `json:"formId"`
	CurrentStep     int                    `json:"currentStep"`
	TotalSteps      int                    `json:"totalSteps"`
	IsLastStep      bool                   `json:"isLastStep"`
	Completion      float64                `json:"completion"`
	VisitedSteps    []int                  `json:"visitedSteps"`
	CompletedSteps  []int                  `json:"completedSteps"`
	StepErrors      map[string][]string    `json:"stepErrors"`
	Answers         domain.AnswerMap       `json:"answers"`
	Step            StepView               `json:"step"`
	SubmitStatus    domain.SubmitStatus    `json:"submitStatus"`
	SubmitError     string                 `json:"submitError,omitempty"`
	SubmitErrorKind domain.SubmitErrorKind `json:"submitErrorKind,omitempty"`
}

type NavigationResult struct {
	Moved      bool                    `json:"moved"`
	AtLastStep bool                    `json:"atLastStep,omitempty"`
	Errors     []validation.FieldError `json:"errors,omitempty"`
	Session    SessionView             `json:"session"`
}

type SubmitResult struct {
	Started     bool                    `json:"started"`
	Succeeded   bool                    `json:"succeeded"`
	Kind        domain.SubmitErrorKind  `json:"kind,omitempty"`
	Message     string                  `json:"message,omitempty"`
	FieldErrors []validation.FieldError `json:"fieldErrors,omitempty"`
	Session     SessionView             `json:"session"`
}

func viewOf(s *session.Session) SessionView {
	eng := s.Engine
	state := eng.State()
	step := eng.CurrentStep()
	fieldErrors := eng.FieldErrors()

	stepErrors := make(map[string][]string, len(state.StepErrors))
	for i, msgs := range state.StepErrors {
		stepErrors[strconv.Itoa(i)] = msgs
	}

	fields := make([]FieldView, len(step.Fields))
	for i, f := range step.Fields {
		fields[i] = FieldView{ID: f.ID, Type: f.Type, Label: f.Label, Required: f.Required, Error: fieldErrors[f.ID]}
	}

	return SessionView{
		ID:              s.ID,
		FormID:          s.FormID,
		CurrentStep:     state.CurrentStepIndex,
		TotalSteps:      eng.TotalSteps(),
		IsLastStep:      eng.IsLastStep(),
		Completion:      eng.Completion(),
		VisitedSteps:    state.VisitedSteps.Sorted(),
		CompletedSteps:  state.CompletedSteps.Sorted(),
		StepErrors:      stepErrors,
		Answers:         eng.Answers(),
		Step:            StepView{Index: step.Index, Title: step.Title, Fields: fields},
		SubmitStatus:    eng.SubmitStatus(),
		SubmitError:     eng.SubmitError(),
		SubmitErrorKind: eng.SubmitErrorKind(),
	}
}
