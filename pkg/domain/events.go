package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter      EventType = "step_enter"
	EventStepComplete   EventType = "step_complete"
	EventStepRejected   EventType = "step_rejected"
	EventSubmit         EventType = "submit"
	EventSubmitResult   EventType = "submit_result"
	EventProgressSaved  EventType = "progress_saved"
	EventProgressLoaded EventType = "progress_loaded"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	FormID    string    `json:"form_id"`
}

// StepEvent reports a navigation transition.
type StepEvent struct {
	EventBase
	StepIndex int      `json:"step_index"`
	Errors    []string `json:"errors,omitempty"`
}

// SubmitEvent reports the start or outcome of a submission.
type SubmitEvent struct {
	EventBase
	Status   SubmitStatus    `json:"status"`
	Kind     SubmitErrorKind `json:"kind,omitempty"`
	Message  string          `json:"message,omitempty"`
	Duration time.Duration   `json:"duration,omitempty"`
}

// ProgressEvent reports a progress snapshot being written or restored.
type ProgressEvent struct {
	EventBase
	Trigger   string `json:"trigger"`
	StepIndex int    `json:"step_index"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStepEnter      func(context.Context, *StepEvent)
	OnStepComplete   func(context.Context, *StepEvent)
	OnStepRejected   func(context.Context, *StepEvent)
	OnSubmit         func(context.Context, *SubmitEvent)
	OnSubmitResult   func(context.Context, *SubmitEvent)
	OnProgressSaved  func(context.Context, *ProgressEvent)
	OnProgressLoaded func(context.Context, *ProgressEvent)
}
