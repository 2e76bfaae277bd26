package domain

import "errors"

// ErrInvalidDefinition is returned when a form definition is structurally unsound.
var ErrInvalidDefinition = errors.New("invalid form definition")

// ErrKeyNotFound is returned by key-value stores when a key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// ErrUnknownField is returned when an answer targets a field the form does not define.
var ErrUnknownField = errors.New("unknown field")

// ErrNotAnswerable is returned when an answer targets a display-only field.
var ErrNotAnswerable = errors.New("field does not take an answer")

// ErrProgressNotFound is returned when no usable progress exists for a form.
var ErrProgressNotFound = errors.New("progress not found")

// ErrSessionNotFound is returned when a session id does not name a live session.
var ErrSessionNotFound = errors.New("session not found")

// ErrFormNotFound is returned when a form id is not registered.
var ErrFormNotFound = errors.New("form not found")

// SubmitErrorKind classifies why a submission failed.
type SubmitErrorKind string

const (
	SubmitErrValidation   SubmitErrorKind = "validation"
	SubmitErrNotFound     SubmitErrorKind = "not_found"
	SubmitErrDuplicate    SubmitErrorKind = "duplicate"
	SubmitErrConnectivity SubmitErrorKind = "connectivity"
	SubmitErrUnknown      SubmitErrorKind = "unknown"
)

// SubmitError is returned by submit collaborators that already know the
// category of a failure (for example from an HTTP status code).
type SubmitError struct {
	Kind    SubmitErrorKind
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}
