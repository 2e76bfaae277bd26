package validation

import (
	"fmt"
	"strings"
)

// FieldError is a single field validation failure. It is returned as data,
// never thrown.
type FieldError struct {
	FieldID string `json:"fieldId"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.FieldID, e.Message)
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []FieldError
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:\n", len(e.Errors))
	for i := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, e.Errors[i].Error())
	}
	return b.String()
}

// AsError wraps a non-empty error list in an AggregateError, or returns nil.
func AsError(errs []FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: errs}
}

// Messages returns the messages of errs, in order.
func Messages(errs []FieldError) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Message
	}
	return out
}

// ByField indexes errs by field id.
func ByField(errs []FieldError) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.FieldID] = e.Message
	}
	return out
}
