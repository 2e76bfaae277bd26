package runtime

import (
	"context"
	"errors"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/formflow/pkg/domain"
)

// User-facing submission messages.
const (
	MsgFixFields    = "Please fix the highlighted fields before submitting."
	MsgCheckAnswers = "Some of your responses could not be accepted. Please check your responses and try again."
	MsgUnavailable  = "This form is no longer available."
	MsgDuplicate    = "You have already submitted this form."
	MsgConnectivity = "We couldn't reach the server. Please check your connection and try again."
	MsgGeneric      = "Something went wrong while submitting the form. Please try again."
)

const maxEchoedMessageLen = 200

// ClassifySubmitError maps a collaborator failure to one of the known kinds
// and the message shown to the respondent.
func ClassifySubmitError(err error) (domain.SubmitErrorKind, string) {
	if err == nil {
		return "", ""
	}

	echo := err.Error()
	var se *domain.SubmitError
	if errors.As(err, &se) {
		if se.Kind != "" && se.Kind != domain.SubmitErrUnknown {
			return se.Kind, messageFor(se.Kind)
		}
		echo = se.Message
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return domain.SubmitErrConnectivity, MsgConnectivity
	}

	text := strings.ToLower(err.Error())
	switch {
	case containsAny(text, "validation", "invalid", "unprocessable"):
		return domain.SubmitErrValidation, MsgCheckAnswers
	case containsAny(text, "not found", "404", "expired", "closed", "no longer"):
		return domain.SubmitErrNotFound, MsgUnavailable
	case containsAny(text, "duplicate", "already submitted", "409"):
		return domain.SubmitErrDuplicate, MsgDuplicate
	case containsAny(text, "network", "connection", "timeout", "timed out", "offline", "dial"):
		return domain.SubmitErrConnectivity, MsgConnectivity
	}

	if humanReadable(echo) {
		return domain.SubmitErrUnknown, strings.TrimSpace(echo)
	}
	return domain.SubmitErrUnknown, MsgGeneric
}

func messageFor(kind domain.SubmitErrorKind) string {
	switch kind {
	case domain.SubmitErrValidation:
		return MsgCheckAnswers
	case domain.SubmitErrNotFound:
		return MsgUnavailable
	case domain.SubmitErrDuplicate:
		return MsgDuplicate
	case domain.SubmitErrConnectivity:
		return MsgConnectivity
	default:
		return MsgGeneric
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// humanReadable rejects empty, multi-line, overly long or code-looking text.
func humanReadable(msg string) bool {
	msg = strings.TrimSpace(msg)
	if msg == "" || utf8.RuneCountInString(msg) > maxEchoedMessageLen {
		return false
	}
	if strings.ContainsAny(msg, "\n{}<>") {
		return false
	}
	return !containsAny(strings.ToLower(msg), "panic", "goroutine", "exception", "nil pointer", "stack")
}
