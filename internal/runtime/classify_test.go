package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/formflow/internal/runtime"
	"github.com/aretw0/formflow/pkg/domain"
)

func TestClassifySubmitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind domain.SubmitErrorKind
		wantMsg  string
	}{
		{
			name:     "typed duplicate",
			err:      &domain.SubmitError{Kind: domain.SubmitErrDuplicate},
			wantKind: domain.SubmitErrDuplicate,
			wantMsg:  runtime.MsgDuplicate,
		},
		{
			name:     "wrapped typed not found",
			err:      fmt.Errorf("post: %w", &domain.SubmitError{Kind: domain.SubmitErrNotFound}),
			wantKind: domain.SubmitErrNotFound,
			wantMsg:  runtime.MsgUnavailable,
		},
		{
			name:     "net error",
			err:      &net.OpError{Op: "dial", Err: errors.New("refused")},
			wantKind: domain.SubmitErrConnectivity,
			wantMsg:  runtime.MsgConnectivity,
		},
		{
			name:     "deadline",
			err:      fmt.Errorf("call: %w", context.DeadlineExceeded),
			wantKind: domain.SubmitErrConnectivity,
			wantMsg:  runtime.MsgConnectivity,
		},
		{
			name:     "validation text",
			err:      errors.New("Validation failed for field email"),
			wantKind: domain.SubmitErrValidation,
			wantMsg:  runtime.MsgCheckAnswers,
		},
		{
			name:     "expired text",
			err:      errors.New("form has expired"),
			wantKind: domain.SubmitErrNotFound,
			wantMsg:  runtime.MsgUnavailable,
		},
		{
			name:     "404 text",
			err:      errors.New("status 404"),
			wantKind: domain.SubmitErrNotFound,
			wantMsg:  runtime.MsgUnavailable,
		},
		{
			name:     "already submitted text",
			err:      errors.New("response already submitted"),
			wantKind: domain.SubmitErrDuplicate,
			wantMsg:  runtime.MsgDuplicate,
		},
		{
			name:     "connection text",
			err:      errors.New("connection reset by peer"),
			wantKind: domain.SubmitErrConnectivity,
			wantMsg:  runtime.MsgConnectivity,
		},
		{
			name:     "human readable is echoed",
			err:      errors.New("Submissions are paused until Monday."),
			wantKind: domain.SubmitErrUnknown,
			wantMsg:  "Submissions are paused until Monday.",
		},
		{
			name:     "stack trace is hidden",
			err:      errors.New("panic: runtime error\ngoroutine 1 [running]"),
			wantKind: domain.SubmitErrUnknown,
			wantMsg:  runtime.MsgGeneric,
		},
		{
			name:     "json body is hidden",
			err:      errors.New(`{"code":500}`),
			wantKind: domain.SubmitErrUnknown,
			wantMsg:  runtime.MsgGeneric,
		},
		{
			name:     "typed unknown echoes only its own message",
			err:      &domain.SubmitError{Kind: domain.SubmitErrUnknown, Err: errors.New("submit endpoint returned 500 Internal Server Error")},
			wantKind: domain.SubmitErrUnknown,
			wantMsg:  runtime.MsgGeneric,
		},
		{
			name:     "overly long is hidden",
			err:      errors.New(strings.Repeat("a", 201)),
			wantKind: domain.SubmitErrUnknown,
			wantMsg:  runtime.MsgGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, msg := runtime.ClassifySubmitError(tt.err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestClassifySubmitError_Nil(t *testing.T) {
	kind, msg := runtime.ClassifySubmitError(nil)
	assert.Empty(t, kind)
	assert.Empty(t, msg)
}
