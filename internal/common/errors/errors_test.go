package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsMapToStatus(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err    *AppError
		code   string
		status int
	}{
		{Precondition("dir is required"), ErrCodePrecondition, http.StatusBadRequest},
		{NotFound("no such secret"), ErrCodeNotFound, http.StatusNotFound},
		{Conflict("stale etag"), ErrCodeConflict, http.StatusConflict},
		{Execution("firebase exited 1", cause), ErrCodeExecution, http.StatusInternalServerError},
		{External("sdk failed", cause), ErrCodeExternal, http.StatusBadGateway},
		{Timeout("took too long", cause), ErrCodeTimeout, http.StatusGatewayTimeout},
		{Internal("oops", cause), ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}

func TestWrapPreservesKind(t *testing.T) {
	inner := Timeout("secret access timed out", nil)
	wrapped := Wrap(fmt.Errorf("fetch: %w", inner), "fetching secrets")

	assert.Equal(t, ErrCodeTimeout, wrapped.Code)
	assert.Equal(t, http.StatusGatewayTimeout, wrapped.HTTPStatus)
	assert.True(t, IsTimeout(wrapped))
	assert.Nil(t, Wrap(nil, "noop"))
}

func TestAsFallsBackToInternal(t *testing.T) {
	appErr := As(errors.New("plain"))
	assert.Equal(t, ErrCodeInternal, appErr.Code)
	assert.Equal(t, "plain", appErr.Message)

	nf := NotFound("missing")
	assert.Same(t, nf, As(fmt.Errorf("ctx: %w", nf)))
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsPrecondition(nf))
}
