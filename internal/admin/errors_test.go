package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/moderniselife/GFM/internal/common/config"
	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/console"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"missing object", storage.ErrObjectNotExist, apperrors.ErrCodeNotFound},
		{"missing bucket", fmt.Errorf("open: %w", storage.ErrBucketNotExist), apperrors.ErrCodeNotFound},
		{"deadline", fmt.Errorf("list: %w", context.DeadlineExceeded), apperrors.ErrCodeTimeout},
		{"grpc not found", status.Error(codes.NotFound, "no doc"), apperrors.ErrCodeNotFound},
		{"grpc exists", status.Error(codes.AlreadyExists, "dup"), apperrors.ErrCodeConflict},
		{"grpc aborted", status.Error(codes.Aborted, "contention"), apperrors.ErrCodeConflict},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "slow"), apperrors.ErrCodeTimeout},
		{"grpc denied", status.Error(codes.PermissionDenied, "nope"), apperrors.ErrCodeExternal},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "who"), apperrors.ErrCodeExternal},
		{"grpc invalid", status.Error(codes.InvalidArgument, "bad path"), apperrors.ErrCodePrecondition},
		{"grpc precondition", status.Error(codes.FailedPrecondition, "index"), apperrors.ErrCodePrecondition},
		{"grpc other", status.Error(codes.Unavailable, "down"), apperrors.ErrCodeExternal},
		{"http 404", &googleapi.Error{Code: http.StatusNotFound, Message: "gone"}, apperrors.ErrCodeNotFound},
		{"http 409", &googleapi.Error{Code: http.StatusConflict, Message: "dup"}, apperrors.ErrCodeConflict},
		{"http 412", fmt.Errorf("patch: %w", &googleapi.Error{Code: http.StatusPreconditionFailed}), apperrors.ErrCodeConflict},
		{"http 400", &googleapi.Error{Code: http.StatusBadRequest, Message: "syntax"}, apperrors.ErrCodePrecondition},
		{"http 401", &googleapi.Error{Code: http.StatusUnauthorized}, apperrors.ErrCodeExternal},
		{"http 403", &googleapi.Error{Code: http.StatusForbidden}, apperrors.ErrCodeExternal},
		{"http 500", &googleapi.Error{Code: http.StatusInternalServerError}, apperrors.ErrCodeExternal},
		{"plain", errors.New("boom"), apperrors.ErrCodeExternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err, "Document users/u1")
			require.Error(t, got)
			assert.Equal(t, tt.code, apperrors.As(got).Code)
		})
	}
}

func TestTranslateMessages(t *testing.T) {
	assert.Nil(t, translate(nil, "x"))

	notFound := translate(status.Error(codes.NotFound, "no doc"), "Document users/u1")
	assert.Equal(t, "Document users/u1 not found", apperrors.As(notFound).Message)

	bad := translate(&googleapi.Error{Code: http.StatusBadRequest, Message: "line 3: unexpected }"}, "Ruleset")
	assert.Equal(t, "Ruleset: line 3: unexpected }", apperrors.As(bad).Message)

	failed := translate(errors.New("boom"), "Object a.txt")
	assert.Equal(t, "Object a.txt request failed", apperrors.As(failed).Message)
}

func TestTranslateKeepsAppErrors(t *testing.T) {
	orig := apperrors.Conflict("Rules were changed since they were loaded")
	assert.Same(t, orig, translate(orig, "Ruleset"))
}

func newBareSession(t *testing.T) *Session {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	return &Session{
		projectID: "demo",
		span:      trace.SpanFromContext(context.Background()),
		logger:    log,
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	sess := newBareSession(t)
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	ctx := context.Background()
	_, err := sess.Firestore(ctx)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.As(err).Code)
	_, err = sess.Objects(ctx)
	assert.Error(t, err)
	_, err = sess.Users(ctx)
	assert.Error(t, err)
	_, err = sess.Rules(ctx)
	assert.Error(t, err)
	_, err = sess.Reports(ctx)
	assert.Error(t, err)
}

type missingCreds struct{}

func (missingCreds) Lookup(dir, projectID string) ([]byte, error) {
	return nil, apperrors.Preconditionf("No service account configured for project %s", projectID)
}

func TestWithPropagatesCredentialErrors(t *testing.T) {
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	m := NewManager(missingCreds{}, config.AdminConfig{}, log)

	called := false
	err = m.With(context.Background(), "/tmp", "demo", func(*Session) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, apperrors.IsPrecondition(err))

	_, err = m.Console().Acquire(context.Background(), "/tmp", "demo")
	assert.True(t, apperrors.IsPrecondition(err))
}

func TestReleaseName(t *testing.T) {
	assert.Equal(t, "projects/demo/releases/cloud.firestore", releaseName("demo", "demo.appspot.com", console.RulesFirestore))
	assert.Equal(t, "projects/demo/releases/firebase.storage/demo.appspot.com", releaseName("demo", "demo.appspot.com", console.RulesStorage))
}

func TestJSONValueReferences(t *testing.T) {
	ref := &firestore.DocumentRef{
		ID:   "u1",
		Path: "projects/demo/databases/(default)/documents/users/u1",
	}
	got := jsonValue(map[string]any{
		"owner": ref,
		"tags":  []any{"a", ref},
		"count": int64(3),
	})
	want := map[string]any{
		"owner": map[string]any{"__ref__": "users/u1"},
		"tags":  []any{"a", map[string]any{"__ref__": "users/u1"}},
		"count": int64(3),
	}
	assert.Equal(t, want, got)
	assert.Equal(t, "u1", refPath(&firestore.DocumentRef{ID: "u1"}))
}
