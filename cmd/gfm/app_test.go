package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moderniselife/GFM/internal/cli"
	"github.com/moderniselife/GFM/internal/common/config"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/livelog"
	"github.com/moderniselife/GFM/internal/runner"
	"github.com/moderniselife/GFM/internal/secrets"
)

type noopExecutor struct{}

func (noopExecutor) Run(ctx context.Context, dir, name string, args ...string) (*cli.Result, error) {
	return &cli.Result{}, nil
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)

	cfg, err := config.LoadWithPath(t.TempDir())
	require.NoError(t, err)
	cfg.Project.DefaultDir = t.TempDir()

	return newApp(cfg, log, deps{
		executor: noopExecutor{},
		secrets: func(ctx context.Context) (secrets.Client, error) {
			return nil, errors.New("no credentials in tests")
		},
	})
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["websockets"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/firebase/firestore/get", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestConsoleRequiresProjectID(t *testing.T) {
	a := newTestApp(t)

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/firebase/firestore/get?path=users", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "projectId is required")
}

func TestSecretsWithoutCredentials(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/secrets/create",
		strings.NewReader(`{"projectId":"demo","secretKey":"API_KEY","secretValue":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "gcloud auth application-default login")
}

// hubAwareSink records whether the live-log hub was still running when each event arrived.
type hubAwareSink struct {
	hubCtx context.Context

	mu     sync.Mutex
	events []livelog.Event
	hubUp  []bool
}

func (s *hubAwareSink) Send(ev livelog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	s.hubUp = append(s.hubUp, s.hubCtx.Err() == nil)
	return nil
}

func (s *hubAwareSink) Close() error { return nil }

func TestStopDeliversCancelBeforeClosingSockets(t *testing.T) {
	a := newTestApp(t)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = a.hub.Run(hubCtx)
	}()

	sink := &hubAwareSink{hubCtx: hubCtx}
	a.runner.Launch(sink, runner.Job{
		ClientID: "c1",
		Kind:     "deploy",
		Name:     "Deployment",
		Body: func(ctx context.Context, st *runner.Stream) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	require.Eventually(t, func() bool { return a.runner.Running("c1") }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.stop(ctx, stopHub)

	select {
	case <-hubDone:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.NotEmpty(t, sink.events)
	last := len(sink.events) - 1
	assert.Equal(t, livelog.EventError, sink.events[last].Type)
	assert.Equal(t, runner.MsgCancelled, sink.events[last].Message)
	assert.True(t, sink.hubUp[last])
}
