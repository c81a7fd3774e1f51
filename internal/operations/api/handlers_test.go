//go:build unix

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/livelog"
	"github.com/moderniselife/GFM/internal/operations"
	"github.com/moderniselife/GFM/internal/runner"
)

// commandRecorder stands in for the shell: it records each command line and runs a
// scripted replacement instead.
type commandRecorder struct {
	mu     sync.Mutex
	lines  []string
	script string
}

func (r *commandRecorder) factory(_ context.Context, line string) *exec.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return exec.Command("sh", "-c", r.script)
}

func (r *commandRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

type fakeProject struct {
	mu      sync.Mutex
	current string
	used    []string
}

func (f *fakeProject) CurrentProject(context.Context, string) (string, error) {
	return f.current, nil
}

func (f *fakeProject) UseProject(_ context.Context, _ string, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.used = append(f.used, projectID)
	return nil
}

type fakeProcesses struct {
	mu     sync.Mutex
	found  []runner.ProcessInfo
	killed int
}

func (f *fakeProcesses) set(found []runner.ProcessInfo, killed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.found = found
	f.killed = killed
}

func (f *fakeProcesses) Find(context.Context, string) ([]runner.ProcessInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.found, nil
}

func (f *fakeProcesses) Kill(context.Context, string, time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killed, nil
}

type harness struct {
	hub     *livelog.Hub
	runner  *runner.Runner
	router  *gin.Engine
	wsURL   string
	cmds    *commandRecorder
	project *fakeProject
	procs   *fakeProcesses
}

func setupHarness(t *testing.T, script string) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)

	h := &harness{
		hub:     livelog.NewHub(time.Minute, log),
		cmds:    &commandRecorder{script: script},
		project: &fakeProject{},
		procs:   &fakeProcesses{},
	}
	h.runner = runner.New(log, runner.WithCommandFactory(h.cmds.factory), runner.WithStopGrace(100*time.Millisecond))
	svc := operations.NewService(h.hub, h.runner, h.project, operations.Config{
		BunPath:         filepath.Join(t.TempDir(), "no-bun"),
		PackageDirs:     []string{"./functions", "./app", "./public", "./trust"},
		InstallTimeout:  time.Minute,
		ReadyPhrases:    []string{"All emulators ready!"},
		ShutdownPhrases: []string{"Shutting down emulators."},
		ProcessMatch:    "firebase emulators",
	}, log, operations.WithProcessTable(h.procs))

	h.router = gin.New()
	livelog.NewHandler(h.hub, log).RegisterRoutes(h.router, "/api/gfm/logs")
	SetupRoutes(h.router.Group("/api"), svc, log)

	srv := httptest.NewServer(h.router)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.hub.Run(ctx) }()
	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		h.runner.StopAll(stopCtx)
		cancel()
		srv.Close()
	})
	h.wsURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/gfm/logs"
	return h
}

// connect opens a socket and registers it as clientID.
func (h *harness) connect(t *testing.T, clientID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "register", "clientId": clientID}))
	require.Eventually(t, func() bool {
		_, ok := h.hub.Lookup(clientID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func (h *harness) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// readAll reads events until the server closes the socket.
func readAll(t *testing.T, conn *websocket.Conn) []livelog.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var events []livelog.Event
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			return events
		}
		var ev livelog.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		events = append(events, ev)
	}
}

func terminals(events []livelog.Event) []livelog.Event {
	var out []livelog.Event
	for _, ev := range events {
		if ev.Terminal() {
			out = append(out, ev)
		}
	}
	return out
}

func messages(events []livelog.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Message)
	}
	return out
}

func projectDir(t *testing.T, packages ...string) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for _, pkg := range packages {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, pkg), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, pkg, "package.json"), []byte(`{}`), 0o600))
	}
	return dir
}

func TestInstallStreamsEachPackageDirectory(t *testing.T) {
	h := setupHarness(t, "pwd")
	dir := projectDir(t, "functions", "app")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "public"), 0o755)) // no package.json
	conn := h.connect(t, "install-1")

	w := h.post(t, "/api/firebase/install-dependencies?dir="+dir, map[string]string{"clientId": "install-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Installation started"}`, w.Body.String())

	events := readAll(t, conn)
	assert.Equal(t, []string{
		"Installing dependencies in ./functions...",
		filepath.Join(dir, "functions"),
		"Installing dependencies in ./app...",
		filepath.Join(dir, "app"),
		operations.MsgInstallSucceeded,
	}, messages(events))
	require.Len(t, terminals(events), 1)
	assert.Equal(t, livelog.EventComplete, events[len(events)-1].Type)
	assert.Equal(t, []string{"npm install --legacy-peer-deps", "npm install --legacy-peer-deps"}, h.cmds.recorded())
}

func TestInstallFailureStopsAtFirstPackage(t *testing.T) {
	h := setupHarness(t, "echo broken 1>&2; exit 7")
	dir := projectDir(t, "functions", "app")
	conn := h.connect(t, "install-2")

	w := h.post(t, "/api/firebase/install-dependencies?dir="+dir, map[string]string{"clientId": "install-2"})
	require.Equal(t, http.StatusOK, w.Code)

	events := readAll(t, conn)
	assert.Contains(t, events, livelog.Log(livelog.LevelError, "broken"))
	assert.Equal(t, livelog.Failure("Install process exited with code 7"), events[len(events)-1])
	assert.Len(t, h.cmds.recorded(), 1)
}

func TestUnknownClientFailsWithoutSpawning(t *testing.T) {
	h := setupHarness(t, "true")
	dir := projectDir(t, "functions")

	for _, path := range []string{
		"/api/firebase/install-dependencies?dir=" + dir,
		"/api/firebase/deploy?dir=" + dir,
	} {
		w := h.post(t, path, map[string]any{"clientId": "ghost", "options": map[string]bool{"all": true}})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, livelog.ErrMsgNotFound, body["error"])
	}
	assert.Empty(t, h.cmds.recorded())
	assert.Empty(t, h.project.used)
}

func TestMissingDirectoryIsRejected(t *testing.T) {
	h := setupHarness(t, "true")
	h.connect(t, "c")

	w := h.post(t, "/api/firebase/install-dependencies?dir=/does/not/exist", map[string]string{"clientId": "c"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Directory not found")

	w = h.post(t, "/api/firebase/install-dependencies", map[string]string{"clientId": "c"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Project directory is required")
	assert.Empty(t, h.cmds.recorded())
}

func TestDeployStreamsAndCompletes(t *testing.T) {
	h := setupHarness(t, "echo deploying")
	dir := projectDir(t)
	conn := h.connect(t, "deploy-1")

	w := h.post(t, "/api/firebase/deploy?dir="+dir, map[string]any{
		"clientId":  "deploy-1",
		"projectId": "demo",
		"options":   map[string]bool{"hosting": true, "functions": false, "storage": true},
		"targets":   map[string][]string{"hosting": {"site-a", "site-b"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Deployment started","command":"firebase deploy --only hosting:site-a,hosting:site-b,storage"}`, w.Body.String())

	events := readAll(t, conn)
	assert.Equal(t, []string{"deploying", operations.MsgDeploySucceeded}, messages(events))
	assert.Equal(t, []string{"demo"}, h.project.used)
	assert.Equal(t, []string{"firebase deploy --only hosting:site-a,hosting:site-b,storage"}, h.cmds.recorded())
}

func TestDeployFailureCarriesExitCode(t *testing.T) {
	h := setupHarness(t, "exit 2")
	dir := projectDir(t)
	conn := h.connect(t, "deploy-2")

	w := h.post(t, "/api/firebase/deploy?dir="+dir, map[string]any{"clientId": "deploy-2", "options": map[string]bool{"all": true}})
	require.Equal(t, http.StatusOK, w.Code)

	events := readAll(t, conn)
	assert.Equal(t, []livelog.Event{livelog.Failure("Deployment failed with code 2")}, events)
}

func TestDeployRejectsInjectedProjectID(t *testing.T) {
	h := setupHarness(t, "true")
	dir := projectDir(t)
	h.connect(t, "deploy-3")

	w := h.post(t, "/api/firebase/deploy?dir="+dir, map[string]any{"clientId": "deploy-3", "projectId": "demo;reboot"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.cmds.recorded())
}

func TestCancelDeploy(t *testing.T) {
	h := setupHarness(t, "echo started; sleep 30")
	dir := projectDir(t)
	conn := h.connect(t, "deploy-4")

	w := h.post(t, "/api/firebase/deploy?dir="+dir, map[string]any{"clientId": "deploy-4", "options": map[string]bool{"all": true}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Eventually(t, func() bool { return h.runner.Running("deploy-4") }, 2*time.Second, 10*time.Millisecond)

	w = h.post(t, "/api/firebase/deploy/cancel", map[string]string{"clientId": "deploy-4"})
	require.Equal(t, http.StatusOK, w.Code)

	events := readAll(t, conn)
	assert.Equal(t, livelog.Failure(runner.MsgCancelled), events[len(events)-1])
	require.Len(t, terminals(events), 1)

	require.Eventually(t, func() bool { return !h.runner.Running("deploy-4") }, 5*time.Second, 20*time.Millisecond)
	w = h.post(t, "/api/firebase/deploy/cancel", map[string]string{"clientId": "deploy-4"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEmulatorStartCompletesWhenReady(t *testing.T) {
	h := setupHarness(t, "printf 'i  emulators: All emulators ready! It is now safe to connect.\\n'; sleep 30")
	dir := projectDir(t)
	conn := h.connect(t, "emu-1")

	w := h.post(t, "/api/firebase/emulators?dir="+dir, map[string]any{
		"clientId":  "emu-1",
		"action":    "start",
		"services":  []string{"firestore", "hosting"},
		"projectId": "demo",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Emulator start started"}`, w.Body.String())

	events := readAll(t, conn)
	require.Len(t, terminals(events), 1)
	assert.Equal(t, livelog.Complete(runner.EmulatorsStarted), events[len(events)-1])
	assert.True(t, strings.HasPrefix(events[0].Message, "Starting emulators with command: "))

	lines := h.cmds.recorded()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "--only firestore,hosting:demo")
	export := filepath.Join(dir, "emulator_exports")
	assert.Contains(t, lines[0], "--import "+export+" --export-on-exit "+export)

	// The suite keeps running after it reported ready.
	assert.True(t, h.runner.Running("emu-1"))
	assert.Equal(t, []string{"demo"}, h.project.used)
}

func TestEmulatorStop(t *testing.T) {
	h := setupHarness(t, "true")
	dir := projectDir(t)

	h.procs.set(nil, 2)
	conn := h.connect(t, "emu-2")
	w := h.post(t, "/api/firebase/emulators?dir="+dir, map[string]any{"clientId": "emu-2", "action": "stop"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []livelog.Event{
		livelog.Log(livelog.LevelSuccess, runner.EmulatorsStopped),
		livelog.Complete(runner.EmulatorsStopped),
	}, readAll(t, conn))

	h.procs.set(nil, 0)
	conn = h.connect(t, "emu-3")
	w = h.post(t, "/api/firebase/emulators?dir="+dir, map[string]any{"clientId": "emu-3", "action": "stop"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []livelog.Event{
		livelog.Info(operations.MsgNoEmulatorsRunning),
		livelog.Complete(operations.MsgNoEmulatorsRunning),
	}, readAll(t, conn))

	assert.Empty(t, h.cmds.recorded())
}

func TestEmulatorRestartStopsThenStarts(t *testing.T) {
	h := setupHarness(t, "echo 'Shutting down emulators.'")
	dir := projectDir(t)
	h.procs.set(nil, 1)
	conn := h.connect(t, "emu-4")

	w := h.post(t, "/api/firebase/emulators?dir="+dir, map[string]any{"clientId": "emu-4", "action": "restart"})
	require.Equal(t, http.StatusOK, w.Code)

	events := readAll(t, conn)
	assert.Equal(t, operations.MsgStoppingEmulators, events[0].Message)
	assert.Equal(t, livelog.Complete(runner.EmulatorsStopped), events[len(events)-1])
	require.Len(t, terminals(events), 1)
}

func TestEmulatorsRejectsUnknownAction(t *testing.T) {
	h := setupHarness(t, "true")
	dir := projectDir(t)
	h.connect(t, "emu-5")

	w := h.post(t, "/api/firebase/emulators?dir="+dir, map[string]any{"clientId": "emu-5", "action": "explode"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunningEmulators(t *testing.T) {
	h := setupHarness(t, "true")
	h.procs.set([]runner.ProcessInfo{
		{PID: 42, Cmdline: "node /usr/local/bin/firebase emulators:start --only firestore,hosting:demo --import /x"},
		{PID: 43, Cmdline: "sh -lc firebase emulators:start --only auth,firestore"},
	}, 0)

	w := h.get(t, "/api/firebase/running-emulators")
	require.Equal(t, http.StatusOK, w.Code)

	var resp RunningEmulatorsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"firestore", "hosting", "auth"}, resp.RunningEmulators)
	require.Len(t, resp.Processes, 2)
	assert.Equal(t, int32(42), resp.Processes[0].PID)
}

func TestViteServersAndRunScript(t *testing.T) {
	h := setupHarness(t, "echo VITE ready")
	dir := projectDir(t)
	appDir := filepath.Join(dir, "app")
	require.NoError(t, os.MkdirAll(appDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "package.json"), []byte(`{"scripts":{"dev":"vite"}}`), 0o600))

	w := h.get(t, "/api/scripts/vite-servers?dir="+dir)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ViteServersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Servers, 1)
	assert.Equal(t, appDir, resp.Servers[0].Path)

	conn := h.connect(t, "script-1")
	w = h.post(t, "/api/scripts/run", map[string]string{"scriptPath": appDir, "scriptName": "dev", "clientId": "script-1"})
	require.Equal(t, http.StatusOK, w.Code)

	events := readAll(t, conn)
	assert.Contains(t, messages(events), "VITE ready")
	assert.Equal(t, livelog.Complete("Script dev finished successfully"), events[len(events)-1])
	assert.Equal(t, []string{"npm run dev"}, h.cmds.recorded())

	w = h.post(t, "/api/scripts/run", map[string]string{"scriptPath": appDir, "scriptName": "missing", "clientId": "script-1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
