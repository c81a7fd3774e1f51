package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/analyticsdata/v1beta"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/settings"
)

func row(dims []string, metrics ...string) *analyticsdata.Row {
	r := &analyticsdata.Row{}
	for _, d := range dims {
		r.DimensionValues = append(r.DimensionValues, &analyticsdata.DimensionValue{Value: d})
	}
	for _, m := range metrics {
		r.MetricValues = append(r.MetricValues, &analyticsdata.MetricValue{Value: m})
	}
	return r
}

type fakeRunner struct {
	mu         sync.Mutex
	properties []string
	err        error
}

func (f *fakeRunner) RunReport(_ context.Context, property string, req *analyticsdata.RunReportRequest) (*analyticsdata.RunReportResponse, error) {
	f.mu.Lock()
	f.properties = append(f.properties, property)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(req.Dimensions) == 0 {
		return &analyticsdata.RunReportResponse{Rows: []*analyticsdata.Row{row(nil, "120", "45", "0.42", "93.5")}}, nil
	}
	switch req.Dimensions[0].Name {
	case "date":
		return &analyticsdata.RunReportResponse{Rows: []*analyticsdata.Row{
			row([]string{"20240101"}, "10", "30"),
			row([]string{"20240102"}, "12", "41"),
		}}, nil
	case "pagePath":
		return &analyticsdata.RunReportResponse{Rows: []*analyticsdata.Row{
			row([]string{"/"}, "50", "500"),
			row([]string{"/about"}, "0", "0"),
		}}, nil
	}
	return &analyticsdata.RunReportResponse{}, nil
}

type fakeSession struct {
	runner *fakeRunner
	closed *int
}

func (s fakeSession) Reports(context.Context) (ReportRunner, error) { return s.runner, nil }
func (s fakeSession) Close() error {
	*s.closed++
	return nil
}

type fakeOpener struct {
	runner *fakeRunner
	closed int
}

func (o *fakeOpener) Acquire(context.Context, string, string) (Session, error) {
	return fakeSession{runner: o.runner, closed: &o.closed}, nil
}

type fakeSettings struct{ st settings.Settings }

func (f fakeSettings) Load(string) (*settings.Settings, error) {
	st := f.st
	return &st, nil
}

func newTestService(t *testing.T, st settings.Settings, runner *fakeRunner) (*Service, *fakeOpener, string) {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	opener := &fakeOpener{runner: runner}
	return NewService(opener, fakeSettings{st: st}, dir, log), opener, dir
}

func TestReport(t *testing.T) {
	runner := &fakeRunner{}
	svc, opener, _ := newTestService(t, settings.Settings{MeasurementID: "G-ABC", PropertyID: "123456"}, runner)

	report, err := svc.Report(context.Background(), "", "demo", "30d")
	require.NoError(t, err)

	assert.Equal(t, []DailyCount{{Date: "2024-01-01", Count: 10}, {Date: "2024-01-02", Count: 12}}, report.ActiveUsers)
	assert.Equal(t, int64(41), report.PageViews[1].Count)
	require.Len(t, report.TopPages, 2)
	assert.Equal(t, PageStat{PagePath: "/", Views: 50, AverageTime: 10}, report.TopPages[0])
	assert.Equal(t, 0.0, report.TopPages[1].AverageTime)
	assert.Equal(t, int64(120), report.TotalUsers)
	assert.Equal(t, int64(45), report.NewUsers)
	assert.InDelta(t, 0.42, report.BounceRate, 1e-9)
	assert.InDelta(t, 93.5, report.AverageSessionDuration, 1e-9)

	assert.Equal(t, []string{"properties/123456", "properties/123456", "properties/123456"}, runner.properties)
	assert.Equal(t, 1, opener.closed)
}

func TestReportFailureReleasesSession(t *testing.T) {
	runner := &fakeRunner{err: apperrors.External("GA4 report failed", nil)}
	svc, opener, _ := newTestService(t, settings.Settings{PropertyID: "1"}, runner)

	_, err := svc.Report(context.Background(), "", "demo", "")
	require.Error(t, err)
	assert.Equal(t, 1, opener.closed)
}

func TestPropertyName(t *testing.T) {
	cases := []struct {
		st   settings.Settings
		want string
		msg  string
	}{
		{st: settings.Settings{}, msg: MsgMeasurementIDMissing},
		{st: settings.Settings{MeasurementID: "G-ABC123"}, msg: MsgPropertyIDMissing},
		{st: settings.Settings{MeasurementID: "987"}, want: "properties/987"},
		{st: settings.Settings{MeasurementID: "G-ABC123", PropertyID: "properties/42"}, want: "properties/42"},
	}
	for _, tc := range cases {
		got, err := PropertyName(&tc.st)
		if tc.msg != "" {
			require.Error(t, err)
			assert.Equal(t, tc.msg, apperrors.As(err).Message)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseTimeRange(t *testing.T) {
	for in, want := range map[string]int{"": 7, "7d": 7, "30d": 30, "90d": 90} {
		got, err := ParseTimeRange(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"7", "0d", "999d", "1w"} {
		_, err := ParseTimeRange(bad)
		assert.True(t, apperrors.IsPrecondition(err), bad)
	}
}

func TestHandlerMissingMeasurementID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, dir := newTestService(t, settings.Settings{}, &fakeRunner{})
	router := gin.New()
	SetupRoutes(router.Group("/api"), svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ga4/data?projectId=demo&timeRange=7d&projectDir="+dir, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, MsgMeasurementIDMissing, body["error"])
}
