// Package analytics builds the GA4 dashboard report from the Google Analytics Data API.
package analytics

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/analyticsdata/v1beta"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/project"
	"github.com/moderniselife/GFM/internal/settings"
)

const (
	MsgMeasurementIDMissing = "GA4 Measurement ID not configured"
	MsgPropertyIDMissing    = "GA4 property ID not configured; the Data API needs the numeric property ID, not the G- measurement ID"

	topPagesLimit = 10
	maxDays       = 365
)

// ReportRunner runs a single GA4 report against a property ("properties/<id>").
type ReportRunner interface {
	RunReport(ctx context.Context, property string, req *analyticsdata.RunReportRequest) (*analyticsdata.RunReportResponse, error)
}

// Session is a credential-bound connection. Close must always be called.
type Session interface {
	Reports(ctx context.Context) (ReportRunner, error)
	Close() error
}

// Opener acquires sessions for a project.
type Opener interface {
	Acquire(ctx context.Context, dir, projectID string) (Session, error)
}

// SettingsSource loads project settings.
type SettingsSource interface {
	Load(dir string) (*settings.Settings, error)
}

// DailyCount is one day's value of a metric.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// PageStat summarises one page path.
type PageStat struct {
	PagePath    string  `json:"pagePath"`
	Views       int64   `json:"views"`
	AverageTime float64 `json:"averageTime"`
}

// Report is the dashboard payload.
type Report struct {
	ActiveUsers            []DailyCount `json:"activeUsers"`
	PageViews              []DailyCount `json:"pageViews"`
	TopPages               []PageStat   `json:"topPages"`
	TotalUsers             int64        `json:"totalUsers"`
	NewUsers               int64        `json:"newUsers"`
	BounceRate             float64      `json:"bounceRate"`
	AverageSessionDuration float64      `json:"averageSessionDuration"`
}

// Service builds reports.
type Service struct {
	opener     Opener
	settings   SettingsSource
	defaultDir string
	logger     *logger.Logger
}

// NewService creates the analytics service.
func NewService(opener Opener, st SettingsSource, defaultDir string, log *logger.Logger) *Service {
	return &Service{
		opener:     opener,
		settings:   st,
		defaultDir: defaultDir,
		logger:     log.WithFields(zap.String("component", "analytics")),
	}
}

var timeRangePattern = regexp.MustCompile(`^(\d{1,3})d$`)

// ParseTimeRange turns "7d", "30d" or "90d" into a day count. Empty means 7 days.
func ParseTimeRange(s string) (int, error) {
	if s == "" {
		return 7, nil
	}
	m := timeRangePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, apperrors.Preconditionf("Invalid timeRange: %s", s)
	}
	days, _ := strconv.Atoi(m[1])
	if days < 1 || days > maxDays {
		return 0, apperrors.Preconditionf("timeRange must be between 1d and %dd", maxDays)
	}
	return days, nil
}

var numericID = regexp.MustCompile(`^\d+$`)

// PropertyName picks the GA4 property from settings. The property ID wins; a numeric
// measurement ID is accepted as a property ID.
func PropertyName(st *settings.Settings) (string, error) {
	id := strings.TrimPrefix(strings.TrimSpace(st.PropertyID), "properties/")
	if id == "" {
		id = strings.TrimPrefix(strings.TrimSpace(st.MeasurementID), "properties/")
		if id == "" {
			return "", apperrors.Precondition(MsgMeasurementIDMissing)
		}
	}
	if !numericID.MatchString(id) {
		return "", apperrors.Precondition(MsgPropertyIDMissing)
	}
	return "properties/" + id, nil
}

// Report builds the dashboard for projectID over timeRange.
func (s *Service) Report(ctx context.Context, dir, projectID, timeRange string) (*Report, error) {
	if err := project.ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	days, err := ParseTimeRange(timeRange)
	if err != nil {
		return nil, err
	}
	resolved, err := project.ResolveDir(dir, s.defaultDir)
	if err != nil {
		return nil, err
	}
	st, err := s.settings.Load(resolved)
	if err != nil {
		return nil, err
	}
	property, err := PropertyName(st)
	if err != nil {
		return nil, err
	}

	sess, err := s.opener.Acquire(ctx, resolved, projectID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.logger.Warn("failed to release analytics session", zap.Error(cerr))
		}
	}()
	runner, err := sess.Reports(ctx)
	if err != nil {
		return nil, err
	}

	report, err := build(ctx, runner, property, days)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("ga4 report built", zap.String("project_id", projectID), zap.String("property", property), zap.Int("days", days))
	return report, nil
}

func dateRange(days int) []*analyticsdata.DateRange {
	return []*analyticsdata.DateRange{{StartDate: strconv.Itoa(days) + "daysAgo", EndDate: "today"}}
}

func metrics(names ...string) []*analyticsdata.Metric {
	out := make([]*analyticsdata.Metric, len(names))
	for i, n := range names {
		out[i] = &analyticsdata.Metric{Name: n}
	}
	return out
}

// build runs the daily, top pages and totals reports concurrently.
func build(ctx context.Context, runner ReportRunner, property string, days int) (*Report, error) {
	report := &Report{ActiveUsers: []DailyCount{}, PageViews: []DailyCount{}, TopPages: []PageStat{}}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := runner.RunReport(ctx, property, &analyticsdata.RunReportRequest{
			DateRanges: dateRange(days),
			Dimensions: []*analyticsdata.Dimension{{Name: "date"}},
			Metrics:    metrics("activeUsers", "screenPageViews"),
			OrderBys:   []*analyticsdata.OrderBy{{Dimension: &analyticsdata.DimensionOrderBy{DimensionName: "date"}}},
		})
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		for _, row := range resp.Rows {
			date := formatDate(dimension(row, 0))
			report.ActiveUsers = append(report.ActiveUsers, DailyCount{Date: date, Count: intMetric(row, 0)})
			report.PageViews = append(report.PageViews, DailyCount{Date: date, Count: intMetric(row, 1)})
		}
		return nil
	})

	g.Go(func() error {
		resp, err := runner.RunReport(ctx, property, &analyticsdata.RunReportRequest{
			DateRanges: dateRange(days),
			Dimensions: []*analyticsdata.Dimension{{Name: "pagePath"}},
			Metrics:    metrics("screenPageViews", "userEngagementDuration"),
			OrderBys:   []*analyticsdata.OrderBy{{Metric: &analyticsdata.MetricOrderBy{MetricName: "screenPageViews"}, Desc: true}},
			Limit:      topPagesLimit,
		})
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		for _, row := range resp.Rows {
			views := intMetric(row, 0)
			avg := 0.0
			if views > 0 {
				avg = floatMetric(row, 1) / float64(views)
			}
			report.TopPages = append(report.TopPages, PageStat{PagePath: dimension(row, 0), Views: views, AverageTime: avg})
		}
		return nil
	})

	g.Go(func() error {
		resp, err := runner.RunReport(ctx, property, &analyticsdata.RunReportRequest{
			DateRanges: dateRange(days),
			Metrics:    metrics("totalUsers", "newUsers", "bounceRate", "averageSessionDuration"),
		})
		if err != nil {
			return err
		}
		if len(resp.Rows) == 0 {
			return nil
		}
		row := resp.Rows[0]
		mu.Lock()
		defer mu.Unlock()
		report.TotalUsers = intMetric(row, 0)
		report.NewUsers = intMetric(row, 1)
		report.BounceRate = floatMetric(row, 2)
		report.AverageSessionDuration = floatMetric(row, 3)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func dimension(row *analyticsdata.Row, i int) string {
	if i >= len(row.DimensionValues) || row.DimensionValues[i] == nil {
		return ""
	}
	return row.DimensionValues[i].Value
}

func metricValue(row *analyticsdata.Row, i int) string {
	if i >= len(row.MetricValues) || row.MetricValues[i] == nil {
		return ""
	}
	return row.MetricValues[i].Value
}

func intMetric(row *analyticsdata.Row, i int) int64 {
	n, _ := strconv.ParseInt(metricValue(row, i), 10, 64)
	return n
}

func floatMetric(row *analyticsdata.Row, i int) float64 {
	f, _ := strconv.ParseFloat(metricValue(row, i), 64)
	return f
}

// formatDate turns GA's YYYYMMDD into YYYY-MM-DD.
func formatDate(d string) string {
	if len(d) != 8 {
		return d
	}
	return d[:4] + "-" + d[4:6] + "-" + d[6:]
}
