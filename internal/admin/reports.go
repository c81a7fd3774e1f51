package admin

import (
	"context"

	"google.golang.org/api/analyticsdata/v1beta"
)

type reportRunner struct {
	svc *analyticsdata.Service
}

func (r *reportRunner) RunReport(ctx context.Context, property string, req *analyticsdata.RunReportRequest) (*analyticsdata.RunReportResponse, error) {
	resp, err := r.svc.Properties.RunReport(property, req).Context(ctx).Do()
	if err != nil {
		return nil, translate(err, "GA4 report for "+property)
	}
	return resp, nil
}
