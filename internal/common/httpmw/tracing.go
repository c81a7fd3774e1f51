package httpmw

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/tracing"
)

// OtelTracing opens one span per API call. Spans are dropped unless tracing.Init
// installed an exporter. Errors recorded through AbortWithError are attached with
// their AppError code so a failed deploy or SDK call can be found by kind.
func OtelTracing(serverName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracing.Tracer(serverName).Start(c.Request.Context(), c.Request.Method+" "+route)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttributes(
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCodeKey.Int(c.Writer.Status()),
			attribute.String("gfm.request_id", c.Writer.Header().Get(RequestIDHeader)),
		)
		if pid := c.Query("projectId"); pid != "" {
			span.SetAttributes(attribute.String("gfm.project_id", pid))
		}

		if last := c.Errors.Last(); last != nil {
			appErr := apperrors.As(last.Err)
			span.RecordError(last.Err)
			span.SetAttributes(attribute.String("gfm.error_type", appErr.Code))
			span.SetStatus(codes.Error, appErr.Message)
			return
		}
		if c.Writer.Status() >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}
