package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const operationsTracerName = "gfm-operations"

// TraceOperation starts a span for a streamed operation (install, deploy, emulators, script).
func TraceOperation(ctx context.Context, kind, clientID, dir string) (context.Context, trace.Span) {
	ctx, span := Tracer(operationsTracerName).Start(ctx, "operation."+kind,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("client_id", clientID),
		attribute.String("dir", dir),
	)
	return ctx, span
}

// EndOperation records the terminal outcome and ends span.
func EndOperation(span trace.Span, exitCode int, err error) {
	span.SetAttributes(attribute.Int("exit_code", exitCode))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

const adminTracerName = "gfm-admin"

// TraceSession starts a span that lasts from acquiring an admin session to its release.
func TraceSession(ctx context.Context, projectID string) (context.Context, trace.Span) {
	ctx, span := Tracer(adminTracerName).Start(ctx, "admin.session",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String("project_id", projectID))
	return ctx, span
}
