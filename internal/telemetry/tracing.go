package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies xbuild spans. Spans go to whatever provider is
// installed globally; without one they are no-ops.
const TracerName = "github.com/3cpo-dev/xbuild"

func tracer() trace.Tracer { return otel.Tracer(TracerName) }

// StartBatch opens the span covering a whole batch.
func StartBatch(ctx context.Context, program string, targets int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "xbuild.batch", trace.WithAttributes(
		attribute.String("xbuild.program", program),
		attribute.Int("xbuild.targets", targets),
	))
}

// StartBuild opens the span for a single target build.
func StartBuild(ctx context.Context, platform, arch string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "xbuild.build", trace.WithAttributes(
		attribute.String("xbuild.platform", platform),
		attribute.String("xbuild.arch", arch),
	))
}

// EndSpan records status on span and ends it.
func EndSpan(span trace.Span, status string, err error) {
	span.SetAttributes(attribute.String("xbuild.status", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
