// Package otel provides tracing helpers shared by the store test pipeline.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on store test spans
const (
	AttrCandidateKey     = attribute.Key("candidate.key")
	AttrCandidateProject = attribute.Key("candidate.project_link")
	AttrCandidateModule  = attribute.Key("candidate.module_name")
	AttrCandidateStatus  = attribute.Key("candidate.status")
	AttrSkipReason       = attribute.Key("candidate.skip_reason")
	AttrVersion          = attribute.Key("candidate.version")
	AttrTestPassed       = attribute.Key("test.passed")
	AttrSourceLocation   = attribute.Key("source.location")
	AttrSourceType       = attribute.Key("source.type")
	AttrResultCount      = attribute.Key("result.count")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the
// span already in the context, which is a no-op span when tracing is off.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and marks the span as failed.
// Nil spans and nil errors are ignored. The status description stays generic;
// the error itself is attached as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
