// Package otel provides span helpers and shared attribute keys for pipeline
// tracing.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by pipeline spans
const (
	AttrItemTitle     = attribute.Key("item.title")
	AttrItemCount     = attribute.Key("scan.item_count")
	AttrInfoHash      = attribute.Key("transfer.infohash")
	AttrTransferState = attribute.Key("transfer.state")
	AttrStage         = attribute.Key("pipeline.stage")
	AttrOutcome       = attribute.Key("publish.outcome")
)

// StartSpan starts a span on tracer, or returns the span already in ctx when
// tracer is nil
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

// RecordError records err on span and marks the span failed. The status
// description stays generic; the error text is kept on the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
