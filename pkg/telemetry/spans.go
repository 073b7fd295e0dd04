package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/redhat-et/script-archive"

// Span attribute keys for the script archive domain.
var (
	AttrScriptID   = attribute.Key("archive.script.id")
	AttrAction     = attribute.Key("archive.action")
	AttrAccount    = attribute.Key("archive.account")
	AttrStatus     = attribute.Key("archive.script.status")
	AttrStoreKey   = attribute.Key("archive.store.key")
	AttrBackend    = attribute.Key("archive.store.backend")
	AttrBytes      = attribute.Key("archive.store.bytes")
	AttrDecision   = attribute.Key("archive.decision")
	AttrReason     = attribute.Key("archive.reason")
	AttrCount      = attribute.Key("archive.collection.count")
	AttrVersion    = attribute.Key("archive.collection.version")
	AttrIndexCount = attribute.Key("archive.index.count")
)

// Tracer returns the project-wide OTel tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan creates a new span with the given name and optional attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// SetSpanError records an error on the span and sets its status to Error.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK sets the span status to OK.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// EndSpan finishes a span, marking it failed when err is non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		SetSpanError(span, err)
	} else {
		SetSpanOK(span)
	}
	span.End()
}
