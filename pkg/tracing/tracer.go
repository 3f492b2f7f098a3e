// Package tracing provides a shared OTel tracer helper for the engine's
// tick loop and any other instrumented package.
//
// When no TracerProvider is registered (tests, or a run with OTel turned
// off) the global no-op provider is used automatically and every call is
// inert with zero overhead. Callers should use tracing.Start rather than
// the OTel API directly.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "worldforge"

// Start creates a new OTel span as a child of the span in ctx, or a root
// span when ctx carries no active span. The caller MUST call span.End()
// when the operation is done (typically via defer span.End()).
//
// Example:
//
//	ctx, span := tracing.Start(ctx, "engine.tick",
//	    attribute.Int("worldforge.tick", tick),
//	)
//	defer span.End()
func Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}
