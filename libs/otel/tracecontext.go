package otelx

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
)

// Outbox rows always hold W3C headers, independent of the global propagator.
var w3c propagation.TraceContext

// TraceContext is the W3C trace context of a span in the form persisted next to an outbox event.
type TraceContext struct {
	Parent string
	State  string
}

// CaptureTrace returns the trace context of the span active in ctx. It is zero when ctx carries
// no valid span.
func CaptureTrace(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	w3c.Inject(ctx, carrier)
	return TraceContext{Parent: carrier.Get("traceparent"), State: carrier.Get("tracestate")}
}

func (tc TraceContext) IsZero() bool {
	return tc.Parent == ""
}

// Attach returns ctx with tc as its remote parent span. A zero or malformed tc leaves ctx as is.
func (tc TraceContext) Attach(ctx context.Context) context.Context {
	if tc.IsZero() {
		return ctx
	}
	return w3c.Extract(ctx, propagation.MapCarrier{"traceparent": tc.Parent, "tracestate": tc.State})
}
