package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestGetTraceIDAndSpanIDReturnEmptyWithoutActiveSpan(t *testing.T) {
	if got := GetTraceID(context.Background()); got != "" {
		t.Fatalf("GetTraceID = %q, want empty", got)
	}
	if got := GetSpanID(context.Background()); got != "" {
		t.Fatalf("GetSpanID = %q, want empty", got)
	}
}

func TestGetTraceIDAndSpanIDReadActiveSpanContext(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatalf("TraceIDFromHex: %v", err)
	}
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if err != nil {
		t.Fatalf("SpanIDFromHex: %v", err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	if got := GetTraceID(ctx); got != traceID.String() {
		t.Fatalf("GetTraceID = %q, want %q", got, traceID.String())
	}
	if got := GetSpanID(ctx); got != spanID.String() {
		t.Fatalf("GetSpanID = %q, want %q", got, spanID.String())
	}
}

func TestInjectTraceContextRoundTripsThroughGetTraceID(t *testing.T) {
	prior := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prior)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	tc := TraceContext{
		TraceParent: "00-" + traceID.String() + "-" + spanID.String() + "-01",
	}

	ctx := InjectTraceContext(context.Background(), tc)
	if got := GetTraceID(ctx); got != traceID.String() {
		t.Fatalf("GetTraceID after inject = %q, want %q", got, traceID.String())
	}
}
