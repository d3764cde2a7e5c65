package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestEventMetaRoundTripsThroughHeaders(t *testing.T) {
	meta := EventMeta{EventID: "evt-1", EventType: "appointment.booked", AggregateID: "appt-9"}
	msg := kafka.Message{Topic: "appointment.booked", Headers: meta.Headers()}

	got := ExtractEventMeta(msg)
	if got != meta {
		t.Fatalf("expected %+v, got %+v", meta, got)
	}
}

func TestExtractEventMetaFallbacks(t *testing.T) {
	got := ExtractEventMeta(kafka.Message{Topic: "appointment.cancelled", Key: []byte("appt-1")})
	if got.EventID != "appt-1" || got.EventType != "appointment.cancelled" {
		t.Fatalf("unexpected fallback meta: %+v", got)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka:9092, ,kafka2:9092 ")
	if len(got) != 2 || got[0] != "kafka:9092" || got[1] != "kafka2:9092" {
		t.Fatalf("unexpected brokers: %#v", got)
	}
}

func TestTraceHeadersPropagate(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, nil)
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	out := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if out.TraceID() != traceID {
		t.Fatalf("expected trace id %s, got %s", traceID, out.TraceID())
	}
}
