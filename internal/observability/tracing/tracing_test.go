package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return exporter
}

func TestStartPhase(t *testing.T) {
	exporter := installRecorder(t)

	_, span := StartPhase(context.Background(), "ideate", attribute.String("topic", "fintech"))
	RecordError(span, errors.New("model refused"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "cycle.ideate" {
		t.Errorf("expected span name 'cycle.ideate', got %q", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
	found := false
	for _, a := range spans[0].Attributes {
		if a.Key == "topic" && a.Value.AsString() == "fintech" {
			found = true
		}
	}
	if !found {
		t.Error("topic attribute not found")
	}
}

func TestRecordError_NilIsNoop(t *testing.T) {
	exporter := installRecorder(t)

	_, span := StartPhase(context.Background(), "summarize")
	RecordError(span, nil)
	span.End()

	if got := exporter.GetSpans()[0].Status.Code; got != codes.Unset {
		t.Errorf("expected unset status, got %v", got)
	}
}

func TestTransport_InjectsTraceContext(t *testing.T) {
	exporter := installRecorder(t)

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(nil)}
	ctx, parent := StartPhase(context.Background(), "analyze")
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/analyze", nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = resp.Body.Close()
	parent.End()

	if traceparent == "" {
		t.Fatal("expected traceparent header on outbound request")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected client and phase spans, got %d", len(spans))
	}
	client0 := spans[0]
	if client0.Name != "POST /analyze" {
		t.Errorf("expected 'POST /analyze', got %q", client0.Name)
	}
	if client0.Parent.SpanID() != parent.SpanContext().SpanID() {
		t.Error("client span must be a child of the phase span")
	}
	if client0.Status.Code != codes.Error {
		t.Errorf("expected error status for 502, got %v", client0.Status.Code)
	}
}
