package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordUpload("sent", 10)
	m.RecordMessage(10)
	m.SetGalleryImages(1)
	m.RecordEvictions(1)
	m.SetObjectURLs(1)
	m.SetConnectionState(1)
	m.SetQueueDepth(1)
	m.RecordQueuedDropped(1)
	m.RecordWebSocketError("read")
	m.RecordArchive(nil)
}

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))

	m.RecordUpload("sent", 10)
	m.RecordUpload("sent", 20)
	m.RecordUpload("no_file", 0)
	if got := counterValue(t, m.uploadsTotal.WithLabelValues("sent")); got != 2 {
		t.Errorf("uploads sent = %v, want 2", got)
	}
	if got := counterValue(t, m.uploadsTotal.WithLabelValues("no_file")); got != 1 {
		t.Errorf("uploads no_file = %v, want 1", got)
	}
	if got := histogramCount(t, m.uploadBytes); got != 2 {
		t.Errorf("upload_bytes count = %d, want 2 (zero sizes are not observed)", got)
	}

	m.RecordMessage(100)
	if got := counterValue(t, m.messagesTotal); got != 1 {
		t.Errorf("messages = %v, want 1", got)
	}

	m.SetGalleryImages(3)
	m.SetObjectURLs(4)
	m.SetConnectionState(1)
	m.SetQueueDepth(2)
	if gaugeValue(t, m.galleryImages) != 3 || gaugeValue(t, m.objectURLsLive) != 4 ||
		gaugeValue(t, m.connectionState) != 1 || gaugeValue(t, m.sendQueueDepth) != 2 {
		t.Error("gauge values not recorded")
	}

	m.RecordEvictions(0)
	m.RecordEvictions(2)
	if got := counterValue(t, m.galleryEvictions); got != 2 {
		t.Errorf("evictions = %v, want 2", got)
	}

	m.RecordArchive(nil)
	m.RecordArchive(errors.New("disk full"))
	if counterValue(t, m.archiveWrites.WithLabelValues("success")) != 1 ||
		counterValue(t, m.archiveWrites.WithLabelValues("error")) != 1 {
		t.Error("archive writes not recorded by status")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "test_uploads_total" {
			found = true
		}
	}
	if !found {
		t.Error("namespace option not applied")
	}
}

func TestSpansWithNoopProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "submit", attribute.String("lens.file", "a.png"))
	if ctx == nil || span == nil {
		t.Fatal("StartSpan returned nil")
	}
	EndSpan(span, errors.New("boom"))

	_, span = StartSpan(context.Background(), "message")
	EndSpan(span, nil)
}

func TestStartSpanIsInternal(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		tp.Shutdown(context.Background())
	})

	_, span := StartSpan(context.Background(), "message", attribute.Int("lens.message.size", 3))
	EndSpan(span, errors.New("boom"))

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(ended))
	}
	s := ended[0]
	if s.Name() != "lens.message" {
		t.Errorf("Name() = %q, want lens.message", s.Name())
	}
	if s.SpanKind() != trace.SpanKindInternal {
		t.Errorf("SpanKind() = %v, want internal", s.SpanKind())
	}
	if s.Status().Code != codes.Error || s.Status().Description != "boom" {
		t.Errorf("Status() = %+v, want error boom", s.Status())
	}
}

func TestMetricsOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(
		WithRegistry(reg),
		WithConstLabels(prometheus.Labels{"site": "lab"}),
		WithBuckets([]float64{10, 100}),
	)
	m.RecordMessage(50)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "lens_message_bytes" {
			continue
		}
		metric := f.GetMetric()[0]
		if got := metric.GetLabel(); len(got) != 1 || got[0].GetName() != "site" || got[0].GetValue() != "lab" {
			t.Errorf("labels = %v, want site=lab", got)
		}
		if got := len(metric.GetHistogram().GetBucket()); got != 2 {
			t.Errorf("histogram has %d buckets, want 2", got)
		}
		return
	}
	t.Error("lens_message_bytes not gathered")
}
