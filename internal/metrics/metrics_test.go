package metrics

import (
	"context"
	"testing"
	"time"
)

// New registers its exporter against the global Prometheus registry, so
// only one instance is built for this whole test binary; exercise every
// recording method against it rather than calling New() repeatedly.
func TestMetrics_RecordingMethodsDoNotPanic(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("unexpected error building metrics: %v", err)
	}

	ctx := context.Background()
	m.ConnectionOpened(ctx)
	m.ConnectionClosed(ctx)
	m.UtteranceStarted(ctx)
	m.UtteranceEnded(ctx, 2*time.Second)
	m.ASRCall(ctx, "groq", true)
	m.ASRCall(ctx, "groq", false)

	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected error shutting down metrics: %v", err)
	}
}
