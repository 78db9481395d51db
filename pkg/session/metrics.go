package session

import (
	"context"
	"time"
)

// Metrics is the optional, process-wide instrumentation sink a Session, its
// VADController and its Coordinator report to. A Session built by New uses
// noOpMetrics until SetMetrics is called, so instrumentation is always safe
// to omit in tests.
// internal/metrics.Metrics satisfies this interface structurally.
type Metrics interface {
	UtteranceStarted(ctx context.Context)
	UtteranceEnded(ctx context.Context, duration time.Duration)
	ASRCall(ctx context.Context, provider string, success bool)
	ConnectionClosed(ctx context.Context)
}

type noOpMetrics struct{}

func (noOpMetrics) UtteranceStarted(ctx context.Context)                       {}
func (noOpMetrics) UtteranceEnded(ctx context.Context, duration time.Duration) {}
func (noOpMetrics) ASRCall(ctx context.Context, provider string, success bool) {}
func (noOpMetrics) ConnectionClosed(ctx context.Context)                       {}
