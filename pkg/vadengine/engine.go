// Package vadengine provides concrete implementations of the process-wide
// VAD Engine singleton (session.VADEngine): a pure function from a window
// of normalized PCM samples to a speech/non-speech verdict.
package vadengine

import "context"

// Engine is re-declared here (rather than imported from pkg/session) to
// keep this package importable without pulling in the full session
// pipeline; session.VADEngine is structurally identical and any Engine
// here satisfies it.
type Engine interface {
	Score(ctx context.Context, samples []float32, threshold float64) (bool, error)
	Name() string
}
