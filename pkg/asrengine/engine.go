// Package asrengine provides concrete, HTTP-backed implementations of the
// process-wide ASR Engine singleton (session.ASREngine): a pure function
// mapping a PCM buffer plus optional hotwords and a token budget to a
// transcript. Each implementation adapts one of the teacher repository's
// STT provider adapters onto that contract.
package asrengine

import (
	"context"

	"github.com/sonicscribe/sonicscribe/pkg/session"
)

// Engine is the contract every provider adapter in this package satisfies.
// It is defined in terms of session.TranscribeOptions (rather than a
// locally declared options type) so that every concrete engine here
// satisfies session.ASREngine directly, with no adapter shim required at
// the call site in cmd/server.
type Engine interface {
	Transcribe(ctx context.Context, pcm []byte, opts Options) (string, error)
	Name() string
}

// Options is an alias for session.TranscribeOptions: the per-call knobs
// forwarded from the Transcription Coordinator (§4.4).
type Options = session.TranscribeOptions
