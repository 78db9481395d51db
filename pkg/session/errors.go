package session

import "errors"

// These sentinels name the package's error conditions. No function in this
// package returns or wraps any of them.
var (
	// ErrVADNotConfigured names a session built without a VAD engine.
	ErrVADNotConfigured = errors.New("VAD engine not configured")

	// ErrASRNotConfigured names a session built without an ASR engine.
	ErrASRNotConfigured = errors.New("ASR engine not configured")

	// ErrEmptyTranscription marks an ASR call that returned an empty string.
	ErrEmptyTranscription = errors.New("transcription returned empty text")

	// ErrTranscriptionFailed names an ASR engine error on the committed path.
	ErrTranscriptionFailed = errors.New("speech-to-text transcription failed")

	// ErrVADFailed names a VAD engine error on a processing window.
	ErrVADFailed = errors.New("voice activity detection failed")

	// ErrUtteranceTooShort marks a finalized utterance below the minimum
	// committable duration (2 chunks, ~200ms).
	ErrUtteranceTooShort = errors.New("utterance shorter than minimum committable duration")

	// ErrConnectionInactive names an operation attempted after a connection
	// has been marked inactive (disconnect, idle timeout, shutdown).
	ErrConnectionInactive = errors.New("connection is no longer active")

	// ErrInvalidConfig names a rejected runtime vad_config update.
	ErrInvalidConfig = errors.New("invalid configuration update")
)
