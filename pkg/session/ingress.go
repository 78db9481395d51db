package session

import "time"

// Ingress applies the Frame normalization rules of §4.1 to an arbitrary-
// sized binary payload and appends the resulting frames to ring. It does
// not track activity; Session.Ingest updates the last-activity time.
type Ingress struct {
	cfg    AudioConfig
	ring   *RingBuffer
	logger Logger
}

// NewIngress builds an Ingress over ring using cfg's chunk size.
func NewIngress(cfg AudioConfig, ring *RingBuffer, logger Logger) *Ingress {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Ingress{cfg: cfg, ring: ring, logger: logger}
}

// Admit normalizes payload per §4.1 and appends each resulting frame to the
// ring buffer, returning the frames admitted (zero, one, or many).
func (in *Ingress) Admit(payload []byte, now time.Time) []*Frame {
	if len(payload) == 0 {
		in.logger.Warn("empty frame payload discarded")
		return nil
	}

	chunkSize := in.cfg.ChunkSize()

	switch {
	case len(payload) == chunkSize:
		return []*Frame{in.ring.Append(payload, now)}

	case len(payload) < chunkSize:
		padded := make([]byte, chunkSize)
		copy(padded, payload)
		return []*Frame{in.ring.Append(padded, now)}

	default:
		n := len(payload) / chunkSize
		out := make([]*Frame, 0, n)
		for i := 0; i < n; i++ {
			chunk := payload[i*chunkSize : (i+1)*chunkSize]
			out = append(out, in.ring.Append(chunk, now))
		}
		// Any trailing partial chunk shorter than chunkSize is dropped,
		// not carried across messages (§4.1 rule 4; preserved verbatim
		// per the original spec's own open-question note).
		return out
	}
}
