package session

import (
	"testing"
	"time"
)

func ingressConfig() AudioConfig {
	cfg := DefaultAudioConfig()
	return cfg
}

func TestIngress_ExactChunkSizeAdmitsOneFrame(t *testing.T) {
	cfg := ingressConfig()
	rb := NewRingBuffer(cfg)
	in := NewIngress(cfg, rb, nil)

	payload := make([]byte, cfg.ChunkSize())
	frames := in.Admit(payload, time.Now())

	if len(frames) != 1 {
		t.Fatalf("expected exactly one admitted frame, got %d", len(frames))
	}
	if len(frames[0].PCM) != cfg.ChunkSize() {
		t.Fatalf("expected admitted frame to keep the chunk size, got %d bytes", len(frames[0].PCM))
	}
}

func TestIngress_UndersizedPayloadIsZeroPadded(t *testing.T) {
	cfg := ingressConfig()
	rb := NewRingBuffer(cfg)
	in := NewIngress(cfg, rb, nil)

	payload := []byte{0x01, 0x02, 0x03}
	frames := in.Admit(payload, time.Now())

	if len(frames) != 1 {
		t.Fatalf("expected one admitted frame, got %d", len(frames))
	}
	if len(frames[0].PCM) != cfg.ChunkSize() {
		t.Fatalf("expected padded frame of chunk size, got %d bytes", len(frames[0].PCM))
	}
	for i, b := range payload {
		if frames[0].PCM[i] != b {
			t.Fatalf("expected leading bytes preserved, byte %d: expected %x got %x", i, b, frames[0].PCM[i])
		}
	}
	for i := len(payload); i < len(frames[0].PCM); i++ {
		if frames[0].PCM[i] != 0 {
			t.Fatalf("expected trailing bytes zero-padded, byte %d was %x", i, frames[0].PCM[i])
		}
	}
}

func TestIngress_OversizedPayloadSplitsIntoMultipleFramesAndDropsTrailer(t *testing.T) {
	cfg := ingressConfig()
	rb := NewRingBuffer(cfg)
	in := NewIngress(cfg, rb, nil)

	chunkSize := cfg.ChunkSize()
	payload := make([]byte, chunkSize*2+10) // two full frames plus a short trailer
	frames := in.Admit(payload, time.Now())

	if len(frames) != 2 {
		t.Fatalf("expected 2 full frames admitted and the trailer dropped, got %d", len(frames))
	}
}

func TestIngress_EmptyPayloadAdmitsNothing(t *testing.T) {
	cfg := ingressConfig()
	rb := NewRingBuffer(cfg)
	in := NewIngress(cfg, rb, nil)

	frames := in.Admit(nil, time.Now())
	if frames != nil {
		t.Fatalf("expected no frames admitted for an empty payload, got %d", len(frames))
	}
}
