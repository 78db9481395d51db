package session

import "testing"

func testAudioConfig() AudioConfig {
	cfg := DefaultAudioConfig()
	cfg.VADSmoothingWindow = 2
	cfg.VADThresholdMin = 0.3
	cfg.VADThresholdMax = 0.9
	cfg.VADThresholdStep = 0.1
	cfg.VADThresholdInitial = 0.3
	return cfg
}

func TestSegmenter_StartsAfterOneSpeechFrame(t *testing.T) {
	seg := NewSegmenter(testAudioConfig())
	tr := seg.Process(true)
	if !tr.Started {
		t.Fatalf("expected utterance to start on first speech verdict")
	}
	if !tr.Speaking {
		t.Fatalf("expected speaking=true after start")
	}
}

func TestSegmenter_SilentStreamNeverStarts(t *testing.T) {
	seg := NewSegmenter(testAudioConfig())
	for i := 0; i < 20; i++ {
		tr := seg.Process(false)
		if tr.Started || tr.Speaking {
			t.Fatalf("silent stream must never start an utterance (iteration %d)", i)
		}
	}
}

func TestSegmenter_EndsAfterSmoothingWindowOfSilence(t *testing.T) {
	seg := NewSegmenter(testAudioConfig())
	seg.Process(true) // start

	for i := 0; i < seg.cfg.VADSmoothingWindow-1; i++ {
		tr := seg.Process(false)
		if tr.Ended {
			t.Fatalf("ended too early at silence index %d", i)
		}
	}
	tr := seg.Process(false)
	if !tr.Ended {
		t.Fatalf("expected utterance to end after %d silence windows", seg.cfg.VADSmoothingWindow)
	}
}

func TestSegmenter_HysteresisAbsorbsBriefDropout(t *testing.T) {
	// A single silent window inside an ongoing utterance must not end it:
	// the smoothing window is 2, so a 1-window dropout doesn't flip state.
	seg := NewSegmenter(testAudioConfig())
	seg.Process(true)
	seg.Process(true)
	tr := seg.Process(false) // one silent window, hysteresis absorbs it
	if tr.Ended {
		t.Fatalf("single silent window must not end the utterance")
	}
	if !tr.Speaking {
		t.Fatalf("utterance must remain open through a brief dropout")
	}
}

func TestSegmenter_ThresholdRampsUpWhileSpeakingThenResetsOnSilence(t *testing.T) {
	seg := NewSegmenter(testAudioConfig())
	start := seg.Threshold()

	seg.Process(true)
	afterStart := seg.Threshold()
	if afterStart <= start {
		t.Fatalf("threshold should ramp up on utterance start: before=%v after=%v", start, afterStart)
	}

	seg.Process(true)
	afterConfirm := seg.Threshold()
	if afterConfirm <= afterStart {
		t.Fatalf("threshold should keep ramping while speech is confirmed: before=%v after=%v", afterStart, afterConfirm)
	}

	for i := 0; i < seg.cfg.VADSmoothingWindow; i++ {
		seg.Process(false)
	}
	if seg.Threshold() != seg.cfg.VADThresholdMin {
		t.Fatalf("threshold must reset to minimum once silence ends the utterance, got %v", seg.Threshold())
	}
}

func TestSegmenter_ThresholdNeverExceedsMax(t *testing.T) {
	seg := NewSegmenter(testAudioConfig())
	for i := 0; i < 100; i++ {
		seg.Process(true)
	}
	if seg.Threshold() > seg.cfg.VADThresholdMax {
		t.Fatalf("threshold exceeded max: %v > %v", seg.Threshold(), seg.cfg.VADThresholdMax)
	}
}

func TestSegmenter_Reset(t *testing.T) {
	seg := NewSegmenter(testAudioConfig())
	seg.Process(true)
	seg.Process(true)

	seg.Reset()

	if seg.Speaking() {
		t.Fatalf("expected speaking=false after reset")
	}
	if seg.Threshold() != clamp(seg.cfg.VADThresholdInitial, seg.cfg.VADThresholdMin, seg.cfg.VADThresholdMax) {
		t.Fatalf("expected threshold reset to initial, got %v", seg.Threshold())
	}
}
