package session

// Segmenter implements the hysteresis + adaptive-threshold state machine
// from SPEC_FULL.md §4.3. It is transport-agnostic: both the live,
// ticker-driven VAD Controller and the one-shot batch-file scan (§6) drive
// the identical logic, one window verdict at a time, so segmentation
// behavior never diverges between the streaming and batch paths.
type Segmenter struct {
	cfg AudioConfig

	currentThreshold float64
	speaking         bool
	speechCount      int
	silenceCount     int
}

// NewSegmenter builds a Segmenter with the threshold initialized to
// cfg.VADThresholdInitial.
func NewSegmenter(cfg AudioConfig) *Segmenter {
	return &Segmenter{
		cfg:              cfg,
		currentThreshold: clamp(cfg.VADThresholdInitial, cfg.VADThresholdMin, cfg.VADThresholdMax),
	}
}

// Transition is the outcome of feeding one window verdict into the
// segmenter: whether an utterance boundary fired and the segmenter's state
// after processing.
type Transition struct {
	Started   bool
	Ended     bool
	Speaking  bool
	Threshold float64
}

// Threshold returns the current adaptive threshold.
func (s *Segmenter) Threshold() float64 { return s.currentThreshold }

// Speaking reports the current speaking state.
func (s *Segmenter) Speaking() bool { return s.speaking }

// Process advances the state machine by one window verdict (is_speech) and
// returns the resulting transition. Counters are clamped to [0, w], where w
// is the smoothing window size (VAD_SMOOTHING_WINDOW).
func (s *Segmenter) Process(isSpeech bool) Transition {
	w := s.cfg.VADSmoothingWindow
	step := s.cfg.VADThresholdStep

	if isSpeech {
		s.speechCount = minInt(s.speechCount+1, w)
		s.silenceCount = maxInt(0, s.silenceCount-1)
	} else {
		s.silenceCount = minInt(s.silenceCount+1, w)
		s.speechCount = maxInt(0, s.speechCount-1)
	}

	t := Transition{}

	switch {
	case !s.speaking && s.speechCount >= 1:
		s.speaking = true
		t.Started = true
		s.currentThreshold = clamp(s.currentThreshold+step, s.cfg.VADThresholdMin, s.cfg.VADThresholdMax)
	case s.speaking && s.speechCount > 0:
		s.currentThreshold = clamp(s.currentThreshold+0.3*step, s.cfg.VADThresholdMin, s.cfg.VADThresholdMax)
	case s.speaking && s.silenceCount >= w:
		s.speaking = false
		t.Ended = true
		s.currentThreshold = s.cfg.VADThresholdMin
	case !s.speaking && s.silenceCount >= w:
		s.currentThreshold = s.cfg.VADThresholdMin
	}

	t.Speaking = s.speaking
	t.Threshold = s.currentThreshold
	return t
}

// Reset restores the segmenter to its initial state. Note this is NOT
// called when the VAD engine errors on a window (§4.3 failure policy only
// clears the frame accumulator, leaving speaking/threshold/counters
// unchanged); it exists for callers that need a full restart, e.g. tests
// and a fresh batch-file scan.
func (s *Segmenter) Reset() {
	s.currentThreshold = clamp(s.cfg.VADThresholdInitial, s.cfg.VADThresholdMin, s.cfg.VADThresholdMax)
	s.speaking = false
	s.speechCount = 0
	s.silenceCount = 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
