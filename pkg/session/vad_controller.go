package session

import (
	"context"
	"time"
)

// VADController is the live, ticker-driven wrapper around Segmenter: it
// accumulates unprocessed frames into fixed-size windows, calls the VAD
// Engine, and drives utterance open/close against the Ring Buffer,
// publishing events to onEvent. Grounded on the accumulate-until-full-
// window pattern used by windowed VAD processors throughout the corpus
// (drain a fixed number of frames per tick, keep the remainder for next
// time).
type VADController struct {
	cfg     AudioConfig
	ring    *RingBuffer
	engine  VADEngine
	seg     *Segmenter
	logger  Logger
	metrics Metrics
	onEvent func(Event)

	accumulator []*Frame
}

// NewVADController builds a controller over ring, scoring windows with
// engine and publishing events via onEvent.
func NewVADController(cfg AudioConfig, ring *RingBuffer, engine VADEngine, logger Logger, onEvent func(Event)) *VADController {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &VADController{
		cfg:     cfg,
		ring:    ring,
		engine:  engine,
		seg:     NewSegmenter(cfg),
		logger:  logger,
		metrics: noOpMetrics{},
		onEvent: onEvent,
	}
}

// SetMetrics installs the instrumentation sink consulted on utterance
// start/end transitions. Passing nil restores the no-op default.
func (c *VADController) SetMetrics(m Metrics) {
	if m == nil {
		m = noOpMetrics{}
	}
	c.metrics = m
}

// Threshold exposes the segmenter's current adaptive threshold.
func (c *VADController) Threshold() float64 { return c.seg.Threshold() }

// Speaking exposes the segmenter's current speaking state.
func (c *VADController) Speaking() bool { return c.seg.Speaking() }

// UpdateConfig swaps the underlying smoothing-window / threshold bounds at
// runtime (handling the vad_config control message). The adaptive
// threshold is re-clamped against the new bounds.
func (c *VADController) UpdateConfig(cfg AudioConfig) {
	c.cfg = cfg
	c.seg.cfg = cfg
	c.seg.currentThreshold = clamp(c.seg.currentThreshold, cfg.VADThresholdMin, cfg.VADThresholdMax)
}

// Run drives the ticker loop until ctx is cancelled. Each tick pulls newly
// unprocessed frames from the ring buffer, appends them to the
// accumulator, and processes as many full windows as are available.
func (c *VADController) Run(ctx context.Context) {
	period := time.Duration(c.cfg.ChunkDurationMS) * time.Millisecond
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *VADController) tick(ctx context.Context) {
	fresh := c.ring.RecentUnprocessed(c.cfg.VADProcessWindow * 4)
	if len(fresh) > 0 {
		c.accumulator = append(c.accumulator, fresh...)
		ids := make([]int64, len(fresh))
		for i, f := range fresh {
			ids[i] = f.FrameID
		}
		c.ring.MarkProcessed(ids...)
	}

	for len(c.accumulator) >= c.cfg.VADProcessWindow {
		window := c.accumulator[:c.cfg.VADProcessWindow]
		c.accumulator = c.accumulator[c.cfg.VADProcessWindow:]
		c.processWindow(ctx, window)
	}
}

func (c *VADController) processWindow(ctx context.Context, window []*Frame) {
	samples := pcmToFloat(concatPCM(window))

	isSpeech, err := c.engine.Score(ctx, samples, c.seg.Threshold())
	if err != nil {
		c.logger.Warn("vad engine error, clearing accumulator", "error", err)
		c.accumulator = nil
		return
	}

	t := c.seg.Process(isSpeech)
	now := time.Now()

	switch {
	case t.Started:
		u := c.ring.StartUtterance(window[0].FrameID, now)
		c.metrics.UtteranceStarted(ctx)
		c.publish(Event{Type: EventUtteranceStarted, Timestamp: now, Data: u})
	case t.Ended:
		last := window[len(window)-1]
		u := c.ring.FinalizeUtterance(last.FrameID, now)
		if u != nil {
			c.metrics.UtteranceEnded(ctx, u.Duration())
			c.publish(Event{Type: EventUtteranceEnded, Timestamp: now, Data: u})
		}
	default:
		if t.Speaking {
			c.publish(Event{Type: EventUtteranceExtended, Timestamp: now, Data: c.ring.OpenUtterance()})
		}
	}
}

func (c *VADController) publish(e Event) {
	if c.onEvent != nil {
		c.onEvent(e)
	}
}

func concatPCM(frames []*Frame) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, f.PCM...)
	}
	return out
}

// pcmToFloat converts little-endian int16 PCM to float32 samples in
// [-1, 1], the normalization the VAD Engine contract requires.
func pcmToFloat(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		sample := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		out[i] = float32(sample) / 32768.0
	}
	return out
}
