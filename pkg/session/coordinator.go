package session

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// minCommitBytes is 2*CHUNK_SIZE (~200ms); utterances shorter than this are
// dropped on the committed path (§4.4 step 2).
func minCommitBytes(cfg AudioConfig) int {
	return 2 * cfg.ChunkSize()
}

// Coordinator is the Transcription Coordinator: it schedules tentative ASR
// calls at 1Hz while an utterance is open, and a committed ASR call (split
// into sub-segments for long utterances) when the utterance ends.
// Grounded on managed_stream.go's per-turn instrumentation and
// generation-counter idiom for invalidating stale async work.
type Coordinator struct {
	cfg     AudioConfig
	ring    *RingBuffer
	engine  ASREngine
	logger  Logger
	metrics Metrics
	emit    func(Event)

	mu                    sync.Mutex
	lastTentativeEmitTime time.Time
	accumulatedText       string
	generation            int // bumped on utterance_started and utterance_ended; invalidates in-flight tentative results
	hotwords              []string
}

// SetHotwords replaces the hotword list consulted on every subsequent ASR
// call. Input is normalized per §4.4 (trim, lowercase, dedupe, cap at 10).
func (co *Coordinator) SetHotwords(hotwords []string) {
	normalized := NormalizeHotwords(hotwords)
	co.mu.Lock()
	co.hotwords = normalized
	co.mu.Unlock()
}

func (co *Coordinator) currentHotwords() []string {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.hotwords
}

func (co *Coordinator) currentMetrics() Metrics {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.metrics
}

// NewCoordinator builds a coordinator over ring, using engine for
// transcription and publishing results via emit.
func NewCoordinator(cfg AudioConfig, ring *RingBuffer, engine ASREngine, logger Logger, emit func(Event)) *Coordinator {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Coordinator{
		cfg:     cfg,
		ring:    ring,
		engine:  engine,
		logger:  logger,
		metrics: noOpMetrics{},
		emit:    emit,
	}
}

// SetMetrics installs the instrumentation sink consulted after every ASR
// engine call. Passing nil restores the no-op default.
func (co *Coordinator) SetMetrics(m Metrics) {
	if m == nil {
		m = noOpMetrics{}
	}
	co.mu.Lock()
	co.metrics = m
	co.mu.Unlock()
}

// HandleEvent reacts to VAD Controller events. Call from the same
// goroutine the controller publishes on, or serialize externally — the
// coordinator itself only locks its own scheduling state.
func (co *Coordinator) HandleEvent(ctx context.Context, e Event) {
	switch e.Type {
	case EventUtteranceStarted:
		co.mu.Lock()
		co.accumulatedText = ""
		co.generation++
		co.mu.Unlock()
	case EventUtteranceEnded:
		co.mu.Lock()
		co.generation++ // invalidate any tentative call already in flight for this utterance
		co.mu.Unlock()
		u, _ := e.Data.(*Utterance)
		if u != nil {
			go co.commit(ctx, u)
		}
	}
}

// MaybeTentative is driven by the connection's 1Hz timer while an
// utterance is open (§4.4 tentative path). It is a no-op if less than one
// second has elapsed since the last tentative emission, or if no utterance
// is open.
func (co *Coordinator) MaybeTentative(ctx context.Context) {
	open := co.ring.OpenUtterance()
	if open == nil {
		return
	}

	co.mu.Lock()
	if !co.lastTentativeEmitTime.IsZero() && time.Since(co.lastTentativeEmitTime) < time.Second {
		co.mu.Unlock()
		return
	}
	co.lastTentativeEmitTime = time.Now()
	gen := co.generation
	co.mu.Unlock()

	latest := co.ring.LatestFrameID()
	lo := latest - int64(co.cfg.TemporaryIntervalFrames) + 1
	if lo < open.StartFrameID {
		lo = open.StartFrameID
	}
	frames := co.ring.Range(lo, latest)
	if len(frames) == 0 {
		return
	}

	start := time.Now()
	pcm := concatPCM(frames)
	text, err := co.engine.Transcribe(ctx, pcm, TranscribeOptions{MaxNewTokens: 15, Hotwords: co.currentHotwords()})
	co.currentMetrics().ASRCall(ctx, co.engine.Name(), err == nil)
	if err != nil {
		co.logger.Debug("tentative transcription suppressed", "error", err)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	co.mu.Lock()
	if gen != co.generation {
		co.mu.Unlock()
		return // stale: utterance already ended/restarted
	}
	co.accumulatedText += text
	accumulated := co.accumulatedText
	co.mu.Unlock()

	co.publish(Event{
		Type:      EventTentativeOutput,
		Timestamp: time.Now(),
		Data: TentativeOutput{
			CurrentText:     text,
			AccumulatedText: accumulated,
			StartChunkID:    frames[0].FrameID,
			EndChunkID:      frames[len(frames)-1].FrameID,
			Duration:        frames[len(frames)-1].CapturedAt.Sub(frames[0].CapturedAt),
			Timestamp:       time.Now(),
			ProcessingDelay: time.Since(start),
		},
	})
}

// commit runs the committed path for a just-finalized utterance (§4.4).
func (co *Coordinator) commit(ctx context.Context, u *Utterance) {
	pcm := co.ring.CommitPCM(u)

	if len(pcm) < minCommitBytes(co.cfg) {
		co.logger.Warn("utterance too short to transcribe, dropping", "utterance_id", u.ID, "bytes", len(pcm))
		return
	}

	durationS := u.Duration().Seconds()
	maxSegS := float64(co.cfg.MaxSegmentDurationS)

	hotwords := co.currentHotwords()

	if durationS <= maxSegS {
		tokens := clampInt(int(50+5*durationS), 50, 200)
		text, err := co.engine.Transcribe(ctx, pcm, TranscribeOptions{MaxNewTokens: tokens, Hotwords: hotwords})
		co.currentMetrics().ASRCall(ctx, co.engine.Name(), err == nil)
		if err != nil {
			co.logger.Error("committed transcription failed", "utterance_id", u.ID, "error", err)
			return
		}
		u.Transcript = text
		co.publish(Event{
			Type:      EventCommittedOutput,
			Timestamp: time.Now(),
			Data: CommittedOutput{
				Text:         text,
				SegmentID:    u.ID,
				StartChunkID: u.StartFrameID,
				EndChunkID:   u.EndFrameID,
				StartTime:    u.StartTime,
				EndTime:      u.EndTime,
				Duration:     u.Duration(),
				Timestamp:    time.Now(),
				AudioLength:  len(pcm),
			},
		})
		return
	}

	// Over-long utterance: split into contiguous sub-segments of at most
	// MaxSegmentDurationS each and transcribe independently, in order.
	segments := splitPCM(pcm, co.cfg, u.Duration())
	var transcripts []string
	for i, seg := range segments {
		tokens := clampInt(int(50+5*seg.duration.Seconds()), 50, 200)
		text, err := co.engine.Transcribe(ctx, seg.pcm, TranscribeOptions{MaxNewTokens: tokens, Hotwords: hotwords})
		co.currentMetrics().ASRCall(ctx, co.engine.Name(), err == nil)
		if err != nil {
			co.logger.Error("committed sub-segment transcription failed", "utterance_id", u.ID, "index", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			transcripts = append(transcripts, text)
		}

		segStart := u.StartTime.Add(seg.offset)
		segEnd := segStart.Add(seg.duration)
		co.publish(Event{
			Type:      EventCommittedOutput,
			Timestamp: time.Now(),
			Data: CommittedOutput{
				Text:         text,
				SegmentID:    u.ID + "_part_" + strconv.Itoa(i+1),
				StartChunkID: u.StartFrameID,
				EndChunkID:   u.EndFrameID,
				StartTime:    segStart,
				EndTime:      segEnd,
				Duration:     seg.duration,
				Timestamp:    time.Now(),
				AudioLength:  len(seg.pcm),
			},
		})
	}
	u.Transcript = strings.Join(transcripts, " ")
}

func (co *Coordinator) publish(e Event) {
	if co.emit != nil {
		co.emit(e)
	}
}

type pcmSegment struct {
	pcm      []byte
	offset   time.Duration
	duration time.Duration
}

// splitPCM divides pcm into ceil(len(pcm)/maxSegBytes) contiguous
// sub-segments of at most MaxSegmentDurationS each, where maxSegBytes is
// MaxSegmentDurationS times the byte rate (SampleRate * 2).
func splitPCM(pcm []byte, cfg AudioConfig, totalDuration time.Duration) []pcmSegment {
	bytesPerSecond := cfg.SampleRate * 2
	maxSegBytes := cfg.MaxSegmentDurationS * bytesPerSecond

	numSegs := (len(pcm) + maxSegBytes - 1) / maxSegBytes
	if numSegs < 1 {
		numSegs = 1
	}

	segs := make([]pcmSegment, 0, numSegs)
	offsetBytes := 0
	for offsetBytes < len(pcm) {
		end := offsetBytes + maxSegBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		segBytes := pcm[offsetBytes:end]
		segs = append(segs, pcmSegment{
			pcm:      segBytes,
			offset:   bytesToDuration(offsetBytes, bytesPerSecond),
			duration: bytesToDuration(len(segBytes), bytesPerSecond),
		})
		offsetBytes = end
	}
	return segs
}

func bytesToDuration(n, bytesPerSecond int) time.Duration {
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(bytesPerSecond) * float64(time.Second))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizeHotwords trims, lowercases, deduplicates and caps hotwords to
// 10 entries, per §4.4.
func NormalizeHotwords(hotwords []string) []string {
	seen := make(map[string]struct{}, len(hotwords))
	out := make([]string, 0, len(hotwords))
	for _, h := range hotwords {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
		if len(out) == 10 {
			break
		}
	}
	return out
}
