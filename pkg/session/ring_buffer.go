package session

import (
	"strconv"
	"sync"
	"time"
)

// RingBuffer is the bounded, time-indexed store of recent frames and
// finalized utterance records owned by one connection. It is safe for
// concurrent use: Frame Ingress appends, the VAD Controller and
// Transcription Coordinator read.
type RingBuffer struct {
	mu sync.Mutex

	cfg AudioConfig

	frames      map[int64]*Frame
	order       []int64 // ascending frame_id, mirrors frames' keys for range scans
	nextFrameID int64
	latestID    int64

	open   *Utterance
	recent []*Utterance // finalized, newest last, capped at cfg.MaxRetainedUtterances

	lastEviction time.Time
}

// NewRingBuffer creates an empty ring buffer for one connection.
func NewRingBuffer(cfg AudioConfig) *RingBuffer {
	return &RingBuffer{
		cfg:    cfg,
		frames: make(map[int64]*Frame),
	}
}

// Append stores pcm as the next frame, stamping it with a monotonic frame_id
// and the current time. It triggers eviction if at least one second has
// passed since the last eviction pass.
func (r *RingBuffer) Append(pcm []byte, now time.Time) *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := &Frame{
		FrameID:    r.nextFrameID,
		CapturedAt: now,
		PCM:        pcm,
	}
	r.frames[f.FrameID] = f
	r.order = append(r.order, f.FrameID)
	r.nextFrameID++
	r.latestID = f.FrameID

	if r.lastEviction.IsZero() || now.Sub(r.lastEviction) >= time.Second {
		r.evictLocked(now)
		r.lastEviction = now
	}

	return f
}

// evictLocked drops frames older than MaxAudioBufferSeconds, except any
// frame belonging to the currently open utterance. Caller holds r.mu.
func (r *RingBuffer) evictLocked(now time.Time) {
	maxAge := time.Duration(r.cfg.MaxAudioBufferSeconds) * time.Second
	keepFrom := int64(-1)
	if r.open != nil {
		keepFrom = r.open.StartFrameID
	}

	cut := 0
	for _, id := range r.order {
		f, ok := r.frames[id]
		if !ok {
			cut++
			continue
		}
		if now.Sub(f.CapturedAt) < maxAge {
			break
		}
		if keepFrom >= 0 && id >= keepFrom {
			break
		}
		delete(r.frames, id)
		cut++
	}
	if cut > 0 {
		r.order = r.order[cut:]
	}
}

// RecentUnprocessed returns up to maxN frames with Processed=false, in
// ascending frame_id order. It does not mark them processed; that is the
// caller's responsibility via MarkProcessed.
func (r *RingBuffer) RecentUnprocessed(maxN int) []*Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Frame
	for _, id := range r.order {
		f, ok := r.frames[id]
		if !ok || f.Processed {
			continue
		}
		out = append(out, f)
	}
	if len(out) > maxN {
		out = out[len(out)-maxN:]
	}
	return out
}

// MarkProcessed flips the Processed flag for the given frame ids.
func (r *RingBuffer) MarkProcessed(ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if f, ok := r.frames[id]; ok {
			f.Processed = true
		}
	}
}

// Range returns the frames with lo <= frame_id <= hi still present, in
// ascending order.
func (r *RingBuffer) Range(lo, hi int64) []*Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Frame
	for _, id := range r.order {
		if id < lo {
			continue
		}
		if id > hi {
			break
		}
		if f, ok := r.frames[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

// LatestFrameID returns the most recent frame id appended, or -1 if empty.
func (r *RingBuffer) LatestFrameID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return -1
	}
	return r.latestID
}

// OpenUtterance returns the currently open utterance, or nil.
func (r *RingBuffer) OpenUtterance() *Utterance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// StartUtterance opens a new utterance at frameID/t. If one is already
// open, it is force-finalized at (startFrameID-1, t) first.
func (r *RingBuffer) StartUtterance(frameID int64, t time.Time) *Utterance {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open != nil {
		r.finalizeLocked(frameID-1, t)
	}

	u := &Utterance{
		ID:           uuidLikeID(frameID, t),
		StartFrameID: frameID,
		StartTime:    t,
		EndFrameID:   -1,
	}
	r.open = u
	return u
}

// FinalizeUtterance closes the open utterance at (endFrameID, t) and
// appends it to the retained-utterance FIFO, evicting the oldest beyond the
// cap. Returns nil if no utterance was open.
func (r *RingBuffer) FinalizeUtterance(endFrameID int64, t time.Time) *Utterance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalizeLocked(endFrameID, t)
}

func (r *RingBuffer) finalizeLocked(endFrameID int64, t time.Time) *Utterance {
	if r.open == nil {
		return nil
	}
	u := r.open
	u.EndFrameID = endFrameID
	u.EndTime = t
	u.Finalized = true
	r.open = nil

	r.recent = append(r.recent, u)
	if len(r.recent) > r.cfg.MaxRetainedUtterances {
		r.recent = r.recent[len(r.recent)-r.cfg.MaxRetainedUtterances:]
	}
	return u
}

// RecentUtterances returns the retained, finalized utterances oldest-first.
func (r *RingBuffer) RecentUtterances() []*Utterance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Utterance, len(r.recent))
	copy(out, r.recent)
	return out
}

// CommitPCM concatenates the PCM of frames in [utt.StartFrameID,
// utt.EndFrameID] (or up to the latest frame while utt is still open) for
// frames still present in the buffer.
func (r *RingBuffer) CommitPCM(utt *Utterance) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	hi := utt.EndFrameID
	if hi < 0 {
		hi = r.latestID
	}

	var buf []byte
	for _, id := range r.order {
		if id < utt.StartFrameID {
			continue
		}
		if id > hi {
			break
		}
		if f, ok := r.frames[id]; ok {
			buf = append(buf, f.PCM...)
		}
	}
	return buf
}

// Size reports the number of frames currently retained.
func (r *RingBuffer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func uuidLikeID(frameID int64, t time.Time) string {
	return "utt_" + strconv.FormatInt(frameID, 10) + "_" + strconv.FormatInt(t.UnixNano(), 10)
}
