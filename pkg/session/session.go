package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Session owns one connection's Ring Buffer, VAD Controller, Transcription
// Coordinator and Emitter, and supervises their three cooperating units of
// execution (ingress reader is driven externally by the transport; the VAD
// ticker and the tentative timer run here) under one errgroup so that
// cancellation or a failure in either tears the other down deterministically.
// Grounded on managed_stream.go's NewManagedStream constructor shape (owns
// a child context, sync.Once-guarded Close).
type Session struct {
	ID     string
	cfg    AudioConfig
	Ring   *RingBuffer
	VAD    *VADController
	Coord  *Coordinator
	Emit   Emitter
	logger Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu           sync.Mutex
	lastActivity time.Time
	active       bool
	metrics      Metrics

	closeOnce sync.Once
}

// New builds a session for one client connection, wiring VAD and ASR
// engines and the given emitter (typically a transport-specific Emitter;
// pass a *ChannelEmitter in tests).
func New(parent context.Context, id string, cfg AudioConfig, vadEngine VADEngine, asrEngine ASREngine, emit Emitter, logger Logger) *Session {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	ctx, cancel := context.WithCancel(parent)
	group, gctx := errgroup.WithContext(ctx)

	ring := NewRingBuffer(cfg)

	s := &Session{
		ID:           id,
		cfg:          cfg,
		Ring:         ring,
		Emit:         emit,
		logger:       logger,
		ctx:          gctx,
		cancel:       cancel,
		group:        group,
		lastActivity: time.Now(),
		active:       true,
		metrics:      noOpMetrics{},
	}

	s.VAD = NewVADController(cfg, ring, vadEngine, logger, s.handleVADEvent)
	s.Coord = NewCoordinator(cfg, ring, asrEngine, logger, s.handleCoordEvent)

	return s
}

// SetMetrics installs the instrumentation sink consulted by this session's
// VAD Controller, Coordinator, and the connection-closed counter. Passing
// nil restores the no-op default. Call before Start.
func (s *Session) SetMetrics(m Metrics) {
	if m == nil {
		m = noOpMetrics{}
	}
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
	s.VAD.SetMetrics(m)
	s.Coord.SetMetrics(m)
}

// Start launches the VAD ticker and the coordinator's 1Hz tentative timer
// as supervised goroutines. Call once after New.
func (s *Session) Start() {
	s.group.Go(func() error {
		s.VAD.Run(s.ctx)
		return nil
	})
	s.group.Go(func() error {
		s.tentativeLoop(s.ctx)
		return nil
	})
}

func (s *Session) tentativeLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Coord.MaybeTentative(ctx)
		}
	}
}

func (s *Session) handleVADEvent(e Event) {
	s.Coord.HandleEvent(s.ctx, e)
	s.Emit.Send(e)
}

func (s *Session) handleCoordEvent(e Event) {
	s.Emit.Send(e)
}

// Ingest admits a raw payload through Frame Ingress and touches
// last_activity. Safe to call concurrently with Start's goroutines.
func (s *Session) Ingest(payload []byte) []*Frame {
	now := time.Now()
	s.touch(now)
	ing := NewIngress(s.cfg, s.Ring, s.logger)
	return ing.Admit(payload, now)
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastActivity = t
	s.mu.Unlock()
}

// LastActivity returns the timestamp of the most recent ingested payload.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Idle reports whether the connection has been silent for at least d.
func (s *Session) Idle(d time.Duration) bool {
	return time.Since(s.LastActivity()) >= d
}

// Active reports whether the session has not yet been closed.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close cancels the session's context (stopping the VAD ticker and
// tentative loop at their next iteration, and cancelling the context that
// in-flight coordinator ASR calls were given), waits for the session's
// goroutines, and marks the emitter inactive, so any result that still
// arrives is discarded. It does not clear the ring buffer.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()

		s.cancel()
		_ = s.group.Wait()
		s.Emit.MarkInactive()

		s.mu.Lock()
		m := s.metrics
		s.mu.Unlock()
		m.ConnectionClosed(context.Background())
	})
}
