// Package wsserver hosts the live streaming transcription WebSocket
// endpoint: per-connection client_id issuance, the handshake, binary
// frame ingress, and the control-message switch (ping/get_state/
// vad_config/close), grounded on the teacher's own websocket.Accept/
// wsjson usage, redeployed server-side.
package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/sonicscribe/sonicscribe/pkg/session"
)

// SessionFactory builds a new session for a freshly accepted connection.
type SessionFactory func(ctx context.Context, clientID string, emit session.Emitter) *session.Session

// Server accepts WebSocket connections and drives one session.Session per
// connection for its lifetime.
type Server struct {
	cfg            session.AudioConfig
	logger         session.Logger
	newSession     SessionFactory
	idleTimeout    time.Duration
	readTimeout    time.Duration
}

// New builds a wsserver.Server. idleTimeout closes connections that send
// no binary audio for that long (text control messages do not reset the
// idle clock); readTimeout bounds each individual frame read.
func New(cfg session.AudioConfig, logger session.Logger, newSession SessionFactory, idleTimeout, readTimeout time.Duration) *Server {
	if logger == nil {
		logger = &session.NoOpLogger{}
	}
	return &Server{cfg: cfg, logger: logger, newSession: newSession, idleTimeout: idleTimeout, readTimeout: readTimeout}
}

// ServeHTTP upgrades the request to a WebSocket connection and drives the
// session until the client disconnects, the connection goes idle past
// idleTimeout, or the server shuts down (r.Context() cancellation).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	clientID := uuid.NewString()
	emitter := session.NewChannelEmitter(32)
	sess := s.newSession(r.Context(), clientID, emitter)
	sess.Start()
	defer sess.Close()

	if err := wsjson.Write(r.Context(), conn, handshake{
		Type:     "connection_established",
		ClientID: clientID,
		Config:   s.cfg,
	}); err != nil {
		s.logger.Warn("handshake write failed", "client_id", clientID, "error", err)
		return
	}

	go s.writeLoop(r.Context(), conn, clientID, emitter)
	s.readLoop(r.Context(), conn, clientID, sess)
	conn.Close(websocket.StatusNormalClosure, "session ended")
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, clientID string, sess *session.Session) {
	for {
		if s.idleTimeout > 0 && sess.Idle(s.idleTimeout) {
			s.logger.Info("connection idle, closing", "client_id", clientID)
			return
		}

		readCtx := ctx
		var cancel context.CancelFunc
		if s.readTimeout > 0 {
			readCtx, cancel = context.WithTimeout(ctx, s.readTimeout)
		}

		msgType, payload, err := conn.Read(readCtx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if ctx.Err() != nil || !errors.Is(err, context.DeadlineExceeded) {
				return
			}
			// A read timeout just means no frame arrived this interval;
			// loop back around to re-check idleness.
			continue
		}

		switch msgType {
		case websocket.MessageBinary:
			sess.Ingest(payload)
		case websocket.MessageText:
			if s.handleControl(ctx, conn, clientID, sess, payload) {
				return
			}
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, clientID string, emitter *session.ChannelEmitter) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-emitter.Events():
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, toWireMessage(ev, clientID)); err != nil {
				s.logger.Warn("write failed, closing", "client_id", clientID, "error", err)
				return
			}
		}
	}
}

type controlMessage struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// handleControl reacts to one text-frame control message. It returns true
// if the connection should be torn down (a "close" message was received).
func (s *Server) handleControl(ctx context.Context, conn *websocket.Conn, clientID string, sess *session.Session, payload []byte) bool {
	var msg controlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("malformed control message", "client_id", clientID, "error", err)
		return false
	}

	switch msg.Type {
	case "ping":
		wsjson.Write(ctx, conn, pongMessage{Type: "pong", Timestamp: time.Now(), ClientID: clientID})
	case "get_state":
		wsjson.Write(ctx, conn, connectionState{
			Type:           "connection_state",
			BufferSize:     sess.Ring.Size(),
			ActiveSegment:  sess.Ring.OpenUtterance() != nil,
			VADState:       sess.VAD.Speaking(),
			LastChunkID:    sess.Ring.LatestFrameID(),
			Config:         s.cfg,
		})
	case "vad_config":
		var req struct {
			Config vadConfigUpdate `json:"config"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			s.logger.Warn("malformed vad_config message", "client_id", clientID, "error", err)
			return false
		}
		cfg := s.cfg
		if req.Config.SmoothingWindow > 0 {
			cfg.VADSmoothingWindow = req.Config.SmoothingWindow
		}
		if req.Config.SpeechThreshold > 0 {
			cfg.VADThresholdInitial = req.Config.SpeechThreshold
		}
		sess.VAD.UpdateConfig(cfg)
		wsjson.Write(ctx, conn, map[string]string{"type": "config_updated"})
	case "close":
		return true
	default:
		s.logger.Debug("unrecognized control message", "client_id", clientID, "type", msg.Type)
	}
	return false
}

type handshake struct {
	Type     string             `json:"type"`
	ClientID string             `json:"client_id"`
	Config   session.AudioConfig `json:"config"`
}

type pongMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"client_id"`
}

type connectionState struct {
	Type          string              `json:"type"`
	BufferSize    int                 `json:"buffer_size"`
	ActiveSegment bool                `json:"active_segment"`
	VADState      bool                `json:"vad_state"`
	LastChunkID   int64               `json:"last_chunk_id"`
	Config        session.AudioConfig `json:"config"`
}

type vadConfigUpdate struct {
	SpeechThreshold float64 `json:"speech_threshold"`
	SmoothingWindow int     `json:"smoothing_window"`
}

type tentativeWire struct {
	Type            string    `json:"type"`
	CurrentText     string    `json:"current_text"`
	Text            string    `json:"text"`
	StartChunkID    int64     `json:"start_chunk_id"`
	EndChunkID      int64     `json:"end_chunk_id"`
	Duration        float64   `json:"duration"`
	Timestamp       time.Time `json:"timestamp"`
	Confidence      string    `json:"confidence"`
	ProcessingDelay float64   `json:"processing_delay"`
}

type committedWire struct {
	Type         string    `json:"type"`
	Text         string    `json:"text"`
	SegmentID    string    `json:"segment_id"`
	StartChunkID int64     `json:"start_chunk_id"`
	EndChunkID   int64     `json:"end_chunk_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Duration     float64   `json:"duration"`
	Timestamp    time.Time `json:"timestamp"`
	Confidence   string    `json:"confidence"`
	AudioLength  int       `json:"audio_length"`
}

type errorWire struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}

type utteranceWire struct {
	Type         string `json:"type"`
	UtteranceID  string `json:"utterance_id"`
	StartChunkID int64  `json:"start_chunk_id"`
}

// toWireMessage maps an internal session.Event to the JSON shape documented
// in SPEC_FULL.md §6's server-to-client result types.
func toWireMessage(ev session.Event, clientID string) interface{} {
	switch ev.Type {
	case session.EventTentativeOutput:
		d := ev.Data.(session.TentativeOutput)
		return tentativeWire{
			Type:            "tentative_output",
			CurrentText:     d.CurrentText,
			Text:            d.AccumulatedText,
			StartChunkID:    d.StartChunkID,
			EndChunkID:      d.EndChunkID,
			Duration:        d.Duration.Seconds(),
			Timestamp:       d.Timestamp,
			Confidence:      "tentative",
			ProcessingDelay: d.ProcessingDelay.Seconds(),
		}
	case session.EventCommittedOutput:
		d := ev.Data.(session.CommittedOutput)
		return committedWire{
			Type:         "committed_output",
			Text:         d.Text,
			SegmentID:    d.SegmentID,
			StartChunkID: d.StartChunkID,
			EndChunkID:   d.EndChunkID,
			StartTime:    d.StartTime,
			EndTime:      d.EndTime,
			Duration:     d.Duration.Seconds(),
			Timestamp:    d.Timestamp,
			Confidence:   "high",
			AudioLength:  d.AudioLength,
		}
	case session.EventUtteranceStarted, session.EventUtteranceExtended, session.EventUtteranceEnded:
		u, _ := ev.Data.(*session.Utterance)
		msg := utteranceWire{Type: string(ev.Type)}
		if u != nil {
			msg.UtteranceID = u.ID
			msg.StartChunkID = u.StartFrameID
		}
		return msg
	case session.EventError:
		return errorWire{Type: "error", Message: fmtError(ev.Data), ClientID: clientID}
	default:
		return map[string]string{"type": string(ev.Type)}
	}
}

func fmtError(data interface{}) string {
	if err, ok := data.(error); ok {
		return err.Error()
	}
	if s, ok := data.(string); ok {
		return s
	}
	return "unknown error"
}
