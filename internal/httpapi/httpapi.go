// Package httpapi wires the batch file transcription endpoint and the
// operational surface (health, debug config, VAD status/config, metrics)
// behind a gorilla/mux router, grounded on the router-construction shape
// used by the example pack's webhook_server.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sonicscribe/sonicscribe/pkg/session"
)

// EngineStatus is read by /vad/status and /debug/config to report which
// provider implementations the process is running.
type EngineStatus struct {
	VADProvider string
	ASRProvider string
}

// Router assembles the HTTP surface. audioCfg is the effective default
// audio configuration; vadEngine/asrEngine are the process-wide
// singletons used for both the live path (wsserver) and the batch path.
type Router struct {
	mu        sync.RWMutex
	cfg       session.AudioConfig
	vadEngine session.VADEngine
	asrEngine session.ASREngine
	logger    session.Logger
	status    EngineStatus
	liveVAD   func() (threshold float64, speaking bool, ok bool)
}

// NewRouter builds a Router. liveStatus, if non-nil, is consulted by
// /vad/status to report the most recently active connection's adaptive
// threshold and speaking state (best-effort; the batch endpoint has no
// single "current" session).
func NewRouter(cfg session.AudioConfig, vadEngine session.VADEngine, asrEngine session.ASREngine, logger session.Logger, status EngineStatus, liveStatus func() (float64, bool, bool)) *Router {
	if logger == nil {
		logger = &session.NoOpLogger{}
	}
	return &Router{cfg: cfg, vadEngine: vadEngine, asrEngine: asrEngine, logger: logger, status: status, liveVAD: liveStatus}
}

// Mux builds the *mux.Router with every route registered.
func (h *Router) Mux() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/debug/config", h.handleDebugConfig).Methods(http.MethodGet)
	r.HandleFunc("/vad/status", h.handleVADStatus).Methods(http.MethodGet)
	r.HandleFunc("/vad/config", h.handleVADConfigUpdate).Methods(http.MethodPost)
	r.HandleFunc("/transcribe/file", h.handleTranscribeFile).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (h *Router) getCfg() session.AudioConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

func (h *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Router) handleDebugConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"audio_config": h.getCfg(),
		"vad_provider": h.status.VADProvider,
		"asr_provider": h.status.ASRProvider,
	})
}

// handleVADConfigUpdate updates the router's own copy of the audio config,
// which future batch-file scans and /debug/config use. WebSocket sessions,
// new or in flight, are built from their own config and do not see this
// update; an in-flight session is updated individually via the WebSocket
// "vad_config" control message.
func (h *Router) handleVADConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Config struct {
			SpeechThreshold float64 `json:"speech_threshold"`
			SmoothingWindow int     `json:"smoothing_window"`
		} `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	if req.Config.SmoothingWindow > 0 {
		h.cfg.VADSmoothingWindow = req.Config.SmoothingWindow
	}
	if req.Config.SpeechThreshold > 0 {
		h.cfg.VADThresholdInitial = req.Config.SpeechThreshold
	}
	cfg := h.cfg
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"type": "config_updated", "audio_config": cfg})
}

func (h *Router) handleVADStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"vad_provider": h.status.VADProvider}
	if h.liveVAD != nil {
		if threshold, speaking, ok := h.liveVAD(); ok {
			resp["threshold"] = threshold
			resp["speaking"] = speaking
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTranscribeFile implements the batch file endpoint (§6). It accepts
// raw 16kHz mono PCM or a WAV-wrapped payload, runs the shared Segmenter
// over the whole buffer, transcribes each resulting segment, and streams
// NDJSON records unless ?stream=false requests an aggregated JSON body.
func (h *Router) handleTranscribeFile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	pcm, declaredRate := session.StripWavHeader(body)
	if len(pcm) == 0 {
		http.Error(w, "empty or malformed audio payload", http.StatusBadRequest)
		return
	}

	cfg := h.getCfg()
	if declaredRate > 0 {
		cfg.SampleRate = declaredRate
	}

	var hotwords []string
	if raw := r.URL.Query().Get("hotwords"); raw != "" {
		hotwords = append(hotwords, raw)
	}

	stream := true
	if v := r.URL.Query().Get("stream"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			stream = parsed
		}
	}

	if stream {
		h.streamNDJSON(w, r, pcm, cfg, hotwords)
		return
	}
	h.aggregateJSON(w, r, pcm, cfg, hotwords)
}

func (h *Router) streamNDJSON(w http.ResponseWriter, r *http.Request, pcm []byte, cfg session.AudioConfig, hotwords []string) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)

	encoder := json.NewEncoder(w)
	emit := func(rec session.BatchRecord) {
		if err := encoder.Encode(rec.Data); err != nil {
			h.logger.Warn("failed to encode batch record", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	session.RunBatchTranscription(r.Context(), pcm, cfg, h.vadEngine, h.asrEngine, hotwords, emit)
}

func (h *Router) aggregateJSON(w http.ResponseWriter, r *http.Request, pcm []byte, cfg session.AudioConfig, hotwords []string) {
	var records []session.BatchRecord
	session.RunBatchTranscription(r.Context(), pcm, cfg, h.vadEngine, h.asrEngine, hotwords, func(rec session.BatchRecord) {
		records = append(records, rec)
	})

	payload := make(map[string][]interface{}, len(records))
	for _, rec := range records {
		payload[string(rec.Type)] = append(payload[string(rec.Type)], rec.Data)
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
