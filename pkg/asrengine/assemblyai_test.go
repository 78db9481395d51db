package asrengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAssemblyAIEngine_TranscribeUploadSubmitPollFlow(t *testing.T) {
	var submittedWordBoost []string
	var polls int

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://upload.example/audio.raw"})
	})
	mux.HandleFunc("/v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AudioURL  string   `json:"audio_url"`
			WordBoost []string `json:"word_boost"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		submittedWordBoost = body.WordBoost
		json.NewEncoder(w).Encode(map[string]string{"id": "transcript-1"})
	})
	mux.HandleFunc("/v2/transcript/transcript-1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 2 {
			json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "completed", "text": "final transcript"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewAssemblyAIEngine("test-key")
	e.baseURL = srv.URL

	text, err := e.Transcribe(context.Background(), make([]byte, 320), Options{Hotwords: []string{"acme"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "final transcript" {
		t.Fatalf("expected transcript %q, got %q", "final transcript", text)
	}
	if len(submittedWordBoost) != 1 || submittedWordBoost[0] != "acme" {
		t.Fatalf("expected hotwords forwarded as word_boost, got %v", submittedWordBoost)
	}
	if polls < 2 {
		t.Fatalf("expected at least 2 polls before completion, got %d", polls)
	}
}

func TestAssemblyAIEngine_TranscriptionErrorStatusReturnsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://upload.example/audio.raw"})
	})
	mux.HandleFunc("/v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "transcript-err"})
	})
	mux.HandleFunc("/v2/transcript/transcript-err", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "error"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewAssemblyAIEngine("test-key")
	e.baseURL = srv.URL

	_, err := e.Transcribe(context.Background(), make([]byte, 320), Options{})
	if err == nil || !strings.Contains(err.Error(), "assemblyai") {
		t.Fatalf("expected an assemblyai transcription error, got %v", err)
	}
}

func TestAssemblyAIEngine_Name(t *testing.T) {
	if got := NewAssemblyAIEngine("k").Name(); got != "assemblyai_asr" {
		t.Fatalf("expected name assemblyai_asr, got %q", got)
	}
}
