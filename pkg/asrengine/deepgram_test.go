package asrengine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeepgramEngine_TranscribeSendsRawPCMAndKeywords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("expected token auth header, got %q", got)
		}
		keywords := r.URL.Query()["keywords"]
		if len(keywords) != 2 || keywords[0] != "acme" {
			t.Errorf("expected keywords forwarded from hotwords, got %v", keywords)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"hi there"}]}]}}`))
	}))
	defer srv.Close()

	e := NewDeepgramEngine("test-key")
	e.url = srv.URL

	text, err := e.Transcribe(context.Background(), make([]byte, 320), Options{Hotwords: []string{"acme", "widget"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hi there" {
		t.Fatalf("expected transcript %q, got %q", "hi there", text)
	}
}

func TestDeepgramEngine_EmptyChannelsReturnsEmptyString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer srv.Close()

	e := NewDeepgramEngine("test-key")
	e.url = srv.URL

	text, err := e.Transcribe(context.Background(), make([]byte, 320), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty transcript for no channels, got %q", text)
	}
}

func TestDeepgramEngine_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewDeepgramEngine("test-key")
	e.url = srv.URL

	_, err := e.Transcribe(context.Background(), make([]byte, 320), Options{})
	if err == nil {
		t.Fatalf("expected an error for a non-200 response")
	}
}
