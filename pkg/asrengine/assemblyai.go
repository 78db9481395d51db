package asrengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AssemblyAIEngine adapts the teacher's AssemblyAISTT provider: an
// upload/submit/poll three-step flow, with hotwords mapped onto
// AssemblyAI's "word_boost" field.
type AssemblyAIEngine struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAssemblyAIEngine builds an engine for the given API key.
func NewAssemblyAIEngine(apiKey string) *AssemblyAIEngine {
	return &AssemblyAIEngine{apiKey: apiKey, baseURL: "https://api.assemblyai.com", client: http.DefaultClient}
}

func (s *AssemblyAIEngine) Name() string { return "assemblyai_asr" }

func (s *AssemblyAIEngine) Transcribe(ctx context.Context, pcm []byte, opts Options) (string, error) {
	uploadURL, err := s.upload(ctx, pcm)
	if err != nil {
		return "", err
	}

	transcriptID, err := s.submit(ctx, uploadURL, opts.Hotwords)
	if err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
			text, status, err := s.getTranscript(ctx, transcriptID)
			if err != nil {
				return "", err
			}
			if status == "completed" {
				return text, nil
			}
			if status == "error" {
				return "", fmt.Errorf("assemblyai asr transcription failed")
			}
		}
	}
}

func (s *AssemblyAIEngine) upload(ctx context.Context, pcm []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/upload", bytes.NewReader(pcm))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.UploadURL, nil
}

func (s *AssemblyAIEngine) submit(ctx context.Context, uploadURL string, hotwords []string) (string, error) {
	payload := map[string]interface{}{
		"audio_url": uploadURL,
	}
	if len(hotwords) > 0 {
		payload["word_boost"] = hotwords
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (s *AssemblyAIEngine) getTranscript(ctx context.Context, id string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}
	return result.Text, result.Status, nil
}
