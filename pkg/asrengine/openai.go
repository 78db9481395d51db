package asrengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/sonicscribe/sonicscribe/pkg/audio"
)

// OpenAIEngine adapts the teacher's OpenAISTT provider onto the ASR Engine
// contract: PCM is wrapped as a WAV container (reusing pkg/audio verbatim)
// and uploaded as multipart form data to the Whisper transcriptions
// endpoint. Hotwords are folded into the "prompt" field, which the Whisper
// API uses to bias transcription toward supplied vocabulary.
type OpenAIEngine struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
	client     *http.Client
}

// NewOpenAIEngine builds an engine for the given API key and model
// ("whisper-1" if model is empty).
func NewOpenAIEngine(apiKey, model string) *OpenAIEngine {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAIEngine{
		apiKey:     apiKey,
		url:        "https://api.openai.com/v1/audio/transcriptions",
		model:      model,
		sampleRate: 16000,
		client:     http.DefaultClient,
	}
}

func (s *OpenAIEngine) Name() string { return "openai_asr" }

// SetSampleRate overrides the WAV header's declared sample rate.
func (s *OpenAIEngine) SetSampleRate(rate int) { s.sampleRate = rate }

func (s *OpenAIEngine) Transcribe(ctx context.Context, pcm []byte, opts Options) (string, error) {
	wavData := audio.NewWavBuffer(pcm, s.sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return "", err
	}
	if prompt := hotwordPrompt(opts.Hotwords); prompt != "" {
		if err := writer.WriteField("prompt", prompt); err != nil {
			return "", err
		}
	}
	if opts.MaxNewTokens > 0 {
		// The public Whisper API has no token-budget knob; record the
		// caller's intent as a custom field for deployments that proxy
		// this request to a self-hosted server honoring it, and so the
		// budget shows up in request logs either way.
		if err := writer.WriteField("max_new_tokens", strconv.Itoa(opts.MaxNewTokens)); err != nil {
			return "", err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wavData); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai asr error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}

// hotwordPrompt joins hotwords into the free-text prompt Whisper-family
// APIs accept for vocabulary biasing.
func hotwordPrompt(hotwords []string) string {
	if len(hotwords) == 0 {
		return ""
	}
	return strings.Join(hotwords, ", ")
}
