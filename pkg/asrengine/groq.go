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

	"github.com/sonicscribe/sonicscribe/pkg/audio"
)

// GroqEngine adapts the teacher's GroqSTT provider: same Whisper-compatible
// multipart upload shape as OpenAIEngine, against Groq's hosted endpoint.
type GroqEngine struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
	client     *http.Client
}

// NewGroqEngine builds an engine for the given API key and model
// ("whisper-large-v3-turbo" if model is empty).
func NewGroqEngine(apiKey, model string) *GroqEngine {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqEngine{
		apiKey:     apiKey,
		url:        "https://api.groq.com/openai/v1/audio/transcriptions",
		model:      model,
		sampleRate: 16000,
		client:     http.DefaultClient,
	}
}

func (s *GroqEngine) Name() string { return "groq_asr" }

func (s *GroqEngine) SetSampleRate(rate int) { s.sampleRate = rate }

func (s *GroqEngine) Transcribe(ctx context.Context, pcm []byte, opts Options) (string, error) {
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
		if err := writer.WriteField("max_new_tokens", strconv.Itoa(opts.MaxNewTokens)); err != nil {
			return "", err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
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
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("groq asr error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}
