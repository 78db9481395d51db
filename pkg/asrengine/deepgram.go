package asrengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DeepgramEngine adapts the teacher's DeepgramSTT provider: raw PCM is
// POSTed directly (no WAV wrapper — Deepgram's "listen" endpoint accepts a
// declared raw-audio content type), with hotwords mapped onto Deepgram's
// own "keywords" query parameter.
type DeepgramEngine struct {
	apiKey     string
	url        string
	sampleRate int
	client     *http.Client
}

// NewDeepgramEngine builds an engine for the given API key.
func NewDeepgramEngine(apiKey string) *DeepgramEngine {
	return &DeepgramEngine{
		apiKey:     apiKey,
		url:        "https://api.deepgram.com/v1/listen",
		sampleRate: 16000,
		client:     http.DefaultClient,
	}
}

func (s *DeepgramEngine) Name() string { return "deepgram_asr" }

func (s *DeepgramEngine) SetSampleRate(rate int) { s.sampleRate = rate }

func (s *DeepgramEngine) Transcribe(ctx context.Context, pcm []byte, opts Options) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", err
	}

	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	for _, h := range opts.Hotwords {
		params.Add("keywords", h)
	}
	if opts.MaxNewTokens > 0 {
		params.Set("max_new_tokens", strconv.Itoa(opts.MaxNewTokens))
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(pcm))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d; channels=1", s.sampleRate))

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepgram asr error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return result.Results.Channels[0].Alternatives[0].Transcript, nil
}
