package vadengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// RemoteEngine scores a window by POSTing the normalized float buffer as
// JSON to an HTTP scoring service, in the same request/response idiom the
// teacher's DeepgramSTT provider uses for its upstream STT call. This is
// the realistic shape for a production deployment that fronts a dedicated
// VAD model (e.g. Silero served behind a small HTTP shim) without this
// module embedding any ML runtime directly.
type RemoteEngine struct {
	BaseURL string
	Client  *http.Client
}

// NewRemoteEngine builds a RemoteEngine targeting baseURL (e.g.
// "http://vad-service:9000"); POSTs land on baseURL+"/score".
func NewRemoteEngine(baseURL string) *RemoteEngine {
	return &RemoteEngine{
		BaseURL: baseURL,
		Client:  http.DefaultClient,
	}
}

func (e *RemoteEngine) Name() string { return "remote_vad" }

type scoreRequest struct {
	Samples   []float32 `json:"samples"`
	Threshold float64   `json:"threshold"`
}

type scoreResponse struct {
	IsSpeech bool `json:"is_speech"`
}

func (e *RemoteEngine) Score(ctx context.Context, samples []float32, threshold float64) (bool, error) {
	body, err := json.Marshal(scoreRequest{Samples: samples, Threshold: threshold})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("remote vad error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.IsSpeech, nil
}
