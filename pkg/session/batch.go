package session

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// BatchRecordType enumerates the record kinds streamed by the batch file
// transcription pipeline (§6, POST /transcribe/file).
type BatchRecordType string

const (
	BatchRecordInitialization    BatchRecordType = "initialization"
	BatchRecordSegmentsSummary   BatchRecordType = "segments_summary"
	BatchRecordSegmentResult     BatchRecordType = "segment_result"
	BatchRecordSegmentError      BatchRecordType = "segment_error"
	BatchRecordFinalSummary      BatchRecordType = "final_summary"
)

// BatchRecord is one line of the batch pipeline's output, in emission
// order. Data holds one of the Batch*Payload types below depending on
// Type. The HTTP layer marshals each record to one NDJSON line (streaming
// mode) or collects them into a single aggregated response (?stream=false).
type BatchRecord struct {
	Type BatchRecordType
	Data interface{}
}

// BatchInitializationPayload opens the record stream.
type BatchInitializationPayload struct {
	Type       BatchRecordType `json:"type"`
	SampleRate int             `json:"sample_rate"`
	AudioBytes int             `json:"audio_bytes"`
	Duration   float64         `json:"duration"`
}

// BatchSegmentsSummaryPayload reports the speech intervals found by the
// whole-buffer VAD scan, before any per-segment transcription begins.
type BatchSegmentsSummaryPayload struct {
	Type         BatchRecordType `json:"type"`
	SegmentCount int             `json:"segment_count"`
}

// BatchSegmentResultPayload mirrors CommittedOutput, with a batch-scan
// progress percentage added.
type BatchSegmentResultPayload struct {
	Type      BatchRecordType `json:"type"`
	Text      string          `json:"text"`
	SegmentID string          `json:"segment_id"`
	StartTime float64         `json:"start_time"`
	EndTime   float64         `json:"end_time"`
	Duration  float64         `json:"duration"`
	Progress  float64         `json:"progress"` // 0-100, fraction of segments transcribed so far
}

// BatchSegmentErrorPayload reports a sub-segment whose ASR call failed; the
// scan continues with the remaining segments.
type BatchSegmentErrorPayload struct {
	Type      BatchRecordType `json:"type"`
	SegmentID string          `json:"segment_id"`
	Error     string          `json:"error"`
	Progress  float64         `json:"progress"`
}

// BatchFinalSummaryPayload closes the record stream.
type BatchFinalSummaryPayload struct {
	Type           BatchRecordType `json:"type"`
	SegmentCount   int             `json:"segment_count"`
	FailedSegments int             `json:"failed_segments"`
	TotalDuration  float64         `json:"total_duration"`
	Transcript     string          `json:"transcript"` // all successful segment texts, joined with a space
}

// speechInterval is a contiguous span of speech found by the whole-buffer
// scan, in byte offsets into the (already WAV-stripped) PCM buffer.
type speechInterval struct {
	startByte int
	endByte   int
}

// StripWavHeader detects a RIFF/WAVE container (the same framing
// pkg/audio.NewWavBuffer produces) and returns the raw PCM payload found
// after its "data" chunk header, plus the sample rate declared in the
// "fmt " chunk. If data is not RIFF/WAVE, it is returned unchanged with
// sampleRate 0 (caller should assume the configured default).
func StripWavHeader(data []byte) (pcm []byte, sampleRate int) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return data, 0
	}

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(le32(data[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if body+8 <= len(data) {
				sampleRate = int(le32(data[body+4 : body+8]))
			}
		case "data":
			end := body + chunkSize
			if end > len(data) {
				end = len(data)
			}
			return data[body:end], sampleRate
		}

		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++ // chunks are word-aligned
		}
	}

	// RIFF/WAVE header present but no data chunk found.
	return nil, sampleRate
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// ScanSpeechIntervals runs the shared Segmenter over the entire buffer in
// one pass, window by window, to find contiguous speech intervals. It is
// the batch-path counterpart to VADController.Run: same Segmenter, same
// engine contract, fed synchronously instead of off a ticker.
func ScanSpeechIntervals(ctx context.Context, pcm []byte, cfg AudioConfig, engine VADEngine) ([]speechInterval, error) {
	windowBytes := cfg.ChunkSize() * cfg.VADProcessWindow
	if windowBytes <= 0 {
		return nil, fmt.Errorf("invalid audio config: zero-size window")
	}

	seg := NewSegmenter(cfg)
	var intervals []speechInterval
	var openStart int

	offset := 0
	for offset+windowBytes <= len(pcm) {
		window := pcm[offset : offset+windowBytes]
		samples := pcmToFloat(window)

		isSpeech, err := engine.Score(ctx, samples, seg.Threshold())
		if err != nil {
			// Same failure policy as the live path: skip the window, leave
			// segmenter state untouched.
			offset += windowBytes
			continue
		}

		t := seg.Process(isSpeech)
		switch {
		case t.Started:
			openStart = offset
		case t.Ended:
			intervals = append(intervals, speechInterval{startByte: openStart, endByte: offset + windowBytes})
		}

		offset += windowBytes
	}

	if seg.Speaking() {
		intervals = append(intervals, speechInterval{startByte: openStart, endByte: len(pcm)})
	}

	return intervals, nil
}

// RunBatchTranscription drives the full batch pipeline over pcm (already
// WAV-stripped), emitting one BatchRecord at a time via emit, in the order
// the NDJSON response must carry them. hotwords is forwarded to every ASR
// call, normalized the same way the streaming Coordinator normalizes them.
func RunBatchTranscription(ctx context.Context, pcm []byte, cfg AudioConfig, vadEngine VADEngine, asrEngine ASREngine, hotwords []string, emit func(BatchRecord)) {
	bytesPerSecond := cfg.SampleRate * 2
	total := bytesToDuration(len(pcm), bytesPerSecond)

	emit(BatchRecord{Type: BatchRecordInitialization, Data: BatchInitializationPayload{
		Type:       BatchRecordInitialization,
		SampleRate: cfg.SampleRate,
		AudioBytes: len(pcm),
		Duration:   total.Seconds(),
	}})

	intervals, err := ScanSpeechIntervals(ctx, pcm, cfg, vadEngine)
	if err != nil {
		emit(BatchRecord{Type: BatchRecordFinalSummary, Data: BatchFinalSummaryPayload{Type: BatchRecordFinalSummary}})
		return
	}

	type segment struct {
		pcm       []byte
		startByte int
		endByte   int
	}
	var segments []segment
	for _, iv := range intervals {
		segPCM := pcm[iv.startByte:iv.endByte]
		duration := bytesToDuration(len(segPCM), bytesPerSecond)
		if duration.Seconds() <= float64(cfg.MaxSegmentDurationS) {
			segments = append(segments, segment{pcm: segPCM, startByte: iv.startByte, endByte: iv.endByte})
			continue
		}
		for _, sub := range splitPCM(segPCM, cfg, duration) {
			segments = append(segments, segment{
				pcm:       sub.pcm,
				startByte: iv.startByte + int(sub.offset.Seconds()*float64(bytesPerSecond)),
				endByte:   iv.startByte + int(sub.offset.Seconds()*float64(bytesPerSecond)) + len(sub.pcm),
			})
		}
	}

	emit(BatchRecord{Type: BatchRecordSegmentsSummary, Data: BatchSegmentsSummaryPayload{
		Type:         BatchRecordSegmentsSummary,
		SegmentCount: len(segments),
	}})

	hotwords = NormalizeHotwords(hotwords)

	var transcripts []string
	failed := 0
	for i, seg := range segments {
		segID := fmt.Sprintf("segment_%d", i+1)
		startTime := bytesToDuration(seg.startByte, bytesPerSecond)
		endTime := bytesToDuration(seg.endByte, bytesPerSecond)
		duration := endTime - startTime
		progress := float64(i+1) / float64(len(segments)) * 100

		tokens := clampInt(int(50+5*duration.Seconds()), 50, 200)
		text, err := asrEngine.Transcribe(ctx, seg.pcm, TranscribeOptions{MaxNewTokens: tokens, Hotwords: hotwords})
		if err != nil {
			failed++
			emit(BatchRecord{Type: BatchRecordSegmentError, Data: BatchSegmentErrorPayload{
				Type:      BatchRecordSegmentError,
				SegmentID: segID,
				Error:     err.Error(),
				Progress:  progress,
			}})
			continue
		}

		transcripts = append(transcripts, text)
		emit(BatchRecord{Type: BatchRecordSegmentResult, Data: BatchSegmentResultPayload{
			Type:      BatchRecordSegmentResult,
			Text:      text,
			SegmentID: segID,
			StartTime: startTime.Seconds(),
			EndTime:   endTime.Seconds(),
			Duration:  duration.Seconds(),
			Progress:  progress,
		}})
	}

	emit(BatchRecord{Type: BatchRecordFinalSummary, Data: BatchFinalSummaryPayload{
		Type:           BatchRecordFinalSummary,
		SegmentCount:   len(segments),
		FailedSegments: failed,
		TotalDuration:  total.Seconds(),
		Transcript:     joinNonEmpty(transcripts, " "),
	}})
}

func joinNonEmpty(parts []string, sep string) string {
	var out bytes.Buffer
	first := true
	for _, p := range parts {
		if p == "" {
			continue
		}
		if !first {
			out.WriteString(sep)
		}
		out.WriteString(p)
		first = false
	}
	return out.String()
}
