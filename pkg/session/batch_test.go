package session

import (
	"context"
	"encoding/binary"
	"testing"
)

func buildWav(pcm []byte, sampleRate int) []byte {
	var buf []byte
	le32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	le16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}

	fmtChunk := append([]byte{}, le16(1)...)               // PCM
	fmtChunk = append(fmtChunk, le16(1)...)                 // mono
	fmtChunk = append(fmtChunk, le32(uint32(sampleRate))...) // sample rate
	byteRate := uint32(sampleRate * 2)
	fmtChunk = append(fmtChunk, le32(byteRate)...)
	fmtChunk = append(fmtChunk, le16(2)...)  // block align
	fmtChunk = append(fmtChunk, le16(16)...) // bits per sample

	dataSize := uint32(len(pcm))
	riffSize := uint32(4 + (8 + len(fmtChunk)) + (8 + len(pcm)))

	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, le32(riffSize)...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, le32(uint32(len(fmtChunk)))...)
	buf = append(buf, fmtChunk...)
	buf = append(buf, []byte("data")...)
	buf = append(buf, le32(dataSize)...)
	buf = append(buf, pcm...)
	return buf
}

func TestStripWavHeader_ExtractsPCMAndSampleRate(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	wav := buildWav(pcm, 16000)

	out, rate := StripWavHeader(wav)
	if rate != 16000 {
		t.Fatalf("expected sample rate 16000, got %d", rate)
	}
	if len(out) != len(pcm) {
		t.Fatalf("expected %d bytes of PCM, got %d", len(pcm), len(out))
	}
	for i := range pcm {
		if out[i] != pcm[i] {
			t.Fatalf("byte %d mismatch: expected %x got %x", i, pcm[i], out[i])
		}
	}
}

func TestStripWavHeader_NonWavPassesThrough(t *testing.T) {
	raw := []byte{0x10, 0x20, 0x30, 0x40}
	out, rate := StripWavHeader(raw)
	if rate != 0 {
		t.Fatalf("expected sample rate 0 for raw PCM, got %d", rate)
	}
	if len(out) != len(raw) {
		t.Fatalf("expected raw PCM returned unchanged, got %d bytes", len(out))
	}
}

func TestStripWavHeader_TooShortPassesThrough(t *testing.T) {
	out, rate := StripWavHeader([]byte{0x01, 0x02})
	if rate != 0 || len(out) != 2 {
		t.Fatalf("expected short input passed through unchanged, got out=%v rate=%d", out, rate)
	}
}

func batchConfig() AudioConfig {
	cfg := DefaultAudioConfig()
	cfg.VADProcessWindow = 2
	cfg.VADSmoothingWindow = 2
	cfg.MaxSegmentDurationS = 30
	return cfg
}

func TestScanSpeechIntervals_FindsOneIntervalInsideSilence(t *testing.T) {
	cfg := batchConfig()
	windowBytes := cfg.ChunkSize() * cfg.VADProcessWindow

	// silence, speech, speech, silence, silence: one interval starting at window 1 (0-based).
	pcm := make([]byte, windowBytes*5)
	engine := mustVADEngine(false, true, true, false, false)

	intervals, err := ScanSpeechIntervals(context.Background(), pcm, cfg, engine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected exactly one speech interval, got %d: %+v", len(intervals), intervals)
	}
	if intervals[0].startByte != windowBytes {
		t.Fatalf("expected interval to start at window 1, got byte %d", intervals[0].startByte)
	}
}

func TestScanSpeechIntervals_OpenIntervalClosedAtEOF(t *testing.T) {
	cfg := batchConfig()
	windowBytes := cfg.ChunkSize() * cfg.VADProcessWindow

	pcm := make([]byte, windowBytes*3)
	engine := mustVADEngine(true, true, true)

	intervals, err := ScanSpeechIntervals(context.Background(), pcm, cfg, engine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected one interval still open at EOF to be closed, got %d", len(intervals))
	}
	if intervals[0].endByte != len(pcm) {
		t.Fatalf("expected interval to close at end of buffer, got endByte=%d", intervals[0].endByte)
	}
}

func TestScanSpeechIntervals_SilentBufferFindsNothing(t *testing.T) {
	cfg := batchConfig()
	windowBytes := cfg.ChunkSize() * cfg.VADProcessWindow
	pcm := make([]byte, windowBytes*4)
	engine := mustVADEngine(false, false, false, false)

	intervals, err := ScanSpeechIntervals(context.Background(), pcm, cfg, engine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intervals) != 0 {
		t.Fatalf("expected no intervals in a silent buffer, got %d", len(intervals))
	}
}

func TestRunBatchTranscription_EmitsFullRecordSequence(t *testing.T) {
	cfg := batchConfig()
	windowBytes := cfg.ChunkSize() * cfg.VADProcessWindow
	pcm := make([]byte, windowBytes*4)

	vad := mustVADEngine(false, true, true, false)
	asr := &mockASREngine{transcript: "hello", failAt: -1}

	var records []BatchRecord
	RunBatchTranscription(context.Background(), pcm, cfg, vad, asr, nil, func(r BatchRecord) {
		records = append(records, r)
	})

	if len(records) < 3 {
		t.Fatalf("expected at least initialization, segments_summary and final_summary records, got %d", len(records))
	}
	if records[0].Type != BatchRecordInitialization {
		t.Fatalf("expected first record to be initialization, got %v", records[0].Type)
	}
	if records[len(records)-1].Type != BatchRecordFinalSummary {
		t.Fatalf("expected last record to be final_summary, got %v", records[len(records)-1].Type)
	}

	final := records[len(records)-1].Data.(BatchFinalSummaryPayload)
	if final.Transcript != "hello" {
		t.Fatalf("expected transcript %q, got %q", "hello", final.Transcript)
	}
	if final.FailedSegments != 0 {
		t.Fatalf("expected no failed segments, got %d", final.FailedSegments)
	}
}

func TestRunBatchTranscription_ReportsSegmentErrorsAndContinues(t *testing.T) {
	cfg := batchConfig()
	windowBytes := cfg.ChunkSize() * cfg.VADProcessWindow
	pcm := make([]byte, windowBytes*4)

	vad := mustVADEngine(false, true, true, false)
	asr := &mockASREngine{transcript: "hello", failAt: 0} // the only segment fails

	var records []BatchRecord
	RunBatchTranscription(context.Background(), pcm, cfg, vad, asr, nil, func(r BatchRecord) {
		records = append(records, r)
	})

	var sawError bool
	for _, r := range records {
		if r.Type == BatchRecordSegmentError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected a segment_error record for the failing segment")
	}

	final := records[len(records)-1].Data.(BatchFinalSummaryPayload)
	if final.FailedSegments != 1 {
		t.Fatalf("expected 1 failed segment, got %d", final.FailedSegments)
	}
}

func TestRunBatchTranscription_NoSpeechStillEmitsEmptyFinalSummary(t *testing.T) {
	cfg := batchConfig()
	windowBytes := cfg.ChunkSize() * cfg.VADProcessWindow
	pcm := make([]byte, windowBytes*3)

	vad := mustVADEngine(false, false, false)
	asr := &mockASREngine{transcript: "unused", failAt: -1}

	var records []BatchRecord
	RunBatchTranscription(context.Background(), pcm, cfg, vad, asr, nil, func(r BatchRecord) {
		records = append(records, r)
	})

	summary := records[1].Data.(BatchSegmentsSummaryPayload)
	if summary.SegmentCount != 0 {
		t.Fatalf("expected zero segments for a silent buffer, got %d", summary.SegmentCount)
	}
	if asr.calls != 0 {
		t.Fatalf("expected no ASR calls for a silent buffer")
	}
}
