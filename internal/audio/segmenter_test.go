package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/backend/internal/stream"
)

func defaultTestConfig() SegmenterConfig {
	return SegmenterConfig{
		SilenceThreshold: 0.05,
		SilenceHold:      500 * time.Millisecond,
		ChangeThreshold:  3.0,
		MaxSegment:       10 * time.Second,
		MinSegment:       200 * time.Millisecond,
	}
}

func loudChunk(ts time.Duration, samples int) stream.Chunk {
	pcm := make([]int16, samples)
	for i := range pcm {
		if i%2 == 0 {
			pcm[i] = 20000
		} else {
			pcm[i] = -20000
		}
	}
	return stream.Chunk{Timestamp: ts, PCM: pcm}
}

func silentChunk(ts time.Duration, samples int) stream.Chunk {
	return stream.Chunk{Timestamp: ts, PCM: make([]int16, samples)}
}

func TestSegmenter_ClosesOnSustainedSilence(t *testing.T) {
	seg := NewSegmenter("station-1", defaultTestConfig())
	in := make(chan stream.Chunk, 10)
	out := make(chan Segment, 10)

	samplesPerChunk := stream.SampleRate / 10 // 100ms chunks
	var ts time.Duration
	for i := 0; i < 5; i++ {
		in <- loudChunk(ts, samplesPerChunk)
		ts += 100 * time.Millisecond
	}
	for i := 0; i < 8; i++ {
		in <- silentChunk(ts, samplesPerChunk)
		ts += 100 * time.Millisecond
	}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	seg.Run(ctx, in, out)
	close(out)

	var segments []Segment
	for s := range out {
		segments = append(segments, s)
	}

	require.GreaterOrEqual(t, len(segments), 1)
	assert.Equal(t, time.Duration(0), segments[0].StartedAt)
	assert.Equal(t, CloseSilence, segments[0].CloseReason)
}

func TestSegmenter_ClosesOnMaxLength(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MaxSegment = 300 * time.Millisecond
	seg := NewSegmenter("station-2", cfg)

	in := make(chan stream.Chunk, 10)
	out := make(chan Segment, 10)

	samplesPerChunk := stream.SampleRate / 10
	var ts time.Duration
	for i := 0; i < 5; i++ {
		in <- loudChunk(ts, samplesPerChunk)
		ts += 100 * time.Millisecond
	}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	seg.Run(ctx, in, out)
	close(out)

	var segments []Segment
	for s := range out {
		segments = append(segments, s)
	}
	require.GreaterOrEqual(t, len(segments), 1)
	assert.Equal(t, CloseMaxLength, segments[0].CloseReason)
}

func TestRMSAmplitude(t *testing.T) {
	silent := make([]int16, 100)
	assert.Equal(t, 0.0, rmsAmplitude(silent))

	loud := make([]int16, 100)
	for i := range loud {
		loud[i] = 32767
	}
	assert.InDelta(t, 1.0, rmsAmplitude(loud), 0.001)
}
