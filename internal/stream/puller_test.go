package stream

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/backend/internal/pipeline"
)

// fakeCmd replaces the ffmpeg subprocess with one producing a fixed
// number of silent PCM bytes, so these tests never depend on a real
// ffmpeg binary being installed.
func fakeCmd(byteCount int) func(ctx context.Context, url string) *exec.Cmd {
	return func(ctx context.Context, url string) *exec.Cmd {
		return exec.CommandContext(ctx, "head", "-c", itoa(byteCount), "/dev/zero")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestPuller_EmitsChunksInOrder(t *testing.T) {
	samplesPerChunk := int(SampleRate * chunkDuration.Seconds())
	bytesPerChunk := samplesPerChunk * BytesPerSample * Channels

	p := New("station-1", "http://example.com/stream")
	p.newCmd = fakeCmd(bytesPerChunk * 3)

	out := make(chan Chunk, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.pullOnce(ctx, out)
	require.NoError(t, err)
	close(out)

	var chunks []Chunk
	for c := range out {
		chunks = append(chunks, c)
	}

	require.Len(t, chunks, 3)
	assert.Equal(t, time.Duration(0), chunks[0].Timestamp)
	assert.True(t, chunks[1].Timestamp > chunks[0].Timestamp)
	assert.True(t, chunks[2].Timestamp > chunks[1].Timestamp)
	assert.Len(t, chunks[0].PCM, samplesPerChunk*Channels)
}

func TestPuller_StreamDeadAfterRepeatedFailures(t *testing.T) {
	p := New("station-2", "http://example.com/stream")
	p.MaxConsecutiveFailures = 2
	p.FailureWindow = time.Minute
	p.newCmd = func(ctx context.Context, url string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	}

	out := make(chan Chunk, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.Run(ctx, out)
	require.Error(t, err)

	var deadErr *pipeline.StreamDeadError
	require.ErrorAs(t, err, &deadErr)
	assert.Equal(t, "station-2", deadErr.StationID)
}

func TestBytesToInt16(t *testing.T) {
	pcm := bytesToInt16([]byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80})
	require.Len(t, pcm, 3)
	assert.Equal(t, int16(0), pcm[0])
	assert.Equal(t, int16(32767), pcm[1])
	assert.Equal(t, int16(-32768), pcm[2])
}
