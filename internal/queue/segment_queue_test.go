package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/backend/internal/audio"
)

func TestSegmentQueue_ProcessesSubmittedSegment(t *testing.T) {
	extractor := audio.NewExtractor(audio.DefaultExtractorConfig())
	q := NewSegmentQueue(extractor, nil)
	q.Start()
	defer q.Stop()

	pcm := make([]int16, 44100*2)
	seg := audio.Segment{StationID: "station-1", StartedAt: 0, EndedAt: 2 * time.Second, PCM: pcm}

	result := make(chan audio.Features, 1)
	q.Submit(seg, result)

	select {
	case features := <-result:
		require.InDelta(t, 2.0, features.DurationS, 0.01)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for extraction result")
	}
}
