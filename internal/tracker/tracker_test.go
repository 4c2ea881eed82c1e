package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/backend/internal/recognition"
)

func testConfig() Config {
	return Config{
		RecordMinConfidence:  0.50,
		MinDetectionDuration: 5 * time.Second,
		MergeGap:             5 * time.Second,
		GapTolerance:         10 * time.Second,
		PlayingTimeout:       30 * time.Second,
	}
}

func seg(start, end time.Duration) SegmentTimestamp {
	base := time.Unix(0, 0)
	return SegmentTimestamp{Start: base.Add(start), End: base.Add(end)}
}

// Scenario 1: clean single track, one Detection ~45s.
func TestTracker_CleanSingleTrack(t *testing.T) {
	tr := New("station-1", testConfig())

	res := tr.OnMatch("track-1", "hash-1", 0.9, recognition.MethodLocal, seg(0, 45*time.Second))
	assert.Nil(t, res)

	res = tr.OnSpeech(seg(45*time.Second, 46*time.Second))
	require.NotNil(t, res)
	assert.Equal(t, "track-1", res.Detection.TrackID)
	assert.InDelta(t, 45, res.Detection.Duration.Seconds(), 0.01)
	assert.Empty(t, res.MergeWithPreviousID)
}

// Scenario 4: speech interruption splits the play into two Detections.
func TestTracker_SpeechInterruptionSplitsPlay(t *testing.T) {
	tr := New("station-1", testConfig())

	tr.OnMatch("track-1", "h", 0.9, recognition.MethodLocal, seg(0, 20*time.Second))
	first := tr.OnSpeech(seg(20*time.Second, 25*time.Second))
	require.NotNil(t, first)
	assert.InDelta(t, 20, first.Detection.Duration.Seconds(), 0.01)

	tr.OnMatch("track-1", "h", 0.9, recognition.MethodLocal, seg(25*time.Second, 45*time.Second))
	second := tr.OnSpeech(seg(45*time.Second, 46*time.Second))
	require.NotNil(t, second)
	assert.InDelta(t, 20, second.Detection.Duration.Seconds(), 0.01)
	// Gap (first play ends at 20s, second starts at 25s, same track) is 5s,
	// not below merge_gap of 5s, so this must NOT merge.
	assert.Empty(t, second.MergeWithPreviousID)
}

// Scenario 5: one unknown segment within gap_tolerance does not split the play.
func TestTracker_OneUnknownSegmentToleratesGap(t *testing.T) {
	tr := New("station-1", testConfig())

	tr.OnMatch("track-1", "h", 0.9, recognition.MethodLocal, seg(0, 20*time.Second))
	res := tr.OnUnknown(seg(20*time.Second, 26*time.Second))
	assert.Nil(t, res) // 6s unknown < gap_tolerance(10s), tolerated

	res = tr.OnMatch("track-1", "h", 0.9, recognition.MethodLocal, seg(26*time.Second, 46*time.Second))
	assert.Nil(t, res)

	res = tr.OnSpeech(seg(46*time.Second, 47*time.Second))
	require.NotNil(t, res)
	assert.InDelta(t, 46, res.Detection.Duration.Seconds(), 0.5)
}

// Boundary: a 4-second detection is discarded.
func TestTracker_ShortDetectionDiscarded(t *testing.T) {
	tr := New("station-1", testConfig())
	tr.OnMatch("track-1", "h", 0.9, recognition.MethodLocal, seg(0, 4*time.Second))
	res := tr.OnSpeech(seg(4*time.Second, 5*time.Second))
	assert.Nil(t, res)
}

// Boundary: two detections 3s apart with the same (station, track) merge.
func TestTracker_CloseDetectionsMerge(t *testing.T) {
	tr := New("station-1", testConfig())

	tr.OnMatch("track-1", "h", 0.9, recognition.MethodLocal, seg(0, 10*time.Second))
	first := tr.OnSpeech(seg(10*time.Second, 11*time.Second))
	require.NotNil(t, first)
	tr.RecordPersistedID("detection-abc")

	tr.OnMatch("track-1", "h", 0.9, recognition.MethodLocal, seg(13*time.Second, 23*time.Second))
	second := tr.OnSpeech(seg(23*time.Second, 24*time.Second))
	require.NotNil(t, second)
	assert.Equal(t, "detection-abc", second.MergeWithPreviousID)
}

// Track change requires two consecutive confirms before closing the old play.
func TestTracker_TrackChangeRequiresTwoConfirms(t *testing.T) {
	tr := New("station-1", testConfig())

	tr.OnMatch("track-1", "h1", 0.9, recognition.MethodLocal, seg(0, 20*time.Second))
	res := tr.OnMatch("track-2", "h2", 0.9, recognition.MethodLocal, seg(20*time.Second, 25*time.Second))
	assert.Nil(t, res, "one confirming segment for the new track must not close the old play")

	res = tr.OnMatch("track-2", "h2", 0.9, recognition.MethodLocal, seg(25*time.Second, 46*time.Second))
	require.NotNil(t, res, "second confirming segment closes the old play")
	assert.Equal(t, "track-1", res.Detection.TrackID)
	assert.InDelta(t, 20, res.Detection.Duration.Seconds(), 0.01)
}

func TestTracker_TickClosesAbandonedPlay(t *testing.T) {
	cfg := testConfig()
	cfg.PlayingTimeout = 10 * time.Second
	tr := New("station-1", cfg)

	tr.OnMatch("track-1", "h", 0.9, recognition.MethodLocal, seg(0, 20*time.Second))
	base := time.Unix(0, 0)
	res := tr.Tick(base.Add(35 * time.Second))
	require.NotNil(t, res)
	assert.Equal(t, "track-1", res.Detection.TrackID)
}

func TestTracker_BelowRecordMinConfidenceDiscardsOpen(t *testing.T) {
	tr := New("station-1", testConfig())
	res := tr.OnMatch("track-1", "h", 0.2, recognition.MethodLocal, seg(0, 20*time.Second))
	assert.Nil(t, res)

	res = tr.OnSpeech(seg(20*time.Second, 21*time.Second))
	assert.Nil(t, res, "no play should have opened below record_min_confidence")
}

func TestTracker_Drain(t *testing.T) {
	tr := New("station-1", testConfig())
	tr.OnMatch("track-1", "h", 0.9, recognition.MethodLocal, seg(0, 20*time.Second))
	res := tr.Drain()
	require.NotNil(t, res)
	assert.Equal(t, "track-1", res.Detection.TrackID)
}
