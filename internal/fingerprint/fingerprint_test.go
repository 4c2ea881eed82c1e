package fingerprint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(freq float64, sampleRate int, seconds float64) []float64 {
	n := int(float64(sampleRate) * seconds)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return samples
}

func TestGenerate_TooShortSegment(t *testing.T) {
	f := New()
	_, err := f.Generate(make([]float64, 10))
	assert.ErrorIs(t, err, errTooShort)
}

func TestGenerate_ProducesStableHash(t *testing.T) {
	f := New()
	samples := sineWave(440, f.config.SampleRate, 2.0)

	fp1, err := f.Generate(samples)
	require.NoError(t, err)
	fp2, err := f.Generate(samples)
	require.NoError(t, err)

	assert.Equal(t, fp1.Hash, fp2.Hash, "identical input must fingerprint identically")
	assert.NotEmpty(t, fp1.Hashes)
}

func TestGenerate_DifferentAudioDiffers(t *testing.T) {
	f := New()
	a, err := f.Generate(sineWave(440, f.config.SampleRate, 2.0))
	require.NoError(t, err)
	b, err := f.Generate(sineWave(880, f.config.SampleRate, 2.0))
	require.NoError(t, err)

	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestIndex_MatchFindsExactRecording(t *testing.T) {
	f := New()
	samples := sineWave(440, f.config.SampleRate, 3.0)
	fp, err := f.Generate(samples)
	require.NoError(t, err)

	idx := NewIndex()
	idx.Refresh([]IndexRecord{
		{TrackID: "track-a", Hashes: fp.Hashes, Timestamps: fp.Timestamps},
	})

	trackID, confidence, ok := idx.Match(fp, 0.5)
	require.True(t, ok)
	assert.Equal(t, "track-a", trackID)
	assert.Greater(t, confidence, 0.5)
}

func TestIndex_NoMatchBelowConfidenceFloor(t *testing.T) {
	f := New()
	known, err := f.Generate(sineWave(440, f.config.SampleRate, 3.0))
	require.NoError(t, err)
	unknown, err := f.Generate(sineWave(1200, f.config.SampleRate, 3.0))
	require.NoError(t, err)

	idx := NewIndex()
	idx.Refresh([]IndexRecord{
		{TrackID: "track-a", Hashes: known.Hashes, Timestamps: known.Timestamps},
	})

	_, _, ok := idx.Match(unknown, 0.8)
	assert.False(t, ok)
}
