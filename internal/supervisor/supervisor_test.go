package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zfogg/sidechain/backend/internal/audio"
	"github.com/zfogg/sidechain/backend/internal/fingerprint"
)

func TestClipBytes_RoundTripsSamples(t *testing.T) {
	seg := audio.Segment{PCM: []int16{0, 1, -1, 32767, -32768}}
	buf := clipBytes(seg)
	assert.Len(t, buf, len(seg.PCM)*2)

	for i, sample := range seg.PCM {
		got := int16(uint16(buf[2*i]) | uint16(buf[2*i+1])<<8)
		assert.Equal(t, sample, got)
	}
}

func TestFingerprintBlob_NilWhenNoFingerprint(t *testing.T) {
	assert.Nil(t, fingerprintBlob(audio.Features{}))
}

func TestFingerprintBlob_EncodesHashes(t *testing.T) {
	features := audio.Features{Fingerprint: &fingerprint.Fingerprint{Hashes: []uint32{1, 0xFFFFFFFF}}}
	blob := fingerprintBlob(features)
	assert.Len(t, blob, 8)
}

func TestDropOlderThan_KeepsOnlyRecent(t *testing.T) {
	now := time.Now()
	times := []time.Time{now.Add(-10 * time.Minute), now.Add(-1 * time.Minute), now}
	kept := dropOlderThan(times, now.Add(-2*time.Minute))
	assert.Len(t, kept, 2)
}
