package fingerprint

import "encoding/binary"

// LocalMatcher wraps an Index with a warm-at-startup lifecycle.
// Index.Refresh is a full copy-on-write rebuild; cmd/server's
// warmMatcher calls Warm once at startup with a
// repository.ListFingerprints snapshot. Nothing re-warms the index
// afterwards, and fingerprints the Track Registry attaches while the
// service runs are not added to it, so they match locally only after a
// restart.
type LocalMatcher struct {
	index         *Index
	minConfidence float64
}

func NewLocalMatcher(minConfidence float64) *LocalMatcher {
	return &LocalMatcher{index: NewIndex(), minConfidence: minConfidence}
}

// Warm rebuilds the index from a fresh snapshot of stored fingerprints.
func (m *LocalMatcher) Warm(records []IndexRecord) {
	m.index.Refresh(records)
}

// Match looks up fp against the warmed index, applying the
// local_min_confidence floor (spec.md §4.4).
func (m *LocalMatcher) Match(fp *Fingerprint) (trackID string, confidence float64, ok bool) {
	return m.index.Match(fp, m.minConfidence)
}

// DecodeHashes reverses the little-endian uint32 packing the Registry
// writes to Fingerprint.FpBlob when it attaches a new fingerprint, so a
// stored blob can be replayed back into an IndexRecord at startup.
func DecodeHashes(blob []byte) []uint32 {
	hashes := make([]uint32, len(blob)/4)
	for i := range hashes {
		hashes[i] = binary.LittleEndian.Uint32(blob[i*4:])
	}
	return hashes
}
