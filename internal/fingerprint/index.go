package fingerprint

import "sync/atomic"

// entry links one stored hash back to the track it came from.
type entry struct {
	trackID string
	anchor  int
}

// indexData is the immutable snapshot swapped in by Refresh. Index never
// mutates a snapshot in place; it builds a new map and atomically
// installs it, so lookups never block behind a refresh (LocalMatcher
// warms the index once, at startup).
type indexData struct {
	byHash map[uint32][]entry
}

// Index is the Local Matcher's in-memory hash table, shared read-only
// across all station goroutines.
type Index struct {
	snapshot atomic.Pointer[indexData]
}

// NewIndex returns an empty index; call Refresh to populate it.
func NewIndex() *Index {
	idx := &Index{}
	idx.snapshot.Store(&indexData{byHash: make(map[uint32][]entry)})
	return idx
}

// Refresh rebuilds the index from the given (trackID, hashes) pairs and
// atomically replaces the current snapshot. Safe to call concurrently
// with Match.
func (idx *Index) Refresh(records []IndexRecord) {
	data := &indexData{byHash: make(map[uint32][]entry, len(records)*8)}
	for _, rec := range records {
		for i, h := range rec.Hashes {
			anchor := 0
			if i < len(rec.Timestamps) {
				anchor = rec.Timestamps[i]
			}
			data.byHash[h] = append(data.byHash[h], entry{trackID: rec.TrackID, anchor: anchor})
		}
	}
	idx.snapshot.Store(data)
}

// IndexRecord is one stored fingerprint's hash set, as loaded from the
// repository at startup or after a new track is registered.
type IndexRecord struct {
	TrackID    string
	Hashes     []uint32
	Timestamps []int
}

// Match scores candidate tracks against a freshly-computed fingerprint
// using the classic Shazam alignment trick: hashes that belong to the
// same source recording share a constant (query_anchor - index_anchor)
// offset, so the best-aligned track is the one whose offset histogram
// has the tallest peak. Returns ok=false when nothing scores above the
// confidence floor the caller supplies.
func (idx *Index) Match(fp *Fingerprint, minConfidence float64) (trackID string, confidence float64, ok bool) {
	data := idx.snapshot.Load()
	if data == nil || len(fp.Hashes) == 0 {
		return "", 0, false
	}

	type trackVotes struct {
		offsets map[int]int
		total   int
	}
	votes := make(map[string]*trackVotes)

	for i, h := range fp.Hashes {
		queryAnchor := 0
		if i < len(fp.Timestamps) {
			queryAnchor = fp.Timestamps[i]
		}
		for _, e := range data.byHash[h] {
			tv, exists := votes[e.trackID]
			if !exists {
				tv = &trackVotes{offsets: make(map[int]int)}
				votes[e.trackID] = tv
			}
			offset := queryAnchor - e.anchor
			tv.offsets[offset]++
			tv.total++
		}
	}

	var bestTrack string
	var bestAligned int
	for track, tv := range votes {
		for _, count := range tv.offsets {
			if count > bestAligned {
				bestAligned = count
				bestTrack = track
			}
		}
	}

	if bestTrack == "" {
		return "", 0, false
	}

	confidence = float64(bestAligned) / float64(len(fp.Hashes))
	if confidence < minConfidence {
		return "", confidence, false
	}
	return bestTrack, confidence, true
}
