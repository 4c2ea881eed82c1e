// Package tracker implements the Play Tracker (spec.md §4.7): a
// per-station state machine that turns an intermittent stream of
// segment-level recognitions into continuous "track T played from T0 to
// T1" facts, with gap tolerance, track-change probation, and gap
// merging. One Tracker instance owns exactly one station's state and is
// never shared across goroutines without its own lock, matching the
// "no global lock, per-station owned state" rule in spec.md §5.
package tracker

import (
	"sync"
	"time"

	"github.com/zfogg/sidechain/backend/internal/recognition"
)

// SegmentTimestamp is the wall-clock span a segment covers, recorded
// once at segment start and carried through the pipeline unmodified
// (spec.md §4.7 "Clock" tie-break).
type SegmentTimestamp struct {
	Start time.Time
	End   time.Time
}

// Config tunes the state machine's thresholds, loaded from
// internal/config.Config's Play Tracker section.
type Config struct {
	RecordMinConfidence  float64
	MinDetectionDuration time.Duration
	MergeGap             time.Duration
	GapTolerance         time.Duration
	PlayingTimeout       time.Duration
}

// currentPlay is the in-memory record of the track believed to be
// currently broadcasting (spec.md §3 CurrentPlay). It exists only
// between Tracker "open" and "close" transitions.
type currentPlay struct {
	trackID     string
	fpHash      string
	confidence  float64
	method      recognition.Method
	start       time.Time
	lastConfirm time.Time
}

// Detection is one completed play interval, ready for the Stats
// Recorder to persist.
type Detection struct {
	StationID       string
	TrackID         string
	Started         time.Time
	Ended           time.Time
	Duration        time.Duration
	Confidence      float64
	Method          recognition.Method
	FingerprintHash string
}

// CloseResult is what a Tracker transition that closes a play produces.
// When MergeWithPreviousID is non-empty, the caller must UPDATE that
// existing Detection row (extend its end/duration) instead of inserting
// Detection as a new row (spec.md §4.7 gap-merge rule).
type CloseResult struct {
	Detection           Detection
	MergeWithPreviousID string
}

// Tracker is one station's Play Tracker state machine.
type Tracker struct {
	mu        sync.Mutex
	stationID string
	cfg       Config

	current *currentPlay

	pendingTrackID     string
	pendingFpHash      string
	pendingConfidence  float64
	pendingMethod      recognition.Method
	pendingStart       time.Time
	pendingLastConfirm time.Time
	pendingConfirms    int

	unknownStreak int

	lastDetection   *Detection // for gap-merge comparison
	lastDetectionID string     // persisted ID of lastDetection, set by RecordPersistedID
}

func New(stationID string, cfg Config) *Tracker {
	return &Tracker{stationID: stationID, cfg: cfg}
}

// RecordPersistedID tells the Tracker the ID under which its most
// recent CloseResult.Detection was actually stored, so the next close's
// gap-merge check can reference the right row to extend.
func (t *Tracker) RecordPersistedID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastDetection != nil {
		t.lastDetectionID = id
	}
}

// OnMatch handles input M(track_id, fp_hash, conf, seg_ts) (spec.md §4.7).
func (t *Tracker) OnMatch(trackID, fpHash string, confidence float64, method recognition.Method, ts SegmentTimestamp) *CloseResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		if confidence < t.cfg.RecordMinConfidence {
			return nil
		}
		t.open(trackID, fpHash, confidence, method, ts)
		return nil
	}

	if trackID == t.current.trackID {
		t.unknownStreak = 0
		t.pendingTrackID = ""
		t.pendingConfirms = 0
		t.current.lastConfirm = ts.End
		return nil
	}

	// Different track: accumulate probation confirms before closing the
	// old play (spec.md §4.7 tie-break: "Track changes require two
	// consecutive confirming segments").
	if trackID == t.pendingTrackID {
		t.pendingConfirms++
		t.pendingLastConfirm = ts.End
	} else {
		t.pendingTrackID = trackID
		t.pendingFpHash = fpHash
		t.pendingConfidence = confidence
		t.pendingMethod = method
		t.pendingStart = ts.Start
		t.pendingLastConfirm = ts.End
		t.pendingConfirms = 1
	}

	if t.pendingConfirms < 2 {
		return nil
	}

	result := t.closeCurrent(t.current.lastConfirm)
	t.open(t.pendingTrackID, t.pendingFpHash, t.pendingConfidence, t.pendingMethod,
		SegmentTimestamp{Start: t.pendingStart, End: t.pendingLastConfirm})
	t.current.lastConfirm = t.pendingLastConfirm
	t.clearPending()
	return result
}

// OnUnknown handles input U(seg_ts): a music segment with no recognized
// track. One unrecognized segment doesn't end a play; a sustained run
// exceeding gap_tolerance does.
func (t *Tracker) OnUnknown(ts SegmentTimestamp) *CloseResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return nil
	}

	t.unknownStreak++
	segDur := ts.End.Sub(ts.Start)
	if time.Duration(t.unknownStreak)*segDur > t.cfg.GapTolerance {
		result := t.closeCurrent(t.current.lastConfirm)
		t.clearPending()
		t.unknownStreak = 0
		return result
	}

	t.current.lastConfirm = ts.End
	return nil
}

// OnSpeech handles input S(seg_ts): speech/silence always ends the
// current play immediately.
func (t *Tracker) OnSpeech(ts SegmentTimestamp) *CloseResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return nil
	}
	result := t.closeCurrent(t.current.lastConfirm)
	t.clearPending()
	t.unknownStreak = 0
	return result
}

// Tick handles the periodic internal tick: a PLAYING state whose
// last_confirm is older than playing_timeout is considered abandoned.
func (t *Tracker) Tick(now time.Time) *CloseResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return nil
	}
	if now.Sub(t.current.lastConfirm) <= t.cfg.PlayingTimeout {
		return nil
	}
	result := t.closeCurrent(t.current.lastConfirm)
	t.clearPending()
	t.unknownStreak = 0
	return result
}

// Drain closes any in-flight play, used by the Scheduler's graceful
// shutdown path (spec.md §4.11): "drain Play Trackers (close current
// plays with their current accumulated duration)".
func (t *Tracker) Drain() *CloseResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	return t.closeCurrent(t.current.lastConfirm)
}

func (t *Tracker) open(trackID, fpHash string, confidence float64, method recognition.Method, ts SegmentTimestamp) {
	t.current = &currentPlay{
		trackID:     trackID,
		fpHash:      fpHash,
		confidence:  confidence,
		method:      method,
		start:       ts.Start,
		lastConfirm: ts.End,
	}
}

func (t *Tracker) clearPending() {
	t.pendingTrackID = ""
	t.pendingConfirms = 0
}

// closeCurrent ends t.current at end, applying the minimum-duration
// gate and gap-merge rule, then clears t.current. Returns nil if the
// interval was discarded for being under min_detection_duration.
func (t *Tracker) closeCurrent(end time.Time) *CloseResult {
	cp := t.current
	t.current = nil
	if cp == nil {
		return nil
	}

	duration := end.Sub(cp.start)
	if duration < t.cfg.MinDetectionDuration {
		return nil
	}

	det := Detection{
		StationID:       t.stationID,
		TrackID:         cp.trackID,
		Started:         cp.start,
		Ended:           end,
		Duration:        duration,
		Confidence:      cp.confidence,
		Method:          cp.method,
		FingerprintHash: cp.fpHash,
	}

	if t.lastDetection != nil &&
		t.lastDetection.TrackID == det.TrackID &&
		det.Started.Sub(t.lastDetection.Ended) < t.cfg.MergeGap {

		merged := *t.lastDetection
		merged.Ended = det.Ended
		merged.Duration = merged.Ended.Sub(merged.Started)
		t.lastDetection = &merged
		return &CloseResult{Detection: merged, MergeWithPreviousID: t.lastDetectionID}
	}

	t.lastDetection = &det
	t.lastDetectionID = ""
	return &CloseResult{Detection: det}
}
