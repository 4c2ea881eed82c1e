// Package supervisor implements the Station Supervisor (spec.md §4.10):
// one Supervisor owns a single station's entire ingestion pipeline —
// Puller, Segmenter, shared SegmentQueue submission, Local Matcher
// lookup, External Recognizer fallback, Track Registry resolution, Play
// Tracker state, and Stats Recorder persistence — and restarts that
// pipeline with backoff when it dies, the way the teacher's worker pool
// restarts a stuck AudioQueue worker.
package supervisor

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/zfogg/sidechain/backend/internal/audio"
	"github.com/zfogg/sidechain/backend/internal/config"
	"github.com/zfogg/sidechain/backend/internal/fingerprint"
	"github.com/zfogg/sidechain/backend/internal/models"
	"github.com/zfogg/sidechain/backend/internal/pipeline"
	"github.com/zfogg/sidechain/backend/internal/queue"
	"github.com/zfogg/sidechain/backend/internal/recognition"
	"github.com/zfogg/sidechain/backend/internal/registry"
	"github.com/zfogg/sidechain/backend/internal/repository"
	"github.com/zfogg/sidechain/backend/internal/stats"
	"github.com/zfogg/sidechain/backend/internal/stream"
	"github.com/zfogg/sidechain/backend/internal/telemetry"
	"github.com/zfogg/sidechain/backend/internal/tracker"
	"github.com/zfogg/sidechain/backend/internal/websocket"
)

var domainEvents = telemetry.GetDomainEvents()

// EventPublisher is the subset of websocket.Handler the Supervisor needs,
// kept as an interface so tests can substitute a recorder instead of
// standing up a real Hub.
type EventPublisher interface {
	PublishTrackDetection(stationID string, payload websocket.TrackDetectionPayload)
	PublishStationError(stationID string, payload websocket.StationErrorPayload)
}

// Deps are the shared, process-wide collaborators every station's
// Supervisor draws on — one instance of each is constructed in
// cmd/server and handed by the Scheduler to every Supervisor it starts.
type Deps struct {
	Config     *config.Config
	Matcher    *fingerprint.LocalMatcher
	Recognizer *recognition.Recognizer
	Registry   *registry.Registry
	Recorder   *stats.Recorder
	Tracks     repository.TrackRepository
	Stations   repository.StationRepository
	Events     EventPublisher
	Logger     *zap.Logger

	// OnDetectionRecorded, if set, is called once per successfully
	// persisted (non-deduped, non-merged-as-duplicate) Detection — the
	// Scheduler uses it to keep the status_update tick's running totals
	// (spec.md §4.11) without querying the database every second.
	OnDetectionRecorded func()
}

// Supervisor owns one station's pipeline lifecycle.
type Supervisor struct {
	station models.Station
	deps    Deps

	segQueue *queue.SegmentQueue
	tracker  *tracker.Tracker
	logger   *zap.Logger

	lastChunkAt atomic.Int64 // unix nanos; 0 means never

	trackCache map[string]*models.Track
	runStart   time.Time
}

// New builds a Supervisor for station, using queue as the shared
// CPU-bound extraction pool (spec.md §4.3: one SegmentQueue serves every
// station so a burst on one never starves the others).
func New(station models.Station, deps Deps, segQueue *queue.SegmentQueue) *Supervisor {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{
		station:  station,
		deps:     deps,
		segQueue: segQueue,
		logger:   log,
		tracker: tracker.New(station.ID, tracker.Config{
			RecordMinConfidence:  cfg.RecordMinConfidence,
			MinDetectionDuration: cfg.MinDetectionDuration,
			MergeGap:             cfg.MergeGap,
			GapTolerance:         cfg.GapTolerance,
			PlayingTimeout:       cfg.PlayingTimeout,
		}),
		trackCache: make(map[string]*models.Track),
	}
}

// LastChunkAt reports when this station's Puller last delivered a chunk,
// the health signal spec.md §4.10 asks the Supervisor to expose.
func (s *Supervisor) LastChunkAt() time.Time {
	ns := s.lastChunkAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Drain closes this station's in-flight play (if any) and persists it,
// used by the Scheduler's graceful shutdown (spec.md §4.11).
func (s *Supervisor) Drain(ctx context.Context) {
	s.emit(ctx, s.tracker.Drain())
}

// Run drives the pipeline for this station until ctx is cancelled,
// restarting it with exponential backoff on a fatal error up to
// max_restarts_per_window, after which the station is marked errored and
// Run returns (spec.md §4.10).
func (s *Supervisor) Run(ctx context.Context) {
	var restarts []time.Time
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			continue
		}

		s.logger.Warn("station pipeline exited", zap.String("station_id", s.station.ID), zap.Error(err))
		s.publishError(err)

		now := time.Now()
		restarts = append(restarts, now)
		restarts = dropOlderThan(restarts, now.Add(-s.deps.Config.RestartWindow))
		if len(restarts) > s.deps.Config.MaxRestartsPerWindow {
			s.markErrored(ctx)
			return
		}

		attempt++
		_, span := domainEvents.TraceStationRestart(ctx, telemetry.StationEventAttrs{
			StationID:  s.station.ID,
			Reason:     err.Error(),
			RestartTry: attempt,
		})
		span.End()

		if waitErr := s.backoff(ctx, attempt); waitErr != nil {
			return
		}
	}
}

// runOnce wires and runs one full pipeline session: Puller -> Segmenter
// -> (shared SegmentQueue) -> recognition -> Tracker -> persistence. It
// returns when the Puller gives up (transient budget exhausted) or a
// pipeline-fatal error surfaces.
func (s *Supervisor) runOnce(ctx context.Context) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.runStart = time.Now()

	puller := stream.New(s.station.ID, s.station.StreamURL)
	segmenter := audio.NewSegmenter(s.station.ID, audio.SegmenterConfig{
		SilenceThreshold: s.deps.Config.SilenceThreshold,
		SilenceHold:      s.deps.Config.SilenceHold,
		ChangeThreshold:  s.deps.Config.ChangeThreshold,
		MaxSegment:       s.deps.Config.MaxSegment,
		MinSegment:       s.deps.Config.MinSegment,
	})

	chunks := make(chan stream.Chunk, 64)
	segments := make(chan audio.Segment, 16)

	pullErrCh := make(chan error, 1)
	go func() {
		pullErrCh <- puller.Run(sessionCtx, s.monitoredChunks(chunks))
	}()

	go func() {
		segmenter.Run(sessionCtx, chunks, segments)
		close(segments)
	}()

	go s.tickLoop(sessionCtx)

	for seg := range segments {
		s.handleSegment(sessionCtx, seg)
	}

	return <-pullErrCh
}

// monitoredChunks wraps out so every chunk updates lastChunkAt before
// reaching the Segmenter, without the Segmenter needing to know about
// health tracking.
func (s *Supervisor) monitoredChunks(out chan<- stream.Chunk) chan<- stream.Chunk {
	wrapped := make(chan stream.Chunk)
	go func() {
		for c := range wrapped {
			s.lastChunkAt.Store(time.Now().UnixNano())
			out <- c
		}
		close(out)
	}()
	return wrapped
}

func (s *Supervisor) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.deps.Config.SegmentPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.emit(ctx, s.tracker.Tick(now))
		}
	}
}

// handleSegment extracts features, runs local-then-external recognition,
// and feeds the verdict to the Play Tracker (spec.md §4.3-§4.7).
func (s *Supervisor) handleSegment(ctx context.Context, seg audio.Segment) {
	resultCh := make(chan audio.Features, 1)
	s.segQueue.Submit(seg, resultCh)

	var features audio.Features
	select {
	case features = <-resultCh:
	case <-ctx.Done():
		return
	}

	ts := tracker.SegmentTimestamp{
		Start: s.runStart.Add(seg.StartedAt),
		End:   s.runStart.Add(seg.EndedAt),
	}

	if !features.IsMusic {
		s.emit(ctx, s.tracker.OnSpeech(ts))
		return
	}

	outcome := s.recognize(ctx, seg, features)
	if !outcome.IsMatch() {
		s.emit(ctx, s.tracker.OnUnknown(ts))
		return
	}

	track, err := s.deps.Registry.Resolve(ctx, outcome, features.FingerprintHash, fingerprintBlob(features))
	if err != nil {
		s.logger.Warn("registry resolve failed", zap.String("station_id", s.station.ID), zap.Error(err))
		s.emit(ctx, s.tracker.OnUnknown(ts))
		return
	}
	s.trackCache[track.ID] = track

	s.emit(ctx, s.tracker.OnMatch(track.ID, features.FingerprintHash, outcome.Confidence, outcome.Method, ts))
}

// recognize tries the Local Matcher first, falling back to the External
// Recognizer cascade only on a local miss (spec.md §4.4, §4.5).
func (s *Supervisor) recognize(ctx context.Context, seg audio.Segment, features audio.Features) recognition.Outcome {
	if features.Fingerprint != nil {
		if trackID, confidence, ok := s.deps.Matcher.Match(features.Fingerprint); ok {
			_, span := domainEvents.TraceRecognize(ctx, telemetry.RecognitionAttrs{
				StationID:  s.station.ID,
				Method:     "local",
				Confidence: confidence,
				LocalHit:   true,
			})
			span.End()
			return recognition.LocalMatchOutcome(trackID, confidence)
		}
	}

	_, span := domainEvents.TraceRecognize(ctx, telemetry.RecognitionAttrs{
		StationID:    s.station.ID,
		Method:       "external",
		FallbackUsed: true,
	})
	defer span.End()

	outcome, err := s.deps.Recognizer.Recognize(ctx, features.FingerprintHash, features.DurationS, clipBytes(seg))
	if err != nil {
		telemetry.RecordDomainError(span, err, true)
		s.logger.Warn("external recognition error", zap.String("station_id", s.station.ID), zap.Error(err))
		return recognition.NoMatchOutcome()
	}
	return outcome
}

// emit persists a closed play and publishes it to the Event Bus. A nil
// result means no play closed on this input.
func (s *Supervisor) emit(ctx context.Context, result *tracker.CloseResult) {
	if result == nil {
		return
	}

	track := s.trackCache[result.Detection.TrackID]
	if track == nil {
		fetched, err := s.deps.Tracks.GetTrack(ctx, result.Detection.TrackID)
		if err != nil {
			s.logger.Warn("track missing at close",
				zap.String("station_id", s.station.ID), zap.String("track_id", result.Detection.TrackID), zap.Error(err))
			return
		}
		track = fetched
		s.trackCache[track.ID] = track
	}

	_, span := domainEvents.TraceRecordDetection(ctx, telemetry.DetectionAttrs{
		StationID:  s.station.ID,
		TrackID:    track.ID,
		Method:     string(result.Detection.Method),
		Confidence: result.Detection.Confidence,
		DurationS:  result.Detection.Duration.Seconds(),
	})
	defer span.End()

	id, err := s.deps.Recorder.Record(ctx, s.station.ID, track, s.tracker, result)
	if err != nil {
		telemetry.RecordDomainError(span, err, false)
		s.logger.Warn("failed to record play", zap.String("station_id", s.station.ID), zap.Error(err))
		return
	}
	if id == "" {
		return
	}

	if s.deps.OnDetectionRecorded != nil && result.MergeWithPreviousID == "" {
		s.deps.OnDetectionRecorded()
	}

	if s.deps.Events != nil {
		s.deps.Events.PublishTrackDetection(s.station.ID, websocket.TrackDetectionPayload{
			StationID:  s.station.ID,
			TrackID:    track.ID,
			Title:      track.Title,
			Artist:     track.Artist.Name,
			Confidence: result.Detection.Confidence,
			Method:     string(result.Detection.Method),
			StartedAt:  result.Detection.Started.UnixMilli(),
			EndedAt:    result.Detection.Ended.UnixMilli(),
			DurationS:  result.Detection.Duration.Seconds(),
			Final:      true,
		})
	}
}

func (s *Supervisor) publishError(err error) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.PublishStationError(s.station.ID, websocket.StationErrorPayload{
		StationID: s.station.ID,
		Error:     err.Error(),
		Fatal:     pipeline.IsFatal(err),
	})
}

func (s *Supervisor) markErrored(ctx context.Context) {
	s.logger.Error("station exceeded restart budget, marking errored", zap.String("station_id", s.station.ID))
	if err := s.deps.Stations.UpdateStatus(ctx, s.station.ID, models.StationError, time.Now()); err != nil {
		s.logger.Error("failed to persist errored status", zap.String("station_id", s.station.ID), zap.Error(err))
	}
}

// backoff sleeps an exponential, jittered delay, the same shape the
// Stream Puller uses for reconnects, before the Supervisor tries a fresh
// pipeline session.
func (s *Supervisor) backoff(ctx context.Context, attempt int) error {
	base := 2 * time.Second
	cap := 2 * time.Minute
	delay := base * time.Duration(1<<uint(min(attempt, 6)))
	if delay > cap {
		delay = cap
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))
	delay = delay/2 + jitter

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func dropOlderThan(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	return times[i:]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clipBytes(seg audio.Segment) []byte {
	buf := make([]byte, len(seg.PCM)*2)
	for i, sample := range seg.PCM {
		buf[2*i] = byte(uint16(sample))
		buf[2*i+1] = byte(uint16(sample) >> 8)
	}
	return buf
}

func fingerprintBlob(features audio.Features) []byte {
	if features.Fingerprint == nil {
		return nil
	}
	buf := make([]byte, len(features.Fingerprint.Hashes)*4)
	for i, h := range features.Fingerprint.Hashes {
		buf[4*i] = byte(h)
		buf[4*i+1] = byte(h >> 8)
		buf[4*i+2] = byte(h >> 16)
		buf[4*i+3] = byte(h >> 24)
	}
	return buf
}
