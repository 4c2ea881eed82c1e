// Package stats implements the Stats Recorder (spec.md §4.8): persists
// a closed Play Tracker interval as a Detection and updates the five
// rollup tables in one transaction, with a Redis-backed idempotence
// check so an at-least-once delivery from upstream never double-counts
// a play.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zfogg/sidechain/backend/internal/cache"
	"github.com/zfogg/sidechain/backend/internal/models"
	"github.com/zfogg/sidechain/backend/internal/repository"
	"github.com/zfogg/sidechain/backend/internal/tracker"
	"go.uber.org/zap"
)

// idempotenceWindow bounds how long a (station, track, started_at)
// triple is remembered; spec.md §8 only requires 1s granularity, this
// is generous headroom against clock skew or retried delivery.
const idempotenceWindow = 5 * time.Minute

// Recorder wires tracker.CloseResult values to the persistence layer.
type Recorder struct {
	detections repository.DetectionRepository
	statsRepo  repository.StatsRepository
	cache      *cache.RedisClient
	logger     *zap.Logger
}

func New(detections repository.DetectionRepository, statsRepo repository.StatsRepository, redis *cache.RedisClient, logger *zap.Logger) *Recorder {
	return &Recorder{detections: detections, statsRepo: statsRepo, cache: redis, logger: logger}
}

// Record persists one Tracker.CloseResult for stationID/track, updating
// rollups, and reports the Detection ID the Tracker should remember for
// its next gap-merge comparison (spec.md §4.7, §4.8).
func (r *Recorder) Record(ctx context.Context, stationID string, track *models.Track, t *tracker.Tracker, result *tracker.CloseResult) (string, error) {
	if result == nil {
		return "", nil
	}

	if result.MergeWithPreviousID != "" {
		if err := r.statsRepo.ExtendPlay(ctx, result.MergeWithPreviousID, stationID, track,
			result.Detection.Ended, result.Detection.Duration.Seconds()); err != nil {
			return "", fmt.Errorf("extend play: %w", err)
		}
		return result.MergeWithPreviousID, nil
	}

	dedupeKey := idempotenceKey(stationID, track.ID, result.Detection.Started)
	fresh := true
	if r.cache != nil {
		var err error
		fresh, err = r.cache.SetNXEx(ctx, dedupeKey, "1", idempotenceWindow)
		if err != nil {
			r.logger.Warn("idempotence check failed, proceeding without dedupe", zap.Error(err))
			fresh = true
		}
	}
	if !fresh {
		r.logger.Info("duplicate detection suppressed", zap.String("station_id", stationID), zap.String("track_id", track.ID))
		return "", nil
	}

	overlaps, err := r.detections.Overlaps(ctx, stationID, result.Detection.Started, result.Detection.Ended)
	if err != nil {
		return "", fmt.Errorf("overlap check: %w", err)
	}
	if overlaps {
		r.logger.Warn("detection would overlap an existing one, dropping",
			zap.String("station_id", stationID), zap.Time("started_at", result.Detection.Started))
		return "", nil
	}

	d := &models.Detection{
		ID:                  uuid.NewString(),
		StationID:           stationID,
		TrackID:             track.ID,
		StartedAt:           result.Detection.Started,
		EndedAt:             result.Detection.Ended,
		DurationS:           result.Detection.Duration.Seconds(),
		Confidence:          result.Detection.Confidence,
		Method:              models.RecognitionMethod(result.Detection.Method),
		FingerprintSnapshot: result.Detection.FingerprintHash,
	}

	if err := r.statsRepo.RecordPlay(ctx, d, track); err != nil {
		return "", fmt.Errorf("record play: %w", err)
	}

	t.RecordPersistedID(d.ID)
	return d.ID, nil
}

func idempotenceKey(stationID, trackID string, startedAt time.Time) string {
	return fmt.Sprintf("idempotent:%s:%s:%d", stationID, trackID, startedAt.Unix())
}
