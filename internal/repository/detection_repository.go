package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zfogg/sidechain/backend/internal/models"
	"gorm.io/gorm"
)

// DetectionRepository persists the Play Tracker's closed intervals and
// answers the overlap check the Stats Recorder runs before committing a
// new one (spec.md §3, §8).
type DetectionRepository interface {
	CreateDetection(ctx context.Context, d *models.Detection) error
	Overlaps(ctx context.Context, stationID string, startedAt, endedAt time.Time) (bool, error)
	ListForStation(ctx context.Context, stationID string, since time.Time, limit int) ([]*models.Detection, error)
}

type detectionRepository struct {
	db *gorm.DB
}

func NewDetectionRepository(db *gorm.DB) DetectionRepository {
	return &detectionRepository{db: db}
}

func (r *detectionRepository) CreateDetection(ctx context.Context, d *models.Detection) error {
	if d == nil || d.StationID == "" || d.TrackID == "" {
		return ErrInvalidInput
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(d).Error
}

// Overlaps reports whether the station already has a Detection whose
// interval intersects [startedAt, endedAt). Used as a defensive check
// backing the "Detections never overlap in time for the same station"
// invariant; a true result means the caller hit a race or a tracker bug
// and should treat the write as non-fatal but log it.
func (r *detectionRepository) Overlaps(ctx context.Context, stationID string, startedAt, endedAt time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Detection{}).
		Where("station_id = ? AND started_at < ? AND ended_at > ?", stationID, endedAt, startedAt).
		Count(&count).Error
	return count > 0, err
}

func (r *detectionRepository) ListForStation(ctx context.Context, stationID string, since time.Time, limit int) ([]*models.Detection, error) {
	var detections []*models.Detection
	q := r.db.WithContext(ctx).
		Where("station_id = ? AND started_at >= ?", stationID, since).
		Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&detections).Error
	return detections, err
}
