package repository

import (
	"context"
	"errors"
	"time"

	"github.com/zfogg/sidechain/backend/internal/models"
	"gorm.io/gorm"
)

// StationRepository handles persistence for monitored stations. The
// Scheduler reads ListActive at startup to decide admission; the
// Supervisor writes status/health-check updates as streams connect,
// fail, and recover (spec.md §4.10).
type StationRepository interface {
	GetStation(ctx context.Context, stationID string) (*models.Station, error)
	ListActive(ctx context.Context) ([]*models.Station, error)
	UpdateStatus(ctx context.Context, stationID string, status models.StationStatus, checkedAt time.Time) error
}

type stationRepository struct {
	db *gorm.DB
}

func NewStationRepository(db *gorm.DB) StationRepository {
	return &stationRepository{db: db}
}

func (r *stationRepository) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	var station models.Station
	err := r.db.WithContext(ctx).Where("id = ?", stationID).First(&station).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStationNotFound
	}
	return &station, err
}

// ListActive returns every station marked active, in creation order. The
// Scheduler's admission control caps how many of these it actually starts.
func (r *stationRepository) ListActive(ctx context.Context) ([]*models.Station, error) {
	var stations []*models.Station
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&stations).Error
	return stations, err
}

func (r *stationRepository) UpdateStatus(ctx context.Context, stationID string, status models.StationStatus, checkedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Station{}).
		Where("id = ?", stationID).
		Updates(map[string]interface{}{
			"status":            status,
			"last_health_check": checkedAt,
			"updated_at":        checkedAt,
		}).Error
}
