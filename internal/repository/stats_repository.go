package repository

import (
	"context"
	"time"

	"github.com/zfogg/sidechain/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatsRepository applies the five rollup increments the Stats Recorder
// writes alongside every Detection, all in one transaction (spec.md §4.8,
// §8 invariant: rollups equal the sum of their underlying detections).
type StatsRepository interface {
	RecordPlay(ctx context.Context, d *models.Detection, track *models.Track) error
	ExtendPlay(ctx context.Context, detectionID, stationID string, track *models.Track, newEnded time.Time, newDuration float64) error
}

type statsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

// RecordPlay writes the Detection and bumps TrackStats, ArtistStats,
// StationStats, StationTrackStats, and (when the track has one)
// LabelStats, all inside a single transaction so a crash never leaves a
// Detection without its rollups or vice versa.
func (r *statsRepository) RecordPlay(ctx context.Context, d *models.Detection, track *models.Track) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(d).Error; err != nil {
			return err
		}

		if err := upsertRollup(tx, &models.TrackStats{
			TrackID: track.ID, PlayCount: 1, TotalDuration: d.DurationS, LastSeenAt: d.EndedAt,
		}, "track_stats", "track_id"); err != nil {
			return err
		}

		if err := upsertRollup(tx, &models.ArtistStats{
			ArtistID: track.ArtistID, PlayCount: 1, TotalDuration: d.DurationS, LastSeenAt: d.EndedAt,
		}, "artist_stats", "artist_id"); err != nil {
			return err
		}

		if track.LabelID != nil {
			if err := upsertRollup(tx, &models.LabelStats{
				LabelID: *track.LabelID, PlayCount: 1, TotalDuration: d.DurationS, LastSeenAt: d.EndedAt,
			}, "label_stats", "label_id"); err != nil {
				return err
			}
		}

		if err := upsertRollup(tx, &models.StationStats{
			StationID: d.StationID, PlayCount: 1, TotalDuration: d.DurationS, LastSeenAt: d.EndedAt,
		}, "station_stats", "station_id"); err != nil {
			return err
		}

		return upsertStationTrack(tx, d.StationID, track.ID, d.DurationS, d.EndedAt)
	})
}

// upsertRollup inserts the row on first sight or atomically increments
// play_count/total_duration on conflict, avoiding a read-modify-write
// race between concurrent stations recognizing the same track.
func upsertRollup(tx *gorm.DB, row interface{}, table, conflictColumn string) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: conflictColumn}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"play_count":     gorm.Expr(table + ".play_count + 1"),
			"total_duration": gorm.Expr(table + ".total_duration + EXCLUDED.total_duration"),
			"last_seen_at":   gorm.Expr("EXCLUDED.last_seen_at"),
		}),
	}).Create(row).Error
}

// ExtendPlay applies the Play Tracker's gap-merge rule (spec.md §4.7) to
// an already-persisted Detection: the row's end/duration extend instead
// of a new Detection being inserted, and rollups advance only by the
// incremental duration delta rather than double-counting the portion
// already recorded, with no play_count increment (it's the same play).
func (r *statsRepository) ExtendPlay(ctx context.Context, detectionID, stationID string, track *models.Track, newEnded time.Time, newDuration float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Detection
		if err := tx.Where("id = ?", detectionID).First(&existing).Error; err != nil {
			return err
		}
		delta := newDuration - existing.DurationS

		if err := tx.Model(&models.Detection{}).Where("id = ?", detectionID).
			Updates(map[string]interface{}{"ended_at": newEnded, "duration_s": newDuration}).Error; err != nil {
			return err
		}

		if err := extendRollup(tx, "track_stats", "track_id", track.ID, delta, newEnded); err != nil {
			return err
		}
		if err := extendRollup(tx, "artist_stats", "artist_id", track.ArtistID, delta, newEnded); err != nil {
			return err
		}
		if track.LabelID != nil {
			if err := extendRollup(tx, "label_stats", "label_id", *track.LabelID, delta, newEnded); err != nil {
				return err
			}
		}
		if err := extendRollup(tx, "station_stats", "station_id", stationID, delta, newEnded); err != nil {
			return err
		}
		return tx.Exec(
			`UPDATE station_track_stats SET total_duration = total_duration + ?, last_seen_at = GREATEST(last_seen_at, ?)
			 WHERE station_id = ? AND track_id = ?`,
			delta, newEnded, stationID, track.ID,
		).Error
	})
}

func extendRollup(tx *gorm.DB, table, column, id string, delta float64, seenAt time.Time) error {
	return tx.Exec(
		"UPDATE "+table+" SET total_duration = total_duration + ?, last_seen_at = GREATEST(last_seen_at, ?) WHERE "+column+" = ?",
		delta, seenAt, id,
	).Error
}

func upsertStationTrack(tx *gorm.DB, stationID, trackID string, duration float64, seenAt time.Time) error {
	row := &models.StationTrackStats{
		StationID: stationID, TrackID: trackID, PlayCount: 1, TotalDuration: duration, LastSeenAt: seenAt,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "station_id"}, {Name: "track_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"play_count":     gorm.Expr("station_track_stats.play_count + 1"),
			"total_duration": gorm.Expr("station_track_stats.total_duration + EXCLUDED.total_duration"),
			"last_seen_at":   gorm.Expr("EXCLUDED.last_seen_at"),
		}),
	}).Create(row).Error
}
