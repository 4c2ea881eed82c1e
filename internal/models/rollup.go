package models

import "time"

// Rollups hold a monotonically increasing play count and accumulated
// play duration per aggregate (spec.md §3). They are mutated exclusively
// by the Stats Recorder, always inside the same transaction that writes
// the Detection they derive from.

type TrackStats struct {
	TrackID      string    `gorm:"primaryKey;type:varchar(36)" json:"track_id"`
	PlayCount    int64     `gorm:"not null;default:0" json:"play_count"`
	TotalDuration float64  `gorm:"not null;default:0" json:"total_duration"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

func (TrackStats) TableName() string { return "track_stats" }

type ArtistStats struct {
	ArtistID     string    `gorm:"primaryKey;type:varchar(36)" json:"artist_id"`
	PlayCount    int64     `gorm:"not null;default:0" json:"play_count"`
	TotalDuration float64  `gorm:"not null;default:0" json:"total_duration"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

func (ArtistStats) TableName() string { return "artist_stats" }

type LabelStats struct {
	LabelID      string    `gorm:"primaryKey;type:varchar(36)" json:"label_id"`
	PlayCount    int64     `gorm:"not null;default:0" json:"play_count"`
	TotalDuration float64  `gorm:"not null;default:0" json:"total_duration"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

func (LabelStats) TableName() string { return "label_stats" }

type StationStats struct {
	StationID    string    `gorm:"primaryKey;type:varchar(36)" json:"station_id"`
	PlayCount    int64     `gorm:"not null;default:0" json:"play_count"`
	TotalDuration float64  `gorm:"not null;default:0" json:"total_duration"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

func (StationStats) TableName() string { return "station_stats" }

// StationTrackStats is keyed on the (station, track) pair; its
// TotalDuration must equal the sum of that pair's Detection durations
// (spec.md §8 testable invariant).
type StationTrackStats struct {
	StationID    string    `gorm:"primaryKey;type:varchar(36)" json:"station_id"`
	TrackID      string    `gorm:"primaryKey;type:varchar(36)" json:"track_id"`
	PlayCount    int64     `gorm:"not null;default:0" json:"play_count"`
	TotalDuration float64  `gorm:"not null;default:0" json:"total_duration"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

func (StationTrackStats) TableName() string { return "station_track_stats" }
