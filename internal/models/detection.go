package models

import "time"

// RecognitionMethod tags which subsystem produced a match. Never a
// hard-coded placeholder — the tagged recognition.Outcome in
// internal/recognition guarantees this is always one of the four real
// values (spec.md §9 open question on the "audd" hard-coded method bug).
type RecognitionMethod string

const (
	MethodLocal      RecognitionMethod = "local"
	MethodISRC       RecognitionMethod = "isrc"
	MethodExternalA  RecognitionMethod = "external_A"
	MethodExternalB  RecognitionMethod = "external_B"
)

// Detection is one immutable record per completed play interval. The
// composite index on (station_id, started_at) backs both the
// non-overlap invariant check and the Stats Recorder's idempotence
// lookup (spec.md §3, §4.8).
type Detection struct {
	ID                  string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	StationID           string            `gorm:"type:varchar(36);not null;index:idx_detections_station_started,priority:1" json:"station_id"`
	TrackID             string            `gorm:"type:varchar(36);not null;index" json:"track_id"`
	StartedAt           time.Time         `gorm:"not null;index:idx_detections_station_started,priority:2" json:"started_at"`
	EndedAt             time.Time         `gorm:"not null" json:"ended_at"`
	DurationS           float64           `gorm:"not null" json:"duration_s"`
	Confidence          float64           `gorm:"not null" json:"confidence"`
	Method              RecognitionMethod `gorm:"type:varchar(16);not null" json:"method"`
	FingerprintSnapshot string            `json:"fingerprint_snapshot"`
	CreatedAt           time.Time         `json:"created_at"`
}

func (Detection) TableName() string { return "detections" }
