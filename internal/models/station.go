package models

import "time"

// StationStatus is the lifecycle state the Supervisor reports for a
// Station (spec.md §3, §4.10).
type StationStatus string

const (
	StationActive   StationStatus = "active"
	StationInactive StationStatus = "inactive"
	StationError    StationStatus = "error"
)

// Station is a monitored radio stream endpoint. Stations are long-lived
// and externally provisioned; the Supervisor only reads and updates their
// status and health-check timestamp.
type Station struct {
	ID              string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name            string        `gorm:"not null" json:"name"`
	StreamURL       string        `gorm:"not null" json:"stream_url"`
	Active          bool          `gorm:"not null;default:true" json:"active"`
	Status          StationStatus `gorm:"type:varchar(16);not null;default:'inactive'" json:"status"`
	LastHealthCheck *time.Time    `json:"last_health_check,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Station) TableName() string { return "stations" }
