package models

import "time"

// Artist is unique by normalized (lower-cased, trimmed) name, created
// lazily by the Track Registry the first time a recognized track
// references it (spec.md §3, §4.6).
type Artist struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	NormalizedName string   `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Artist) TableName() string { return "artists" }

// Label is unique by normalized name, same lifecycle as Artist.
type Label struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	NormalizedName string   `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Label) TableName() string { return "labels" }

// Track is the canonical identity a Detection refers to. When ISRC is
// set it is globally unique across all tracks (spec.md §3 invariant);
// the unique index enforces this at the store level so concurrent
// recognizers racing the Track Registry never create duplicates.
type Track struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	ArtistID  string    `gorm:"type:varchar(36);not null;index" json:"artist_id"`
	Artist    *Artist   `gorm:"foreignKey:ArtistID" json:"artist,omitempty"`
	LabelID   *string   `gorm:"type:varchar(36);index" json:"label_id,omitempty"`
	Label     *Label    `gorm:"foreignKey:LabelID" json:"label,omitempty"`
	ISRC      *string   `gorm:"uniqueIndex" json:"isrc,omitempty"`
	Album     *string   `json:"album,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Track) TableName() string { return "tracks" }

// Fingerprint is an opaque acoustic descriptor attached to exactly one
// Track. A Track accumulates several Fingerprints over time as it's
// re-recognized from different broadcasts (spec.md §3).
type Fingerprint struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TrackID   string    `gorm:"type:varchar(36);not null;index" json:"track_id"`
	FpHash    string    `gorm:"index;not null" json:"fp_hash"`
	FpBlob    []byte    `gorm:"type:bytea" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (Fingerprint) TableName() string { return "fingerprints" }
