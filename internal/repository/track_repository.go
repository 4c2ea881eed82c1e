package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/zfogg/sidechain/backend/internal/models"
	"gorm.io/gorm"
)

// TrackRepository is the Track Registry's storage layer: idempotent
// get-or-create for Artist/Label/Track, plus the Fingerprint writes and
// lookups the Local Matcher uses to warm its in-memory index
// (spec.md §4.6, §4.4).
type TrackRepository interface {
	GetTrack(ctx context.Context, trackID string) (*models.Track, error)
	GetTrackByISRC(ctx context.Context, isrc string) (*models.Track, error)
	CreateTrack(ctx context.Context, track *models.Track) error

	GetOrCreateArtist(ctx context.Context, name string) (*models.Artist, error)
	GetOrCreateLabel(ctx context.Context, name string) (*models.Label, error)

	CreateFingerprint(ctx context.Context, fp *models.Fingerprint) error
	ListFingerprints(ctx context.Context) ([]*models.Fingerprint, error)
	FindTrackByFingerprintHash(ctx context.Context, hash string) (*models.Track, error)
}

type trackRepository struct {
	db *gorm.DB
}

func NewTrackRepository(db *gorm.DB) TrackRepository {
	return &trackRepository{db: db}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *trackRepository) GetTrack(ctx context.Context, trackID string) (*models.Track, error) {
	var track models.Track
	err := r.db.WithContext(ctx).
		Preload("Artist").Preload("Label").
		Where("id = ?", trackID).
		First(&track).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	return &track, err
}

// GetTrackByISRC is the first step of the Track Registry's resolution
// chain: ISRC identity always wins over fingerprint similarity
// (spec.md §4.6).
func (r *trackRepository) GetTrackByISRC(ctx context.Context, isrc string) (*models.Track, error) {
	var track models.Track
	err := r.db.WithContext(ctx).
		Preload("Artist").Preload("Label").
		Where("isrc = ?", isrc).
		First(&track).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	return &track, err
}

func (r *trackRepository) CreateTrack(ctx context.Context, track *models.Track) error {
	if track == nil || track.Title == "" {
		return ErrInvalidInput
	}
	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(track).Error
}

// GetOrCreateArtist resolves an Artist by normalized name, creating one
// on first sight with an insert that does nothing on a normalized_name
// conflict, then re-reading the row, so two concurrent recognizers racing
// the same new artist converge on one row rather than a duplicate.
func (r *trackRepository) GetOrCreateArtist(ctx context.Context, name string) (*models.Artist, error) {
	norm := normalize(name)
	if norm == "" {
		return nil, ErrInvalidInput
	}

	var artist models.Artist
	err := r.db.WithContext(ctx).Where("normalized_name = ?", norm).First(&artist).Error
	if err == nil {
		return &artist, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	artist = models.Artist{ID: uuid.NewString(), Name: name, NormalizedName: norm}
	err = r.db.WithContext(ctx).
		Clauses(onConflictDoNothing("normalized_name")).
		Create(&artist).Error
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Where("normalized_name = ?", norm).First(&artist).Error; err != nil {
		return nil, err
	}
	return &artist, nil
}

func (r *trackRepository) GetOrCreateLabel(ctx context.Context, name string) (*models.Label, error) {
	norm := normalize(name)
	if norm == "" {
		return nil, ErrInvalidInput
	}

	var label models.Label
	err := r.db.WithContext(ctx).Where("normalized_name = ?", norm).First(&label).Error
	if err == nil {
		return &label, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	label = models.Label{ID: uuid.NewString(), Name: name, NormalizedName: norm}
	err = r.db.WithContext(ctx).
		Clauses(onConflictDoNothing("normalized_name")).
		Create(&label).Error
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Where("normalized_name = ?", norm).First(&label).Error; err != nil {
		return nil, err
	}
	return &label, nil
}

func (r *trackRepository) CreateFingerprint(ctx context.Context, fp *models.Fingerprint) error {
	if fp == nil || fp.TrackID == "" {
		return ErrInvalidInput
	}
	if fp.ID == "" {
		fp.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(fp).Error
}

// ListFingerprints loads every stored fingerprint. Called once at
// startup to build the Local Matcher's in-memory index; never on the
// per-segment hot path.
func (r *trackRepository) ListFingerprints(ctx context.Context) ([]*models.Fingerprint, error) {
	var fps []*models.Fingerprint
	err := r.db.WithContext(ctx).Find(&fps).Error
	return fps, err
}

// FindTrackByFingerprintHash is the Track Registry's second resolution
// step (spec.md §4.6): used when an external match carries no ISRC, to
// check whether this exact digest already maps to a Track before
// creating a new one.
func (r *trackRepository) FindTrackByFingerprintHash(ctx context.Context, hash string) (*models.Track, error) {
	var fp models.Fingerprint
	err := r.db.WithContext(ctx).Where("fp_hash = ?", hash).First(&fp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetTrack(ctx, fp.TrackID)
}
