// Package seed populates a development database with realistic stations,
// artists, labels, tracks, fingerprints, and a history of detections, the
// way the teacher's seeder populated users and posts.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/zfogg/sidechain/backend/internal/logger"
	"github.com/zfogg/sidechain/backend/internal/models"
	"github.com/zfogg/sidechain/backend/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev seeds the development database with a realistic catalog of
// stations, tracks, and a week's worth of detection history.
func (s *Seeder) SeedDev() error {
	log := func(msg string, fields ...zap.Field) {
		logger.Log.Info(msg, fields...)
	}

	log("creating labels...")
	labels, err := s.seedLabels(15)
	if err != nil {
		return fmt.Errorf("failed to seed labels: %w", err)
	}

	log("creating artists...")
	artists, err := s.seedArtists(60)
	if err != nil {
		return fmt.Errorf("failed to seed artists: %w", err)
	}

	log("creating tracks...")
	tracks, err := s.seedTracks(artists, labels, 400)
	if err != nil {
		return fmt.Errorf("failed to seed tracks: %w", err)
	}

	log("creating fingerprints...")
	if err := s.seedFingerprints(tracks); err != nil {
		return fmt.Errorf("failed to seed fingerprints: %w", err)
	}

	log("creating stations...")
	stations, err := s.seedStations(20)
	if err != nil {
		return fmt.Errorf("failed to seed stations: %w", err)
	}

	log("creating detection history...")
	if err := s.seedDetections(stations, tracks, 7*24*time.Hour); err != nil {
		return fmt.Errorf("failed to seed detections: %w", err)
	}

	log("seeding complete",
		zap.Int("labels", len(labels)),
		zap.Int("artists", len(artists)),
		zap.Int("tracks", len(tracks)),
		zap.Int("stations", len(stations)),
	)
	return nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *Seeder) seedLabels(n int) ([]*models.Label, error) {
	labels := make([]*models.Label, 0, n)
	seen := map[string]bool{}

	for len(labels) < n {
		name := gofakeit.Company() + " Records"
		norm := normalize(name)
		if seen[norm] {
			continue
		}
		seen[norm] = true

		label := &models.Label{
			ID:             uuid.New().String(),
			Name:           name,
			NormalizedName: norm,
		}
		labels = append(labels, label)
	}

	if err := s.db.Create(&labels).Error; err != nil {
		return nil, err
	}
	return labels, nil
}

func (s *Seeder) seedArtists(n int) ([]*models.Artist, error) {
	artists := make([]*models.Artist, 0, n)
	seen := map[string]bool{}

	for len(artists) < n {
		name := gofakeit.Name()
		norm := normalize(name)
		if seen[norm] {
			continue
		}
		seen[norm] = true

		artist := &models.Artist{
			ID:             uuid.New().String(),
			Name:           name,
			NormalizedName: norm,
		}
		artists = append(artists, artist)
	}

	if err := s.db.Create(&artists).Error; err != nil {
		return nil, err
	}
	return artists, nil
}

func (s *Seeder) seedTracks(artists []*models.Artist, labels []*models.Label, n int) ([]*models.Track, error) {
	tracks := make([]*models.Track, 0, n)

	for i := 0; i < n; i++ {
		artist := artists[rand.Intn(len(artists))]

		var labelID *string
		if rand.Intn(10) != 0 { // 90% of tracks have a label
			l := labels[rand.Intn(len(labels))]
			labelID = &l.ID
		}

		var isrc *string
		if rand.Intn(5) != 0 { // 80% of tracks have a known ISRC
			code := fmt.Sprintf("US%s%02d%05d", gofakeit.LetterN(3), rand.Intn(30), rand.Intn(100000))
			isrc = &code
		}

		album := gofakeit.BuzzWord() + " " + gofakeit.BuzzWord()

		track := &models.Track{
			ID:       uuid.New().String(),
			Title:    strings.Title(gofakeit.HipsterWord() + " " + gofakeit.HipsterWord()),
			ArtistID: artist.ID,
			LabelID:  labelID,
			ISRC:     isrc,
			Album:    &album,
		}
		tracks = append(tracks, track)
	}

	if err := s.db.Create(&tracks).Error; err != nil {
		return nil, err
	}
	return tracks, nil
}

// seedFingerprints gives each track one or two fake fingerprint rows —
// real acoustic hashes come from the Local Matcher at ingestion time, but
// a dev database needs something non-empty to exercise the schema.
func (s *Seeder) seedFingerprints(tracks []*models.Track) error {
	fingerprints := make([]*models.Fingerprint, 0, len(tracks)*2)

	for _, track := range tracks {
		count := 1 + rand.Intn(2)
		for i := 0; i < count; i++ {
			fingerprints = append(fingerprints, &models.Fingerprint{
				ID:      uuid.New().String(),
				TrackID: track.ID,
				FpHash:  gofakeit.UUID(),
				FpBlob:  []byte(gofakeit.UUID()),
			})
		}
	}

	return s.db.Create(&fingerprints).Error
}

var sampleStreamHosts = []string{
	"stream.example-radio.net",
	"cast.example-broadcast.fm",
	"ice.example-airwaves.org",
}

func (s *Seeder) seedStations(n int) ([]*models.Station, error) {
	stations := make([]*models.Station, 0, n)

	for i := 0; i < n; i++ {
		host := sampleStreamHosts[rand.Intn(len(sampleStreamHosts))]
		station := &models.Station{
			ID:        uuid.New().String(),
			Name:      gofakeit.City() + " " + []string{"FM", "Radio", "Broadcasting"}[rand.Intn(3)],
			StreamURL: fmt.Sprintf("https://%s/stream/%d", host, 1000+i),
			Active:    rand.Intn(10) != 0, // 90% active
			Status:    models.StationInactive,
		}
		stations = append(stations, station)
	}

	if err := s.db.Create(&stations).Error; err != nil {
		return nil, err
	}
	return stations, nil
}

// seedDetections fills each station with a plausible non-overlapping
// play history over the given window, recording each one through the
// same StatsRepository.RecordPlay transaction the Stats Recorder uses at
// runtime, so the seeded rollups stay internally consistent (spec.md
// §8's invariant: rollups equal the sum of their underlying detections).
func (s *Seeder) seedDetections(stations []*models.Station, tracks []*models.Track, window time.Duration) error {
	statsRepo := repository.NewStatsRepository(s.db)
	now := time.Now().UTC()
	ctx := context.Background()

	for _, station := range stations {
		cursor := now.Add(-window)
		for cursor.Before(now) {
			track := tracks[rand.Intn(len(tracks))]
			duration := time.Duration(150+rand.Intn(120)) * time.Second
			endedAt := cursor.Add(duration)
			if endedAt.After(now) {
				break
			}

			detection := &models.Detection{
				ID:         uuid.New().String(),
				StationID:  station.ID,
				TrackID:    track.ID,
				StartedAt:  cursor,
				EndedAt:    endedAt,
				DurationS:  duration.Seconds(),
				Confidence: 0.6 + rand.Float64()*0.4,
				Method:     randomMethod(),
			}
			if err := statsRepo.RecordPlay(ctx, detection, track); err != nil {
				return err
			}

			cursor = endedAt.Add(time.Duration(5+rand.Intn(30)) * time.Second)
		}
	}

	return nil
}

func randomMethod() models.RecognitionMethod {
	methods := []models.RecognitionMethod{models.MethodLocal, models.MethodISRC, models.MethodExternalA, models.MethodExternalB}
	return methods[rand.Intn(len(methods))]
}
