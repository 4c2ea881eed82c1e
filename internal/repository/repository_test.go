package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/sidechain/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RepositoryTestSuite exercises the repositories against a real
// Postgres instance so the upsert/conflict clauses run against real SQL,
// not sqlite's more forgiving dialect. Skips when no database is
// reachable.
type RepositoryTestSuite struct {
	suite.Suite
	db         *gorm.DB
	stations   StationRepository
	tracks     TrackRepository
	detections DetectionRepository
	stats      StatsRepository
}

func (s *RepositoryTestSuite) SetupSuite() {
	host := getEnvOrDefault("POSTGRES_HOST", "localhost")
	port := getEnvOrDefault("POSTGRES_PORT", "5432")
	user := getEnvOrDefault("POSTGRES_USER", "postgres")
	password := getEnvOrDefault("POSTGRES_PASSWORD", "")
	dbname := getEnvOrDefault("POSTGRES_DB", "radiomonitor_test")

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		s.T().Skipf("skipping repository tests: database not available (%v)", err)
		return
	}

	require.NoError(s.T(), db.AutoMigrate(
		&models.Station{}, &models.Artist{}, &models.Label{}, &models.Track{},
		&models.Fingerprint{}, &models.Detection{}, &models.TrackStats{},
		&models.ArtistStats{}, &models.LabelStats{}, &models.StationStats{},
		&models.StationTrackStats{},
	))

	s.db = db
	s.stations = NewStationRepository(db)
	s.tracks = NewTrackRepository(db)
	s.detections = NewDetectionRepository(db)
	s.stats = NewStatsRepository(db)
}

func (s *RepositoryTestSuite) SetupTest() {
	if s.db == nil {
		return
	}
	for _, table := range []string{"station_track_stats", "station_stats", "label_stats", "artist_stats", "track_stats", "detections", "fingerprints", "tracks", "labels", "artists", "stations"} {
		s.db.Exec("DELETE FROM " + table)
	}
}

func (s *RepositoryTestSuite) TestGetOrCreateArtist_Idempotent() {
	if s.db == nil {
		s.T().Skip()
	}
	ctx := context.Background()

	a1, err := s.tracks.GetOrCreateArtist(ctx, "Daft Punk")
	require.NoError(s.T(), err)

	a2, err := s.tracks.GetOrCreateArtist(ctx, "  daft punk ")
	require.NoError(s.T(), err)

	s.Equal(a1.ID, a2.ID)
}

func (s *RepositoryTestSuite) TestRecordPlay_AccumulatesRollups() {
	if s.db == nil {
		s.T().Skip()
	}
	ctx := context.Background()

	artist, err := s.tracks.GetOrCreateArtist(ctx, "Justice")
	require.NoError(s.T(), err)

	track := &models.Track{ID: uuid.NewString(), Title: "Genesis", ArtistID: artist.ID}
	require.NoError(s.T(), s.tracks.CreateTrack(ctx, track))

	station := &models.Station{ID: uuid.NewString(), Name: "Test FM", StreamURL: "http://example.com/stream"}
	require.NoError(s.T(), s.db.Create(station).Error)

	now := time.Now().UTC()
	d1 := &models.Detection{
		StationID: station.ID, TrackID: track.ID,
		StartedAt: now, EndedAt: now.Add(30 * time.Second), DurationS: 30,
		Confidence: 0.9, Method: models.MethodLocal,
	}
	require.NoError(s.T(), s.stats.RecordPlay(ctx, d1, track))

	d2 := &models.Detection{
		StationID: station.ID, TrackID: track.ID,
		StartedAt: now.Add(time.Minute), EndedAt: now.Add(time.Minute + 45*time.Second), DurationS: 45,
		Confidence: 0.9, Method: models.MethodLocal,
	}
	require.NoError(s.T(), s.stats.RecordPlay(ctx, d2, track))

	var ts models.TrackStats
	require.NoError(s.T(), s.db.Where("track_id = ?", track.ID).First(&ts).Error)
	s.Equal(int64(2), ts.PlayCount)
	s.Equal(75.0, ts.TotalDuration)

	var sts models.StationTrackStats
	require.NoError(s.T(), s.db.Where("station_id = ? AND track_id = ?", station.ID, track.ID).First(&sts).Error)
	s.Equal(int64(2), sts.PlayCount)
	s.Equal(75.0, sts.TotalDuration)
}

func (s *RepositoryTestSuite) TestOverlaps() {
	if s.db == nil {
		s.T().Skip()
	}
	ctx := context.Background()

	station := &models.Station{ID: uuid.NewString(), Name: "Overlap FM", StreamURL: "http://example.com/overlap"}
	require.NoError(s.T(), s.db.Create(station).Error)

	artist, err := s.tracks.GetOrCreateArtist(ctx, "Overlap Artist")
	require.NoError(s.T(), err)
	track := &models.Track{ID: uuid.NewString(), Title: "Overlap Track", ArtistID: artist.ID}
	require.NoError(s.T(), s.tracks.CreateTrack(ctx, track))

	now := time.Now().UTC()
	require.NoError(s.T(), s.detections.CreateDetection(ctx, &models.Detection{
		StationID: station.ID, TrackID: track.ID,
		StartedAt: now, EndedAt: now.Add(time.Minute), DurationS: 60,
		Confidence: 0.9, Method: models.MethodLocal,
	}))

	overlaps, err := s.detections.Overlaps(ctx, station.ID, now.Add(30*time.Second), now.Add(90*time.Second))
	require.NoError(s.T(), err)
	s.True(overlaps)

	clear, err := s.detections.Overlaps(ctx, station.ID, now.Add(2*time.Minute), now.Add(3*time.Minute))
	require.NoError(s.T(), err)
	s.False(clear)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
