package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/backend/internal/audio"
	"github.com/zfogg/sidechain/backend/internal/config"
	"github.com/zfogg/sidechain/backend/internal/models"
	"github.com/zfogg/sidechain/backend/internal/queue"
	"github.com/zfogg/sidechain/backend/internal/supervisor"
	"github.com/zfogg/sidechain/backend/internal/websocket"
)

// fakeStationRepository is an in-memory stand-in for repository.StationRepository,
// grounded on the registry package's fake-repository tests.
type fakeStationRepository struct {
	mu       sync.Mutex
	stations []*models.Station
	statuses map[string]models.StationStatus
}

func newFakeStationRepository(stations ...*models.Station) *fakeStationRepository {
	return &fakeStationRepository{
		stations: stations,
		statuses: map[string]models.StationStatus{},
	}
}

func (f *fakeStationRepository) GetStation(_ context.Context, stationID string) (*models.Station, error) {
	for _, s := range f.stations {
		if s.ID == stationID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStationRepository) ListActive(_ context.Context) ([]*models.Station, error) {
	var active []*models.Station
	for _, s := range f.stations {
		if s.Active {
			active = append(active, s)
		}
	}
	return active, nil
}

func (f *fakeStationRepository) UpdateStatus(_ context.Context, stationID string, status models.StationStatus, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[stationID] = status
	return nil
}

// fakeBroadcaster records every status_update tick it receives.
type fakeBroadcaster struct {
	mu       sync.Mutex
	payloads []websocket.StatusUpdatePayload
}

func (f *fakeBroadcaster) BroadcastStatusUpdate(payload websocket.StatusUpdatePayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func stationsFixture(n int) []*models.Station {
	stations := make([]*models.Station, 0, n)
	for i := 0; i < n; i++ {
		stations = append(stations, &models.Station{
			ID:        string(rune('a' + i)),
			Name:      "station",
			StreamURL: "http://example.invalid/stream",
			Active:    true,
		})
	}
	return stations
}

func newTestScheduler(cfg *config.Config, stations *fakeStationRepository, events StatusBroadcaster) *Scheduler {
	segQueue := queue.NewSegmentQueue(audio.NewExtractor(audio.DefaultExtractorConfig()), nil)
	return New(cfg, stations, supervisor.Deps{Config: cfg}, segQueue, events, nil)
}

func TestScheduler_ActiveStationCountStartsAtZero(t *testing.T) {
	cfg := &config.Config{MaxStations: 5}
	s := newTestScheduler(cfg, newFakeStationRepository(), nil)
	assert.Equal(t, 0, s.ActiveStationCount())
}

func TestScheduler_StartStation_RejectsOverCap(t *testing.T) {
	cfg := &config.Config{MaxStations: 1}
	s := newTestScheduler(cfg, newFakeStationRepository(), nil)

	stations := stationsFixture(2)
	s.startStation(*stations[0])
	require.Equal(t, 1, s.ActiveStationCount())

	s.startStation(*stations[1])
	assert.Equal(t, 1, s.ActiveStationCount(), "admission control must reject the second station")

	_ = s.Shutdown(context.Background(), nil)
}

func TestScheduler_StartStation_IgnoresDuplicate(t *testing.T) {
	cfg := &config.Config{MaxStations: 5}
	s := newTestScheduler(cfg, newFakeStationRepository(), nil)

	stations := stationsFixture(1)
	s.startStation(*stations[0])
	s.startStation(*stations[0])
	assert.Equal(t, 1, s.ActiveStationCount())

	_ = s.Shutdown(context.Background(), nil)
}

func TestScheduler_StopStation_RemovesFromRunningSet(t *testing.T) {
	cfg := &config.Config{MaxStations: 5}
	s := newTestScheduler(cfg, newFakeStationRepository(), nil)

	stations := stationsFixture(1)
	s.startStation(*stations[0])
	require.Equal(t, 1, s.ActiveStationCount())

	s.StopStation(stations[0].ID)
	assert.Equal(t, 0, s.ActiveStationCount())
}

func TestScheduler_Start_CapsAdmissionAtMaxStations(t *testing.T) {
	cfg := &config.Config{MaxStations: 2}
	repo := newFakeStationRepository(stationsFixture(5)...)
	s := newTestScheduler(cfg, repo, nil)

	err := s.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.ActiveStationCount())

	_ = s.Shutdown(context.Background(), nil)
}

func TestScheduler_StatusLoop_BroadcastsPeriodically(t *testing.T) {
	cfg := &config.Config{MaxStations: 5}
	events := &fakeBroadcaster{}
	s := newTestScheduler(cfg, newFakeStationRepository(), events)

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return events.count() >= 1 }, 2*time.Second, 50*time.Millisecond)

	_ = s.Shutdown(context.Background(), nil)
}

func TestScheduler_Shutdown_StopsAllRunningStations(t *testing.T) {
	cfg := &config.Config{MaxStations: 5}
	repo := newFakeStationRepository(stationsFixture(3)...)
	s := newTestScheduler(cfg, repo, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 3, s.ActiveStationCount())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Shutdown(ctx, nil)
	assert.NoError(t, err)
}
