// Package scheduler implements the Scheduler/Orchestrator (spec.md
// §4.11): it admits stations up to max_stations, starts one Supervisor
// per admitted station, broadcasts a periodic system-wide status_update,
// and drains every station's in-flight state on graceful shutdown.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/zfogg/sidechain/backend/internal/config"
	"github.com/zfogg/sidechain/backend/internal/models"
	"github.com/zfogg/sidechain/backend/internal/queue"
	"github.com/zfogg/sidechain/backend/internal/repository"
	"github.com/zfogg/sidechain/backend/internal/stats"
	"github.com/zfogg/sidechain/backend/internal/supervisor"
	"github.com/zfogg/sidechain/backend/internal/telemetry"
	"github.com/zfogg/sidechain/backend/internal/websocket"
)

var domainEvents = telemetry.GetDomainEvents()

// StatusBroadcaster is the subset of websocket.Handler the Scheduler's
// status_update tick needs.
type StatusBroadcaster interface {
	BroadcastStatusUpdate(payload websocket.StatusUpdatePayload)
}

// Scheduler owns the admitted set of running Supervisors.
type Scheduler struct {
	cfg      *config.Config
	stations repository.StationRepository
	deps     supervisor.Deps
	segQueue *queue.SegmentQueue
	events   StatusBroadcaster
	logger   *zap.Logger

	mu     sync.Mutex
	run    map[string]*runningStation
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	detectionsSeen atomic.Int64
}

type runningStation struct {
	supervisor *supervisor.Supervisor
	cancel     context.CancelFunc
}

// New builds a Scheduler. deps is the shared Supervisor.Deps template;
// its OnDetectionRecorded hook is overwritten to feed this Scheduler's
// running totals. segQueue is the one process-wide SegmentQueue every
// admitted station's Supervisor submits work to (spec.md §4.3). logger
// is shared with every Supervisor this Scheduler starts, via deps.Logger.
func New(cfg *config.Config, stations repository.StationRepository, deps supervisor.Deps, segQueue *queue.SegmentQueue, events StatusBroadcaster, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:      cfg,
		stations: stations,
		deps:     deps,
		segQueue: segQueue,
		events:   events,
		logger:   logger,
		run:      make(map[string]*runningStation),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.deps.OnDetectionRecorded = func() { s.detectionsSeen.Add(1) }
	return s
}

// Start admits active stations up to max_stations and launches one
// Supervisor per admitted station, then begins the periodic status_update
// broadcast (spec.md §4.11).
func (s *Scheduler) Start(ctx context.Context) error {
	active, err := s.stations.ListActive(ctx)
	if err != nil {
		return err
	}

	admitted := active
	if len(admitted) > s.cfg.MaxStations {
		s.logger.Warn("admission control: active stations exceed max_stations, admitting first batch",
			zap.Int("active_count", len(admitted)), zap.Int("max_stations", s.cfg.MaxStations))
		admitted = admitted[:s.cfg.MaxStations]
	}

	for _, station := range admitted {
		s.startStation(*station)
	}

	s.wg.Add(1)
	go s.statusLoop()

	s.logger.Info("scheduler started", zap.Int("admitted", len(admitted)), zap.Int("active", len(active)))
	return nil
}

// startStation launches a Supervisor for station if it isn't already
// running; safe to call for late admission (e.g. an operator activating
// a new station) as well as initial startup.
func (s *Scheduler) startStation(station models.Station) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.run[station.ID]; exists {
		return
	}
	if len(s.run) >= s.cfg.MaxStations {
		s.logger.Warn("station rejected: max_stations reached",
			zap.String("station_id", station.ID), zap.Int("max_stations", s.cfg.MaxStations))
		return
	}

	_, span := domainEvents.TraceStationAdmit(s.ctx, telemetry.StationEventAttrs{
		StationID: station.ID,
		StreamURL: station.StreamURL,
	})
	span.End()

	stationCtx, cancel := context.WithCancel(s.ctx)
	sup := supervisor.New(station, s.deps, s.segQueue)

	s.run[station.ID] = &runningStation{supervisor: sup, cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sup.Run(stationCtx)
	}()
}

// StopStation cancels a running station's Supervisor (e.g. an operator
// deactivating a station at runtime) without affecting the rest.
func (s *Scheduler) StopStation(stationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs, ok := s.run[stationID]; ok {
		rs.cancel()
		delete(s.run, stationID)
	}
}

// ActiveStationCount reports how many Supervisors are currently running,
// the status_update tick's active_pullers figure.
func (s *Scheduler) ActiveStationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.run)
}

func (s *Scheduler) statusLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if s.events == nil {
				continue
			}
			s.events.BroadcastStatusUpdate(websocket.StatusUpdatePayload{
				ActivePullers:   s.ActiveStationCount(),
				TotalDetections: s.detectionsSeen.Load(),
				LastUpdate:      now.UnixMilli(),
			})
		}
	}
}

// Shutdown drains every running station's Play Tracker (closing any
// in-flight play with its current accumulated duration), flushes those
// closes through the Stats Recorder, and stops every Supervisor. It does
// not close the Event Bus; cmd/server shuts the hub down afterwards. recorder
// is unused directly here: each Supervisor drains through its own
// Recorder dependency, the same path a normal detection close takes.
func (s *Scheduler) Shutdown(ctx context.Context, recorder *stats.Recorder) error {
	s.logger.Info("scheduler shutting down: draining stations")

	s.mu.Lock()
	stationIDs := make([]string, 0, len(s.run))
	supervisors := make([]*supervisor.Supervisor, 0, len(s.run))
	for id, rs := range s.run {
		stationIDs = append(stationIDs, id)
		supervisors = append(supervisors, rs.supervisor)
	}
	s.mu.Unlock()

	var drainWg sync.WaitGroup
	for _, sup := range supervisors {
		drainWg.Add(1)
		go func(sup *supervisor.Supervisor) {
			defer drainWg.Done()
			sup.Drain(ctx)
		}(sup)
	}
	drainWg.Wait()

	s.mu.Lock()
	for _, rs := range s.run {
		rs.cancel()
	}
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown timed out waiting for stations", zap.Int("pending_count", len(stationIDs)))
	}

	return nil
}
