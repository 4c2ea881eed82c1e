// Package kernel provides dependency injection management for the station
// monitor. It consolidates all services and provides type-safe access to
// dependencies.
package kernel

import (
	"context"
	"sync"

	"github.com/zfogg/sidechain/backend/internal/cache"
	"github.com/zfogg/sidechain/backend/internal/config"
	"github.com/zfogg/sidechain/backend/internal/fingerprint"
	"github.com/zfogg/sidechain/backend/internal/logger"
	"github.com/zfogg/sidechain/backend/internal/queue"
	"github.com/zfogg/sidechain/backend/internal/recognition"
	"github.com/zfogg/sidechain/backend/internal/registry"
	"github.com/zfogg/sidechain/backend/internal/repository"
	"github.com/zfogg/sidechain/backend/internal/scheduler"
	"github.com/zfogg/sidechain/backend/internal/stats"
	"github.com/zfogg/sidechain/backend/internal/storage"
	"github.com/zfogg/sidechain/backend/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kernel holds all application dependencies and provides type-safe access.
// It implements the Service Locator pattern with additional lifecycle management.
type Kernel struct {
	// Core infrastructure
	db     *gorm.DB
	logger *zap.Logger
	cache  *cache.RedisClient
	config *config.Config

	// Repositories
	stations   repository.StationRepository
	tracks     repository.TrackRepository
	detections repository.DetectionRepository
	statsRepo  repository.StatsRepository

	// Pipeline collaborators
	matcher    *fingerprint.LocalMatcher
	recognizer *recognition.Recognizer
	registry   *registry.Registry
	recorder   *stats.Recorder
	segQueue   *queue.SegmentQueue

	// Orchestration
	scheduler *scheduler.Scheduler
	wsHandler *websocket.Handler

	// Optional archival
	archiver storage.SegmentArchiver

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// New creates a new empty kernel.
// Services should be registered using Set* methods.
func New() *Kernel {
	return &Kernel{
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// ============================================================================
// CORE INFRASTRUCTURE SETTERS/GETTERS
// ============================================================================

// SetDB registers the database connection
func (c *Kernel) SetDB(db *gorm.DB) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = db
	return c
}

// DB returns the database connection
func (c *Kernel) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// SetLogger registers the logger
func (c *Kernel) SetLogger(l *zap.Logger) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
	return c
}

// Logger returns the logger instance
func (c *Kernel) Logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.logger == nil {
		return logger.Log
	}
	return c.logger
}

// SetCache registers the Redis cache client
func (c *Kernel) SetCache(client *cache.RedisClient) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = client
	return c
}

// Cache returns the Redis cache client
func (c *Kernel) Cache() *cache.RedisClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache
}

// SetConfig registers the loaded tunables
func (c *Kernel) SetConfig(cfg *config.Config) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
	return c
}

// Config returns the loaded tunables
func (c *Kernel) Config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// ============================================================================
// REPOSITORY SETTERS/GETTERS
// ============================================================================

// SetStationRepository registers the station repository
func (c *Kernel) SetStationRepository(repo repository.StationRepository) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stations = repo
	return c
}

// Stations returns the station repository
func (c *Kernel) Stations() repository.StationRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stations
}

// SetTrackRepository registers the track repository
func (c *Kernel) SetTrackRepository(repo repository.TrackRepository) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = repo
	return c
}

// Tracks returns the track repository
func (c *Kernel) Tracks() repository.TrackRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tracks
}

// SetDetectionRepository registers the detection repository
func (c *Kernel) SetDetectionRepository(repo repository.DetectionRepository) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detections = repo
	return c
}

// Detections returns the detection repository
func (c *Kernel) Detections() repository.DetectionRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.detections
}

// SetStatsRepository registers the rollup stats repository
func (c *Kernel) SetStatsRepository(repo repository.StatsRepository) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statsRepo = repo
	return c
}

// StatsRepository returns the rollup stats repository
func (c *Kernel) StatsRepository() repository.StatsRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.statsRepo
}

// ============================================================================
// PIPELINE COLLABORATOR SETTERS/GETTERS
// ============================================================================

// SetMatcher registers the Local Matcher
func (c *Kernel) SetMatcher(matcher *fingerprint.LocalMatcher) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matcher = matcher
	return c
}

// Matcher returns the Local Matcher
func (c *Kernel) Matcher() *fingerprint.LocalMatcher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.matcher
}

// SetRecognizer registers the External Recognizer
func (c *Kernel) SetRecognizer(r *recognition.Recognizer) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recognizer = r
	return c
}

// Recognizer returns the External Recognizer
func (c *Kernel) Recognizer() *recognition.Recognizer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recognizer
}

// SetRegistry registers the Track Registry
func (c *Kernel) SetRegistry(r *registry.Registry) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry = r
	return c
}

// Registry returns the Track Registry
func (c *Kernel) Registry() *registry.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry
}

// SetRecorder registers the Stats Recorder
func (c *Kernel) SetRecorder(r *stats.Recorder) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
	return c
}

// Recorder returns the Stats Recorder
func (c *Kernel) Recorder() *stats.Recorder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recorder
}

// SetSegmentQueue registers the shared CPU-bound feature-extraction pool
func (c *Kernel) SetSegmentQueue(q *queue.SegmentQueue) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segQueue = q
	return c
}

// SegmentQueue returns the shared CPU-bound feature-extraction pool
func (c *Kernel) SegmentQueue() *queue.SegmentQueue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.segQueue
}

// ============================================================================
// ORCHESTRATION SETTERS/GETTERS
// ============================================================================

// SetScheduler registers the Scheduler/Orchestrator
func (c *Kernel) SetScheduler(s *scheduler.Scheduler) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduler = s
	return c
}

// Scheduler returns the Scheduler/Orchestrator
func (c *Kernel) Scheduler() *scheduler.Scheduler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scheduler
}

// SetWebSocketHandler registers the Event Bus handler
func (c *Kernel) SetWebSocketHandler(handler *websocket.Handler) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wsHandler = handler
	return c
}

// WebSocket returns the Event Bus handler
func (c *Kernel) WebSocket() *websocket.Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wsHandler
}

// ============================================================================
// OPTIONAL ARCHIVAL
// ============================================================================

// SetArchiver registers the optional segment/fingerprint archiver
func (c *Kernel) SetArchiver(a storage.SegmentArchiver) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.archiver = a
	return c
}

// Archiver returns the optional segment/fingerprint archiver; nil means
// archival is disabled for this deployment.
func (c *Kernel) Archiver() storage.SegmentArchiver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.archiver
}

// ============================================================================
// LIFECYCLE MANAGEMENT
// ============================================================================

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order (last registered, first cleaned up).
// This ensures proper dependency ordering during shutdown.
func (c *Kernel) OnCleanup(fn func(context.Context) error) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
	return c
}

// Cleanup performs graceful shutdown of all registered services.
// It calls cleanup functions in reverse order of registration.
func (c *Kernel) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](ctx); err != nil {
			c.Logger().Error("cleanup function failed", zap.Int("index", i), zap.Error(err))
		}
	}

	return nil
}

// ============================================================================
// VALIDATION
// ============================================================================

// Validate checks that all required dependencies are registered.
// This should be called after initialization and before starting the server.
func (c *Kernel) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	missingDeps := []string{}

	if c.db == nil {
		missingDeps = append(missingDeps, "database (DB)")
	}
	if c.config == nil {
		missingDeps = append(missingDeps, "config")
	}
	if c.stations == nil {
		missingDeps = append(missingDeps, "station repository")
	}
	if c.tracks == nil {
		missingDeps = append(missingDeps, "track repository")
	}
	if c.recorder == nil {
		missingDeps = append(missingDeps, "stats recorder")
	}
	if c.scheduler == nil {
		missingDeps = append(missingDeps, "scheduler")
	}

	if len(missingDeps) > 0 {
		return NewInitializationError("Missing required dependencies", missingDeps)
	}

	return nil
}

// ============================================================================
// FLUENT API SUPPORT
// ============================================================================

// WithDB is a fluent setter for database
func (c *Kernel) WithDB(db *gorm.DB) *Kernel {
	return c.SetDB(db)
}

// WithLogger is a fluent setter for logger
func (c *Kernel) WithLogger(l *zap.Logger) *Kernel {
	return c.SetLogger(l)
}

// WithCache is a fluent setter for cache
func (c *Kernel) WithCache(client *cache.RedisClient) *Kernel {
	return c.SetCache(client)
}

// WithConfig is a fluent setter for config
func (c *Kernel) WithConfig(cfg *config.Config) *Kernel {
	return c.SetConfig(cfg)
}

// WithScheduler is a fluent setter for the Scheduler
func (c *Kernel) WithScheduler(s *scheduler.Scheduler) *Kernel {
	return c.SetScheduler(s)
}

// WithWebSocketHandler is a fluent setter for the Event Bus handler
func (c *Kernel) WithWebSocketHandler(handler *websocket.Handler) *Kernel {
	return c.SetWebSocketHandler(handler)
}

// WithArchiver is a fluent setter for the optional archiver
func (c *Kernel) WithArchiver(a storage.SegmentArchiver) *Kernel {
	return c.SetArchiver(a)
}
