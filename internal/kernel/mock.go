package kernel

import (
	"context"

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

// MockKernel is a kernel designed for testing.
// It allows easy overriding of dependencies with test doubles (mocks, stubs, fakes).
type MockKernel struct {
	*Kernel
	overrides map[string]interface{}
}

// NewMock creates a new mock kernel around an empty Kernel; the With*
// setters install whatever components a test needs
func NewMock() *MockKernel {
	return &MockKernel{
		Kernel:    New(),
		overrides: make(map[string]interface{}),
	}
}

// WithMockDB sets the database for testing
func (m *MockKernel) WithMockDB(db *gorm.DB) *MockKernel {
	m.SetDB(db)
	return m
}

// WithMockLogger sets a test logger
func (m *MockKernel) WithMockLogger(l *zap.Logger) *MockKernel {
	m.SetLogger(l)
	return m
}

// WithMockCache sets a mock cache
func (m *MockKernel) WithMockCache(c *cache.RedisClient) *MockKernel {
	m.SetCache(c)
	return m
}

// WithMockConfig sets a test config
func (m *MockKernel) WithMockConfig(cfg *config.Config) *MockKernel {
	m.SetConfig(cfg)
	return m
}

// WithMockStationRepository sets a fake station repository
func (m *MockKernel) WithMockStationRepository(repo repository.StationRepository) *MockKernel {
	m.SetStationRepository(repo)
	return m
}

// WithMockTrackRepository sets a fake track repository
func (m *MockKernel) WithMockTrackRepository(repo repository.TrackRepository) *MockKernel {
	m.SetTrackRepository(repo)
	return m
}

// WithMockMatcher sets a fake Local Matcher
func (m *MockKernel) WithMockMatcher(matcher *fingerprint.LocalMatcher) *MockKernel {
	m.SetMatcher(matcher)
	return m
}

// WithMockRecognizer sets a fake External Recognizer
func (m *MockKernel) WithMockRecognizer(r *recognition.Recognizer) *MockKernel {
	m.SetRecognizer(r)
	return m
}

// WithMockRegistry sets a fake Track Registry
func (m *MockKernel) WithMockRegistry(r *registry.Registry) *MockKernel {
	m.SetRegistry(r)
	return m
}

// WithMockRecorder sets a fake Stats Recorder
func (m *MockKernel) WithMockRecorder(r *stats.Recorder) *MockKernel {
	m.SetRecorder(r)
	return m
}

// WithMockSegmentQueue sets a fake shared SegmentQueue
func (m *MockKernel) WithMockSegmentQueue(q *queue.SegmentQueue) *MockKernel {
	m.SetSegmentQueue(q)
	return m
}

// WithMockScheduler sets a fake Scheduler
func (m *MockKernel) WithMockScheduler(s *scheduler.Scheduler) *MockKernel {
	m.SetScheduler(s)
	return m
}

// WithMockWebSocketHandler sets a mock Event Bus handler
func (m *MockKernel) WithMockWebSocketHandler(handler *websocket.Handler) *MockKernel {
	m.SetWebSocketHandler(handler)
	return m
}

// WithMockArchiver sets a fake segment/fingerprint archiver
func (m *MockKernel) WithMockArchiver(a storage.SegmentArchiver) *MockKernel {
	m.SetArchiver(a)
	return m
}

// Override sets a custom override for a specific dependency type
func (m *MockKernel) Override(key string, value interface{}) *MockKernel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[key] = value
	return m
}

// GetOverride retrieves an override if set
func (m *MockKernel) GetOverride(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.overrides[key]
	return val, ok
}

// MinimalMock creates a mock kernel with only the absolute minimum dependencies
// Useful for isolated unit tests
func MinimalMock() *MockKernel {
	mock := NewMock()
	mock.SetLogger(logger.Log)
	return mock
}

// Clean cleans up test kernels after tests complete
func (m *MockKernel) Clean(ctx context.Context) error {
	return m.Cleanup(ctx)
}
