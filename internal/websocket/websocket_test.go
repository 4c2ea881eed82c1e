package websocket

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zfogg/sidechain/backend/internal/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "")
	os.Exit(m.Run())
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.allClients)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.publish)
	assert.NotNil(t, hub.metrics)
	assert.NotNil(t, hub.handlers)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(5, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow(), "request %d should be allowed", i+1)
	}

	assert.False(t, rl.Allow(), "request 11 should be denied")

	time.Sleep(300 * time.Millisecond)
	assert.True(t, rl.Allow(), "request after wait should be allowed")
}

func TestNewMessage(t *testing.T) {
	payload := TrackDetectionPayload{StationID: "station-1", TrackID: "track-1"}
	msg := NewMessage(MessageTypeTrackDetection, payload)

	assert.Equal(t, MessageTypeTrackDetection, msg.Type)
	assert.NotNil(t, msg.Data)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("test_error", "something went wrong")

	assert.Equal(t, MessageTypeError, msg.Type)

	payload, ok := msg.Data.(ErrorPayload)
	assert.True(t, ok)
	assert.Equal(t, "test_error", payload.Code)
	assert.Equal(t, "something went wrong", payload.Message)
}

func TestMessageParsePayload(t *testing.T) {
	msg := NewMessage(MessageTypePing, map[string]interface{}{
		"client_time": float64(1234567890),
	})

	var ping PingPayload
	err := msg.ParsePayload(&ping)
	assert.NoError(t, err)
	assert.Equal(t, int64(1234567890), ping.ClientTime)
}

func TestMessageJSONSerialization(t *testing.T) {
	msg := NewMessage(MessageTypeTrackDetection, TrackDetectionPayload{
		StationID:  "station-1",
		TrackID:    "track-1",
		Title:      "Song",
		Artist:     "Artist",
		Confidence: 0.91,
		Method:     "local",
	})
	msg.ID = "msg-id"

	data, err := json.Marshal(msg)
	assert.NoError(t, err)

	var parsed Message
	err = json.Unmarshal(data, &parsed)
	assert.NoError(t, err)

	assert.Equal(t, MessageTypeTrackDetection, parsed.Type)
	assert.Equal(t, "msg-id", parsed.ID)
	assert.NotNil(t, parsed.Data)

	var payload TrackDetectionPayload
	require := parsed.ParsePayload(&payload)
	assert.NoError(t, require)
	assert.Equal(t, "station-1", payload.StationID)
}

func TestHubMetrics(t *testing.T) {
	hub := NewHub()

	metrics := hub.GetMetrics()
	assert.Equal(t, int64(0), metrics.TotalConnections)
	assert.Equal(t, int64(0), metrics.ActiveConnections)
	assert.Equal(t, int64(0), metrics.MessagesReceived)
	assert.Equal(t, int64(0), metrics.MessagesSent)

	str := metrics.String()
	assert.Contains(t, str, "connections=0/0")
}

func TestDefaultRateLimitConfig(t *testing.T) {
	config := DefaultRateLimitConfig()

	assert.Equal(t, 10, config.MaxMessagesPerSecond)
	assert.Equal(t, 20, config.BurstSize)
	assert.Equal(t, time.Second, config.Window)
}

func TestHubRegisterHandler(t *testing.T) {
	hub := NewHub()

	hub.RegisterHandler("test_type", func(client *Client, msg *Message) error {
		return nil
	})

	handler, ok := hub.GetHandler("test_type")
	assert.True(t, ok)
	assert.NotNil(t, handler)

	_, ok = hub.GetHandler("nonexistent")
	assert.False(t, ok)
}

func TestHubTopicSubscriberCount(t *testing.T) {
	hub := NewHub()
	assert.Equal(t, 0, hub.TopicSubscriberCount("station-1"))
	assert.Equal(t, 0, hub.TopicSubscriberCount(SystemTopic))
}

func TestMessageTypes(t *testing.T) {
	types := []string{
		MessageTypeInitialData,
		MessageTypeTrackDetection,
		MessageTypeStatusUpdate,
		MessageTypeStationError,
		MessageTypePing,
		MessageTypePong,
		MessageTypeError,
	}

	for _, typ := range types {
		assert.NotEmpty(t, typ)
	}

	seen := make(map[string]bool)
	for _, typ := range types {
		assert.False(t, seen[typ], "duplicate message type: %s", typ)
		seen[typ] = true
	}
}

func TestSystemTopicConstant(t *testing.T) {
	assert.Equal(t, "system", SystemTopic)
}
