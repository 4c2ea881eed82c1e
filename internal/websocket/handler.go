package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// Handler handles WebSocket HTTP upgrade requests for the Event Bus.
// Unlike the social app this was grounded on, subscribing is unauthenticated
// dashboard traffic (spec.md §4.9 describes no access control on the feed) —
// the only thing a client supplies is which topic it wants.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// HandleWebSocketHTTP is a raw http.Handler for WebSocket upgrades. This
// bypasses Gin's ResponseWriter wrapper, which can interfere with
// connection hijacking.
func (h *Handler) HandleWebSocketHTTP(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = SystemTopic
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		return
	}

	client := NewClient(h.hub, conn, topic)
	client.RemoteAddr = clientIP(r)
	client.UserAgent = r.Header.Get("User-Agent")

	h.hub.Register(client)

	client.Send(NewMessage(MessageTypeInitialData, InitialDataPayload{
		StationID: topicStationID(topic),
		Status:    "subscribed",
	}))

	go client.WritePump()
	client.ReadPump()
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func topicStationID(topic string) string {
	if topic == SystemTopic {
		return ""
	}
	return topic
}

// HandleWebSocket wraps HandleWebSocketHTTP for use with Gin routes.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	h.HandleWebSocketHTTP(c.Writer, c.Request)
}

// HandleMetrics returns Event Bus metrics for monitoring.
func (h *Handler) HandleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket": h.hub.GetMetrics(),
		"timestamp": time.Now().UTC(),
	})
}

// PublishTrackDetection publishes a track_detection event to a station's
// topic (spec.md §4.9).
func (h *Handler) PublishTrackDetection(stationID string, payload TrackDetectionPayload) {
	h.hub.Publish(stationID, NewMessage(MessageTypeTrackDetection, payload))
}

// PublishStationError publishes a station_error event to a station's
// topic and mirrors it onto the system topic so dashboards watching all
// stations see it too.
func (h *Handler) PublishStationError(stationID string, payload StationErrorPayload) {
	msg := NewMessage(MessageTypeStationError, payload)
	h.hub.Publish(stationID, msg)
	h.hub.Publish(SystemTopic, msg)
}

// BroadcastStatusUpdate sends the periodic system-wide status_update
// tick (spec.md §4.11: "every second").
func (h *Handler) BroadcastStatusUpdate(payload StatusUpdatePayload) {
	h.hub.Broadcast(NewMessage(MessageTypeStatusUpdate, payload))
}

// Shutdown gracefully shuts down the Event Bus.
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.hub.Shutdown(ctx)
}

func (h *Handler) GetHub() *Hub {
	return h.hub
}
