// Package websocket implements the Event Bus (spec.md §4.9): a
// publish/subscribe broadcaster over github.com/coder/websocket, keyed by
// topic instead of user identity — one topic per station plus a reserved
// "system" topic for cross-station status updates.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Hub maintains the set of active clients and publishes messages to the
// topics they subscribe to.
type Hub struct {
	// Registered clients by topic
	clients map[string]map[*Client]struct{}

	// All clients, for the "system" broadcast path
	allClients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	// Publish targets a single topic; broadcast reaches every client.
	publish   chan *topicMessage
	broadcast chan *Message

	mu sync.RWMutex

	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	handlers map[string]MessageHandler

	rateLimitConfig RateLimitConfig
}

// Metrics tracks WebSocket statistics.
type Metrics struct {
	TotalConnections   atomic.Int64
	ActiveConnections  atomic.Int64
	MessagesReceived   atomic.Int64
	MessagesSent       atomic.Int64
	Errors             atomic.Int64
	ConnectionsDropped atomic.Int64
}

// RateLimitConfig defines rate limiting parameters.
type RateLimitConfig struct {
	MaxMessagesPerSecond int
	BurstSize            int
	Window               time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxMessagesPerSecond: 10,
		BurstSize:            20,
		Window:               time.Second,
	}
}

type topicMessage struct {
	Topic   string
	Message *Message
}

// MessageHandler processes incoming messages of a specific type.
type MessageHandler func(client *Client, message *Message) error

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:         make(map[string]map[*Client]struct{}),
		allClients:      make(map[*Client]struct{}),
		register:        make(chan *Client, 256),
		unregister:      make(chan *Client, 256),
		publish:         make(chan *topicMessage, 256),
		broadcast:       make(chan *Message, 256),
		metrics:         &Metrics{},
		ctx:             ctx,
		cancel:          cancel,
		handlers:        make(map[string]MessageHandler),
		rateLimitConfig: DefaultRateLimitConfig(),
	}
}

func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

func (h *Hub) GetHandler(msgType string) (MessageHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handler, ok := h.handlers[msgType]
	return handler, ok
}

// Run starts the hub's main event loop.
func (h *Hub) Run() {
	log.Println("event bus starting")

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case pub := <-h.publish:
			h.publishToTopic(pub.Topic, pub.Message)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Topic] == nil {
		h.clients[client.Topic] = make(map[*Client]struct{})
	}
	h.clients[client.Topic][client] = struct{}{}
	h.allClients[client] = struct{}{}

	h.metrics.TotalConnections.Add(1)
	h.metrics.ActiveConnections.Add(1)

	log.Printf("client subscribed: topic=%s active=%d", client.Topic, h.metrics.ActiveConnections.Load())
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.allClients[client]; ok {
		delete(h.allClients, client)

		if clients, ok := h.clients[client.Topic]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.clients, client.Topic)
			}
		}

		close(client.send)
		h.metrics.ActiveConnections.Add(-1)

		log.Printf("client unsubscribed: topic=%s active=%d", client.Topic, h.metrics.ActiveConnections.Load())
	}
}

// broadcastMessage sends a message to every connected client, regardless
// of topic; used for the system-wide status_update tick.
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("error marshaling broadcast message: %v", err)
		return
	}

	for client := range h.allClients {
		select {
		case client.send <- data:
			h.metrics.MessagesSent.Add(1)
		default:
			h.metrics.ConnectionsDropped.Add(1)
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// publishToTopic sends a message only to clients subscribed to topic.
func (h *Hub) publishToTopic(topic string, message *Message) {
	h.mu.RLock()
	clients, ok := h.clients[topic]
	h.mu.RUnlock()

	if !ok || len(clients) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("error marshaling published message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range clients {
		select {
		case client.send <- data:
			h.metrics.MessagesSent.Add(1)
		default:
			h.metrics.ConnectionsDropped.Add(1)
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// Broadcast sends a message to every connected client (the system topic
// semantics; spec.md §4.11's periodic status_update tick uses this).
func (h *Hub) Broadcast(message *Message) {
	select {
	case h.broadcast <- message:
	case <-h.ctx.Done():
	}
}

// Publish sends a message only to clients subscribed to topic — a
// station ID for track_detection/station_error, or SystemTopic.
func (h *Hub) Publish(topic string, message *Message) {
	select {
	case h.publish <- &topicMessage{Topic: topic, Message: message}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// TopicSubscriberCount returns how many clients are subscribed to topic.
func (h *Hub) TopicSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[topic]; ok {
		return len(clients)
	}
	return 0
}

func (h *Hub) GetMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalConnections:   h.metrics.TotalConnections.Load(),
		ActiveConnections:  h.metrics.ActiveConnections.Load(),
		MessagesReceived:   h.metrics.MessagesReceived.Load(),
		MessagesSent:       h.metrics.MessagesSent.Load(),
		Errors:             h.metrics.Errors.Load(),
		ConnectionsDropped: h.metrics.ConnectionsDropped.Load(),
	}
}

type MetricsSnapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesSent       int64 `json:"messages_sent"`
	Errors             int64 `json:"errors"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

func (m MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"connections=%d/%d messages=rx:%d/tx:%d errors=%d dropped=%d",
		m.ActiveConnections, m.TotalConnections,
		m.MessagesReceived, m.MessagesSent,
		m.Errors, m.ConnectionsDropped,
	)
}

// Shutdown gracefully shuts down the hub (spec.md §4.11's drain: "closing
// the Event Bus" as part of graceful shutdown).
func (h *Hub) Shutdown(ctx context.Context) error {
	log.Println("event bus shutting down")
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	shutdownMsg := NewMessage(MessageTypeStationError, StationErrorPayload{
		Error: "server shutting down",
		Fatal: true,
	})
	data, _ := json.Marshal(shutdownMsg)

	for client := range h.allClients {
		select {
		case client.send <- data:
		default:
		}
		close(client.send)
	}

	h.clients = make(map[string]map[*Client]struct{})
	h.allClients = make(map[*Client]struct{})

	log.Printf("closed %d connections during shutdown", h.metrics.ActiveConnections.Load())
}

func (h *Hub) SetRateLimitConfig(config RateLimitConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rateLimitConfig = config
}

func (h *Hub) GetRateLimitConfig() RateLimitConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rateLimitConfig
}
