package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// FlexibleTime handles both Unix millisecond timestamps and RFC3339 strings.
type FlexibleTime struct {
	time.Time
}

func (ft *FlexibleTime) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		ft.Time = time.UnixMilli(ms)
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("timestamp must be Unix milliseconds (integer) or RFC3339 string")
	}

	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return err
	}
	ft.Time = t
	return nil
}

func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Time)
}

// Event Bus message types (spec.md §4.9, §6 wire format).
const (
	MessageTypeInitialData    = "initial_data"
	MessageTypeTrackDetection = "track_detection"
	MessageTypeStatusUpdate   = "status_update"
	MessageTypeStationError   = "station_error"

	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
	MessageTypeError = "error"
)

// SystemTopic is the global topic status_update and cross-station
// events publish to; station-scoped events publish to the station's own
// id as topic (spec.md §4.9: "a topic-per-station and a global 'system'
// topic").
const SystemTopic = "system"

// Message is the Event Bus wire format: UTF-8 JSON,
// {type, timestamp, data} (spec.md §6).
type Message struct {
	Type      string       `json:"type"`
	Data      interface{}  `json:"data,omitempty"`
	ID        string       `json:"id,omitempty"`
	ReplyTo   string       `json:"reply_to,omitempty"`
	Timestamp FlexibleTime `json:"timestamp"`
}

func NewMessage(msgType string, data interface{}) *Message {
	return &Message{Type: msgType, Data: data, Timestamp: FlexibleTime{Time: time.Now().UTC()}}
}

func NewErrorMessage(code string, message string) *Message {
	return &Message{
		Type:      MessageTypeError,
		Data:      ErrorPayload{Code: code, Message: message},
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// ErrorPayload is the data payload of a MessageTypeError message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PingPayload/PongPayload keep the connection-liveness round trip the
// teacher's client used, independent of the domain message types.
type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}

type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

// TrackDetectionPayload carries one closed play. The Supervisor publishes
// it when the Play Tracker closes a play, with Final set and the final
// duration; opening a play publishes no track_detection event.
type TrackDetectionPayload struct {
	StationID  string  `json:"station_id"`
	TrackID    string  `json:"track_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	StartedAt  int64   `json:"started_at"`
	EndedAt    int64   `json:"ended_at,omitempty"`
	DurationS  float64 `json:"duration_s"`
	Final      bool    `json:"final"`
}

// StatusUpdatePayload is the periodic system-topic tick (spec.md §4.9,
// §4.11: "Periodic status_update broadcast (every second)").
type StatusUpdatePayload struct {
	ActivePullers   int   `json:"active_pullers"`
	TotalTracks     int64 `json:"total_tracks"`
	TotalDetections int64 `json:"total_detections"`
	LastUpdate      int64 `json:"last_update"`
}

// StationErrorPayload reports a puller failure or stream-dead condition
// (spec.md §4.9, §7).
type StationErrorPayload struct {
	StationID string `json:"station_id"`
	Error     string `json:"error"`
	Fatal     bool   `json:"fatal"`
}

// InitialDataPayload is sent once, right after a client subscribes to a
// topic, so it doesn't have to wait for the next live event to know
// current state (spec.md §6 lists initial_data as a wire message type).
type InitialDataPayload struct {
	StationID       string `json:"station_id,omitempty"`
	Status          string `json:"status,omitempty"`
	ActiveDetection bool   `json:"active_detection,omitempty"`
}

// ParsePayload unmarshals Data into target.
func (m *Message) ParsePayload(target interface{}) error {
	if m.Data == nil {
		return nil
	}
	data, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
