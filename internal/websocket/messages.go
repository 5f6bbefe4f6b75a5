package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeSyncCompleted        MessageType = "calendar.sync_completed"
	TypeSyncError            MessageType = "calendar.sync_error"
	TypeSubscriptionRenewed  MessageType = "subscription.renewed"
	TypeSubscriptionError    MessageType = "subscription.error"
	TypeSystemStatusChanged  MessageType = "system.status_changed"

	// Client -> Server command types
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client response types
	TypeSubscribeAck MessageType = "subscribe.ack"
	TypePong         MessageType = "pong"
	TypeError        MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncCompletedPayload is the payload for calendar.sync_completed events.
type SyncCompletedPayload struct {
	SubscriptionID     string   `json:"subscription_id,omitempty"`
	ExternalCalendarID string   `json:"external_calendar_id"`
	Actions            []string `json:"actions"`
	EventsSynced       int      `json:"events_synced"`
	EventsDeleted      int      `json:"events_deleted"`
}

// SyncErrorPayload is the payload for calendar.sync_error events.
type SyncErrorPayload struct {
	SubscriptionID     string `json:"subscription_id,omitempty"`
	ExternalCalendarID string `json:"external_calendar_id"`
	Error              string `json:"error"`
	Message            string `json:"message"`
}

// SubscriptionRenewedPayload is the payload for subscription.renewed events.
type SubscriptionRenewedPayload struct {
	SubscriptionID     string    `json:"subscription_id"`
	ExternalCalendarID string    `json:"external_calendar_id"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// SystemStatusPayload is the payload for system.status_changed events.
type SystemStatusPayload struct {
	SubscriptionCounts map[string]int `json:"subscription_counts"`
	CachedEvents       int            `json:"cached_events"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
