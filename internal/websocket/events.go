package websocket

import (
	"log"
	"time"

	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastSyncCompleted sends a calendar sync completed event.
func (b *EventBroadcaster) BroadcastSyncCompleted(result models.SyncResult) {
	payload := SyncCompletedPayload{
		SubscriptionID:     result.SubscriptionID,
		ExternalCalendarID: result.ExternalCalendarID,
		Actions:            result.Actions,
		EventsSynced:       result.EventsSynced,
		EventsDeleted:      result.EventsDeleted,
	}

	msg := NewMessage(TypeSyncCompleted, payload)
	b.broadcast(msg)
}

// BroadcastSyncError sends a calendar sync error event.
func (b *EventBroadcaster) BroadcastSyncError(subscriptionID, externalCalendarID string, err error) {
	payload := SyncErrorPayload{
		SubscriptionID:     subscriptionID,
		ExternalCalendarID: externalCalendarID,
		Error:              "sync_error",
		Message:            err.Error(),
	}

	msg := NewMessage(TypeSyncError, payload)
	b.broadcast(msg)
}

// BroadcastSubscriptionRenewed sends a subscription renewal event.
func (b *EventBroadcaster) BroadcastSubscriptionRenewed(subscriptionID, externalCalendarID string, expiresAt time.Time) {
	payload := SubscriptionRenewedPayload{
		SubscriptionID:     subscriptionID,
		ExternalCalendarID: externalCalendarID,
		ExpiresAt:          expiresAt,
	}

	msg := NewMessage(TypeSubscriptionRenewed, payload)
	b.broadcast(msg)
}

// BroadcastSubscriptionError sends a subscription renewal failure event.
func (b *EventBroadcaster) BroadcastSubscriptionError(subscriptionID, externalCalendarID string, err error) {
	payload := SyncErrorPayload{
		SubscriptionID:     subscriptionID,
		ExternalCalendarID: externalCalendarID,
		Error:              "watch_error",
		Message:            err.Error(),
	}

	msg := NewMessage(TypeSubscriptionError, payload)
	b.broadcast(msg)
}

// BroadcastSystemStatus sends a system status snapshot.
func (b *EventBroadcaster) BroadcastSystemStatus(status SystemStatusPayload) {
	msg := NewMessage(TypeSystemStatusChanged, status)
	b.broadcast(msg)
}

func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Failed to serialize WebSocket message: %v", err)
		return
	}
	b.hub.Broadcast(data)
}
