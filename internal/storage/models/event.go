package models

import (
	"time"
)

// Event status constants as reported by the provider.
const (
	EventStatusConfirmed = "confirmed"
	EventStatusTentative = "tentative"
	EventStatusCancelled = "cancelled"
)

// Event transparency constants. Only opaque events block availability.
const (
	TransparencyOpaque      = "opaque"
	TransparencyTransparent = "transparent"
)

// CachedEvent represents one provider event mirrored locally. Identity is
// the composite of (SubscriptionID, ProviderEventID).
type CachedEvent struct {
	ID              string    `json:"id"`
	SubscriptionID  string    `json:"subscription_id"`
	ProviderEventID string    `json:"provider_event_id"`
	Summary         *string   `json:"summary,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Status          string    `json:"status"`
	Transparency    string    `json:"transparency"`
	Payload         *string   `json:"payload,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BlocksAvailability reports whether the event counts toward busy time.
func (e *CachedEvent) BlocksAvailability(now time.Time) bool {
	return e.Status != EventStatusCancelled &&
		e.Transparency == TransparencyOpaque &&
		e.End.After(now)
}

// SyncResult summarizes one webhook-triggered sync pass for a subscription.
type SyncResult struct {
	SubscriptionID     string    `json:"subscription_id"`
	ExternalCalendarID string    `json:"external_calendar_id"`
	Actions            []string  `json:"actions"`
	EventsSynced       int       `json:"events_synced"`
	EventsDeleted      int       `json:"events_deleted"`
	SyncedAt           time.Time `json:"synced_at"`
}
