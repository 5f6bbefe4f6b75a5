// Package models contains the domain models for the application.
package models

import (
	"time"
)

// Subscription status constants. A subscription starts PENDING, becomes
// ACTIVE once the provider confirms the push channel, and is set INACTIVE
// when torn down or superseded. Rows are never deleted.
const (
	SubscriptionStatusPending  = "PENDING"
	SubscriptionStatusActive   = "ACTIVE"
	SubscriptionStatusInactive = "INACTIVE"
)

// Provider type constants.
const (
	ProviderGoogle = "google_calendar"
)

// Sync direction constants for LastSyncDirection.
const (
	SyncDirectionDownstream = "DOWNSTREAM"
	SyncDirectionUpstream   = "UPSTREAM"
)

// Subscription represents one provider-side push channel bound to one
// external calendar.
type Subscription struct {
	ID                 string `json:"id"`
	CredentialID       int64  `json:"credential_id"`
	ExternalCalendarID string `json:"external_calendar_id"`
	ProviderType       string `json:"provider_type"`
	Status             string `json:"status"`

	// Provider channel details, populated when the subscription is ACTIVE.
	ProviderSubscriptionID   *string    `json:"provider_subscription_id,omitempty"`
	ProviderSubscriptionKind *string    `json:"provider_subscription_kind,omitempty"`
	ProviderResourceID       *string    `json:"provider_resource_id,omitempty"`
	ProviderResourceURI      *string    `json:"provider_resource_uri,omitempty"`
	ProviderExpiration       *time.Time `json:"provider_expiration,omitempty"`

	// Sync bookkeeping.
	NextSyncToken     *string    `json:"next_sync_token,omitempty"`
	LastSyncAt        *time.Time `json:"last_sync_at,omitempty"`
	LastSyncedDownAt  *time.Time `json:"last_synced_down_at,omitempty"`
	LastSyncDirection *string    `json:"last_sync_direction,omitempty"`
	WatchError        *string    `json:"watch_error,omitempty"`

	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsExpiringSoon reports whether the provider channel expires within the
// given window relative to now. Subscriptions without an expiration are
// treated as expiring so that a renewal reissues the watch.
func (s *Subscription) IsExpiringSoon(now time.Time, window time.Duration) bool {
	if s.ProviderExpiration == nil {
		return true
	}
	return s.ProviderExpiration.Before(now.Add(window))
}

// ProviderChannel carries the channel details returned by a provider when
// a watch call succeeds. All fields are required to activate a subscription.
type ProviderChannel struct {
	ID          string
	Kind        string
	ResourceID  string
	ResourceURI string
	Expiration  time.Time
}

// Complete reports whether every channel field is populated.
func (c *ProviderChannel) Complete() bool {
	return c.ID != "" && c.Kind != "" && c.ResourceID != "" &&
		c.ResourceURI != "" && !c.Expiration.IsZero()
}

// SelectedCalendar is the legacy per-calendar record. It predates the
// subscriptions table and may independently carry equivalent channel
// fields for the same external calendar.
type SelectedCalendar struct {
	ID           string `json:"id"`
	CredentialID int64  `json:"credential_id"`
	ExternalID   string `json:"external_id"`
	Integration  string `json:"integration"`

	ChannelID          *string    `json:"channel_id,omitempty"`
	ChannelKind        *string    `json:"channel_kind,omitempty"`
	ChannelResourceID  *string    `json:"channel_resource_id,omitempty"`
	ChannelResourceURI *string    `json:"channel_resource_uri,omitempty"`
	ChannelExpiration  *time.Time `json:"channel_expiration,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Channel extracts the legacy channel fields, or nil when the record
// carries no channel at all. Use ProviderChannel.Complete to distinguish
// a usable channel from a partially-populated one.
func (sc *SelectedCalendar) Channel() *ProviderChannel {
	if sc.ChannelID == nil {
		return nil
	}
	ch := &ProviderChannel{ID: *sc.ChannelID}
	if sc.ChannelKind != nil {
		ch.Kind = *sc.ChannelKind
	}
	if sc.ChannelResourceID != nil {
		ch.ResourceID = *sc.ChannelResourceID
	}
	if sc.ChannelResourceURI != nil {
		ch.ResourceURI = *sc.ChannelResourceURI
	}
	if sc.ChannelExpiration != nil {
		ch.Expiration = *sc.ChannelExpiration
	}
	return ch
}
