// Package provider defines the calendar provider client surface and the
// Google Calendar implementation behind it.
package provider

import (
	"context"
	"time"

	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

// SyncAction names one downstream consumer a push notification refreshes.
type SyncAction string

const (
	// ActionAvailabilityCache refreshes the legacy availability cache kept
	// per selected calendar.
	ActionAvailabilityCache SyncAction = "availability-cache"
	// ActionEventsSync fetches the event delta and applies it to the local
	// event mirror.
	ActionEventsSync SyncAction = "events-sync"
)

// Event is one provider event in a change delta.
type Event struct {
	ID           string
	Summary      string
	Start        time.Time
	End          time.Time
	Status       string
	Transparency string
	Raw          string
}

// WatchedCalendarChange carries everything a provider client needs to
// react to a push notification for one calendar.
type WatchedCalendarChange struct {
	CalendarID  string
	SyncActions []SyncAction
	// SelectedCalendars lists every calendar sharing the credential, for
	// clients that keep a per-calendar availability cache on the provider
	// side. The Google client returns the event delta only; its cache is
	// refreshed by the caller applying that delta.
	SelectedCalendars []models.SelectedCalendar
	SyncToken         string
}

// ChangeResult is what a provider client reports back after handling a
// watched calendar change.
type ChangeResult struct {
	// EventsToSync is the delta to apply downstream; nil when no
	// events-sync action ran.
	EventsToSync []Event
	// DeletedEventIDs lists events the provider reports as removed.
	DeletedEventIDs []string
	// NextSyncToken resumes the next incremental fetch, when the provider
	// issued one.
	NextSyncToken string
}

// Client is the calendar provider collaborator. Implementations wrap one
// provider API on behalf of one credential.
type Client interface {
	// OnWatchedCalendarChange handles a push notification for calendarId,
	// performing the requested sync actions, and returns changed events
	// when an events-sync ran.
	OnWatchedCalendarChange(ctx context.Context, change WatchedCalendarChange) (*ChangeResult, error)

	// Watch registers a push channel for the calendar and returns the
	// provider channel details.
	Watch(ctx context.Context, calendarID string) (*models.ProviderChannel, error)

	// StopWatch tears down a push channel.
	StopWatch(ctx context.Context, channelID, resourceID string) error
}
