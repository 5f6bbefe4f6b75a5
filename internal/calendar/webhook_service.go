package calendar

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AhmadHamada1/cal.com/internal/provider"
	"github.com/AhmadHamada1/cal.com/internal/storage"
	"github.com/AhmadHamada1/cal.com/internal/storage/models"
	"github.com/AhmadHamada1/cal.com/internal/websocket"
)

// Resource state values carried by a push notification.
const (
	// ResourceStateSync is the initial handshake after a channel is
	// created. It carries no event delta.
	ResourceStateSync = "sync"
	// ResourceStateExists signals the resource exists and has changed.
	ResourceStateExists = "exists"
	// ResourceStateNotFound signals the resource was deleted.
	ResourceStateNotFound = "not_found"
)

// Notification is one inbound channel push notification. Ephemeral; never
// persisted.
type Notification struct {
	ChannelID         string
	ChannelToken      string
	ChannelExpiration string
	MessageNumber     string
	ResourceID        string
	ResourceState     string
	ResourceURI       string
}

// Validate checks that every required field is present.
func (n *Notification) Validate() error {
	missing := ""
	switch {
	case n.ChannelID == "":
		missing = "channel id"
	case n.ChannelToken == "":
		missing = "channel token"
	case n.ChannelExpiration == "":
		missing = "channel expiration"
	case n.MessageNumber == "":
		missing = "message number"
	case n.ResourceID == "":
		missing = "resource id"
	case n.ResourceState == "":
		missing = "resource state"
	case n.ResourceURI == "":
		missing = "resource uri"
	}
	if missing != "" {
		return &ValidationError{Message: fmt.Sprintf("notification missing %s", missing)}
	}
	return nil
}

// WebhookService validates inbound push notifications, resolves them to a
// subscription, classifies the required sync actions, invokes the
// provider client, and applies the results.
type WebhookService struct {
	subscriptions storage.SubscriptionStore
	selected      *storage.SelectedCalendarRepository
	events        storage.EventStore
	credentials   CredentialResolver
	clients       ClientFactory
	downstream    DownstreamSyncer
	broadcaster   *websocket.EventBroadcaster

	// channelToken is the configured shared secret every notification
	// must echo back.
	channelToken string
	app          AppInfo
}

// NewWebhookService creates a new webhook ingestion service. The
// broadcaster and downstream syncer may be nil.
func NewWebhookService(
	subscriptions storage.SubscriptionStore,
	selected *storage.SelectedCalendarRepository,
	events storage.EventStore,
	credentials CredentialResolver,
	clients ClientFactory,
	downstream DownstreamSyncer,
	broadcaster *websocket.EventBroadcaster,
	channelToken string,
	app AppInfo,
) *WebhookService {
	return &WebhookService{
		subscriptions: subscriptions,
		selected:      selected,
		events:        events,
		credentials:   credentials,
		clients:       clients,
		downstream:    downstream,
		broadcaster:   broadcaster,
		channelToken:  channelToken,
		app:           app,
	}
}

// classification is the outcome of resolving a notification against both
// storage locations.
type classification struct {
	actions            []provider.SyncAction
	externalCalendarID string
	credentialID       int64
	subscription       *models.Subscription
	selectedCalendar   *models.SelectedCalendar
}

func (c *classification) wantsEventsSync() bool {
	for _, a := range c.actions {
		if a == provider.ActionEventsSync {
			return true
		}
	}
	return false
}

// classifyActions decides which sync actions a notification requires.
//
// A matching legacy record contributes an availability-cache refresh. A
// matching subscription contributes an events-sync, unless the resource
// state is the initial "sync" handshake, which carries no delta. When
// both match but disagree on the external calendar id, that is a fatal
// consistency error; differing credential ids are tolerated and the
// subscription's credential wins.
func classifyActions(n Notification, selectedCalendar *models.SelectedCalendar, subscription *models.Subscription) (*classification, error) {
	if selectedCalendar == nil && subscription == nil {
		return nil, ignorablef("no selected calendar or subscription found for channel %s", n.ChannelID)
	}

	c := &classification{
		subscription:     subscription,
		selectedCalendar: selectedCalendar,
	}

	if selectedCalendar != nil {
		c.actions = append(c.actions, provider.ActionAvailabilityCache)
		c.externalCalendarID = selectedCalendar.ExternalID
		c.credentialID = selectedCalendar.CredentialID
	}

	if subscription != nil {
		if n.ResourceState != ResourceStateSync {
			c.actions = append(c.actions, provider.ActionEventsSync)
		}

		if c.externalCalendarID != "" && c.externalCalendarID != subscription.ExternalCalendarID {
			return nil, consistencyErrorf(
				"selected calendar external id %q and subscription external id %q do not match for channel %s",
				c.externalCalendarID, subscription.ExternalCalendarID, n.ChannelID,
			)
		}

		if c.credentialID != 0 && c.credentialID != subscription.CredentialID {
			// Both records may have been set up with different credential
			// instances that point at the same external resource.
			log.Printf("Credential mismatch for channel %s: selected=%d subscription=%d, proceeding with subscription credential",
				n.ChannelID, c.credentialID, subscription.CredentialID)
		}

		c.externalCalendarID = subscription.ExternalCalendarID
		c.credentialID = subscription.CredentialID
	}

	if len(c.actions) == 0 || c.credentialID == 0 || c.externalCalendarID == "" {
		return nil, fmt.Errorf("no sync actions, credential id or external calendar id resolved for channel %s", n.ChannelID)
	}

	return c, nil
}

// HandleNotification processes one inbound push notification end to end.
//
// Authentication failures and consistency errors propagate to the caller
// for alerting. Ignorable conditions return an IgnorableError the HTTP
// layer acknowledges as success so the provider stops retrying.
func (s *WebhookService) HandleNotification(ctx context.Context, n Notification) (*models.SyncResult, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	// Token check comes before any repository access.
	if n.ChannelToken != s.channelToken {
		return nil, authErrorf("invalid channel token for channel %s", n.ChannelID)
	}

	selectedCalendar, subscription, err := s.resolve(ctx, n)
	if err != nil {
		return nil, err
	}

	c, err := classifyActions(n, selectedCalendar, subscription)
	if err != nil {
		return nil, err
	}

	cred, err := s.credentials.GetCredentialForCalendarCache(ctx, c.credentialID)
	if err != nil {
		return nil, fmt.Errorf("resolving credential %d: %w", c.credentialID, err)
	}
	if cred == nil {
		return nil, dependencyErrorf("no credential found for credential id %d", c.credentialID)
	}

	client, err := s.clients.ClientFor(ctx, cred)
	if err != nil {
		return nil, dependencyErrorf("initializing provider client for credential %d: %v", c.credentialID, err)
	}

	// All selected calendars sharing the credential are handed to the
	// provider so a single push refreshes every downstream consumer.
	related, err := s.selected.ListByCredential(ctx, c.credentialID)
	if err != nil {
		return nil, fmt.Errorf("listing related selected calendars: %w", err)
	}

	syncToken := ""
	if c.subscription != nil && c.subscription.NextSyncToken != nil {
		syncToken = *c.subscription.NextSyncToken
	}

	changes, err := client.OnWatchedCalendarChange(ctx, provider.WatchedCalendarChange{
		CalendarID:        c.externalCalendarID,
		SyncActions:       c.actions,
		SelectedCalendars: related,
		SyncToken:         syncToken,
	})
	if err != nil {
		return nil, fmt.Errorf("handling watched calendar change for %s: %w", c.externalCalendarID, err)
	}

	result := &models.SyncResult{
		ExternalCalendarID: c.externalCalendarID,
		SyncedAt:           time.Now().UTC(),
	}
	for _, a := range c.actions {
		result.Actions = append(result.Actions, string(a))
	}

	if c.subscription != nil {
		result.SubscriptionID = c.subscription.ID
		if err := s.applyChanges(ctx, c.subscription, changes); err != nil {
			return nil, err
		}
		result.EventsSynced = len(changes.EventsToSync)
		result.EventsDeleted = len(changes.DeletedEventIDs)
	}

	if s.downstream != nil && len(changes.EventsToSync) > 0 {
		if err := s.downstream.SyncDownstream(ctx, changes.EventsToSync, s.app); err != nil {
			return nil, fmt.Errorf("syncing downstream for %s: %w", c.externalCalendarID, err)
		}
	}

	// Bookkeeping is best effort: the primary side effect already
	// succeeded, so a failure here is logged, not escalated.
	s.updateBookkeeping(ctx, c, changes)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastSyncCompleted(*result)
	}

	log.Printf("Processed webhook for channel %s (calendar %s): %d events synced, %d deleted",
		n.ChannelID, c.externalCalendarID, result.EventsSynced, result.EventsDeleted)
	return result, nil
}

// resolve looks up the notification channel against both the legacy
// selected calendar records and the subscriptions table in parallel.
func (s *WebhookService) resolve(ctx context.Context, n Notification) (*models.SelectedCalendar, *models.Subscription, error) {
	type selectedResult struct {
		sc  *models.SelectedCalendar
		err error
	}
	selectedCh := make(chan selectedResult, 1)

	go func() {
		sc, err := s.selected.FindByChannel(ctx, n.ChannelID, n.ResourceID)
		selectedCh <- selectedResult{sc, err}
	}()

	subscription, subErr := s.subscriptions.FindByChannel(ctx, n.ChannelID, n.ResourceID)
	sel := <-selectedCh

	if subErr != nil {
		return nil, nil, fmt.Errorf("resolving subscription for channel %s: %w", n.ChannelID, subErr)
	}
	if sel.err != nil {
		return nil, nil, fmt.Errorf("resolving selected calendar for channel %s: %w", n.ChannelID, sel.err)
	}
	return sel.sc, subscription, nil
}

// applyChanges persists a provider delta into the local event mirror.
// Upserts are idempotent, so duplicate and out-of-order deliveries
// converge on the same state.
func (s *WebhookService) applyChanges(ctx context.Context, sub *models.Subscription, changes *provider.ChangeResult) error {
	if len(changes.EventsToSync) > 0 {
		cached := make([]*models.CachedEvent, 0, len(changes.EventsToSync))
		for _, ev := range changes.EventsToSync {
			cached = append(cached, cachedEventFromProvider(sub.ID, ev))
		}
		if err := s.events.BulkUpsertEvents(ctx, cached); err != nil {
			return fmt.Errorf("applying event delta for subscription %s: %w", sub.ID, err)
		}
	}

	for _, eventID := range changes.DeletedEventIDs {
		if err := s.events.DeleteEvent(ctx, sub.ID, eventID); err != nil {
			return fmt.Errorf("deleting event %s for subscription %s: %w", eventID, sub.ID, err)
		}
	}

	return nil
}

func cachedEventFromProvider(subscriptionID string, ev provider.Event) *models.CachedEvent {
	cached := &models.CachedEvent{
		SubscriptionID:  subscriptionID,
		ProviderEventID: ev.ID,
		Start:           ev.Start,
		End:             ev.End,
		Status:          ev.Status,
		Transparency:    ev.Transparency,
	}
	if ev.Summary != "" {
		summary := ev.Summary
		cached.Summary = &summary
	}
	if ev.Raw != "" {
		raw := ev.Raw
		cached.Payload = &raw
	}
	return cached
}

func (s *WebhookService) updateBookkeeping(ctx context.Context, c *classification, changes *provider.ChangeResult) {
	if c.subscription == nil {
		return
	}

	// An events-sync that ran counts as a downstream pass even when the
	// delta was empty or deletions only.
	syncedDown := c.wantsEventsSync()
	if err := s.subscriptions.TouchLastSync(ctx, c.subscription.ID, syncedDown); err != nil {
		log.Printf("Failed to update last sync for subscription %s: %v", c.subscription.ID, err)
	}

	if changes.NextSyncToken != "" {
		if err := s.subscriptions.UpdateSyncToken(ctx, c.subscription.ID, changes.NextSyncToken); err != nil {
			log.Printf("Failed to update sync token for subscription %s: %v", c.subscription.ID, err)
		}
	}
}
