package calendar

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AhmadHamada1/cal.com/internal/storage"
	"github.com/AhmadHamada1/cal.com/internal/storage/models"
	"github.com/AhmadHamada1/cal.com/internal/websocket"
)

// RenewalScheduler periodically re-issues watch calls for subscriptions
// that are PENDING or whose provider channel expires soon, and runs the
// event cache retention policy.
type RenewalScheduler struct {
	cron          *cron.Cron
	service       *SubscriptionService
	subscriptions *storage.SubscriptionRepository
	selected      *storage.SelectedCalendarRepository
	events        storage.EventStore
	credentials   CredentialResolver
	clients       ClientFactory
	broadcaster   *websocket.EventBroadcaster

	interval  time.Duration
	window    time.Duration
	batchSize int
}

// NewRenewalScheduler creates a new renewal scheduler. Subscriptions with
// channels expiring within window are renewed; batchSize bounds one pass.
func NewRenewalScheduler(
	service *SubscriptionService,
	subscriptions *storage.SubscriptionRepository,
	selected *storage.SelectedCalendarRepository,
	events storage.EventStore,
	credentials CredentialResolver,
	clients ClientFactory,
	broadcaster *websocket.EventBroadcaster,
	interval, window time.Duration,
	batchSize int,
) *RenewalScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 50
	}

	return &RenewalScheduler{
		cron:          cron.New(),
		service:       service,
		subscriptions: subscriptions,
		selected:      selected,
		events:        events,
		credentials:   credentials,
		clients:       clients,
		broadcaster:   broadcaster,
		interval:      interval,
		window:        window,
		batchSize:     batchSize,
	}
}

// Start begins the periodic renewal and cleanup jobs.
func (s *RenewalScheduler) Start() error {
	log.Println("Starting subscription renewal scheduler...")

	spec := "@every " + s.interval.String()
	if _, err := s.cron.AddFunc(spec, func() {
		s.RunRenewalBatch(context.Background())
	}); err != nil {
		return err
	}

	// Retention policy for the event mirror.
	if _, err := s.cron.AddFunc("@every 6h", func() {
		s.runCleanup(context.Background())
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("Renewal scheduler started (interval %s, window %s, batch %d)", s.interval, s.window, s.batchSize)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *RenewalScheduler) Stop() {
	log.Println("Stopping subscription renewal scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Renewal scheduler stopped")
}

// RunRenewalBatch performs one renewal pass: every PENDING or
// expiring-soon subscription gets a fresh watch call. Failures are
// recorded on the subscription and do not stop the batch.
func (s *RenewalScheduler) RunRenewalBatch(ctx context.Context) {
	subs, err := s.service.FindAllRequiringRenewalOrActivation(ctx, s.window, s.batchSize)
	if err != nil {
		log.Printf("Failed to list subscriptions for renewal: %v", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	log.Printf("Renewal batch: %d subscriptions require renewal or activation", len(subs))

	renewed := 0
	for i := range subs {
		if err := s.renewOne(ctx, &subs[i]); err != nil {
			log.Printf("Failed to renew subscription %s (calendar %s): %v", subs[i].ID, subs[i].ExternalCalendarID, err)
			continue
		}
		renewed++
	}

	log.Printf("Renewal batch complete: %d/%d renewed", renewed, len(subs))

	if s.broadcaster != nil {
		s.broadcastSystemStatus(ctx)
	}
}

// broadcastSystemStatus pushes a status snapshot to connected dashboard
// clients after a batch changed subscription state.
func (s *RenewalScheduler) broadcastSystemStatus(ctx context.Context) {
	counts, err := s.subscriptions.CountByStatus(ctx)
	if err != nil {
		log.Printf("Failed to count subscriptions for status broadcast: %v", err)
		return
	}
	cached, err := s.events.CountEvents(ctx)
	if err != nil {
		log.Printf("Failed to count cached events for status broadcast: %v", err)
		return
	}

	s.broadcaster.BroadcastSystemStatus(websocket.SystemStatusPayload{
		SubscriptionCounts: counts,
		CachedEvents:       cached,
	})
}

// renewOne issues a watch call for one subscription and activates it with
// the returned channel details. The old channel, when present, is stopped
// best-effort after the new one is confirmed.
func (s *RenewalScheduler) renewOne(ctx context.Context, sub *models.Subscription) error {
	cred, err := s.credentials.GetCredentialForCalendarCache(ctx, sub.CredentialID)
	if err != nil {
		return err
	}
	if cred == nil {
		err := dependencyErrorf("no credential found for credential id %d", sub.CredentialID)
		s.recordWatchError(ctx, sub.ID, err)
		return err
	}

	client, err := s.clients.ClientFor(ctx, cred)
	if err != nil {
		s.recordWatchError(ctx, sub.ID, err)
		return err
	}

	ch, err := client.Watch(ctx, sub.ExternalCalendarID)
	if err != nil {
		s.recordWatchError(ctx, sub.ID, err)
		if s.broadcaster != nil {
			s.broadcaster.BroadcastSubscriptionError(sub.ID, sub.ExternalCalendarID, err)
		}
		return err
	}

	if err := s.service.Activate(ctx, sub.ID, *ch); err != nil {
		return err
	}

	oldChannelID, oldResourceID := "", ""
	if sub.ProviderSubscriptionID != nil {
		oldChannelID = *sub.ProviderSubscriptionID
	}
	if sub.ProviderResourceID != nil {
		oldResourceID = *sub.ProviderResourceID
	}
	if oldChannelID != "" && oldChannelID != ch.ID {
		if err := client.StopWatch(ctx, oldChannelID, oldResourceID); err != nil {
			log.Printf("Failed to stop superseded channel %s: %v", oldChannelID, err)
		}
	}

	// Keep the legacy record's channel fields in step so the two storage
	// locations do not diverge.
	legacy, err := s.selected.FindWithChannelByExternalID(ctx, sub.ExternalCalendarID, sub.ProviderType)
	if err != nil {
		log.Printf("Failed to look up legacy record for calendar %s: %v", sub.ExternalCalendarID, err)
	} else if legacy != nil {
		if err := s.selected.UpdateChannel(ctx, legacy.ID, *ch); err != nil {
			log.Printf("Failed to update legacy channel record %s: %v", legacy.ID, err)
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastSubscriptionRenewed(sub.ID, sub.ExternalCalendarID, ch.Expiration)
	}
	return nil
}

func (s *RenewalScheduler) recordWatchError(ctx context.Context, subscriptionID string, watchErr error) {
	if err := s.subscriptions.SetWatchError(ctx, subscriptionID, watchErr.Error()); err != nil {
		log.Printf("Failed to record watch error for subscription %s: %v", subscriptionID, err)
	}
}

func (s *RenewalScheduler) runCleanup(ctx context.Context) {
	deleted, err := s.events.CleanupOldEvents(ctx)
	if err != nil {
		log.Printf("Event cleanup failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Event cleanup removed %d events", deleted)
	}
}
