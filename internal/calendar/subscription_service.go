package calendar

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AhmadHamada1/cal.com/internal/storage"
	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

// SubscriptionService centralizes subscription lifecycle management. It
// arbitrates between the subscriptions table and the legacy per-calendar
// records, which may independently hold equivalent channel data.
type SubscriptionService struct {
	subscriptions *storage.SubscriptionRepository
	selected      *storage.SelectedCalendarRepository
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(
	subscriptions *storage.SubscriptionRepository,
	selected *storage.SelectedCalendarRepository,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptions: subscriptions,
		selected:      selected,
	}
}

// FindOrCreateActiveSubscription returns the single logical subscription
// for an external calendar and provider.
//
// Lookup order: an ACTIVE row in the subscriptions table always wins.
// Failing that, a legacy record carrying complete channel fields is
// promoted into a new ACTIVE subscription without a provider call. With
// neither present, a PENDING subscription is created; provider
// registration is performed later by the renewal pass.
func (s *SubscriptionService) FindOrCreateActiveSubscription(ctx context.Context, externalCalendarID, providerType string, credentialID int64) (*models.Subscription, error) {
	existing, err := s.subscriptions.FindActive(ctx, externalCalendarID, providerType)
	if err != nil {
		return nil, fmt.Errorf("finding active subscription: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	legacy, err := s.selected.FindWithChannelByExternalID(ctx, externalCalendarID, providerType)
	if err != nil {
		return nil, fmt.Errorf("finding legacy channel record: %w", err)
	}

	if legacy != nil {
		ch := legacy.Channel()
		if ch == nil || !ch.Complete() {
			// A legacy record with a channel id but missing fields is
			// unusable. Never materialize a broken ACTIVE subscription
			// from it.
			log.Printf("Legacy record %s for calendar %s has incomplete channel details", legacy.ID, externalCalendarID)
			return nil, ErrIncompleteChannel
		}

		if legacy.CredentialID != credentialID {
			// Two credentials may legitimately point at the same external
			// resource. Proceed with the requested credential.
			log.Printf("Credential mismatch promoting legacy record %s: legacy=%d requested=%d", legacy.ID, legacy.CredentialID, credentialID)
		}

		return s.createActiveFromChannel(ctx, externalCalendarID, providerType, credentialID, *ch)
	}

	return s.createPending(ctx, externalCalendarID, providerType, credentialID)
}

// createActiveFromChannel materializes an ACTIVE subscription from channel
// details already confirmed with the provider. No provider call is made.
func (s *SubscriptionService) createActiveFromChannel(ctx context.Context, externalCalendarID, providerType string, credentialID int64, ch models.ProviderChannel) (*models.Subscription, error) {
	now := time.Now().UTC()
	sub := &models.Subscription{
		CredentialID:             credentialID,
		ExternalCalendarID:       externalCalendarID,
		ProviderType:             providerType,
		Status:                   models.SubscriptionStatusActive,
		ProviderSubscriptionID:   &ch.ID,
		ProviderSubscriptionKind: &ch.Kind,
		ProviderResourceID:       &ch.ResourceID,
		ProviderResourceURI:      &ch.ResourceURI,
		ProviderExpiration:       &ch.Expiration,
		ActivatedAt:              &now,
	}

	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("creating subscription from legacy channel: %w", err)
	}

	log.Printf("Promoted legacy channel %s into subscription %s for calendar %s", ch.ID, sub.ID, externalCalendarID)
	return sub, nil
}

func (s *SubscriptionService) createPending(ctx context.Context, externalCalendarID, providerType string, credentialID int64) (*models.Subscription, error) {
	// A credential holds at most one subscription per external calendar.
	// Reuse an existing row rather than racing the unique constraint.
	existing, err := s.subscriptions.FindByCredentialAndExternalID(ctx, credentialID, externalCalendarID)
	if err != nil {
		return nil, fmt.Errorf("checking for existing subscription: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	sub := &models.Subscription{
		CredentialID:       credentialID,
		ExternalCalendarID: externalCalendarID,
		ProviderType:       providerType,
		Status:             models.SubscriptionStatusPending,
	}

	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("creating pending subscription: %w", err)
	}

	log.Printf("Created pending subscription %s for calendar %s", sub.ID, externalCalendarID)
	return sub, nil
}

// Activate transitions a PENDING subscription to ACTIVE with freshly
// obtained provider channel details.
func (s *SubscriptionService) Activate(ctx context.Context, subscriptionID string, ch models.ProviderChannel) error {
	if !ch.Complete() {
		return fmt.Errorf("cannot activate subscription %s: %w", subscriptionID, ErrIncompleteChannel)
	}
	if err := s.subscriptions.Activate(ctx, subscriptionID, ch); err != nil {
		return err
	}
	log.Printf("Activated subscription %s with channel %s (expires %s)", subscriptionID, ch.ID, ch.Expiration.Format(time.RFC3339))
	return nil
}

// Deactivate sets a subscription INACTIVE. The row is kept as an audit
// trail. When the legacy record carries the same channel, its channel
// fields are cleared best effort so the two storage locations do not
// keep advertising a channel the subscription no longer owns.
func (s *SubscriptionService) Deactivate(ctx context.Context, subscriptionID string) error {
	sub, err := s.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("loading subscription: %w", err)
	}
	if sub == nil {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}

	if err := s.subscriptions.UpdateStatus(ctx, subscriptionID, models.SubscriptionStatusInactive); err != nil {
		return err
	}

	if sub.ProviderSubscriptionID != nil {
		legacy, err := s.selected.FindWithChannelByExternalID(ctx, sub.ExternalCalendarID, sub.ProviderType)
		if err != nil {
			log.Printf("Failed to look up legacy record for calendar %s: %v", sub.ExternalCalendarID, err)
		} else if legacy != nil && legacy.ChannelID != nil && *legacy.ChannelID == *sub.ProviderSubscriptionID {
			if err := s.selected.ClearChannel(ctx, legacy.ID); err != nil {
				log.Printf("Failed to clear legacy channel record %s: %v", legacy.ID, err)
			}
		}
	}

	log.Printf("Deactivated subscription %s", subscriptionID)
	return nil
}

// FindAllRequiringRenewalOrActivation returns subscriptions that are
// PENDING or ACTIVE with a channel expiring within the window, ordered
// for fair processing and bounded by batchSize.
func (s *SubscriptionService) FindAllRequiringRenewalOrActivation(ctx context.Context, window time.Duration, batchSize int) ([]models.Subscription, error) {
	return s.subscriptions.ListRequiringRenewalOrActivation(ctx, window, batchSize)
}
