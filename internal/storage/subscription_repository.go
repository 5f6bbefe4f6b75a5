package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

const subscriptionColumns = `
	id, credential_id, external_calendar_id, provider_type, status,
	provider_subscription_id, provider_subscription_kind, provider_resource_id,
	provider_resource_uri, provider_expiration,
	next_sync_token, last_sync_at, last_synced_down_at, last_sync_direction,
	watch_error, activated_at, created_at, updated_at`

// SubscriptionStore is the subset of subscription persistence the webhook
// ingestion path depends on.
type SubscriptionStore interface {
	FindByChannel(ctx context.Context, channelID, resourceID string) (*models.Subscription, error)
	TouchLastSync(ctx context.Context, id string, syncedDown bool) error
	UpdateSyncToken(ctx context.Context, id, token string) error
}

// SubscriptionRepository provides data access for calendar subscriptions.
type SubscriptionRepository struct {
	BaseRepository
}

// NewSubscriptionRepository creates a new subscription repository.
func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	sub := &models.Subscription{}
	err := row.Scan(
		&sub.ID, &sub.CredentialID, &sub.ExternalCalendarID, &sub.ProviderType, &sub.Status,
		&sub.ProviderSubscriptionID, &sub.ProviderSubscriptionKind, &sub.ProviderResourceID,
		&sub.ProviderResourceURI, &sub.ProviderExpiration,
		&sub.NextSyncToken, &sub.LastSyncAt, &sub.LastSyncedDownAt, &sub.LastSyncDirection,
		&sub.WatchError, &sub.ActivatedAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Create inserts a new subscription. Status defaults to PENDING unless set.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = GenerateID()
	}
	if sub.Status == "" {
		sub.Status = models.SubscriptionStatusPending
	}
	sub.CreatedAt = r.Now()
	sub.UpdatedAt = sub.CreatedAt

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO calendar_subscriptions (
			id, credential_id, external_calendar_id, provider_type, status,
			provider_subscription_id, provider_subscription_kind, provider_resource_id,
			provider_resource_uri, provider_expiration, next_sync_token,
			activated_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sub.ID, sub.CredentialID, sub.ExternalCalendarID, sub.ProviderType, sub.Status,
		sub.ProviderSubscriptionID, sub.ProviderSubscriptionKind, sub.ProviderResourceID,
		sub.ProviderResourceURI, sub.ProviderExpiration, sub.NextSyncToken,
		sub.ActivatedAt, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting subscription: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription by its ID.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM calendar_subscriptions WHERE id = ?`, id)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	return sub, nil
}

// FindActive retrieves the ACTIVE subscription for an external calendar and
// provider, if one exists. The partial unique index guarantees at most one.
func (r *SubscriptionRepository) FindActive(ctx context.Context, externalCalendarID, providerType string) (*models.Subscription, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM calendar_subscriptions
		WHERE external_calendar_id = ? AND provider_type = ? AND status = ?
	`, externalCalendarID, providerType, models.SubscriptionStatusActive)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying active subscription: %w", err)
	}
	return sub, nil
}

// FindByCredentialAndExternalID retrieves the subscription for a
// credential and external calendar. The pair is unique.
func (r *SubscriptionRepository) FindByCredentialAndExternalID(ctx context.Context, credentialID int64, externalCalendarID string) (*models.Subscription, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM calendar_subscriptions
		WHERE credential_id = ? AND external_calendar_id = ?
	`, credentialID, externalCalendarID)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying subscription by credential: %w", err)
	}
	return sub, nil
}

// FindByChannel retrieves the subscription matching a provider channel id
// and resource id, as carried by a push notification.
func (r *SubscriptionRepository) FindByChannel(ctx context.Context, channelID, resourceID string) (*models.Subscription, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM calendar_subscriptions
		WHERE provider_subscription_id = ? AND provider_resource_id = ?
		ORDER BY created_at DESC LIMIT 1
	`, channelID, resourceID)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying subscription by channel: %w", err)
	}
	return sub, nil
}

// List retrieves all subscriptions ordered by creation time.
func (r *SubscriptionRepository) List(ctx context.Context) ([]models.Subscription, error) {
	rows, err := r.DB().QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM calendar_subscriptions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// ListRequiringRenewalOrActivation returns subscriptions that are PENDING,
// or ACTIVE with a channel expiring within the given window. Ordered by
// last sync time so starved subscriptions are processed first, bounded by
// batchSize.
func (r *SubscriptionRepository) ListRequiringRenewalOrActivation(ctx context.Context, window time.Duration, batchSize int) ([]models.Subscription, error) {
	cutoff := r.Now().Add(window)
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM calendar_subscriptions
		WHERE status = ?
		   OR (status = ? AND (provider_expiration IS NULL OR provider_expiration < ?))
		ORDER BY last_sync_at ASC NULLS FIRST, created_at ASC
		LIMIT ?
	`, models.SubscriptionStatusPending, models.SubscriptionStatusActive, cutoff, batchSize)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions for renewal: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

func collectSubscriptions(rows *sql.Rows) ([]models.Subscription, error) {
	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// Activate transitions a subscription to ACTIVE, stamping activated_at and
// the provider channel details.
func (r *SubscriptionRepository) Activate(ctx context.Context, id string, ch models.ProviderChannel) error {
	now := r.Now()
	result, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_subscriptions SET
			status = ?,
			provider_subscription_id = ?, provider_subscription_kind = ?,
			provider_resource_id = ?, provider_resource_uri = ?, provider_expiration = ?,
			activated_at = ?, watch_error = NULL, updated_at = ?
		WHERE id = ?
	`,
		models.SubscriptionStatusActive,
		ch.ID, ch.Kind, ch.ResourceID, ch.ResourceURI, ch.Expiration,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("activating subscription: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("subscription not found: %s", id)
	}
	return nil
}

// UpdateStatus sets the lifecycle status of a subscription.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_subscriptions SET status = ?, updated_at = ? WHERE id = ?
	`, status, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating subscription status: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("subscription not found: %s", id)
	}
	return nil
}

// TouchLastSync stamps last_sync_at after a webhook was processed. When the
// pass synced events downstream, last_synced_down_at and the direction are
// stamped as well.
func (r *SubscriptionRepository) TouchLastSync(ctx context.Context, id string, syncedDown bool) error {
	now := r.Now()
	var err error
	if syncedDown {
		direction := models.SyncDirectionDownstream
		_, err = r.DB().ExecContext(ctx, `
			UPDATE calendar_subscriptions SET
				last_sync_at = ?, last_synced_down_at = ?, last_sync_direction = ?, updated_at = ?
			WHERE id = ?
		`, now, now, direction, now, id)
	} else {
		_, err = r.DB().ExecContext(ctx, `
			UPDATE calendar_subscriptions SET last_sync_at = ?, updated_at = ? WHERE id = ?
		`, now, now, id)
	}
	if err != nil {
		return fmt.Errorf("updating last sync: %w", err)
	}
	return nil
}

// UpdateSyncToken stores the provider's next incremental sync token.
func (r *SubscriptionRepository) UpdateSyncToken(ctx context.Context, id, token string) error {
	_, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_subscriptions SET next_sync_token = ?, updated_at = ? WHERE id = ?
	`, token, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating sync token: %w", err)
	}
	return nil
}

// SetWatchError records the failure text of the last watch attempt.
func (r *SubscriptionRepository) SetWatchError(ctx context.Context, id, watchErr string) error {
	_, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_subscriptions SET watch_error = ?, updated_at = ? WHERE id = ?
	`, watchErr, r.Now(), id)
	if err != nil {
		return fmt.Errorf("setting watch error: %w", err)
	}
	return nil
}

// ClearWatchError clears the failure text after a successful watch.
func (r *SubscriptionRepository) ClearWatchError(ctx context.Context, id string) error {
	_, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_subscriptions SET watch_error = NULL, updated_at = ? WHERE id = ?
	`, r.Now(), id)
	if err != nil {
		return fmt.Errorf("clearing watch error: %w", err)
	}
	return nil
}

// CountByStatus returns the number of subscriptions per status.
func (r *SubscriptionRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT status, COUNT(*) FROM calendar_subscriptions GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("counting subscriptions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

var _ SubscriptionStore = (*SubscriptionRepository)(nil)
