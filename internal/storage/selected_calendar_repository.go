package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

const selectedCalendarColumns = `
	id, credential_id, external_id, integration,
	channel_id, channel_kind, channel_resource_id, channel_resource_uri,
	channel_expiration, created_at, updated_at`

// SelectedCalendarRepository provides data access for the legacy
// per-calendar records. These predate the subscriptions table and may
// carry their own copy of the provider channel fields.
type SelectedCalendarRepository struct {
	BaseRepository
}

// NewSelectedCalendarRepository creates a new selected calendar repository.
func NewSelectedCalendarRepository(db *DB) *SelectedCalendarRepository {
	return &SelectedCalendarRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func scanSelectedCalendar(row interface{ Scan(...any) error }) (*models.SelectedCalendar, error) {
	sc := &models.SelectedCalendar{}
	err := row.Scan(
		&sc.ID, &sc.CredentialID, &sc.ExternalID, &sc.Integration,
		&sc.ChannelID, &sc.ChannelKind, &sc.ChannelResourceID, &sc.ChannelResourceURI,
		&sc.ChannelExpiration, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Create inserts a new selected calendar record.
func (r *SelectedCalendarRepository) Create(ctx context.Context, sc *models.SelectedCalendar) error {
	if sc.ID == "" {
		sc.ID = GenerateID()
	}
	sc.CreatedAt = r.Now()
	sc.UpdatedAt = sc.CreatedAt

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO selected_calendars (
			id, credential_id, external_id, integration,
			channel_id, channel_kind, channel_resource_id, channel_resource_uri,
			channel_expiration, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sc.ID, sc.CredentialID, sc.ExternalID, sc.Integration,
		sc.ChannelID, sc.ChannelKind, sc.ChannelResourceID, sc.ChannelResourceURI,
		sc.ChannelExpiration, sc.CreatedAt, sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting selected calendar: %w", err)
	}
	return nil
}

// FindByChannel retrieves the legacy record matching a channel id and
// resource id from a push notification.
func (r *SelectedCalendarRepository) FindByChannel(ctx context.Context, channelID, resourceID string) (*models.SelectedCalendar, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT `+selectedCalendarColumns+`
		FROM selected_calendars
		WHERE channel_id = ? AND channel_resource_id = ?
		ORDER BY created_at DESC LIMIT 1
	`, channelID, resourceID)

	sc, err := scanSelectedCalendar(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying selected calendar by channel: %w", err)
	}
	return sc, nil
}

// FindWithChannelByExternalID retrieves the legacy record for an external
// calendar and integration that carries a channel id. Records without a
// channel are not candidates for subscription promotion.
func (r *SelectedCalendarRepository) FindWithChannelByExternalID(ctx context.Context, externalID, integration string) (*models.SelectedCalendar, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT `+selectedCalendarColumns+`
		FROM selected_calendars
		WHERE external_id = ? AND integration = ? AND channel_id IS NOT NULL
		ORDER BY created_at DESC LIMIT 1
	`, externalID, integration)

	sc, err := scanSelectedCalendar(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying selected calendar by external id: %w", err)
	}
	return sc, nil
}

// ListByCredential retrieves all selected calendars for a credential. A
// single push notification refreshes every downstream consumer sharing
// the credential.
func (r *SelectedCalendarRepository) ListByCredential(ctx context.Context, credentialID int64) ([]models.SelectedCalendar, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+selectedCalendarColumns+`
		FROM selected_calendars
		WHERE credential_id = ?
		ORDER BY external_id
	`, credentialID)
	if err != nil {
		return nil, fmt.Errorf("querying selected calendars by credential: %w", err)
	}
	defer rows.Close()

	var calendars []models.SelectedCalendar
	for rows.Next() {
		sc, err := scanSelectedCalendar(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning selected calendar: %w", err)
		}
		calendars = append(calendars, *sc)
	}
	return calendars, rows.Err()
}

// UpdateChannel stores fresh channel details on a legacy record, keeping
// it in step with a renewed subscription.
func (r *SelectedCalendarRepository) UpdateChannel(ctx context.Context, id string, ch models.ProviderChannel) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE selected_calendars SET
			channel_id = ?, channel_kind = ?, channel_resource_id = ?,
			channel_resource_uri = ?, channel_expiration = ?, updated_at = ?
		WHERE id = ?
	`, ch.ID, ch.Kind, ch.ResourceID, ch.ResourceURI, ch.Expiration, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating selected calendar channel: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("selected calendar not found: %s", id)
	}
	return nil
}

// ClearChannel removes channel details from a legacy record after the
// channel was stopped or superseded.
func (r *SelectedCalendarRepository) ClearChannel(ctx context.Context, id string) error {
	_, err := r.DB().ExecContext(ctx, `
		UPDATE selected_calendars SET
			channel_id = NULL, channel_kind = NULL, channel_resource_id = NULL,
			channel_resource_uri = NULL, channel_expiration = NULL, updated_at = ?
		WHERE id = ?
	`, r.Now(), id)
	if err != nil {
		return fmt.Errorf("clearing selected calendar channel: %w", err)
	}
	return nil
}
