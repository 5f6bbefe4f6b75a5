package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

const eventColumns = `
	id, subscription_id, provider_event_id, summary, start_time, end_time,
	status, transparency, payload, created_at, updated_at`

// EventStore is the interface for the cached event mirror. The concrete
// repository and the error-tracking decorator both implement it.
type EventStore interface {
	UpsertEvent(ctx context.Context, event *models.CachedEvent) error
	BulkUpsertEvents(ctx context.Context, events []*models.CachedEvent) error
	DeleteEvent(ctx context.Context, subscriptionID, providerEventID string) error
	GetEventsForAvailability(ctx context.Context, subscriptionID string, start, end time.Time) ([]models.CachedEvent, error)
	CleanupOldEvents(ctx context.Context) (int64, error)
	CountEvents(ctx context.Context) (int, error)
}

// EventRepository provides data access for cached provider events.
type EventRepository struct {
	BaseRepository
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func scanEvent(row interface{ Scan(...any) error }) (*models.CachedEvent, error) {
	e := &models.CachedEvent{}
	err := row.Scan(
		&e.ID, &e.SubscriptionID, &e.ProviderEventID, &e.Summary, &e.Start, &e.End,
		&e.Status, &e.Transparency, &e.Payload, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpsertEvent inserts or fully overwrites a cached event. Identity is the
// composite of (subscription_id, provider_event_id), so applying the same
// delta twice yields the same final state.
func (r *EventRepository) UpsertEvent(ctx context.Context, event *models.CachedEvent) error {
	if event.ID == "" {
		event.ID = GenerateID()
	}
	if event.Status == "" {
		event.Status = models.EventStatusConfirmed
	}
	if event.Transparency == "" {
		event.Transparency = models.TransparencyOpaque
	}
	now := r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO calendar_events (
			id, subscription_id, provider_event_id, summary, start_time, end_time,
			status, transparency, payload, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subscription_id, provider_event_id) DO UPDATE SET
			summary = excluded.summary,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			status = excluded.status,
			transparency = excluded.transparency,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`,
		event.ID, event.SubscriptionID, event.ProviderEventID, event.Summary,
		event.Start, event.End, event.Status, event.Transparency, event.Payload,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting event: %w", err)
	}
	return nil
}

// BulkUpsertEvents applies a batch of deltas. Each event is upserted
// independently and concurrently; one failure does not stop the others,
// but the first error is returned after all attempts finish.
func (r *EventRepository) BulkUpsertEvents(ctx context.Context, events []*models.CachedEvent) error {
	var wg sync.WaitGroup
	errs := make([]error, len(events))

	for i, event := range events {
		wg.Add(1)
		go func(i int, event *models.CachedEvent) {
			defer wg.Done()
			errs[i] = r.UpsertEvent(ctx, event)
		}(i, event)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteEvent removes a cached event after an explicit provider deletion
// signal. Deleting an event that is not cached is not an error.
func (r *EventRepository) DeleteEvent(ctx context.Context, subscriptionID, providerEventID string) error {
	_, err := r.DB().ExecContext(ctx, `
		DELETE FROM calendar_events WHERE subscription_id = ? AND provider_event_id = ?
	`, subscriptionID, providerEventID)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	return nil
}

// GetEventsForAvailability returns all non-cancelled opaque events for a
// subscription overlapping [start, end), excluding events that have
// already ended, ordered by start time. An event overlaps when it starts
// inside the range, ends inside the range, or spans the entire range.
func (r *EventRepository) GetEventsForAvailability(ctx context.Context, subscriptionID string, start, end time.Time) ([]models.CachedEvent, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE subscription_id = ?
		  AND status != ?
		  AND transparency = ?
		  AND end_time > ?
		  AND (
			(start_time >= ? AND start_time < ?)
			OR (end_time > ? AND end_time <= ?)
			OR (start_time < ? AND end_time > ?)
		  )
		ORDER BY start_time ASC
	`,
		subscriptionID,
		models.EventStatusCancelled,
		models.TransparencyOpaque,
		r.Now(),
		start, end,
		start, end,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events for availability: %w", err)
	}
	defer rows.Close()

	var events []models.CachedEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// CleanupOldEvents deletes cancelled events that ended more than 24 hours
// ago, and any event that has already ended regardless of status. This is
// a standing retention policy run periodically, not a one-shot migration.
func (r *EventRepository) CleanupOldEvents(ctx context.Context) (int64, error) {
	now := r.Now()
	cutoff := now.Add(-24 * time.Hour)

	result, err := r.DB().ExecContext(ctx, `
		DELETE FROM calendar_events
		WHERE (status = ? AND end_time < ?) OR end_time < ?
	`, models.EventStatusCancelled, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("cleaning up old events: %w", err)
	}

	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// CountEvents returns the total number of cached events.
func (r *EventRepository) CountEvents(ctx context.Context) (int, error) {
	var n int
	err := r.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM calendar_events").Scan(&n)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

var _ EventStore = (*EventRepository)(nil)
