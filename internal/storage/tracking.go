package storage

import (
	"context"
	"log"
	"time"

	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

// ErrorTracker receives repository failures for external error tracking.
type ErrorTracker interface {
	CaptureException(err error)
}

// LogErrorTracker is the default tracker. It logs captured errors.
type LogErrorTracker struct{}

// CaptureException logs the error.
func (LogErrorTracker) CaptureException(err error) {
	log.Printf("Captured repository error: %v", err)
}

// TrackedEventStore decorates an EventStore, reporting every failure to
// the error tracker before re-raising it. Callers must not assume partial
// success on error.
type TrackedEventStore struct {
	inner   EventStore
	tracker ErrorTracker
}

// NewTrackedEventStore wraps an event store with error tracking.
func NewTrackedEventStore(inner EventStore, tracker ErrorTracker) *TrackedEventStore {
	if tracker == nil {
		tracker = LogErrorTracker{}
	}
	return &TrackedEventStore{inner: inner, tracker: tracker}
}

func (s *TrackedEventStore) capture(err error) error {
	if err != nil {
		s.tracker.CaptureException(err)
	}
	return err
}

// UpsertEvent implements EventStore.
func (s *TrackedEventStore) UpsertEvent(ctx context.Context, event *models.CachedEvent) error {
	return s.capture(s.inner.UpsertEvent(ctx, event))
}

// BulkUpsertEvents implements EventStore.
func (s *TrackedEventStore) BulkUpsertEvents(ctx context.Context, events []*models.CachedEvent) error {
	return s.capture(s.inner.BulkUpsertEvents(ctx, events))
}

// DeleteEvent implements EventStore.
func (s *TrackedEventStore) DeleteEvent(ctx context.Context, subscriptionID, providerEventID string) error {
	return s.capture(s.inner.DeleteEvent(ctx, subscriptionID, providerEventID))
}

// GetEventsForAvailability implements EventStore.
func (s *TrackedEventStore) GetEventsForAvailability(ctx context.Context, subscriptionID string, start, end time.Time) ([]models.CachedEvent, error) {
	events, err := s.inner.GetEventsForAvailability(ctx, subscriptionID, start, end)
	return events, s.capture(err)
}

// CleanupOldEvents implements EventStore.
func (s *TrackedEventStore) CleanupOldEvents(ctx context.Context) (int64, error) {
	n, err := s.inner.CleanupOldEvents(ctx)
	return n, s.capture(err)
}

// CountEvents implements EventStore.
func (s *TrackedEventStore) CountEvents(ctx context.Context) (int, error) {
	n, err := s.inner.CountEvents(ctx)
	return n, s.capture(err)
}

var _ EventStore = (*TrackedEventStore)(nil)
