package storage

import (
	"context"
	"testing"
	"time"

	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

func createTestSubscription(t *testing.T, db *DB, credentialID int64, externalCalendarID string) *models.Subscription {
	t.Helper()

	repo := NewSubscriptionRepository(db)
	sub := &models.Subscription{
		CredentialID:       credentialID,
		ExternalCalendarID: externalCalendarID,
		ProviderType:       models.ProviderGoogle,
	}
	if err := repo.Create(context.Background(), sub); err != nil {
		t.Fatalf("creating subscription: %v", err)
	}
	return sub
}

func TestUpsertEventIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	sub := createTestSubscription(t, db, 1, "alice@example.com")
	repo := NewEventRepository(db)
	ctx := context.Background()

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	summary := "Standup"
	event := &models.CachedEvent{
		SubscriptionID:  sub.ID,
		ProviderEventID: "evt-1",
		Summary:         &summary,
		Start:           start,
		End:             start.Add(30 * time.Minute),
	}

	if err := repo.UpsertEvent(ctx, event); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.UpsertEvent(ctx, event); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	n, err := repo.CountEvents(ctx)
	if err != nil {
		t.Fatalf("counting events: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 event after double upsert, got %d", n)
	}
}

func TestUpsertEventOverwritesExisting(t *testing.T) {
	db := newTestDB(t)
	sub := createTestSubscription(t, db, 1, "alice@example.com")
	repo := NewEventRepository(db)
	ctx := context.Background()

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	event := &models.CachedEvent{
		SubscriptionID:  sub.ID,
		ProviderEventID: "evt-1",
		Start:           start,
		End:             start.Add(30 * time.Minute),
		Status:          models.EventStatusConfirmed,
	}
	if err := repo.UpsertEvent(ctx, event); err != nil {
		t.Fatalf("upserting event: %v", err)
	}

	// The provider reports the same event again, now cancelled.
	updated := &models.CachedEvent{
		SubscriptionID:  sub.ID,
		ProviderEventID: "evt-1",
		Start:           start,
		End:             start.Add(30 * time.Minute),
		Status:          models.EventStatusCancelled,
	}
	if err := repo.UpsertEvent(ctx, updated); err != nil {
		t.Fatalf("upserting updated event: %v", err)
	}

	events, err := repo.GetEventsForAvailability(ctx, sub.ID, start.Add(-time.Hour), start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("querying availability: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("cancelled event should not block availability, got %d events", len(events))
	}

	n, _ := repo.CountEvents(ctx)
	if n != 1 {
		t.Errorf("expected the cancelled event to overwrite in place, got %d rows", n)
	}
}

func TestBulkUpsertEvents(t *testing.T) {
	db := newTestDB(t)
	sub := createTestSubscription(t, db, 1, "alice@example.com")
	repo := NewEventRepository(db)
	ctx := context.Background()

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	var events []*models.CachedEvent
	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		events = append(events, &models.CachedEvent{
			SubscriptionID:  sub.ID,
			ProviderEventID: id,
			Start:           start,
			End:             start.Add(time.Hour),
		})
	}

	if err := repo.BulkUpsertEvents(ctx, events); err != nil {
		t.Fatalf("bulk upsert: %v", err)
	}

	n, err := repo.CountEvents(ctx)
	if err != nil {
		t.Fatalf("counting events: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 events, got %d", n)
	}
}

func TestBulkUpsertEventsSurfacesFirstFailure(t *testing.T) {
	db := newTestDB(t)
	sub := createTestSubscription(t, db, 1, "alice@example.com")
	repo := NewEventRepository(db)
	ctx := context.Background()

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	events := []*models.CachedEvent{
		{SubscriptionID: sub.ID, ProviderEventID: "evt-1", Start: start, End: start.Add(time.Hour)},
		// The foreign key on subscription_id makes this one fail.
		{SubscriptionID: "no-such-subscription", ProviderEventID: "evt-2", Start: start, End: start.Add(time.Hour)},
		{SubscriptionID: sub.ID, ProviderEventID: "evt-3", Start: start, End: start.Add(time.Hour)},
	}

	if err := repo.BulkUpsertEvents(ctx, events); err == nil {
		t.Fatal("expected the failed upsert to surface as an error")
	}

	// The failure must not stop the other upserts.
	n, err := repo.CountEvents(ctx)
	if err != nil {
		t.Fatalf("counting events: %v", err)
	}
	if n != 2 {
		t.Errorf("expected the 2 valid events to be cached despite the failure, got %d", n)
	}
}

func TestGetEventsForAvailabilityOverlap(t *testing.T) {
	db := newTestDB(t)
	sub := createTestSubscription(t, db, 1, "alice@example.com")
	repo := NewEventRepository(db)
	ctx := context.Background()

	// Query window is [base+2h, base+4h).
	base := time.Now().UTC().Truncate(time.Second)
	windowStart := base.Add(2 * time.Hour)
	windowEnd := base.Add(4 * time.Hour)

	insert := func(id string, start, end time.Time, status, transparency string) {
		t.Helper()
		err := repo.UpsertEvent(ctx, &models.CachedEvent{
			SubscriptionID:  sub.ID,
			ProviderEventID: id,
			Start:           start,
			End:             end,
			Status:          status,
			Transparency:    transparency,
		})
		if err != nil {
			t.Fatalf("inserting %s: %v", id, err)
		}
	}

	// Overlapping in each of the three ways.
	insert("starts-inside", windowStart.Add(30*time.Minute), windowEnd.Add(time.Hour), models.EventStatusConfirmed, models.TransparencyOpaque)
	insert("ends-inside", windowStart.Add(-time.Hour), windowStart.Add(30*time.Minute), models.EventStatusConfirmed, models.TransparencyOpaque)
	insert("spans-window", windowStart.Add(-time.Hour), windowEnd.Add(time.Hour), models.EventStatusConfirmed, models.TransparencyOpaque)

	// Excluded for various reasons.
	insert("before-window", base, base.Add(time.Hour), models.EventStatusConfirmed, models.TransparencyOpaque)
	insert("after-window", windowEnd.Add(time.Hour), windowEnd.Add(2*time.Hour), models.EventStatusConfirmed, models.TransparencyOpaque)
	insert("cancelled", windowStart.Add(time.Hour), windowStart.Add(90*time.Minute), models.EventStatusCancelled, models.TransparencyOpaque)
	insert("transparent", windowStart.Add(time.Hour), windowStart.Add(90*time.Minute), models.EventStatusConfirmed, models.TransparencyTransparent)
	insert("already-ended", base.Add(-3*time.Hour), base.Add(-2*time.Hour), models.EventStatusConfirmed, models.TransparencyOpaque)

	events, err := repo.GetEventsForAvailability(ctx, sub.ID, windowStart, windowEnd)
	if err != nil {
		t.Fatalf("querying availability: %v", err)
	}

	want := map[string]bool{"starts-inside": true, "ends-inside": true, "spans-window": true}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for _, e := range events {
		if !want[e.ProviderEventID] {
			t.Errorf("unexpected event in result: %s", e.ProviderEventID)
		}
		if !e.BlocksAvailability(time.Now().UTC()) {
			t.Errorf("event %s returned for availability but does not block it", e.ProviderEventID)
		}
	}

	// Ordered by start time.
	for i := 1; i < len(events); i++ {
		if events[i].Start.Before(events[i-1].Start) {
			t.Errorf("events not ordered by start time: %s before %s",
				events[i].ProviderEventID, events[i-1].ProviderEventID)
		}
	}
}

func TestGetEventsForAvailabilityScopedToSubscription(t *testing.T) {
	db := newTestDB(t)
	subA := createTestSubscription(t, db, 1, "alice@example.com")
	subB := createTestSubscription(t, db, 2, "bob@example.com")
	repo := NewEventRepository(db)
	ctx := context.Background()

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	for _, sub := range []*models.Subscription{subA, subB} {
		err := repo.UpsertEvent(ctx, &models.CachedEvent{
			SubscriptionID:  sub.ID,
			ProviderEventID: "evt-1",
			Start:           start,
			End:             start.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("inserting event: %v", err)
		}
	}

	events, err := repo.GetEventsForAvailability(ctx, subA.ID, start.Add(-time.Hour), start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("querying availability: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event for subscription A, got %d", len(events))
	}
	if events[0].SubscriptionID != subA.ID {
		t.Errorf("got event for wrong subscription: %s", events[0].SubscriptionID)
	}
}

func TestDeleteEvent(t *testing.T) {
	db := newTestDB(t)
	sub := createTestSubscription(t, db, 1, "alice@example.com")
	repo := NewEventRepository(db)
	ctx := context.Background()

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	err := repo.UpsertEvent(ctx, &models.CachedEvent{
		SubscriptionID:  sub.ID,
		ProviderEventID: "evt-1",
		Start:           start,
		End:             start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("inserting event: %v", err)
	}

	if err := repo.DeleteEvent(ctx, sub.ID, "evt-1"); err != nil {
		t.Fatalf("deleting event: %v", err)
	}
	n, _ := repo.CountEvents(ctx)
	if n != 0 {
		t.Errorf("expected 0 events after delete, got %d", n)
	}

	// Deleting an event that was never cached is not an error.
	if err := repo.DeleteEvent(ctx, sub.ID, "never-seen"); err != nil {
		t.Errorf("deleting unknown event: %v", err)
	}
}

func TestCleanupOldEvents(t *testing.T) {
	db := newTestDB(t)
	sub := createTestSubscription(t, db, 1, "alice@example.com")
	repo := NewEventRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	insert := func(id string, start, end time.Time, status string) {
		t.Helper()
		err := repo.UpsertEvent(ctx, &models.CachedEvent{
			SubscriptionID:  sub.ID,
			ProviderEventID: id,
			Start:           start,
			End:             end,
			Status:          status,
		})
		if err != nil {
			t.Fatalf("inserting %s: %v", id, err)
		}
	}

	insert("ended-long-ago", now.Add(-48*time.Hour), now.Add(-47*time.Hour), models.EventStatusConfirmed)
	insert("cancelled-old", now.Add(-48*time.Hour), now.Add(-47*time.Hour), models.EventStatusCancelled)
	insert("ended-recently", now.Add(-2*time.Hour), now.Add(-time.Hour), models.EventStatusConfirmed)
	insert("upcoming", now.Add(time.Hour), now.Add(2*time.Hour), models.EventStatusConfirmed)
	insert("cancelled-upcoming", now.Add(time.Hour), now.Add(2*time.Hour), models.EventStatusCancelled)

	deleted, err := repo.CleanupOldEvents(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted events, got %d", deleted)
	}

	n, _ := repo.CountEvents(ctx)
	if n != 2 {
		t.Errorf("expected 2 remaining events, got %d", n)
	}
}
