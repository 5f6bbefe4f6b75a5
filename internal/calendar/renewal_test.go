package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/AhmadHamada1/cal.com/internal/storage"
	"github.com/AhmadHamada1/cal.com/internal/storage/models"
	"github.com/AhmadHamada1/cal.com/internal/websocket"
)

type renewalEnv struct {
	subs      *storage.SubscriptionRepository
	selected  *storage.SelectedCalendarRepository
	events    *storage.EventRepository
	client    *fakeClient
	scheduler *RenewalScheduler
}

func newRenewalEnv(t *testing.T, resolver *fakeResolver) *renewalEnv {
	t.Helper()
	db := newTestDB(t)

	env := &renewalEnv{
		subs:     storage.NewSubscriptionRepository(db),
		selected: storage.NewSelectedCalendarRepository(db),
		events:   storage.NewEventRepository(db),
		client:   &fakeClient{watchChannel: func() *models.ProviderChannel { ch := channelFixture("chan-new"); return &ch }()},
	}
	service := NewSubscriptionService(env.subs, env.selected)
	env.scheduler = NewRenewalScheduler(
		service, env.subs, env.selected, env.events,
		resolver, &fakeFactory{client: env.client}, nil,
		time.Hour, 24*time.Hour, 50,
	)
	return env
}

func TestRenewalActivatesPendingSubscription(t *testing.T) {
	env := newRenewalEnv(t, resolverWith(1))
	ctx := context.Background()

	sub := &models.Subscription{
		CredentialID:       1,
		ExternalCalendarID: "alice@example.com",
		ProviderType:       models.ProviderGoogle,
	}
	if err := env.subs.Create(ctx, sub); err != nil {
		t.Fatalf("creating subscription: %v", err)
	}

	env.scheduler.RunRenewalBatch(ctx)

	got, _ := env.subs.GetByID(ctx, sub.ID)
	if got.Status != models.SubscriptionStatusActive {
		t.Fatalf("expected ACTIVE after renewal, got %s", got.Status)
	}
	if got.ProviderSubscriptionID == nil || *got.ProviderSubscriptionID != "chan-new" {
		t.Error("channel details from the watch call not stored")
	}
	if env.client.watchCalls != 1 {
		t.Errorf("expected 1 watch call, got %d", env.client.watchCalls)
	}
	if len(env.client.stoppedChannels) != 0 {
		t.Error("no channel to stop when activating a pending subscription")
	}
}

func TestRenewalStopsSupersededChannel(t *testing.T) {
	env := newRenewalEnv(t, resolverWith(1))
	ctx := context.Background()

	sub := &models.Subscription{
		CredentialID:       1,
		ExternalCalendarID: "alice@example.com",
		ProviderType:       models.ProviderGoogle,
	}
	if err := env.subs.Create(ctx, sub); err != nil {
		t.Fatalf("creating subscription: %v", err)
	}

	// Activate with a channel that is about to expire so the renewal pass
	// picks it up.
	old := channelFixture("chan-old")
	old.Expiration = time.Now().UTC().Add(time.Hour)
	if err := env.subs.Activate(ctx, sub.ID, old); err != nil {
		t.Fatalf("activating: %v", err)
	}

	env.scheduler.RunRenewalBatch(ctx)

	got, _ := env.subs.GetByID(ctx, sub.ID)
	if got.ProviderSubscriptionID == nil || *got.ProviderSubscriptionID != "chan-new" {
		t.Error("renewal did not replace the channel")
	}
	if len(env.client.stoppedChannels) != 1 || env.client.stoppedChannels[0] != "chan-old" {
		t.Errorf("superseded channel not stopped, got %v", env.client.stoppedChannels)
	}
}

func TestRenewalRecordsWatchFailure(t *testing.T) {
	env := newRenewalEnv(t, resolverWith(1))
	env.client.watchErr = errors.New("push notifications are not supported by this calendar")
	ctx := context.Background()

	sub := &models.Subscription{
		CredentialID:       1,
		ExternalCalendarID: "alice@example.com",
		ProviderType:       models.ProviderGoogle,
	}
	if err := env.subs.Create(ctx, sub); err != nil {
		t.Fatalf("creating subscription: %v", err)
	}

	env.scheduler.RunRenewalBatch(ctx)

	got, _ := env.subs.GetByID(ctx, sub.ID)
	if got.Status != models.SubscriptionStatusPending {
		t.Errorf("failed watch must leave the subscription PENDING, got %s", got.Status)
	}
	if got.WatchError == nil || *got.WatchError != env.client.watchErr.Error() {
		t.Error("watch failure not recorded on the subscription")
	}
}

func TestRenewalRecordsMissingCredential(t *testing.T) {
	env := newRenewalEnv(t, resolverWith()) // no credentials
	ctx := context.Background()

	sub := &models.Subscription{
		CredentialID:       99,
		ExternalCalendarID: "alice@example.com",
		ProviderType:       models.ProviderGoogle,
	}
	if err := env.subs.Create(ctx, sub); err != nil {
		t.Fatalf("creating subscription: %v", err)
	}

	env.scheduler.RunRenewalBatch(ctx)

	got, _ := env.subs.GetByID(ctx, sub.ID)
	if got.WatchError == nil {
		t.Error("missing credential must be recorded as a watch error")
	}
	if env.client.watchCalls != 0 {
		t.Error("watch must not be attempted without a credential")
	}
}

func TestRenewalSyncsLegacyRecordChannel(t *testing.T) {
	env := newRenewalEnv(t, resolverWith(1))
	ctx := context.Background()

	// Legacy record carrying the old channel for the same calendar.
	oldID := "chan-old"
	oldKind := "web_hook"
	oldRes := "res-chan-old"
	oldURI := "https://example.com"
	oldExp := time.Now().UTC().Add(time.Hour)
	legacy := &models.SelectedCalendar{
		CredentialID:       1,
		ExternalID:         "alice@example.com",
		Integration:        models.ProviderGoogle,
		ChannelID:          &oldID,
		ChannelKind:        &oldKind,
		ChannelResourceID:  &oldRes,
		ChannelResourceURI: &oldURI,
		ChannelExpiration:  &oldExp,
	}
	if err := env.selected.Create(ctx, legacy); err != nil {
		t.Fatalf("creating legacy record: %v", err)
	}

	sub := &models.Subscription{
		CredentialID:       1,
		ExternalCalendarID: "alice@example.com",
		ProviderType:       models.ProviderGoogle,
	}
	if err := env.subs.Create(ctx, sub); err != nil {
		t.Fatalf("creating subscription: %v", err)
	}

	env.scheduler.RunRenewalBatch(ctx)

	updated, err := env.selected.FindWithChannelByExternalID(ctx, "alice@example.com", models.ProviderGoogle)
	if err != nil {
		t.Fatalf("finding legacy record: %v", err)
	}
	if updated == nil || updated.ChannelID == nil || *updated.ChannelID != "chan-new" {
		t.Error("legacy record channel not kept in step with the renewed subscription")
	}
}

func TestRenewalBroadcastsSystemStatus(t *testing.T) {
	db := newTestDB(t)
	subs := storage.NewSubscriptionRepository(db)
	selected := storage.NewSelectedCalendarRepository(db)
	events := storage.NewEventRepository(db)
	ctx := context.Background()

	hub := websocket.NewHub()
	go hub.Run()
	client := websocket.NewClient(hub)
	hub.Register(client)

	fake := &fakeClient{watchChannel: func() *models.ProviderChannel { ch := channelFixture("chan-new"); return &ch }()}
	scheduler := NewRenewalScheduler(
		NewSubscriptionService(subs, selected), subs, selected, events,
		resolverWith(1), &fakeFactory{client: fake}, websocket.NewEventBroadcaster(hub),
		time.Hour, 24*time.Hour, 50,
	)

	sub := &models.Subscription{
		CredentialID:       1,
		ExternalCalendarID: "alice@example.com",
		ProviderType:       models.ProviderGoogle,
	}
	if err := subs.Create(ctx, sub); err != nil {
		t.Fatalf("creating subscription: %v", err)
	}

	scheduler.RunRenewalBatch(ctx)

	// The batch broadcasts a renewal event followed by a status snapshot.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-client.Send():
			var msg struct {
				Type    string `json:"type"`
				Payload websocket.SystemStatusPayload
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("unmarshaling broadcast: %v", err)
			}
			if msg.Type != string(websocket.TypeSystemStatusChanged) {
				continue
			}
			if msg.Payload.SubscriptionCounts[models.SubscriptionStatusActive] != 1 {
				t.Errorf("status snapshot missing the activated subscription: %+v", msg.Payload)
			}
			return
		case <-deadline:
			t.Fatal("no system status broadcast after the renewal batch")
		}
	}
}
