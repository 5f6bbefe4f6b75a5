package calendar

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/AhmadHamada1/cal.com/internal/provider"
	"github.com/AhmadHamada1/cal.com/internal/storage"
	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	return db
}

func channelFixture(id string) models.ProviderChannel {
	return models.ProviderChannel{
		ID:          id,
		Kind:        "web_hook",
		ResourceID:  "res-" + id,
		ResourceURI: "https://www.googleapis.com/calendar/v3/calendars/primary/events",
		Expiration:  time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Second),
	}
}

// fakeResolver serves credentials from a map. Missing ids resolve to
// (nil, nil) like the real resolver.
type fakeResolver struct {
	creds map[int64]*Credential
	calls int
}

func (r *fakeResolver) GetCredentialForCalendarCache(ctx context.Context, credentialID int64) (*Credential, error) {
	r.calls++
	return r.creds[credentialID], nil
}

func resolverWith(ids ...int64) *fakeResolver {
	creds := make(map[int64]*Credential)
	for _, id := range ids {
		creds[id] = &Credential{
			ID:           id,
			ProviderType: models.ProviderGoogle,
			Token:        &oauth2.Token{AccessToken: "test-token"},
		}
	}
	return &fakeResolver{creds: creds}
}

type fakeFactory struct {
	client provider.Client
	err    error
}

func (f *fakeFactory) ClientFor(ctx context.Context, cred *Credential) (provider.Client, error) {
	return f.client, f.err
}

// fakeClient records every call so tests can assert on what the service
// handed to the provider.
type fakeClient struct {
	changeResult *provider.ChangeResult
	changeErr    error
	lastChange   provider.WatchedCalendarChange
	changeCalls  int

	watchChannel *models.ProviderChannel
	watchErr     error
	watchCalls   int

	stoppedChannels []string
}

func (c *fakeClient) OnWatchedCalendarChange(ctx context.Context, change provider.WatchedCalendarChange) (*provider.ChangeResult, error) {
	c.changeCalls++
	c.lastChange = change
	if c.changeErr != nil {
		return nil, c.changeErr
	}
	if c.changeResult != nil {
		return c.changeResult, nil
	}
	return &provider.ChangeResult{}, nil
}

func (c *fakeClient) Watch(ctx context.Context, calendarID string) (*models.ProviderChannel, error) {
	c.watchCalls++
	if c.watchErr != nil {
		return nil, c.watchErr
	}
	return c.watchChannel, nil
}

func (c *fakeClient) StopWatch(ctx context.Context, channelID, resourceID string) error {
	c.stoppedChannels = append(c.stoppedChannels, channelID)
	return nil
}

type fakeDownstream struct {
	events []provider.Event
	calls  int
}

func (d *fakeDownstream) SyncDownstream(ctx context.Context, events []provider.Event, app AppInfo) error {
	d.calls++
	d.events = append(d.events, events...)
	return nil
}
