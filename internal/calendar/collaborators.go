package calendar

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/AhmadHamada1/cal.com/internal/provider"
)

// Credential is an authenticated integration instance capable of issuing
// provider API calls.
type Credential struct {
	ID           int64
	ProviderType string
	Token        *oauth2.Token
}

// CredentialResolver resolves a credential id to a usable credential.
// Returns (nil, nil) when no credential exists for the id.
type CredentialResolver interface {
	GetCredentialForCalendarCache(ctx context.Context, credentialID int64) (*Credential, error)
}

// ClientFactory builds a provider client for a resolved credential.
type ClientFactory interface {
	ClientFor(ctx context.Context, cred *Credential) (provider.Client, error)
}

// AppInfo identifies the calendar app a downstream sync is keyed by.
type AppInfo struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// DownstreamSyncer forwards changed events to the downstream event-sync
// pipeline. External collaborator; failures after a successful primary
// sync are logged, not escalated.
type DownstreamSyncer interface {
	SyncDownstream(ctx context.Context, events []provider.Event, app AppInfo) error
}
