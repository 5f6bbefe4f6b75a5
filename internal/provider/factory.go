package provider

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// OAuthApp carries the OAuth client an integration is registered under.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
}

// GoogleClientFactory builds Google Calendar clients for resolved
// credentials. The oauth2 config handles token refresh transparently.
type GoogleClientFactory struct {
	oauth *oauth2.Config
	watch WatchConfig
}

// NewGoogleClientFactory creates a client factory for the Google Calendar
// provider.
func NewGoogleClientFactory(app OAuthApp, watch WatchConfig) *GoogleClientFactory {
	return &GoogleClientFactory{
		oauth: &oauth2.Config{
			ClientID:     app.ClientID,
			ClientSecret: app.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarReadonlyScope, calendar.CalendarEventsReadonlyScope},
		},
		watch: watch,
	}
}

// ClientForToken builds a client from a stored OAuth token.
func (f *GoogleClientFactory) ClientForToken(ctx context.Context, token *oauth2.Token) (*GoogleClient, error) {
	if token == nil {
		return nil, fmt.Errorf("credential has no token")
	}
	return NewGoogleClient(ctx, f.oauth.TokenSource(ctx, token), f.watch)
}
