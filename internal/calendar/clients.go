package calendar

import (
	"context"
	"fmt"

	"github.com/AhmadHamada1/cal.com/internal/provider"
	"github.com/AhmadHamada1/cal.com/internal/storage/models"
)

// ProviderClientFactory builds provider clients keyed by provider type.
type ProviderClientFactory struct {
	google *provider.GoogleClientFactory
}

// NewProviderClientFactory creates the factory for all supported
// providers.
func NewProviderClientFactory(google *provider.GoogleClientFactory) *ProviderClientFactory {
	return &ProviderClientFactory{google: google}
}

// ClientFor implements ClientFactory.
func (f *ProviderClientFactory) ClientFor(ctx context.Context, cred *Credential) (provider.Client, error) {
	switch cred.ProviderType {
	case models.ProviderGoogle:
		return f.google.ClientForToken(ctx, cred.Token)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cred.ProviderType)
	}
}

var _ ClientFactory = (*ProviderClientFactory)(nil)
