package calendar

import (
	"context"
	"fmt"

	"github.com/AhmadHamada1/cal.com/internal/storage"
)

// StoredCredentialResolver resolves credential ids against the local
// credential store.
type StoredCredentialResolver struct {
	credentials *storage.CredentialRepository
}

// NewStoredCredentialResolver creates a resolver backed by the credential
// repository.
func NewStoredCredentialResolver(credentials *storage.CredentialRepository) *StoredCredentialResolver {
	return &StoredCredentialResolver{credentials: credentials}
}

// GetCredentialForCalendarCache implements CredentialResolver.
func (r *StoredCredentialResolver) GetCredentialForCalendarCache(ctx context.Context, credentialID int64) (*Credential, error) {
	record, err := r.credentials.GetByID(ctx, credentialID)
	if err != nil {
		return nil, fmt.Errorf("resolving credential %d: %w", credentialID, err)
	}
	if record == nil {
		return nil, nil
	}
	return &Credential{
		ID:           record.ID,
		ProviderType: record.ProviderType,
		Token:        record.Token,
	}, nil
}

var _ CredentialResolver = (*StoredCredentialResolver)(nil)
