package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
)

// CredentialRecord is one stored provider credential.
type CredentialRecord struct {
	ID           int64
	ProviderType string
	Token        *oauth2.Token
}

// CredentialRepository provides data access for provider credentials.
type CredentialRepository struct {
	BaseRepository
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// GetByID retrieves a credential by id. Returns (nil, nil) when absent.
func (r *CredentialRepository) GetByID(ctx context.Context, id int64) (*CredentialRecord, error) {
	var providerType string
	var tokenJSON []byte

	err := r.DB().QueryRowContext(ctx,
		"SELECT provider_type, token FROM credentials WHERE id = ?", id,
	).Scan(&providerType, &tokenJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parsing credential token: %w", err)
	}

	return &CredentialRecord{ID: id, ProviderType: providerType, Token: &token}, nil
}

// Save stores a credential, serializing the token as JSON. A zero ID
// inserts; otherwise the existing row is replaced.
func (r *CredentialRepository) Save(ctx context.Context, cred *CredentialRecord) error {
	tokenJSON, err := json.Marshal(cred.Token)
	if err != nil {
		return fmt.Errorf("serializing credential token: %w", err)
	}

	now := r.Now()
	if cred.ID == 0 {
		result, err := r.DB().ExecContext(ctx, `
			INSERT INTO credentials (provider_type, token, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, cred.ProviderType, tokenJSON, now, now)
		if err != nil {
			return fmt.Errorf("inserting credential: %w", err)
		}
		cred.ID, _ = result.LastInsertId()
		return nil
	}

	_, err = r.DB().ExecContext(ctx, `
		INSERT OR REPLACE INTO credentials (id, provider_type, token, updated_at)
		VALUES (?, ?, ?, ?)
	`, cred.ID, cred.ProviderType, tokenJSON, now)
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}
