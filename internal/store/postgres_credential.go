package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eventforge/batchjobs/internal/vault"
)

// PostgresCredentialStore implements vault.CredentialStore.
type PostgresCredentialStore struct {
	db *sql.DB
}

func NewPostgresCredentialStore(db *sql.DB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

func (s *PostgresCredentialStore) GetProviderCredential(ctx context.Context, tenantID, providerName string) (*vault.ProviderCredential, error) {
	var c vault.ProviderCredential
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, provider_name, COALESCE(encrypted_secret, ''), COALESCE(parameters_json, '')
		FROM provider_credentials
		WHERE tenant_id = $1 AND provider_name = $2`,
		tenantID, providerName,
	).Scan(&c.TenantID, &c.ProviderName, &c.EncryptedSecret, &c.ParametersJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no credential for tenant %s provider %s", tenantID, providerName)
	}
	if err != nil {
		return nil, fmt.Errorf("get provider credential: %w", err)
	}
	return &c, nil
}
