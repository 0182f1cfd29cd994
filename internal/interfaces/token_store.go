package interfaces

import "github.com/ternarybob/tessera/internal/models"

// TokenStore persists OAuth credential records across restarts.
// Records are keyed by service name ("jira", "telegram", ...).
type TokenStore interface {
	// Save writes the record for a service, replacing any existing one.
	Save(service string, record *models.CredentialRecord) error

	// Load returns the record for a service, or (nil, nil) when the
	// service has no stored credentials.
	Load(service string) (*models.CredentialRecord, error)

	// Delete removes the record for a service. Deleting an absent
	// record is not an error.
	Delete(service string) error
}
