package tokens

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

// Store keeps OAuth credentials for all services in a single JSON
// file, read and written wholesale. A mutex serializes access within
// the process; concurrent processes are last-writer-wins.
type Store struct {
	path   string
	mu     sync.Mutex
	logger arbor.ILogger
}

// NewStore creates a file-backed token store at the given path.
func NewStore(path string, logger arbor.ILogger) (interfaces.TokenStore, error) {
	if path == "" {
		return nil, fmt.Errorf("token store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create token store directory: %w", err)
	}
	return &Store{path: path, logger: logger}, nil
}

// Save writes the record for a service, replacing any existing one.
func (s *Store) Save(service string, record *models.CredentialRecord) error {
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if record == nil {
		return fmt.Errorf("credential record is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	all[service] = record

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	s.logger.Debug().Str("service", service).Str("path", s.path).Msg("Credentials saved")
	return nil
}

// Load returns the record for a service, or (nil, nil) when the
// service has no stored credentials.
func (s *Store) Load(service string) (*models.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return all[service], nil
}

// Delete removes the record for a service.
func (s *Store) Delete(service string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	if _, ok := all[service]; !ok {
		return nil
	}
	delete(all, service)

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	s.logger.Debug().Str("service", service).Msg("Credentials deleted")
	return nil
}

// readAll loads the whole token document. A missing file is an empty
// store, not an error.
func (s *Store) readAll() (map[string]*models.CredentialRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*models.CredentialRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	all := map[string]*models.CredentialRecord{}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return all, nil
}
