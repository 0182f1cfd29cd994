package interfaces

import (
	"context"

	"github.com/ternarybob/tessera/internal/models"
)

// TicketStats aggregates submission history counters.
type TicketStats struct {
	Processed int `json:"messages_processed"`
	Created   int `json:"tickets_created"`
	Failed    int `json:"errors"`
}

// TicketStorage persists ticket submission history.
type TicketStorage interface {
	// Store saves a submission record.
	Store(ctx context.Context, record *models.TicketRecord) error

	// Get returns a record by ID.
	Get(ctx context.Context, id string) (*models.TicketRecord, error)

	// List returns the most recent records, newest first.
	List(ctx context.Context, limit int) ([]*models.TicketRecord, error)

	// Stats returns aggregate counters over all records.
	Stats(ctx context.Context) (*TicketStats, error)
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	TicketStorage() TicketStorage
	Close() error
}
