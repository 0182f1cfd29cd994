package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// TicketStorage implements the TicketStorage interface for Badger
type TicketStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTicketStorage creates a new TicketStorage instance
func NewTicketStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TicketStorage {
	return &TicketStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TicketStorage) Store(ctx context.Context, record *models.TicketRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to store ticket record: %w", err)
	}

	s.logger.Debug().
		Str("id", record.ID).
		Str("issue_key", record.IssueKey).
		Bool("success", record.Success).
		Msg("Ticket record stored")

	return nil
}

func (s *TicketStorage) Get(ctx context.Context, id string) (*models.TicketRecord, error) {
	var record models.TicketRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("ticket record not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get ticket record: %w", err)
	}
	return &record, nil
}

func (s *TicketStorage) List(ctx context.Context, limit int) ([]*models.TicketRecord, error) {
	var records []models.TicketRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list ticket records: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	result := make([]*models.TicketRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *TicketStorage) Stats(ctx context.Context) (*interfaces.TicketStats, error) {
	var records []models.TicketRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to read ticket records: %w", err)
	}

	stats := &interfaces.TicketStats{Processed: len(records)}
	for _, r := range records {
		if r.Success {
			stats.Created++
		} else {
			stats.Failed++
		}
	}
	return stats, nil
}
