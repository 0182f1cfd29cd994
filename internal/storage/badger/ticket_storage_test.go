package badger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestStorage(t *testing.T) (*TicketStorage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "badger-test")
	if err != nil {
		t.Fatal(err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatal(err)
	}

	db := &BadgerDB{store: store}
	storage := NewTicketStorage(db, arbor.NewLogger()).(*TicketStorage)

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return storage, cleanup
}

func TestTicketRecordRoundTrip(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	record := &models.TicketRecord{
		UserID:   42,
		ChatID:   100,
		Username: "alice",
		Title:    "Login page broken",
		IssueKey: "PROJ-42",
		IssueURL: "https://yourcompany.atlassian.net/browse/PROJ-42",
		Success:  true,
	}
	if err := storage.Store(ctx, record); err != nil {
		t.Fatalf("Failed to store record: %v", err)
	}
	if record.ID == "" {
		t.Fatal("Expected generated record ID")
	}
	if record.CreatedAt.IsZero() {
		t.Fatal("Expected CreatedAt to be set")
	}

	got, err := storage.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if got.IssueKey != "PROJ-42" || got.Username != "alice" {
		t.Fatalf("Unexpected record: %+v", got)
	}
}

func TestTicketListNewestFirst(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		record := &models.TicketRecord{
			Title:     "ticket",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Success:   i%2 == 0,
		}
		if err := storage.Store(ctx, record); err != nil {
			t.Fatalf("Failed to store record %d: %v", i, err)
		}
	}

	records, err := storage.List(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt.After(records[i-1].CreatedAt) {
			t.Fatal("Records not sorted newest first")
		}
	}
}

func TestTicketStats(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	for i := 0; i < 4; i++ {
		record := &models.TicketRecord{Title: "t", Success: i < 3}
		if err := storage.Store(ctx, record); err != nil {
			t.Fatalf("Failed to store record: %v", err)
		}
	}

	stats, err := storage.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to compute stats: %v", err)
	}
	if stats.Processed != 4 || stats.Created != 3 || stats.Failed != 1 {
		t.Fatalf("Unexpected stats: %+v", stats)
	}
}
