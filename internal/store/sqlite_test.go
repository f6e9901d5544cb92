package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/custody/internal/db"
	"github.com/erazemk/custody/internal/model"
)

func TestSQLiteBackend(t *testing.T) {
	runBackendContract(t, NewSQLite(db.NewTestDB(t)))
}

func TestReplaceAllStoresEmptyOptionalsAsNull(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	snap := &model.Snapshot{
		Workers: []model.Worker{{ID: "w1", Name: "Ahmed", Status: model.WorkerActive}},
		Items:   []model.Item{{SerialNumber: "1", Status: model.StatusAvailable}},
	}
	if err := ReplaceAll(ctx, database, snap); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	var nulls int
	err := database.QueryRow(
		`SELECT COUNT(*) FROM items WHERE worker_id IS NULL AND meter_number IS NULL AND notes IS NULL`,
	).Scan(&nulls)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if nulls != 1 {
		t.Errorf("expected optional item fields stored as NULL")
	}

	err = database.QueryRow(`SELECT COUNT(*) FROM workers WHERE password IS NULL`).Scan(&nulls)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if nulls != 1 {
		t.Errorf("expected empty password stored as NULL")
	}
}

func TestReplaceAllDefaultsWorkerStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	snap := &model.Snapshot{Workers: []model.Worker{{ID: "w1", Name: "Ahmed"}}}
	if err := ReplaceAll(ctx, database, snap); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	got, err := FetchAll(ctx, database)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if got.Workers[0].Status != model.WorkerActive {
		t.Errorf("expected default status active, got %q", got.Workers[0].Status)
	}
}

func TestReplaceAllRejectsUnknownStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	snap := &model.Snapshot{Items: []model.Item{{SerialNumber: "1", Status: "removed"}}}
	if err := ReplaceAll(ctx, database, snap); err == nil {
		t.Fatal("expected check constraint failure")
	}
}

func TestFetchAllClosedDatabase(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	database.Close()

	_, err = FetchAll(context.Background(), database)
	if !errors.Is(err, model.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}
