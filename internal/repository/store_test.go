package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Cator197/checkauto-saas/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenAppliesAllMigrations(t *testing.T) {
	store := newTestStore(t)

	version, err := store.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != SchemaVersion() {
		t.Errorf("schema version = %d, want %d", version, SchemaVersion())
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.SyncQueue().Enqueue(ctx, model.SyncItem{
		Type:     model.TypePatchOS,
		TargetID: "OS-1",
		Payload:  map[string]interface{}{"etapa_atual": 5},
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.SyncQueue().Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("queue depth after reopen = %d, want 1", count)
	}

	version, err := reopened.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != SchemaVersion() {
		t.Errorf("reopen re-ran migrations: version = %d, want %d", version, SchemaVersion())
	}
}
