package model

import "testing"

func int64p(v int64) *int64 { return &v }

func TestPendingOverlayConditions(t *testing.T) {
	entry := NewProductionEntry("OS-1")
	if entry.HasPendingOverlay() {
		t.Fatal("fresh entry should have no pending overlay")
	}

	entry.AdvanceRequested = true
	if !entry.HasPendingOverlay() {
		t.Error("advance request should flag the entry pending")
	}
	entry.AdvanceRequested = false

	entry.OfflinePhotos = []OfflinePhoto{{ID: "foto-1", Data: "x"}}
	if !entry.HasPendingOverlay() {
		t.Error("offline photo should flag the entry pending")
	}
	entry.OfflinePhotos = nil

	entry.QueuedOperationIDs = []string{"op-1"}
	if !entry.HasPendingOverlay() {
		t.Error("queued operation should flag the entry pending")
	}
}

func TestRecomputeDerivesPendingSync(t *testing.T) {
	entry := NewProductionEntry("OS-1")
	entry.QueuedOperationIDs = []string{"op-1"}
	entry.Recompute()
	if !entry.PendingSync {
		t.Error("PendingSync should be true with a queued operation")
	}

	entry.QueuedOperationIDs = nil
	entry.Recompute()
	if entry.PendingSync {
		t.Error("PendingSync should clear once nothing is pending")
	}
}

func TestRemoveQueuedOperationKeepsOthers(t *testing.T) {
	entry := NewProductionEntry("OS-1")
	entry.QueuedOperationIDs = []string{"op-1", "op-2", "op-3"}

	entry.RemoveQueuedOperation("op-2")

	if len(entry.QueuedOperationIDs) != 2 {
		t.Fatalf("got %d operations, want 2", len(entry.QueuedOperationIDs))
	}
	if entry.QueuedOperationIDs[0] != "op-1" || entry.QueuedOperationIDs[1] != "op-3" {
		t.Errorf("remaining = %v, want [op-1 op-3]", entry.QueuedOperationIDs)
	}
}

func TestRemoveOfflinePhotoPromotesConfig(t *testing.T) {
	entry := NewProductionEntry("OS-1")
	entry.OfflinePhotos = []OfflinePhoto{
		{ID: "foto-1", Data: "x", ConfigID: int64p(7)},
		{ID: "foto-2", Data: "y"},
	}
	entry.OfflineConfigsDone = []int64{7}

	entry.RemoveOfflinePhoto("foto-1")

	if len(entry.OfflinePhotos) != 1 || entry.OfflinePhotos[0].ID != "foto-2" {
		t.Errorf("remaining photos = %v, want only foto-2", entry.OfflinePhotos)
	}
	if len(entry.OfflineConfigsDone) != 0 {
		t.Errorf("offline configs = %v, want empty", entry.OfflineConfigsDone)
	}
	if len(entry.ServerConfigsDone) != 1 || entry.ServerConfigsDone[0] != 7 {
		t.Errorf("server configs = %v, want [7]", entry.ServerConfigsDone)
	}
}

func TestRemoveOfflinePhotoDoesNotDuplicateServerConfig(t *testing.T) {
	entry := NewProductionEntry("OS-1")
	entry.ServerConfigsDone = []int64{7}
	entry.OfflinePhotos = []OfflinePhoto{{ID: "foto-1", Data: "x", ConfigID: int64p(7)}}

	entry.RemoveOfflinePhoto("foto-1")

	if len(entry.ServerConfigsDone) != 1 {
		t.Errorf("server configs = %v, want single 7", entry.ServerConfigsDone)
	}
}
