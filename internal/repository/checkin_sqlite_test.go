package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/Cator197/checkauto-saas/internal/model"
)

func TestSaveCheckInAssignsLocalID(t *testing.T) {
	ctx := context.Background()
	checkins := newTestStore(t).CheckIns()

	saved, err := checkins.Save(ctx, &model.PendingCheckIn{
		Type:     model.CheckInCompleto,
		Customer: model.Customer{Name: "Ana"},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasPrefix(saved.LocalID, "checkin-") {
		t.Errorf("local id = %q, want checkin- prefix", saved.LocalID)
	}
	if saved.CreatedAt.IsZero() {
		t.Error("CreatedAt was not stamped")
	}
}

func TestSaveCheckInRejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	checkins := newTestStore(t).CheckIns()

	if _, err := checkins.Save(ctx, &model.PendingCheckIn{Type: "parcial"}); err == nil {
		t.Error("Save accepted unknown check-in type")
	}
}

func TestCheckInFailureBookkeeping(t *testing.T) {
	ctx := context.Background()
	checkins := newTestStore(t).CheckIns()

	saved, err := checkins.Save(ctx, &model.PendingCheckIn{Type: model.CheckInSoFotos})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := checkins.RecordFailure(ctx, saved.LocalID, "HTTP 500"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	got, err := checkins.Get(ctx, saved.LocalID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Tries != 1 || got.LastError != "HTTP 500" {
		t.Errorf("tries=%d lastError=%q, want 1/HTTP 500", got.Tries, got.LastError)
	}
}

func TestRemoveCheckIn(t *testing.T) {
	ctx := context.Background()
	checkins := newTestStore(t).CheckIns()

	saved, err := checkins.Save(ctx, &model.PendingCheckIn{Type: model.CheckInCompleto})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := checkins.Remove(ctx, saved.LocalID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	got, err := checkins.Get(ctx, saved.LocalID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Error("check-in still present after Remove")
	}
}

func TestVehicleSnapshotReplaceAll(t *testing.T) {
	ctx := context.Background()
	vehicles := newTestStore(t).Vehicles()

	stage := int64(5)
	if err := vehicles.ReplaceAll(ctx, []model.VehicleInProduction{
		{OSID: "OS-1", Plate: "ABC1D23", Stage: model.StageRef{ID: &stage, Name: "Funilaria"}},
		{OSID: "OS-2", Plate: "DEF4G56"},
	}); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	if err := vehicles.ReplaceAll(ctx, []model.VehicleInProduction{
		{OSID: "OS-3", Plate: "GHI7J89"},
	}); err != nil {
		t.Fatalf("second ReplaceAll failed: %v", err)
	}

	list, err := vehicles.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(list) != 1 || list[0].OSID != "OS-3" {
		t.Errorf("snapshot = %v, want only OS-3", list)
	}
}
