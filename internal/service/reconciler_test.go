package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Cator197/checkauto-saas/internal/cache"
	"github.com/Cator197/checkauto-saas/internal/client"
	"github.com/Cator197/checkauto-saas/internal/model"
	"github.com/Cator197/checkauto-saas/internal/repository"
)

const stagesJSON = `[
	{"id":1,"nome":"Check-in","ordem":1,"is_checkin":true},
	{"id":5,"nome":"Funilaria","ordem":2},
	{"id":6,"nome":"Pintura","ordem":3},
	{"id":9,"nome":"Entrega","ordem":4}
]`

func newReconcilerFixture(t *testing.T) (*Reconciler, *repository.Store) {
	t.Helper()

	store, err := repository.Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/etapas/" {
			w.Write([]byte(stagesJSON))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	api := client.New(srv.URL, 5*time.Second, client.NewMemoryTokenStore("token", ""))
	catalog := NewStageCatalog(cache.NewMemoryCache(), api, time.Hour)

	return NewReconciler(store.Vehicles(), store.Production(), catalog), store
}

func TestVehicleListMergesOverlay(t *testing.T) {
	ctx := context.Background()
	reconciler, store := newReconcilerFixture(t)

	stage := int64(5)
	if err := store.Vehicles().ReplaceAll(ctx, []model.VehicleInProduction{
		{OSID: "OS-1", Plate: "ABC1D23", Stage: model.StageRef{ID: &stage, Name: "Funilaria"}},
		{OSID: "OS-2", Plate: "DEF4G56", Stage: model.StageRef{ID: &stage, Name: "Funilaria"}},
	}); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	if _, err := store.Production().Upsert(ctx, "OS-1", func(e *model.ProductionEntry) {
		e.QueuedOperationIDs = []string{"op-1", "op-2"}
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	items, err := reconciler.VehicleList(ctx)
	if err != nil {
		t.Fatalf("VehicleList failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	byOS := map[string]model.VehicleListItem{}
	for _, item := range items {
		byOS[item.OSID] = item
	}

	if !byOS["OS-1"].PendingSync || byOS["OS-1"].QueuedOperations != 2 {
		t.Errorf("OS-1 = %+v, want pending with 2 queued operations", byOS["OS-1"])
	}
	if byOS["OS-2"].PendingSync {
		t.Error("OS-2 has no overlay and must not be pending")
	}
	if byOS["OS-1"].NextStage == nil || byOS["OS-1"].NextStage.ID != 6 {
		t.Errorf("OS-1 next stage = %+v, want Pintura (6)", byOS["OS-1"].NextStage)
	}
}

func TestVehicleListIncludesLocalOnlyEntries(t *testing.T) {
	ctx := context.Background()
	reconciler, store := newReconcilerFixture(t)

	if _, err := store.Production().Upsert(ctx, "OS-9", func(e *model.ProductionEntry) {
		e.Plate = "XYZ0A00"
		e.AdvanceRequested = true
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	items, err := reconciler.VehicleList(ctx)
	if err != nil {
		t.Fatalf("VehicleList failed: %v", err)
	}
	if len(items) != 1 || items[0].OSID != "OS-9" || !items[0].PendingSync {
		t.Errorf("items = %+v, want the local-only pending entry", items)
	}
}

func TestMergeWithPendingFinalStage(t *testing.T) {
	ctx := context.Background()
	reconciler, store := newReconcilerFixture(t)

	stage := int64(9)
	if err := store.Vehicles().ReplaceAll(ctx, []model.VehicleInProduction{
		{OSID: "OS-1", Stage: model.StageRef{ID: &stage, Name: "Entrega"}},
	}); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	item, err := reconciler.MergeWithPending(ctx, "OS-1")
	if err != nil {
		t.Fatalf("MergeWithPending failed: %v", err)
	}
	if item == nil {
		t.Fatal("MergeWithPending returned nil for known vehicle")
	}
	if !item.FinalStage {
		t.Error("stage 9 is the last catalog stage, item should be final")
	}
	if item.NextStage != nil {
		t.Errorf("next stage = %+v, want nil at the final stage", item.NextStage)
	}

	missing, err := reconciler.MergeWithPending(ctx, "OS-404")
	if err != nil {
		t.Fatalf("MergeWithPending failed: %v", err)
	}
	if missing != nil {
		t.Error("unknown work order should merge to nil")
	}
}

func TestMergeOverlayStageWinsOverSnapshot(t *testing.T) {
	ctx := context.Background()
	reconciler, store := newReconcilerFixture(t)

	snapshotStage := int64(5)
	if err := store.Vehicles().ReplaceAll(ctx, []model.VehicleInProduction{
		{OSID: "OS-1", Stage: model.StageRef{ID: &snapshotStage, Name: "Funilaria"}},
	}); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	// A confirmed advance moved the local mirror past the stale snapshot.
	advanced := int64(6)
	if _, err := store.Production().Upsert(ctx, "OS-1", func(e *model.ProductionEntry) {
		e.CurrentStage = model.StageRef{ID: &advanced, Name: "Pintura"}
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	item, err := reconciler.MergeWithPending(ctx, "OS-1")
	if err != nil {
		t.Fatalf("MergeWithPending failed: %v", err)
	}
	if item.Stage.ID == nil || *item.Stage.ID != 6 {
		t.Errorf("stage = %+v, want the local mirror's 6", item.Stage)
	}
}
