package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Cator197/checkauto-saas/internal/cache"
	"github.com/Cator197/checkauto-saas/internal/client"
	"github.com/Cator197/checkauto-saas/internal/model"
	"github.com/Cator197/checkauto-saas/internal/repository"
	"github.com/Cator197/checkauto-saas/internal/service"
)

type drainerStub struct {
	result  *service.DrainResult
	running bool
}

func (d *drainerStub) Drain(ctx context.Context) *service.DrainResult { return d.result }
func (d *drainerStub) Running() bool                                  { return d.running }

type onlineStub struct{ online bool }

func (s *onlineStub) Online(ctx context.Context) bool { return s.online }

func newHandlerFixture(t *testing.T, drainer Drainer) (*SyncHandler, *repository.Store) {
	t.Helper()

	store, err := repository.Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	t.Cleanup(backend.Close)

	api := client.New(backend.URL, time.Second, client.NewMemoryTokenStore("", ""))
	catalog := service.NewStageCatalog(cache.NewMemoryCache(), api, time.Hour)
	reconciler := service.NewReconciler(store.Vehicles(), store.Production(), catalog)
	actions := service.NewWorkOrderService(store.SyncQueue(), store.Production(), store.CheckIns())

	h := NewSyncHandler(drainer, &onlineStub{online: true}, store.SyncQueue(), store.CheckIns(), reconciler, actions)
	return h, store
}

func TestStatusReportsQueueDepth(t *testing.T) {
	h, store := newHandlerFixture(t, &drainerStub{})

	for _, item := range []model.SyncItem{
		{Type: model.TypePatchOS, TargetID: "OS-1"},
		{Type: model.TypePostFotoOS, TargetID: "OS-1"},
	} {
		if _, err := store.SyncQueue().Enqueue(context.Background(), item); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}

	var body struct {
		Data SyncStatus `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Data.QueueDepth != 2 {
		t.Errorf("queue depth = %d, want 2", body.Data.QueueDepth)
	}
	if body.Data.PendingPhotos != 1 {
		t.Errorf("pending photos = %d, want 1", body.Data.PendingPhotos)
	}
	if !body.Data.Online {
		t.Error("status should report online")
	}
}

func TestDrainConflictWhenAlreadyRunning(t *testing.T) {
	h, _ := newHandlerFixture(t, &drainerStub{
		result: &service.DrainResult{Status: service.DrainAlreadyRunning},
	})

	rec := httptest.NewRecorder()
	h.Drain(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/drain", nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("status code = %d, want 409", rec.Code)
	}
}

func TestDrainOfflineIsServiceUnavailable(t *testing.T) {
	h, _ := newHandlerFixture(t, &drainerStub{
		result: &service.DrainResult{Status: service.DrainOffline},
	})

	rec := httptest.NewRecorder()
	h.Drain(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/drain", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", rec.Code)
	}
}

func TestDrainSuccessReturnsResult(t *testing.T) {
	h, _ := newHandlerFixture(t, &drainerStub{
		result: &service.DrainResult{Status: service.DrainSuccess, Processed: 3},
	})

	rec := httptest.NewRecorder()
	h.Drain(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/drain", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"processed":3`) {
		t.Errorf("body = %s, want processed count", rec.Body.String())
	}
}

func TestQueueSnapshotElidesPayload(t *testing.T) {
	h, store := newHandlerFixture(t, &drainerStub{})

	if _, err := store.SyncQueue().Enqueue(context.Background(), model.SyncItem{
		Type:     model.TypePostFotoOS,
		TargetID: "OS-1",
		Payload:  map[string]interface{}{"arquivo": "data:image/jpeg;base64,AAAA"},
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Queue(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/queue", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "base64,AAAA") {
		t.Error("queue snapshot leaked the photo payload")
	}
}
