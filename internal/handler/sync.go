package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Cator197/checkauto-saas/internal/model"
	"github.com/Cator197/checkauto-saas/internal/repository"
	"github.com/Cator197/checkauto-saas/internal/service"
	"github.com/Cator197/checkauto-saas/pkg/apierror"
	"github.com/Cator197/checkauto-saas/pkg/response"
)

// Drainer runs one drain pass and exposes the in-flight flag.
type Drainer interface {
	Drain(ctx context.Context) *service.DrainResult
	Running() bool
}

// SyncHandler serves the loopback sync API the PWA talks to.
type SyncHandler struct {
	engine     Drainer
	online     service.OnlineChecker
	queue      repository.SyncQueueRepository
	checkins   repository.CheckInRepository
	reconciler *service.Reconciler
	actions    *service.WorkOrderService

	mu         sync.Mutex
	lastResult *service.DrainResult
}

// NewSyncHandler creates the sync API handler.
func NewSyncHandler(
	engine Drainer,
	online service.OnlineChecker,
	queue repository.SyncQueueRepository,
	checkins repository.CheckInRepository,
	reconciler *service.Reconciler,
	actions *service.WorkOrderService,
) *SyncHandler {
	return &SyncHandler{
		engine:     engine,
		online:     online,
		queue:      queue,
		checkins:   checkins,
		reconciler: reconciler,
		actions:    actions,
	}
}

// SyncStatus is the aggregate sync state the PWA renders. PendingPhotos
// feeds the home-screen badge separately from the raw queue depth.
type SyncStatus struct {
	Online          bool                 `json:"online"`
	Draining        bool                 `json:"draining"`
	QueueDepth      int                  `json:"queue_depth"`
	PendingPhotos   int                  `json:"pending_photos"`
	PendingCheckIns int                  `json:"pending_checkins"`
	LastDrain       *service.DrainResult `json:"last_drain,omitempty"`
}

// Status handles GET /api/v1/sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	items, err := h.queue.ListAll(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("could not read sync queue"))
		return
	}
	photos := 0
	for _, item := range items {
		if item.Type == model.TypePostFotoOS {
			photos++
		}
	}

	pending, err := h.checkins.ListAll(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("could not read pending check-ins"))
		return
	}

	h.mu.Lock()
	last := h.lastResult
	h.mu.Unlock()

	response.OK(w, SyncStatus{
		Online:          h.online.Online(r.Context()),
		Draining:        h.engine.Running(),
		QueueDepth:      len(items),
		PendingPhotos:   photos,
		PendingCheckIns: len(pending),
		LastDrain:       last,
	})
}

// QueueItemView is the queue snapshot row. Photo payloads are elided to
// their metadata so the snapshot stays small.
type QueueItemView struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	TargetID  string    `json:"target_id"`
	CreatedAt time.Time `json:"criado_em"`
	Tries     int       `json:"tentativas"`
	LastError string    `json:"ultimo_erro,omitempty"`
}

// Queue handles GET /api/v1/sync/queue.
func (h *SyncHandler) Queue(w http.ResponseWriter, r *http.Request) {
	items, err := h.queue.ListAll(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("could not read sync queue"))
		return
	}

	views := make([]QueueItemView, 0, len(items))
	for _, item := range items {
		views = append(views, QueueItemView{
			ID:        item.ID,
			Type:      item.Type,
			TargetID:  item.TargetID,
			CreatedAt: item.CreatedAt,
			Tries:     item.Tries,
			LastError: item.LastError,
		})
	}
	response.OK(w, views)
}

// CheckIns handles GET /api/v1/sync/checkins.
func (h *SyncHandler) CheckIns(w http.ResponseWriter, r *http.Request) {
	checkIns, err := h.checkins.ListAll(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("could not read pending check-ins"))
		return
	}
	response.OK(w, checkIns)
}

// Drain handles POST /api/v1/sync/drain.
func (h *SyncHandler) Drain(w http.ResponseWriter, r *http.Request) {
	result := h.engine.Drain(r.Context())

	h.mu.Lock()
	if result.Status != service.DrainAlreadyRunning {
		h.lastResult = result
	}
	h.mu.Unlock()

	switch result.Status {
	case service.DrainAlreadyRunning:
		response.Error(w, apierror.Conflict("a drain is already running"))
	case service.DrainOffline:
		response.Error(w, apierror.ServiceUnavailable("backend unreachable, nothing drained"))
	case service.DrainFailed:
		response.Error(w, apierror.InternalError("sync queue unreadable"))
	default:
		response.OK(w, result)
	}
}

// Vehicles handles GET /api/v1/vehicles.
func (h *SyncHandler) Vehicles(w http.ResponseWriter, r *http.Request) {
	items, err := h.reconciler.VehicleList(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("could not build vehicle list"))
		return
	}
	response.OK(w, items)
}

// PatchOS handles PATCH /api/v1/os/{os_id}.
func (h *SyncHandler) PatchOS(w http.ResponseWriter, r *http.Request) {
	osID := chi.URLParam(r, "os_id")

	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		response.Error(w, apierror.BadRequest("invalid patch body"))
		return
	}

	entry, err := h.actions.PatchWorkOrder(r.Context(), osID, fields)
	if err != nil {
		response.Error(w, apierror.BadRequest(err.Error()))
		return
	}
	response.OK(w, entry)
}

// AddPhoto handles POST /api/v1/os/{os_id}/fotos.
func (h *SyncHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	osID := chi.URLParam(r, "os_id")

	var photo model.OfflinePhoto
	if err := json.NewDecoder(r.Body).Decode(&photo); err != nil {
		response.Error(w, apierror.BadRequest("invalid photo body"))
		return
	}

	entry, err := h.actions.AddOfflinePhoto(r.Context(), osID, photo)
	if err != nil {
		response.Error(w, apierror.BadRequest(err.Error()))
		return
	}
	response.Created(w, entry)
}

// SaveObservation handles POST /api/v1/os/{os_id}/observacao.
func (h *SyncHandler) SaveObservation(w http.ResponseWriter, r *http.Request) {
	osID := chi.URLParam(r, "os_id")

	var body struct {
		Etapa interface{} `json:"etapa"`
		Texto string      `json:"texto"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, apierror.BadRequest("invalid observation body"))
		return
	}
	stageID, err := model.CoerceStageID(body.Etapa)
	if err != nil {
		response.Error(w, apierror.BadRequest("observation needs a numeric stage"))
		return
	}

	entry, err := h.actions.SaveObservation(r.Context(), osID, stageID, body.Texto)
	if err != nil {
		response.Error(w, apierror.InternalError(err.Error()))
		return
	}
	response.OK(w, entry)
}

// RequestAdvance handles POST /api/v1/os/{os_id}/avancar.
func (h *SyncHandler) RequestAdvance(w http.ResponseWriter, r *http.Request) {
	osID := chi.URLParam(r, "os_id")

	var body struct {
		EtapaOrigem interface{} `json:"etapa_origem"`
		Observacao  string      `json:"observacao"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, apierror.BadRequest("invalid advance body"))
			return
		}
	}

	var origin *int64
	if id, err := model.CoerceStageID(body.EtapaOrigem); err == nil {
		origin = &id
	}

	entry, err := h.actions.RequestAdvance(r.Context(), osID, origin, body.Observacao)
	if err != nil {
		response.Error(w, apierror.InternalError(err.Error()))
		return
	}
	response.OK(w, entry)
}

// SubmitCheckIn handles POST /api/v1/checkins.
func (h *SyncHandler) SubmitCheckIn(w http.ResponseWriter, r *http.Request) {
	var checkIn model.PendingCheckIn
	if err := json.NewDecoder(r.Body).Decode(&checkIn); err != nil {
		response.Error(w, apierror.BadRequest("invalid check-in body"))
		return
	}

	saved, err := h.actions.SubmitCheckIn(r.Context(), &checkIn)
	if err != nil {
		response.Error(w, apierror.BadRequest(err.Error()))
		return
	}
	response.Created(w, saved)
}
