package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Cator197/checkauto-saas/internal/model"
	"github.com/Cator197/checkauto-saas/internal/repository"
	"github.com/Cator197/checkauto-saas/pkg/dataurl"
	"github.com/Cator197/checkauto-saas/pkg/uid"
)

// WorkOrderService records user actions while possibly offline. Every
// mutation writes the production overlay and enqueues the corresponding
// remote operation; a later drain replays the queue.
type WorkOrderService struct {
	queue      repository.SyncQueueRepository
	production repository.ProductionRepository
	checkins   repository.CheckInRepository
}

// NewWorkOrderService creates the write-side service.
func NewWorkOrderService(
	queue repository.SyncQueueRepository,
	production repository.ProductionRepository,
	checkins repository.CheckInRepository,
) *WorkOrderService {
	return &WorkOrderService{queue: queue, production: production, checkins: checkins}
}

// AddOfflinePhoto stores a captured photo in the overlay and queues its
// upload. The photo data must be an inline-encoded image.
func (s *WorkOrderService) AddOfflinePhoto(ctx context.Context, osID string, photo model.OfflinePhoto) (*model.ProductionEntry, error) {
	if strings.TrimSpace(photo.Data) == "" {
		return nil, fmt.Errorf("photo for %s has no image data", osID)
	}
	if _, err := dataurl.Decode(photo.Data); err != nil {
		return nil, fmt.Errorf("photo for %s is not a usable image: %w", osID, err)
	}
	if photo.ID == "" {
		photo.ID = uid.QueueID("foto")
	}

	payload := map[string]interface{}{
		"foto_id": photo.ID,
		"arquivo": photo.Data,
	}
	if photo.Name != "" {
		payload["nome"] = photo.Name
	}
	if photo.StageID != nil {
		payload["etapa"] = *photo.StageID
	}
	if photo.ConfigID != nil {
		payload["config_foto"] = *photo.ConfigID
	}

	item, err := s.queue.Enqueue(ctx, model.SyncItem{
		Type:     model.TypePostFotoOS,
		TargetID: osID,
		Payload:  payload,
	})
	if err != nil {
		return nil, err
	}

	return s.production.Upsert(ctx, osID, func(entry *model.ProductionEntry) {
		entry.OfflinePhotos = append(entry.OfflinePhotos, photo)
		if photo.ConfigID != nil {
			entry.OfflineConfigsDone = appendUnique(entry.OfflineConfigsDone, *photo.ConfigID)
		}
		entry.QueuedOperationIDs = append(entry.QueuedOperationIDs, item.ID)
	})
}

// SaveObservation stores the observation text for the work order's
// current stage and queues the upsert. A queued observation for the same
// work order is replaced, not duplicated.
func (s *WorkOrderService) SaveObservation(ctx context.Context, osID string, stageID int64, text string) (*model.ProductionEntry, error) {
	var replacedIDs []string
	existing, err := s.queue.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, it := range existing {
		if it.Type == model.TypeUpsertObservacao && it.TargetID == osID {
			replacedIDs = append(replacedIDs, it.ID)
		}
	}

	item, err := s.queue.Enqueue(ctx, model.SyncItem{
		Type:     model.TypeUpsertObservacao,
		TargetID: osID,
		Payload: map[string]interface{}{
			"etapa": stageID,
			"texto": text,
		},
	})
	if err != nil {
		return nil, err
	}

	return s.production.Upsert(ctx, osID, func(entry *model.ProductionEntry) {
		entry.ObservationText = text
		for _, old := range replacedIDs {
			entry.RemoveQueuedOperation(old)
		}
		entry.QueuedOperationIDs = append(entry.QueuedOperationIDs, item.ID)
	})
}

// RequestAdvance queues a stage-advance request. A second request while
// one is already pending is a no-op returning the current entry.
func (s *WorkOrderService) RequestAdvance(ctx context.Context, osID string, originStage *int64, observation string) (*model.ProductionEntry, error) {
	entry, err := s.production.Get(ctx, osID)
	if err != nil {
		return nil, err
	}
	if entry != nil && entry.AdvanceRequested {
		log.Printf("[WorkOrderService] Advance already pending for %s, ignoring", osID)
		return entry, nil
	}

	payload := map[string]interface{}{}
	if originStage != nil {
		payload["etapa_origem"] = *originStage
	} else if entry != nil && entry.CurrentStage.ID != nil {
		payload["etapa_origem"] = *entry.CurrentStage.ID
	}
	if observation != "" {
		payload["observacao"] = observation
	}

	item, err := s.queue.Enqueue(ctx, model.SyncItem{
		Type:     model.TypeAvancarEtapa,
		TargetID: osID,
		Payload:  payload,
	})
	if err != nil {
		return nil, err
	}

	return s.production.Upsert(ctx, osID, func(entry *model.ProductionEntry) {
		entry.AdvanceRequested = true
		entry.QueuedOperationIDs = append(entry.QueuedOperationIDs, item.ID)
	})
}

// PatchWorkOrder queues a partial update of the work-order record.
func (s *WorkOrderService) PatchWorkOrder(ctx context.Context, osID string, fields map[string]interface{}) (*model.ProductionEntry, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("patch for %s has no fields", osID)
	}

	item, err := s.queue.Enqueue(ctx, model.SyncItem{
		Type:     model.TypePatchOS,
		TargetID: osID,
		Payload:  fields,
	})
	if err != nil {
		return nil, err
	}

	return s.production.Upsert(ctx, osID, func(entry *model.ProductionEntry) {
		entry.QueuedOperationIDs = append(entry.QueuedOperationIDs, item.ID)
	})
}

// SubmitCheckIn stores a full offline check-in and queues its bulk
// submission. The returned record carries the assigned local id.
func (s *WorkOrderService) SubmitCheckIn(ctx context.Context, checkIn *model.PendingCheckIn) (*model.PendingCheckIn, error) {
	saved, err := s.checkins.Save(ctx, checkIn)
	if err != nil {
		return nil, err
	}

	if _, err := s.queue.Enqueue(ctx, model.SyncItem{
		Type:     model.TypeSyncOS,
		TargetID: saved.LocalID,
	}); err != nil {
		return nil, fmt.Errorf("check-in %s saved but not queued: %w", saved.LocalID, err)
	}

	return saved, nil
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
