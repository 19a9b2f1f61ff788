package service

import (
	"context"
	"fmt"

	"github.com/Cator197/checkauto-saas/internal/client"
	"github.com/Cator197/checkauto-saas/internal/model"
	"github.com/Cator197/checkauto-saas/pkg/dataurl"
)

// dispatch performs the remote call for one queue item. It builds the
// type-specific request and returns the error exactly as the failure
// bookkeeping should record it.
func (e *SyncEngine) dispatch(ctx context.Context, item model.SyncItem) error {
	switch item.Type {
	case model.TypePatchOS:
		return e.client.PatchOS(ctx, item.TargetID, item.Payload)

	case model.TypePostFotoOS:
		return e.dispatchPhoto(ctx, item)

	case model.TypeUpsertObservacao:
		return e.dispatchObservation(ctx, item)

	case model.TypeAvancarEtapa:
		return e.dispatchAdvance(ctx, item)

	case model.TypeSyncOS:
		return e.dispatchCheckIn(ctx, item)
	}

	return fmt.Errorf("unknown queue item type %q", item.Type)
}

func (e *SyncEngine) dispatchPhoto(ctx context.Context, item model.SyncItem) error {
	raw, _ := item.Payload["arquivo"].(string)
	img, err := dataurl.Decode(raw)
	if err != nil {
		return fmt.Errorf("failed to decode photo data: %w", err)
	}

	name, _ := item.Payload["nome"].(string)
	if name == "" {
		name = "foto." + img.Extension
	}

	up := client.PhotoUpload{
		OSID:     item.TargetID,
		FileName: name,
		MimeType: img.MimeType,
		Data:     img.Bytes,
	}
	if id, err := model.CoerceStageID(item.Payload["etapa"]); err == nil {
		up.StageID = &id
	}
	if id, err := model.CoerceStageID(item.Payload["config_foto"]); err == nil {
		up.ConfigID = &id
	}

	return e.client.UploadPhoto(ctx, up)
}

func (e *SyncEngine) dispatchObservation(ctx context.Context, item model.SyncItem) error {
	stageID, err := model.CoerceStageID(item.Payload["etapa"])
	if err != nil {
		return fmt.Errorf("observation has no usable stage: %w", err)
	}
	text, _ := item.Payload["texto"].(string)

	return e.client.UpsertObservation(ctx, item.TargetID, stageID, text)
}

func (e *SyncEngine) dispatchAdvance(ctx context.Context, item model.SyncItem) error {
	origin, err := e.resolveOriginStage(ctx, item)
	if err != nil {
		return err
	}
	observation, _ := item.Payload["observacao"].(string)

	newStage, err := e.client.AdvanceStage(ctx, item.TargetID, origin, observation)
	if err != nil {
		return err
	}

	if newStage == nil {
		// Empty-body success. Fetch the authoritative stage; if even that
		// fails the advance still happened, so fall back to the catalog.
		if wo, err := e.client.FetchOS(ctx, item.TargetID); err == nil {
			newStage = &wo.CurrentStage
		} else if next, err := e.catalog.NextStage(ctx, origin); err == nil && next != nil {
			newStage = &model.StageRef{ID: &next.ID, Name: next.Name}
		}
	}

	e.recordAdvance(ctx, item, newStage)
	return nil
}

// resolveOriginStage finds the stage the advance departs from. Older
// queue revisions enqueued the item without etapa_origem; those are
// repaired in place so a later retry does not resolve it again.
func (e *SyncEngine) resolveOriginStage(ctx context.Context, item model.SyncItem) (int64, error) {
	if id, err := model.CoerceStageID(item.Payload["etapa_origem"]); err == nil {
		return id, nil
	}

	if entry, err := e.production.Get(ctx, item.TargetID); err == nil && entry != nil && entry.CurrentStage.ID != nil {
		e.rewriteOriginStage(ctx, item, *entry.CurrentStage.ID)
		return *entry.CurrentStage.ID, nil
	}

	if id, ok := e.catalog.StageHint(ctx, item.TargetID); ok {
		e.rewriteOriginStage(ctx, item, id)
		return id, nil
	}

	wo, err := e.client.FetchOS(ctx, item.TargetID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve origin stage: %w", err)
	}
	if wo.CurrentStage.ID == nil {
		return 0, fmt.Errorf("work order %s has no numeric current stage", item.TargetID)
	}

	e.rewriteOriginStage(ctx, item, *wo.CurrentStage.ID)
	return *wo.CurrentStage.ID, nil
}

func (e *SyncEngine) rewriteOriginStage(ctx context.Context, item model.SyncItem, stageID int64) {
	payload := make(map[string]interface{}, len(item.Payload)+1)
	for k, v := range item.Payload {
		payload[k] = v
	}
	payload["etapa_origem"] = stageID

	if _, err := e.queue.Update(ctx, item.ID, model.SyncItemPatch{Payload: payload}); err != nil {
		e.logf("could not persist resolved origin stage for %s: %v", item.ID, err)
	}
}

// recordAdvance applies a confirmed stage advance to local state: the
// production entry gets the new stage, the stage hint follows it, and
// any duplicate advance requests for the same work order are purged.
func (e *SyncEngine) recordAdvance(ctx context.Context, item model.SyncItem, newStage *model.StageRef) {
	_, err := e.production.Upsert(ctx, item.TargetID, func(entry *model.ProductionEntry) {
		entry.AdvanceRequested = false
		if newStage != nil {
			entry.CurrentStage = *newStage
		}
	})
	if err != nil {
		e.logf("could not record advanced stage for %s: %v", item.TargetID, err)
	}

	if newStage != nil && newStage.ID != nil {
		e.catalog.RememberStage(ctx, item.TargetID, *newStage.ID)
	}

	var purgedIDs []string
	purged, err := e.queue.RemoveWhere(ctx, func(other model.SyncItem) bool {
		duplicate := other.Type == model.TypeAvancarEtapa &&
			other.TargetID == item.TargetID &&
			other.ID != item.ID
		if duplicate {
			purgedIDs = append(purgedIDs, other.ID)
		}
		return duplicate
	})
	if err != nil {
		e.logf("could not purge duplicate advance requests for %s: %v", item.TargetID, err)
		return
	}
	if purged > 0 {
		e.logf("purged %d duplicate advance request(s) for %s", purged, item.TargetID)
		for _, opID := range purgedIDs {
			if e.skip != nil {
				e.skip[opID] = true
			}
			if err := e.production.RemoveQueuedOperation(ctx, item.TargetID, opID); err != nil {
				e.logf("could not drop purged operation %s from overlay: %v", opID, err)
			}
		}
	}
}

func (e *SyncEngine) dispatchCheckIn(ctx context.Context, item model.SyncItem) error {
	checkIn, err := e.checkins.Get(ctx, item.TargetID)
	if err != nil {
		return fmt.Errorf("failed to load pending check-in %s: %w", item.TargetID, err)
	}
	if checkIn == nil {
		// The record is gone, most likely confirmed by an earlier drain
		// that died before removing the queue item. Nothing to send.
		return nil
	}

	if err := e.client.SubmitCheckIns(ctx, []map[string]interface{}{checkIn.SubmitPayload()}); err != nil {
		return err
	}

	if err := e.checkins.Remove(ctx, item.TargetID); err != nil {
		return fmt.Errorf("check-in %s submitted but not removed locally: %w", item.TargetID, err)
	}
	return nil
}
