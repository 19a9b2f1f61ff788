package service

import (
	"context"

	"github.com/Cator197/checkauto-saas/internal/model"
	"github.com/Cator197/checkauto-saas/internal/repository"
)

// Reconciler builds the renderable vehicle list: the last server
// snapshot merged with the device's pending overlays, plus next-stage
// information from the catalog. Nothing here is persisted; the merge is
// recomputed from stored state on every read.
type Reconciler struct {
	vehicles   repository.VehicleRepository
	production repository.ProductionRepository
	catalog    *StageCatalog
}

// NewReconciler creates a reconciler over the given stores.
func NewReconciler(vehicles repository.VehicleRepository, production repository.ProductionRepository, catalog *StageCatalog) *Reconciler {
	return &Reconciler{vehicles: vehicles, production: production, catalog: catalog}
}

// VehicleList merges the snapshot with pending local state. Work orders
// that exist only locally (created offline, never fetched) are appended
// after the snapshot rows so nothing pending disappears from view.
func (r *Reconciler) VehicleList(ctx context.Context) ([]model.VehicleListItem, error) {
	snapshot, err := r.vehicles.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := r.production.ListPendingSync(ctx)
	if err != nil {
		return nil, err
	}
	pendingByOS := make(map[string]*model.ProductionEntry, len(pending))
	for i := range pending {
		pendingByOS[pending[i].OSID] = &pending[i]
	}

	items := make([]model.VehicleListItem, 0, len(snapshot)+len(pendingByOS))
	for _, v := range snapshot {
		item := model.VehicleListItem{VehicleInProduction: v}
		if entry, ok := pendingByOS[v.OSID]; ok {
			r.applyOverlay(&item, entry)
			delete(pendingByOS, v.OSID)
		}
		r.annotateStage(ctx, &item)
		items = append(items, item)
	}

	for _, entry := range pendingByOS {
		item := model.VehicleListItem{
			VehicleInProduction: model.VehicleInProduction{
				OSID:  entry.OSID,
				Code:  entry.Code,
				Plate: entry.Plate,
				Model: entry.Model,
				Stage: entry.CurrentStage,
			},
		}
		r.applyOverlay(&item, entry)
		r.annotateStage(ctx, &item)
		items = append(items, item)
	}

	return items, nil
}

// MergeWithPending returns one work order's merged view, or nil when the
// device knows nothing about it.
func (r *Reconciler) MergeWithPending(ctx context.Context, osID string) (*model.VehicleListItem, error) {
	snapshot, err := r.vehicles.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var item *model.VehicleListItem
	for _, v := range snapshot {
		if v.OSID == osID {
			item = &model.VehicleListItem{VehicleInProduction: v}
			break
		}
	}

	entry, err := r.production.Get(ctx, osID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		if entry == nil {
			return nil, nil
		}
		item = &model.VehicleListItem{
			VehicleInProduction: model.VehicleInProduction{
				OSID:  entry.OSID,
				Code:  entry.Code,
				Plate: entry.Plate,
				Model: entry.Model,
				Stage: entry.CurrentStage,
			},
		}
	}
	if entry != nil {
		r.applyOverlay(item, entry)
	}
	r.annotateStage(ctx, item)
	return item, nil
}

func (r *Reconciler) applyOverlay(item *model.VehicleListItem, entry *model.ProductionEntry) {
	item.PendingSync = entry.HasPendingOverlay()
	item.QueuedOperations = len(entry.QueuedOperationIDs)

	// The local mirror's stage can be ahead of the snapshot when an
	// advance was confirmed after the last snapshot refresh.
	if entry.CurrentStage.ID != nil {
		item.Stage = entry.CurrentStage
	}
}

func (r *Reconciler) annotateStage(ctx context.Context, item *model.VehicleListItem) {
	if item.Stage.ID == nil {
		return
	}

	// Catalog misses degrade to an unannotated row, never an error.
	if next, err := r.catalog.NextStage(ctx, *item.Stage.ID); err == nil && next != nil {
		item.NextStage = next
	}
	if final, err := r.catalog.IsFinalStage(ctx, *item.Stage.ID); err == nil {
		item.FinalStage = final
	}
}
