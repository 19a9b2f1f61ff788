package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Cator197/checkauto-saas/internal/client"
	"github.com/Cator197/checkauto-saas/internal/model"
	"github.com/Cator197/checkauto-saas/internal/repository"
	"github.com/Cator197/checkauto-saas/pkg/metrics"
)

// Drain outcome statuses.
const (
	DrainAlreadyRunning = "already_running"
	DrainOffline        = "offline"
	DrainEmpty          = "empty"
	DrainSuccess        = "success"
	DrainPartial        = "partial"
	DrainFailed         = "failed"
)

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Status    string        `json:"status"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Remaining int           `json:"remaining"`
	Duration  time.Duration `json:"-"`
	StartedAt time.Time     `json:"started_at"`
}

// OnlineChecker answers whether the backend is currently reachable.
type OnlineChecker interface {
	Online(ctx context.Context) bool
}

// SyncEngine drains the pending-operations queue against the remote API,
// strictly oldest-first and one item at a time. A failed item stays
// queued with its failure recorded; the pass continues with the rest.
// Only one drain runs at a time; concurrent triggers are ignored.
type SyncEngine struct {
	queue      repository.SyncQueueRepository
	production repository.ProductionRepository
	checkins   repository.CheckInRepository
	vehicles   repository.VehicleRepository
	client     *client.APIClient
	catalog    *StageCatalog
	online     OnlineChecker

	mu      sync.Mutex
	running bool

	// Items removed mid-pass (purged duplicate advances). The drain loop
	// iterates a snapshot, so without this a purged item would still be
	// dispatched.
	skip map[string]bool
}

// NewSyncEngine wires the engine to its collaborators.
func NewSyncEngine(
	queue repository.SyncQueueRepository,
	production repository.ProductionRepository,
	checkins repository.CheckInRepository,
	vehicles repository.VehicleRepository,
	api *client.APIClient,
	catalog *StageCatalog,
	online OnlineChecker,
) *SyncEngine {
	return &SyncEngine{
		queue:      queue,
		production: production,
		checkins:   checkins,
		vehicles:   vehicles,
		client:     api,
		catalog:    catalog,
		online:     online,
	}
}

// Running reports whether a drain pass is in progress.
func (e *SyncEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Drain runs one full pass over the queue. It never aborts mid-pass on a
// per-item failure; only an unreadable queue fails the drain as a whole.
func (e *SyncEngine) Drain(ctx context.Context) *DrainResult {
	result := &DrainResult{StartedAt: time.Now()}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		metrics.DrainsSkipped.WithLabelValues("already_running").Inc()
		result.Status = DrainAlreadyRunning
		return result
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		result.Duration = time.Since(result.StartedAt)
		metrics.DrainDuration.Observe(result.Duration.Seconds())
		e.updateBacklogGauge(ctx)
	}()

	if !e.online.Online(ctx) {
		metrics.DrainsSkipped.WithLabelValues("offline").Inc()
		result.Status = DrainOffline
		return result
	}

	items, err := e.queue.ListAll(ctx)
	if err != nil {
		log.Printf("[SyncEngine] Drain aborted, queue unreadable: %v", err)
		result.Status = DrainFailed
		return result
	}
	if len(items) == 0 {
		result.Status = DrainEmpty
		return result
	}

	log.Printf("[SyncEngine] Draining %d item(s)", len(items))

	e.skip = make(map[string]bool)
	for _, item := range items {
		if e.skip[item.ID] {
			continue
		}
		if err := e.processItem(ctx, item); err != nil {
			result.Failed++
			metrics.ItemsProcessed.WithLabelValues("failure", item.Type).Inc()
			e.recordFailure(ctx, item, err)
			continue
		}
		result.Processed++
		metrics.ItemsProcessed.WithLabelValues("success", item.Type).Inc()
	}

	result.Remaining = result.Failed
	if result.Failed == 0 {
		result.Status = DrainSuccess
		e.refreshSnapshot(ctx)
	} else {
		result.Status = DrainPartial
	}

	log.Printf("[SyncEngine] Drain finished: %s (%d ok, %d failed)",
		result.Status, result.Processed, result.Failed)
	return result
}

// processItem dispatches one item and, on success, removes it and
// reconciles the target's local mirror.
func (e *SyncEngine) processItem(ctx context.Context, item model.SyncItem) error {
	if err := e.dispatch(ctx, item); err != nil {
		return err
	}

	if err := e.queue.Remove(ctx, item.ID); err != nil {
		// The remote call landed; losing the removal would replay it.
		// Surface loudly but keep the drain going.
		return fmt.Errorf("item %s succeeded remotely but was not removed: %w", item.ID, err)
	}

	if item.Type != model.TypeSyncOS {
		e.reconcile(ctx, item)
	}
	return nil
}

// reconcile updates the production mirror after a confirmed item: the
// operation leaves the overlay, an uploaded photo is promoted, and once
// nothing pending remains for the target it is marked synced.
func (e *SyncEngine) reconcile(ctx context.Context, item model.SyncItem) {
	if err := e.production.RemoveQueuedOperation(ctx, item.TargetID, item.ID); err != nil {
		e.logf("could not drop operation %s from overlay: %v", item.ID, err)
	}

	if item.Type == model.TypePostFotoOS {
		if photoID, ok := item.Payload["foto_id"].(string); ok && photoID != "" {
			_, err := e.production.Upsert(ctx, item.TargetID, func(entry *model.ProductionEntry) {
				entry.RemoveOfflinePhoto(photoID)
			})
			if err != nil {
				e.logf("could not drop uploaded photo %s: %v", photoID, err)
			}
		}
	}

	entry, err := e.production.Get(ctx, item.TargetID)
	if err != nil {
		e.logf("could not re-check overlay for %s: %v", item.TargetID, err)
		return
	}
	if entry == nil || entry.HasPendingOverlay() {
		return
	}

	if err := e.production.MarkSynced(ctx, item.TargetID); err != nil {
		e.logf("could not mark %s synced: %v", item.TargetID, err)
	}
}

// recordFailure writes the retry bookkeeping for a failed item. Check-in
// submissions carry their own counters on the pending record; everything
// else records on the queue item.
func (e *SyncEngine) recordFailure(ctx context.Context, item model.SyncItem, cause error) {
	message := cause.Error()
	log.Printf("[SyncEngine] Item %s (%s) failed: %s", item.ID, item.Type, message)

	if item.Type == model.TypeSyncOS {
		if err := e.checkins.RecordFailure(ctx, item.TargetID, message); err != nil {
			e.logf("could not record check-in failure for %s: %v", item.TargetID, err)
		}
		return
	}

	if err := e.queue.RecordFailure(ctx, item.ID, message); err != nil {
		e.logf("could not record failure for %s: %v", item.ID, err)
	}
}

// refreshSnapshot replaces the local vehicles-in-production snapshot
// after a fully clean drain, when local and server state agree.
func (e *SyncEngine) refreshSnapshot(ctx context.Context) {
	vehicles, err := e.client.FetchVehicles(ctx)
	if err != nil {
		e.logf("snapshot refresh skipped: %v", err)
		return
	}
	if err := e.vehicles.ReplaceAll(ctx, vehicles); err != nil {
		e.logf("snapshot refresh failed to persist: %v", err)
		return
	}

	for _, v := range vehicles {
		if v.Stage.ID != nil {
			e.catalog.RememberStage(ctx, v.OSID, *v.Stage.ID)
		}
	}
}

func (e *SyncEngine) updateBacklogGauge(ctx context.Context) {
	if n, err := e.queue.Count(ctx); err == nil {
		metrics.QueueBacklog.Set(float64(n))
	}
}

func (e *SyncEngine) logf(format string, args ...interface{}) {
	log.Printf("[SyncEngine] "+format, args...)
}
