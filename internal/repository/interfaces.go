package repository

import (
	"context"

	"github.com/Cator197/checkauto-saas/internal/model"
)

// SyncQueueRepository defines access to the pending-operations queue.
type SyncQueueRepository interface {
	// Enqueue normalizes missing fields (id, timestamp, tries) and stores
	// the item. UPSERT_OBSERVACAO items replace any queued observation for
	// the same target in the same transaction.
	Enqueue(ctx context.Context, item model.SyncItem) (*model.SyncItem, error)

	// ListAll returns every queued item sorted ascending by creation time.
	ListAll(ctx context.Context) ([]model.SyncItem, error)

	// Update merges a patch into an existing item. Returns nil (no error)
	// when the id is unknown.
	Update(ctx context.Context, id string, patch model.SyncItemPatch) (*model.SyncItem, error)

	// RecordFailure increments the item's try counter and stores the
	// human-readable error.
	RecordFailure(ctx context.Context, id, message string) error

	// Remove deletes one item by id.
	Remove(ctx context.Context, id string) error

	// RemoveWhere deletes every item matching the predicate and returns
	// how many were removed.
	RemoveWhere(ctx context.Context, pred func(model.SyncItem) bool) (int, error)

	// Count returns the queue depth.
	Count(ctx context.Context) (int, error)
}

// ProductionRepository defines access to the per-work-order local mirror.
// Upsert is the only sanctioned mutation path; it recomputes the
// pending-sync invariant on every write.
type ProductionRepository interface {
	// Get returns the cached entry, or nil when the work order was never
	// cached locally.
	Get(ctx context.Context, osID string) (*model.ProductionEntry, error)

	// Upsert reads the current entry (or a fresh default), applies the
	// transform, recomputes the pending flag and persists the result.
	Upsert(ctx context.Context, osID string, transform func(*model.ProductionEntry)) (*model.ProductionEntry, error)

	// ListPendingSync returns entries with offline-pending state. The
	// conditions are recomputed defensively rather than trusted from the
	// stored flag, tolerating rows written by an older schema version.
	ListPendingSync(ctx context.Context) ([]model.ProductionEntry, error)

	// MarkSynced clears the advance request and queued-operations overlay
	// and stamps the sync time. Callers must only invoke it once every
	// queued operation for the target is confirmed drained.
	MarkSynced(ctx context.Context, osID string) error

	// RemoveQueuedOperation removes one operation id from the overlay.
	RemoveQueuedOperation(ctx context.Context, osID, operationID string) error
}

// CheckInRepository defines access to offline check-ins awaiting creation
// on the server.
type CheckInRepository interface {
	Save(ctx context.Context, checkIn *model.PendingCheckIn) (*model.PendingCheckIn, error)
	Get(ctx context.Context, localID string) (*model.PendingCheckIn, error)
	ListAll(ctx context.Context) ([]model.PendingCheckIn, error)
	RecordFailure(ctx context.Context, localID, message string) error
	Remove(ctx context.Context, localID string) error
}

// VehicleRepository defines access to the vehicles-in-production snapshot.
type VehicleRepository interface {
	// ReplaceAll overwrites the whole snapshot in one transaction.
	ReplaceAll(ctx context.Context, vehicles []model.VehicleInProduction) error
	ListAll(ctx context.Context) ([]model.VehicleInProduction, error)
}
