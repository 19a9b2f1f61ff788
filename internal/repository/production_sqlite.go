package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Cator197/checkauto-saas/internal/model"
)

// sqliteProduction implements ProductionRepository on the shared Store.
// Entries are stored as one JSON document per work order plus an indexed
// pending flag for cheap filtering.
type sqliteProduction struct {
	store *Store
}

// Get returns the cached entry, or nil when absent.
func (r *sqliteProduction) Get(ctx context.Context, osID string) (*model.ProductionEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.getLocked(ctx, osID)
}

func (r *sqliteProduction) getLocked(ctx context.Context, osID string) (*model.ProductionEntry, error) {
	var data string
	err := r.store.db.QueryRowContext(ctx,
		"SELECT data FROM os_producao WHERE os_id = ?", osID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get production entry %s: %w", osID, err)
	}

	var entry model.ProductionEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("corrupt production entry %s: %w", osID, err)
	}
	return &entry, nil
}

// Upsert is the single read-modify-write funnel for production entries.
// The transform runs against the latest stored value and the pending
// flag is recomputed before the write, never trusted from the transform.
func (r *sqliteProduction) Upsert(ctx context.Context, osID string, transform func(*model.ProductionEntry)) (*model.ProductionEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entry, err := r.getLocked(ctx, osID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry = model.NewProductionEntry(osID)
	}

	transform(entry)
	entry.OSID = osID
	entry.Recompute()
	entry.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode production entry %s: %w", osID, err)
	}

	pending := 0
	if entry.PendingSync {
		pending = 1
	}

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO os_producao (os_id, data, pendente_sync, atualizado_em)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(os_id) DO UPDATE SET
			data = excluded.data,
			pendente_sync = excluded.pendente_sync,
			atualizado_em = excluded.atualizado_em`,
		osID, string(data), pending, entry.UpdatedAt.UTC().Format(storedTimeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert production entry %s: %w", osID, err)
	}

	return entry, nil
}

// ListPendingSync returns entries with offline-pending state, recomputing
// the conditions instead of trusting the stored flag verbatim.
func (r *sqliteProduction) ListPendingSync(ctx context.Context) ([]model.ProductionEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx, "SELECT data FROM os_producao")
	if err != nil {
		return nil, fmt.Errorf("failed to list production entries: %w", err)
	}
	defer rows.Close()

	var pending []model.ProductionEntry
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var entry model.ProductionEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			// Rows written by an older schema that no longer decode are
			// skipped, not fatal.
			continue
		}
		if entry.HasPendingOverlay() {
			entry.Recompute()
			pending = append(pending, entry)
		}
	}
	return pending, rows.Err()
}

// MarkSynced clears the advance request and the queued-operations overlay
// and stamps the sync time. Offline photos tied to still-queued uploads
// are left alone; the engine only calls this once none remain.
func (r *sqliteProduction) MarkSynced(ctx context.Context, osID string) error {
	now := time.Now().UTC()
	_, err := r.Upsert(ctx, osID, func(e *model.ProductionEntry) {
		e.AdvanceRequested = false
		e.QueuedOperationIDs = nil
		e.LastSyncedAt = &now
	})
	return err
}

// RemoveQueuedOperation drops one operation id from the overlay and
// recomputes the pending flag.
func (r *sqliteProduction) RemoveQueuedOperation(ctx context.Context, osID, operationID string) error {
	_, err := r.Upsert(ctx, osID, func(e *model.ProductionEntry) {
		e.RemoveQueuedOperation(operationID)
	})
	return err
}

// Ensure sqliteProduction implements ProductionRepository
var _ ProductionRepository = (*sqliteProduction)(nil)
