package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Cator197/checkauto-saas/internal/model"
	"github.com/Cator197/checkauto-saas/pkg/uid"
)

// sqliteSyncQueue implements SyncQueueRepository on the shared Store.
type sqliteSyncQueue struct {
	store *Store
}

// Enqueue normalizes and persists one queue item. For UPSERT_OBSERVACAO
// any queued observation for the same target is removed first, in the
// same transaction, so the latest text replaces rather than appends.
func (r *sqliteSyncQueue) Enqueue(ctx context.Context, item model.SyncItem) (*model.SyncItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if item.Type == "" {
		return nil, fmt.Errorf("queue item requires a type")
	}
	if !model.KnownType(item.Type) {
		return nil, fmt.Errorf("unknown queue item type %q", item.Type)
	}
	if item.TargetID == "" {
		return nil, fmt.Errorf("queue item requires a target id")
	}
	if item.ID == "" {
		item.ID = uid.QueueID(item.Type)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Payload == nil {
		item.Payload = map[string]interface{}{}
	}
	item.Tries = 0
	item.LastError = ""

	payloadJSON, err := json.Marshal(item.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if item.Type == model.TypeUpsertObservacao {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM sync_queue WHERE type = ? AND target_id = ?",
			model.TypeUpsertObservacao, item.TargetID)
		if err != nil {
			return nil, fmt.Errorf("failed to replace queued observation: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_queue (id, type, target_id, payload, criado_em, tentativas, ultimo_erro)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Type, item.TargetID, string(payloadJSON),
		item.CreatedAt.UTC().Format(storedTimeLayout), item.Tries, nullable(item.LastError))
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s for %s: %w", item.Type, item.TargetID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit enqueue: %w", err)
	}

	return &item, nil
}

// ListAll returns every queued item, oldest first.
func (r *sqliteSyncQueue) ListAll(ctx context.Context) ([]model.SyncItem, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, type, target_id, payload, criado_em, tentativas, ultimo_erro
		FROM sync_queue ORDER BY criado_em, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync queue: %w", err)
	}
	defer rows.Close()

	var items []model.SyncItem
	for rows.Next() {
		item, err := scanSyncItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Update merges the patch into an existing item. Unknown ids are a no-op
// returning nil.
func (r *sqliteSyncQueue) Update(ctx context.Context, id string, patch model.SyncItemPatch) (*model.SyncItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.updateLocked(ctx, id, patch)
}

func (r *sqliteSyncQueue) updateLocked(ctx context.Context, id string, patch model.SyncItemPatch) (*model.SyncItem, error) {
	item, err := r.getLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	if patch.Payload != nil {
		item.Payload = patch.Payload
	}
	if patch.Tries != nil {
		item.Tries = *patch.Tries
	}
	if patch.LastError != nil {
		item.LastError = *patch.LastError
	}

	payloadJSON, err := json.Marshal(item.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	_, err = r.store.db.ExecContext(ctx, `
		UPDATE sync_queue SET payload = ?, tentativas = ?, ultimo_erro = ? WHERE id = ?`,
		string(payloadJSON), item.Tries, nullable(item.LastError), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update queue item %s: %w", id, err)
	}

	return item, nil
}

// RecordFailure bumps the try counter and stores the error message,
// reissued through Update so it shares the same normalization path.
func (r *sqliteSyncQueue) RecordFailure(ctx context.Context, id, message string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, err := r.getLocked(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}

	tries := item.Tries + 1
	_, err = r.updateLocked(ctx, id, model.SyncItemPatch{Tries: &tries, LastError: &message})
	return err
}

// Remove deletes one item by id.
func (r *sqliteSyncQueue) Remove(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove queue item %s: %w", id, err)
	}
	return nil
}

// RemoveWhere deletes every item the predicate matches.
func (r *sqliteSyncQueue) RemoveWhere(ctx context.Context, pred func(model.SyncItem) bool) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, type, target_id, payload, criado_em, tentativas, ultimo_erro FROM sync_queue`)
	if err != nil {
		return 0, fmt.Errorf("failed to scan sync queue: %w", err)
	}

	var doomed []string
	for rows.Next() {
		item, err := scanSyncItem(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		if pred(*item) {
			doomed = append(doomed, item.ID)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(doomed) == 0 {
		return 0, nil
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin bulk remove: %w", err)
	}
	defer tx.Rollback()

	for _, id := range doomed {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("failed to remove queue item %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk remove: %w", err)
	}

	return len(doomed), nil
}

// Count returns the queue depth.
func (r *sqliteSyncQueue) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var count int
	err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_queue").Scan(&count)
	return count, err
}

func (r *sqliteSyncQueue) getLocked(ctx context.Context, id string) (*model.SyncItem, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, type, target_id, payload, criado_em, tentativas, ultimo_erro
		FROM sync_queue WHERE id = ?`, id)

	item, err := scanSyncItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSyncItem(row rowScanner) (*model.SyncItem, error) {
	var (
		item       model.SyncItem
		payloadStr string
		createdStr string
		lastError  sql.NullString
	)
	if err := row.Scan(&item.ID, &item.Type, &item.TargetID, &payloadStr, &createdStr, &item.Tries, &lastError); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan queue item: %w", err)
	}

	if err := json.Unmarshal([]byte(payloadStr), &item.Payload); err != nil {
		return nil, fmt.Errorf("corrupt payload on queue item %s: %w", item.ID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt timestamp on queue item %s: %w", item.ID, err)
	}
	item.CreatedAt = createdAt
	item.LastError = lastError.String

	return &item, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Ensure sqliteSyncQueue implements SyncQueueRepository
var _ SyncQueueRepository = (*sqliteSyncQueue)(nil)
