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

// sqliteCheckIns implements CheckInRepository on the shared Store.
type sqliteCheckIns struct {
	store *Store
}

// Save persists an offline check-in, assigning a local id and timestamp
// when missing.
func (r *sqliteCheckIns) Save(ctx context.Context, checkIn *model.PendingCheckIn) (*model.PendingCheckIn, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if checkIn.Type != model.CheckInCompleto && checkIn.Type != model.CheckInSoFotos {
		return nil, fmt.Errorf("unknown check-in type %q", checkIn.Type)
	}
	if checkIn.LocalID == "" {
		checkIn.LocalID = uid.QueueID("checkin")
	}
	if checkIn.CreatedAt.IsZero() {
		checkIn.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(checkIn)
	if err != nil {
		return nil, fmt.Errorf("failed to encode check-in: %w", err)
	}

	_, err = r.store.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO os_pendentes (local_id, data, criado_em, tentativas, ultimo_erro)
		VALUES (?, ?, ?, ?, ?)`,
		checkIn.LocalID, string(data), checkIn.CreatedAt.UTC().Format(storedTimeLayout),
		checkIn.Tries, nullable(checkIn.LastError))
	if err != nil {
		return nil, fmt.Errorf("failed to save check-in %s: %w", checkIn.LocalID, err)
	}

	return checkIn, nil
}

// Get returns one pending check-in, or nil when absent.
func (r *sqliteCheckIns) Get(ctx context.Context, localID string) (*model.PendingCheckIn, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var data string
	var tries int
	var lastError sql.NullString
	err := r.store.db.QueryRowContext(ctx,
		"SELECT data, tentativas, ultimo_erro FROM os_pendentes WHERE local_id = ?", localID).
		Scan(&data, &tries, &lastError)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get check-in %s: %w", localID, err)
	}

	var checkIn model.PendingCheckIn
	if err := json.Unmarshal([]byte(data), &checkIn); err != nil {
		return nil, fmt.Errorf("corrupt check-in %s: %w", localID, err)
	}
	// Retry bookkeeping lives in its own columns so failure recording
	// never rewrites the captured payload.
	checkIn.Tries = tries
	checkIn.LastError = lastError.String

	return &checkIn, nil
}

// ListAll returns pending check-ins, oldest first.
func (r *sqliteCheckIns) ListAll(ctx context.Context) ([]model.PendingCheckIn, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx,
		"SELECT data, tentativas, ultimo_erro FROM os_pendentes ORDER BY criado_em, local_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	defer rows.Close()

	var checkIns []model.PendingCheckIn
	for rows.Next() {
		var data string
		var tries int
		var lastError sql.NullString
		if err := rows.Scan(&data, &tries, &lastError); err != nil {
			return nil, err
		}
		var checkIn model.PendingCheckIn
		if err := json.Unmarshal([]byte(data), &checkIn); err != nil {
			continue
		}
		checkIn.Tries = tries
		checkIn.LastError = lastError.String
		checkIns = append(checkIns, checkIn)
	}
	return checkIns, rows.Err()
}

// RecordFailure bumps the check-in's own retry counters; offline
// check-ins are not queue items, so their bookkeeping lives here.
func (r *sqliteCheckIns) RecordFailure(ctx context.Context, localID, message string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx,
		"UPDATE os_pendentes SET tentativas = tentativas + 1, ultimo_erro = ? WHERE local_id = ?",
		message, localID)
	if err != nil {
		return fmt.Errorf("failed to record check-in failure %s: %w", localID, err)
	}
	return nil
}

// Remove deletes a pending check-in after the server confirms creation.
func (r *sqliteCheckIns) Remove(ctx context.Context, localID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx, "DELETE FROM os_pendentes WHERE local_id = ?", localID)
	if err != nil {
		return fmt.Errorf("failed to remove check-in %s: %w", localID, err)
	}
	return nil
}

// Ensure sqliteCheckIns implements CheckInRepository
var _ CheckInRepository = (*sqliteCheckIns)(nil)
