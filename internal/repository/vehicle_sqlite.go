package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Cator197/checkauto-saas/internal/model"
)

// sqliteVehicles implements VehicleRepository on the shared Store.
type sqliteVehicles struct {
	store *Store
}

// ReplaceAll overwrites the snapshot with the server's latest list in a
// single transaction. This is the only collection with clear-and-replace
// semantics.
func (r *sqliteVehicles) ReplaceAll(ctx context.Context, vehicles []model.VehicleInProduction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM veiculos_producao"); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	now := time.Now().UTC().Format(storedTimeLayout)
	for _, v := range vehicles {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode vehicle %s: %w", v.OSID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO veiculos_producao (os_id, data, atualizado_em) VALUES (?, ?, ?)",
			v.OSID, string(data), now); err != nil {
			return fmt.Errorf("failed to store vehicle %s: %w", v.OSID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot replace: %w", err)
	}
	return nil
}

// ListAll returns the stored snapshot.
func (r *sqliteVehicles) ListAll(ctx context.Context) ([]model.VehicleInProduction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows, err := r.store.db.QueryContext(ctx, "SELECT data FROM veiculos_producao ORDER BY os_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicle snapshot: %w", err)
	}
	defer rows.Close()

	var vehicles []model.VehicleInProduction
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v model.VehicleInProduction
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			continue
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// Ensure sqliteVehicles implements VehicleRepository
var _ VehicleRepository = (*sqliteVehicles)(nil)
