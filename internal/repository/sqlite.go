package repository

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// Store is the device's durable local store. All collections live in one
// SQLite database; the repositories returned by a Store share its write
// lock so multi-statement writes never interleave.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// storedTimeLayout is RFC 3339 with all nine fraction digits. The queue
// tables ORDER BY their timestamp columns as text, and RFC3339Nano trims
// trailing zeros, which breaks lexicographic ordering between values in
// the same second. A fixed-width layout keeps text order equal to time
// order. Reads still parse with RFC3339Nano, which accepts both widths.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// migration is one additive schema step. Versions only ever grow and
// steps only ever add collections; previously stored records are never
// dropped or rewritten.
type migration struct {
	version     int
	description string
	statements  string
}

var migrations = []migration{
	{
		version:     1,
		description: "sync queue and production cache",
		statements: `
	CREATE TABLE IF NOT EXISTS sync_queue (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		criado_em TEXT NOT NULL,
		tentativas INTEGER NOT NULL DEFAULT 0,
		ultimo_erro TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_criado_em ON sync_queue(criado_em);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_type_target ON sync_queue(type, target_id);
	CREATE TABLE IF NOT EXISTS os_producao (
		os_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		pendente_sync INTEGER NOT NULL DEFAULT 0,
		atualizado_em TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_os_producao_pendente ON os_producao(pendente_sync);
	`,
	},
	{
		version:     2,
		description: "pending offline check-ins",
		statements: `
	CREATE TABLE IF NOT EXISTS os_pendentes (
		local_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		criado_em TEXT NOT NULL,
		tentativas INTEGER NOT NULL DEFAULT 0,
		ultimo_erro TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_os_pendentes_criado_em ON os_pendentes(criado_em);
	`,
	},
	{
		version:     3,
		description: "vehicles-in-production snapshot",
		statements: `
	CREATE TABLE IF NOT EXISTS veiculos_producao (
		os_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		atualizado_em TEXT NOT NULL
	);
	`,
	},
}

// Open opens (or creates) the local store and applies any pending schema
// migrations. Opening a database created by an older agent version adds
// the missing collections without touching existing records.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("persistent storage unavailable at %s: %w", dir, err)
		}
	}

	// WAL mode and a busy timeout; the agent is the single writer.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistent storage unavailable: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}

	log.Printf("[Store] Opened local store at %s (schema v%d)", dbPath, SchemaVersion())
	return s, nil
}

// SchemaVersion returns the highest schema version this build knows.
func SchemaVersion() int {
	return migrations[len(migrations)-1].version
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_em TEXT NOT NULL DEFAULT (datetime('now'))
	);`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.statements); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d (%s) failed: %w", m.version, m.description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.version, m.description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration v%d: %w", m.version, err)
		}

		log.Printf("[Store] Applied migration v%d: %s", m.version, m.description)
	}

	return nil
}

// CurrentVersion returns the schema version recorded in the store.
func (s *Store) CurrentVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// SyncQueue returns the sync-queue repository backed by this store.
func (s *Store) SyncQueue() SyncQueueRepository {
	return &sqliteSyncQueue{store: s}
}

// Production returns the production-cache repository backed by this store.
func (s *Store) Production() ProductionRepository {
	return &sqliteProduction{store: s}
}

// CheckIns returns the pending check-in repository backed by this store.
func (s *Store) CheckIns() CheckInRepository {
	return &sqliteCheckIns{store: s}
}

// Vehicles returns the snapshot repository backed by this store.
func (s *Store) Vehicles() VehicleRepository {
	return &sqliteVehicles{store: s}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
