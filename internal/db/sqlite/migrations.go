// Package sqlite provides SQLite database operations for obsearch.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations is the list of all database migrations in order.
// Every statement is idempotent so databases written by the older
// import script, which has no schema_versions table, open cleanly.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "observation_tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS session_observation (
				SESS_ID TEXT,
				REFOBS_ID TEXT
			);

			CREATE TABLE IF NOT EXISTS observation (
				REFOBS_ID TEXT,
				TYPE TEXT,
				REF_START_DATETIME TEXT,
				REF_END_DATETIME TEXT,
				ALONG_TRACK_TIME_OFFSET INTEGER,
				LSAR_SQUINT_TIME_OFFSET INTEGER,
				SSAR_SQUINT_TIME_OFFSET INTEGER,
				LSAR_JOINT_OP_TIME_OFFSET INTEGER,
				SSAR_JOINT_OP_TIME_OFFSET INTEGER,
				PRIORITY TEXT,
				CMD_LSAR_START_DATETIME TEXT,
				CMD_LSAR_END_DATETIME TEXT,
				CMD_SSAR_START_DATETIME TEXT,
				CMD_SSAR_END_DATETIME TEXT,
				LSAR_PATH TEXT,
				SSAR_PATH TEXT,
				LSAR_CONFIG_ID INTEGER,
				SSAR_CONFIG_ID INTEGER,
				DATATAKE_ID TEXT,
				SEGMENT_DATATAKE_ON_SSR TEXT,
				OBS_SUPPORT TEXT,
				INTRODUCED_IN TEXT
			);

			CREATE INDEX IF NOT EXISTS idx_session ON session_observation(SESS_ID);
			CREATE INDEX IF NOT EXISTS idx_obsid ON session_observation(REFOBS_ID);
		`,
	},
	{
		Version: 2,
		Name:    "observation_id_index",
		SQL: `
			CREATE INDEX IF NOT EXISTS idx_observation_refobs ON observation(REFOBS_ID);
		`,
	},
}

// MigrationManager handles database schema migrations.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// EnsureSchemaVersionsTable creates the schema_versions table if it doesn't exist.
func (m *MigrationManager) EnsureSchemaVersionsTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			id INTEGER PRIMARY KEY,
			version INTEGER UNIQUE NOT NULL,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

// GetAppliedVersions returns all applied migration versions.
func (m *MigrationManager) GetAppliedVersions() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_versions ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions[version] = true
	}
	return versions, rows.Err()
}

// ApplyMigration applies a single migration inside a transaction.
func (m *MigrationManager) ApplyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("execute migration %d (%s): %w", migration.Version, migration.Name, err)
	}

	_, err = tx.Exec(
		"INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)",
		migration.Version, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record migration %d: %w", migration.Version, err)
	}

	return tx.Commit()
}

// RunMigrations applies all pending migrations.
func (m *MigrationManager) RunMigrations() error {
	if err := m.EnsureSchemaVersionsTable(); err != nil {
		return fmt.Errorf("ensure schema_versions table: %w", err)
	}

	applied, err := m.GetAppliedVersions()
	if err != nil {
		return fmt.Errorf("get applied versions: %w", err)
	}

	for _, migration := range Migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.ApplyMigration(migration); err != nil {
			return err
		}
	}

	return nil
}
