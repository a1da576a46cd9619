package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/thebtf/obsearch/pkg/models"
)

// observationColumns selects every observation column with NULLs
// replaced by the zero value of the field. SSAR_CONFIG_ID keeps its NULL
// so the config filter can tell it apart from 0.
const observationColumns = `COALESCE(o.REFOBS_ID, ''), COALESCE(o.TYPE, ''),
       COALESCE(o.REF_START_DATETIME, ''), COALESCE(o.REF_END_DATETIME, ''),
       COALESCE(o.ALONG_TRACK_TIME_OFFSET, 0), COALESCE(o.LSAR_SQUINT_TIME_OFFSET, 0),
       COALESCE(o.SSAR_SQUINT_TIME_OFFSET, 0), COALESCE(o.LSAR_JOINT_OP_TIME_OFFSET, 0),
       COALESCE(o.SSAR_JOINT_OP_TIME_OFFSET, 0), COALESCE(o.PRIORITY, ''),
       COALESCE(o.CMD_LSAR_START_DATETIME, ''), COALESCE(o.CMD_LSAR_END_DATETIME, ''),
       COALESCE(o.CMD_SSAR_START_DATETIME, ''), COALESCE(o.CMD_SSAR_END_DATETIME, ''),
       COALESCE(o.LSAR_PATH, ''), COALESCE(o.SSAR_PATH, ''),
       COALESCE(o.LSAR_CONFIG_ID, 0), o.SSAR_CONFIG_ID,
       COALESCE(o.DATATAKE_ID, ''), COALESCE(o.SEGMENT_DATATAKE_ON_SSR, ''),
       COALESCE(o.OBS_SUPPORT, ''), COALESCE(o.INTRODUCED_IN, '')`

// Store is an SQLite-backed dataset provider.
type Store struct {
	db   *sql.DB
	path string
}

// StoreConfig holds configuration for the database store.
type StoreConfig struct {
	Path     string
	MaxConns int
}

// NewStore opens the database at cfg.Path and applies pending migrations.
func NewStore(cfg StoreConfig) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	cleanPath := filepath.Clean(cfg.Path)
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := NewMigrationManager(db).RunMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, path: cleanPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats returns database connection pool statistics.
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// AllObservations returns every observation in insertion order.
func (s *Store) AllObservations(ctx context.Context) ([]models.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+observationColumns+` FROM observation o ORDER BY o.rowid`)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var (
			obs        models.Observation
			ssarConfig sql.NullInt64
		)
		if err := rows.Scan(observationDest(&obs, &ssarConfig)...); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs.SSARConfigID = ssarConfig.Int64
		obs.SSARConfigUnset = !ssarConfig.Valid
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// AllSessionLinks returns every session link in insertion order.
func (s *Store) AllSessionLinks(ctx context.Context) ([]models.SessionLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(SESS_ID, ''), COALESCE(REFOBS_ID, '')
		FROM session_observation
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query session links: %w", err)
	}
	defer rows.Close()

	var links []models.SessionLink
	for rows.Next() {
		var link models.SessionLink
		if err := rows.Scan(&link.SessID, &link.RefObsID); err != nil {
			return nil, fmt.Errorf("scan session link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// ReplaceDataset deletes all rows and inserts the given dataset in one transaction.
func (s *Store) ReplaceDataset(ctx context.Context, observations []models.Observation, links []models.SessionLink) error {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM session_observation"); err != nil {
		return fmt.Errorf("clear session links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM observation"); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(models.Columns)), ", ")
	obsStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO observation ("+strings.Join(models.Columns, ", ")+") VALUES ("+placeholders+")")
	if err != nil {
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer obsStmt.Close()

	for i := range observations {
		if _, err := obsStmt.ExecContext(ctx, observations[i].Values()...); err != nil {
			return fmt.Errorf("insert observation %s: %w", observations[i].RefObsID, err)
		}
	}

	linkStmt, err := tx.PrepareContext(ctx, "INSERT INTO session_observation (SESS_ID, REFOBS_ID) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare session link insert: %w", err)
	}
	defer linkStmt.Close()

	for _, link := range links {
		if _, err := linkStmt.ExecContext(ctx, link.SessID, link.RefObsID); err != nil {
			return fmt.Errorf("insert session link %s/%s: %w", link.SessID, link.RefObsID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dataset: %w", err)
	}

	log.Info().
		Str("path", s.path).
		Int("observations", len(observations)).
		Int("session_links", len(links)).
		Dur("elapsed", time.Since(start)).
		Msg("Dataset replaced")
	return nil
}

// observationDest returns scan destinations matching observationColumns.
func observationDest(o *models.Observation, ssarConfig *sql.NullInt64) []any {
	return []any{
		&o.RefObsID,
		&o.Type,
		&o.RefStartDatetime,
		&o.RefEndDatetime,
		&o.AlongTrackTimeOffset,
		&o.LSARSquintTimeOffset,
		&o.SSARSquintTimeOffset,
		&o.LSARJointOpTimeOffset,
		&o.SSARJointOpTimeOffset,
		&o.Priority,
		&o.CmdLSARStartDatetime,
		&o.CmdLSAREndDatetime,
		&o.CmdSSARStartDatetime,
		&o.CmdSSAREndDatetime,
		&o.LSARPath,
		&o.SSARPath,
		&o.LSARConfigID,
		ssarConfig,
		&o.DatatakeID,
		&o.SegmentDatatakeOnSSR,
		&o.ObsSupport,
		&o.IntroducedIn,
	}
}
