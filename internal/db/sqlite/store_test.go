package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/obsearch/internal/db"
	"github.com/thebtf/obsearch/pkg/models"
)

var _ db.Store = (*Store)(nil)

// testStore creates a Store backed by a temporary database file.
func testStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(StoreConfig{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		MaxConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleDataset() ([]models.Observation, []models.SessionLink) {
	observations := []models.Observation{
		{
			RefObsID:             "oid_2",
			Type:                 "IMG",
			CmdSSARStartDatetime: "2024-02-01T00:00:00",
			SSARConfigID:         7,
			IntroducedIn:         "R1",
		},
		{
			RefObsID:             "oid_1",
			Type:                 "CAL",
			AlongTrackTimeOffset: -12,
			LSARConfigID:         3,
		},
	}
	links := []models.SessionLink{
		{SessID: "ssid_B", RefObsID: "oid_1"},
		{SessID: "ssid_A", RefObsID: "oid_2"},
		{SessID: "ssid_A", RefObsID: "oid_orphan"},
		{SessID: "ssid_A", RefObsID: "oid_1"},
	}
	return observations, links
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := NewStore(StoreConfig{Path: "  "})
	require.Error(t, err)
}

// sessionRows joins the stored observations and links the way the search layer does.
func sessionRows(t *testing.T, store *Store) []models.SessionRow {
	t.Helper()
	ctx := context.Background()

	observations, err := store.AllObservations(ctx)
	require.NoError(t, err)
	links, err := store.AllSessionLinks(ctx)
	require.NoError(t, err)
	return models.JoinSessions(observations, links)
}

func TestStore_ReplaceAndReadDataset(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	observations, links := sampleDataset()
	require.NoError(t, store.ReplaceDataset(ctx, observations, links))

	got, err := store.AllObservations(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, observations[0], got[0], "insertion order is preserved")
	assert.Equal(t, observations[1], got[1])

	gotLinks, err := store.AllSessionLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, links, gotLinks)

	rows := sessionRows(t, store)
	require.Len(t, rows, 3, "orphan link must not join")
	assert.Equal(t, "ssid_B", rows[0].SessID)
	assert.Equal(t, "oid_1", rows[0].RefObsID)
	assert.Equal(t, "ssid_A", rows[1].SessID)
	assert.Equal(t, "oid_2", rows[1].RefObsID)
	assert.Equal(t, int64(7), rows[1].SSARConfigID)
	assert.Equal(t, "oid_1", rows[2].RefObsID)
}

func TestStore_ReplaceDatasetOverwrites(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	observations, links := sampleDataset()
	require.NoError(t, store.ReplaceDataset(ctx, observations, links))
	require.NoError(t, store.ReplaceDataset(ctx, observations[:1], nil))

	got, err := store.AllObservations(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	rows := sessionRows(t, store)
	assert.Empty(t, rows)
}

func TestStore_NullColumnsReadAsZeroValues(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, `INSERT INTO observation (REFOBS_ID) VALUES ('oid_null')`)
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx, `INSERT INTO session_observation (SESS_ID, REFOBS_ID) VALUES (NULL, 'oid_null')`)
	require.NoError(t, err)

	got, err := store.AllObservations(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].CmdSSARStartDatetime)
	assert.Equal(t, int64(0), got[0].SSARConfigID)
	assert.True(t, got[0].SSARConfigUnset)
	assert.Equal(t, "", got[0].SSARConfigKey())

	rows := sessionRows(t, store)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].SessID)
	assert.Equal(t, models.UnknownSession, rows[0].GroupKey())
}

func TestStore_NullSSARConfigSurvivesReplace(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	observations := []models.Observation{
		{RefObsID: "oid_1", SSARConfigUnset: true},
		{RefObsID: "oid_2"},
	}
	require.NoError(t, store.ReplaceDataset(ctx, observations, nil))

	got, err := store.AllObservations(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].SSARConfigUnset)
	assert.False(t, got[1].SSARConfigUnset)
	assert.Equal(t, "0", got[1].SSARConfigKey())
}

func TestStore_OpensLegacyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	// Tables created by the old import script, without schema_versions.
	legacy, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = legacy.Exec(`
		CREATE TABLE session_observation (SESS_ID TEXT, REFOBS_ID TEXT);
		CREATE TABLE observation (
			REFOBS_ID TEXT, TYPE TEXT, REF_START_DATETIME TEXT, REF_END_DATETIME TEXT,
			ALONG_TRACK_TIME_OFFSET INTEGER, LSAR_SQUINT_TIME_OFFSET INTEGER,
			SSAR_SQUINT_TIME_OFFSET INTEGER, LSAR_JOINT_OP_TIME_OFFSET INTEGER,
			SSAR_JOINT_OP_TIME_OFFSET INTEGER, PRIORITY TEXT,
			CMD_LSAR_START_DATETIME TEXT, CMD_LSAR_END_DATETIME TEXT,
			CMD_SSAR_START_DATETIME TEXT, CMD_SSAR_END_DATETIME TEXT,
			LSAR_PATH TEXT, SSAR_PATH TEXT, LSAR_CONFIG_ID INTEGER, SSAR_CONFIG_ID INTEGER,
			DATATAKE_ID TEXT, SEGMENT_DATATAKE_ON_SSR TEXT, OBS_SUPPORT TEXT, INTRODUCED_IN TEXT
		);
		CREATE INDEX idx_session ON session_observation(SESS_ID);
		INSERT INTO observation (REFOBS_ID, PRIORITY) VALUES ('oid_9', 'LOW');
	`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	store, err := NewStore(StoreConfig{Path: path})
	require.NoError(t, err)
	defer store.Close()

	got, err := store.AllObservations(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "LOW", got[0].Priority)
}

func TestStore_Ping(t *testing.T) {
	store := testStore(t)
	assert.NoError(t, store.Ping(context.Background()))
	assert.NotEmpty(t, store.Path())
}
