package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/obsearch/internal/db/sqlite"
	"github.com/thebtf/obsearch/pkg/models"
)

const sampleExport = `<?xml version="1.0" encoding="UTF-8"?>
<ROOT>
  <OBSERVATIONS>
    <OBS>
      <REFOBS_ID>oid_1</REFOBS_ID>
      <TYPE>IMG</TYPE>
      <REF_START_DATETIME>2024-03-01T10:00:00</REF_START_DATETIME>
      <REF_END_DATETIME>2024-03-01T10:05:00</REF_END_DATETIME>
      <ALONG_TRACK_TIME_OFFSET>12</ALONG_TRACK_TIME_OFFSET>
      <LSAR_SQUINT_TIME_OFFSET> -4 </LSAR_SQUINT_TIME_OFFSET>
      <PRIORITY>HIGH</PRIORITY>
      <CMD_SSAR_START_DATETIME>2024-03-01T09:59:00</CMD_SSAR_START_DATETIME>
      <CMD_SSAR_END_DATETIME>2024-03-01T10:06:00</CMD_SSAR_END_DATETIME>
      <LSAR_CONFIG_ID>5</LSAR_CONFIG_ID>
      <SSAR_CONFIG_ID>12</SSAR_CONFIG_ID>
      <INTRODUCED_IN>R3</INTRODUCED_IN>
    </OBS>
    <OBS>
      <REFOBS_ID>oid_2</REFOBS_ID>
      <TYPE>CAL</TYPE>
      <SSAR_CONFIG_ID></SSAR_CONFIG_ID>
    </OBS>
  </OBSERVATIONS>
  <SSAR_SESSIONS>
    <S_IMG_SESSION>
      <SESS_ID>ssid_A</SESS_ID>
      <REFOBS_IDS>oid_1
        oid_2</REFOBS_IDS>
    </S_IMG_SESSION>
    <S_IMG_SESSION>
      <SESS_ID>ssid_B</SESS_ID>
      <REFOBS_IDS>oid_2 oid_9</REFOBS_IDS>
    </S_IMG_SESSION>
    <S_IMG_SESSION>
      <SESS_ID>ssid_empty</SESS_ID>
    </S_IMG_SESSION>
  </SSAR_SESSIONS>
</ROOT>`

func TestParse(t *testing.T) {
	ds, err := Parse(strings.NewReader(sampleExport))
	require.NoError(t, err)
	require.Len(t, ds.Observations, 2)

	first := ds.Observations[0]
	assert.Equal(t, "oid_1", first.RefObsID)
	assert.Equal(t, "IMG", first.Type)
	assert.Equal(t, int64(12), first.AlongTrackTimeOffset)
	assert.Equal(t, int64(-4), first.LSARSquintTimeOffset)
	assert.Equal(t, int64(0), first.SSARSquintTimeOffset)
	assert.Equal(t, int64(5), first.LSARConfigID)
	assert.Equal(t, int64(12), first.SSARConfigID)
	assert.Equal(t, "2024-03-01T09:59:00", first.CmdSSARStartDatetime)
	assert.Equal(t, "R3", first.IntroducedIn)

	second := ds.Observations[1]
	assert.Equal(t, int64(0), second.SSARConfigID)
	assert.Empty(t, second.IntroducedIn)
	assert.Empty(t, second.RefStartDatetime)

	assert.Equal(t, []models.SessionLink{
		{SessID: "ssid_A", RefObsID: "oid_1"},
		{SessID: "ssid_A", RefObsID: "oid_2"},
		{SessID: "ssid_B", RefObsID: "oid_2"},
		{SessID: "ssid_B", RefObsID: "oid_9"},
	}, ds.Links)
}

func TestParse_NoSessions(t *testing.T) {
	ds, err := Parse(strings.NewReader(`<ROOT><OBSERVATIONS><OBS><REFOBS_ID>oid_1</REFOBS_ID></OBS></OBSERVATIONS></ROOT>`))
	require.NoError(t, err)
	assert.Len(t, ds.Observations, 1)
	assert.Empty(t, ds.Links)
}

func TestParse_InvalidInteger(t *testing.T) {
	_, err := Parse(strings.NewReader(`<ROOT><OBSERVATIONS>
		<OBS><REFOBS_ID>oid_1</REFOBS_ID></OBS>
		<OBS><REFOBS_ID>oid_bad</REFOBS_ID><SSAR_CONFIG_ID>twelve</SSAR_CONFIG_ID></OBS>
	</OBSERVATIONS></ROOT>`))
	require.Error(t, err)

	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, 1, fieldErr.Index)
	assert.Equal(t, "oid_bad", fieldErr.RefObsID)
	assert.Equal(t, "SSAR_CONFIG_ID", fieldErr.Field)
	assert.Contains(t, err.Error(), "SSAR_CONFIG_ID")
	assert.True(t, errors.Is(err, strconv.ErrSyntax))
}

func TestParse_MalformedXML(t *testing.T) {
	_, err := Parse(strings.NewReader(`<ROOT><OBSERVATIONS><OBS>`))
	assert.Error(t, err)
}

// recordingStore captures what Import writes.
type recordingStore struct {
	observations []models.Observation
	links        []models.SessionLink
	err          error
}

func (s *recordingStore) ReplaceDataset(_ context.Context, obs []models.Observation, links []models.SessionLink) error {
	s.observations = obs
	s.links = links
	return s.err
}

func TestImport_Summary(t *testing.T) {
	store := &recordingStore{}

	result, err := Import(context.Background(), strings.NewReader(sampleExport), store)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Observations)
	assert.Equal(t, 4, result.SessionLinks)
	assert.Equal(t, 2, result.Sessions)
	assert.Equal(t, 1, result.OrphanLinks)
	assert.Zero(t, result.DuplicateIDs)
	assert.Len(t, store.observations, 2)
	assert.Len(t, store.links, 4)
}

func TestImport_DuplicateIDs(t *testing.T) {
	store := &recordingStore{}
	doc := `<ROOT><OBSERVATIONS>
		<OBS><REFOBS_ID>oid_1</REFOBS_ID></OBS>
		<OBS><REFOBS_ID>oid_1</REFOBS_ID></OBS>
	</OBSERVATIONS></ROOT>`

	result, err := Import(context.Background(), strings.NewReader(doc), store)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DuplicateIDs)
	assert.Len(t, store.observations, 2, "duplicates are kept")
}

func TestImport_StoreError(t *testing.T) {
	store := &recordingStore{err: errors.New("disk full")}

	_, err := Import(context.Background(), strings.NewReader(sampleExport), store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestImport_ParseErrorSkipsStore(t *testing.T) {
	store := &recordingStore{}

	_, err := Import(context.Background(), strings.NewReader("not xml"), store)
	require.Error(t, err)
	assert.Nil(t, store.observations)
}

func TestImportFile_IntoSQLite(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "db.xml")
	require.NoError(t, os.WriteFile(exportPath, []byte(sampleExport), 0600))

	store, err := sqlite.NewStore(sqlite.StoreConfig{Path: filepath.Join(dir, "cop_endpoints_db")})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	result, err := ImportFile(ctx, exportPath, store)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Observations)

	observations, err := store.AllObservations(ctx)
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.Equal(t, int64(12), observations[0].SSARConfigID)

	links, err := store.AllSessionLinks(ctx)
	require.NoError(t, err)
	rows := models.JoinSessions(observations, links)
	// oid_9 has no observation and does not join.
	require.Len(t, rows, 3)
	assert.Equal(t, "ssid_A", rows[0].SessID)
	assert.Equal(t, "oid_1", rows[0].RefObsID)
	assert.Equal(t, "ssid_B", rows[2].SessID)
}

func TestImportFile_Missing(t *testing.T) {
	_, err := ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.xml"), &recordingStore{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
