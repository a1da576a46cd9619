package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/obsearch/internal/config"
	"github.com/thebtf/obsearch/internal/db"
	"github.com/thebtf/obsearch/internal/db/sqlite"
	"github.com/thebtf/obsearch/pkg/models"
)

// testObservations is a small fixture covering every filter.
var testObservations = []models.Observation{
	{RefObsID: "oid_1", SSARConfigID: 254, RefStartDatetime: "2026-047T10:00:00", CmdSSARStartDatetime: "2026-047T09:58:00", CmdSSAREndDatetime: "2026-047T10:06:00"},
	{RefObsID: "oid_x1", SSARConfigID: 254, RefStartDatetime: "2026-048T10:00:00", CmdSSARStartDatetime: "2026-048T09:58:00", CmdSSAREndDatetime: "2026-048T10:06:00"},
	{RefObsID: "oid_12", SSARConfigID: 12, RefStartDatetime: "2025-100T00:00:00", CmdSSARStartDatetime: "2025-100T00:00:00", CmdSSAREndDatetime: "2025-100T00:10:00"},
	{RefObsID: "oid_2", SSARConfigID: 3, IntroducedIn: "R2"},
}

var testLinks = []models.SessionLink{
	{SessID: "ssid_042", RefObsID: "oid_1"},
	{SessID: "ssid_B", RefObsID: "oid_2"},
	{SessID: "ssid_042", RefObsID: "oid_12"},
	{SessID: "ssid_0421", RefObsID: "oid_x1"},
	{SessID: "ssid_orphan", RefObsID: "oid_missing"},
}

// testStore creates a seeded SQLite store in a temporary directory.
func testStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.NewStore(sqlite.StoreConfig{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		MaxConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, store.ReplaceDataset(context.Background(), testObservations, testLinks))
	return store
}

// testConfig returns defaults with rate limiting disabled.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.RateLimit = 0
	return cfg
}

// testService creates a service over a seeded store. The provider is closed
// when the test ends.
func testService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	store := testStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return NewService("test", cfg, store)
}

// failingProvider fails every read.
type failingProvider struct{}

var errStorage = errors.New("storage unavailable")

func (failingProvider) AllObservations(context.Context) ([]models.Observation, error) {
	return nil, errStorage
}

func (failingProvider) AllSessionLinks(context.Context) ([]models.SessionLink, error) {
	return nil, errStorage
}

func (failingProvider) Ping(context.Context) error { return errStorage }

func (failingProvider) Close() error { return nil }

var _ db.Provider = failingProvider{}

// get performs a GET against the service router.
func get(t *testing.T, s *Service, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

// decode unmarshals a response body into v.
func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}
