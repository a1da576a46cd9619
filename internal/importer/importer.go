package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/obsearch/internal/db"
)

// Result summarizes a completed import.
type Result struct {
	Observations int           `json:"observations"`
	SessionLinks int           `json:"session_links"`
	Sessions     int           `json:"sessions"`
	DuplicateIDs int           `json:"duplicate_ids"`
	OrphanLinks  int           `json:"orphan_links"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Import parses the export from r and replaces the dataset in store.
func Import(ctx context.Context, r io.Reader, store db.Importer) (*Result, error) {
	start := time.Now()

	ds, err := Parse(r)
	if err != nil {
		return nil, err
	}

	result := summarize(ds)
	if result.DuplicateIDs > 0 {
		log.Warn().Int("count", result.DuplicateIDs).Msg("Export contains duplicate REFOBS_ID values")
	}
	if result.OrphanLinks > 0 {
		log.Warn().Int("count", result.OrphanLinks).Msg("Session links reference unknown observations")
	}

	if err := store.ReplaceDataset(ctx, ds.Observations, ds.Links); err != nil {
		return nil, fmt.Errorf("replace dataset: %w", err)
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// ImportFile opens path and imports it into store.
func ImportFile(ctx context.Context, path string, store db.Importer) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	result, err := Import(ctx, f, store)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return result, nil
}

func summarize(ds *Dataset) *Result {
	ids := make(map[string]struct{}, len(ds.Observations))
	dups := 0
	for i := range ds.Observations {
		id := ds.Observations[i].RefObsID
		if _, ok := ids[id]; ok {
			dups++
			continue
		}
		ids[id] = struct{}{}
	}

	sessions := make(map[string]struct{})
	orphans := 0
	for _, link := range ds.Links {
		sessions[link.SessID] = struct{}{}
		if _, ok := ids[link.RefObsID]; !ok {
			orphans++
		}
	}

	return &Result{
		Observations: len(ds.Observations),
		SessionLinks: len(ds.Links),
		Sessions:     len(sessions),
		DuplicateIDs: dups,
		OrphanLinks:  orphans,
	}
}
