package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/obsearch/internal/db"
	"github.com/thebtf/obsearch/internal/pattern"
	"github.com/thebtf/obsearch/pkg/models"
)

const (
	// instrumentationName scopes the OpenTelemetry instruments.
	instrumentationName = "github.com/thebtf/obsearch/internal/search"

	// slowSearchThreshold is the latency above which a search is logged.
	slowSearchThreshold = 100 * time.Millisecond

	// queryLogTruncateLen caps query text in logs.
	queryLogTruncateLen = 50

	// DefaultLoadTimeout bounds a snapshot load independently of any request.
	DefaultLoadTimeout = 2 * time.Minute

	snapshotKey = "snapshot"
)

// Search kinds, used as metric attributes.
const (
	KindObservation = "observation"
	KindSession     = "session"
)

// Dataset is an immutable snapshot of everything a search reads.
type Dataset struct {
	LoadedAt     time.Time
	Observations []models.Observation
	SessionRows  []models.SessionRow
}

// SearchMetrics tracks search statistics.
type SearchMetrics struct {
	TotalSearches  int64
	SessionSearch  int64
	ObsSearch      int64
	ClientErrors   int64
	SearchErrors   int64
	RowsServed     int64
	TotalLatencyNs int64
	SnapshotLoads  int64
	CoalescedLoads int64
}

// GetStats returns the current search statistics.
func (m *SearchMetrics) GetStats() map[string]any {
	total := atomic.LoadInt64(&m.TotalSearches)
	latency := atomic.LoadInt64(&m.TotalLatencyNs)

	avgLatencyMs := float64(0)
	if total > 0 {
		avgLatencyMs = float64(latency) / float64(total) / 1e6
	}

	return map[string]any{
		"total_searches":       total,
		"session_searches":     atomic.LoadInt64(&m.SessionSearch),
		"observation_searches": atomic.LoadInt64(&m.ObsSearch),
		"client_errors":        atomic.LoadInt64(&m.ClientErrors),
		"search_errors":        atomic.LoadInt64(&m.SearchErrors),
		"rows_served":          atomic.LoadInt64(&m.RowsServed),
		"snapshot_loads":       atomic.LoadInt64(&m.SnapshotLoads),
		"coalesced_loads":      atomic.LoadInt64(&m.CoalescedLoads),
		"avg_latency_ms":       avgLatencyMs,
	}
}

// Options configures a Manager.
type Options struct {
	PageSize    int
	PatternMode pattern.Mode
}

// Manager runs searches against a snapshot of the provider's dataset.
// The snapshot is loaded once and never refreshed.
type Manager struct {
	provider  db.Provider
	dataset   atomic.Pointer[Dataset]
	loadGroup singleflight.Group
	metrics   *SearchMetrics
	requests  metric.Int64Counter
	duration  metric.Float64Histogram
	pageSize  int
	mode      pattern.Mode
}

// NewManager creates a search manager over provider.
func NewManager(provider db.Provider, opts Options) *Manager {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PatternMode == "" {
		opts.PatternMode = pattern.ModeEscaped
	}

	m := &Manager{
		provider: provider,
		metrics:  &SearchMetrics{},
		pageSize: opts.PageSize,
		mode:     opts.PatternMode,
	}

	meter := otel.Meter(instrumentationName)
	var err error
	m.requests, err = meter.Int64Counter("obsearch.search.requests",
		metric.WithDescription("Search requests by kind and outcome"))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create search request counter")
	}
	m.duration, err = meter.Float64Histogram("obsearch.search.duration",
		metric.WithDescription("Search latency"),
		metric.WithUnit("ms"))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create search duration histogram")
	}

	return m
}

// PageSize returns the number of rows or sessions per page.
func (m *Manager) PageSize() int {
	return m.pageSize
}

// Metrics returns the search statistics collector.
func (m *Manager) Metrics() *SearchMetrics {
	return m.metrics
}

// Ready reports whether the snapshot has been loaded.
func (m *Manager) Ready() bool {
	return m.dataset.Load() != nil
}

// Loaded returns the snapshot without triggering a load.
func (m *Manager) Loaded() (*Dataset, bool) {
	ds := m.dataset.Load()
	return ds, ds != nil
}

// Snapshot returns the dataset, loading it on first use.
// Concurrent first callers share one load. The load is detached from the
// callers' cancellation, so a caller that gives up only stops waiting.
// Failed loads are not cached.
func (m *Manager) Snapshot(ctx context.Context) (*Dataset, error) {
	if ds := m.dataset.Load(); ds != nil {
		return ds, nil
	}

	ch := m.loadGroup.DoChan(snapshotKey, func() (any, error) {
		if ds := m.dataset.Load(); ds != nil {
			return ds, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultLoadTimeout)
		defer cancel()

		ds, err := m.load(loadCtx)
		if err != nil {
			return nil, err
		}
		m.dataset.Store(ds)
		return ds, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			atomic.AddInt64(&m.metrics.CoalescedLoads, 1)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dataset), nil
	}
}

// load reads observations and session links and joins them by REFOBS_ID.
func (m *Manager) load(ctx context.Context) (*Dataset, error) {
	start := time.Now()

	observations, err := m.provider.AllObservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	links, err := m.provider.AllSessionLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session links: %w", err)
	}
	rows := models.JoinSessions(observations, links)

	atomic.AddInt64(&m.metrics.SnapshotLoads, 1)
	log.Info().
		Int("observations", len(observations)).
		Int("session_links", len(links)).
		Int("session_rows", len(rows)).
		Dur("elapsed", time.Since(start)).
		Msg("Dataset snapshot loaded")

	return &Dataset{
		LoadedAt:     time.Now(),
		Observations: observations,
		SessionRows:  rows,
	}, nil
}

// SearchObservations filters observations and returns the requested page.
func (m *Manager) SearchObservations(ctx context.Context, f ObservationFilter, page int) (ObservationPage, error) {
	start := time.Now()

	ds, err := m.Snapshot(ctx)
	if err != nil {
		m.record(ctx, KindObservation, f.Pattern, 0, start, err)
		return ObservationPage{}, err
	}

	result, err := FindObservations(ds.Observations, f, page, m.pageSize, m.mode)
	m.record(ctx, KindObservation, f.Pattern, len(result.Rows), start, err)
	return result, err
}

// SearchSessions finds sessions matching query and returns the requested page.
func (m *Manager) SearchSessions(ctx context.Context, query string, page int) (SessionPage, error) {
	start := time.Now()

	// Reject an empty query before touching storage.
	if _, err := NormalizeSessionQuery(query); err != nil {
		m.record(ctx, KindSession, query, 0, start, err)
		return SessionPage{}, err
	}

	ds, err := m.Snapshot(ctx)
	if err != nil {
		m.record(ctx, KindSession, query, 0, start, err)
		return SessionPage{}, err
	}

	result, err := FindSessions(ds.SessionRows, query, page, m.pageSize, m.mode)
	m.record(ctx, KindSession, query, len(result.Rows), start, err)
	return result, err
}

// record updates counters, instruments and the slow-search log.
func (m *Manager) record(ctx context.Context, kind, query string, served int, start time.Time, err error) {
	latency := time.Since(start)

	atomic.AddInt64(&m.metrics.TotalSearches, 1)
	atomic.AddInt64(&m.metrics.TotalLatencyNs, latency.Nanoseconds())
	atomic.AddInt64(&m.metrics.RowsServed, int64(served))
	if kind == KindSession {
		atomic.AddInt64(&m.metrics.SessionSearch, 1)
	} else {
		atomic.AddInt64(&m.metrics.ObsSearch, 1)
	}

	outcome := "ok"
	switch {
	case err == nil:
	case IsClientError(err):
		outcome = "client_error"
		atomic.AddInt64(&m.metrics.ClientErrors, 1)
	default:
		outcome = "error"
		atomic.AddInt64(&m.metrics.SearchErrors, 1)
	}

	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(latency.Microseconds())/1000, attrs)
	}

	if latency > slowSearchThreshold {
		log.Warn().
			Str("kind", kind).
			Str("query", truncate(query, queryLogTruncateLen)).
			Dur("latency", latency).
			Msg("Slow search")
	}
}

// IsClientError reports whether err was caused by the request parameters.
func IsClientError(err error) bool {
	if errors.Is(err, ErrSessionIDRequired) {
		return true
	}
	var invalid *pattern.InvalidPatternError
	return errors.As(err, &invalid)
}
