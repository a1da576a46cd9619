// Package search implements observation and session search for obsearch.
package search

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/obsearch/internal/pattern"
	"github.com/thebtf/obsearch/pkg/models"
)

// ErrSessionIDRequired is returned when a session search has an empty query.
var ErrSessionIDRequired = errors.New("Session ID is required")

// ObservationFilter holds the optional observation predicates.
// Empty fields are not applied.
type ObservationFilter struct {
	Pattern  string // wildcard on REFOBS_ID, "oid_" implied
	Config   string // exact SSAR_CONFIG_ID
	Imaging  string // substring of any reference/command datetime
	CmdStart string // lower bound on the CMD_SSAR_START_DATETIME prefix
	CmdEnd   string // upper bound on the CMD_SSAR_END_DATETIME prefix
}

// IsEmpty reports whether no predicate is set.
func (f ObservationFilter) IsEmpty() bool {
	return f == ObservationFilter{}
}

// ObservationPage is one page of matching observations.
type ObservationPage struct {
	Rows  []models.Observation
	Total int
}

// SessionPage is one page of matching sessions, flattened to rows.
// Total counts distinct sessions, not rows.
type SessionPage struct {
	Rows       []models.SessionRow
	SessionIDs []string
	Total      int
}

// FindObservations applies f to rows and returns the requested page.
// Input order is preserved.
func FindObservations(rows []models.Observation, f ObservationFilter, page, pageSize int, mode pattern.Mode) (ObservationPage, error) {
	matched, err := FilterObservations(rows, f, mode)
	if err != nil {
		return ObservationPage{}, err
	}

	lo, hi := SliceBounds(len(matched), page, pageSize)
	return ObservationPage{
		Rows:  matched[lo:hi:hi],
		Total: len(matched),
	}, nil
}

// FilterObservations returns the rows that pass every active predicate of f.
// The result never aliases rows.
func FilterObservations(rows []models.Observation, f ObservationFilter, mode pattern.Mode) ([]models.Observation, error) {
	if f.IsEmpty() {
		all := make([]models.Observation, len(rows))
		copy(all, rows)
		return all, nil
	}

	preds, err := observationPredicates(f, mode)
	if err != nil {
		return nil, err
	}

	matched := make([]models.Observation, 0, len(rows))
	for i := range rows {
		if matchesAll(&rows[i], preds) {
			matched = append(matched, rows[i])
		}
	}
	return matched, nil
}

type observationPredicate func(o *models.Observation) bool

func matchesAll(o *models.Observation, preds []observationPredicate) bool {
	for _, p := range preds {
		if !p(o) {
			return false
		}
	}
	return true
}

// observationPredicates builds the active predicates in evaluation order.
func observationPredicates(f ObservationFilter, mode pattern.Mode) ([]observationPredicate, error) {
	var preds []observationPredicate

	if f.Pattern != "" {
		m, err := pattern.Compile(f.Pattern, models.ObservationIDPrefix, mode)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("expr", m.String()).Msg("Observation pattern compiled")
		preds = append(preds, func(o *models.Observation) bool {
			return m.Match(o.RefObsID)
		})
	}

	if f.Config != "" {
		config := f.Config
		preds = append(preds, func(o *models.Observation) bool {
			return o.SSARConfigKey() == config
		})
	}

	if f.Imaging != "" {
		imaging := f.Imaging
		preds = append(preds, func(o *models.Observation) bool {
			for _, dt := range o.ImagingDatetimes() {
				if strings.Contains(dt, imaging) {
					return true
				}
			}
			return false
		})
	}

	if f.CmdStart != "" {
		start := f.CmdStart
		preds = append(preds, func(o *models.Observation) bool {
			return truncate(o.CmdSSARStartDatetime, len(start)) >= start
		})
	}

	if f.CmdEnd != "" {
		end := f.CmdEnd
		preds = append(preds, func(o *models.Observation) bool {
			return truncate(o.CmdSSAREndDatetime, len(end)) <= end
		})
	}

	return preds, nil
}

// truncate returns the first n bytes of s, or s if it is shorter.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// NormalizeSessionQuery trims q and prefixes "ssid_" unless it is already
// there in any letter case.
func NormalizeSessionQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ErrSessionIDRequired
	}
	if !strings.HasPrefix(strings.ToLower(q), models.SessionIDPrefix) {
		q = models.SessionIDPrefix + q
	}
	return q, nil
}

// FindSessions matches session ids against query, groups the matching rows
// by session in first-seen order and returns the sessions on page.
func FindSessions(rows []models.SessionRow, query string, page, pageSize int, mode pattern.Mode) (SessionPage, error) {
	groups, order, err := GroupSessions(rows, query, mode)
	if err != nil {
		return SessionPage{}, err
	}

	lo, hi := SliceBounds(len(order), page, pageSize)
	selected := order[lo:hi:hi]

	n := 0
	for _, id := range selected {
		n += len(groups[id])
	}
	out := make([]models.SessionRow, 0, n)
	for _, id := range selected {
		out = append(out, groups[id]...)
	}

	return SessionPage{
		Rows:       out,
		SessionIDs: selected,
		Total:      len(order),
	}, nil
}

// GroupSessions returns the matching rows keyed by session label and the
// labels in the order they first appear.
func GroupSessions(rows []models.SessionRow, query string, mode pattern.Mode) (map[string][]models.SessionRow, []string, error) {
	normalized, err := NormalizeSessionQuery(query)
	if err != nil {
		return nil, nil, err
	}
	m, err := pattern.Compile(normalized, "", mode)
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Str("expr", m.String()).Msg("Session pattern compiled")

	groups := make(map[string][]models.SessionRow)
	var order []string
	for i := range rows {
		if !m.Match(rows[i].SessID) {
			continue
		}
		key := rows[i].GroupKey()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rows[i])
	}
	return groups, order, nil
}
