package models

// SessionIDPrefix is the conventional prefix of every SESS_ID.
const SessionIDPrefix = "ssid_"

// UnknownSession is the grouping label for rows without a SESS_ID.
const UnknownSession = "Unknown"

// SessionLink pairs a session with one of its observations.
type SessionLink struct {
	SessID   string `db:"SESS_ID" json:"SESS_ID"`
	RefObsID string `db:"REFOBS_ID" json:"REFOBS_ID"`
}

// SessionRow is an observation joined with the session that references it.
// An observation listed by several sessions yields one row per session.
type SessionRow struct {
	Observation
	SessID string `db:"SESS_ID" json:"SESS_ID"`
}

// GroupKey returns the session label used when grouping rows.
func (r *SessionRow) GroupKey() string {
	if r.SessID == "" {
		return UnknownSession
	}
	return r.SessID
}

// JoinSessions joins links to observations by REFOBS_ID, in link order.
// A link whose REFOBS_ID is shared by several observations yields one row
// per observation, in observation order. Links whose observation is missing
// are dropped.
func JoinSessions(observations []Observation, links []SessionLink) []SessionRow {
	byID := make(map[string][]int, len(observations))
	for i := range observations {
		id := observations[i].RefObsID
		byID[id] = append(byID[id], i)
	}

	rows := make([]SessionRow, 0, len(links))
	for _, link := range links {
		for _, idx := range byID[link.RefObsID] {
			rows = append(rows, SessionRow{Observation: observations[idx], SessID: link.SessID})
		}
	}
	return rows
}
