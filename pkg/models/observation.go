// Package models contains domain models for obsearch.
package models

import "strconv"

// ObservationIDPrefix is the conventional prefix of every REFOBS_ID.
const ObservationIDPrefix = "oid_"

// Observation is one scheduled acquisition from the planning dataset.
// JSON keys match the source column names so API clients see the same
// shape the bulk loader wrote.
type Observation struct {
	RefObsID              string `db:"REFOBS_ID" json:"REFOBS_ID"`
	Type                  string `db:"TYPE" json:"TYPE"`
	RefStartDatetime      string `db:"REF_START_DATETIME" json:"REF_START_DATETIME"`
	RefEndDatetime        string `db:"REF_END_DATETIME" json:"REF_END_DATETIME"`
	AlongTrackTimeOffset  int64  `db:"ALONG_TRACK_TIME_OFFSET" json:"ALONG_TRACK_TIME_OFFSET"`
	LSARSquintTimeOffset  int64  `db:"LSAR_SQUINT_TIME_OFFSET" json:"LSAR_SQUINT_TIME_OFFSET"`
	SSARSquintTimeOffset  int64  `db:"SSAR_SQUINT_TIME_OFFSET" json:"SSAR_SQUINT_TIME_OFFSET"`
	LSARJointOpTimeOffset int64  `db:"LSAR_JOINT_OP_TIME_OFFSET" json:"LSAR_JOINT_OP_TIME_OFFSET"`
	SSARJointOpTimeOffset int64  `db:"SSAR_JOINT_OP_TIME_OFFSET" json:"SSAR_JOINT_OP_TIME_OFFSET"`
	Priority              string `db:"PRIORITY" json:"PRIORITY"`
	CmdLSARStartDatetime  string `db:"CMD_LSAR_START_DATETIME" json:"CMD_LSAR_START_DATETIME"`
	CmdLSAREndDatetime    string `db:"CMD_LSAR_END_DATETIME" json:"CMD_LSAR_END_DATETIME"`
	CmdSSARStartDatetime  string `db:"CMD_SSAR_START_DATETIME" json:"CMD_SSAR_START_DATETIME"`
	CmdSSAREndDatetime    string `db:"CMD_SSAR_END_DATETIME" json:"CMD_SSAR_END_DATETIME"`
	LSARPath              string `db:"LSAR_PATH" json:"LSAR_PATH"`
	SSARPath              string `db:"SSAR_PATH" json:"SSAR_PATH"`
	LSARConfigID          int64  `db:"LSAR_CONFIG_ID" json:"LSAR_CONFIG_ID"`
	SSARConfigID          int64  `db:"SSAR_CONFIG_ID" json:"SSAR_CONFIG_ID"`
	DatatakeID            string `db:"DATATAKE_ID" json:"DATATAKE_ID"`
	SegmentDatatakeOnSSR  string `db:"SEGMENT_DATATAKE_ON_SSR" json:"SEGMENT_DATATAKE_ON_SSR"`
	ObsSupport            string `db:"OBS_SUPPORT" json:"OBS_SUPPORT"`
	IntroducedIn          string `db:"INTRODUCED_IN" json:"INTRODUCED_IN"`

	// SSARConfigUnset marks a NULL SSAR_CONFIG_ID. SSARConfigID is 0 then.
	SSARConfigUnset bool `db:"-" json:"-"`
}

// Columns lists the observation columns in table order.
// Stores use it to build SELECT and INSERT statements.
var Columns = []string{
	"REFOBS_ID",
	"TYPE",
	"REF_START_DATETIME",
	"REF_END_DATETIME",
	"ALONG_TRACK_TIME_OFFSET",
	"LSAR_SQUINT_TIME_OFFSET",
	"SSAR_SQUINT_TIME_OFFSET",
	"LSAR_JOINT_OP_TIME_OFFSET",
	"SSAR_JOINT_OP_TIME_OFFSET",
	"PRIORITY",
	"CMD_LSAR_START_DATETIME",
	"CMD_LSAR_END_DATETIME",
	"CMD_SSAR_START_DATETIME",
	"CMD_SSAR_END_DATETIME",
	"LSAR_PATH",
	"SSAR_PATH",
	"LSAR_CONFIG_ID",
	"SSAR_CONFIG_ID",
	"DATATAKE_ID",
	"SEGMENT_DATATAKE_ON_SSR",
	"OBS_SUPPORT",
	"INTRODUCED_IN",
}

// Values returns the column values in the order of Columns.
func (o *Observation) Values() []any {
	return []any{
		o.RefObsID,
		o.Type,
		o.RefStartDatetime,
		o.RefEndDatetime,
		o.AlongTrackTimeOffset,
		o.LSARSquintTimeOffset,
		o.SSARSquintTimeOffset,
		o.LSARJointOpTimeOffset,
		o.SSARJointOpTimeOffset,
		o.Priority,
		o.CmdLSARStartDatetime,
		o.CmdLSAREndDatetime,
		o.CmdSSARStartDatetime,
		o.CmdSSAREndDatetime,
		o.LSARPath,
		o.SSARPath,
		o.LSARConfigID,
		o.ssarConfigValue(),
		o.DatatakeID,
		o.SegmentDatatakeOnSSR,
		o.ObsSupport,
		o.IntroducedIn,
	}
}

// ImagingDatetimes returns the reference and command start/end datetimes
// that the imaging filter searches.
func (o *Observation) ImagingDatetimes() [6]string {
	return [6]string{
		o.RefStartDatetime,
		o.RefEndDatetime,
		o.CmdSSARStartDatetime,
		o.CmdSSAREndDatetime,
		o.CmdLSARStartDatetime,
		o.CmdLSAREndDatetime,
	}
}

// SSARConfigKey returns SSAR_CONFIG_ID in the textual form clients send.
// A NULL id yields the empty string.
func (o *Observation) SSARConfigKey() string {
	if o.SSARConfigUnset {
		return ""
	}
	return strconv.FormatInt(o.SSARConfigID, 10)
}

func (o *Observation) ssarConfigValue() any {
	if o.SSARConfigUnset {
		return nil
	}
	return o.SSARConfigID
}
