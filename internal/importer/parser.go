// Package importer loads the observation XML export into a dataset store.
package importer

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/thebtf/obsearch/pkg/models"
)

// document mirrors the export layout. The root element name is not checked.
type document struct {
	Observations []obsElement     `xml:"OBSERVATIONS>OBS"`
	Sessions     []sessionElement `xml:"SSAR_SESSIONS>S_IMG_SESSION"`
}

type obsElement struct {
	RefObsID              string `xml:"REFOBS_ID"`
	Type                  string `xml:"TYPE"`
	RefStartDatetime      string `xml:"REF_START_DATETIME"`
	RefEndDatetime        string `xml:"REF_END_DATETIME"`
	AlongTrackTimeOffset  string `xml:"ALONG_TRACK_TIME_OFFSET"`
	LSARSquintTimeOffset  string `xml:"LSAR_SQUINT_TIME_OFFSET"`
	SSARSquintTimeOffset  string `xml:"SSAR_SQUINT_TIME_OFFSET"`
	LSARJointOpTimeOffset string `xml:"LSAR_JOINT_OP_TIME_OFFSET"`
	SSARJointOpTimeOffset string `xml:"SSAR_JOINT_OP_TIME_OFFSET"`
	Priority              string `xml:"PRIORITY"`
	CmdLSARStartDatetime  string `xml:"CMD_LSAR_START_DATETIME"`
	CmdLSAREndDatetime    string `xml:"CMD_LSAR_END_DATETIME"`
	CmdSSARStartDatetime  string `xml:"CMD_SSAR_START_DATETIME"`
	CmdSSAREndDatetime    string `xml:"CMD_SSAR_END_DATETIME"`
	LSARPath              string `xml:"LSAR_PATH"`
	SSARPath              string `xml:"SSAR_PATH"`
	LSARConfigID          string `xml:"LSAR_CONFIG_ID"`
	SSARConfigID          string `xml:"SSAR_CONFIG_ID"`
	DatatakeID            string `xml:"DATATAKE_ID"`
	SegmentDatatakeOnSSR  string `xml:"SEGMENT_DATATAKE_ON_SSR"`
	ObsSupport            string `xml:"OBS_SUPPORT"`
	IntroducedIn          string `xml:"INTRODUCED_IN"`
}

type sessionElement struct {
	SessID    string `xml:"SESS_ID"`
	RefObsIDs string `xml:"REFOBS_IDS"`
}

// Dataset is the parsed content of an export.
type Dataset struct {
	Observations []models.Observation
	Links        []models.SessionLink
}

// FieldError reports an integer field that could not be parsed.
type FieldError struct {
	Index    int // zero-based position of the OBS element
	RefObsID string
	Field    string
	Value    string
	Err      error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("observation %d (%s): field %s: invalid integer %q", e.Index, e.RefObsID, e.Field, e.Value)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Parse reads an export document from r.
func Parse(r io.Reader) (*Dataset, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}

	ds := &Dataset{
		Observations: make([]models.Observation, 0, len(doc.Observations)),
	}
	for i := range doc.Observations {
		o, err := doc.Observations[i].toModel(i)
		if err != nil {
			return nil, err
		}
		ds.Observations = append(ds.Observations, o)
	}

	for _, s := range doc.Sessions {
		for _, id := range strings.Fields(s.RefObsIDs) {
			ds.Links = append(ds.Links, models.SessionLink{SessID: s.SessID, RefObsID: id})
		}
	}
	return ds, nil
}

func (e *obsElement) toModel(index int) (models.Observation, error) {
	o := models.Observation{
		RefObsID:             e.RefObsID,
		Type:                 e.Type,
		RefStartDatetime:     e.RefStartDatetime,
		RefEndDatetime:       e.RefEndDatetime,
		Priority:             e.Priority,
		CmdLSARStartDatetime: e.CmdLSARStartDatetime,
		CmdLSAREndDatetime:   e.CmdLSAREndDatetime,
		CmdSSARStartDatetime: e.CmdSSARStartDatetime,
		CmdSSAREndDatetime:   e.CmdSSAREndDatetime,
		LSARPath:             e.LSARPath,
		SSARPath:             e.SSARPath,
		DatatakeID:           e.DatatakeID,
		SegmentDatatakeOnSSR: e.SegmentDatatakeOnSSR,
		ObsSupport:           e.ObsSupport,
		IntroducedIn:         e.IntroducedIn,
	}

	ints := []struct {
		field string
		raw   string
		dst   *int64
	}{
		{"ALONG_TRACK_TIME_OFFSET", e.AlongTrackTimeOffset, &o.AlongTrackTimeOffset},
		{"LSAR_SQUINT_TIME_OFFSET", e.LSARSquintTimeOffset, &o.LSARSquintTimeOffset},
		{"SSAR_SQUINT_TIME_OFFSET", e.SSARSquintTimeOffset, &o.SSARSquintTimeOffset},
		{"LSAR_JOINT_OP_TIME_OFFSET", e.LSARJointOpTimeOffset, &o.LSARJointOpTimeOffset},
		{"SSAR_JOINT_OP_TIME_OFFSET", e.SSARJointOpTimeOffset, &o.SSARJointOpTimeOffset},
		{"LSAR_CONFIG_ID", e.LSARConfigID, &o.LSARConfigID},
		{"SSAR_CONFIG_ID", e.SSARConfigID, &o.SSARConfigID},
	}
	for _, f := range ints {
		v, err := parseInt(f.raw)
		if err != nil {
			return models.Observation{}, &FieldError{
				Index:    index,
				RefObsID: e.RefObsID,
				Field:    f.field,
				Value:    f.raw,
				Err:      err,
			}
		}
		*f.dst = v
	}
	return o, nil
}

// parseInt treats a missing or blank value as 0.
func parseInt(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
