// Package gorm provides GORM-based database operations for obsearch.
package gorm

import (
	"github.com/thebtf/obsearch/pkg/models"
)

// GORM Models

// Observation is the stored form of models.Observation.
// ID only records load order; REFOBS_ID is the natural key.
type Observation struct {
	RefObsID              string `gorm:"column:refobs_id;index:idx_observation_refobs;not null"`
	Type                  string `gorm:"column:type"`
	RefStartDatetime      string `gorm:"column:ref_start_datetime"`
	RefEndDatetime        string `gorm:"column:ref_end_datetime"`
	Priority              string `gorm:"column:priority"`
	CmdLSARStartDatetime  string `gorm:"column:cmd_lsar_start_datetime"`
	CmdLSAREndDatetime    string `gorm:"column:cmd_lsar_end_datetime"`
	CmdSSARStartDatetime  string `gorm:"column:cmd_ssar_start_datetime;index:idx_observation_cmd_ssar_start"`
	CmdSSAREndDatetime    string `gorm:"column:cmd_ssar_end_datetime"`
	LSARPath              string `gorm:"column:lsar_path"`
	SSARPath              string `gorm:"column:ssar_path"`
	DatatakeID            string `gorm:"column:datatake_id"`
	SegmentDatatakeOnSSR  string `gorm:"column:segment_datatake_on_ssr"`
	ObsSupport            string `gorm:"column:obs_support"`
	IntroducedIn          string `gorm:"column:introduced_in;default:''"`
	ID                    int64  `gorm:"primaryKey;autoIncrement"`
	AlongTrackTimeOffset  int64  `gorm:"column:along_track_time_offset;default:0"`
	LSARSquintTimeOffset  int64  `gorm:"column:lsar_squint_time_offset;default:0"`
	SSARSquintTimeOffset  int64  `gorm:"column:ssar_squint_time_offset;default:0"`
	LSARJointOpTimeOffset int64  `gorm:"column:lsar_joint_op_time_offset;default:0"`
	SSARJointOpTimeOffset int64  `gorm:"column:ssar_joint_op_time_offset;default:0"`
	LSARConfigID          int64  `gorm:"column:lsar_config_id;default:0"`
	SSARConfigID          *int64 `gorm:"column:ssar_config_id;index:idx_observation_ssar_config"`
}

func (Observation) TableName() string { return "observation" }

// SessionObservation is one session membership link.
type SessionObservation struct {
	SessID   string `gorm:"column:sess_id;index:idx_session"`
	RefObsID string `gorm:"column:refobs_id;index:idx_obsid"`
	ID       int64  `gorm:"primaryKey;autoIncrement"`
}

func (SessionObservation) TableName() string { return "session_observation" }

func observationFromModel(o *models.Observation) Observation {
	return Observation{
		RefObsID:              o.RefObsID,
		Type:                  o.Type,
		RefStartDatetime:      o.RefStartDatetime,
		RefEndDatetime:        o.RefEndDatetime,
		AlongTrackTimeOffset:  o.AlongTrackTimeOffset,
		LSARSquintTimeOffset:  o.LSARSquintTimeOffset,
		SSARSquintTimeOffset:  o.SSARSquintTimeOffset,
		LSARJointOpTimeOffset: o.LSARJointOpTimeOffset,
		SSARJointOpTimeOffset: o.SSARJointOpTimeOffset,
		Priority:              o.Priority,
		CmdLSARStartDatetime:  o.CmdLSARStartDatetime,
		CmdLSAREndDatetime:    o.CmdLSAREndDatetime,
		CmdSSARStartDatetime:  o.CmdSSARStartDatetime,
		CmdSSAREndDatetime:    o.CmdSSAREndDatetime,
		LSARPath:              o.LSARPath,
		SSARPath:              o.SSARPath,
		LSARConfigID:          o.LSARConfigID,
		SSARConfigID:          ssarConfigPtr(o),
		DatatakeID:            o.DatatakeID,
		SegmentDatatakeOnSSR:  o.SegmentDatatakeOnSSR,
		ObsSupport:            o.ObsSupport,
		IntroducedIn:          o.IntroducedIn,
	}
}

func ssarConfigPtr(o *models.Observation) *int64 {
	if o.SSARConfigUnset {
		return nil
	}
	id := o.SSARConfigID
	return &id
}

func (o *Observation) toModel() models.Observation {
	out := models.Observation{
		RefObsID:              o.RefObsID,
		Type:                  o.Type,
		RefStartDatetime:      o.RefStartDatetime,
		RefEndDatetime:        o.RefEndDatetime,
		AlongTrackTimeOffset:  o.AlongTrackTimeOffset,
		LSARSquintTimeOffset:  o.LSARSquintTimeOffset,
		SSARSquintTimeOffset:  o.SSARSquintTimeOffset,
		LSARJointOpTimeOffset: o.LSARJointOpTimeOffset,
		SSARJointOpTimeOffset: o.SSARJointOpTimeOffset,
		Priority:              o.Priority,
		CmdLSARStartDatetime:  o.CmdLSARStartDatetime,
		CmdLSAREndDatetime:    o.CmdLSAREndDatetime,
		CmdSSARStartDatetime:  o.CmdSSARStartDatetime,
		CmdSSAREndDatetime:    o.CmdSSAREndDatetime,
		LSARPath:              o.LSARPath,
		SSARPath:              o.SSARPath,
		LSARConfigID:          o.LSARConfigID,
		DatatakeID:            o.DatatakeID,
		SegmentDatatakeOnSSR:  o.SegmentDatatakeOnSSR,
		ObsSupport:            o.ObsSupport,
		IntroducedIn:          o.IntroducedIn,
	}
	if o.SSARConfigID == nil {
		out.SSARConfigUnset = true
	} else {
		out.SSARConfigID = *o.SSARConfigID
	}
	return out
}
