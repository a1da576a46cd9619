// Package db defines the storage interfaces for obsearch.
package db

import (
	"context"

	"github.com/thebtf/obsearch/pkg/models"
)

// ObservationReader defines read operations for observations.
type ObservationReader interface {
	// AllObservations returns every observation in storage order.
	AllObservations(ctx context.Context) ([]models.Observation, error)
}

// SessionReader defines read operations for session membership.
type SessionReader interface {
	// AllSessionLinks returns every (SESS_ID, REFOBS_ID) pair in storage order.
	// Links are joined to observations by REFOBS_ID in memory.
	AllSessionLinks(ctx context.Context) ([]models.SessionLink, error)
}

// Provider is the read-only dataset handle the search layer runs against.
type Provider interface {
	ObservationReader
	SessionReader
	Ping(ctx context.Context) error
	Close() error
}

// Importer replaces the stored dataset. Only the offline loader uses it.
type Importer interface {
	ReplaceDataset(ctx context.Context, observations []models.Observation, links []models.SessionLink) error
}

// Store is a Provider that can also be bulk loaded.
type Store interface {
	Provider
	Importer
}
