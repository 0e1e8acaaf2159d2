// internal/storage/store.go
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for database operations
type Store interface {
	// Incident operations
	SaveIncidents(ctx context.Context, incidents []*Incident) error
	GetIncident(ctx context.Context, id string) (*Incident, error)
	GetIncidents(ctx context.Context, filters IncidentFilters) ([]Incident, error)
	MarkForwarded(ctx context.Context, ids []string) error
	PurgeIncidentsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Fetch run operations
	SaveFetchRun(ctx context.Context, run *FetchRun) error
	GetFetchRuns(ctx context.Context, limit int) ([]FetchRun, error)

	// Checkpoint operations. A zero checkpoint means no fetch has completed.
	GetCheckpoint(ctx context.Context) (int64, error)
	SetCheckpoint(ctx context.Context, ts int64) error

	// Maintenance
	Stats(ctx context.Context) (*StoreStats, error)
	Compact(ctx context.Context) error

	// Close the database connection
	Close() error
}
