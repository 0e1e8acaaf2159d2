// internal/storage/models.go
package storage

import (
	"time"
)

// Incident is one ingested alert as persisted locally. Name, Occurred,
// Severity and RawJSON mirror the payload handed to the orchestration host;
// the remaining fields are local bookkeeping.
type Incident struct {
	ID         string    `json:"id"`       // local UUID
	AlertID    string    `json:"alert_id"` // vendor alert id
	Name       string    `json:"name"`
	Occurred   string    `json:"occurred"` // ISO-8601
	Severity   int       `json:"severity"` // 1 Low .. 4 Critical
	Created    int64     `json:"created"`  // vendor created time, epoch seconds
	RawJSON    string    `json:"rawJSON"`
	Forwarded  bool      `json:"forwarded"`
	IngestedAt time.Time `json:"ingested_at"`
}

// FetchRun records the outcome of one poll cycle.
type FetchRun struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Incidents  int       `json:"incidents"`
	Checkpoint int64     `json:"checkpoint"` // checkpoint after the cycle, epoch seconds
	Manual     bool      `json:"manual"`
	Error      string    `json:"error,omitempty"`
}

// IncidentFilters narrows incident listings.
type IncidentFilters struct {
	MinSeverity int
	Since       *time.Time // vendor created time lower bound
	Limit       int
}

// StoreStats describes database size and content.
type StoreStats struct {
	Incidents      int        `json:"incidents"`
	FetchRuns      int        `json:"fetch_runs"`
	Checkpoint     int64      `json:"checkpoint"`
	OldestIncident *time.Time `json:"oldest_incident,omitempty"`
	NewestIncident *time.Time `json:"newest_incident,omitempty"`
	SizeBytes      int64      `json:"size_bytes"`
	Path           string     `json:"path"`
}
