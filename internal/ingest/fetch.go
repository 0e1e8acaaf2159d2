// internal/ingest/fetch.go - Incremental alert fetch with checkpoint dedup
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hellobridge/internal/helloworld"
	"hellobridge/internal/storage"
)

// occurredLayout is the timestamp format the orchestration host expects on
// ingested incidents.
const occurredLayout = "2006-01-02T15:04:05.000Z"

// AlertSearcher is the single client call the fetch algorithm needs.
type AlertSearcher interface {
	SearchAlerts(ctx context.Context, p helloworld.SearchParams) ([]helloworld.Alert, error)
}

// Checkpoint marks the creation time of the most recent alert already
// ingested. It is an explicit in/out value: FetchAlerts never persists it.
type Checkpoint struct {
	LastFetch int64 // epoch seconds; zero means no fetch has completed yet
}

// FetchParams configures one fetch cycle.
type FetchParams struct {
	FirstFetch  int64  // epoch seconds; start point when the checkpoint is unset
	MinSeverity string // inclusive lower bound; empty means Low
	AlertStatus string
	AlertType   string
	MaxResults  int // capped at helloworld.MaxAlertsToFetch
}

// FetchAlerts retrieves alerts created at or after the checkpoint and turns
// the unseen ones into incidents.
//
// An alert whose creation time equals the checkpoint exactly counts as
// already seen and is skipped; only strictly newer alerts are returned. The
// returned checkpoint is max(T, max creation time observed), so it never
// moves backwards. Transport errors propagate unmodified and nothing is
// retried.
func FetchAlerts(ctx context.Context, client AlertSearcher, cp Checkpoint, p FetchParams) (Checkpoint, []*storage.Incident, error) {
	lastFetch := cp.LastFetch
	if lastFetch == 0 {
		lastFetch = p.FirstFetch
	}

	minSeverity := p.MinSeverity
	if minSeverity == "" {
		minSeverity = helloworld.Severities[0]
	}
	severities, err := helloworld.SeveritiesFrom(minSeverity)
	if err != nil {
		return cp, nil, err
	}

	maxResults := p.MaxResults
	if maxResults <= 0 || maxResults > helloworld.MaxAlertsToFetch {
		maxResults = helloworld.MaxAlertsToFetch
	}

	alerts, err := client.SearchAlerts(ctx, helloworld.SearchParams{
		Status:     p.AlertStatus,
		Type:       p.AlertType,
		Severity:   strings.Join(severities, ","),
		MaxResults: maxResults,
		StartTime:  lastFetch,
	})
	if err != nil {
		return cp, nil, err
	}

	latest := lastFetch
	incidents := make([]*storage.Incident, 0, len(alerts))

	for i := range alerts {
		alert := &alerts[i]
		created := alert.Created.Unix()

		// Creation time at or before the checkpoint means the alert was
		// already ingested on a previous cycle. The guard only applies once
		// a start point exists.
		if lastFetch > 0 && created <= lastFetch {
			continue
		}

		incident, err := incidentFromAlert(alert)
		if err != nil {
			return cp, nil, err
		}
		incidents = append(incidents, incident)

		if created > latest {
			latest = created
		}
	}

	return Checkpoint{LastFetch: latest}, incidents, nil
}

// incidentFromAlert shapes one alert into the incident record handed to the
// host. The alert name is mandatory; everything else degrades gracefully.
func incidentFromAlert(alert *helloworld.Alert) (*storage.Incident, error) {
	if alert.Name == "" {
		return nil, fmt.Errorf("alert %s has no name", alert.ID)
	}

	raw, err := json.Marshal(rawPayload(alert))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert %s: %w", alert.ID, err)
	}

	return &storage.Incident{
		ID:         uuid.New().String(),
		AlertID:    alert.ID,
		Name:       alert.Name,
		Occurred:   alert.Created.Time().Format(occurredLayout),
		Severity:   SeverityCode(alert.Severity),
		Created:    alert.Created.Unix(),
		RawJSON:    string(raw),
		IngestedAt: time.Now().UTC(),
	}, nil
}

// rawPayload returns the alert's untouched vendor payload, falling back to
// the typed fields for alerts built in-process.
func rawPayload(alert *helloworld.Alert) map[string]interface{} {
	if len(alert.Raw) > 0 {
		return alert.Raw
	}
	return map[string]interface{}{
		"alert_id":     alert.ID,
		"name":         alert.Name,
		"alert_status": alert.Status,
		"alert_type":   alert.Type,
		"severity":     alert.Severity,
		"created":      alert.Created.Unix(),
	}
}

// SeverityCode maps a vendor severity label to the host's 1-4 scale.
// Unknown labels fall back to Low, matching how the vendor defaults absent
// severities.
func SeverityCode(severity string) int {
	idx := helloworld.SeverityIndex(severity)
	if idx < 0 {
		idx = 0
	}
	return idx + 1
}
