// internal/ingest/engine.go - Periodic alert poll engine
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hellobridge/internal/config"
	"hellobridge/internal/forwarder"
	"hellobridge/internal/metrics"
	"hellobridge/internal/storage"
)

// Broadcaster receives each freshly ingested batch, e.g. for a websocket
// feed. Implementations must not block.
type Broadcaster interface {
	BroadcastIncidents(incidents []*storage.Incident)
}

// Engine drives the periodic fetch cycle: load checkpoint, fetch, persist,
// forward, broadcast. Cycles never overlap; a manual trigger shares the same
// lock as the ticker.
type Engine struct {
	config    *config.Config
	client    AlertSearcher
	store     storage.Store
	forwarder forwarder.Forwarder
	metrics   *metrics.Collector

	broadcaster Broadcaster

	mu      sync.Mutex // guards running
	running bool
	cycleMu sync.Mutex // serializes fetch cycles
}

func NewEngine(cfg *config.Config, client AlertSearcher, store storage.Store, fwd forwarder.Forwarder, metricsCollector *metrics.Collector) *Engine {
	return &Engine{
		config:    cfg,
		client:    client,
		store:     store,
		forwarder: fwd,
		metrics:   metricsCollector,
	}
}

// SetBroadcaster attaches a live-feed sink. Must be called before Start.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

// Start launches the poll loop and the retention purge routine. It returns
// immediately; both routines stop when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	go e.runPurge(ctx)

	if !e.config.Fetch.IsEnabled() {
		logrus.Info("Periodic alert fetch disabled")
		return nil
	}

	logrus.WithField("interval", e.config.Fetch.Interval).Info("Starting alert poll engine")
	go e.runPoll(ctx)

	return nil
}

// Stop marks the engine stopped. The loops themselves exit with the context
// passed to Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	logrus.Info("Stopping alert poll engine")
	e.running = false
}

func (e *Engine) runPoll(ctx context.Context) {
	ticker := time.NewTicker(e.config.Fetch.Interval)
	defer ticker.Stop()

	// First cycle right away rather than one interval in
	if _, err := e.RunOnce(ctx, false); err != nil {
		logrus.WithError(err).Error("Initial fetch cycle failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.RunOnce(ctx, false); err != nil {
				logrus.WithError(err).Error("Fetch cycle failed")
			}
		}
	}
}

// RunOnce executes a single fetch cycle and records its outcome as a
// FetchRun. manual marks operator-triggered cycles. Vendor errors fail the
// cycle without touching the checkpoint; forwarder errors are logged and
// counted but never fail the cycle.
func (e *Engine) RunOnce(ctx context.Context, manual bool) (*storage.FetchRun, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	run := &storage.FetchRun{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Manual:    manual,
	}

	cycleErr := e.cycle(ctx, run)

	run.FinishedAt = time.Now().UTC()
	if cycleErr != nil {
		run.Error = cycleErr.Error()
	}
	e.metrics.RecordFetchCycle(run.FinishedAt.Sub(run.StartedAt), cycleErr)

	if err := e.store.SaveFetchRun(ctx, run); err != nil {
		logrus.WithError(err).Error("Failed to record fetch run")
	}

	return run, cycleErr
}

func (e *Engine) cycle(ctx context.Context, run *storage.FetchRun) error {
	lastFetch, err := e.store.GetCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	next, incidents, err := FetchAlerts(ctx, e.client, Checkpoint{LastFetch: lastFetch}, FetchParams{
		FirstFetch:  time.Now().Add(-e.config.Fetch.FirstFetch).Unix(),
		MinSeverity: e.config.Fetch.MinSeverity,
		AlertStatus: e.config.Fetch.AlertStatus,
		AlertType:   e.config.Fetch.AlertType,
		MaxResults:  e.config.Fetch.MaxAlerts,
	})
	if err != nil {
		return err
	}

	run.Incidents = len(incidents)
	run.Checkpoint = next.LastFetch

	if len(incidents) > 0 {
		if err := e.store.SaveIncidents(ctx, incidents); err != nil {
			return fmt.Errorf("failed to persist incidents: %w", err)
		}
	}
	if err := e.store.SetCheckpoint(ctx, next.LastFetch); err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	e.metrics.UpdateCheckpoint(next.LastFetch)

	for _, incident := range incidents {
		e.metrics.RecordIncident(incident.Severity)
	}

	if len(incidents) > 0 {
		e.forward(ctx, incidents)
		if e.broadcaster != nil {
			e.broadcaster.BroadcastIncidents(incidents)
		}
	}

	logrus.WithFields(logrus.Fields{
		"incidents":  len(incidents),
		"checkpoint": next.LastFetch,
		"manual":     run.Manual,
	}).Debug("Fetch cycle completed")

	return nil
}

// forward hands the batch to the configured forwarder. Delivery failures are
// logged and counted; the checkpoint has already advanced and stays put.
func (e *Engine) forward(ctx context.Context, incidents []*storage.Incident) {
	err := e.forwarder.Forward(ctx, incidents)
	e.metrics.RecordForwarderDelivery(e.forwarder.Name(), err)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"target":    e.forwarder.Name(),
			"incidents": len(incidents),
		}).Error("Failed to forward incidents")
		return
	}

	ids := make([]string, 0, len(incidents))
	for _, incident := range incidents {
		ids = append(ids, incident.ID)
	}
	if err := e.store.MarkForwarded(ctx, ids); err != nil {
		logrus.WithError(err).Error("Failed to mark incidents forwarded")
	}
}

// runPurge deletes incident records older than the retention window on the
// configured interval, and compacts the store when a compact interval is set.
func (e *Engine) runPurge(ctx context.Context) {
	purgeTicker := time.NewTicker(e.config.Database.PurgeInterval)
	defer purgeTicker.Stop()

	var compactCh <-chan time.Time
	if e.config.Database.CompactInterval > 0 {
		compactTicker := time.NewTicker(e.config.Database.CompactInterval)
		defer compactTicker.Stop()
		compactCh = compactTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-purgeTicker.C:
			cutoff := time.Now().Add(-e.config.Database.Retention)
			purged, err := e.store.PurgeIncidentsBefore(ctx, cutoff)
			if err != nil {
				logrus.WithError(err).Error("Incident purge failed")
				continue
			}
			if purged > 0 {
				logrus.WithFields(logrus.Fields{
					"purged": purged,
					"cutoff": cutoff,
				}).Info("Purged old incidents")
			}
		case <-compactCh:
			if err := e.store.Compact(ctx); err != nil {
				logrus.WithError(err).Error("Store compaction failed")
			}
		}
	}
}
