// internal/metrics/prometheus.go
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hellobridge/internal/storage"
)

// Prometheus metrics
var (
	FetchCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hellobridge_fetch_cycles_total",
			Help: "Total fetch cycles executed",
		},
		[]string{"status"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hellobridge_fetch_duration_seconds",
			Help:    "Time spent running fetch cycles",
			Buckets: prometheus.DefBuckets,
		},
	)

	IncidentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hellobridge_incidents_ingested_total",
			Help: "Incidents created from fetched alerts",
		},
		[]string{"severity"},
	)

	CheckpointTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hellobridge_checkpoint_timestamp_seconds",
			Help: "Current fetch checkpoint as a unix timestamp",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hellobridge_api_request_duration_seconds",
			Help:    "HelloWorld API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hellobridge_commands_total",
			Help: "Commands executed through the registry",
		},
		[]string{"command", "status"},
	)

	ForwarderDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hellobridge_forwarder_deliveries_total",
			Help: "Incident batches handed to the forwarder",
		},
		[]string{"target", "status"},
	)

	StoredIncidents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hellobridge_stored_incidents",
			Help: "Incidents currently held in the local store",
		},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hellobridge_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)
)

type Collector struct {
	store storage.Store
}

func NewCollector(store storage.Store) *Collector {
	return &Collector{store: store}
}

// RecordFetchCycle tracks one poll cycle and its outcome.
func (c *Collector) RecordFetchCycle(duration time.Duration, err error) {
	FetchCycles.WithLabelValues(statusLabel(err)).Inc()
	FetchDuration.Observe(duration.Seconds())
}

// RecordIncident counts one ingested incident by severity.
func (c *Collector) RecordIncident(severity int) {
	IncidentsIngested.WithLabelValues(severityLabel(severity)).Inc()
}

// UpdateCheckpoint publishes the current checkpoint timestamp.
func (c *Collector) UpdateCheckpoint(ts int64) {
	CheckpointTimestamp.Set(float64(ts))
}

// RecordAPIRequest satisfies the vendor client's request recorder hook.
func (c *Collector) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	APIRequestDuration.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

// RecordCommand counts one command execution and its outcome.
func (c *Collector) RecordCommand(command string, err error) {
	CommandsTotal.WithLabelValues(command, statusLabel(err)).Inc()
}

// RecordForwarderDelivery counts one batch handed to a forwarder target.
func (c *Collector) RecordForwarderDelivery(target string, err error) {
	ForwarderDeliveries.WithLabelValues(target, statusLabel(err)).Inc()
}

func (c *Collector) RecordWebSocketConnection(delta int) {
	WebSocketConnections.Add(float64(delta))
}

// UpdateSystemMetrics refreshes the store-derived gauges.
func (c *Collector) UpdateSystemMetrics(ctx context.Context) error {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return err
	}

	StoredIncidents.Set(float64(stats.Incidents))
	CheckpointTimestamp.Set(float64(stats.Checkpoint))
	return nil
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func severityLabel(severity int) string {
	switch severity {
	case 1:
		return "low"
	case 2:
		return "medium"
	case 3:
		return "high"
	case 4:
		return "critical"
	default:
		return "unknown"
	}
}
