// internal/web/handlers.go - Command dispatch and ingest API handlers
package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"hellobridge/internal/command"
	"hellobridge/internal/helloworld"
	"hellobridge/internal/storage"
)

// CommandRequest is the body of a generic command dispatch.
type CommandRequest struct {
	Args map[string]string `json:"args"`
}

// POST /api/commands/:name - run any registered command
func (s *Server) executeCommand(c *gin.Context) {
	name := c.Param("name")
	if _, ok := s.registry.Get(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown command: " + name})
		return
	}

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.dispatch(c, name, command.Args(req.Args))
}

// GET /api/commands - list the registered command names
func (s *Server) listCommands(c *gin.Context) {
	names := s.registry.Names()
	c.JSON(http.StatusOK, gin.H{
		"data":  names,
		"count": len(names),
	})
}

// GET /api/reputation/ip?ip=1.1.1.1[,2.2.2.2]&threshold=65
func (s *Server) ipReputation(c *gin.Context) {
	s.dispatch(c, "ip", command.Args{
		"ip":        c.Query("ip"),
		"threshold": c.Query("threshold"),
	})
}

// GET /api/reputation/domain?domain=example.com&threshold=65
func (s *Server) domainReputation(c *gin.Context) {
	s.dispatch(c, "domain", command.Args{
		"domain":    c.Query("domain"),
		"threshold": c.Query("threshold"),
	})
}

// GET /api/alerts?status=&severity=&alert_type=&start_time=&max_results=
func (s *Server) searchAlerts(c *gin.Context) {
	s.dispatch(c, "helloworld-search-alerts", command.Args{
		"status":      c.Query("status"),
		"severity":    c.Query("severity"),
		"alert_type":  c.Query("alert_type"),
		"start_time":  c.Query("start_time"),
		"max_results": c.Query("max_results"),
	})
}

// GET /api/alerts/:id
func (s *Server) getAlert(c *gin.Context) {
	s.dispatch(c, "helloworld-get-alert", command.Args{
		"alert_id": c.Param("id"),
	})
}

// AlertStatusRequest is the body of a status update.
type AlertStatusRequest struct {
	Status string `json:"status"`
}

// POST /api/alerts/:id/status
func (s *Server) updateAlertStatus(c *gin.Context) {
	var req AlertStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.dispatch(c, "helloworld-update-alert-status", command.Args{
		"alert_id": c.Param("id"),
		"status":   req.Status,
	})
}

// ScanRequest is the body of a scan start.
type ScanRequest struct {
	Hostname string `json:"hostname"`
}

// POST /api/scans
func (s *Server) startScan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.dispatch(c, "helloworld-scan-start", command.Args{
		"hostname": req.Hostname,
	})
}

// GET /api/scans/:id
func (s *Server) scanStatus(c *gin.Context) {
	s.dispatch(c, "helloworld-scan-status", command.Args{
		"scan_id": c.Param("id"),
	})
}

// GET /api/scans/:id/results?format=json|file
func (s *Server) scanResults(c *gin.Context) {
	format := c.Query("format")
	if format == "" {
		// JSON suits an HTTP caller better than the command's file default
		format = "json"
	}

	s.dispatch(c, "helloworld-scan-results", command.Args{
		"scan_id": c.Param("id"),
		"format":  format,
	})
}

// GET /api/incidents?severity=&since=&limit=
func (s *Server) getIncidents(c *gin.Context) {
	filters := storage.IncidentFilters{}

	if raw := c.Query("severity"); raw != "" {
		severity, err := strconv.Atoi(raw)
		if err != nil || severity < 1 || severity > 4 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be 1-4"})
			return
		}
		filters.MinSeverity = severity
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filters.Since = &since
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		filters.Limit = limit
	}

	incidents, err := s.store.GetIncidents(c.Request.Context(), filters)
	if err != nil {
		logrus.WithError(err).Error("Failed to list incidents")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list incidents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  incidents,
		"count": len(incidents),
	})
}

// GET /api/incidents/:id
func (s *Server) getIncident(c *gin.Context) {
	incident, err := s.store.GetIncident(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get incident"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": incident})
}

// GET /api/fetch/runs?limit=
func (s *Server) getFetchRuns(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		limit = parsed
	}

	runs, err := s.store.GetFetchRuns(c.Request.Context(), limit)
	if err != nil {
		logrus.WithError(err).Error("Failed to list fetch runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list fetch runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  runs,
		"count": len(runs),
	})
}

// POST /api/fetch/run - trigger one fetch cycle now
func (s *Server) triggerFetch(c *gin.Context) {
	run, err := s.engine.RunOnce(c.Request.Context(), true)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}

// GET /api/checkpoint
func (s *Server) getCheckpoint(c *gin.Context) {
	cp, err := s.store.GetCheckpoint(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get checkpoint"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"last_fetch": cp}})
}

// CheckpointRequest resets the fetch checkpoint.
type CheckpointRequest struct {
	LastFetch int64 `json:"last_fetch"`
}

// PUT /api/checkpoint - admin reset, e.g. to replay a window
func (s *Server) setCheckpoint(c *gin.Context) {
	var req CheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.LastFetch < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "last_fetch must be non-negative"})
		return
	}

	if err := s.store.SetCheckpoint(c.Request.Context(), req.LastFetch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set checkpoint"})
		return
	}
	s.metrics.UpdateCheckpoint(req.LastFetch)

	logrus.WithField("last_fetch", req.LastFetch).Warn("Checkpoint reset via API")
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"last_fetch": req.LastFetch}})
}

// dispatch runs one registry command and writes its result or error.
func (s *Server) dispatch(c *gin.Context, name string, args command.Args) {
	result, err := s.registry.Execute(c.Request.Context(), name, args)
	s.metrics.RecordCommand(name, err)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondResult(c, result)
}

// respondResult writes a command result: file results become attachments,
// everything else the standard envelope.
func (s *Server) respondResult(c *gin.Context, result *command.Result) {
	if result.File != nil {
		c.Header("Content-Disposition", `attachment; filename="`+result.File.Name+`"`)
		c.Data(http.StatusOK, result.File.ContentType, result.File.Data)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":          result.Outputs,
		"readable":      result.Readable,
		"indicators":    result.Indicators,
		"relationships": result.Relationships,
		"count":         len(result.Indicators),
	})
}

// respondError maps command failures to HTTP statuses: caller mistakes are
// 400, vendor transport trouble is 502, the rest 500.
func (s *Server) respondError(c *gin.Context, err error) {
	var argErr *command.ArgumentError
	var apiErr *helloworld.APIError

	switch {
	case errors.As(err, &argErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
