// internal/web/admin_handlers.go - Store maintenance and forwarder endpoints
package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"hellobridge/internal/storage"
)

// PurgeRequest optionally overrides the configured retention window.
type PurgeRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

// POST /api/admin/purge - delete incident records past retention
func (s *Server) purgeIncidents(c *gin.Context) {
	retention := s.config.Database.Retention

	var req PurgeRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.OlderThanDays > 0 {
		retention = time.Duration(req.OlderThanDays) * 24 * time.Hour
	}

	cutoff := time.Now().Add(-retention)
	purged, err := s.store.PurgeIncidentsBefore(c.Request.Context(), cutoff)
	if err != nil {
		logrus.WithError(err).Error("Incident purge failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Purge failed"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"purged": purged,
		"cutoff": cutoff,
	}).Info("Purged incidents via API")

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"purged": purged,
			"cutoff": cutoff,
		},
	})
}

// POST /api/admin/compact - rewrite the store file to reclaim space
func (s *Server) compactStore(c *gin.Context) {
	start := time.Now()
	if err := s.store.Compact(c.Request.Context()); err != nil {
		logrus.WithError(err).Error("Store compaction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Compaction failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"duration": time.Since(start).String(),
		},
	})
}

// GET /api/forwarder/status
func (s *Server) forwarderStatus(c *gin.Context) {
	unforwarded := 0
	incidents, err := s.store.GetIncidents(c.Request.Context(), storage.IncidentFilters{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to inspect incidents"})
		return
	}
	for _, incident := range incidents {
		if !incident.Forwarded {
			unforwarded++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"target":      s.forwarder.Name(),
			"enabled":     s.config.Forwarder.Enabled(),
			"unforwarded": unforwarded,
		},
	})
}

// POST /api/forwarder/test - push a synthetic incident through the forwarder
func (s *Server) testForwarder(c *gin.Context) {
	probe := &storage.Incident{
		ID:       "forwarder-test",
		Name:     "HelloBridge forwarder test",
		Occurred: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Severity: 1,
		RawJSON:  `{"test":true}`,
	}

	err := s.forwarder.Forward(c.Request.Context(), []*storage.Incident{probe})
	s.metrics.RecordForwarderDelivery(s.forwarder.Name(), err)
	if err != nil {
		logrus.WithError(err).Warn("Forwarder test failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"target": s.forwarder.Name(),
			"status": "delivered",
		},
	})
}
