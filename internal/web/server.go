// internal/web/server.go
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"hellobridge/internal/command"
	"hellobridge/internal/config"
	"hellobridge/internal/forwarder"
	"hellobridge/internal/ingest"
	"hellobridge/internal/metrics"
	"hellobridge/internal/storage"
)

type Server struct {
	config    *config.Config
	store     storage.Store
	registry  *command.Registry
	engine    *ingest.Engine
	forwarder forwarder.Forwarder
	metrics   *metrics.Collector
	router    *gin.Engine
	server    *http.Server
	startedAt time.Time

	wsMu      sync.Mutex
	wsClients map[*WSClient]bool
}

func NewServer(cfg *config.Config, store storage.Store, registry *command.Registry, engine *ingest.Engine, fwd forwarder.Forwarder, metricsCollector *metrics.Collector) *Server {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	server := &Server{
		config:    cfg,
		store:     store,
		registry:  registry,
		engine:    engine,
		forwarder: fwd,
		metrics:   metricsCollector,
		router:    router,
		startedAt: time.Now(),
		wsClients: make(map[*WSClient]bool),
	}

	server.setupRoutes()
	return server
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	logrus.WithField("port", s.config.Server.Port).Info("Starting web server")

	// Start metrics update routine
	go s.updateMetricsRoutine(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		// Generic command dispatch plus convenience routes onto the same
		// registry
		api.POST("/commands/:name", s.executeCommand)
		api.GET("/commands", s.listCommands)

		api.GET("/reputation/ip", s.ipReputation)
		api.GET("/reputation/domain", s.domainReputation)

		api.GET("/alerts", s.searchAlerts)
		api.GET("/alerts/:id", s.getAlert)
		api.POST("/alerts/:id/status", s.updateAlertStatus)

		api.POST("/scans", s.startScan)
		api.GET("/scans/:id", s.scanStatus)
		api.GET("/scans/:id/results", s.scanResults)

		// Ingest surface
		api.GET("/incidents", s.getIncidents)
		api.GET("/incidents/:id", s.getIncident)
		api.GET("/fetch/runs", s.getFetchRuns)
		api.POST("/fetch/run", s.triggerFetch)
		api.GET("/checkpoint", s.getCheckpoint)
		api.PUT("/checkpoint", s.setCheckpoint)

		// Admin
		api.POST("/admin/purge", s.purgeIncidents)
		api.POST("/admin/compact", s.compactStore)
		api.GET("/forwarder/status", s.forwarderStatus)
		api.POST("/forwarder/test", s.testForwarder)
		api.GET("/stats", s.getStats)
		api.GET("/version", s.getVersion)
	}

	// WebSocket incident feed
	s.router.GET("/ws", s.handleWebSocket)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   Version,
		"uptime":    time.Since(s.startedAt).String(),
	})
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to get store stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) updateMetricsRoutine(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.metrics.UpdateSystemMetrics(ctx); err != nil {
				logrus.WithError(err).Error("Failed to update system metrics")
			}
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware tags every request so log lines from one call can be
// correlated. Incoming X-Request-ID headers are honored.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
