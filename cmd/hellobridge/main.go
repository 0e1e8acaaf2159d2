package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"hellobridge/internal/command"
	"hellobridge/internal/config"
	"hellobridge/internal/forwarder"
	"hellobridge/internal/helloworld"
	"hellobridge/internal/ingest"
	"hellobridge/internal/metrics"
	"hellobridge/internal/storage"
	"hellobridge/internal/web"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("HelloBridge %s\nCommit: %s\nBuilt: %s\n", web.Version, web.GitCommit, web.BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	setupLogging(cfg.Logging)

	logrus.WithFields(logrus.Fields{
		"config_file": *configFile,
		"port":        cfg.Server.Port,
		"api_url":     cfg.API.URL,
		"forwarder":   cfg.Forwarder.Mode,
	}).Info("Starting HelloBridge")

	// Initialize local state store
	store, err := storage.NewBoltStore(cfg.Database.Path)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize metrics
	metricsCollector := metrics.NewCollector(store)

	// Initialize vendor API client
	client, err := helloworld.NewClient(helloworld.Config{
		URL:      cfg.API.URL,
		APIKey:   cfg.API.APIKey,
		Timeout:  cfg.API.Timeout,
		Insecure: cfg.API.Insecure,
		Proxy:    cfg.API.Proxy,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize HelloWorld client: %v", err)
	}
	client.SetRecorder(metricsCollector)

	// Initialize command registry
	registry := command.NewRegistry(command.Deps{
		Client:          client,
		IPThreshold:     cfg.Reputation.IPThreshold,
		DomainThreshold: cfg.Reputation.DomainThreshold,
		FirstFetch:      cfg.Fetch.FirstFetch,
	})

	// Initialize incident forwarder
	fwd, err := forwarder.New(cfg.Forwarder)
	if err != nil {
		logrus.Fatalf("Failed to initialize forwarder: %v", err)
	}
	defer fwd.Close()

	// Initialize poll engine and web server; the server doubles as the
	// websocket feed for freshly ingested incidents
	engine := ingest.NewEngine(cfg, client, store, fwd, metricsCollector)
	webServer := web.NewServer(cfg, store, registry, engine, fwd, metricsCollector)
	engine.SetBroadcaster(webServer)

	// Start services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start poll engine: %v", err)
	}
	if err := webServer.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start web server: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logrus.WithField("signal", sig).Info("Received shutdown signal")

	// Graceful shutdown
	cancel()
	engine.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := webServer.Stop(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Web server shutdown failed")
	}

	logrus.Info("Shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}
