package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/oncoprint-server/internal/api"
	"github.com/oncoprint-server/internal/config"
	"github.com/oncoprint-server/internal/database"
	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/logging"
	"github.com/oncoprint-server/internal/session"
	"github.com/oncoprint-server/internal/store"
	"github.com/oncoprint-server/pkg/external"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, closeDeps, err := buildDependencies(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise dependencies")
	}
	defer closeDeps()

	server, err := api.NewServer(configManager, deps, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create server")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"portal":      cfg.Portal.BaseURL,
		"environment": cfg.Environment,
	}).Info("Starting oncoprint server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		return
	}

	logger.Info("Server stopped")
}

// buildDependencies wires the upstream clients, caches and session storage. The returned
// function releases them.
func buildDependencies(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (api.Dependencies, func(), error) {
	cfg := configManager.GetConfig()
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var redis *external.CacheClient
	if cfg.Cache.Enabled {
		client, err := external.NewCacheClient(cfg.Cache)
		if err != nil {
			return api.Dependencies{}, closeAll, fmt.Errorf("redis cache: %w", err)
		}
		redis = client
		closers = append(closers, func() { _ = client.Close() })
	}
	cache, err := external.NewTieredCache(external.TieredCacheConfig{
		MemoryEntries: cfg.Cache.MemoryEntries,
		RedisTTL:      cfg.Cache.DefaultTTL,
	}, redis, logger)
	if err != nil {
		return api.Dependencies{}, closeAll, err
	}

	annotators, breakers := buildAnnotators(cfg.Annotation, logger)
	deps := api.Dependencies{
		Portal:     external.NewPortalClient(cfg.Portal, cache, logger),
		Annotators: annotators,
		Cache:      cache,
		Breakers:   breakers,
	}

	switch cfg.Session.Backend {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Session.SQLitePath), 0o755); err != nil {
			return deps, closeAll, fmt.Errorf("session directory: %w", err)
		}
		sessions, err := session.NewSQLiteStore(cfg.Session.SQLitePath)
		if err != nil {
			return deps, closeAll, err
		}
		deps.Sessions = sessions
		closers = append(closers, func() { _ = sessions.Close() })

	case "postgres":
		runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			return deps, closeAll, err
		}
		err = runner.Up(ctx)
		_ = runner.Close()
		if err != nil {
			return deps, closeAll, err
		}

		db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return deps, closeAll, err
		}
		deps.DB = db
		closers = append(closers, db.Close)

		sessions, err := session.NewPostgresStore(db.SQL())
		if err != nil {
			return deps, closeAll, err
		}
		deps.Sessions = sessions
		closers = append(closers, func() { _ = sessions.Close() })

	default:
		logger.Info("Session storage disabled")
	}

	return deps, closeAll, nil
}

// buildAnnotators wraps the enabled annotation sources in circuit breakers. Disabled sources
// stay nil so pages report them as unavailable.
func buildAnnotators(cfg domain.AnnotationConfig, logger *logrus.Logger) (store.Annotators, *external.ResilientAnnotator) {
	var (
		oncoKB   domain.OncogenicityAnnotator
		hotspots domain.HotspotAnnotator
		cosmic   domain.COSMICCounter
	)
	if cfg.OncoKB.Enabled {
		oncoKB = external.NewOncoKBClient(cfg.OncoKB)
	}
	if cfg.Hotspots.Enabled {
		hotspots = external.NewHotspotsClient(cfg.Hotspots)
	}
	if cfg.COSMIC.Enabled {
		cosmic = external.NewCOSMICClient(cfg.COSMIC)
	}
	resilient := external.NewResilientAnnotator(oncoKB, hotspots, cosmic, external.DefaultCircuitBreakerConfig(), logger)

	var annotators store.Annotators
	if oncoKB != nil {
		annotators.OncoKB = resilient
	}
	if hotspots != nil {
		annotators.Hotspots = resilient
	}
	if cosmic != nil {
		annotators.COSMIC = resilient
	}
	if oncoKB == nil && hotspots == nil && cosmic == nil {
		return annotators, nil
	}
	return annotators, resilient
}
