// Package api serves results pages over HTTP. Each page is an oncoprint orchestrator kept in a
// bounded registry; clients drive its controls with JSON requests and follow its recomputes
// over a websocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oncoprint-server/internal/database"
	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/middleware"
	"github.com/oncoprint-server/internal/orchestrator"
	"github.com/oncoprint-server/internal/session"
	"github.com/oncoprint-server/internal/store"
	"github.com/oncoprint-server/internal/urlstate"
	"github.com/oncoprint-server/pkg/external"
	"github.com/sirupsen/logrus"
)

// Dependencies are the collaborators shared by every page. Sessions, DB and Cache are
// optional.
type Dependencies struct {
	Portal     domain.PortalClient
	Annotators store.Annotators
	Sessions   session.Store
	DB         *database.DB
	Cache      *external.TieredCache
	// Breakers reports the annotation circuit breakers; nil when no source is enabled.
	Breakers   *external.ResilientAnnotator
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	pages         *PageRegistry
	router        *gin.Engine
	server        *http.Server
	upgrader      websocket.Upgrader
	logger        *logrus.Logger
	started       time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies, logger *logrus.Logger) (*Server, error) {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	pages, err := NewPageRegistry(cfg.Oncoprint.MaxPages, logger)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())

	server := &Server{
		configManager: configManager,
		deps:          deps,
		pages:         pages,
		router:        router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		started: time.Now(),
	}

	server.setupRoutes()

	return server, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.pages.Close()
	return err
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")

	// The stream outlives the request timeout
	v1.GET("/pages/:id/stream", s.handleStream)

	timed := v1.Group("", middleware.RequestTimeout(s.configManager.GetServerConfig().WriteTimeout))
	{
		timed.POST("/pages", s.handleCreatePage)
		timed.GET("/pages/:id", s.handleGetPage)
		timed.DELETE("/pages/:id", s.handleDeletePage)
		timed.PATCH("/pages/:id/query", s.handleUpdateQuery)
		timed.POST("/pages/:id/controls", s.handleControl)
		timed.POST("/pages/:id/heatmap", s.handleAddHeatmap)
		timed.DELETE("/pages/:id/heatmap", s.handleClearHeatmap)
		timed.DELETE("/pages/:id/heatmap/:profile/:entity", s.handleRemoveHeatmapTrack)
		timed.POST("/pages/:id/heatmap/cluster", s.handleClusterHeatmap)
		timed.GET("/pages/:id/progress", s.handleProgress)
		timed.GET("/pages/:id/download/:type", s.handleDownload)

		timed.DELETE("/cache", s.handleInvalidateCache)

		timed.POST("/sessions", s.handleCreateSession)
		timed.GET("/sessions/:id", s.handleGetSession)
		timed.GET("/sessions/export", s.handleExportSessions)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).String(),
		"pages":     s.pages.Len(),
	}
	if s.deps.DB != nil {
		if err := s.deps.DB.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = gin.H{"healthy": false, "error": err.Error()}
		} else {
			body["database"] = gin.H{"healthy": true, "pool": s.deps.DB.Stats()}
		}
	}
	if s.deps.Cache != nil {
		cache := gin.H{"healthy": true, "stats": s.deps.Cache.Stats()}
		if err := s.deps.Cache.Health(ctx); err != nil {
			cache["healthy"], cache["error"] = false, err.Error()
			body["status"] = "degraded"
		}
		body["cache"] = cache
	}
	if s.deps.Breakers != nil {
		counts := s.deps.Breakers.GetCircuitBreakerStats()
		breakers := gin.H{}
		for name, state := range s.deps.Breakers.GetCircuitBreakerStates() {
			breakers[name] = gin.H{
				"state":    state.String(),
				"requests": counts[name].Requests,
				"failures": counts[name].TotalFailures,
			}
		}
		body["annotation"] = breakers
	}
	body["sessions"] = s.deps.Sessions != nil

	c.JSON(status, body)
}

// handleInvalidateCache drops cached upstream responses. Open pages keep their loaded data.
func (s *Server) handleInvalidateCache(c *gin.Context) {
	if s.deps.Cache == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if err := s.deps.Cache.Invalidate(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.WithField("request_id", c.GetString(middleware.RequestIDKey)).Info("Upstream cache invalidated")
	c.Status(http.StatusNoContent)
}

// newPage opens a page for q
func (s *Server) newPage(q urlstate.Query) *orchestrator.Oncoprint {
	cfg := s.configManager.GetConfig()
	return orchestrator.New(q, s.deps.Portal, s.deps.Annotators, orchestrator.Options{
		Oncoprint:  cfg.Oncoprint,
		Annotation: cfg.Annotation,
	}, s.logger)
}

// page resolves the :id parameter, answering 404 when the page is gone
func (s *Server) page(c *gin.Context) (*orchestrator.Oncoprint, bool) {
	page, ok := s.pages.Get(c.Param("id"))
	if !ok {
		respondCode(c, http.StatusNotFound, domain.ErrPageNotFound, "page not found")
	}
	return page, ok
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Disposition, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
