// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/safeguardhq/safeguard/internal/alert"
	"github.com/safeguardhq/safeguard/internal/analytics"
	"github.com/safeguardhq/safeguard/internal/config"
	"github.com/safeguardhq/safeguard/internal/dailytotal"
	"github.com/safeguardhq/safeguard/internal/engine"
	"github.com/safeguardhq/safeguard/internal/health"
	"github.com/safeguardhq/safeguard/internal/incident"
	"github.com/safeguardhq/safeguard/internal/logging"
	"github.com/safeguardhq/safeguard/internal/metrics"
	"github.com/safeguardhq/safeguard/internal/pattern"
	"github.com/safeguardhq/safeguard/internal/person"
	"github.com/safeguardhq/safeguard/internal/purchase"
	"github.com/safeguardhq/safeguard/internal/ratelimit"
	"github.com/safeguardhq/safeguard/internal/realtime"
	"github.com/safeguardhq/safeguard/internal/security"
	"github.com/safeguardhq/safeguard/internal/traces"
	"github.com/safeguardhq/safeguard/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	persons     person.Store
	purchases   purchase.Store
	totals      dailytotal.Store
	incidents   incident.Store
	patterns    pattern.Store
	alerts      alert.Store
	engine      *engine.Engine
	realtimeHub *realtime.Hub
	rateLimiter *ratelimit.Limiter
	healthReg   *health.Registry
	db          *sql.DB // nil if using in-memory
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger

	cancelRunCtx   context.CancelFunc         // cancels background goroutines started in Run
	shutdownTraces func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, cfg.LogFormat),
		healthReg: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		personStore := person.NewPostgresStore(db)
		if err := personStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate person store", "error", err)
		}
		s.persons = personStore

		purchaseStore := purchase.NewPostgresStore(db)
		if err := purchaseStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate purchase store", "error", err)
		}
		s.purchases = purchaseStore

		totalStore := dailytotal.NewPostgresStore(db)
		if err := totalStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate daily total store", "error", err)
		}
		s.totals = totalStore

		incidentStore := incident.NewPostgresStore(db)
		if err := incidentStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate incident store", "error", err)
		}
		s.incidents = incidentStore

		patternStore := pattern.NewPostgresStore(db)
		if err := patternStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate pattern store", "error", err)
		}
		s.patterns = patternStore

		alertStore := alert.NewPostgresStore(db)
		if err := alertStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate alert store", "error", err)
		}
		s.alerts = alertStore

		s.healthReg.Register("postgres", health.DBChecker("postgres", db))
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")
		s.persons = person.NewMemoryStore()
		s.purchases = purchase.NewMemoryStore()
		s.totals = dailytotal.NewMemoryStore()
		s.incidents = incident.NewMemoryStore()
		s.patterns = pattern.NewMemoryStore()
		s.alerts = alert.NewMemoryStore()
	}

	// Tracing (no-op without an OTLP endpoint)
	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTraces = shutdownTraces
	}

	// Realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)
	s.logger.Info("realtime streaming enabled")

	// The engine ties the stores together and fans events out to the hub
	s.engine = engine.New(cfg.Limits, engine.Deps{
		Persons:   s.persons,
		Purchases: s.purchases,
		Totals:    s.totals,
		Incidents: s.incidents,
		Patterns:  s.patterns,
		Alerts:    s.alerts,
		Emitter:   &hubEventEmitter{s.realtimeHub},
		Logger:    s.logger,
	})

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	api := s.router.Group("/api")

	person.NewHandler(s.persons).RegisterRoutes(api)
	purchase.NewHandler(s.purchases).RegisterRoutes(api)
	engine.NewHandler(s.engine).RegisterRoutes(api)
	pattern.NewHandler(s.patterns).RegisterRoutes(api)
	alert.NewHandler(s.alerts).RegisterRoutes(api)
	analytics.NewHandler(s.persons, s.purchases, s.alerts, s.patterns).RegisterRoutes(api)

	// A new incident changes the person's risk profile, so rescore
	// immediately rather than waiting for the next purchase.
	incident.NewHandler(s.incidents, func(ctx context.Context, personID string) {
		if _, err := s.engine.Score(ctx, personID); err != nil {
			logging.L(ctx).Warn("rescore after incident failed",
				"person_id", personID, "error", err)
		}
	}).RegisterRoutes(api)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	limits := s.engine.Limits()
	c.JSON(http.StatusOK, gin.H{
		"name":        "Safeguard",
		"description": "Alcohol purchase monitoring and risk scoring",
		"version":     "0.1.0",
		"limits": gin.H{
			"dailyUnitLimit":  limits.DailyUnitLimit,
			"yellowThreshold": limits.YellowThreshold,
			"redThreshold":    limits.RedThreshold,
			"bulkThresholdMl": limits.BulkThresholdML,
		},
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Export connection pool stats when running on Postgres
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for background goroutines (hub, stats collector)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Warn("trace shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Engine returns the purchase engine, for tooling that drives workflows
// directly (seeding, backfill jobs).
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// -----------------------------------------------------------------------------
// Realtime adapter
// -----------------------------------------------------------------------------

// hubEventEmitter adapts realtime.Hub to engine.EventEmitter
type hubEventEmitter struct {
	hub *realtime.Hub
}

func (e *hubEventEmitter) PurchaseLogged(p *purchase.Purchase) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(&realtime.Event{
		Type:      realtime.EventPurchase,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"personId":  p.PersonID,
			"shopId":    p.ShopID,
			"kind":      p.Kind,
			"volumeMl":  p.VolumeML,
			"units":     p.Units,
			"timestamp": p.Timestamp,
		},
	})
}

func (e *hubEventEmitter) AlertRaised(a *alert.Alert) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(&realtime.Event{
		Type:      realtime.EventAlert,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"personId": a.PersonID,
			"kind":     string(a.Kind),
			"severity": string(a.Severity),
			"message":  a.Message,
		},
	})
}

func (e *hubEventEmitter) PatternDetected(f *pattern.Finding) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(&realtime.Event{
		Type:      realtime.EventPatternFinding,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"personId":   f.PersonID,
			"kind":       string(f.Kind),
			"confidence": f.Confidence,
			"evidence":   f.Evidence,
		},
	})
}

func (e *hubEventEmitter) RiskChanged(personID string, previous, current person.Tier, score float64) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(&realtime.Event{
		Type:      realtime.EventRiskChange,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"personId":     personID,
			"previousTier": string(previous),
			"currentTier":  string(current),
			"score":        score,
		},
	})
}
