// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mbd888/vaultbreak/internal/config"
	"github.com/mbd888/vaultbreak/internal/economy"
	"github.com/mbd888/vaultbreak/internal/health"
	"github.com/mbd888/vaultbreak/internal/heist"
	"github.com/mbd888/vaultbreak/internal/insurance"
	"github.com/mbd888/vaultbreak/internal/logging"
	"github.com/mbd888/vaultbreak/internal/matchmaking"
	"github.com/mbd888/vaultbreak/internal/metrics"
	"github.com/mbd888/vaultbreak/internal/player"
	"github.com/mbd888/vaultbreak/internal/ratelimit"
	"github.com/mbd888/vaultbreak/internal/realtime"
	"github.com/mbd888/vaultbreak/internal/retry"
	"github.com/mbd888/vaultbreak/internal/security"
	"github.com/mbd888/vaultbreak/internal/tuning"
	"github.com/mbd888/vaultbreak/internal/validation"
	"github.com/mbd888/vaultbreak/internal/vault"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	params       tuning.Params
	calc         *security.Calculator
	engine       *economy.Engine
	vault        *vault.Vault
	players      *player.Registry
	matchmaking  *matchmaking.Service
	insurance    *insurance.Service
	heist        *heist.Service
	defender     *heist.Defender
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	checks       *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

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

// WithParams overrides the tuning table (for testing)
func WithParams(p tuning.Params) Option {
	return func(s *Server) {
		s.params = p
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		params: gameParams(cfg),
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set params/logger)
	for _, opt := range opts {
		opt(s)
	}

	if err := s.params.Validate(); err != nil {
		return nil, err
	}

	s.calc = security.NewCalculator(s.params)
	s.engine = economy.NewEngine(s.calc)

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		vaultStore     vault.Store
		insuranceStore insurance.Store
		heistStore     heist.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection; retry briefly so a restart can outrace the database
		pingCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := retry.Do(pingCtx, 5, 500*time.Millisecond, db.Ping); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		vaultStore = vault.NewPostgresStore(db)
		insuranceStore = insurance.NewPostgresStore(db)
		heistStore = heist.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		vaultStore = vault.NewMemoryStore()
		insuranceStore = insurance.NewMemoryStore()
		heistStore = heist.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	s.vault = vault.New(vaultStore, s.engine)
	s.players = player.NewRegistry(s.calc, s.params).WithVault(s.vault)
	s.insurance = insurance.NewService(insuranceStore, s.engine, s.vault, s.params)

	rng := matchmaking.DefaultRNG()
	if cfg.RNGSeed != 0 {
		rng = matchmaking.NewSeededRNG(uint64(cfg.RNGSeed))
		s.logger.Warn("using seeded randomness", "seed", cfg.RNGSeed)
	}
	s.matchmaking = matchmaking.NewService(s.calc, s.engine, rng, s.params)

	// Realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)

	s.heist = heist.NewService(s.engine, s.vault, s.matchmaking, heistStore, s.players, s.params).
		WithInsurer(&insurerAdapter{s.insurance}).
		WithEvents(realtime.NewEmitter(s.realtimeHub))
	s.defender = heist.NewDefender(s.heist, s.calc, rng, s.logger)
	s.logger.Info("defense simulation configured",
		"tick", s.params.DefenseTick,
		"odds", s.params.IncomingAttackOdds,
	)

	s.checks = health.NewRegistry()
	if s.db != nil {
		s.checks.Register("database", func(ctx context.Context) health.Status {
			if err := s.db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	}
	// The defense timer only runs after Run; a stopped timer is reported
	// but does not degrade overall health.
	s.checks.Register("defense_timer", func(ctx context.Context) health.Status {
		st := health.Status{Name: "defense_timer", Healthy: true}
		if !s.defender.Running() {
			st.Detail = "stopped"
		}
		return st
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

// gameParams builds the tuning table with the operator-tunable overrides
// from the environment config applied.
func gameParams(cfg *config.Config) tuning.Params {
	p := tuning.Default()
	p.HeistModeDuration = cfg.HeistModeDuration
	p.DefenseTick = cfg.DefenseTickInterval
	p.FeedSize = cfg.FeedSize
	return p
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

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	limitCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		limitCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
	}
	s.rateLimiter = ratelimit.New(limitCfg)
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
	s.router.GET("/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/api/v1")
	// Validate :id URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.PlayerIDParamMiddleware())

	economy.NewHandler(s.engine).RegisterRoutes(v1)
	player.NewHandler(s.players, s.vault).RegisterRoutes(v1)
	matchmaking.NewHandler(s.matchmaking).RegisterRoutes(v1)
	heist.NewHandler(s.heist).RegisterRoutes(v1)
	insurance.NewHandler(s.insurance, s.vault, s.players).RegisterRoutes(v1)

	// Operator endpoints, gated by ADMIN_SECRET
	admin := v1.Group("/admin")
	admin.Use(s.adminAuthMiddleware())
	admin.GET("/tuning", s.tuningHandler)
	admin.GET("/realtime", s.realtimeStatsHandler)
}

// adminAuthMiddleware checks the admin secret. With no secret configured the
// admin surface is disabled outright rather than left open.
func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":   "admin_disabled",
				"message": "ADMIN_SECRET is not configured",
			})
			return
		}
		provided := c.GetHeader("X-Admin-Secret")
		if provided == "" {
			provided = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.AdminSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid admin secret",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)
	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		switch {
		case !st.Healthy:
			checks[st.Name] = "unhealthy"
		case st.Detail != "":
			checks[st.Name] = st.Detail
		default:
			checks[st.Name] = "healthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
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
	c.JSON(http.StatusOK, gin.H{
		"name":        "Vaultbreak",
		"description": "Economy and matchmaking engine for the Vaultbreak heist game",
		"version":     "0.1.0",
	})
}

func (s *Server) tuningHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.params)
}

func (s *Server) realtimeStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.realtimeHub.Stats())
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
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
		s.logger.Info("starting server", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start defense simulation timer
	go s.defender.Start(runCtx)

	// Start DB stats collector
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
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

	// Cancel the context for all background goroutines (hub, defense timer)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop defense timer
	if s.defender != nil {
		s.defender.Stop()
		s.logger.Info("defense timer stopped")
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
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

// insurerAdapter adapts insurance.Service to heist.Insurer
type insurerAdapter struct {
	svc *insurance.Service
}

func (a *insurerAdapter) Claim(ctx context.Context, playerID string, lootLost int64) (int64, error) {
	result, err := a.svc.Claim(ctx, playerID, lootLost)
	if err != nil {
		if errors.Is(err, insurance.ErrNoPolicy) {
			return 0, nil // uninsured, nothing to pay
		}
		return 0, err
	}
	return result.Payout, nil
}
