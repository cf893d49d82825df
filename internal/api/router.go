// Package api wires together all HTTP routes for the Kita-kita linking backend.
//
// Route grouping philosophy:
//   - The Telegram webhook (/api/v1/telegram/webhook) authenticates with the
//     shared secret header Telegram echoes back on every delivery, never a
//     user credential; per-chat throttling stands in for per-user limits.
//   - Web routes (/api/v1/linking, /api/v1/agents) require a signed-in web
//     user and run behind the audit middleware.
//   - Operator routes (/api/v1/admin) accept only ops tokens with the
//     matching scope. A web user JWT is never valid there, and vice versa.
package api

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/api/admin"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/api/agents"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/api/links"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/api/telegram"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/audit"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/auth"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/bot"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/cache"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/crypto"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/jobs"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/llm"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/middleware"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/services"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/storage"

	// Import archive backends to register them
	_ "github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/storage/azure"
	_ "github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/storage/gcs"
	_ "github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/storage/local"
	_ "github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/storage/s3"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	reconciler     *jobs.LinkReconciler
	sweeper        *jobs.CodeSweeper
	rateLimiters   []*middleware.RateLimiter
	webhookLimiter *middleware.WebhookLimiter
	auditShipper   audit.Shipper
	redisClient    *redis.Client
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.reconciler != nil {
		bg.reconciler.Stop()
	}
	if bg.sweeper != nil {
		bg.sweeper.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.webhookLimiter != nil {
		bg.webhookLimiter.Stop()
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Warn("audit shipper close failed", "error", err)
		}
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Warn("redis close failed", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize receipt archive backend
	archive, err := storage.NewArchive(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize archive backend: %v", err)
	}
	log.Printf("Initialized archive backend: %s", cfg.Storage.DefaultBackend)

	// Initialize repositories
	codeRepo := repositories.NewLinkingCodeRepository(db)
	linkRepo := repositories.NewAccountLinkRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	opsTokenRepo := repositories.NewOpsTokenRepository(db)
	scanRepo := repositories.NewReceiptScanRepository(db)
	txnRepo := repositories.NewTransactionRepository(db)

	// Wrap *sql.DB with sqlx for the dashboard stats queries
	sqlxDB := sqlx.NewDb(db, "postgres")

	// Redis is optional. Without it link resolution goes straight to the
	// store and webhook throttling falls back to per-process token buckets.
	var redisClient *redis.Client
	var linkCache *cache.LinkCache
	if cfg.Redis.Enabled {
		redisClient, err = cache.Connect(&cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, continuing without cache", "error", err)
			redisClient = nil
		} else {
			linkCache = cache.NewLinkCache(redisClient, cfg.Cache.LinkTTL)
		}
	}

	// security.data_key seals raw model output kept for unparseable scans.
	// Optional: without it the raw text is discarded and everything else
	// still works. A 32-byte value is the AES key itself; any other length
	// is a passphrase stretched with PBKDF2 over security.data_key_salt.
	var textCipher *crypto.TextCipher
	if key := cfg.Security.DataKey; key != "" {
		if len(key) == 32 {
			textCipher, err = crypto.NewTextCipher([]byte(key))
		} else {
			textCipher, err = crypto.DeriveTextCipher(key, []byte(cfg.Security.DataKeySalt), 0)
		}
		if err != nil {
			log.Fatalf("Failed to initialize text cipher: %v", err)
		}
	} else {
		slog.Warn("security.data_key not set; raw text of unparseable receipts will not be retained")
	}

	model := llm.NewGeminiClient(&cfg.LLM)

	// Initialize services
	linkingService := services.NewLinkingService(codeRepo, linkRepo, auditRepo, linkCache, cfg.Linking.CodeTTL)
	receiptIngestor := services.NewReceiptIngestor(scanRepo, txnRepo, linkingService, archive, model, textCipher)
	agentService := services.NewAgentService(txnRepo, model, 0)

	// Bot update dispatch (commands, text, photos)
	botClient := bot.NewClient(&cfg.Telegram)
	dispatcher := bot.NewDispatcher(botClient, linkingService, receiptIngestor)

	// Background jobs: the reconciler notes burned codes, the sweeper
	// deletes aged expired ones.
	reconciler := jobs.NewLinkReconciler(codeRepo, auditRepo, cfg.Jobs.ReconcileInterval)
	reconciler.Start(context.Background())
	sweeper := jobs.NewCodeSweeper(codeRepo, cfg.Jobs.SweepInterval, cfg.Jobs.SweepRetention)
	sweeper.Start(context.Background())

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.DefaultSecurityHeaders()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes archive backend probe)
	router.GET("/ready", readinessHandler(db, archive, redisClient))

	// API version
	router.GET("/version", versionHandler())

	// External audit destinations (webhook, file). nil when none configured.
	auditShipper := buildAuditShipper(&cfg.Audit)

	// Rate limiters. The general limiter covers every authenticated route;
	// code issuance and agent chat carry stricter budgets of their own.
	passthrough := gin.HandlerFunc(func(c *gin.Context) { c.Next() })
	generalRL, linkingRL, chatRL := passthrough, passthrough, passthrough
	var rateLimiters []*middleware.RateLimiter
	if cfg.Security.RateLimiting.Enabled {
		generalLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
		linkingLimiter := middleware.NewRateLimiter(middleware.LinkingRateLimitConfig())
		chatLimiter := middleware.NewRateLimiter(middleware.AgentChatRateLimitConfig())
		rateLimiters = []*middleware.RateLimiter{generalLimiter, linkingLimiter, chatLimiter}
		generalRL = middleware.RateLimitMiddleware(generalLimiter)
		linkingRL = middleware.RateLimitMiddleware(linkingLimiter)
		chatRL = middleware.RateLimitMiddleware(chatLimiter)
	}

	// Initialize handlers
	linkHandlers := links.NewHandlers(linkingService)
	agentHandlers := agents.NewHandlers(agentService)
	statsHandlers := admin.NewStatsHandler(sqlxDB)
	reconHandlers := admin.NewReconciliationHandlers(linkingService, codeRepo)
	receiptHandlers := admin.NewReceiptHandlers(db, archive)
	auditLogHandlers := admin.NewAuditLogHandlers(db)
	opsTokenHandlers := admin.NewOpsTokenHandlers(cfg, db)

	var webhookLimiter *middleware.WebhookLimiter

	apiV1 := router.Group("/api/v1")
	{
		// Telegram webhook. Registered only when a bot is configured so an
		// unset secret can never turn into an open endpoint.
		if cfg.Telegram.Enabled {
			webhookLimiter = middleware.NewWebhookLimiter(redisClient,
				cfg.Security.RateLimiting.WebhookPerChatRate,
				cfg.Security.RateLimiting.WebhookPerChatBurst)
			webhookHandler := telegram.NewWebhookHandler(&cfg.Telegram, dispatcher, webhookLimiter)
			apiV1.POST("/telegram/webhook", webhookHandler.Handle)
		}

		// Web user endpoints (JWT auth)
		webGroup := apiV1.Group("")
		webGroup.Use(middleware.AuthMiddleware())
		webGroup.Use(generalRL)
		webGroup.Use(middleware.AuditMiddlewareWithShipper(auditRepo, auditShipper, &cfg.Audit))
		{
			webGroup.POST("/linking/codes", linkingRL, linkHandlers.CreateCode)
			webGroup.GET("/linking/status", linkHandlers.Status)
			webGroup.DELETE("/linking/link", linkHandlers.Disconnect)

			webGroup.GET("/agents", agentHandlers.List)
			webGroup.POST("/agents/:persona/chat", chatRL, agentHandlers.Chat)
		}

		// Operator endpoints (ops token auth, per-route scope)
		if cfg.Auth.OpsTokens.Enabled {
			adminGroup := apiV1.Group("/admin")
			adminGroup.Use(middleware.OpsAuthMiddleware(opsTokenRepo))
			adminGroup.Use(generalRL)
			adminGroup.Use(middleware.AuditMiddlewareWithShipper(auditRepo, auditShipper, &cfg.Audit))
			{
				adminGroup.GET("/stats/dashboard",
					middleware.RequireScope(auth.ScopeStatsRead),
					statsHandlers.GetDashboardStats)

				adminGroup.GET("/reconciliation",
					middleware.RequireScope(auth.ScopeReconcileRead),
					reconHandlers.GetReport)
				adminGroup.POST("/reconciliation/repair",
					middleware.RequireScope(auth.ScopeReconcileRepair),
					reconHandlers.Repair)

				// Support code lookup is read-only and never consumes a code
				adminGroup.POST("/linking/validate",
					middleware.RequireScope(auth.ScopeLinksRead),
					reconHandlers.ValidateCode)

				receiptsGroup := adminGroup.Group("/receipts")
				receiptsGroup.Use(middleware.RequireScope(auth.ScopeReceiptsRead))
				{
					receiptsGroup.GET("/unparseable", receiptHandlers.ListUnparseable)
					receiptsGroup.GET("/:id/archive", receiptHandlers.GetArchive)
					receiptsGroup.GET("/:id/archive/meta", receiptHandlers.GetArchiveInfo)
				}

				adminGroup.GET("/audit-logs",
					middleware.RequireScope(auth.ScopeAuditRead),
					auditLogHandlers.ListAuditLogsHandler())

				tokensGroup := adminGroup.Group("/tokens")
				tokensGroup.Use(middleware.RequireScope(auth.ScopeTokensManage))
				{
					tokensGroup.GET("", opsTokenHandlers.ListOpsTokensHandler())
					tokensGroup.POST("", opsTokenHandlers.CreateOpsTokenHandler())
					tokensGroup.DELETE("/:id", opsTokenHandlers.RevokeOpsTokenHandler())
				}
			}
		}
	}

	bg := &BackgroundServices{
		reconciler:     reconciler,
		sweeper:        sweeper,
		rateLimiters:   rateLimiters,
		webhookLimiter: webhookLimiter,
		auditShipper:   auditShipper,
		redisClient:    redisClient,
	}

	return router, bg
}

// buildAuditShipper assembles the external audit destinations from config.
// Returns nil when nothing is enabled so callers skip shipping entirely. An
// invalid shipper entry disables shipping rather than aborting boot; the
// database trail is the system of record either way.
func buildAuditShipper(cfg *config.AuditConfig) audit.Shipper {
	if cfg == nil || !cfg.Enabled || len(cfg.Shippers) == 0 {
		return nil
	}

	configs := make([]audit.ShipperConfig, 0, len(cfg.Shippers))
	for _, sc := range cfg.Shippers {
		out := audit.ShipperConfig{Enabled: sc.Enabled, Type: sc.Type}
		if sc.Webhook != nil {
			out.Webhook = &audit.WebhookConfig{
				URL:     sc.Webhook.URL,
				Headers: sc.Webhook.Headers,
				Timeout: time.Duration(sc.Webhook.TimeoutSecs) * time.Second,
			}
		}
		if sc.File != nil {
			out.File = &audit.FileConfig{
				Path:       sc.File.Path,
				MaxSizeMB:  sc.File.MaxSizeMB,
				MaxBackups: sc.File.MaxBackups,
			}
		}
		configs = append(configs, out)
	}

	shipper, err := audit.NewMultiShipper(configs)
	if err != nil {
		slog.Error("audit shipper configuration invalid, shipping disabled", "error", err)
		return nil
	}
	return shipper
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database and archive connectivity; the cache is reported but never fails readiness.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also checks the archive backend so
// that a Kubernetes readiness gate fails when receipt uploads would error.
// Redis is reported but never gates readiness: without it the service runs in
// degraded mode, which is still a working mode.
func readinessHandler(db *sql.DB, archive storage.Archive, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Check archive backend — probe with a known-absent sentinel path.
		// Exists() exercises authentication and network connectivity without
		// creating any state.
		if _, err := archive.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["archive"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "archive backend not ready",
			})
			return
		}
		checks["archive"] = "healthy"

		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				checks["cache"] = "degraded"
			} else {
				checks["cache"] = "healthy"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", middleware.RequestID(c)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
