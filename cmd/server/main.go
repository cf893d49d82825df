// @title           Kita-kita Linking API
// @version         1.0.0
// @description     Account linking, receipt ingestion, and agent persona backend for the Kita-kita personal finance platform.
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  Bearer
// @in                          header
// @name                         Authorization
// @description                  "JWT for web routes, ops token for admin routes. Both use 'Bearer {token}'."
//
// @tag.name         System
// @tag.description  Health, readiness, and version endpoints.
//
// @tag.name         Observability
// @tag.description  Prometheus metrics are served on a dedicated side-channel port (default: 9090) separate from the main API server, keeping the scrape path off the public ingress. Configure with KITA_TELEMETRY_METRICS_PROMETHEUS_PORT; the path is always GET /metrics. pprof (KITA_TELEMETRY_PROFILING_ENABLED=true) is served on KITA_TELEMETRY_PROFILING_PORT (default: 6060) at the standard /debug/pprof/ paths. Neither is part of the OpenAPI spec because neither is served by the Gin router.

// Package main is the entry point for the linking backend binary. It
// dispatches four subcommands via a simple switch on os.Args so the binary's
// full CLI surface is readable in one place without requiring a cobra
// dependency: serve, migrate, ops-token, and version. The serve command runs
// auto-migration on startup so freshly deployed containers never need a
// separate migration step; ops-token mints the first operator token, since
// the admin HTTP surface cannot be reached until one exists.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108 -- pprof is NOT served on the main API listener (Gin router).

	// It only serves on a dedicated internal port when cfg.Telemetry.Profiling.Enabled=true.
	// DefaultServeMux is never passed to the Gin HTTP server.
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/api"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/auth"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/bot"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/models"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/db/repositories"
	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/telemetry"
)

const (
	version = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	// Parse command from args
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Execute command
	switch command {
	case "serve":
		return serve(cfg, configPath)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	case "ops-token":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s ops-token <name> [scope,scope,...]", os.Args[0])
		}
		scopes := ""
		if len(os.Args) > 3 {
			scopes = os.Args[3]
		}
		return mintOpsToken(cfg, os.Args[2], scopes)
	case "version":
		fmt.Printf("Kita-kita Linking Backend v%s\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, ops-token, version", command)
	}
}

func serve(cfg *config.Config, configPath string) error {
	// Initialise structured logger as early as possible so all subsequent log output
	// uses the configured format (json / text) and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Validate JWT secret configuration (fails in production if not set)
	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}
	log.Println("JWT secret validated successfully")

	// Debug: Print database configuration (mask password)
	maskedPassword := "****"
	if cfg.Database.Password != "" {
		maskedPassword = cfg.Database.Password[:1] + "****"
	}
	log.Printf("Database config: host=%s, port=%d, user=%s, password=%s, dbname=%s, sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, maskedPassword,
		cfg.Database.Name, cfg.Database.SSLMode)

	// Connect to database
	database, err := db.Connect(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	log.Println("Connected to database successfully")

	// Begin exporting DB pool statistics to Prometheus.
	telemetry.StartDBStatsCollector(database)

	// Run migrations automatically on startup
	log.Println("Running database migrations...")
	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("Database migrations completed successfully")

	// Get migration version
	schemaVersion, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Printf("Warning: failed to get migration version: %v", err)
	} else {
		log.Printf("Database schema version: %d (dirty: %v)", schemaVersion, dirty) // #nosec G706 -- logged value is application-internal
	}

	// The admin surface authenticates with ops tokens only, so a fresh
	// deployment is locked out of it until the first token is minted from
	// this binary.
	if cfg.Auth.OpsTokens.Enabled {
		notifyIfNoOpsTokens(database)
	}

	// Re-apply the logging level when the config file changes on disk. Only
	// the level is hot-reloaded; everything else needs a restart.
	if err := config.Watch(configPath, func(newCfg *config.Config) {
		telemetry.SetLogLevel(newCfg.Logging.Level)
	}); err != nil {
		slog.Debug("config hot-reload disabled", "reason", err)
	}

	// Start Prometheus metrics endpoint on a dedicated port so it is not reachable
	// through the public API ingress path.
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			// Use http.Server with timeouts (G114: bare http.ListenAndServe has no timeout support).
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	// Start pprof endpoint on its own port (disabled in production by default).
	if cfg.Telemetry.Profiling.Enabled {
		pprofAddr := fmt.Sprintf(":%d", cfg.Telemetry.Profiling.Port)
		go func() {
			slog.Info("starting pprof server", "addr", pprofAddr)
			// net/http/pprof registers its handlers on http.DefaultServeMux at init time.
			srv := &http.Server{ //nolint:gosec // #nosec G112 -- internal-only pprof port, long timeouts acceptable
				Addr:         pprofAddr,
				Handler:      http.DefaultServeMux, // #nosec G108 -- not the main listener; pprof-only internal port
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("pprof server error", "error", err)
			}
		}()
	}

	// Create router
	router, bgServices := api.NewRouter(cfg, database)

	// Point Telegram at this deployment. Failure is a warning, not fatal:
	// the registration can be repeated out of band and deliveries resume.
	if cfg.Telegram.Enabled {
		registerTelegramWebhook(cfg)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.GetAddress())
		log.Printf("Base URL: %s", cfg.Server.BaseURL)
		log.Printf("Storage backend: %s", cfg.Storage.DefaultBackend)
		log.Printf("Telegram bot: %v", cfg.Telegram.Enabled)
		log.Printf("Redis cache: %v", cfg.Redis.Enabled)
		log.Println("Server is ready to accept connections")

		var err error
		if cfg.Security.TLS.Enabled {
			log.Printf("TLS enabled: cert=%s, key=%s", cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Stop background jobs, limiters, and the audit shipper
	bgServices.Shutdown()

	log.Println("Server stopped gracefully")
	return nil
}

// notifyIfNoOpsTokens prints a prominent reminder when the ops-token table is
// empty. The admin API rejects everything until a token exists, and the only
// way to mint the first one is this binary's ops-token subcommand.
func notifyIfNoOpsTokens(database *sql.DB) {
	repo := repositories.NewOpsTokenRepository(database)
	tokens, err := repo.ListOpsTokens(context.Background())
	if err != nil {
		log.Printf("Warning: could not check for ops tokens: %v", err)
		return
	}
	if len(tokens) > 0 {
		return
	}

	separator := strings.Repeat("═", 66)
	log.Println("")
	log.Println(separator)
	log.Println("  NO OPS TOKENS EXIST")
	log.Println("")
	log.Println("  The admin API (/api/v1/admin) is unreachable until an operator")
	log.Println("  token is minted. Create the first one with:")
	log.Println("")
	log.Printf("    %s ops-token <name> [scope,scope,...]", os.Args[0])
	log.Println("")
	log.Println("  Scopes default to admin. Further tokens can then be managed")
	log.Println("  over the HTTP API.")
	log.Println(separator)
	log.Println("")
}

// registerTelegramWebhook tells Telegram where to deliver updates. The
// public URL must be HTTPS and reachable from outside; in reverse-proxied
// deployments that is server.public_url, not the listen address.
func registerTelegramWebhook(cfg *config.Config) {
	webhookURL := strings.TrimSuffix(cfg.Server.GetPublicURL(), "/") + "/api/v1/telegram/webhook"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := bot.NewClient(&cfg.Telegram)
	if err := client.SetWebhook(ctx, webhookURL, cfg.Telegram.WebhookSecret); err != nil {
		log.Printf("Warning: Telegram webhook registration failed: %v", err)
		log.Printf("         Updates will not arrive until setWebhook succeeds for %s", webhookURL)
		return
	}
	log.Printf("Telegram webhook registered: %s", webhookURL)
}

// mintOpsToken creates an operator token from the command line. The raw token
// is printed exactly once; only its bcrypt hash is stored.
func mintOpsToken(cfg *config.Config, name, scopesArg string) error {
	scopes := auth.GetAdminScopes()
	if scopesArg != "" {
		scopes = strings.Split(scopesArg, ",")
		for i := range scopes {
			scopes[i] = strings.TrimSpace(scopes[i])
		}
		if err := auth.ValidateScopes(scopes); err != nil {
			return fmt.Errorf("invalid scopes: %w", err)
		}
	}

	database, err := db.Connect(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	fullToken, tokenHash, displayPrefix, err := auth.GenerateOpsToken(cfg.Auth.OpsTokens.Prefix)
	if err != nil {
		return fmt.Errorf("failed to generate ops token: %w", err)
	}

	token := &models.OpsToken{
		Name:          name,
		TokenHash:     tokenHash,
		DisplayPrefix: displayPrefix,
		Scopes:        scopes,
	}
	repo := repositories.NewOpsTokenRepository(database)
	if err := repo.CreateOpsToken(context.Background(), token); err != nil {
		return fmt.Errorf("failed to store ops token: %w", err)
	}

	separator := strings.Repeat("═", 66)
	fmt.Println("")
	fmt.Println(separator)
	fmt.Printf("  Ops token created: %s\n", name)
	fmt.Println("")
	fmt.Printf("  Token:  %s\n", fullToken)
	fmt.Printf("  Prefix: %s\n", displayPrefix)
	fmt.Printf("  Scopes: %s\n", strings.Join(scopes, ", "))
	fmt.Println("")
	fmt.Println("  This token is shown once and cannot be recovered. Treat it like")
	fmt.Println("  a root password.")
	fmt.Println(separator)
	fmt.Println("")
	return nil
}

func runMigrations(cfg *config.Config, direction string) error {
	// Connect to database
	database, err := db.Connect(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	log.Printf("Running migrations: %s", direction) // #nosec G706 -- logged value is application-internal

	// Run migrations
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Get current version
	schemaVersion, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", schemaVersion, dirty)
	return nil
}
