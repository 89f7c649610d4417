package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/repodock/repodock/internal/adapter/analysis"
	"github.com/repodock/repodock/internal/adapter/cache"
	"github.com/repodock/repodock/internal/adapter/store"
	"github.com/repodock/repodock/internal/adapter/vcs"
	"github.com/repodock/repodock/internal/handler"
	"github.com/repodock/repodock/internal/mcp"
	"github.com/repodock/repodock/internal/metrics"
	"github.com/repodock/repodock/internal/middleware"
	"github.com/repodock/repodock/internal/port"
	"github.com/repodock/repodock/internal/service"
	"github.com/repodock/repodock/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting RepoDock",
		"port", cfg.Port,
		"storage_root", cfg.StorageRoot,
		"storage_limit_bytes", cfg.LimitBytes,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	// ── Rate limit window store ──────────────────────────────────────────
	var windows port.WindowStore
	var cachePing handler.Pinger
	if cfg.RedisAddr != "" {
		rs := cache.NewRedisWindowStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		windows, cachePing = rs, rs
		slog.Info("rate limiter using redis", "addr", cfg.RedisAddr)
	} else {
		ms := cache.NewMemoryWindowStore()
		windows, cachePing = ms, ms
		slog.Info("rate limiter using in-memory windows")
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	transport := vcs.NewGitTransport()
	analyzer := analysis.NewAnalyzer()
	processor := analysis.NewProcessor()

	m := metrics.New()
	tracker := service.NewProgressTracker()

	// ── Services ─────────────────────────────────────────────────────────
	authService := service.NewAuthService(pgStore, pgStore, service.AuthConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		TokenTTL: cfg.TokenTTL,
	})
	importService := service.NewImportService(pgStore, transport, analyzer, tracker, m, service.ImportConfig{
		StorageRoot:  cfg.StorageRoot,
		CloneDepth:   cfg.CloneDepth,
		CloneTimeout: cfg.CloneTimeout,
		VersionKeep:  cfg.VersionKeep,
	})
	repoService := service.NewRepoService(pgStore, analyzer, processor, cfg.StorageRoot)
	storageService := service.NewStorageService(pgStore, transport, analyzer, m, service.StorageConfig{
		StorageRoot:    cfg.StorageRoot,
		LimitBytes:     cfg.LimitBytes,
		EvictThreshold: cfg.EvictThreshold,
		EvictBatch:     cfg.EvictBatch,
		StaleAfter:     cfg.StaleAfter,
		CloneDepth:     cfg.CloneDepth,
		CloneTimeout:   cfg.CloneTimeout,
		VersionKeep:    cfg.VersionKeep,
	})
	limiter := service.NewRateLimiter(windows)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))
	app.Use(middleware.Metrics(m))

	// ── Public Routes ────────────────────────────────────────────────────
	healthHandler := handler.NewHealthHandler(pgStore, cachePing)
	healthHandler.Register(app)

	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	authHandler := handler.NewAuthHandler(authService)
	publicAPI := app.Group("/api/v1", middleware.Audit(pgStore))
	authHandler.RegisterPublic(publicAPI)

	// ── Protected Routes ─────────────────────────────────────────────────
	api := app.Group("/api/v1",
		middleware.Auth(authService),
		middleware.Audit(pgStore),
		middleware.RateLimit(limiter, m, middleware.RateLimitConfig{
			Class:  "api",
			Limit:  cfg.APIRateLimit,
			Window: cfg.APIRateWindow,
		}),
	)

	importLimit := middleware.RateLimit(limiter, m, middleware.RateLimitConfig{
		Class:  "import",
		Limit:  cfg.ImportRateLimit,
		Window: cfg.ImportRateWindow,
	})

	authHandler.RegisterProtected(api)

	jobsHandler := handler.NewJobsHandler(importService)
	jobsHandler.Register(api)

	repoHandler := handler.NewRepoHandler(importService, repoService, storageService)
	repoHandler.Register(api, importLimit)

	storageHandler := handler.NewStorageHandler(storageService)
	storageHandler.Register(api)

	auditHandler := handler.NewAuditHandler(pgStore)
	auditHandler.Register(api)

	// ── Background workers ───────────────────────────────────────────────
	go storageService.RunSweeper(context.Background(), cfg.SweepInterval)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(pgStore, importService, storageService, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
