package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/audit"
	"github.com/zelta-inc/zelta-engine/pkg/auth"
	"github.com/zelta-inc/zelta-engine/pkg/config"
	"github.com/zelta-inc/zelta-engine/pkg/database"
	"github.com/zelta-inc/zelta-engine/pkg/handlers"
	"github.com/zelta-inc/zelta-engine/pkg/llm"
	"github.com/zelta-inc/zelta-engine/pkg/logging"
	"github.com/zelta-inc/zelta-engine/pkg/mcp"
	"github.com/zelta-inc/zelta-engine/pkg/mcp/tools"
	"github.com/zelta-inc/zelta-engine/pkg/metrics"
	"github.com/zelta-inc/zelta-engine/pkg/middleware"
	"github.com/zelta-inc/zelta-engine/pkg/repositories"
	"github.com/zelta-inc/zelta-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env if present; the environment alone is fine in deployment.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Version = Version

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("addr", cfg.Addr()),
		zap.Bool("auth_disabled", cfg.Auth.Disabled),
		zap.String("database", cfg.Database.Database),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", cfg.AI.Model))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := db.Migrate(cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Authentication
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: !cfg.Auth.Disabled,
		JWKSURL:            cfg.Auth.JWKSURL,
		Issuer:             cfg.Auth.Issuer,
		Audience:           cfg.Auth.Audience,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	// Generation backends
	llmCfg := &llm.Config{
		Provider:      cfg.AI.Provider,
		APIKey:        cfg.AI.EffectiveAPIKey(),
		OpenAIAPIKey:  cfg.AI.OpenAIAPIKey,
		BaseURL:       cfg.AI.BaseURL,
		Model:         cfg.AI.Model,
		FallbackModel: cfg.AI.FallbackModel,
		ImageModel:    cfg.AI.ImageModel,
		ImageSize:     cfg.AI.ImageSize,
		Temperature:   cfg.AI.Temperature,
	}
	primary, err := llm.NewGenerator(llmCfg, logger)
	if err != nil {
		logger.Fatal("Failed to create text generator", zap.Error(err))
	}
	fallback, err := llm.NewFallbackGenerator(llmCfg, logger)
	if err != nil {
		logger.Fatal("Failed to create fallback generator", zap.Error(err))
	}
	chain := llm.NewInvocationChain(primary, fallback, llm.DefaultChainConfig(), logger)
	imageGenerator := llm.NewImageGenerator(llmCfg, logger)
	fanout := llm.NewFanout(llm.FanoutConfig{MaxConcurrent: cfg.AI.MaxConcurrentImages}, logger)

	// Repositories and services
	projectRepo := repositories.NewProjectRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)
	screener := audit.NewScreener(logger)

	documentService := services.NewDocumentService(projectRepo, documentRepo, logger)
	projectService := services.NewProjectService(projectRepo, screener, logger)
	imageService := services.NewImageService(imageGenerator, fanout, logger)
	pipeline := services.NewStagePipeline(projectRepo, documentService, chain, imageService, screener, logger)

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(db, cfg, logger).RegisterRoutes(mux)
	handlers.NewProjectsHandler(projectService, documentService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewStagesHandler(pipeline, logger).RegisterRoutes(mux, authMiddleware)

	mux.Handle("/metrics", metrics.Handler())

	// MCP server for agent access, same bearer auth as the REST API
	mcpServer := mcp.NewServer("zelta-engine", Version, logger)
	tools.RegisterProjectTools(mcpServer.MCP(), &tools.ProjectToolDeps{
		ProjectService: projectService,
		Logger:         logger,
	})
	mcpHTTP := middleware.MCPRequestLogger(logger)(mcpServer.NewStreamableHTTPServer())
	mux.Handle("/mcp", authMiddleware.RequireAuth(mcpHTTP.ServeHTTP))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: stage generation streams for minutes.
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting zelta-engine",
			zap.String("addr", cfg.Addr()),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

// newLogger builds the root logger for the configured environment.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
