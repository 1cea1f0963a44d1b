package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"txtinspect/internal/config"
	"txtinspect/internal/gemini"
	"txtinspect/internal/handler"
	"txtinspect/internal/llm"
	"txtinspect/internal/repository"
	"txtinspect/internal/service"
	"txtinspect/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	flag.Parse()

	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting txtinspect...")

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// The model helpers are optional; without a provider they answer 503
	llmClient := newLLMClient(cfg, logger)
	if llmClient != nil {
		defer llmClient.Close()
	}

	// Create data directory if not exists
	if cfg.Database.Type == repository.TypeSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	repo, err := repository.New(cfg.Database.Type, cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	bounds := session.BoundsClamped
	if cfg.Session.LegacyCursorBounds {
		bounds = session.BoundsLegacy
	}
	sessions := session.NewManager(session.Options{
		PreviewRows: cfg.Session.PreviewRows,
		Bounds:      bounds,
		IdleTimeout: cfg.Session.IdleTimeout,
	}, logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go sessions.Run(ctx, cfg.Session.SweepInterval)

	// Initialize service
	var client service.LLMClient
	if llmClient != nil {
		client = llmClient
	}
	inspector := service.NewInspector(sessions, client, repo, service.Options{
		MinWords:        cfg.Session.MinWords,
		EvaluationLimit: cfg.Evaluation.MaxRecords,
		EvaluationDelay: cfg.Evaluation.Delay,
	}, logger)
	defer inspector.Close()

	// Initialize HTTP handler
	maxUpload := cfg.Session.MaxUploadMB << 20
	apiHandler := handler.NewHandler(inspector, maxUpload, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.MaxMultipartMemory = maxUpload

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register routes
	apiHandler.RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", serverAddr))

	// Graceful shutdown
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	modelName := "none"
	if llmClient != nil {
		if m, ok := llmClient.GetModelInfo()["model"].(string); ok {
			modelName = m
		}
	}

	logger.Info("txtinspect is running",
		zap.String("port", cfg.Server.Port),
		zap.String("model", modelName),
		zap.Bool("legacy_cursor_bounds", cfg.Session.LegacyCursorBounds))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newLLMClient builds the labeler over the configured providers. The
// multi-provider list wins; a lone Gemini key is the fallback.
func newLLMClient(cfg *config.Config, logger *zap.Logger) *llm.Labeler {
	if !cfg.HasLLM() {
		logger.Warn("No model provider configured; suggest, summarize and evaluate are disabled")
		return nil
	}

	if len(cfg.Providers) > 0 {
		multiClient, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
			Providers:   cfg.Providers,
			MaxFailures: cfg.MaxFailuresBeforeSwitch,
		}, logger)
		if err != nil {
			logger.Warn("Failed to initialize multi-provider client, falling back to single provider",
				zap.Error(err))
		} else {
			logger.Info("Multi-provider client initialized",
				zap.Int("provider_count", len(cfg.Providers)))
			return llm.NewLabeler(multiClient, logger)
		}
	}

	if !cfg.HasGemini() {
		logger.Warn("No fallback Gemini key configured; suggest, summarize and evaluate are disabled")
		return nil
	}

	geminiClient, err := gemini.NewClient(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		ModelName:  cfg.Gemini.ModelName,
		MaxRetries: cfg.Gemini.MaxRetries,
		RetryDelay: 2 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Gemini client", zap.Error(err))
		return nil
	}

	// Wrap with rate limiting
	logger.Info("Single provider client initialized with rate limiting")
	return llm.NewLabeler(llm.NewRateLimitedProvider(geminiClient, llm.DefaultRequestsPerMinute, logger), logger)
}
