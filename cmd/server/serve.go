package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"resumeai.app/resume-ai/internal/api"
	"resumeai.app/resume-ai/internal/auth"
	"resumeai.app/resume-ai/internal/cache"
	"resumeai.app/resume-ai/internal/config"
	"resumeai.app/resume-ai/internal/core"
	"resumeai.app/resume-ai/internal/extract"
	"resumeai.app/resume-ai/internal/logger"
	"resumeai.app/resume-ai/internal/session"
	"resumeai.app/resume-ai/internal/store"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireSecrets(); err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync(log)

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	healthChecks := map[string]api.HealthCheck{"database": dbStore.Ping}

	// Sessions and analysis results share one cache
	var cacheStore cache.Store
	if cfg.RedisURL != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisURL, "resume-ai:")
		if err != nil {
			return err
		}
		defer rdb.Close()
		cacheStore = rdb
		healthChecks["redis"] = rdb.Ping
		log.Info("using redis cache")
	} else {
		cacheStore = cache.NewMemory()
		log.Info("using in-memory cache; sessions are lost on restart")
	}

	identity, err := newIdentity(cfg, dbStore)
	if err != nil {
		return err
	}

	llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		return err
	}
	defer llmService.Close()

	extractor := extract.New(extract.PlainPDF{}, extract.NewHTTPArticles(nil), extract.NewYouTubeCaptions(nil))

	apiHandler := api.NewAPIHandler(api.Deps{
		Identity:       identity,
		Tokens:         auth.NewTokens(cfg.JWTSecret, cfg.SessionTTL),
		Gate:           auth.NewGate(identity, log),
		Sessions:       session.NewStore(cacheStore, cfg.SessionTTL),
		Locks:          session.NewLocks(),
		Extractor:      extractor,
		Analysis:       core.NewAnalysisService(llmService, cacheStore, cfg.AnalysisCacheTTL, cfg.MinTextLength, log),
		Chat:           core.NewChatService(llmService),
		Notes:          core.NewNoteService(dbStore),
		History:        core.NewHistoryService(dbStore, log),
		MaxUploadBytes: cfg.MaxUploadBytes,
		HealthChecks:   healthChecks,
		Logger:         log,
	})
	router := api.NewRouter(apiHandler, log)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second, // uploads
		WriteTimeout: 5 * time.Minute,  // three sequential generations
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", serverAddr), zap.String("auth_backend", cfg.AuthBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	case <-quit:
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited gracefully")
	return nil
}

func newIdentity(cfg *config.Config, dbStore *store.SQLiteStore) (auth.Identity, error) {
	switch cfg.AuthBackend {
	case config.AuthBackendFile:
		fileIdentity, err := auth.LoadFileIdentity(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return fileIdentity, nil
	default:
		return auth.NewStoreIdentity(dbStore, cfg.TrialDays), nil
	}
}
