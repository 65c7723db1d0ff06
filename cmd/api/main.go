package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jwebster45206/branch-engine/internal/archive"
	"github.com/jwebster45206/branch-engine/internal/config"
	"github.com/jwebster45206/branch-engine/internal/handlers"
	"github.com/jwebster45206/branch-engine/internal/logger"
	"github.com/jwebster45206/branch-engine/internal/middleware"
	"github.com/jwebster45206/branch-engine/internal/services"
	"github.com/jwebster45206/branch-engine/internal/services/events"
	"github.com/jwebster45206/branch-engine/internal/services/queue"
	"github.com/jwebster45206/branch-engine/internal/storage"
	"github.com/jwebster45206/branch-engine/internal/worker"
	"github.com/jwebster45206/branch-engine/pkg/catalog"
	"github.com/jwebster45206/branch-engine/pkg/convergence"
	"github.com/jwebster45206/branch-engine/pkg/engine"
	"github.com/jwebster45206/branch-engine/pkg/escape"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Branch Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	var llmService services.LLMService
	switch strings.ToLower(cfg.LLMProvider) {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Error("Anthropic API key is required when using anthropic provider")
			os.Exit(1)
		}
		llmService = services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log)
		log.Info("Using Anthropic LLM provider")
	case "ollama":
		llmService = services.NewOllamaService(cfg.OllamaURL, cfg.ModelName, log)
		log.Info("Using Ollama LLM provider", "url", cfg.OllamaURL)
	case "mock":
		llmService = services.NewMockLLMAPI()
		log.Warn("Using mock LLM provider; catalog text stays templated")
	default:
		log.Error("Invalid LLM provider specified", "provider", cfg.LLMProvider, "supported", []string{"anthropic", "ollama", "mock"})
		os.Exit(1)
	}

	storageService := storage.NewRedisStorage(cfg.RedisURL, cfg.DataPath, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := storageService.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	if err := llmService.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}

	chronicle, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		log.Error("Failed to open archive", "error", err, "path", cfg.ArchivePath)
		os.Exit(1)
	}
	defer func() {
		if err := chronicle.Close(); err != nil {
			log.Error("Error closing archive", "error", err)
		}
	}()

	orchestrator := engine.New(
		catalog.NewGenerator(),
		escape.NewEvaluator(cfg.EscapeFireThreshold, nil, log),
		convergence.NewPlanner(),
		engine.Config{PremiseIncrement: cfg.PremiseIncrement},
		log,
	)
	processor := worker.NewResolutionProcessor(storageService, orchestrator, llmService, chronicle, log)

	queueClient := queue.NewClientFromRedis(storageService.Client(), log)
	resolveQueue := queue.NewResolveQueue(queueClient)
	broadcaster := events.NewBroadcaster(storageService.Client(), log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(storageService, log)
	mux.Handle("/health", healthHandler)

	premiseHandler := handlers.NewPremiseHandler(log, storageService)
	mux.Handle("/v1/premises", premiseHandler)
	mux.Handle("/v1/premises/", premiseHandler)

	branchHandler := handlers.NewBranchHandler(log, storageService, processor)
	choiceHandler := handlers.NewChoiceHandler(log, processor, resolveQueue, broadcaster)
	butterflyHandler := handlers.NewButterflyHandler(log, storageService)
	chronicleHandler := handlers.NewChronicleHandler(log, chronicle)
	mux.Handle("/v1/branch", branchHandler)
	mux.Handle("/v1/branch/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/choice"):
			choiceHandler.ServeHTTP(w, r)
		case strings.HasSuffix(r.URL.Path, "/butterfly"):
			butterflyHandler.ServeHTTP(w, r)
		case strings.HasSuffix(r.URL.Path, "/chronicle"):
			chronicleHandler.ServeHTTP(w, r)
		default:
			branchHandler.ServeHTTP(w, r)
		}
	}))

	eventsHandler := handlers.NewEventsHandler(storageService.Client(), log)
	mux.Handle("/v1/events/branch/", eventsHandler)

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout omitted so SSE streams are not cut off
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	if err := storageService.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}
