package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jwebster45206/branch-engine/internal/archive"
	"github.com/jwebster45206/branch-engine/internal/config"
	"github.com/jwebster45206/branch-engine/internal/logger"
	"github.com/jwebster45206/branch-engine/internal/services"
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

	log.Info("Starting Branch Engine Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL)

	// Initialize queue service
	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()

	resolveQueue := queue.NewResolveQueue(queueClient)
	log.Info("Queue service initialized successfully")

	// Initialize storage service
	storageService := storage.NewRedisStorage(cfg.RedisURL, cfg.DataPath, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := storageService.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	// Initialize LLM service
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

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	if err := llmService.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}
	log.Info("LLM service initialized successfully", "model", cfg.ModelName)

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
	log.Info("Resolution processor initialized successfully")

	w := worker.New(resolveQueue, processor, storageService.Client(), log, "")

	go func() {
		if err := w.Start(); err != nil {
			log.Error("Worker stopped with error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Worker is shutting down...")
	w.Stop()

	if err := storageService.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Worker exited")
}
