package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taskmind/taskmind/internal/api"
	"github.com/taskmind/taskmind/internal/config"
	"github.com/taskmind/taskmind/internal/db"
	"github.com/taskmind/taskmind/internal/events"
	"github.com/taskmind/taskmind/internal/intent"
	"github.com/taskmind/taskmind/internal/llm"
	"github.com/taskmind/taskmind/internal/orchestrator"
	"github.com/taskmind/taskmind/internal/skills"
	"github.com/taskmind/taskmind/internal/tools"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "taskmind-server",
		Short: "Natural-language task assistant server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to YAML config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	store, err := db.New(cfg.DB.Path)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("path", cfg.DB.Path))
	}
	defer store.Close()

	gateway, err := llm.New(cfg.LLM.BaseURL, cfg.LLM.Token, cfg.LLM.Model, logger,
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithMaxRetries(cfg.LLM.MaxRetries),
	)
	if err != nil {
		logger.Fatal("failed to initialize LLM gateway", zap.Error(err))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			logger.Fatal("failed to connect event publisher", zap.Error(err))
		}
		defer natsPub.Close()
		publisher = natsPub
	}

	extractors := skills.NewExtractors(gateway, logger, nil)
	detector := intent.NewDetector()
	newRegistry := func(rc tools.RequestContext) *tools.Registry {
		reg := tools.NewRegistry(rc, logger)
		tools.RegisterTaskTools(reg, store, publisher)
		return reg
	}

	loop := orchestrator.NewLoop(store, gateway, detector, extractors, newRegistry, logger)
	handler := api.NewHandler(store, loop, api.NewTokenAuth(cfg.Auth.Tokens), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/command", handler.HandleChatCommand)
	mux.HandleFunc("/api/conversations", handler.GetConversations)
	mux.HandleFunc("/api/messages", handler.GetMessages)
	mux.HandleFunc("/api/tasks", handler.GetTasks)
	mux.HandleFunc("/api/health", handler.HealthCheck)

	logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
	if err := http.ListenAndServe(cfg.Server.Addr, mux); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
	return nil
}
