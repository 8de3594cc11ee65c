package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/api"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/config"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/integration"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/integration/openai"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/log"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/repository"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/usecases"
)

func main() {
	configDir := flag.String("config", ".", "Directory containing config.yaml and .env")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger := log.GetSugaredLogger()
	logger.Info("Starting evaporation bot...")

	if cfg.Telegram.Token == "" {
		logger.Fatal("telegram.token (EVAP_TELEGRAM_TOKEN) is not set")
	}

	settings, err := usecases.SettingsFromConfig(cfg)
	if err != nil {
		logger.Fatalf("Invalid settings: %v", err)
	}

	// The bot reads the same database the server writes
	repo, err := repository.NewSQLiteRepository(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	// The fetcher answers /rainlogs from the logger's directory index
	fetcher := integration.NewRainLogFetcher(cfg.Rain.BaseURL, cfg.Rain.FilenamePrefix, cfg.Rain.Timeout, logger)
	useCase := usecases.NewEvaporationUseCase(repo, repo, fetcher, settings, logger)

	telegramBot, err := api.NewTelegramBot(cfg.Telegram.Token, cfg.Telegram.ChatID, useCase, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize Telegram bot: %v", err)
	}

	// Free-text questions are interpreted only when an OpenAI key is configured
	if cfg.OpenAI.APIKey != "" {
		interpreter, err := openai.NewQueryInterpreter(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.StationCode, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize OpenAI interpreter: %v", err)
		}
		telegramBot.SetInterpreter(interpreter)
		logger.Infow("natural language queries enabled", "model", cfg.OpenAI.Model)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telegramBot.Start(ctx)
}
