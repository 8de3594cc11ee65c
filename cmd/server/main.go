package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	_ "time/tzdata"

	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/api"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/config"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/integration"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/log"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/repository"
	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/scheduler"
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
	logger.Infow("starting evaporation service", "station", cfg.StationCode, "timezone", cfg.Timezone)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := usecases.SettingsFromConfig(cfg)
	if err != nil {
		logger.Fatalf("Invalid settings: %v", err)
	}

	// Initialize repository
	repo, err := repository.NewSQLiteRepository(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	fetcher := integration.NewRainLogFetcher(cfg.Rain.BaseURL, cfg.Rain.FilenamePrefix, cfg.Rain.Timeout, logger)
	useCase := usecases.NewEvaporationUseCase(repo, repo, fetcher, settings, logger)

	// Daily reports go to Telegram when a chat is configured
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		bot, err := api.NewTelegramBot(cfg.Telegram.Token, cfg.Telegram.ChatID, useCase, logger)
		if err != nil {
			logger.Warnw("telegram notifications disabled", "error", err)
		} else {
			useCase.SetNotifier(bot)
		}
	}

	sched, err := scheduler.New(ctx, useCase, cfg.Schedule.Rolling, cfg.Schedule.Daily, settings.Location, log.NewCronLogger(logger))
	if err != nil {
		logger.Fatalf("Failed to set up cron jobs: %v", err)
	}
	sched.Start()
	logger.Infow("computations scheduled", "rolling", cfg.Schedule.Rolling, "daily", cfg.Schedule.Daily)

	var wg sync.WaitGroup
	server := api.NewHTTPServer(cfg.HTTP.ListenAddr, useCase, logger)
	server.Start(ctx, &wg)

	<-ctx.Done()
	logger.Info("shutting down...")
	<-sched.Stop().Done()
	wg.Wait()
}
