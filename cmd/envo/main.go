// Package main contains the entrypoint for the Envo personal agent.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/envologia/envo/internal/bot"
	"github.com/envologia/envo/internal/bot/tasks"
	"github.com/envologia/envo/internal/config"
	"github.com/envologia/envo/internal/database"
	"github.com/envologia/envo/internal/dispatcher"
	"github.com/envologia/envo/internal/gemini"
	"github.com/envologia/envo/internal/logger"
	"github.com/envologia/envo/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components (config, logger, store, generation client,
// transport, dispatcher, supervisor), blocks until shutdown, and returns the
// process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.JSON)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	aiClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	adapter, err := telegram.New(cfg.Telegram, log)
	if err != nil {
		log.Error("Failed to create Telegram adapter", "error", err)
		return 1
	}

	disp := dispatcher.New(dispatcher.Deps{
		Logger:    log,
		Config:    cfg,
		Store:     store,
		AI:        aiClient,
		Transport: adapter,
	})
	log.Info("Dispatcher initialized", "commands", disp.CommandNames())

	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	supervisor := bot.NewSupervisor(log, cfg, adapter, disp, sched)

	log.Info("Starting agent...")
	runErr := supervisor.Run(ctx)
	log.Info("Agent run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Agent stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Agent stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
