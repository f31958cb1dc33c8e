// Command sweeper deactivates occurrences whose deadline has passed.  It runs
// once, or every SWEEP_INTERVAL when that is set.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/cityhelp/internal/config"
	"github.com/iliyamo/cityhelp/internal/database"
	"github.com/iliyamo/cityhelp/internal/events"
	"github.com/iliyamo/cityhelp/internal/repository"
	"github.com/iliyamo/cityhelp/internal/service"
)

func main() {
	cfg := config.Load()
	logger := config.SetupLogger(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	var pub service.EventPublisher = events.NopPublisher{}
	if cfg.Broker.URL != "" {
		p := events.NewPublisher(cfg.Broker.URL, cfg.Broker.Queue, logger)
		defer p.Close()
		pub = p
	}
	occurrences := repository.NewOccurrenceRepo(db)
	svc := service.NewOccurrenceService(occurrences, repository.NewTypeRepo(db), nil,
		service.DefaultClosurePolicy(), pub, service.WithLogger(logger))

	interval, err := time.ParseDuration(os.Getenv("SWEEP_INTERVAL"))
	if err != nil || interval <= 0 {
		if !sweep(ctx, svc, logger) {
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sweep(ctx, svc, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweep(ctx context.Context, svc *service.OccurrenceService, logger *slog.Logger) bool {
	n, err := svc.ExpireOverdue(ctx)
	if err != nil {
		logger.Error("sweep failed", "err", err)
		return false
	}
	logger.Info("sweep done", "expired", n)
	return true
}
