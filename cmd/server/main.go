package main // entry point of the HTTP API

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/iliyamo/cityhelp/internal/config"
	"github.com/iliyamo/cityhelp/internal/database"
	"github.com/iliyamo/cityhelp/internal/events"
	"github.com/iliyamo/cityhelp/internal/geocoding"
	"github.com/iliyamo/cityhelp/internal/handler"
	"github.com/iliyamo/cityhelp/internal/repository"
	"github.com/iliyamo/cityhelp/internal/router"
	"github.com/iliyamo/cityhelp/internal/service"
	"github.com/iliyamo/cityhelp/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := config.SetupLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("schema applied")
	}

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	types := repository.NewTypeRepo(db)
	occurrences := repository.NewOccurrenceRepo(db)
	comments := repository.NewCommentRepo(db)
	images := repository.NewImageRepo(db)

	// Optional collaborators stay nil interfaces when not configured.
	var pub service.EventPublisher = events.NopPublisher{}
	var wg sync.WaitGroup
	if cfg.Broker.URL != "" {
		p := events.NewPublisher(cfg.Broker.URL, cfg.Broker.Queue, logger)
		defer p.Close()
		pub = p

		consumer := events.NewConsumer(cfg.Broker.URL, cfg.Broker.Queue, users, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event consumer stopped", "err", err)
			}
		}()
	} else {
		logger.Info("no broker configured, events disabled")
	}

	var store service.ImageStore
	if sc := config.LoadStorageConfig(); sc.Enabled() {
		store = storage.NewS3Store(storage.NewS3Client(sc), sc.Bucket, sc.PublicURL)
	} else {
		logger.Info("no bucket configured, image uploads disabled")
	}

	var geocoder service.Geocoder
	if cfg.Geocoder.BaseURL != "" {
		geocoder = geocoding.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout, nil)
	}

	opts := []service.Option{service.WithLogger(logger)}
	identity := service.NewIdentityService(users, tokens, service.IdentityConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, opts...)
	catalog := service.NewCatalogService(types, opts...)
	policy := service.ClosurePolicy{
		ClosureThreshold:     cfg.Closure.ClosureThreshold,
		NonExistingThreshold: cfg.Closure.NonExistingThreshold,
	}
	occurrenceSvc := service.NewOccurrenceService(occurrences, types, geocoder, policy, pub, opts...)
	attachments := service.NewAttachmentService(occurrences, comments, images, store, cfg.Upload.MaxBytes, pub, opts...)

	e := router.New(router.Handlers{
		Auth:        handler.NewAuthHandler(identity, cfg.RequestTimeout, logger),
		Users:       handler.NewUserHandler(identity, cfg.RequestTimeout, logger),
		Types:       handler.NewTypeHandler(catalog, cfg.RequestTimeout, logger),
		Occurrences: handler.NewOccurrenceHandler(occurrenceSvc, cfg.RequestTimeout, logger),
		Attachments: handler.NewAttachmentHandler(attachments, cfg.Upload.MaxBytes, cfg.RequestTimeout, logger),
		DB:          db,
	}, router.Options{
		JWTSecret:     cfg.JWTSecret,
		RateLimit:     config.LoadRateLimitConfig(),
		Cache:         config.LoadCacheConfig(),
		Redis:         rdb,
		Logger:        logger,
		MaxUploadSize: cfg.Upload.MaxBytes,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	stop()
	wg.Wait()
	return nil
}
