package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"village_tracker/internal/api"
	"village_tracker/internal/catalog"
	"village_tracker/internal/config"
	"village_tracker/internal/publisher"
	"village_tracker/internal/scheduler"
	"village_tracker/internal/service"
	"village_tracker/internal/source/homefinder"
	"village_tracker/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	// Load region catalog
	cat, err := catalog.Load(cfg.Run.CatalogPath)
	if err != nil {
		logger.Error("failed to load region catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("loaded region catalog", "villages", cat.Len())

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize RabbitMQ publisher
	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	// Initialize store
	snapshotStore := postgres.NewSnapshotStore(db)
	txManager := postgres.NewTransactionManager(db)

	// Initialize homefinder source
	source := homefinder.New(homefinder.Config{
		URL:          cfg.Scrape.URL,
		Timeout:      cfg.Scrape.Timeout,
		ScrollPause:  cfg.Scrape.ScrollPause,
		StableRounds: cfg.Scrape.StableRounds,
	}, logger)

	// Create run service
	runService := service.NewRunService(
		source,
		cat,
		snapshotStore,
		txManager,
		rabbitMQ,
		logger,
		cfg.Run,
	)

	sched := scheduler.NewScheduler(runService, cfg.Run.Interval, cfg.Run.Timeout, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Query API for the dashboard
	router := mux.NewRouter()
	api.NewHandler(snapshotStore, runService, logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Run.Timeout + 15*time.Second, // /api/run is synchronous
	}

	go func() {
		logger.Info("http api listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("starting village tracker",
		"source", source.Name(),
		"interval", cfg.Run.Interval,
	)

	err = sched.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
