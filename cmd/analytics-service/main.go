package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/trogers1052/portfolio-analytics/internal/api"
	"github.com/trogers1052/portfolio-analytics/internal/cache"
	"github.com/trogers1052/portfolio-analytics/internal/compute"
	"github.com/trogers1052/portfolio-analytics/internal/compute/accel"
	"github.com/trogers1052/portfolio-analytics/internal/config"
	"github.com/trogers1052/portfolio-analytics/internal/database"
	"github.com/trogers1052/portfolio-analytics/internal/kafka"
	"github.com/trogers1052/portfolio-analytics/internal/logging"
	"github.com/trogers1052/portfolio-analytics/internal/service"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Analytics.Environment)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	resultCache := cache.New(cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB), cfg.Redis.TTL)
	defer resultCache.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := resultCache.Ping(ctx); err != nil {
		logger.Warn("Redis unavailable, results will not be cached until it recovers", zap.Error(err))
	}

	dispatcher := compute.NewDispatcher(
		accel.NewLoader(accel.Config{
			Enabled:   cfg.Compute.AcceleratedEnabled,
			Workers:   cfg.Compute.Workers,
			ChunkSize: cfg.Compute.ChunkSize,
		}),
		compute.Options{
			LoadTimeout: cfg.Compute.LoadTimeout,
			Logger:      logger.Named("compute"),
			Registerer:  prometheus.DefaultRegisterer,
		},
	)
	// load eagerly so the first request does not pay for calibration
	go dispatcher.Ensure(ctx)

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AnalyticsTopic)
	defer producer.Close()

	analytics := service.New(db, dispatcher, resultCache, producer, logger.Named("service"))

	consumer := kafka.NewPositionsConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.PositionsTopic,
		cfg.Kafka.ConsumerGroupID,
		db,
		analytics,
		logger.Named("positions"),
	)
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Start(ctx)
	}()

	handler := api.NewHandler(analytics, dispatcher, api.Defaults{
		Benchmark:    cfg.Analytics.BenchmarkSymbol,
		LookbackDays: cfg.Analytics.LookbackDays,
		RiskFreeRate: cfg.Analytics.RiskFreeRate,
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           api.SetupRoutes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	select {
	case err := <-consumerDone:
		if err != nil {
			logger.Error("Positions consumer stopped with error", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Warn("Timed out waiting for positions consumer")
	}

	logger.Info("Service stopped")
}
