package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/specdock/specdock/pkg/api"
	"github.com/specdock/specdock/pkg/config"
	"github.com/specdock/specdock/pkg/fetch"
	"github.com/specdock/specdock/pkg/observability"
	"github.com/specdock/specdock/pkg/query"
	"github.com/specdock/specdock/pkg/registry"
	"github.com/specdock/specdock/pkg/schema"
	"github.com/specdock/specdock/pkg/store"
)

func main() {
	port := flag.String("port", "", "Port to listen on (overrides SPECDOCK_PORT)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	fetcher := fetch.New(
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithCache(cfg.Fetch.CacheSize, cfg.Fetch.CacheTTL),
	)
	schemaCache := schema.NewCache(fetcher, cfg.Schema.CacheTTL, logger, metrics)
	validator := schema.NewValidator(schemaCache, cfg.Schema.V3Sources, cfg.Schema.V2Sources)

	mem := store.NewMemory(store.WithMetrics(metrics))
	reg := registry.New(mem, validator, fetcher,
		registry.WithLogger(logger),
		registry.WithMetrics(metrics),
		registry.WithRefreshWorkers(cfg.Refresh.Workers),
	)
	planner := query.NewPlanner(mem)

	var scheduler *cron.Cron
	if cfg.Refresh.Enabled {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.Refresh.Schedule, reg.RefreshAllJob(cfg.Refresh.DryRun)); err != nil {
			log.Fatalf("Failed to schedule refresh: %v", err)
		}
		scheduler.Start()
		logger.WithField("schedule", cfg.Refresh.Schedule).Info("refresh scheduler started")
	}

	server := api.NewServer(reg, planner, logger, metrics)
	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(cfg.Server.MaxBodyBytes),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("registry server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
}
