package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"roadbook/internal/amqp"
	"roadbook/internal/backend"
	"roadbook/internal/cache"
	"roadbook/internal/calendar"
	"roadbook/internal/cli"
	"roadbook/internal/core"
	apphttp "roadbook/internal/http"
	"roadbook/internal/log"
	"roadbook/internal/middleware/ratelimit"
	"roadbook/internal/services"
	"roadbook/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentApp)
	loc, firstWeekday := cli.Calendar(cfg)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger, loc).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err)
			}
		}()
	}
	store := result.Backend

	tripCache := calendar.NewCachedFetcher[core.Trip]("trips", services.TripFetcher(store), cfg.CacheSize, cfg.CacheTTL)
	fuelCache := calendar.NewCachedFetcher[core.FuelExpense]("fuel_expenses", services.FuelExpenseFetcher(store), cfg.CacheSize, cfg.CacheTTL)
	costs := services.NewCostService(store, store, cfg.CacheTTL)

	caches := cache.NewManager()
	caches.Register("trips", tripCache.Cache())
	caches.Register("fuel_expenses", fuelCache.Cache())
	if pc := costs.PriceCache(); pc != nil {
		caches.Register("fuel_prices", pc)
	}
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	now := time.Now().In(loc)
	tripScreen := calendar.NewScreen("trips", calendar.Fetcher[core.Trip](tripCache), calendar.TripStart, now)
	fuelScreen := calendar.NewScreen("refuels", calendar.Fetcher[core.FuelExpense](fuelCache), calendar.FuelExpenseDate, now)

	invalidations := worker.NewInvalidationWorker()
	invalidations.Register(amqp.KindTrip, tripCache, tripScreen)
	invalidations.Register(amqp.KindFuelExpense, fuelCache, fuelScreen)

	// Without a broker, record changes invalidate this process only.
	var publisher services.Publisher = services.PublisherFunc(invalidations.HandleMessage)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to create AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client

		go func() {
			if err := invalidations.Run(ctx, client); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithComponent(log.ComponentWorker).Error("Invalidation worker stopped", log.FieldError, err)
			}
		}()
		logger.Info("Record change notifications enabled",
			"exchange", cfg.AMQPExchange,
			"queue", cfg.AMQPQueue,
			"targets", invalidations.String())
	} else {
		logger.Info("AMQP disabled, invalidating caches in-process")
	}

	deps := apphttp.Deps{
		Trips:         tripScreen,
		Refuels:       fuelScreen,
		Records:       services.NewRecordService(store, publisher),
		Costs:         costs,
		Summaries:     services.NewSummaryService(tripCache, fuelCache, store, costs),
		Cars:          store,
		TripWindows:   tripCache,
		RefuelWindows: fuelCache,
		Logger:        logger,
		Location:      loc,
		FirstWeekday:  firstWeekday,
		RateLimit:     ratelimit.Config{Requests: cfg.RateLimitPerMinute, Period: time.Minute},
	}
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		deps.Ready = p.Ping
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting roadbook server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String(),
		"first_weekday", firstWeekday.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		stop()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
