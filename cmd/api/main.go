package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/voicebook/internal/api/router"
	"github.com/wolfman30/voicebook/internal/auth"
	"github.com/wolfman30/voicebook/internal/availability"
	"github.com/wolfman30/voicebook/internal/booking"
	appconfig "github.com/wolfman30/voicebook/internal/config"
	"github.com/wolfman30/voicebook/internal/directory"
	"github.com/wolfman30/voicebook/internal/highlevel"
	"github.com/wolfman30/voicebook/internal/http/handlers"
	"github.com/wolfman30/voicebook/internal/observability/metrics"
	"github.com/wolfman30/voicebook/internal/planner"
	"github.com/wolfman30/voicebook/internal/schedule"
	"github.com/wolfman30/voicebook/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting voicebook API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database not reachable", "error", err)
		os.Exit(1)
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOptions)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis not reachable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	registry := prometheus.NewRegistry()
	searchMetrics := metrics.NewSearchMetrics(registry)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	// Directory and platform plumbing
	store := directory.NewStore(pool)
	tokens := auth.NewManager(redisClient, store,
		cfg.HighLevelTokenURL, cfg.HighLevelClientID, cfg.HighLevelClientSecret, logger)
	crm := highlevel.NewClient(tokens, logger,
		highlevel.WithBaseURL(cfg.HighLevelBaseURL),
		highlevel.WithTimeout(cfg.HighLevelTimeout))

	// Booking brain
	searchSvc := availability.NewService(store, crm, searchMetrics, logger,
		availability.WithLeadTime(cfg.SlotLeadTime),
		availability.WithResultCaps(cfg.AvailabilityResults, cfg.RequestedTimeCap),
		availability.WithInitialWindow(cfg.DefaultSearchDays))
	schedules := schedule.New(crm, cfg.ScheduleCacheTTL, logger)
	planSvc := planner.NewService(searchSvc, crm, schedules, logger,
		planner.WithLeadTime(cfg.SlotLeadTime),
		planner.WithSearchDays(cfg.PackageSearchDays),
		planner.WithMaxPlans(cfg.MaxPreviewPlans))
	orchestrator := booking.NewOrchestrator(crm, bookingMetrics, logger)

	tools := handlers.NewToolHandler(handlers.ToolHandlerConfig{
		Search:   searchSvc,
		Plans:    planSvc,
		Booker:   orchestrator,
		Packages: store,
		Admin:    crm,
		Logger:   logger,
	})

	r := router.New(&router.Config{
		Logger:         logger,
		Tools:          tools,
		ToolSecret:     cfg.ToolSharedSecret,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		HealthCheck: func(w http.ResponseWriter, req *http.Request) {
			status := "ok"
			code := http.StatusOK
			if err := pool.Ping(req.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
