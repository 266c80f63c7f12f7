package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"waterz/internal/api"
	"waterz/internal/backend"
	"waterz/internal/config"
	"waterz/internal/database"
	"waterz/internal/domain"
	"waterz/internal/events"
	"waterz/internal/logging"
	"waterz/internal/metrics"
	"waterz/internal/pricing"
	"waterz/internal/repository"
	"waterz/internal/service"
	"waterz/internal/slots"
	"waterz/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}
	logger := logging.Component(base, "api-main")

	db, err := database.NewDB(cfg.Database.Path, logging.Component(base, "ledger"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, logger)
	defer func() { _ = repository.Close(redisClient) }()

	drafts, sequencer := initStores(cfg, redisClient, base)

	client := backend.NewClient(cfg.Backend, logging.Component(base, "backend"))
	if redisClient != nil {
		client.UseRedisCache(redisClient, cfg.Backend.CacheTTL)
	}

	window, err := pricing.ParseWindow(cfg.Pricing.NonPeakStart, cfg.Pricing.NonPeakEnd)
	if err != nil {
		return fmt.Errorf("pricing window: %w", err)
	}
	classifier := pricing.NewClassifier(window)

	bus := events.NewEventBus(logging.Component(base, "events"))
	subscribeAuditLog(bus, logging.Component(base, "audit"))

	resolver := slots.NewResolver(client, sequencer, logging.Component(base, "slots"))
	checkout := service.NewCheckoutService(db, client, bus, cfg.Payment, cfg.Coupons, logging.Component(base, "checkout"))
	services := api.Services{
		Drafts:   service.NewDraftService(drafts, db, client, resolver, classifier, bus, logging.Component(base, "drafts")),
		Checkout: checkout,
		Catalog:  service.NewCatalogService(client, classifier, logging.Component(base, "catalog")),
		Account:  service.NewAccountService(client, logging.Component(base, "account")),
		Ready:    db.Ping,
	}
	httpServer := api.NewHTTPServer(cfg.API, services, logging.Component(base, "http"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(cfg.Database.Path, cfg.Backup, logging.Component(base, "backup"))
		go backups.Start(ctx)
	}

	if cfg.Reconciler.Enabled {
		reconciler := worker.NewReconciler(checkout, cfg.Reconciler.Interval, cfg.Reconciler.PendingTimeout,
			logging.Component(base, "reconciler"))
		go reconciler.Start(ctx)
	}

	startMetrics(ctx, cfg, logger)

	return startServer(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, baseLogger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, drafts fall back to memory until it recovers")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return redisClient
}

// initStores returns the draft store and slot sequencer, Redis-backed with in-memory failover when Redis is configured.
func initStores(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (domain.DraftRepository, domain.Sequencer) {
	memDrafts := repository.NewMemoryDraftRepository(cfg.Drafts.TTL)
	memSeq := repository.NewMemorySequencer()
	if redisClient == nil {
		logger.Info().Msg("redis not configured, drafts are kept in memory")
		return memDrafts, memSeq
	}

	storeLogger := logging.Component(logger, "store")
	drafts := repository.NewFailoverDraftRepository(
		repository.NewRedisDraftRepository(redisClient, cfg.Drafts.TTL), memDrafts, storeLogger)
	seq := repository.NewFailoverSequencer(
		repository.NewRedisSequencer(redisClient, cfg.Drafts.TTL), memSeq, storeLogger)
	return drafts, seq
}

func subscribeAuditLog(bus *events.EventBus, logger *zerolog.Logger) {
	bus.SubscribeAll(func(e *events.Event) error {
		var p events.CheckoutEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		entry := logger.Info()
		if e.Type == events.EventPaymentFailed {
			entry = logger.Warn()
		}
		entry.
			Int64("event_id", e.ID).
			Str("event_type", e.Type).
			Str("session_id", p.SessionID).
			Str("booking_id", p.BookingID).
			Str("order_id", p.OrderID).
			Str("state", p.State).
			Float64("total", p.TotalAmount).
			Msg("checkout event")
		return nil
	},
		events.EventDraftSubmitted,
		events.EventCouponApplied,
		events.EventCheckoutOpened,
		events.EventPaymentVerified,
		events.EventPaymentFailed,
	)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Str("backend", cfg.Backend.BaseURL).Msg("gateway started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("gateway stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
