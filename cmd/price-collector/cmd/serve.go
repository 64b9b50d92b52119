package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pricewatch/price-collector/internal/api/handlers"
	"github.com/pricewatch/price-collector/internal/api/middleware"
	"github.com/pricewatch/price-collector/internal/collector"
	"github.com/pricewatch/price-collector/internal/config"
	"github.com/pricewatch/price-collector/internal/currency"
	"github.com/pricewatch/price-collector/internal/ebay"
	"github.com/pricewatch/price-collector/internal/engine"
	"github.com/pricewatch/price-collector/internal/history"
	"github.com/pricewatch/price-collector/internal/notify"
	"github.com/pricewatch/price-collector/internal/store"
	"github.com/pricewatch/price-collector/internal/telemetry"
	"github.com/pricewatch/price-collector/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and collection scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "error", err)
		}
	}()

	st, err := store.NewPostgresStore(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	reg, norm := buildCollectors(cfg, log)
	hist := history.NewEngine(st,
		history.WithCollectionInterval(cfg.Schedule.CollectionInterval),
		history.WithLogger(log),
	)

	var notifier notify.Notifier = notify.NewNoopNotifier()
	if cfg.Notifications.Webhook.Enabled {
		notifier = notify.NewWebhookNotifier(cfg.Notifications.Webhook.URL)
		log.Info("webhook notifications enabled")
	}

	eng := engine.NewEngine(reg, hist, norm, notifier,
		engine.WithLogger(log),
		engine.WithBatchLimit(cfg.Schedule.BatchLimit),
		engine.WithStaggerOffset(cfg.Schedule.StaggerOffset),
		engine.WithFallback(cfg.Ebay.UseFallback),
		engine.WithKeywordSource(st),
	)

	sched, err := engine.NewScheduler(eng, cfg.Schedule.CollectionInterval, log)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	sched.Start()

	e := buildServer(log, st, reg, norm, hist)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", "addr", addr)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	// Wait for any in-flight collection cycle.
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("scheduler shutdown timed out")
	}

	log.Info("server stopped")
	return nil
}

func buildCollectors(cfg *config.Config, log *slog.Logger) (*collector.Registry, *currency.Normalizer) {
	var tokens ebay.TokenProvider
	if cfg.Ebay.Configured() {
		tokens = ebay.NewOAuthTokenProvider(
			cfg.Ebay.AppID, cfg.Ebay.CertID,
			ebay.WithTokenURL(cfg.Ebay.TokenURL),
		)
	} else {
		log.Warn("eBay API credentials not configured, relying on scraper fallback")
	}

	limiter := ebay.NewRateLimiter(
		cfg.Ebay.RateLimit.PerSecond,
		cfg.Ebay.RateLimit.Burst,
		cfg.Ebay.RateLimit.DailyLimit,
	)
	api := ebay.NewItemClient(tokens,
		ebay.WithAPIURL(cfg.Ebay.BrowseURL),
		ebay.WithMarketplace(cfg.Ebay.Marketplace),
		ebay.WithRateLimiter(limiter),
	)
	scraper := ebay.NewScraper(nil)

	reg := collector.NewRegistry()
	reg.Register(ebay.NewCollector(api, scraper, log))

	norm := currency.NewNormalizer(cfg.Currency.TargetCurrency,
		currency.WithAPIURL(cfg.Currency.APIURL),
		currency.WithCacheTTL(cfg.Currency.CacheTTL),
		currency.WithLogger(log),
	)

	return reg, norm
}

func buildServer(
	log *slog.Logger,
	st *store.PostgresStore,
	reg *collector.Registry,
	norm *currency.Normalizer,
	hist *history.Engine,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(log))
	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Metrics())

	health := handlers.NewHealthHandler(st)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")

	collect := handlers.NewCollectHandler(reg, norm, hist)
	v1.POST("/collect", collect.Collect)

	items := handlers.NewItemHandler(st)
	v1.GET("/items", items.List)
	v1.GET("/items/:store/:id", items.Get)
	v1.PUT("/items/:store/:id/active", items.SetActive)

	histH := handlers.NewHistoryHandler(hist)
	v1.GET("/items/:store/:id/history", histH.Get)

	alerts := handlers.NewAlertHandler(hist)
	v1.POST("/alerts", alerts.Create)

	return e
}
