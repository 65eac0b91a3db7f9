package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/our-story/internal/app"
	"github.com/kjstillabower/our-story/internal/cache"
	"github.com/kjstillabower/our-story/internal/circuitbreaker"
	"github.com/kjstillabower/our-story/internal/config"
	"github.com/kjstillabower/our-story/internal/degraded"
	"github.com/kjstillabower/our-story/internal/display"
	httphandler "github.com/kjstillabower/our-story/internal/http"
	"github.com/kjstillabower/our-story/internal/lifecycle"
	"github.com/kjstillabower/our-story/internal/loader"
	"github.com/kjstillabower/our-story/internal/observability"
	"github.com/kjstillabower/our-story/internal/scheduler"
	"github.com/kjstillabower/our-story/internal/sheets"
	"github.com/kjstillabower/our-story/internal/weather"
)

const (
	initTimeout           = 30 * time.Second
	inFlightCheckInterval = 100 * time.Millisecond
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	sheetsClient := sheets.NewClient(sheets.Config{
		BaseURL:        cfg.SheetsBaseURL,
		SpreadsheetID:  cfg.SpreadsheetID,
		APIKey:         cfg.SheetsAPIKey,
		Timeout:        cfg.SheetsTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	})
	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("spreadsheet", from.String(), to.String(), int(to))
				logger.Warn("circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
		sheetsClient.SetCircuitBreaker(cb)
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold), zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	var snapshots cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		memcacheCloser = mc
		snapshots = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		snapshots = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	tables := loader.New(sheetsClient, loader.TableNames{
		loader.Cities: cfg.CitiesTable,
		loader.Photos: cfg.PhotosTable,
		loader.Quotes: cfg.QuotesTable,
	}, snapshots, cfg.CacheTTL, logger)

	var provider weather.Provider = weather.NewStaticProvider()
	if cfg.WeatherSource == "openweather" {
		ow, err := weather.NewOpenWeatherProvider(weather.OpenWeatherConfig{
			APIKey:         cfg.WeatherAPIKey,
			APIURL:         cfg.WeatherAPIURL,
			City:           cfg.WeatherCity,
			Units:          cfg.WeatherUnits,
			Language:       cfg.WeatherLanguage,
			Timeout:        cfg.WeatherTimeout,
			RetryAttempts:  cfg.RetryAttempts,
			RetryBaseDelay: cfg.RetryBaseDelay,
			RetryMaxDelay:  cfg.RetryMaxDelay,
		})
		if err != nil {
			logger.Fatal("weather provider", zap.Error(err))
		}
		provider = ow
	}
	logger.Info("weather source", zap.String("source", provider.Name()))

	page := display.NewPage(cfg.CoupleNames)
	story := app.New(app.Options{
		StartDate: cfg.StartDate,
		Locale:    cfg.Locale,
		BannerTTL: cfg.BannerTTL,
	}, page, tables, weather.NewService(provider, logger), logger)

	startTime := time.Now()
	observability.RegisterUptimeGauge(func() float64 { return time.Since(startTime).Seconds() })

	degraded.Configure(cfg.DegradedWindow)

	initCtx, initCancel := context.WithTimeout(context.Background(), initTimeout)
	if err := story.Init(initCtx); err != nil {
		logger.Warn("initial load incomplete", zap.Error(err))
	}
	initCancel()

	// Init already painted every section, so each job waits one interval before its first run.
	sched, err := scheduler.New(logger,
		scheduler.Job{Name: "counter", Interval: cfg.CounterInterval, SkipInitialRun: true, Run: func(context.Context) error {
			story.UpdateCounter()
			return nil
		}},
		scheduler.Job{Name: "weather", Interval: cfg.WeatherInterval, SkipInitialRun: true, Run: func(ctx context.Context) error {
			story.RefreshWeather(ctx)
			return nil
		}},
		scheduler.Job{Name: "tables", Interval: cfg.TablesInterval, SkipInitialRun: true, Run: story.RefreshTables},
	)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	schedCtx, schedCancel := context.WithCancel(context.Background())
	sched.Start(schedCtx)

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		DenialWindow:     time.Minute,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(story, page, healthConfig, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()
	lifecycle.MarkReady()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	schedCancel()
	sched.Wait()

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
