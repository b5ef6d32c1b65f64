package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"chartdesk/config"
	"chartdesk/internal/gateway"
	"chartdesk/internal/indicator"
	"chartdesk/internal/logger"
	"chartdesk/internal/marketdata"
	"chartdesk/internal/marketdata/cached"
	"chartdesk/internal/metrics"
	"chartdesk/internal/model"
	"chartdesk/internal/prefs"
	redisstore "chartdesk/internal/store/redis"
	"chartdesk/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[chartd] starting...")

	configPath := flag.String("config", os.Getenv("CHARTD_CONFIG"), "path to YAML config")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[chartd] WARNING: .env not loaded: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[chartd] config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[chartd] invalid config: %v", err)
	}

	slogger := logger.Init("chartd", logger.ParseLevel(cfg.LogLevel))
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is needed by the redis preference backend and the candle cache.
	var rdb *goredis.Client
	if cfg.Preferences.Backend == "redis" || cfg.Cache.Enabled {
		rdb, err = redisstore.Dial(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatalf("[chartd] redis: %v", err)
		}
		defer rdb.Close()
	}
	onBreaker := func(name string, from, to redisstore.State) {
		log.Printf("[chartd] circuit breaker %s: %s -> %s", name, from, to)
		m.BreakerTransition(name, int(to))
	}

	// Preference store
	var store model.PreferencesStore
	var sqlDB *sql.DB
	switch cfg.Preferences.Backend {
	case "sqlite":
		s, err := sqlite.Open(cfg.Preferences.SQLitePath)
		if err != nil {
			log.Fatalf("[chartd] sqlite: %v", err)
		}
		store, sqlDB = s, s.DB()
	case "redis":
		breaker := redisstore.NewCircuitBreaker("redis-prefs", 5, 10*time.Second)
		breaker.OnStateChange = onBreaker
		store = redisstore.NewPreferencesStore(rdb, breaker)
	default:
		log.Println("[chartd] WARNING: preferences are kept in memory and lost on restart")
		store = prefs.NewMemoryStore()
	}
	defer store.Close()

	prefSvc := prefs.NewService(store, cfg.DefaultPreferences, slogger)
	prefSvc.OnSave = func(model.ChartPreferences) { m.PrefsWritten(nil) }
	prefSvc.OnSaveError = m.PrefsWritten

	// Candle source: provider, timed, optionally cached.
	origin, err := marketdata.New(marketdata.Options{
		Provider: cfg.DataSource.Provider,
		BaseURL:  cfg.DataSource.BaseURL,
		APIKey:   cfg.DataSource.APIKey,
		CSVDir:   cfg.DataSource.CSVDir,
		Timeout:  cfg.DataSource.Timeout,
	})
	if err != nil {
		log.Fatalf("[chartd] data source: %v", err)
	}
	fetcher := marketdata.Observe(origin, cfg.DataSource.Provider, m.FetchObserved)
	if cfg.Cache.Enabled {
		breaker := redisstore.NewCircuitBreaker("redis-candles", 5, 10*time.Second)
		breaker.OnStateChange = onBreaker
		cf := cached.New(fetcher, redisstore.NewCandleCache(rdb, breaker), cfg.Cache.TTL, slogger)
		cf.OnLookup = m.CandleCacheLookup
		fetcher = cf
		log.Printf("[chartd] candle cache enabled (ttl=%s)", cfg.Cache.TTL)
	}

	engine := indicator.NewEngine(indicator.DefaultParams(), cfg.Chart.MaxDatasets)
	engine.OnCompute = m.IndicatorComputed

	health := metrics.NewHealthStatus(rdb != nil, sqlDB != nil)
	health.StartLivenessChecker(ctx, rdb, sqlDB, 15*time.Second)

	metricsSrv := metrics.NewServer(cfg.Server.MetricsAddr, health)
	metricsSrv.Start()

	gw := gateway.NewServer(gateway.Deps{
		Fetcher:  fetcher,
		Engine:   engine,
		Prefs:    prefSvc,
		Observer: m,
		Health:   health,
		Chart: gateway.ChartSettings{
			Width:            cfg.Chart.Width,
			Height:           cfg.Chart.Height,
			PaneHeight:       cfg.Chart.PaneHeight,
			FullscreenWidth:  cfg.Chart.FullscreenWidth,
			FullscreenHeight: cfg.Chart.FullscreenHeight,
			LayoutRetryDelay: cfg.Chart.LayoutRetryDelay,
		},
		Log: slogger,
	})
	gw.Hub().OnChange = func(n int) { m.WSSessions.Set(float64(n)) }

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("[chartd] serving at http://localhost%s (provider=%s, prefs=%s)",
			cfg.Server.HTTPAddr, cfg.DataSource.Provider, cfg.Preferences.Backend)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[chartd] server error: %v", err)
		}
	}()

	<-sigCh
	log.Println("[chartd] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	gw.Shutdown()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	log.Println("[chartd] stopped")
}
