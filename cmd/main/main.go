package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinvest/src/config"
	"coinvest/src/interfaces"
	"coinvest/src/logger"
	"coinvest/src/network"
	"coinvest/src/notify"
	"coinvest/src/pricecache"
	"coinvest/src/pricesource"
	"coinvest/src/scheduler"
	"coinvest/src/server"
	"coinvest/src/storage"
	"coinvest/src/valuation"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Storage
	var db interfaces.IDatabase

	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.MConfig, appLogger.Named("postgres"))
	default:
		// Default to SQLite
		db, err = storage.NewSQLiteDB(cfg.MConfig, appLogger.Named("sqlite"))
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	// 2. Price cache
	var cache interfaces.IPriceCache

	switch cfg.Cache.Backend {
	case "redis":
		redisCache, err := pricecache.NewRedisCache(cfg.Cache, cfg.Symbols(), appLogger.Named("cache"))
		if err != nil {
			appLogger.Critical("Failed to init redis cache: %v", err)
		}
		defer redisCache.Close()
		cache = redisCache
	default:
		cache = pricecache.NewMemoryCache(time.Duration(cfg.Cache.TTLSeconds) * time.Second)
	}

	// 3. Price sources with failover
	netMgr := network.NewManager(&cfg.PriceFeed, appLogger.Named("network"))
	primary := pricesource.NewCoinGeckoSource(&cfg.PriceFeed, netMgr, appLogger)
	secondary := pricesource.NewCryptoCompareSource(&cfg.PriceFeed, netMgr, appLogger)
	fetcher := pricesource.NewSourceManager(primary, secondary, cache,
		time.Duration(cfg.PriceFeed.TimeoutSeconds)*time.Second, appLogger.Named("pricefeed"))

	// 4. Registry, valuator, scheduler, dispatcher
	verifier := storage.NewTokenVerifier(db)
	registry := server.NewRegistry(verifier, appLogger.Named("registry"))
	valuator := valuation.NewValuator(db, cache, appLogger.Named("valuator"))
	sched := scheduler.NewScheduler(registry, fetcher, cache, valuator, cfg.Broadcast, appLogger.Named("scheduler"))
	dispatcher := notify.NewDispatcher(db, registry, appLogger.Named("notify"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warm the cache before the first client connects.
	if _, err := fetcher.FetchAll(ctx); err != nil {
		appLogger.Warning("Initial price fetch failed: %v", err)
	}

	sched.Start(ctx)
	defer sched.Stop()

	// 5. HTTP + WebSocket server
	srv := server.NewServer(cfg.MConfig, appLogger, registry, cache, valuator, sched, dispatcher)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// 6. Shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		appLogger.Info("Received %v, shutting down", sig)
	case err := <-errCh:
		appLogger.Error("Server stopped: %v", err)
	}
}
