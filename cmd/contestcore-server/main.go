package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epic1st/contestcore/auth"
	"github.com/epic1st/contestcore/cache"
	"github.com/epic1st/contestcore/config"
	"github.com/epic1st/contestcore/internal/eventbus"
	"github.com/epic1st/contestcore/internal/ledger"
	"github.com/epic1st/contestcore/internal/lifecycle"
	"github.com/epic1st/contestcore/internal/oracle"
	"github.com/epic1st/contestcore/internal/orderengine"
	"github.com/epic1st/contestcore/internal/pnlmath"
	"github.com/epic1st/contestcore/internal/positionengine"
	"github.com/epic1st/contestcore/internal/riskpolicy"
	"github.com/epic1st/contestcore/internal/scheduler"
	"github.com/epic1st/contestcore/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("===============================================")
	log.Println("  contestcore - Contest & Challenge Trading Core")
	log.Println("===============================================")

	ctx := context.Background()

	db, err := store.Open(ctx, store.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Name:     cfg.Database.Name,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()
	log.Printf("[Store] connected to %s@%s:%s/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Address:      cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Prefix:       "contestcore",
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()
	log.Printf("[Cache] connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)

	priceOracle := buildOracle(cfg, redisCache)

	notificationStore := store.NewNotificationStore(db)
	bus := eventbus.New(db, redisCache, notificationStore)

	ledgerSvc := ledger.New(db)
	restrictions := auth.AllowAllChecker{}

	riskLimits := riskpolicy.Limits{
		MinPositionSize: cfg.Position.MinQuantity,
		MaxPositionSize: cfg.Position.MaxQuantity,
		MinLimitPips:    1,
		MaxLimitPips:    2000,
	}
	marginThresholds := pnlmath.Thresholds{
		Safe:        cfg.Margin.SafeLevelPercent,
		Warning:     cfg.Margin.WarningLevelPercent,
		MarginCall:  cfg.Margin.MarginCallLevelPercent,
		Liquidation: cfg.Margin.LiquidationLevelPercent,
	}

	orders := orderengine.New(db, priceOracle, riskLimits, bus)
	positions := positionengine.New(db, priceOracle, marginThresholds, bus, cfg.Platform.Currency, cfg.Platform.Locale)
	life := lifecycle.New(db, ledgerSvc, positions, priceOracle, restrictions, bus, cfg.Platform.Currency, cfg.Platform.Locale)

	sched := scheduler.New(scheduler.DefaultConfig(), db, positions, orders, life)
	sched.Start()
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		log.Printf("[Server] listening on :%s (environment=%s)", cfg.Port, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] listen failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("[Server] shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] graceful shutdown failed: %v", err)
	}
}

// buildOracle wires the Price Oracle's REST fetcher behind the shared
// Redis cache, per spec §4.6. A websocket feed is the documented
// alternative PriceFeedConfig.Mode selects but is out of the scanner's
// scope here (spec §1 Non-goal: "a concrete market data feed adapter"),
// so "websocket" mode falls back to the same cached REST fetcher.
func buildOracle(cfg *config.Config, c *cache.RedisCache) oracle.Oracle {
	fetcher := oracle.NewRESTFetcher(cfg.PriceFeed.BaseURL, cfg.PriceFeed.APIKey, 5*time.Second)
	ttl := time.Duration(cfg.PriceFeed.CacheTTLSeconds) * time.Second
	return oracle.NewCachedOracle(fetcher, c, ttl)
}
