package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mercatolabs/cartsync/internal/cart"
	"github.com/mercatolabs/cartsync/pkg/config"
	"github.com/mercatolabs/cartsync/pkg/env"
	"github.com/mercatolabs/cartsync/pkg/logger"
	"github.com/mercatolabs/cartsync/pkg/metrics"
	"github.com/mercatolabs/cartsync/pkg/redis"
)

// The simulator runs two cart stores against shared storage and broadcast, the
// way two browser tabs would share one session, mutates them concurrently and
// logs convergence. With a reachable API server it also exercises auto-sync.
func main() {
	logg := logger.New(logger.Options{ServiceName: "simulator"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "simulator",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	var storage cart.Storage
	var broadcaster cart.Broadcaster

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Warn(ctx, "redis unreachable, simulating in-process only")
		storage = cart.NewMemoryStorage()
		broadcaster = cart.NewLocalBroadcaster()
	} else {
		defer redisClient.Close()
		storage = cart.NewRedisStorage(redisClient, 0)
		broadcaster = cart.NewRedisBroadcaster(redisClient, cfg.Cart.StorageKey, logg)
	}

	mtr := metrics.NewCartMetrics(prometheus.NewRegistry())
	baseURL := env.Get("CARTSYNC_SERVER_BASE_URL", "http://localhost:8080")

	opts := cart.Options{
		StorageKey:       cfg.Cart.StorageKey,
		APIEndpoint:      cfg.Cart.APIEndpoint,
		ServerBaseURL:    baseURL,
		DisableBroadcast: !cfg.Cart.EnableBroadcast,
		SyncTimeout:      cfg.Cart.SyncTimeout,
		Logger:           logg,
		Metrics:          mtr,
	}

	tabA := cart.New(ctx, opts, storage, broadcaster)
	tabB := cart.New(ctx, opts, storage, broadcaster)
	defer tabA.Close()
	defer tabB.Close()

	tabB.OnChange(func(state cart.State) {
		fields := logg.WithFields(ctx, map[string]any{
			"items":     len(state.Items),
			"timestamp": state.LastSyncTimestamp,
		})
		logg.Info(fields, "tab B observed state change")
	})

	stopSync := tabA.EnableAutoSync(ctx, cfg.Cart.SyncInterval)
	defer stopSync()

	available := 5
	tabA.AddItem(ctx, cart.ItemInput{
		ProductID:         "sku-headphones",
		Title:             "Wireless Headphones",
		Price:             cart.MustMoney("799.99"),
		SellerName:        "Audio Outlet",
		Condition:         "new",
		AvailableQuantity: &available,
	})
	tabA.AddItem(ctx, cart.ItemInput{
		ProductID:  "sku-sneakers",
		Title:      "Court Sneakers",
		Price:      cart.MustMoney("129.99"),
		SellerName: "Footwork",
		Size:       "42",
	})

	time.Sleep(500 * time.Millisecond)

	tabB.UpdateQuantity(ctx, "sku-headphones", 3)
	result := tabB.SyncWithServer(ctx)

	time.Sleep(500 * time.Millisecond)

	summary := logg.WithFields(ctx, map[string]any{
		"tab_a_total_items": tabA.TotalItems(),
		"tab_b_total_items": tabB.TotalItems(),
		"tab_a_total_price": tabA.TotalPrice().String(),
		"tab_b_total_price": tabB.TotalPrice().String(),
		"synced":            result.OK,
		"adopted_server":    result.Adopted,
	})
	logg.Info(summary, "simulation complete")
}
