package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "development" {
		t.Fatalf("expected App.Env to default to development, got %q", cfg.App.Env)
	}
	if !cfg.App.IsDev() {
		t.Fatalf("expected IsDev for default env")
	}
	if cfg.Cart.StorageKey != "marketplace-cart" {
		t.Fatalf("unexpected default storage key %q", cfg.Cart.StorageKey)
	}
	if cfg.Cart.APIEndpoint != "/api/cart/sync" {
		t.Fatalf("unexpected default endpoint %q", cfg.Cart.APIEndpoint)
	}
	if !cfg.Cart.EnableBroadcast {
		t.Fatalf("broadcast should default on")
	}
	if cfg.Cart.SyncInterval != 30*time.Second {
		t.Fatalf("unexpected sync interval %v", cfg.Cart.SyncInterval)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CARTSYNC_APP_ENV", "production")
	t.Setenv("CARTSYNC_CART_STORAGE_KEY", "tenant-42-cart")
	t.Setenv("CARTSYNC_CART_ENABLE_BROADCAST", "false")
	t.Setenv("CARTSYNC_REDIS_URL", "redis://localhost:6379/1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if !cfg.App.IsProd() {
		t.Fatalf("expected production env")
	}
	if cfg.Cart.StorageKey != "tenant-42-cart" {
		t.Fatalf("unexpected storage key %q", cfg.Cart.StorageKey)
	}
	if cfg.Cart.EnableBroadcast {
		t.Fatalf("expected broadcast disabled")
	}
	if cfg.Redis.URL != "redis://localhost:6379/1" {
		t.Fatalf("unexpected redis url %q", cfg.Redis.URL)
	}
}
