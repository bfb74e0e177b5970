package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fssa-batch3/homebakery-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestSetGetDelLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := NewMockCmdable()
	client := NewWithCmdable(mock)

	if err := client.Set(ctx, "hb:k", "v", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if mock.TTL("hb:k") != time.Minute {
		t.Fatalf("expected ttl recorded, got %v", mock.TTL("hb:k"))
	}
	got, err := client.Get(ctx, "hb:k")
	if err != nil || got != "v" {
		t.Fatalf("expected v, got %q err=%v", got, err)
	}
	if err := client.Del(ctx, "hb:k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, "hb:k"); !errors.Is(err, ErrNil) {
		t.Fatalf("expected ErrNil after delete, got %v", err)
	}
}

func TestNilClientReportsNotInitialized(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error from nil client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.PriceSheetKey(); got != "hb:price_sheet:current" {
		t.Fatalf("unexpected price sheet key %s", got)
	}
	if got := client.buildKey("a", " ", "b"); got != "hb:a:b" {
		t.Fatalf("blank parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 3 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestMockFailureSurfaces(t *testing.T) {
	mock := NewMockCmdable()
	mock.FailWith(fmt.Errorf("connection refused"))
	client := NewWithCmdable(mock)
	if _, err := client.Get(context.Background(), "x"); err == nil || errors.Is(err, redis.Nil) {
		t.Fatalf("expected injected failure, got %v", err)
	}
}

func TestSetNXStoresOnce(t *testing.T) {
	ctx := context.Background()
	client := NewWithCmdable(NewMockCmdable())
	key := client.IdempotencyKey("POST|/api/v1/orders", "abc")

	ok, err := client.SetNX(ctx, key, "first", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected first SetNX to store, got %v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, key, "second", time.Hour)
	if err != nil || ok {
		t.Fatalf("expected second SetNX to be rejected, got %v err=%v", ok, err)
	}
	got, _ := client.Get(ctx, key)
	if got != "first" {
		t.Fatalf("expected original value kept, got %q", got)
	}
	if other := client.IdempotencyKey("POST|/api/v1/products", "abc"); other == key {
		t.Fatalf("expected scope to separate keys")
	}
}
