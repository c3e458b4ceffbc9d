package ristretto_test

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/ReviewForge/internal/adapter/ristretto"
	"github.com/Strob0t/ReviewForge/internal/port/cache/cachetest"
)

func newCache(t *testing.T) *ristretto.Cache {
	t.Helper()
	c, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestRistrettoCache_Compliance(t *testing.T) {
	c := newCache(t)
	cachetest.Run(t, c, c.Wait)
}

func TestRistrettoCache_TTLExpiry(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "short", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	c.Wait()
	time.Sleep(200 * time.Millisecond)

	if _, found, _ := c.Get(ctx, "short"); found {
		t.Fatal("expected entry to expire")
	}
}
