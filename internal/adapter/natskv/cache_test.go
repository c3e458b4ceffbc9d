package natskv_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Strob0t/ReviewForge/internal/adapter/nats"
	"github.com/Strob0t/ReviewForge/internal/adapter/natskv"
	"github.com/Strob0t/ReviewForge/internal/port/cache"
	"github.com/Strob0t/ReviewForge/internal/port/cache/cachetest"
)

func TestNATSKVCache_Compliance(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}
	ctx := context.Background()

	q, err := nats.Connect(ctx, url, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })

	kv, err := q.KeyValue(ctx, "REVIEWFORGE_TEST_CACHE", time.Minute)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}
	c := natskv.New(kv)

	cachetest.Run(t, c, nil)

	t.Run("RunKey", func(t *testing.T) {
		key := cache.RunKey("0f8fad5b-d9cb-469f-a165-70867728950e")
		if err := c.Set(ctx, key, []byte(`{}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		if _, found, err := c.Get(ctx, key); err != nil || !found {
			t.Fatalf("found=%v err=%v", found, err)
		}
	})
}
