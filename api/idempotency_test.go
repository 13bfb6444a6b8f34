package api

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newDeduperForTest(t *testing.T, ttl time.Duration) *RedisDeduper {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return NewRedisDeduper(client, ttl)
}

func TestRedisDeduperAddOnce(t *testing.T) {
	deduper := newDeduperForTest(t, time.Minute)
	ctx := context.Background()

	added, err := deduper.Add(ctx, "user", "k1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !added {
		t.Fatal("expected first add to succeed")
	}

	added, err = deduper.Add(ctx, "user", "k1")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if added {
		t.Fatal("expected second add to report duplicate")
	}
}

func TestRedisDeduperKeyNamespacing(t *testing.T) {
	deduper := newDeduperForTest(t, time.Minute)
	ctx := context.Background()

	if added, err := deduper.Add(ctx, "alice", "k1"); err != nil || !added {
		t.Fatalf("alice add: added=%v err=%v", added, err)
	}
	if added, err := deduper.Add(ctx, "bob", "k1"); err != nil || !added {
		t.Fatalf("bob must not collide with alice: added=%v err=%v", added, err)
	}
}

func TestRedisDeduperRemoveAllowsRetry(t *testing.T) {
	deduper := newDeduperForTest(t, time.Minute)
	ctx := context.Background()

	if _, err := deduper.Add(ctx, "user", "k1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := deduper.Remove(ctx, "user", "k1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	added, err := deduper.Add(ctx, "user", "k1")
	if err != nil {
		t.Fatalf("retry add: %v", err)
	}
	if !added {
		t.Fatal("expected add to succeed after remove")
	}
}
