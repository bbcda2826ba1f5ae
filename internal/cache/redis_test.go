package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedisCache("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

func TestRedisCacheGetSetDelete(t *testing.T) {
	rc, mr := newTestCache(t)
	ctx := context.Background()

	if err := rc.Set(ctx, "mlb:/people/1", `{"people":[]}`, time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := rc.Get(ctx, "mlb:/people/1")
	if err != nil || got != `{"people":[]}` {
		t.Fatalf("Get = %q, %v", got, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := rc.Get(ctx, "mlb:/people/1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expired key: err = %v, want redis.Nil", err)
	}

	_ = rc.Set(ctx, "a", "1", 0)
	_ = rc.Set(ctx, "b", "2", 0)
	if err := rc.Delete(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("a") || mr.Exists("b") {
		t.Fatal("keys not deleted")
	}
	if err := rc.Delete(ctx); err != nil {
		t.Fatalf("empty delete: %v", err)
	}
}

func TestRedisCacheJSON(t *testing.T) {
	rc, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Team  string  `json:"team"`
		Score float64 `json:"score"`
	}

	var miss payload
	if ok, err := rc.GetJSON(ctx, "standings:period:1", &miss); ok || err != nil {
		t.Fatalf("miss = %v, %v", ok, err)
	}

	if err := rc.SetJSON(ctx, "standings:period:1", payload{Team: "MTK", Score: 27.5}, time.Hour); err != nil {
		t.Fatal(err)
	}
	var hit payload
	ok, err := rc.GetJSON(ctx, "standings:period:1", &hit)
	if !ok || err != nil || hit.Team != "MTK" || hit.Score != 27.5 {
		t.Fatalf("hit = %+v, %v, %v", hit, ok, err)
	}

	if err := rc.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
