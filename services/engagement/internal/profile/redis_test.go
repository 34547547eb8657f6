package profile

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache("redis://"+mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	return c
}

func TestRedisCache_RoundTrip(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "u1"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, Profile{ID: "u1", Username: "ada", DisplayName: "Ada", AvatarURL: "https://cdn/a.png"})
	p, ok := c.Get(ctx, "u1")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if p.Username != "ada" || p.AvatarURL != "https://cdn/a.png" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestRedisCache_OverwriteIdempotent(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, Profile{ID: "u1", Username: "ada", DisplayName: "Ada"})
	c.Set(ctx, Profile{ID: "u1", Username: "ada", DisplayName: "Ada L."})

	p, ok := c.Get(ctx, "u1")
	if !ok || p.DisplayName != "Ada L." {
		t.Fatalf("expected later write to win, got %+v ok=%v", p, ok)
	}
}

func TestNewRedisCache_BadURL(t *testing.T) {
	if _, err := NewRedisCache("not a url", time.Minute); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}
