package cookiecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "aerc", ttl), mr
}

func TestPutGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	if err := store.Put(ctx, "alice@example.com", "https://app.example.com", "SACSID=abc"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := store.Get(ctx, "alice@example.com", "https://app.example.com")
	if err != nil || got != "SACSID=abc" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	// A different origin for the same account is a distinct entry.
	if _, err := store.Get(ctx, "alice@example.com", "https://other.example.com"); !errors.Is(err, ErrCookieNotFound) {
		t.Fatalf("cross-origin Get err = %v, want ErrCookieNotFound", err)
	}
}

func TestMissReturnsNotFound(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	_, err := store.Get(context.Background(), "nobody", "https://app.example.com")
	if !errors.Is(err, ErrCookieNotFound) {
		t.Fatalf("err = %v, want ErrCookieNotFound", err)
	}
}

func TestEntriesExpire(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, "alice", "https://app.example.com", "SACSID=abc"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "alice", "https://app.example.com"); !errors.Is(err, ErrCookieNotFound) {
		t.Fatalf("expired Get err = %v, want ErrCookieNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	if err := store.Put(ctx, "alice", "https://app.example.com", "SACSID=abc"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "alice", "https://app.example.com"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "alice", "https://app.example.com"); !errors.Is(err, ErrCookieNotFound) {
		t.Fatalf("deleted Get err = %v, want ErrCookieNotFound", err)
	}
	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "alice", "https://app.example.com"); err != nil {
		t.Fatalf("repeat Delete failed: %v", err)
	}
}

func TestUnavailableRedis(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	mr.Close()

	if _, err := store.Get(context.Background(), "a", "b"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Get err = %v, want ErrRedisUnavailable", err)
	}
	if err := store.Put(context.Background(), "a", "b", "c"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Put err = %v, want ErrRedisUnavailable", err)
	}
}
