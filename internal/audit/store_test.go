package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, limit int64) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(rdb, limit)
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.Append(ctx, &Event{
			ID:     fmt.Sprintf("event-%d", i),
			Kind:   KindLogin,
			Target: "alice",
			At:     time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	events, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// 新しい順
	if events[0].ID != "event-2" || events[2].ID != "event-0" {
		t.Fatalf("unexpected order: %s, %s", events[0].ID, events[2].ID)
	}
}

func TestAppendTrimsToLimit(t *testing.T) {
	store := newTestStore(t, 5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		err := store.Append(ctx, &Event{
			ID:   fmt.Sprintf("event-%d", i),
			Kind: KindSignup,
			At:   time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	events, err := store.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected the list to be capped at 5, got %d", len(events))
	}
	// 古いイベントから切り捨てられる
	if events[0].ID != "event-7" || events[4].ID != "event-3" {
		t.Fatalf("unexpected window: %s .. %s", events[0].ID, events[4].ID)
	}
}

func TestAppendNilEvent(t *testing.T) {
	store := newTestStore(t, 5)

	if err := store.Append(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}
}

func TestRecentEmpty(t *testing.T) {
	store := newTestStore(t, 5)

	events, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}
