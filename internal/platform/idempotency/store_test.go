package idempotency

import (
	"testing"
	"time"
)

func TestKeyIsStableAndOrderSensitive(t *testing.T) {
	a := Key("all", "item-1,item-2", "900")
	b := Key("all", "item-1,item-2", "900")
	if a != b {
		t.Fatalf("expected identical parts to produce identical keys, got %q and %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 key, got %q", a)
	}
	if c := Key("item-1,item-2", "all", "900"); c == a {
		t.Fatalf("expected reordered parts to produce a different key")
	}
}

func TestReplayStoreReturnsStoredValue(t *testing.T) {
	store := NewReplayStore[string](time.Minute, time.Now)

	if _, ok := store.Get("missing"); ok {
		t.Fatalf("expected miss for unknown key")
	}

	store.Put("key-1", "session-abc")
	got, ok := store.Get("key-1")
	if !ok {
		t.Fatalf("expected hit for stored key")
	}
	if got != "session-abc" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestReplayStoreDropsExpiredRecords(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewReplayStore[string](10*time.Minute, func() time.Time { return now })

	store.Put("key-1", "session-abc")

	now = now.Add(9 * time.Minute)
	if _, ok := store.Get("key-1"); !ok {
		t.Fatalf("expected record to survive inside the ttl")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := store.Get("key-1"); ok {
		t.Fatalf("expected record to expire after the ttl")
	}
	if _, ok := store.Get("key-1"); ok {
		t.Fatalf("expected expired record to stay gone")
	}
}
