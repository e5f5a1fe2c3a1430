package sessioncache_test

import (
	"fmt"
	"testing"
	"time"

	"smartsite/edge-gateway/internal/domain/session"
	"smartsite/edge-gateway/internal/infrastructure/sessioncache"
)

func TestMemoryStore_SetGet(t *testing.T) {
	store, err := sessioncache.NewMemoryStore(10)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := store.Get("missing"); ok {
		t.Fatal("hit on empty store")
	}

	entry := session.Entry{Timestamp: time.Now(), Valid: true, UserID: "user-1"}
	store.Set("tok", entry)

	got, ok := store.Get("tok")
	if !ok || got.UserID != "user-1" || !got.Valid {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
}

func TestMemoryStore_CapacityBoundsEntries(t *testing.T) {
	store, err := sessioncache.NewMemoryStore(5)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		store.Set(fmt.Sprintf("tok-%d", i), session.Entry{Timestamp: time.Now(), Valid: true})
	}
	if store.Len() != 5 {
		t.Fatalf("Len = %d, want 5", store.Len())
	}

	// The most recent writes survive, the oldest were evicted.
	if _, ok := store.Get("tok-19"); !ok {
		t.Fatal("newest entry evicted")
	}
	if _, ok := store.Get("tok-0"); ok {
		t.Fatal("oldest entry survived past capacity")
	}
}

func TestMemoryStore_PurgeOldEntries(t *testing.T) {
	store, err := sessioncache.NewMemoryStore(100)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	store.Set("old-1", session.Entry{Timestamp: now.Add(-25 * time.Hour), Valid: true})
	store.Set("old-2", session.Entry{Timestamp: now.Add(-30 * time.Hour), Valid: true})
	store.Set("fresh", session.Entry{Timestamp: now, Valid: true})

	removed := store.Purge(now.Add(-24*time.Hour), 100)
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, ok := store.Get("fresh"); !ok {
		t.Fatal("fresh entry purged")
	}
	if _, ok := store.Get("old-1"); ok {
		t.Fatal("expired entry survived")
	}
}

func TestMemoryStore_PurgeEnforcesCap(t *testing.T) {
	store, err := sessioncache.NewMemoryStore(100)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	for i := 0; i < 10; i++ {
		store.Set(fmt.Sprintf("tok-%d", i), session.Entry{Timestamp: now, Valid: true})
	}

	removed := store.Purge(now.Add(-time.Hour), 4)
	if removed != 6 {
		t.Fatalf("removed = %d, want 6", removed)
	}
	if store.Len() != 4 {
		t.Fatalf("Len = %d, want 4", store.Len())
	}
	// Oldest-first eviction: the most recently written keys remain.
	if _, ok := store.Get("tok-9"); !ok {
		t.Fatal("most recent entry evicted by cap")
	}
}
