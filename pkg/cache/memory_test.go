package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/card-gateway/internal/testutil"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T, clock *testutil.Clock, maxSize int64) Store {
		return NewMemoryStore(maxSize, WithClock(clock.Now))
	})
}

func TestMemoryStore_SizeAccounting(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()

	if err := store.Set(ctx, NewKey(KindPortrait, 1), make([]byte, 30), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, NewKey(KindPortrait, 1), make([]byte, 20), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := store.Size(); got != 20 {
		t.Errorf("Size() = %d after overwrite, want 20", got)
	}

	if err := store.Delete(ctx, NewKey(KindPortrait, 1)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := store.Size(); got != 0 {
		t.Errorf("Size() = %d after delete, want 0", got)
	}
}

func TestMemoryStore_CopiesInput(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	data := []byte("card")

	if err := store.Set(ctx, NewKey(KindPortrait, 1), data, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	data[0] = 'X'

	got, err := store.Get(ctx, NewKey(KindPortrait, 1))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != "card" {
		t.Errorf("stored data mutated through caller slice: %q", got.Data)
	}
}

func TestMemoryStore_ReadsDoNotRefreshEvictionOrder(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()
	first, second, third := NewKey(KindPortrait, 1), NewKey(KindPortrait, 2), NewKey(KindEquipment, 3)

	for _, key := range []Key{first, second} {
		if err := store.Set(ctx, key, make([]byte, 40), time.Hour); err != nil {
			t.Fatalf("Set(%s) failed: %v", key, err)
		}
	}
	if _, err := store.Get(ctx, first); err != nil {
		t.Fatalf("Get(%s) failed: %v", first, err)
	}
	if err := store.Set(ctx, third, make([]byte, 40), time.Hour); err != nil {
		t.Fatalf("Set(%s) failed: %v", third, err)
	}

	if _, err := store.Get(ctx, first); err != ErrCacheMiss {
		t.Errorf("oldest write %s should be evicted despite the read, got %v", first, err)
	}
	for _, key := range []Key{second, third} {
		if _, err := store.Get(ctx, key); err != nil {
			t.Errorf("Get(%s) failed: %v", key, err)
		}
	}
	if got := store.Size(); got != 80 {
		t.Errorf("Size() = %d, want 80", got)
	}
	if got := store.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestMemoryStore_ExpiredEntryIsDropped(t *testing.T) {
	clock := testutil.NewClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(0, WithClock(clock.Now))
	ctx := context.Background()
	key := NewKey(KindPortrait, 9)

	if err := store.Set(ctx, key, []byte("card"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	clock.Advance(time.Minute)

	if _, err := store.Get(ctx, key); err != ErrCacheMiss {
		t.Fatalf("Get at ttl = %v, want ErrCacheMiss", err)
	}
	if got := store.Size(); got != 0 {
		t.Errorf("Size() = %d after expiry, want 0", got)
	}
	if got := store.Len(); got != 0 {
		t.Errorf("Len() = %d after expiry, want 0", got)
	}
}
