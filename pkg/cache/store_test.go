package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/card-gateway/internal/testutil"
)

// storeFactory builds a fresh, empty store on the given clock and ceiling.
type storeFactory func(t *testing.T, clock *testutil.Clock, maxSize int64) Store

var epoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore storeFactory) {
	t.Run("set_and_get", func(t *testing.T) {
		clock := testutil.NewClock(epoch)
		store := newStore(t, clock, 1<<20)
		ctx := context.Background()
		key := NewKey(KindPortrait, 42)

		if err := store.Set(ctx, key, testutil.PNGHeader, time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		got, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got.Data, testutil.PNGHeader) {
			t.Errorf("Data mismatch: got %x, want %x", got.Data, testutil.PNGHeader)
		}
		if !got.ExpiresAt.Equal(epoch.Add(time.Hour)) {
			t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, epoch.Add(time.Hour))
		}
	})

	t.Run("miss", func(t *testing.T) {
		store := newStore(t, testutil.NewClock(epoch), 1<<20)

		_, err := store.Get(context.Background(), NewKey(KindEquipment, 1))
		if !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss, got %v", err)
		}
	})

	t.Run("ttl_boundary", func(t *testing.T) {
		clock := testutil.NewClock(epoch)
		store := newStore(t, clock, 1<<20)
		ctx := context.Background()
		key := NewKey(KindPortrait, 7)

		if err := store.Set(ctx, key, []byte("card"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		clock.Advance(time.Minute - time.Millisecond)
		if _, err := store.Get(ctx, key); err != nil {
			t.Fatalf("Get just before ttl failed: %v", err)
		}

		// Reads never extend the TTL.
		clock.Advance(2 * time.Millisecond)
		if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss just after ttl, got %v", err)
		}
	})

	t.Run("ttl_boundary_sub_millisecond_write", func(t *testing.T) {
		clock := testutil.NewClock(epoch.Add(900 * time.Microsecond))
		store := newStore(t, clock, 1<<20)
		ctx := context.Background()
		key := NewKey(KindEquipment, 8)

		if err := store.Set(ctx, key, []byte("card"), time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		clock.Advance(time.Hour - 500*time.Microsecond)
		if _, err := store.Get(ctx, key); err != nil {
			t.Fatalf("Get 500us before ttl failed: %v", err)
		}

		clock.Advance(500 * time.Microsecond)
		if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss at ttl, got %v", err)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		clock := testutil.NewClock(epoch)
		store := newStore(t, clock, 1<<20)
		ctx := context.Background()
		key := NewKey(KindEquipment, 9)

		if err := store.Set(ctx, key, []byte("first"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		clock.Advance(30 * time.Second)
		if err := store.Set(ctx, key, []byte("second"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		clock.Advance(45 * time.Second)
		got, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got.Data) != "second" {
			t.Errorf("Data = %q, want %q", got.Data, "second")
		}
	})

	t.Run("namespaces", func(t *testing.T) {
		store := newStore(t, testutil.NewClock(epoch), 1<<20)
		ctx := context.Background()

		if err := store.Set(ctx, NewKey(KindPortrait, 3), []byte("portrait"), time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := store.Set(ctx, NewKey(KindEquipment, 3), []byte("equipment"), time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		p, err := store.Get(ctx, NewKey(KindPortrait, 3))
		if err != nil || string(p.Data) != "portrait" {
			t.Errorf("portrait = %v, %v", p, err)
		}
		e, err := store.Get(ctx, NewKey(KindEquipment, 3))
		if err != nil || string(e.Data) != "equipment" {
			t.Errorf("equipment = %v, %v", e, err)
		}
	})

	t.Run("ceiling_evicts_least_recently_written", func(t *testing.T) {
		clock := testutil.NewClock(epoch)
		store := newStore(t, clock, 10)
		ctx := context.Background()

		for id := int64(1); id <= 3; id++ {
			if err := store.Set(ctx, NewKey(KindPortrait, id), []byte("abcd"), time.Hour); err != nil {
				t.Fatalf("Set(%d) failed: %v", id, err)
			}
			clock.Advance(time.Second)
		}

		if _, err := store.Get(ctx, NewKey(KindPortrait, 1)); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("oldest entry should be evicted, got %v", err)
		}
		for _, id := range []int64{2, 3} {
			if _, err := store.Get(ctx, NewKey(KindPortrait, id)); err != nil {
				t.Errorf("entry %d should survive eviction: %v", id, err)
			}
		}
	})

	t.Run("too_large", func(t *testing.T) {
		store := newStore(t, testutil.NewClock(epoch), 4)

		err := store.Set(context.Background(), NewKey(KindPortrait, 1), []byte("12345"), time.Hour)
		if !errors.Is(err, ErrEntryTooLarge) {
			t.Errorf("Expected ErrEntryTooLarge, got %v", err)
		}
	})

	t.Run("invalid_ttl", func(t *testing.T) {
		store := newStore(t, testutil.NewClock(epoch), 1<<20)

		err := store.Set(context.Background(), NewKey(KindPortrait, 1), []byte("x"), 0)
		if !errors.Is(err, ErrInvalidTTL) {
			t.Errorf("Expected ErrInvalidTTL, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t, testutil.NewClock(epoch), 1<<20)
		ctx := context.Background()
		key := NewKey(KindPortrait, 11)

		if err := store.Set(ctx, key, []byte("x"), time.Hour); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := store.Delete(ctx, key); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
		}
		if err := store.Delete(ctx, key); err != nil {
			t.Errorf("Delete of missing key failed: %v", err)
		}
	})
}
