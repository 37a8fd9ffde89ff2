package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestLRU_GetSetDelete(t *testing.T) {
	c := NewLRU[string](DefaultPolicy())
	ctx := context.Background()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("Get on empty cache should return ok=false")
	}

	if err := c.Set(ctx, "API_KEY", "abc123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(ctx, "API_KEY")
	if !ok || got != "abc123" {
		t.Errorf("Get = (%q, %v), want (%q, true)", got, ok, "abc123")
	}

	if err := c.Delete(ctx, "API_KEY"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Get(ctx, "API_KEY"); ok {
		t.Error("Get after Delete should return ok=false")
	}

	// Delete is idempotent
	if err := c.Delete(ctx, "API_KEY"); err != nil {
		t.Errorf("Delete on missing key should not error, got: %v", err)
	}
}

func TestLRU_SetRejectsInvalidKey(t *testing.T) {
	c := NewLRU[string](DefaultPolicy())
	if err := c.Set(context.Background(), "", "v"); err != ErrInvalidKey {
		t.Errorf("Set(\"\") error = %v, want %v", err, ErrInvalidKey)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := NewLRU[int](Policy{Capacity: 2}, WithEvictCallback(func(key string) {
		evicted = append(evicted, key)
	}))
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1)
	_ = c.Set(ctx, "b", 2)

	// Touch "a" so "b" becomes least recently used.
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatal("expected a to be cached")
	}

	_ = c.Set(ctx, "c", 3)

	if _, ok := c.Peek("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Peek("a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestLRU_NoExpiry(t *testing.T) {
	c := NewLRU[string](Policy{Capacity: 4})
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v")

	for i := 0; i < 100; i++ {
		if v, ok := c.Get(ctx, "k"); !ok || v != "v" {
			t.Fatalf("iteration %d: Get = (%q, %v)", i, v, ok)
		}
	}
}

func TestLRU_KeysOrderAndPurge(t *testing.T) {
	c := NewLRU[int](Policy{Capacity: 3})
	ctx := context.Background()
	_ = c.Set(ctx, "x", 1)
	_ = c.Set(ctx, "y", 2)
	_, _ = c.Get(ctx, "x")

	keys := c.Keys()
	if len(keys) != 2 || keys[0] != "y" || keys[1] != "x" {
		t.Errorf("Keys = %v, want [y x]", keys)
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len after Purge = %d, want 0", c.Len())
	}
}

func TestLRU_DisabledPolicyStillUsable(t *testing.T) {
	c := NewLRU[int](NoCachePolicy())
	ctx := context.Background()
	_ = c.Set(ctx, "a", 1)
	_ = c.Set(ctx, "b", 2)
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU[int](Policy{Capacity: 16})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i%20)
			_ = c.Set(ctx, key, i)
			_, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	if c.Len() > 16 {
		t.Errorf("Len = %d, exceeds capacity 16", c.Len())
	}
}
