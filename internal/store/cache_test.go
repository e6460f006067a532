package store

import (
	"context"
	"testing"
	"time"
)

func TestCacheServesWithinTTL(t *testing.T) {
	mem := NewMemory()
	if err := mem.WriteTable(context.Background(), "t", [][]string{{"a"}}); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(0, 0)
	c := NewCache(mem, 2*time.Second)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := c.ReadTable(context.Background(), "t"); err != nil {
			t.Fatal(err)
		}
	}
	reads, _ := mem.Counts()
	if reads != 1 {
		t.Fatalf("expected a single read-through, got %d", reads)
	}

	// Past the TTL the next read goes to the backend again.
	now = now.Add(3 * time.Second)
	if _, err := c.ReadTable(context.Background(), "t"); err != nil {
		t.Fatal(err)
	}
	reads, _ = mem.Counts()
	if reads != 2 {
		t.Fatalf("expected refresh after TTL, got %d reads", reads)
	}
}

func TestCacheWriteThrough(t *testing.T) {
	mem := NewMemory()
	now := time.Unix(0, 0)
	c := NewCache(mem, 2*time.Second)
	c.now = func() time.Time { return now }

	if err := c.WriteTable(context.Background(), "t", [][]string{{"fresh"}}); err != nil {
		t.Fatal(err)
	}
	rows, err := c.ReadTable(context.Background(), "t")
	if err != nil {
		t.Fatal(err)
	}
	if rows[0][0] != "fresh" {
		t.Fatalf("cache not refreshed on write, got %v", rows)
	}
	reads, _ := mem.Counts()
	if reads != 0 {
		t.Fatalf("read after write should be served from cache, got %d backend reads", reads)
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	mem := NewMemory()
	c := NewCache(mem, time.Minute)
	if err := c.WriteTable(context.Background(), "t", [][]string{{"a"}}); err != nil {
		t.Fatal(err)
	}
	rows, _ := c.ReadTable(context.Background(), "t")
	rows[0][0] = "mutated"
	again, _ := c.ReadTable(context.Background(), "t")
	if again[0][0] != "a" {
		t.Fatalf("cache handed out aliased rows: %v", again)
	}
}
