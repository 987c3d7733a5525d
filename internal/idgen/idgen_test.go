package idgen

import (
	"sync"
	"testing"
)

func TestSequence(t *testing.T) {
	seq := NewSequence("node")
	if got := seq.Next(); got != "node-1" {
		t.Fatalf("expected node-1, got %q", got)
	}
	if got := seq.Next(); got != "node-2" {
		t.Fatalf("expected node-2, got %q", got)
	}

	bare := NewSequence("")
	if got := bare.Next(); got != "1" {
		t.Fatalf("expected 1, got %q", got)
	}
}

func TestSequence_Independent(t *testing.T) {
	a := NewSequence("x")
	b := NewSequence("x")
	a.Next()
	a.Next()
	if got := b.Next(); got != "x-1" {
		t.Fatalf("sequences should not share state, got %q", got)
	}
}

func TestSequence_Concurrent(t *testing.T) {
	seq := NewSequence("c")
	const n = 200

	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := seq.Next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("expected %d unique IDs, got %d", n, len(seen))
	}
}

func TestULID_Monotonic(t *testing.T) {
	g := NewULID()
	prev := g.Next()
	for i := 0; i < 100; i++ {
		next := g.Next()
		if next <= prev {
			t.Fatalf("expected increasing IDs, got %q after %q", next, prev)
		}
		prev = next
	}
	if len(prev) != 26 {
		t.Fatalf("expected 26-char ULID, got %d", len(prev))
	}
}
