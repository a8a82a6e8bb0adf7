package backend

import (
	"sync"
	"testing"
)

func TestKeyRingRotation(t *testing.T) {
	ring := NewKeyRing([]string{"a", "b", "c"})

	got := []string{ring.Next(), ring.Next(), ring.Next(), ring.Next()}
	want := []string{"a", "b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", got, want)
		}
	}
	if ring.Len() != 3 {
		t.Errorf("Len() = %d", ring.Len())
	}
}

func TestKeyRingSingleKey(t *testing.T) {
	ring := NewKeyRing([]string{"only"})
	for i := 0; i < 5; i++ {
		if ring.Next() != "only" {
			t.Fatal("single key must always be returned")
		}
	}
}

func TestKeyRingConcurrentDistribution(t *testing.T) {
	ring := NewKeyRing([]string{"a", "b"})

	const calls = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	counts := make(map[string]int)

	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := ring.Next()
			mu.Lock()
			counts[key]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counts["a"]+counts["b"] != calls {
		t.Fatalf("lost calls: %v", counts)
	}
	if counts["a"] != calls/2 || counts["b"] != calls/2 {
		t.Errorf("round-robin should split evenly, got %v", counts)
	}
}
