package toolcache

import (
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(10)
	ttl := time.Minute
	m.Set("ns::v1::a", 42, "ns", "v1", &ttl)

	v, ok := m.Get("ns::v1::a")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if v.(int) != 42 {
		t.Fatalf("got %v, want 42", v)
	}
}

func TestMemoryVersionIsolation(t *testing.T) {
	m := NewMemory(10)
	ttl := time.Minute
	m.Set("ns::v1::a", "one", "ns", "v1", &ttl)
	m.Set("ns::v2::a", "two", "ns", "v2", &ttl)

	v1, _ := m.Get("ns::v1::a")
	v2, _ := m.Get("ns::v2::a")
	if v1 != "one" || v2 != "two" {
		t.Fatalf("got v1=%v v2=%v, want one/two", v1, v2)
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory(10)
	ttl := 10 * time.Millisecond
	m.Set("ns::v1::a", "x", "ns", "v1", &ttl)

	if _, ok := m.Get("ns::v1::a"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(30 * time.Millisecond)

	if _, ok := m.Get("ns::v1::a"); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestMemoryLRUBound(t *testing.T) {
	m := NewMemory(3)
	for i := 0; i < 5; i++ {
		m.Set(keyFor(i), i, "ns", "v1", nil)
	}

	stats := m.Stats()
	if stats.CurrentSize != 3 {
		t.Fatalf("got size %d, want 3", stats.CurrentSize)
	}

	// The 3 most recently inserted (2,3,4) must remain.
	for i := 2; i < 5; i++ {
		if _, ok := m.Get(keyFor(i)); !ok {
			t.Fatalf("expected key %d to survive eviction", i)
		}
	}
	for i := 0; i < 2; i++ {
		if _, ok := m.Get(keyFor(i)); ok {
			t.Fatalf("expected key %d to be evicted", i)
		}
	}
}

func TestMemoryClearResetsCounters(t *testing.T) {
	m := NewMemory(10)
	m.Set("ns::v1::a", 1, "ns", "v1", nil)
	m.Get("ns::v1::a")
	m.Get("missing")

	m.Clear()
	stats := m.Stats()
	if stats.CurrentSize != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Fatalf("expected zeroed stats after clear, got %+v", stats)
	}
}

func keyFor(i int) string {
	return ComposeKey("ns", "v1", string(rune('a'+i)))
}
