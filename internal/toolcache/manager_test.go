package toolcache

import (
	"sync"
	"sync/atomic"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(NewMemory(64), nil, ManagerConfig{Enabled: true}, nil, nil)
}

func TestManagerRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	mgr.Set("Echo", "v1", "ck1", map[string]int{"x": 1}, nil)

	v, ok := mgr.Get("Echo", "v1", "ck1")
	if !ok {
		t.Fatal("expected hit")
	}
	if v.(map[string]int)["x"] != 1 {
		t.Fatalf("got %v", v)
	}
}

func TestManagerDisabledNoOps(t *testing.T) {
	mgr := NewManager(NewMemory(64), nil, ManagerConfig{Enabled: false}, nil, nil)
	mgr.Set("Echo", "v1", "ck1", 1, nil)
	if _, ok := mgr.Get("Echo", "v1", "ck1"); ok {
		t.Fatal("expected miss when cache disabled")
	}
}

func TestManagerSingleflightCollapsesConcurrentMisses(t *testing.T) {
	mgr := newTestManager(t)

	var invocations int64
	const concurrent = 8

	var wg sync.WaitGroup
	results := make([]any, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, _, _ := mgr.SingleflightGuard("Echo::v1::ck1", func() (any, error) {
				atomic.AddInt64(&invocations, 1)
				return "computed", nil
			})
			results[idx] = v
		}(i)
	}
	wg.Wait()

	if invocations != 1 {
		t.Fatalf("expected exactly 1 invocation, got %d", invocations)
	}
	for _, r := range results {
		if r != "computed" {
			t.Fatalf("got %v, want computed", r)
		}
	}
}
