package cache

import (
	"testing"
	"time"
)

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int64, string](2, time.Minute)

	c.Set(1, "a")
	c.Set(2, "b")
	if _, ok := c.Get(1); !ok { // 1 becomes most recent
		t.Fatal("expected key 1")
	}
	c.Set(3, "c")

	if _, ok := c.Get(2); ok {
		t.Error("key 2 should have been evicted")
	}
	if v, ok := c.Get(1); !ok || v != "a" {
		t.Errorf("Get(1) = %q, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.Delete(1)
	if _, ok := c.Get(1); ok {
		t.Error("key 1 should be deleted")
	}
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[string, int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("fresh", 1)
	c.Set("stale", 2)

	now = now.Add(30 * time.Second)
	c.Set("fresh", 3) // overwrite refreshes the ttl

	now = now.Add(45 * time.Second)
	if _, ok := c.Get("stale"); ok {
		t.Error("stale entry should have expired")
	}
	if v, ok := c.Get("fresh"); !ok || v != 3 {
		t.Errorf("Get(fresh) = %d, %v", v, ok)
	}

	now = now.Add(time.Hour)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestManager(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[int64, bool](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set(1, true)
	c.Set(2, true)

	m := NewManager()
	m.Register("rules", c)

	if n := m.CleanAll(); n != 0 {
		t.Errorf("CleanAll() = %d before expiry, want 0", n)
	}
	now = now.Add(time.Minute)
	if n := m.CleanAll(); n != 2 {
		t.Errorf("CleanAll() = %d, want 2", n)
	}

	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager()
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without a running cleanup loop")
	}
}
