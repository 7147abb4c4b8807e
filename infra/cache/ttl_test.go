package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLStoreSetGet(t *testing.T) {
	s := NewTTLStore[string](Config{TTLSeconds: 60})
	defer s.Stop()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("a", "1", 0)
	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 1, s.Len())

	s.Delete("a")
	_, ok = s.Get("a")
	assert.False(t, ok)
}

func TestTTLStoreExpiry(t *testing.T) {
	s := NewTTLStore[int](Config{})
	defer s.Stop()
	s.Set("short", 1, 20*time.Millisecond)
	s.Set("long", 2, 0)

	require.Eventually(t, func() bool {
		_, ok := s.Get("short")
		return !ok
	}, time.Second, 5*time.Millisecond)
	_, ok := s.Get("long")
	assert.True(t, ok)
}

func TestTTLStoreGetOrSetConcurrent(t *testing.T) {
	s := NewTTLStore[*int](Config{})
	defer s.Stop()

	var wg sync.WaitGroup
	got := make([]*int, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := i
			got[i], _ = s.GetOrSet("key", &v)
		}(i)
	}
	wg.Wait()
	for _, p := range got {
		assert.Same(t, got[0], p)
	}
}

func TestTTLStoreCapacity(t *testing.T) {
	s := NewTTLStore[int](Config{Capacity: 2})
	defer s.Stop()
	s.Set("a", 1, 0)
	s.Set("b", 2, 0)
	s.Set("c", 3, 0)
	assert.Equal(t, 2, s.Len())
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, 5*time.Minute, c.TTL())
}
