package lru

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, string](3)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")
	c.Set("d", "4")

	assert.False(t, c.Has("a"), "oldest key should be evicted")
	for _, k := range []string{"b", "c", "d"} {
		assert.True(t, c.Has(k), "key %s should survive", k)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	c := New[string, string](3)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	c.Set("d", "4")

	assert.True(t, c.Has("a"), "recently read key must not be evicted")
	assert.False(t, c.Has("b"), "b became least recently used")
	assert.Equal(t, []string{"d", "a", "c"}, c.Keys())
}

func TestCache_SetRefreshesRecency(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)
	c.Set("c", 3)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.False(t, c.Has("b"))
}

func TestCache_HasDoesNotRefresh(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.True(t, c.Has("a"))
	c.Set("c", 3)
	assert.False(t, c.Has("a"))
}

func TestCache_GetMissing(t *testing.T) {
	c := New[string, string](1)
	v, ok := c.Get("nope")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestCache_MinimumCapacity(t *testing.T) {
	c := New[int, int](0)
	assert.Equal(t, 1, c.Cap())
	c.Set(1, 1)
	c.Set(2, 2)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has(2))
}

func TestCache_Concurrent(t *testing.T) {
	c := New[string, int](64)
	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := fmt.Sprintf("k%d", (w*200+i)%128)
				c.Set(k, i)
				c.Get(k)
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
