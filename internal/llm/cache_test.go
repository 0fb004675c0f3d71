package llm

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := newAnalysisCache(5 * time.Minute)
		defer cache.Close()

		_, found := cache.get("non-existent")
		assert.False(t, found)

		cache.set("key1", "<p>grind finer</p>")
		got, found := cache.get("key1")
		assert.True(t, found)
		assert.Equal(t, "<p>grind finer</p>", got)
		assert.Equal(t, 1, cache.size())

		cache.clear()
		assert.Equal(t, 0, cache.size())
	})

	t.Run("expiration", func(t *testing.T) {
		cache := newAnalysisCache(50 * time.Millisecond)
		defer cache.Close()

		cache.set("key2", "<p>ok</p>")
		_, found := cache.get("key2")
		assert.True(t, found)

		time.Sleep(100 * time.Millisecond)
		_, found = cache.get("key2")
		assert.False(t, found)
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := newAnalysisCache(5 * time.Minute)
		defer cache.Close()

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					key := fmt.Sprintf("k%d", j%10)
					cache.set(key, "v")
					_, _ = cache.get(key)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 10, cache.size())
	})
}

func TestAnalysisCache_EvictsOldestWhenFull(t *testing.T) {
	cache := newAnalysisCache(time.Hour)
	defer cache.Close()

	cache.set("k0", "v")
	time.Sleep(2 * time.Millisecond)
	for i := 1; i < maxCachedAnalyses; i++ {
		cache.set(fmt.Sprintf("k%d", i), "v")
	}
	cache.set("overflow", "v")

	assert.Equal(t, maxCachedAnalyses, cache.size())
	_, found := cache.get("k0")
	assert.False(t, found)
	_, found = cache.get("overflow")
	assert.True(t, found)
}

func TestAnalysisCache_CloseTwice(t *testing.T) {
	cache := newAnalysisCache(time.Minute)
	cache.Close()
	assert.NotPanics(t, cache.Close)
}
