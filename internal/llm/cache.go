package llm

import (
	"sync"
	"time"
)

// maxCachedAnalyses bounds memory use; the entry closest to expiry is evicted
// first.
const maxCachedAnalyses = 256

type cacheEntry struct {
	expiry time.Time
	html   string
}

// analysisCache keeps finished analyses keyed by prompt and image hash, so a
// resubmitted shot does not cost another model call.
type analysisCache struct {
	entries   map[string]cacheEntry
	stopCh    chan struct{}
	closeOnce sync.Once
	ttl       time.Duration
	mu        sync.RWMutex
}

func newAnalysisCache(ttl time.Duration) *analysisCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	c := &analysisCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go c.sweep(min(ttl, 5*time.Minute))
	return c
}

func (c *analysisCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiry) {
		return "", false
	}
	return e.html, true
}

func (c *analysisCache) set(key, html string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= maxCachedAnalyses {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{html: html, expiry: time.Now().Add(c.ttl)}
}

func (c *analysisCache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range c.entries {
		if oldestKey == "" || e.expiry.Before(oldest) {
			oldestKey, oldest = k, e.expiry
		}
	}
	delete(c.entries, oldestKey)
}

func (c *analysisCache) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expiry) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *analysisCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *analysisCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper. It is safe to call more than once.
func (c *analysisCache) Close() {
	c.closeOnce.Do(func() { close(c.stopCh) })
}
