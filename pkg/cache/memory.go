package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryItem stores cached value with expiration.
type MemoryItem struct {
	Key      string
	Value    interface{}
	StoredAt time.Time
	ExpireAt time.Time
}

// IsExpiredAt reports whether the item is logically absent at now.
func (m *MemoryItem) IsExpiredAt(now time.Time) bool {
	return !now.Before(m.ExpireAt)
}

// MemoryCache is a bounded in-process TTL store. Expired entries are
// dropped on access and by a periodic sweep; when full, expired entries
// are purged first and then the oldest-inserted entries are evicted.
type MemoryCache struct {
	data          map[string]*list.Element
	order         *list.List // front = oldest insert
	mutex         sync.Mutex
	maxSize       int
	defaultTTL    time.Duration
	now           func() time.Time
	cleanupTicker *time.Ticker
	done          chan struct{}
	closeOnce     sync.Once
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
		DefaultTTL:      7 * 24 * time.Hour,
		Clock:           time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}

	mc := &MemoryCache{
		data:       make(map[string]*list.Element),
		order:      list.New(),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Clock,
		done:       make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		mc.cleanupTicker = time.NewTicker(cfg.CleanupInterval)
		go mc.cleanupExpired()
	}
	return mc
}

// Set stores value under key for ttl. A non-positive ttl uses the default TTL.
func (mc *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = mc.defaultTTL
	}

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	now := mc.now()
	item := &MemoryItem{Key: key, Value: value, StoredAt: now, ExpireAt: now.Add(ttl)}

	if el, ok := mc.data[key]; ok {
		el.Value = item
		mc.order.MoveToBack(el)
		return
	}

	if len(mc.data) >= mc.maxSize {
		mc.purgeExpiredLocked(now)
		for len(mc.data) >= mc.maxSize {
			mc.evictOldestLocked()
		}
	}

	mc.data[key] = mc.order.PushBack(item)
}

// Get returns the value for key, or false when missing or expired.
func (mc *MemoryCache) Get(key string) (interface{}, bool) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	el, ok := mc.data[key]
	if !ok {
		return nil, false
	}
	item := el.Value.(*MemoryItem)
	if item.IsExpiredAt(mc.now()) {
		mc.removeLocked(el)
		return nil, false
	}
	return item.Value, true
}

// TTL returns the remaining lifetime of key.
func (mc *MemoryCache) TTL(key string) (time.Duration, bool) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	el, ok := mc.data[key]
	if !ok {
		return 0, false
	}
	item := el.Value.(*MemoryItem)
	now := mc.now()
	if item.IsExpiredAt(now) {
		mc.removeLocked(el)
		return 0, false
	}
	return item.ExpireAt.Sub(now), true
}

// Has reports whether key holds a live value.
func (mc *MemoryCache) Has(key string) bool {
	_, ok := mc.Get(key)
	return ok
}

// Delete removes keys.
func (mc *MemoryCache) Delete(keys ...string) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		if el, ok := mc.data[key]; ok {
			mc.removeLocked(el)
		}
	}
}

// Clear drops every entry.
func (mc *MemoryCache) Clear() {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.data = make(map[string]*list.Element)
	mc.order.Init()
}

// Len returns the number of physically stored entries, expired ones included.
func (mc *MemoryCache) Len() int {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return len(mc.data)
}

// PurgeExpired removes every expired entry and returns how many were dropped.
func (mc *MemoryCache) PurgeExpired() int {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return mc.purgeExpiredLocked(mc.now())
}

func (mc *MemoryCache) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for el := mc.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*MemoryItem).IsExpiredAt(now) {
			mc.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

func (mc *MemoryCache) evictOldestLocked() {
	if el := mc.order.Front(); el != nil {
		mc.removeLocked(el)
	}
}

func (mc *MemoryCache) removeLocked(el *list.Element) {
	item := el.Value.(*MemoryItem)
	delete(mc.data, item.Key)
	mc.order.Remove(el)
}

func (mc *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-mc.cleanupTicker.C:
			mc.PurgeExpired()
		case <-mc.done:
			return
		}
	}
}

// Close stops the cleanup ticker.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		if mc.cleanupTicker != nil {
			mc.cleanupTicker.Stop()
		}
		close(mc.done)
	})
	return nil
}
