package realtime

import (
	"sync"
	"time"
)

type nameEntry struct {
	name      string
	expiresAt time.Time
}

// 商品ID→商品名のTTL付きキャッシュ。
// コンストラクタで注入し、寿命と無効化をここに閉じ込める。
type NameCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]nameEntry
}

func NewNameCache(ttl time.Duration) *NameCache {
	return &NameCache{
		ttl:     ttl,
		now:     time.Now,
		entries: map[int64]nameEntry{},
	}
}

func (c *NameCache) Get(productID int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[productID]
	if !ok {
		return "", false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, productID)
		return "", false
	}
	return e.name, true
}

func (c *NameCache) Set(productID int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[productID] = nameEntry{name: name, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate は1件をキャッシュから落とす（商品名変更時など）。
func (c *NameCache) Invalidate(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, productID)
}
