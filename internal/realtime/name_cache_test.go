package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNameCache_SetGet(t *testing.T) {
	c := NewNameCache(10 * time.Minute)

	_, ok := c.Get(7)
	assert.False(t, ok)

	c.Set(7, "チョコ")
	name, ok := c.Get(7)
	assert.True(t, ok)
	assert.Equal(t, "チョコ", name)
}

// TTLを過ぎたエントリはミス扱いで破棄される
func TestNameCache_Expiry(t *testing.T) {
	c := NewNameCache(10 * time.Minute)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(7, "チョコ")

	now = now.Add(9 * time.Minute)
	_, ok := c.Get(7)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(7)
	assert.False(t, ok)
}

func TestNameCache_Invalidate(t *testing.T) {
	c := NewNameCache(10 * time.Minute)

	c.Set(7, "チョコ")
	c.Invalidate(7)

	_, ok := c.Get(7)
	assert.False(t, ok)
}
