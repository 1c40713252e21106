package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one reference price observation.
type Sample struct {
	Symbol     string
	Price      decimal.Decimal
	Target     decimal.Decimal
	ObservedAt time.Time
}

// Source retrieves the current reference price for the pegged asset.
type Source interface {
	CurrentPrice(ctx context.Context) (Sample, error)
}

// Cache keeps the most recent sample and answers staleness checks without
// hitting the upstream source. The price-feed loop refreshes it.
type Cache struct {
	mu        sync.RWMutex
	last      Sample
	populated bool
	window    time.Duration
	now       func() time.Time
}

// NewCache constructs a cache with the given staleness window.
func NewCache(window time.Duration) *Cache {
	return &Cache{window: window, now: time.Now}
}

// Store records a fresh sample.
func (c *Cache) Store(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = s
	c.populated = true
}

// Latest returns the cached sample and whether it is still fresh.
func (c *Cache) Latest() (Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.populated {
		return Sample{}, false
	}
	if c.window > 0 && c.now().Sub(c.last.ObservedAt) > c.window {
		return c.last, false
	}
	return c.last, true
}

// Quote adapts the cache to the stability calculator's reference-quote
// contract: a stale or missing sample reports ok=false so global-mode
// pricing degrades to neutral.
func (c *Cache) Quote() (current, target decimal.Decimal, ok bool) {
	sample, fresh := c.Latest()
	if !fresh || sample.Target.IsZero() {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return sample.Price, sample.Target, true
}
