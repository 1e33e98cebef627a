// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/mediagit/mediagit/modules/plumbing"
)

// CacheStats is the snapshot returned by Cache.Stats (§4.3).
type CacheStats struct {
	Hits       uint64
	Misses     uint64
	BytesInUse int64
	Entries    int64
}

// cacheEntry is the value ristretto actually stores. Its OnEvict/OnReject
// callbacks only hand back the stored value (not the original key), so the
// oid rides along with the payload to let forget() find the right sizes
// entry when ristretto evicts something on its own.
type cacheEntry struct {
	oid  plumbing.Hash
	data []byte
}

// Cache is the bounded-by-bytes LRU object cache (§4.3), built on
// github.com/dgraph-io/ristretto/v2 and generalized into a standalone
// component the ODB uses for hot-object reads. Coalescing of concurrent
// cold reads is done by the ODB itself, not by this cache.
//
// Admission/eviction accounting is tracked independently of ristretto's own
// internal metrics: a small sizes map records the cost of each admitted key
// so Delete and ristretto's own background eviction can keep
// BytesInUse/Entries exact without depending on ristretto's Metrics field
// shape. OnEvict/OnReject are wired so bookkeeping stays in sync even when
// ristretto drops an entry on its own, not just on an explicit Put/Delete.
type Cache struct {
	rc       *ristretto.Cache[plumbing.Hash, *cacheEntry]
	maxBytes int64

	hits      uint64
	misses    uint64
	bytesUsed int64
	entries   int64

	mu    sync.Mutex
	sizes map[plumbing.Hash]int64
}

// NewCache builds a Cache bounded by maxBytes total payload size.
func NewCache(maxBytes int64) (*Cache, error) {
	c := &Cache{maxBytes: maxBytes, sizes: make(map[plumbing.Hash]int64)}
	rc, err := ristretto.NewCache(&ristretto.Config[plumbing.Hash, *cacheEntry]{
		NumCounters: maxBytes/64*10 + 1, // ~10x expected entry count, ristretto's own guidance
		MaxCost:     maxBytes,
		BufferItems: 64,
		OnEvict:     func(item *ristretto.Item[*cacheEntry]) { c.forget(item.Value) },
		OnReject:    func(item *ristretto.Item[*cacheEntry]) { c.forget(item.Value) },
	})
	if err != nil {
		return nil, err
	}
	c.rc = rc
	return c, nil
}

// forget drops e's bookkeeping entry, if still present. Called both from
// Delete/Put's explicit replace path and from ristretto's own
// OnEvict/OnReject callbacks, so it must tolerate e already being gone.
func (c *Cache) forget(e *cacheEntry) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, had := c.sizes[e.oid]
	if !had {
		return
	}
	delete(c.sizes, e.oid)
	atomic.AddInt64(&c.bytesUsed, -prev)
	atomic.AddInt64(&c.entries, -1)
}

// Get returns a copy of the cached payload and promotes it to
// most-recently-used atomically (ristretto's Get already does this).
func (c *Cache) Get(oid plumbing.Hash) ([]byte, bool) {
	e, ok := c.rc.Get(oid)
	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, true
}

// Put admits data under oid. A single entry larger than maxBytes is not
// admitted, per §4.3's invariant.
func (c *Cache) Put(oid plumbing.Hash, data []byte) {
	cost := int64(len(data))
	if c.maxBytes > 0 && cost > c.maxBytes {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	c.mu.Lock()
	if prev, had := c.sizes[oid]; had {
		delete(c.sizes, oid)
		atomic.AddInt64(&c.bytesUsed, -prev)
		atomic.AddInt64(&c.entries, -1)
	}
	c.mu.Unlock()

	if c.rc.Set(oid, &cacheEntry{oid: oid, data: cp}, cost) {
		c.mu.Lock()
		c.sizes[oid] = cost
		c.mu.Unlock()
		atomic.AddInt64(&c.bytesUsed, cost)
		atomic.AddInt64(&c.entries, 1)
	}
}

// Delete evicts oid from the cache, if present.
func (c *Cache) Delete(oid plumbing.Hash) {
	c.mu.Lock()
	if prev, had := c.sizes[oid]; had {
		delete(c.sizes, oid)
		atomic.AddInt64(&c.bytesUsed, -prev)
		atomic.AddInt64(&c.entries, -1)
	}
	c.mu.Unlock()
	c.rc.Del(oid)
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:       atomic.LoadUint64(&c.hits),
		Misses:     atomic.LoadUint64(&c.misses),
		BytesInUse: atomic.LoadInt64(&c.bytesUsed),
		Entries:    atomic.LoadInt64(&c.entries),
	}
}

func (c *Cache) Close() {
	c.rc.Close()
}
