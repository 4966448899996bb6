// Package dedup remembers recently seen packet ids so flooded and retransmitted
// packets are applied at most once.
package dedup

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/meshsync/go-meshsync/common/types"
)

// DefaultCapacity is the number of packet ids remembered by default.
const DefaultCapacity = 256

// Cache is a bounded set of packet ids with FIFO eviction.
//
// Only ContainsOrAdd and Contains are used on the underlying cache. Neither
// refreshes the recency of an existing key, so entries leave the cache in
// insertion order regardless of how often they are looked up. A duplicate
// delayed beyond the cache window is treated as new.
type Cache struct {
	ids     *lru.Cache[types.PacketID, struct{}]
	evicted atomic.Uint64
}

// New creates a cache holding at most capacity ids.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{}
	ids, err := lru.NewWithEvict[types.PacketID, struct{}](capacity, func(types.PacketID, struct{}) {
		c.evicted.Add(1)
	})
	if err != nil {
		// only returned for non-positive sizes
		panic(err)
	}
	c.ids = ids
	return c
}

// Seen records id and reports whether it was already present.
func (c *Cache) Seen(id types.PacketID) bool {
	found, _ := c.ids.ContainsOrAdd(id, struct{}{})
	return found
}

// Contains reports whether id is remembered, without recording it.
func (c *Cache) Contains(id types.PacketID) bool {
	return c.ids.Contains(id)
}

// Len returns the number of remembered ids.
func (c *Cache) Len() int {
	return c.ids.Len()
}

// Evicted returns the number of ids dropped to make room for newer ones.
func (c *Cache) Evicted() uint64 {
	return c.evicted.Load()
}

// IDs returns remembered ids from oldest to newest.
func (c *Cache) IDs() []types.PacketID {
	return c.ids.Keys()
}
