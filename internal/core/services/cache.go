package services

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arbor-labs/arborsync/internal/core/ports/driven"
)

// DefaultCacheTTL is how long a fetched collection stays valid.
const DefaultCacheTTL = 5 * time.Minute

// lookupCacheSize bounds each identifier-to-page-id lookup map.
const lookupCacheSize = 4096

// Collection names one cached record collection. Invalidation is always
// scoped to exactly one collection.
type Collection string

const (
	CollectionNodes      Collection = "nodes"
	CollectionPaths      Collection = "paths"
	CollectionNodePaths  Collection = "nodePaths"
	CollectionCategories Collection = "categories"
)

type cacheEntry struct {
	value      any
	capturedAt time.Time
}

// RecordCache is the in-memory, time-boxed cache of fetched collections plus
// the identifier-to-page-id lookup maps. The clock is injected so expiry is
// deterministic under test.
type RecordCache struct {
	clock driven.Clock

	mu      sync.Mutex
	ttl     time.Duration
	entries map[Collection]cacheEntry

	pathIDs     *lru.Cache[string, string]
	nodePathIDs *lru.Cache[string, string]
}

// NewRecordCache creates a cache with the given TTL; ttl <= 0 uses the
// default of five minutes.
func NewRecordCache(clock driven.Clock, ttl time.Duration) *RecordCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	pathIDs, _ := lru.New[string, string](lookupCacheSize)
	nodePathIDs, _ := lru.New[string, string](lookupCacheSize)
	return &RecordCache{
		clock:       clock,
		ttl:         ttl,
		entries:     make(map[Collection]cacheEntry),
		pathIDs:     pathIDs,
		nodePathIDs: nodePathIDs,
	}
}

// SetTTL changes the validity window for subsequent reads. Existing entries
// keep their capture timestamps.
func (c *RecordCache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// Get returns the cached value for a collection while its age is below the
// TTL. The second return is false on a miss or an expired entry.
func (c *RecordCache) Get(col Collection) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[col]
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(entry.capturedAt) >= c.ttl {
		return nil, false
	}
	return entry.value, true
}

// Put replaces a collection's entry with a fresh value and timestamp.
func (c *RecordCache) Put(col Collection, value any) {
	c.mu.Lock()
	c.entries[col] = cacheEntry{value: value, capturedAt: c.clock.Now()}
	c.mu.Unlock()
}

// Invalidate drops exactly one collection's entry, forcing the next read to
// refetch. Other collections keep their entries and timestamps.
func (c *RecordCache) Invalidate(col Collection) {
	c.mu.Lock()
	delete(c.entries, col)
	c.mu.Unlock()
}

// InvalidateAll drops every collection entry (explicit bulk refresh).
func (c *RecordCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[Collection]cacheEntry)
	c.mu.Unlock()
}

// CapturedAt reports when a collection's entry was captured, expired or not.
// Used by tests asserting invalidation scope.
func (c *RecordCache) CapturedAt(col Collection) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[col]
	return entry.capturedAt, ok
}

// Lookup maps: application identifier to remote page id. Entries are added
// opportunistically on fetch or resolution and removed only on delete.

func (c *RecordCache) PathPageID(id string) (string, bool) {
	return c.pathIDs.Get(id)
}

func (c *RecordCache) PutPathPageID(id, pageID string) {
	c.pathIDs.Add(id, pageID)
}

func (c *RecordCache) DropPathPageID(id string) {
	c.pathIDs.Remove(id)
}

func (c *RecordCache) NodePathPageID(id string) (string, bool) {
	return c.nodePathIDs.Get(id)
}

func (c *RecordCache) PutNodePathPageID(id, pageID string) {
	c.nodePathIDs.Add(id, pageID)
}

func (c *RecordCache) DropNodePathPageID(id string) {
	c.nodePathIDs.Remove(id)
}
