package planner

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wbrown/janus-rdf/rdf/algebra"
)

// Plan cache defaults
const (
	DefaultPlanCacheSize = 1000
	DefaultPlanCacheTTL  = 5 * time.Minute
)

// PlanCache memoizes optimizer results. Entries are keyed by arena
// layout (see PlanKey), so a replayed result keeps every NodeRef of the
// input valid.
type PlanCache struct {
	mu      sync.RWMutex
	entries map[string]planEntry
	seq     uint64 // insertion counter, orders eviction

	hits   atomic.Int64
	misses atomic.Int64

	maxSize int
	ttl     time.Duration
}

type planEntry struct {
	tree    *algebra.Tree
	stats   Stats
	stored  time.Time
	ordinal uint64
}

func (e planEntry) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.stored) > ttl
}

// NewPlanCache creates a cache of at most maxSize trees, each kept for ttl.
// Non-positive arguments select the defaults.
func NewPlanCache(maxSize int, ttl time.Duration) *PlanCache {
	if maxSize <= 0 {
		maxSize = DefaultPlanCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultPlanCacheTTL
	}
	return &PlanCache{
		entries: make(map[string]planEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the optimized tree stored under key. The tree is shared;
// callers copy it before mutating.
func (c *PlanCache) Get(key string) (*algebra.Tree, Stats, bool) {
	if c == nil {
		return nil, Stats{}, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.expired(c.ttl, time.Now()) {
		c.misses.Add(1)
		return nil, Stats{}, false
	}
	c.hits.Add(1)
	return e.tree, e.stats, true
}

// Set stores tree under key. The cache keeps the reference, so pass a
// tree nobody else will modify.
func (c *PlanCache) Set(key string, tree *algebra.Tree, stats Stats) {
	if c == nil || tree == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, replacing := c.entries[key]; !replacing && len(c.entries) >= c.maxSize {
		c.dropExpired(now)
		for len(c.entries) >= c.maxSize {
			c.dropOldest()
		}
	}

	c.seq++
	c.entries[key] = planEntry{tree: tree, stats: stats, stored: now, ordinal: c.seq}
}

// Clear empties the cache and resets its counters
func (c *PlanCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.entries = make(map[string]planEntry)
	c.mu.Unlock()

	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats reports hits, misses and the number of stored trees
func (c *PlanCache) Stats() (hits, misses int64, size int) {
	if c == nil {
		return 0, 0, 0
	}

	c.mu.RLock()
	size = len(c.entries)
	c.mu.RUnlock()

	return c.hits.Load(), c.misses.Load(), size
}

func (c *PlanCache) dropExpired(now time.Time) {
	for key, e := range c.entries {
		if e.expired(c.ttl, now) {
			delete(c.entries, key)
		}
	}
}

func (c *PlanCache) dropOldest() {
	var victim string
	var oldest uint64
	for key, e := range c.entries {
		if victim == "" || e.ordinal < oldest {
			victim, oldest = key, e.ordinal
		}
	}
	delete(c.entries, victim)
}

// PlanKey hashes the whole arena, unreachable slots included, together
// with the options that change the result. Two trees share a key only if
// every NodeRef means the same thing in both.
func PlanKey(tree *algebra.Tree, opts Options) string {
	h := sha256.New()

	writeInt(h, int64(tree.Root()))
	writeInt(h, int64(tree.Len()))
	for i := 0; i < tree.Len(); i++ {
		ref := algebra.NodeRef(i)
		offset, limit := tree.SliceBounds(ref)

		writeInt(h, int64(tree.Kind(ref)))
		writeInt(h, offset)
		writeInt(h, limit)
		writeInt(h, int64(tree.Parent(ref)))

		args := tree.Args(ref)
		writeInt(h, int64(len(args)))
		for _, a := range args {
			writeInt(h, int64(len(a)))
			h.Write([]byte(a))
		}

		children := tree.Children(ref)
		writeInt(h, int64(len(children)))
		for _, child := range children {
			writeInt(h, int64(child))
		}
	}

	var flags int64
	if opts.EnableGlobalPreconditions {
		flags = 1
	}
	writeInt(h, flags)
	writeInt(h, int64(opts.MaxRounds))

	return hex.EncodeToString(h.Sum(nil))
}

func writeInt(h hash.Hash, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	h.Write(b[:])
}
