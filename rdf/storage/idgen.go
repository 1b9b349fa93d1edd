package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/wbrown/janus-rdf/rdf"
	"github.com/wbrown/janus-rdf/rdf/annotations"
)

// DefaultIDBatchSize is how many IDs a generator leases per round trip
const DefaultIDBatchSize = 1000

// maxLeaseAttempts bounds retries when other processes lease concurrently
const maxLeaseAttempts = 32

// IDRange is the half-open interval [Start, End)
type IDRange struct {
	Start uint64
	End   uint64
}

// Len returns the number of IDs in the range
func (r IDRange) Len() uint64 {
	return r.End - r.Start
}

// IDGenerator issues unique, increasing IDs from a persisted sequence.
// IDs are leased from badger in batches and handed out from memory. A
// crash wastes the unused part of the lease; IDs are never reissued.
type IDGenerator struct {
	store     *BadgerStore
	name      string
	key       []byte
	batch     uint64
	collector *annotations.Collector
	metrics   *Metrics

	mu    sync.Mutex
	next  uint64
	limit uint64
}

// NewIDGenerator creates a generator for the named sequence. The first
// ID ever issued by a sequence is 1.
func NewIDGenerator(store *BadgerStore, name string, batch uint64) *IDGenerator {
	if batch == 0 {
		batch = DefaultIDBatchSize
	}
	return &IDGenerator{
		store: store,
		name:  name,
		key:   store.Encoder().SequenceKey(name),
		batch: batch,
	}
}

// Next returns a single fresh ID
func (g *IDGenerator) Next() (uint64, error) {
	r, err := g.AllocateBatch(1)
	if err != nil {
		return 0, err
	}
	return r.Start, nil
}

// AllocateBatch returns n contiguous fresh IDs
func (g *IDGenerator) AllocateBatch(n uint64) (IDRange, error) {
	if n == 0 {
		return IDRange{}, fmt.Errorf("allocate batch: n must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.limit-g.next < n {
		// Whatever remains of the current lease is abandoned so the
		// returned range stays contiguous
		size := g.batch
		if n > size {
			size = n
		}
		lease, err := g.lease(size)
		if err != nil {
			return IDRange{}, err
		}
		g.next, g.limit = lease.Start, lease.End
	}

	r := IDRange{Start: g.next, End: g.next + n}
	g.next += n
	return r, nil
}

// HighWater returns the persisted mark, the first ID no lease has covered
func (g *IDGenerator) HighWater() (uint64, error) {
	var mark uint64
	err := g.store.View(func(txn *badger.Txn) error {
		var err error
		mark, err = readMark(txn, g.key)
		return err
	})
	return mark, err
}

// lease advances the persisted mark by size and returns the range it
// covered. Concurrent leases from other processes conflict in badger and
// are retried against the new mark.
func (g *IDGenerator) lease(size uint64) (IDRange, error) {
	start := time.Now()

	var r IDRange
	for attempt := 0; attempt < maxLeaseAttempts; attempt++ {
		err := g.store.Update(func(txn *badger.Txn) error {
			mark, err := readMark(txn, g.key)
			if err != nil {
				return err
			}
			r = IDRange{Start: mark, End: mark + size}
			return txn.Set(g.key, uint64Bytes(r.End))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return IDRange{}, fmt.Errorf("lease %s IDs: %w", g.name, asUnavailable(err))
		}

		g.metrics.idLease(g.name)
		g.collector.AddTiming(annotations.IDLease, start, map[string]interface{}{
			"sequence": g.name,
			"start":    r.Start,
			"end":      r.End,
		})
		return r, nil
	}

	return IDRange{}, fmt.Errorf("%w: lease %s IDs: too many concurrent leases", rdf.ErrStoreUnavailable, g.name)
}

// readMark loads a sequence mark. A missing mark means nothing was ever
// leased, so the first ID is 1.
func readMark(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	var mark uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt sequence mark")
		}
		mark = binary.BigEndian.Uint64(val)
		return nil
	})
	return mark, err
}

// asUnavailable makes sure a backend failure carries ErrStoreUnavailable
func asUnavailable(err error) error {
	if err == nil || errors.Is(err, rdf.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", rdf.ErrStoreUnavailable, err)
}
