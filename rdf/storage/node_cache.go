package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/ristretto"
	"github.com/wbrown/janus-rdf/rdf"
	"github.com/wbrown/janus-rdf/rdf/annotations"
)

// DefaultNodeCacheSize is the number of nodes kept in memory per direction
const DefaultNodeCacheSize = 100_000

const (
	nodeStripes         = 64
	maxRegisterAttempts = 16
)

// NodeCache maps node values to stable IDs and back. It is shared by
// every transaction of a database.
//
// Registration of a new value is an insert-if-absent against the badger
// value index. Losing a race to another goroutine or process shows up
// either as an existing entry or as a commit conflict; the loser adopts
// the winning ID. The striped mutexes only reduce in-process contention.
type NodeCache struct {
	store     *BadgerStore
	enc       KeyEncoder
	ids       *IDGenerator
	byValue   *ristretto.Cache // canonical value key -> rdf.NodeID
	byID      *ristretto.Cache // uint64 -> rdf.Node
	stripes   [nodeStripes]sync.Mutex
	collector *annotations.Collector
	metrics   *Metrics
}

// NewNodeCache creates a cache over the store, drawing new IDs from ids
func NewNodeCache(store *BadgerStore, ids *IDGenerator, maxNodes int64) (*NodeCache, error) {
	if maxNodes <= 0 {
		maxNodes = DefaultNodeCacheSize
	}

	newCache := func() (*ristretto.Cache, error) {
		return ristretto.NewCache(&ristretto.Config{
			NumCounters: maxNodes * 10,
			MaxCost:     maxNodes,
			BufferItems: 64,
		})
	}

	byValue, err := newCache()
	if err != nil {
		return nil, fmt.Errorf("failed to create node value cache: %w", err)
	}
	byID, err := newCache()
	if err != nil {
		byValue.Close()
		return nil, fmt.Errorf("failed to create node id cache: %w", err)
	}

	return &NodeCache{
		store:   store,
		enc:     store.Encoder(),
		ids:     ids,
		byValue: byValue,
		byID:    byID,
	}, nil
}

// Resolve returns the ID of node, registering it durably if it is new.
// Repeated and concurrent calls for equal nodes return the same ID.
func (c *NodeCache) Resolve(node rdf.Node) (rdf.NodeID, error) {
	if err := rdf.ValidateNode(node); err != nil {
		return 0, err
	}

	id, ok, err := c.Lookup(node)
	if err != nil || ok {
		return id, err
	}

	candidate, err := c.ids.Next()
	if err != nil {
		return 0, err
	}

	id, _, err = c.register(node, rdf.NodeID(candidate))
	if err != nil {
		return 0, err
	}
	c.publish(node, id)
	return id, nil
}

// Lookup returns the ID of an already registered node without creating one
func (c *NodeCache) Lookup(node rdf.Node) (rdf.NodeID, bool, error) {
	valueKey := c.enc.NodeValueKey(node.Key())

	if v, ok := c.byValue.Get(string(valueKey)); ok {
		c.metrics.cacheLookup(true)
		return v.(rdf.NodeID), true, nil
	}
	c.metrics.cacheLookup(false)

	var id rdf.NodeID
	var found bool
	err := c.store.View(func(txn *badger.Txn) error {
		var err error
		id, found, err = c.lookupTxn(txn, node.Key(), valueKey)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	if found {
		c.publish(node, id)
	}
	return id, found, nil
}

// Get returns the node registered under id
func (c *NodeCache) Get(id rdf.NodeID) (rdf.Node, error) {
	if v, ok := c.byID.Get(uint64(id)); ok {
		c.metrics.cacheLookup(true)
		return v.(rdf.Node), nil
	}
	c.metrics.cacheLookup(false)

	if id == rdf.DefaultGraphID {
		return nil, fmt.Errorf("%w: %d", rdf.ErrUnknownNodeID, id)
	}

	var record nodeRecord
	err := c.store.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.enc.NodeIDKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %d", rdf.ErrUnknownNodeID, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			record, err = nodeRecordFromBytes(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	node, err := record.Key.Node()
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", id, err)
	}
	c.byID.Set(uint64(id), node, 1)
	return node, nil
}

// ForEach calls fn for every registered node in ID order
func (c *NodeCache) ForEach(fn func(id rdf.NodeID, node rdf.Node, createdAt time.Time) error) error {
	return c.store.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixOnly(prefixNodeByID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := rdf.NodeID(binary.BigEndian.Uint64(item.Key()[1:]))

			var record nodeRecord
			err := item.Value(func(val []byte) error {
				var err error
				record, err = nodeRecordFromBytes(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("node %d: %w", id, err)
			}

			node, err := record.Key.Node()
			if err != nil {
				return fmt.Errorf("node %d: %w", id, err)
			}
			if err := fn(id, node, record.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Wait blocks until buffered cache writes are applied
func (c *NodeCache) Wait() {
	c.byValue.Wait()
	c.byID.Wait()
}

// Close releases the in-memory caches
func (c *NodeCache) Close() {
	c.byValue.Close()
	c.byID.Close()
}

// register durably assigns candidate to node unless another writer got
// there first, in which case the existing ID is returned. created is
// true only when candidate was stored.
func (c *NodeCache) register(node rdf.Node, candidate rdf.NodeID) (rdf.NodeID, bool, error) {
	key := node.Key()
	valueKey := c.enc.NodeValueKey(key)

	stripe := &c.stripes[xxhash.Sum64(valueKey)%nodeStripes]
	stripe.Lock()
	defer stripe.Unlock()

	start := time.Now()
	for attempt := 0; attempt < maxRegisterAttempts; attempt++ {
		var existing rdf.NodeID
		var found bool

		err := c.store.Update(func(txn *badger.Txn) error {
			var err error
			existing, found, err = c.lookupTxn(txn, key, valueKey)
			if err != nil || found {
				return err
			}
			if err := txn.Set(valueKey, uint64Bytes(uint64(candidate))); err != nil {
				return err
			}
			record := nodeRecord{Key: key, CreatedAt: time.Now().UTC()}
			return txn.Set(c.enc.NodeIDKey(candidate), record.Bytes())
		})

		switch {
		case errors.Is(err, badger.ErrConflict):
			// Someone wrote the value key after we read it. Whoever it
			// was has committed, so the re-query finds the winner.
			winner, ok, lerr := c.lookupDurable(key, valueKey)
			if lerr != nil {
				return 0, false, lerr
			}
			if ok {
				c.raceRecovered(node, winner, start)
				return winner, false, nil
			}
			continue

		case err != nil:
			return 0, false, fmt.Errorf("register %s: %w", node, asUnavailable(err))

		case found:
			if existing != candidate {
				c.raceRecovered(node, existing, start)
			}
			return existing, false, nil
		}

		c.registered(node, candidate, start)
		return candidate, true, nil
	}

	return 0, false, fmt.Errorf("%w: register %s: too many conflicting writers", rdf.ErrStoreUnavailable, node)
}

// claim writes node under candidate inside txn, so the node rows commit
// or roll back together with txn. The value key is read inside txn first,
// which turns a concurrent claim of the same value into a commit
// conflict. Callers adopt durably registered nodes before claiming.
func (c *NodeCache) claim(txn *badger.Txn, node rdf.Node, candidate rdf.NodeID) (rdf.NodeID, bool, error) {
	key := node.Key()
	valueKey := c.enc.NodeValueKey(key)

	existing, found, err := c.lookupTxn(txn, key, valueKey)
	if err != nil {
		return 0, false, err
	}
	if found {
		return existing, false, nil
	}

	if err := txn.Set(valueKey, uint64Bytes(uint64(candidate))); err != nil {
		return 0, false, err
	}
	record := nodeRecord{Key: key, CreatedAt: time.Now().UTC()}
	if err := txn.Set(c.enc.NodeIDKey(candidate), record.Bytes()); err != nil {
		return 0, false, err
	}
	return candidate, true, nil
}

// registered records a node that became durable under id
func (c *NodeCache) registered(node rdf.Node, id rdf.NodeID, start time.Time) {
	c.metrics.nodeRegistered()
	c.collector.AddTiming(annotations.NodeRegistered, start, map[string]interface{}{
		"node": node.String(),
		"id":   uint64(id),
	})
}

// raceRecovered records a DuplicateNodeRace that was resolved by
// adopting the winning ID
func (c *NodeCache) raceRecovered(node rdf.Node, winner rdf.NodeID, start time.Time) {
	c.metrics.registrationRace()
	c.collector.AddTiming(annotations.NodeRaceRecovered, start, map[string]interface{}{
		"node":  node.String(),
		"id":    uint64(winner),
		"error": rdf.ErrDuplicateNodeRace.Error(),
	})
}

// lookupDurable queries badger directly, bypassing the memory cache
func (c *NodeCache) lookupDurable(key rdf.NodeKey, valueKey []byte) (rdf.NodeID, bool, error) {
	var id rdf.NodeID
	var found bool
	err := c.store.View(func(txn *badger.Txn) error {
		var err error
		id, found, err = c.lookupTxn(txn, key, valueKey)
		return err
	})
	return id, found, err
}

// lookupTxn reads the value index inside txn. Hashed keys are verified
// against the stored record to rule out a digest collision.
func (c *NodeCache) lookupTxn(txn *badger.Txn, key rdf.NodeKey, valueKey []byte) (rdf.NodeID, bool, error) {
	item, err := txn.Get(valueKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var id rdf.NodeID
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt node index entry")
		}
		id = rdf.NodeID(binary.BigEndian.Uint64(val))
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	if valueKey[1] == hashedNodeKeyMarker {
		recItem, err := txn.Get(c.enc.NodeIDKey(id))
		if err != nil {
			return 0, false, fmt.Errorf("node %d: %w", id, err)
		}
		err = recItem.Value(func(val []byte) error {
			record, err := nodeRecordFromBytes(val)
			if err != nil {
				return err
			}
			if record.Key != key {
				return fmt.Errorf("node key collision between %v and %v", record.Key, key)
			}
			return nil
		})
		if err != nil {
			return 0, false, err
		}
	}

	return id, true, nil
}

// publish makes a registered node visible to every transaction
func (c *NodeCache) publish(node rdf.Node, id rdf.NodeID) {
	c.byValue.Set(string(c.enc.NodeValueKey(node.Key())), id, 1)
	c.byID.Set(uint64(id), node, 1)
}
