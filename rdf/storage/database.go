package storage

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wbrown/janus-rdf/rdf"
	"github.com/wbrown/janus-rdf/rdf/annotations"
)

// Sequence names
const (
	nodeSequence    = "node"
	versionSequence = "version"
)

// DefaultPurgeBatch is how many tombstones PurgeDeleted removes per
// badger transaction
const DefaultPurgeBatch = 1000

// Options configures a Database
type Options struct {
	Store               StoreOptions
	IDBatchSize         uint64                // IDs leased per round trip
	NodeCacheSize       int64                 // Nodes cached per direction
	RegistrationWorkers int                   // Parallel node registrations per commit
	Registerer          prometheus.Registerer // nil leaves metrics unregistered
	Handler             annotations.Handler   // nil disables events
}

// DefaultOptions returns options for an on-disk database at path
func DefaultOptions(path string) Options {
	return Options{
		Store:               DefaultStoreOptions(path),
		IDBatchSize:         DefaultIDBatchSize,
		NodeCacheSize:       DefaultNodeCacheSize,
		RegistrationWorkers: runtime.NumCPU(),
	}
}

// InMemoryOptions returns options for a throwaway in-memory database
func InMemoryOptions() Options {
	opts := DefaultOptions("")
	opts.Store = StoreOptions{InMemory: true}
	return opts
}

// Database is the statement store. It owns the badger store, the node
// cache and the ID sequences, and hands out connections and transactions.
type Database struct {
	store      *BadgerStore
	statements *StatementStore
	nodes      *NodeCache
	nodeIDs    *IDGenerator
	versions   *IDGenerator
	visible    atomic.Uint64
	opts       Options
	collector  *annotations.Collector
	metrics    *Metrics

	mu       sync.RWMutex
	activeTx map[*Transaction]bool
	closed   bool
}

// NewDatabase opens an on-disk database with default options
func NewDatabase(path string) (*Database, error) {
	return OpenDatabase(DefaultOptions(path))
}

// OpenDatabase opens a database with the given options
func OpenDatabase(opts Options) (*Database, error) {
	if opts.RegistrationWorkers <= 0 {
		opts.RegistrationWorkers = runtime.NumCPU()
	}

	store, err := NewBadgerStore(opts.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	d := &Database{
		store:      store,
		statements: NewStatementStore(store),
		opts:       opts,
		collector:  annotations.NewCollector(opts.Handler),
		metrics:    NewMetrics(opts.Registerer),
		activeTx:   make(map[*Transaction]bool),
	}

	d.nodeIDs = d.newGenerator(nodeSequence)
	d.versions = d.newGenerator(versionSequence)

	d.nodes, err = NewNodeCache(store, d.nodeIDs, opts.NodeCacheSize)
	if err != nil {
		store.Close()
		return nil, err
	}
	d.nodes.collector = d.collector
	d.nodes.metrics = d.metrics

	// Every version below the persisted mark may have been committed
	mark, err := d.versions.HighWater()
	if err != nil {
		d.nodes.Close()
		store.Close()
		return nil, err
	}
	d.visible.Store(mark - 1)

	return d, nil
}

func (d *Database) newGenerator(name string) *IDGenerator {
	g := NewIDGenerator(d.store, name, d.opts.IDBatchSize)
	g.collector = d.collector
	g.metrics = d.metrics
	return g
}

// Connect opens a new client session
func (d *Database) Connect() *Connection {
	return &Connection{db: d}
}

// Begin starts a transaction that is not bound to a connection
func (d *Database) Begin() (*Transaction, error) {
	return d.begin(nil)
}

func (d *Database) begin(conn *Connection) (*Transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("%w: database is closed", rdf.ErrStoreUnavailable)
	}

	tx := &Transaction{
		id:       uuid.NewString(),
		db:       d,
		conn:     conn,
		txn:      d.store.NewTransaction(true),
		snapshot: d.visible.Load(),
		started:  time.Now(),
		state:    TxOpen,
		nodes:    make(map[rdf.NodeKey]*pendingNode),
		nodeIDs:  make(map[rdf.NodeID]*pendingNode),
		added:    make(map[Quad]bool),
		removed:  make(map[Quad]struct{}),
		promoted: make(map[Quad]struct{}),
	}
	d.activeTx[tx] = true

	d.collector.Add(annotations.Event{
		Name:  annotations.TxBegin,
		Start: tx.started,
		Data: map[string]interface{}{
			"tx":       tx.id,
			"snapshot": tx.snapshot,
		},
	})
	return tx, nil
}

// release forgets a finished transaction
func (d *Database) release(tx *Transaction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.activeTx, tx)
}

// advanceVisible raises the visible version to at least v
func (d *Database) advanceVisible(v uint64) {
	for {
		cur := d.visible.Load()
		if v <= cur || d.visible.CompareAndSwap(cur, v) {
			return
		}
	}
}

// VisibleVersion returns the highest committed statement version
func (d *Database) VisibleVersion() uint64 {
	return d.visible.Load()
}

// Nodes returns the shared node cache
func (d *Database) Nodes() *NodeCache {
	return d.nodes
}

// Resolve returns the ID of a node, registering it immediately if needed
func (d *Database) Resolve(node rdf.Node) (rdf.NodeID, error) {
	return d.nodes.Resolve(node)
}

// Get returns the node registered under id
func (d *Database) Get(id rdf.NodeID) (rdf.Node, error) {
	return d.nodes.Get(id)
}

// Collector returns the event collector shared by all components
func (d *Database) Collector() *annotations.Collector {
	return d.collector
}

// Metrics returns the prometheus collectors
func (d *Database) Metrics() *Metrics {
	return d.metrics
}

// Store returns the underlying store for direct access (debugging/testing)
func (d *Database) Store() *BadgerStore {
	return d.store
}

// Size returns the number of live statements in the latest committed state
func (d *Database) Size() (int64, error) {
	var n int64
	err := d.store.View(func(txn *badger.Txn) error {
		var err error
		n, err = d.statements.Count(txn)
		return err
	})
	return n, err
}

// ForEachStatement calls fn for every committed row, tombstones included,
// in SPOC order
func (d *Database) ForEachStatement(fn func(Quad, Row) error) error {
	return d.store.View(func(txn *badger.Txn) error {
		_, err := d.statements.Scan(txn, IDPattern{}, true, fn)
		return err
	})
}

// ForEachNode calls fn for every registered node in ID order
func (d *Database) ForEachNode(fn func(id rdf.NodeID, node rdf.Node, createdAt time.Time) error) error {
	return d.nodes.ForEach(fn)
}

// PurgeDeleted removes tombstoned rows in batches and returns how many
// were removed. Open transactions that still see those rows are
// unaffected: they read from their own snapshot.
func (d *Database) PurgeDeleted() (int, error) {
	total := 0
	for {
		var n int
		err := d.store.Update(func(txn *badger.Txn) error {
			var err error
			n, err = d.statements.Purge(txn, DefaultPurgeBatch)
			return err
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
		if n < DefaultPurgeBatch {
			return total, nil
		}
	}
}

// Stats describes the database for diagnostics
type Stats struct {
	Statements         int64
	Tombstones         int64
	NodeHighWater      uint64
	VisibleVersion     uint64
	ActiveTransactions int
}

// Stats counts rows in the latest committed state
func (d *Database) Stats() (Stats, error) {
	var s Stats
	err := d.ForEachStatement(func(_ Quad, row Row) error {
		if row.Live() {
			s.Statements++
		} else {
			s.Tombstones++
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	mark, err := d.nodeIDs.HighWater()
	if err != nil {
		return Stats{}, err
	}
	s.NodeHighWater = mark
	s.VisibleVersion = d.VisibleVersion()

	d.mu.RLock()
	s.ActiveTransactions = len(d.activeTx)
	d.mu.RUnlock()
	return s, nil
}

// Close rolls back open transactions and closes the store
func (d *Database) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	open := make([]*Transaction, 0, len(d.activeTx))
	for tx := range d.activeTx {
		open = append(open, tx)
	}
	d.mu.Unlock()

	for _, tx := range open {
		tx.Rollback()
	}

	d.nodes.Close()
	return d.store.Close()
}
