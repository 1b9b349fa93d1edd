package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/wbrown/janus-rdf/rdf"
)

// StoreOptions configures the badger backend
type StoreOptions struct {
	Path           string // Directory, ignored when InMemory
	InMemory       bool   // Keep everything in memory (tests, scratch stores)
	SyncWrites     bool   // fsync on every commit
	MemTableSize   int64
	BlockCacheSize int64
	IndexCacheSize int64
	NumCompactors  int
	ValueThreshold int64
}

// DefaultStoreOptions returns options tuned for a mixed read/write workload
func DefaultStoreOptions(path string) StoreOptions {
	return StoreOptions{
		Path:           path,
		MemTableSize:   64 << 20,  // 64MB memtables
		BlockCacheSize: 256 << 20, // 256MB block cache for faster reads
		IndexCacheSize: 100 << 20, // 100MB index cache
		NumCompactors:  4,         // Parallel compaction
		ValueThreshold: 1 << 10,   // 1KB - statement rows and node records stay in the LSM tree
	}
}

// BadgerStore owns the badger handle and the key encoder
type BadgerStore struct {
	db      *badger.DB
	encoder KeyEncoder
}

// NewBadgerStore opens a BadgerDB-backed store
func NewBadgerStore(opts StoreOptions) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil // Disable BadgerDB logs, events go through annotations

	if opts.MemTableSize > 0 {
		bopts.MemTableSize = opts.MemTableSize
	}
	if opts.BlockCacheSize > 0 {
		bopts.BlockCacheSize = opts.BlockCacheSize
	}
	if opts.IndexCacheSize > 0 {
		bopts.IndexCacheSize = opts.IndexCacheSize
	}
	if opts.NumCompactors > 0 {
		bopts.NumCompactors = opts.NumCompactors
	}
	if opts.ValueThreshold > 0 {
		bopts.ValueThreshold = opts.ValueThreshold
	}
	bopts.SyncWrites = opts.SyncWrites
	// Conflict detection is what turns concurrent writers of the same
	// statement or node value into ErrConflict at commit
	bopts.DetectConflicts = true

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger: %v", rdf.ErrStoreUnavailable, err)
	}

	return &BadgerStore{db: db}, nil
}

// Encoder returns the key encoder
func (s *BadgerStore) Encoder() KeyEncoder {
	return s.encoder
}

// View runs fn in a fresh read-only transaction
func (s *BadgerStore) View(fn func(txn *badger.Txn) error) error {
	return storeError("view", s.db.View(fn))
}

// Update runs fn in a fresh read-write transaction and commits it.
// Conflicts are returned as badger.ErrConflict so callers can retry.
func (s *BadgerStore) Update(fn func(txn *badger.Txn) error) error {
	err := s.db.Update(fn)
	if errors.Is(err, badger.ErrConflict) {
		return err
	}
	return storeError("update", err)
}

// NewTransaction starts a long-lived badger transaction
func (s *BadgerStore) NewTransaction(update bool) *badger.Txn {
	return s.db.NewTransaction(update)
}

// IsClosed reports whether Close has been called
func (s *BadgerStore) IsClosed() bool {
	return s.db.IsClosed()
}

// Close closes the store
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// storeError classifies badger failures. Closed handles surface as
// ErrStoreUnavailable; everything else is wrapped with the operation.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rdf.ErrStoreUnavailable) || errors.Is(err, rdf.ErrUnknownNodeID) {
		return err
	}
	if errors.Is(err, badger.ErrDBClosed) || errors.Is(err, badger.ErrBlockedWrites) {
		return fmt.Errorf("%w: %s: %v", rdf.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
