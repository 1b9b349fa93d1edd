package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// errStopScan ends a scan early without reporting an error
var errStopScan = errors.New("stop scan")

// StatementStore reads and writes statement rows inside a caller-owned
// badger transaction. Every row is written to all four permutation
// indices with the same value.
type StatementStore struct {
	enc KeyEncoder
}

// NewStatementStore creates a statement store over the store's key space
func NewStatementStore(store *BadgerStore) *StatementStore {
	return &StatementStore{enc: store.Encoder()}
}

// ChooseIndex picks the index whose key order starts with the most bound
// positions of the pattern. Ties go to the earlier index in AllIndexes.
func ChooseIndex(p IDPattern) IndexType {
	best, bestLen := SPOC, -1
	for _, index := range AllIndexes {
		n := 0
		for _, pos := range index.order() {
			if !p.bound(pos) {
				break
			}
			n++
		}
		if n > bestLen {
			best, bestLen = index, n
		}
	}
	return best
}

// Get returns the row of a quad, live or deleted
func (s *StatementStore) Get(txn *badger.Txn, q Quad) (Row, bool, error) {
	item, err := txn.Get(s.enc.EncodeKey(SPOC, q))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, err
	}

	var row Row
	err = item.Value(func(val []byte) error {
		row, err = RowFromBytes(val)
		return err
	})
	return row, err == nil, err
}

// IsLive reports whether the quad has a live row
func (s *StatementStore) IsLive(txn *badger.Txn, q Quad) (bool, error) {
	row, found, err := s.Get(txn, q)
	return found && row.Live(), err
}

// put writes a row to all indices
func (s *StatementStore) put(txn *badger.Txn, q Quad, row Row) error {
	value := row.Bytes()
	for _, index := range AllIndexes {
		if err := txn.Set(s.enc.EncodeKey(index, q), value); err != nil {
			return fmt.Errorf("failed to write to %v index: %w", index, err)
		}
	}
	return nil
}

// Add writes a live row created at version. The SPOC key is read first,
// so two transactions adding the same statement conflict at commit.
// Returns false if the statement was already live.
func (s *StatementStore) Add(txn *badger.Txn, q Quad, version uint64, inferred bool) (bool, error) {
	live, err := s.IsLive(txn, q)
	if err != nil || live {
		return false, err
	}
	return true, s.put(txn, q, Row{Created: version, Inferred: inferred})
}

// Promote clears the inferred flag of a live row, keeping its created
// version. Returns false if there was no live inferred row.
func (s *StatementStore) Promote(txn *badger.Txn, q Quad) (bool, error) {
	row, found, err := s.Get(txn, q)
	if err != nil || !found || !row.Live() || !row.Inferred {
		return false, err
	}
	row.Inferred = false
	return true, s.put(txn, q, row)
}

// Remove marks a live row deleted at version. The row stays behind as a
// tombstone until Purge. Returns false if there was no live row.
func (s *StatementStore) Remove(txn *badger.Txn, q Quad, version uint64) (bool, error) {
	row, found, err := s.Get(txn, q)
	if err != nil || !found || !row.Live() {
		return false, err
	}
	row.Deleted = version
	return true, s.put(txn, q, row)
}

// Scan calls fn for every row matching the pattern, using the index with
// the longest bound prefix. Deleted rows are skipped unless
// includeDeleted is set. Returning errStopScan from fn ends the scan.
func (s *StatementStore) Scan(txn *badger.Txn, p IDPattern, includeDeleted bool, fn func(Quad, Row) error) (IndexType, error) {
	index := ChooseIndex(p)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = s.enc.EncodePrefix(index, p)
	opts.PrefetchValues = true // Rows are needed to check liveness
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		_, q, err := s.enc.DecodeKey(item.Key())
		if err != nil {
			return index, err
		}
		if !p.Matches(q) {
			continue
		}

		var row Row
		err = item.Value(func(val []byte) error {
			row, err = RowFromBytes(val)
			return err
		})
		if err != nil {
			return index, fmt.Errorf("row %v: %w", q, err)
		}
		if !row.Live() && !includeDeleted {
			continue
		}

		if err := fn(q, row); err != nil {
			if errors.Is(err, errStopScan) {
				return index, nil
			}
			return index, err
		}
	}
	return index, nil
}

// Count returns the number of live rows
func (s *StatementStore) Count(txn *badger.Txn) (int64, error) {
	var n int64
	_, err := s.Scan(txn, IDPattern{}, false, func(Quad, Row) error {
		n++
		return nil
	})
	return n, err
}

// Purge deletes up to limit tombstones from every index and reports how
// many were removed
func (s *StatementStore) Purge(txn *badger.Txn, limit int) (int, error) {
	var dead []Quad
	_, err := s.Scan(txn, IDPattern{}, true, func(q Quad, row Row) error {
		if row.Live() {
			return nil
		}
		dead = append(dead, q)
		if len(dead) >= limit {
			return errStopScan
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, q := range dead {
		for _, index := range AllIndexes {
			if err := txn.Delete(s.enc.EncodeKey(index, q)); err != nil {
				return 0, fmt.Errorf("failed to delete from %v index: %w", index, err)
			}
		}
	}
	return len(dead), nil
}
