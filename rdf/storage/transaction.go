package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"

	"github.com/wbrown/janus-rdf/rdf"
	"github.com/wbrown/janus-rdf/rdf/annotations"
)

// TxState is the lifecycle state of a transaction
type TxState int32

const (
	TxIdle TxState = iota
	TxOpen
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxOpen:
		return "open"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// pendingNode is a node first seen by this transaction. Its provisional
// ID comes from the node sequence and is replaced at commit if another
// writer registered the same value first.
type pendingNode struct {
	node rdf.Node
	id   rdf.NodeID
}

// Transaction is a unit of work with snapshot isolation. It reads through
// a badger transaction opened at begin and buffers its changes until
// Commit. A transaction is used by one goroutine at a time.
//
// Invariants: removed and promoted only hold quads that are live in the
// snapshot; added only holds quads that are not.
type Transaction struct {
	id       string
	db       *Database
	conn     *Connection
	txn      *badger.Txn
	snapshot uint64
	started  time.Time

	mu       sync.Mutex
	state    TxState
	nodes    map[rdf.NodeKey]*pendingNode
	nodeIDs  map[rdf.NodeID]*pendingNode
	added    map[Quad]bool // value is the inferred flag
	removed  map[Quad]struct{}
	promoted map[Quad]struct{} // inferred snapshot rows added explicitly
}

// ID returns the transaction's unique id
func (t *Transaction) ID() string {
	return t.id
}

// Snapshot returns the store's visible version when the transaction began
func (t *Transaction) Snapshot() uint64 {
	return t.snapshot
}

// State returns the lifecycle state
func (t *Transaction) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transaction) checkOpen() error {
	if t.state != TxOpen {
		return fmt.Errorf("%w: transaction %s is %s", rdf.ErrTransactionClosed, t.id, t.state)
	}
	return nil
}

// AddStatement adds an explicit statement. Adding a statement that is
// already present is a no-op, except that an explicit add turns a
// present inferred statement explicit. Adding one removed earlier in
// this transaction cancels the removal.
func (t *Transaction) AddStatement(st rdf.Statement) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := st.Validate(); err != nil {
		return err
	}

	q, provisional, err := t.quadForWrite(st)
	if err != nil {
		return err
	}

	if inferred, ok := t.added[q]; ok {
		if inferred && !st.Inferred {
			t.added[q] = false
		}
		return nil
	}

	// Quads with a provisional ID cannot exist in the store yet
	if !provisional {
		row, found, err := t.db.statements.Get(t.txn, q)
		if err != nil {
			return storeError("add statement", err)
		}
		if found && row.Live() {
			delete(t.removed, q)
			if row.Inferred && !st.Inferred {
				t.promoted[q] = struct{}{}
			}
			return nil
		}
	}

	t.added[q] = st.Inferred
	return nil
}

// AddInferredStatement adds a statement flagged as inferred
func (t *Transaction) AddInferredStatement(st rdf.Statement) error {
	st.Inferred = true
	return t.AddStatement(st)
}

// RemoveStatements marks every statement matching the pattern as removed,
// including statements added earlier in this transaction. It returns the
// number of statements removed.
func (t *Transaction) RemoveStatements(p rdf.Pattern) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return 0, err
	}

	ip, ok, err := t.idPattern(p)
	if err != nil || !ok {
		return 0, err
	}

	n := 0
	_, err = t.db.statements.Scan(t.txn, ip, false, func(q Quad, _ Row) error {
		if _, gone := t.removed[q]; !gone {
			t.removed[q] = struct{}{}
			delete(t.promoted, q)
			n++
		}
		return nil
	})
	if err != nil {
		return 0, storeError("remove statements", err)
	}

	for q := range t.added {
		if ip.Matches(q) {
			delete(t.added, q)
			n++
		}
	}
	return n, nil
}

// HasStatement reports whether any statement matches the pattern,
// looking at pending additions first and then at the snapshot
func (t *Transaction) HasStatement(p rdf.Pattern, includeInferred bool) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return false, err
	}

	ip, ok, err := t.idPattern(p)
	if err != nil || !ok {
		return false, err
	}

	for q, inferred := range t.added {
		if ip.Matches(q) && (includeInferred || !inferred) {
			return true, nil
		}
	}

	found := false
	_, err = t.db.statements.Scan(t.txn, ip, false, func(q Quad, row Row) error {
		if _, gone := t.removed[q]; gone {
			return nil
		}
		if t.inferred(q, row) && !includeInferred {
			return nil
		}
		found = true
		return errStopScan
	})
	if err != nil {
		return false, storeError("has statement", err)
	}
	return found, nil
}

// Iterate calls fn for every statement matching the pattern: snapshot
// rows in index order, then pending additions in SPOC order. fn must not
// call back into the transaction.
func (t *Transaction) Iterate(p rdf.Pattern, includeInferred bool, fn func(rdf.Statement) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.iterate(p, includeInferred, fn)
}

func (t *Transaction) iterate(p rdf.Pattern, includeInferred bool, fn func(rdf.Statement) error) error {
	ip, ok, err := t.idPattern(p)
	if err != nil || !ok {
		return err
	}

	start := time.Now()
	count := 0
	index, err := t.db.statements.Scan(t.txn, ip, false, func(q Quad, row Row) error {
		if _, gone := t.removed[q]; gone {
			return nil
		}
		inferred := t.inferred(q, row)
		if inferred && !includeInferred {
			return nil
		}
		st, err := t.statement(q, inferred)
		if err != nil {
			return err
		}
		count++
		return fn(st)
	})
	if err != nil {
		return storeError("scan statements", err)
	}

	pending := make([]Quad, 0, len(t.added))
	for q, inferred := range t.added {
		if ip.Matches(q) && (includeInferred || !inferred) {
			pending = append(pending, q)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Less(pending[j]) })

	for _, q := range pending {
		st, err := t.statement(q, t.added[q])
		if err != nil {
			return err
		}
		count++
		if err := fn(st); err != nil {
			return err
		}
	}

	t.db.collector.AddTiming(annotations.StatementScan, start, map[string]interface{}{
		"tx":      t.id,
		"pattern": ip.String(),
		"index":   index.String(),
		"count":   count,
	})
	return nil
}

// ListStatements returns every statement matching the pattern
func (t *Transaction) ListStatements(p rdf.Pattern, includeInferred bool) ([]rdf.Statement, error) {
	var out []rdf.Statement
	err := t.Iterate(p, includeInferred, func(st rdf.Statement) error {
		out = append(out, st)
		return nil
	})
	return out, err
}

// ListFiltered returns matching statements whose subject the filter accepts
func (t *Transaction) ListFiltered(p rdf.Pattern, includeInferred bool, filter rdf.ResourceFilter) ([]rdf.Statement, error) {
	var out []rdf.Statement
	err := t.Iterate(p, includeInferred, func(st rdf.Statement) error {
		if filter == nil || filter.Accept(st.Subject) {
			out = append(out, st)
		}
		return nil
	})
	return out, err
}

// Size returns the number of statements visible to the transaction
func (t *Transaction) Size() (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return 0, err
	}

	n, err := t.db.statements.Count(t.txn)
	if err != nil {
		return 0, storeError("size", err)
	}
	return n - int64(len(t.removed)) + int64(len(t.added)), nil
}

// Resolve returns the ID of a node. Nodes unknown to the store get a
// provisional ID that only this transaction can see until commit.
func (t *Transaction) Resolve(node rdf.Node) (rdf.NodeID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	id, _, err := t.resolveForWrite(node)
	return id, err
}

// Get returns the node for an ID, including this transaction's own
// unpublished nodes
func (t *Transaction) Get(id rdf.NodeID) (rdf.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.node(id)
}

// Commit atomically registers new nodes, writes pending rows, publishes
// the nodes and advances the visible version. On failure the transaction
// is rolled back and a *rdf.CommitError is returned.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpen(); err != nil {
		return err
	}
	start := time.Now()

	remap, created, err := t.registerNodes()
	if err != nil {
		return t.fail(start, err)
	}

	var version uint64
	added, removed := 0, 0
	if len(t.added) > 0 || len(t.removed) > 0 || len(t.promoted) > 0 {
		version, err = t.db.versions.Next()
		if err != nil {
			return t.fail(start, err)
		}

		for q := range t.removed {
			ok, err := t.db.statements.Remove(t.txn, q, version)
			if err != nil {
				return t.fail(start, err)
			}
			if ok {
				removed++
			}
		}

		for q := range t.promoted {
			if _, err := t.db.statements.Promote(t.txn, q); err != nil {
				return t.fail(start, err)
			}
		}

		for q, inferred := range t.added {
			ok, err := t.db.statements.Add(t.txn, remap.apply(q), version, inferred)
			if err != nil {
				return t.fail(start, err)
			}
			if ok {
				added++
			}
		}
	}

	if err := t.txn.Commit(); err != nil {
		return t.fail(start, err)
	}

	for _, pn := range created {
		t.db.nodes.registered(pn.node, pn.id, start)
	}
	for _, pn := range t.nodes {
		t.db.nodes.publish(pn.node, remap.id(pn.id))
	}
	if version > 0 {
		t.db.advanceVisible(version)
	}

	t.db.metrics.commit(CommitResultCommitted, start)
	t.db.collector.AddTiming(annotations.TxCommit, start, map[string]interface{}{
		"tx":      t.id,
		"version": version,
		"added":   added,
		"removed": removed,
		"nodes":   len(t.nodes),
	})
	t.finish(TxCommitted)
	return nil
}

// Rollback discards all pending changes. Rolling back a finished
// transaction is a no-op.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TxOpen {
		return nil
	}

	t.txn.Discard()
	t.db.metrics.rollback()
	t.db.collector.AddTiming(annotations.TxRollback, t.started, map[string]interface{}{
		"tx":     t.id,
		"reason": "requested",
	})
	t.finish(TxRolledBack)
	return nil
}

// fail rolls back after a commit error and classifies the error
func (t *Transaction) fail(start time.Time, cause error) error {
	t.txn.Discard()

	var err error
	result := CommitResultFailed
	switch {
	case errors.Is(cause, badger.ErrConflict):
		err = fmt.Errorf("%w: %v", rdf.ErrCommitConflict, cause)
		result = CommitResultConflict
	case errors.Is(cause, badger.ErrTxnTooBig):
		err = fmt.Errorf("transaction too large: %w", cause)
	default:
		err = asUnavailable(cause)
	}

	t.db.metrics.commit(result, start)
	t.db.metrics.rollback()
	if result == CommitResultConflict {
		t.db.collector.AddTiming(annotations.TxConflict, start, map[string]interface{}{
			"tx":    t.id,
			"error": err.Error(),
		})
	} else {
		t.db.collector.AddTiming(annotations.ErrorBackend, start, map[string]interface{}{
			"op":    "commit",
			"error": err.Error(),
		})
	}
	t.finish(TxRolledBack)

	return &rdf.CommitError{TxID: t.id, Err: err}
}

// finish moves to a terminal state and detaches from the database
func (t *Transaction) finish(state TxState) {
	t.state = state
	t.nodes = nil
	t.nodeIDs = nil
	t.added = nil
	t.removed = nil
	t.promoted = nil
	t.db.release(t)
	if t.conn != nil {
		t.conn.release(t)
	}
}

// inferred reports the effective inferred flag of a snapshot row
func (t *Transaction) inferred(q Quad, row Row) bool {
	if !row.Inferred {
		return false
	}
	_, explicit := t.promoted[q]
	return !explicit
}

// nodeRemap maps provisional IDs to the IDs that won registration
type nodeRemap map[rdf.NodeID]rdf.NodeID

func (m nodeRemap) id(id rdf.NodeID) rdf.NodeID {
	if winner, ok := m[id]; ok {
		return winner
	}
	return id
}

func (m nodeRemap) apply(q Quad) Quad {
	if len(m) == 0 {
		return q
	}
	return Quad{S: m.id(q.S), P: m.id(q.P), O: m.id(q.O), C: m.id(q.C)}
}

// registerNodes maps every pending node to its final ID. Nodes another
// writer registered since this transaction began are adopted, looked up
// in parallel. The rest are claimed inside the session transaction and
// become durable only if the commit succeeds. created lists the claimed
// nodes.
func (t *Transaction) registerNodes() (nodeRemap, []*pendingNode, error) {
	remap := make(nodeRemap, len(t.nodes))
	if len(t.nodes) == 0 {
		return remap, nil, nil
	}

	var mu sync.Mutex
	var unclaimed []*pendingNode
	g := new(errgroup.Group)
	g.SetLimit(t.db.opts.RegistrationWorkers)

	for _, pn := range t.nodes {
		pn := pn
		g.Go(func() error {
			id, found, err := t.db.nodes.Lookup(pn.node)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if found {
				t.db.nodes.raceRecovered(pn.node, id, time.Now())
				remap[pn.id] = id
			} else {
				unclaimed = append(unclaimed, pn)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// badger transactions are not safe for concurrent writes
	var created []*pendingNode
	for _, pn := range unclaimed {
		id, isNew, err := t.db.nodes.claim(t.txn, pn.node, pn.id)
		if err != nil {
			return nil, nil, storeError("register node", err)
		}
		remap[pn.id] = id
		if isNew {
			created = append(created, pn)
		}
	}
	return remap, created, nil
}

// resolveForWrite returns the ID of node, allocating a provisional one
// for values the store has never seen
func (t *Transaction) resolveForWrite(node rdf.Node) (rdf.NodeID, bool, error) {
	if err := rdf.ValidateNode(node); err != nil {
		return 0, false, err
	}
	if pn, ok := t.nodes[node.Key()]; ok {
		return pn.id, true, nil
	}

	id, found, err := t.db.nodes.Lookup(node)
	if err != nil {
		return 0, false, err
	}
	if found {
		return id, false, nil
	}

	next, err := t.db.nodeIDs.Next()
	if err != nil {
		return 0, false, err
	}
	pn := &pendingNode{node: node, id: rdf.NodeID(next)}
	t.nodes[node.Key()] = pn
	t.nodeIDs[pn.id] = pn
	return pn.id, true, nil
}

// resolveForRead returns the ID of a known node. A node nobody has
// registered cannot occur in any statement.
func (t *Transaction) resolveForRead(node rdf.Node) (rdf.NodeID, bool, error) {
	if pn, ok := t.nodes[node.Key()]; ok {
		return pn.id, true, nil
	}
	return t.db.nodes.Lookup(node)
}

// quadForWrite encodes a statement, reporting whether any position holds
// a provisional ID
func (t *Transaction) quadForWrite(st rdf.Statement) (Quad, bool, error) {
	var q Quad
	provisional := false
	for pos, n := range []rdf.Node{st.Subject, st.Predicate, st.Object, st.Context} {
		if n == nil {
			continue // Default graph
		}
		id, isNew, err := t.resolveForWrite(n)
		if err != nil {
			return Quad{}, false, err
		}
		q.set(pos, id)
		provisional = provisional || isNew
	}
	return q, provisional, nil
}

// idPattern encodes a pattern. ok is false when a bound node is unknown,
// in which case nothing can match.
func (t *Transaction) idPattern(p rdf.Pattern) (IDPattern, bool, error) {
	var ip IDPattern
	for pos, n := range []rdf.Node{p.Subject, p.Predicate, p.Object, p.Context} {
		if n == nil {
			continue
		}
		id, found, err := t.resolveForRead(n)
		if err != nil || !found {
			return IDPattern{}, false, err
		}
		ip.set(pos, id)
		ip.Bound |= 1 << uint(pos)
	}
	if p.Context == nil && p.DefaultGraph {
		ip.C = rdf.DefaultGraphID
		ip.Bound |= BoundC
	}
	return ip, true, nil
}

// node decodes an ID, checking this transaction's own nodes first
func (t *Transaction) node(id rdf.NodeID) (rdf.Node, error) {
	if pn, ok := t.nodeIDs[id]; ok {
		return pn.node, nil
	}
	return t.db.nodes.Get(id)
}

// statement decodes a quad into a statement
func (t *Transaction) statement(q Quad, inferred bool) (rdf.Statement, error) {
	var st rdf.Statement
	targets := []*rdf.Node{&st.Subject, &st.Predicate, &st.Object, &st.Context}
	for pos, target := range targets {
		id := q.at(pos)
		if pos == 3 && id == rdf.DefaultGraphID {
			continue
		}
		n, err := t.node(id)
		if err != nil {
			return rdf.Statement{}, fmt.Errorf("decode %v: %w", q, err)
		}
		*target = n
	}
	st.Inferred = inferred
	return st, nil
}
