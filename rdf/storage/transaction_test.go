package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/wbrown/janus-rdf/rdf"
)

// render turns statements into comparable strings
func render(sts []rdf.Statement) []string {
	out := make([]string, len(sts))
	for i, st := range sts {
		out[i] = st.String()
		if st.Inferred {
			out[i] += " # inferred"
		}
	}
	return out
}

func mustBegin(t *testing.T, db *Database) *Transaction {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

func mustList(t *testing.T, tx *Transaction, p rdf.Pattern, includeInferred bool) []string {
	t.Helper()
	sts, err := tx.ListStatements(p, includeInferred)
	require.NoError(t, err)
	return render(sts)
}

func commitStatements(t *testing.T, db *Database, sts ...rdf.Statement) {
	t.Helper()
	tx := mustBegin(t, db)
	for _, st := range sts {
		require.NoError(t, tx.AddStatement(st))
	}
	require.NoError(t, tx.Commit())
}

func TestAddStatementVisibility(t *testing.T) {
	db := newTestDatabase(t)
	st := rdf.NewStatement(iri("alice"), iri("knows"), iri("bob"))

	tx1 := mustBegin(t, db)
	require.NoError(t, tx1.AddStatement(st))

	has, err := tx1.HasStatement(rdf.PatternOf(st), false)
	require.NoError(t, err)
	assert.True(t, has, "own pending add is visible")

	tx2 := mustBegin(t, db)
	has, err = tx2.HasStatement(rdf.PatternOf(st), false)
	require.NoError(t, err)
	assert.False(t, has, "uncommitted add is invisible to others")

	require.NoError(t, tx1.Commit())

	has, err = tx2.HasStatement(rdf.PatternOf(st), false)
	require.NoError(t, err)
	assert.False(t, has, "commit after begin stays invisible")

	tx3 := mustBegin(t, db)
	has, err = tx3.HasStatement(rdf.PatternOf(st), false)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSnapshotIgnoresLaterRemovals(t *testing.T) {
	db := newTestDatabase(t)
	st := rdf.NewStatement(iri("a"), iri("p"), rdf.NewLiteral("v"))
	commitStatements(t, db, st)

	reader := mustBegin(t, db)

	writer := mustBegin(t, db)
	n, err := writer.RemoveStatements(rdf.PatternOf(st))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, writer.Commit())

	assert.Equal(t, []string{st.String()}, mustList(t, reader, rdf.Any, false))

	after := mustBegin(t, db)
	assert.Empty(t, mustList(t, after, rdf.Any, false))
}

func TestAddIsIdempotent(t *testing.T) {
	db := newTestDatabase(t)
	st := rdf.NewStatement(iri("a"), iri("p"), iri("b"))
	commitStatements(t, db, st)

	tx := mustBegin(t, db)
	require.NoError(t, tx.AddStatement(st))
	require.NoError(t, tx.AddStatement(st))

	size, err := tx.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
	require.NoError(t, tx.Commit())

	size, err = db.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestRemoveThenAddCancels(t *testing.T) {
	db := newTestDatabase(t)
	st := rdf.NewStatement(iri("a"), iri("p"), iri("b"))
	commitStatements(t, db, st)

	tx := mustBegin(t, db)
	n, err := tx.RemoveStatements(rdf.PatternOf(st))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	has, err := tx.HasStatement(rdf.PatternOf(st), false)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, tx.AddStatement(st))
	has, err = tx.HasStatement(rdf.PatternOf(st), false)
	require.NoError(t, err)
	assert.True(t, has)
	require.NoError(t, tx.Commit())

	after := mustBegin(t, db)
	assert.Equal(t, []string{st.String()}, mustList(t, after, rdf.Any, false))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Tombstones, "a cancelled removal writes nothing")
}

func TestReAddAfterCommittedRemoval(t *testing.T) {
	db := newTestDatabase(t)
	st := rdf.NewStatement(iri("a"), iri("p"), rdf.NewLiteral("x"))
	commitStatements(t, db, st)

	tx := mustBegin(t, db)
	_, err := tx.RemoveStatements(rdf.PatternOf(st))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	between := mustBegin(t, db)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Tombstones)

	commitStatements(t, db, st)

	assert.Empty(t, mustList(t, between, rdf.Any, true), "snapshot predates the re-add")

	after := mustBegin(t, db)
	assert.Equal(t, []string{st.String()}, mustList(t, after, rdf.Any, true))

	stats, err = db.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Tombstones, "re-adding replaces the tombstone")
	assert.Equal(t, int64(1), stats.Statements)
}

func TestAddRemoveAddResolvesToPresent(t *testing.T) {
	db := newTestDatabase(t)
	st := rdf.NewStatement(iri("a"), iri("p"), iri("b"))

	tx := mustBegin(t, db)
	require.NoError(t, tx.AddStatement(st))

	n, err := tx.RemoveStatements(rdf.PatternOf(st))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "pending adds are removable")

	size, err := tx.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, tx.AddStatement(st))
	require.NoError(t, tx.Commit())

	size, err = db.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestRemoveStatementsByPattern(t *testing.T) {
	db := newTestDatabase(t)
	commitStatements(t, db,
		rdf.NewStatement(iri("a"), iri("p"), iri("x")),
		rdf.NewStatement(iri("a"), iri("q"), iri("y")),
		rdf.NewStatement(iri("b"), iri("p"), iri("z")),
	)

	tx := mustBegin(t, db)
	require.NoError(t, tx.AddStatement(rdf.NewStatement(iri("c"), iri("p"), iri("w"))))

	n, err := tx.RemoveStatements(rdf.Pattern{Predicate: iri("p")})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Already removed statements are not counted twice
	n, err = tx.RemoveStatements(rdf.Pattern{Predicate: iri("p")})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = tx.RemoveStatements(rdf.Pattern{Subject: iri("never-seen")})
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, tx.Commit())

	after := mustBegin(t, db)
	want := []string{rdf.NewStatement(iri("a"), iri("q"), iri("y")).String()}
	if diff := cmp.Diff(want, mustList(t, after, rdf.Any, false)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestListStatementsOrder(t *testing.T) {
	db := newTestDatabase(t)
	committed := rdf.NewStatement(iri("z"), iri("p"), iri("o"))
	commitStatements(t, db, committed)

	tx := mustBegin(t, db)
	pendingB := rdf.NewStatement(iri("b"), iri("p"), iri("o"))
	pendingA := rdf.NewStatement(iri("a"), iri("p"), iri("o"))
	require.NoError(t, tx.AddStatement(pendingB))
	require.NoError(t, tx.AddStatement(pendingA))

	// Committed rows first, then pending rows in ID order
	want := []string{committed.String(), pendingB.String(), pendingA.String()}
	if diff := cmp.Diff(want, mustList(t, tx, rdf.Any, false)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestContexts(t *testing.T) {
	db := newTestDatabase(t)
	g1, g2 := iri("graph/1"), iri("graph/2")

	def := rdf.NewStatement(iri("a"), iri("p"), iri("b"))
	in1 := rdf.NewQuad(iri("a"), iri("p"), iri("b"), g1)
	in2 := rdf.NewQuad(iri("a"), iri("p"), iri("c"), g2)
	commitStatements(t, db, def, in1, in2)

	tx := mustBegin(t, db)

	assert.Len(t, mustList(t, tx, rdf.Pattern{Subject: iri("a")}, false), 3, "unbound context spans all graphs")
	assert.Equal(t, []string{in1.String()}, mustList(t, tx, rdf.Pattern{Context: g1}, false))
	assert.Equal(t, []string{def.String()}, mustList(t, tx, rdf.Pattern{DefaultGraph: true}, false))

	sts, err := tx.ListStatements(rdf.PatternOf(def), false)
	require.NoError(t, err)
	require.Len(t, sts, 1)
	assert.Nil(t, sts[0].Context)
}

func TestInferredStatements(t *testing.T) {
	db := newTestDatabase(t)
	explicit := rdf.NewStatement(iri("a"), iri("type"), iri("Dog"))
	inferred := rdf.NewStatement(iri("a"), iri("type"), iri("Animal"))

	tx := mustBegin(t, db)
	require.NoError(t, tx.AddStatement(explicit))
	require.NoError(t, tx.AddInferredStatement(inferred))

	assert.Len(t, mustList(t, tx, rdf.Any, false), 1, "pending inferred rows are filtered")
	require.NoError(t, tx.Commit())

	after := mustBegin(t, db)
	assert.Equal(t, []string{explicit.String()}, mustList(t, after, rdf.Any, false))

	inferred.Inferred = true
	all := mustList(t, after, rdf.Any, true)
	assert.ElementsMatch(t, []string{explicit.String(), render([]rdf.Statement{inferred})[0]}, all)

	has, err := after.HasStatement(rdf.Pattern{Object: iri("Animal")}, false)
	require.NoError(t, err)
	assert.False(t, has)
	has, err = after.HasStatement(rdf.Pattern{Object: iri("Animal")}, true)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestExplicitAddPromotesInferred(t *testing.T) {
	db := newTestDatabase(t)
	committed := rdf.NewStatement(iri("a"), iri("type"), iri("Animal"))
	pending := rdf.NewStatement(iri("a"), iri("type"), iri("Thing"))

	tx := mustBegin(t, db)
	require.NoError(t, tx.AddInferredStatement(committed))
	require.NoError(t, tx.Commit())

	tx = mustBegin(t, db)
	require.NoError(t, tx.AddInferredStatement(pending))
	require.NoError(t, tx.AddStatement(pending))
	require.NoError(t, tx.AddStatement(committed))

	assert.ElementsMatch(t, []string{committed.String(), pending.String()},
		mustList(t, tx, rdf.Any, false), "both are explicit before commit")

	// An inferred add never demotes an explicit statement
	require.NoError(t, tx.AddInferredStatement(committed))
	require.NoError(t, tx.Commit())

	after := mustBegin(t, db)
	assert.ElementsMatch(t, []string{committed.String(), pending.String()}, mustList(t, after, rdf.Any, true))
	has, err := after.HasStatement(rdf.PatternOf(committed), false)
	require.NoError(t, err)
	assert.True(t, has)

	size, err := db.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
}

func TestListFiltered(t *testing.T) {
	db := newTestDatabase(t)
	commitStatements(t, db,
		rdf.NewStatement(rdf.MustIRI("http://one.example/a"), iri("p"), iri("x")),
		rdf.NewStatement(rdf.MustIRI("http://two.example/b"), iri("p"), iri("x")),
		rdf.NewStatement(rdf.FreshBlankNode(), iri("p"), iri("x")),
	)

	tx := mustBegin(t, db)
	sts, err := tx.ListFiltered(rdf.Any, false, rdf.NewPrefixFilter("http://one.example/"))
	require.NoError(t, err)
	require.Len(t, sts, 1)
	assert.Equal(t, "http://one.example/a", sts[0].Subject.Lexical())

	sts, err = tx.ListFiltered(rdf.Any, false, nil)
	require.NoError(t, err)
	assert.Len(t, sts, 3)
}

func TestIterateStopsOnError(t *testing.T) {
	db := newTestDatabase(t)
	commitStatements(t, db,
		rdf.NewStatement(iri("a"), iri("p"), iri("x")),
		rdf.NewStatement(iri("b"), iri("p"), iri("x")),
	)

	tx := mustBegin(t, db)
	stop := errors.New("stop")
	calls := 0
	err := tx.Iterate(rdf.Any, false, func(rdf.Statement) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestMalformedStatement(t *testing.T) {
	db := newTestDatabase(t)
	tx := mustBegin(t, db)

	err := tx.AddStatement(rdf.NewStatement(rdf.NewLiteral("x"), iri("p"), iri("o")))
	assert.ErrorIs(t, err, rdf.ErrMalformedNode)

	err = tx.AddStatement(rdf.NewStatement(iri("s"), rdf.FreshBlankNode(), iri("o")))
	assert.ErrorIs(t, err, rdf.ErrMalformedNode)
}

func TestZeroValueNodesRejected(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.Resolve(rdf.IRI{})
	assert.ErrorIs(t, err, rdf.ErrMalformedNode)

	tx := mustBegin(t, db)
	_, err = tx.Resolve(rdf.BlankNode{})
	assert.ErrorIs(t, err, rdf.ErrMalformedNode)
	assert.ErrorIs(t, tx.AddStatement(rdf.NewStatement(iri("a"), rdf.IRI{}, iri("b"))), rdf.ErrMalformedNode)

	// A zero literal is stored as the empty xsd:string
	require.NoError(t, tx.AddStatement(rdf.NewStatement(iri("a"), iri("p"), rdf.Literal{})))
	has, err := tx.HasStatement(rdf.Pattern{Object: rdf.NewLiteral("")}, false)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestTransactionLifecycle(t *testing.T) {
	db := newTestDatabase(t)
	st := rdf.NewStatement(iri("a"), iri("p"), iri("b"))

	tx, err := db.Begin()
	require.NoError(t, err)
	assert.Equal(t, TxOpen, tx.State())
	require.NoError(t, tx.AddStatement(st))
	require.NoError(t, tx.Rollback())
	assert.Equal(t, TxRolledBack, tx.State())
	require.NoError(t, tx.Rollback(), "rollback is idempotent")

	assert.ErrorIs(t, tx.AddStatement(st), rdf.ErrTransactionClosed)
	_, err = tx.ListStatements(rdf.Any, false)
	assert.ErrorIs(t, err, rdf.ErrTransactionClosed)
	assert.ErrorIs(t, tx.Commit(), rdf.ErrTransactionClosed)

	size, err := db.Size()
	require.NoError(t, err)
	assert.Zero(t, size, "rolled back changes are discarded")

	tx, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, TxCommitted, tx.State())
	assert.ErrorIs(t, tx.Commit(), rdf.ErrTransactionClosed)
}

func TestCommitAdvancesVersion(t *testing.T) {
	db := newTestDatabase(t)
	before := db.VisibleVersion()

	commitStatements(t, db, rdf.NewStatement(iri("a"), iri("p"), iri("b")))
	first := db.VisibleVersion()
	assert.Greater(t, first, before)

	tx := mustBegin(t, db)
	assert.Equal(t, first, tx.Snapshot())

	// A commit without statement changes takes no version
	require.NoError(t, tx.Commit())
	assert.Equal(t, first, db.VisibleVersion())

	commitStatements(t, db, rdf.NewStatement(iri("a"), iri("p"), iri("c")))
	assert.Greater(t, db.VisibleVersion(), first)
}

func TestCommitConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	db := newTestDatabase(t, func(o *Options) { o.Registerer = reg })
	st := rdf.NewStatement(iri("a"), iri("p"), iri("b"))

	tx1 := mustBegin(t, db)
	tx2 := mustBegin(t, db)
	require.NoError(t, tx1.AddStatement(st))
	require.NoError(t, tx2.AddStatement(st))

	require.NoError(t, tx1.Commit())
	err := tx2.Commit()
	require.Error(t, err)

	var commitErr *rdf.CommitError
	require.True(t, errors.As(err, &commitErr))
	assert.Equal(t, tx2.ID(), commitErr.TxID)
	assert.ErrorIs(t, err, rdf.ErrCommitConflict)
	assert.True(t, commitErr.Retryable())
	assert.True(t, rdf.IsRetryable(err))
	assert.Equal(t, TxRolledBack, tx2.State(), "a failed commit rolls back")

	assert.Equal(t, 1.0, testutil.ToFloat64(db.metrics.Commits.WithLabelValues(CommitResultCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(db.metrics.Commits.WithLabelValues(CommitResultConflict)))

	// The retry in a fresh transaction sees tx1's write and succeeds
	retry := mustBegin(t, db)
	require.NoError(t, retry.AddStatement(st))
	require.NoError(t, retry.Commit())

	size, err := db.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestFailedCommitLeavesNoTrace(t *testing.T) {
	db := newTestDatabase(t)
	st := rdf.NewStatement(iri("a"), iri("p"), iri("b"))
	orphan := rdf.NewStatement(iri("a"), iri("p"), iri("orphan"))

	tx1 := mustBegin(t, db)
	tx2 := mustBegin(t, db)
	require.NoError(t, tx1.AddStatement(st))
	require.NoError(t, tx2.AddStatement(st))
	require.NoError(t, tx2.AddStatement(orphan))
	orphanID, err := tx2.Resolve(iri("orphan"))
	require.NoError(t, err)

	require.NoError(t, tx1.Commit())
	require.ErrorIs(t, tx2.Commit(), rdf.ErrCommitConflict)

	_, found, err := db.Nodes().Lookup(iri("orphan"))
	require.NoError(t, err)
	assert.False(t, found, "nodes of a failed commit are not registered")

	_, err = db.Get(orphanID)
	assert.ErrorIs(t, err, rdf.ErrUnknownNodeID)

	after := mustBegin(t, db)
	assert.Equal(t, []string{st.String()}, mustList(t, after, rdf.Any, true))

	var ids []rdf.NodeID
	require.NoError(t, db.ForEachNode(func(id rdf.NodeID, node rdf.Node, _ time.Time) error {
		ids = append(ids, id)
		return nil
	}))
	assert.Len(t, ids, 3, "only the nodes of the winning commit exist")
	assert.NotContains(t, ids, orphanID)

	// The rolled back value can be registered afresh
	commitStatements(t, db, orphan)
	id, found, err := db.Nodes().Lookup(iri("orphan"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotEqual(t, orphanID, id, "IDs are never reissued")
}

func TestConcurrentRemoveConflict(t *testing.T) {
	db := newTestDatabase(t)
	st := rdf.NewStatement(iri("a"), iri("p"), iri("b"))
	commitStatements(t, db, st)

	tx1 := mustBegin(t, db)
	tx2 := mustBegin(t, db)
	_, err := tx1.RemoveStatements(rdf.PatternOf(st))
	require.NoError(t, err)
	_, err = tx2.RemoveStatements(rdf.PatternOf(st))
	require.NoError(t, err)

	require.NoError(t, tx1.Commit())
	assert.ErrorIs(t, tx2.Commit(), rdf.ErrCommitConflict)
}

func TestDisjointWritersShareNewNodes(t *testing.T) {
	db := newTestDatabase(t)

	// Both transactions introduce the same predicate before either commits
	tx1 := mustBegin(t, db)
	tx2 := mustBegin(t, db)
	require.NoError(t, tx1.AddStatement(rdf.NewStatement(iri("a"), iri("shared"), iri("x"))))
	require.NoError(t, tx2.AddStatement(rdf.NewStatement(iri("b"), iri("shared"), iri("y"))))

	p1, err := tx1.Resolve(iri("shared"))
	require.NoError(t, err)
	p2, err := tx2.Resolve(iri("shared"))
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2, "provisional IDs are private")

	require.NoError(t, tx1.Commit())
	require.NoError(t, tx2.Commit())

	after := mustBegin(t, db)
	sts, err := after.ListStatements(rdf.Pattern{Predicate: iri("shared")}, false)
	require.NoError(t, err)
	assert.Len(t, sts, 2, "the second writer was remapped to the winning ID")

	final, err := db.Resolve(iri("shared"))
	require.NoError(t, err)
	assert.Equal(t, p1, final)
}

func TestConcurrentWriters(t *testing.T) {
	db := newTestDatabase(t)

	const writers = 8
	const perWriter = 20

	var g errgroup.Group
	for w := 0; w < writers; w++ {
		w := w
		g.Go(func() error {
			for attempt := 0; ; attempt++ {
				tx, err := db.Begin()
				if err != nil {
					return err
				}
				for i := 0; i < perWriter; i++ {
					st := rdf.NewStatement(iri(fmt.Sprintf("w%d/s%d", w, i)), iri("p"), iri("o"))
					if err := tx.AddStatement(st); err != nil {
						tx.Rollback()
						return err
					}
				}
				err = tx.Commit()
				if err == nil {
					return nil
				}
				if !rdf.IsRetryable(err) || attempt > 10 {
					return err
				}
			}
		})
	}
	require.NoError(t, g.Wait())

	size, err := db.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(writers*perWriter), size)

	id, err := db.Resolve(iri("p"))
	require.NoError(t, err)
	tx := mustBegin(t, db)
	pid, err := tx.Resolve(iri("p"))
	require.NoError(t, err)
	assert.Equal(t, id, pid)
}

func TestTransactionResolve(t *testing.T) {
	db := newTestDatabase(t)

	tx := mustBegin(t, db)
	id, err := tx.Resolve(iri("fresh"))
	require.NoError(t, err)

	node, err := tx.Get(id)
	require.NoError(t, err)
	assert.True(t, rdf.Equal(iri("fresh"), node))

	again, err := tx.Resolve(iri("fresh"))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = db.Get(id)
	assert.ErrorIs(t, err, rdf.ErrUnknownNodeID, "provisional nodes are private until commit")

	_, found, err := db.Nodes().Lookup(iri("fresh"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, tx.Commit())

	node, err = db.Get(id)
	require.NoError(t, err)
	assert.True(t, rdf.Equal(iri("fresh"), node))
}

func TestRollbackDiscardsNodes(t *testing.T) {
	db := newTestDatabase(t)

	tx := mustBegin(t, db)
	_, err := tx.Resolve(iri("ephemeral"))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	_, found, err := db.Nodes().Lookup(iri("ephemeral"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNamespaces(t *testing.T) {
	db := newTestDatabase(t)

	tx := mustBegin(t, db)
	require.NoError(t, tx.SetNamespace("foaf", FOAFNamespace))
	require.NoError(t, tx.SetNamespace("ex", ExampleBase))
	assert.Error(t, tx.SetNamespace("bad", "no scheme"))

	ns, ok, err := tx.GetNamespace("foaf")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, FOAFNamespace, ns)

	other := mustBegin(t, db)
	_, ok, err = other.GetNamespace("foaf")
	require.NoError(t, err)
	assert.False(t, ok, "bindings commit with the transaction")

	require.NoError(t, tx.Commit())

	tx = mustBegin(t, db)
	all, err := tx.Namespaces()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"foaf": FOAFNamespace, "ex": ExampleBase}, all)

	term, err := rdf.ParseTerm("foaf:name", tx.Resolver())
	require.NoError(t, err)
	assert.Equal(t, FOAFNamespace+"name", term.Lexical())

	require.NoError(t, tx.RemoveNamespace("ex"))
	_, ok, err = tx.GetNamespace("ex")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tx.Commit())

	tx = mustBegin(t, db)
	all, err = tx.Namespaces()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"foaf": FOAFNamespace}, all)
}

func TestConnection(t *testing.T) {
	db := newTestDatabase(t)
	conn := db.Connect()
	assert.Equal(t, TxIdle, conn.State())

	tx, err := conn.Begin()
	require.NoError(t, err)
	assert.Equal(t, TxOpen, conn.State())
	assert.Same(t, tx, conn.Transaction())

	_, err = conn.Begin()
	assert.ErrorIs(t, err, ErrTransactionActive)

	require.NoError(t, tx.Commit())
	assert.Equal(t, TxIdle, conn.State())
	assert.Nil(t, conn.Transaction())

	tx, err = conn.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.AddStatement(rdf.NewStatement(iri("a"), iri("p"), iri("b"))))

	require.NoError(t, conn.Close())
	assert.Equal(t, TxRolledBack, tx.State())

	_, err = conn.Begin()
	assert.Error(t, err)
}

func TestTxStateString(t *testing.T) {
	assert.Equal(t, "idle", TxIdle.String())
	assert.Equal(t, "open", TxOpen.String())
	assert.Equal(t, "committed", TxCommitted.String())
	assert.Equal(t, "rolled-back", TxRolledBack.String())
	assert.Equal(t, "state(9)", TxState(9).String())
}
