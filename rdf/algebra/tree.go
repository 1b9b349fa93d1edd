package algebra

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeRef addresses a node in a Tree's arena
type NodeRef int32

// NilRef is the absent node
const NilRef NodeRef = -1

// NoLimit marks a Slice without a LIMIT
const NoLimit int64 = -1

// node is one arena slot
type node struct {
	kind     Kind
	args     []string // Pattern terms, projected variables, expressions
	offset   int64    // Slice only
	limit    int64    // Slice only
	parent   NodeRef
	children []NodeRef
}

// Tree is an algebra tree stored in an arena. Nodes are never freed; a
// rewrite only changes parent and child links. A Tree must not be shared
// between goroutines during a rewrite.
type Tree struct {
	nodes []node
	root  NodeRef
}

// NewTree creates an empty tree
func NewTree() *Tree {
	return &Tree{root: NilRef}
}

// Root returns the root node, NilRef for an empty tree
func (t *Tree) Root() NodeRef {
	return t.root
}

// SetRoot makes ref the root. ref must not have a parent.
func (t *Tree) SetRoot(ref NodeRef) {
	t.root = ref
	if ref != NilRef {
		t.nodes[ref].parent = NilRef
	}
}

// Len returns the number of arena slots, reachable or not
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Add appends a node and adopts children. The last node added becomes
// the root unless SetRoot says otherwise.
func (t *Tree) Add(kind Kind, args []string, children ...NodeRef) NodeRef {
	if want := kind.arity(); len(children) != want {
		panic(fmt.Sprintf("algebra: %v takes %d children, got %d", kind, want, len(children)))
	}

	ref := NodeRef(len(t.nodes))
	t.nodes = append(t.nodes, node{
		kind:     kind,
		args:     args,
		limit:    NoLimit,
		parent:   NilRef,
		children: append([]NodeRef(nil), children...),
	})
	for _, c := range children {
		if t.nodes[c].parent != NilRef {
			panic(fmt.Sprintf("algebra: node %d already has a parent", c))
		}
		t.nodes[c].parent = ref
	}
	t.root = ref
	return ref
}

// Pattern adds a statement pattern leaf
func (t *Tree) Pattern(s, p, o string) NodeRef {
	return t.Add(KindStatementPattern, []string{s, p, o})
}

// Join adds an inner join
func (t *Tree) Join(left, right NodeRef) NodeRef {
	return t.Add(KindJoin, nil, left, right)
}

// LeftJoin adds an optional join
func (t *Tree) LeftJoin(left, right NodeRef) NodeRef {
	return t.Add(KindLeftJoin, nil, left, right)
}

// Union adds a union
func (t *Tree) Union(left, right NodeRef) NodeRef {
	return t.Add(KindUnion, nil, left, right)
}

// Filter adds a filter with a condition expression
func (t *Tree) Filter(condition string, child NodeRef) NodeRef {
	return t.Add(KindFilter, []string{condition}, child)
}

// Order adds an ORDER BY over keys
func (t *Tree) Order(child NodeRef, keys ...string) NodeRef {
	return t.Add(KindOrder, keys, child)
}

// Group adds a GROUP BY over keys
func (t *Tree) Group(child NodeRef, keys ...string) NodeRef {
	return t.Add(KindGroup, keys, child)
}

// Slice adds LIMIT/OFFSET. Use NoLimit for an offset-only slice.
func (t *Tree) Slice(child NodeRef, offset, limit int64) NodeRef {
	ref := t.Add(KindSlice, nil, child)
	t.nodes[ref].offset = offset
	t.nodes[ref].limit = limit
	return ref
}

// Distinct adds duplicate elimination
func (t *Tree) Distinct(child NodeRef) NodeRef {
	return t.Add(KindDistinct, nil, child)
}

// Reduced adds permitted duplicate elimination
func (t *Tree) Reduced(child NodeRef) NodeRef {
	return t.Add(KindReduced, nil, child)
}

// Projection adds a projection onto vars
func (t *Tree) Projection(child NodeRef, vars ...string) NodeRef {
	return t.Add(KindProjection, vars, child)
}

// Extension adds computed bindings
func (t *Tree) Extension(child NodeRef, exprs ...string) NodeRef {
	return t.Add(KindExtension, exprs, child)
}

// Unary adds an opaque single-child operator
func (t *Tree) Unary(name string, child NodeRef) NodeRef {
	return t.Add(KindUnary, []string{name}, child)
}

// Kind returns the operator of ref
func (t *Tree) Kind(ref NodeRef) Kind {
	return t.nodes[ref].kind
}

// Args returns the operator arguments of ref
func (t *Tree) Args(ref NodeRef) []string {
	return t.nodes[ref].args
}

// SliceBounds returns the offset and limit of a Slice node
func (t *Tree) SliceBounds(ref NodeRef) (offset, limit int64) {
	n := &t.nodes[ref]
	return n.offset, n.limit
}

// Parent returns the parent of ref, NilRef for the root
func (t *Tree) Parent(ref NodeRef) NodeRef {
	return t.nodes[ref].parent
}

// Children returns the children of ref. The slice must not be modified.
func (t *Tree) Children(ref NodeRef) []NodeRef {
	return t.nodes[ref].children
}

// Child returns the only child of a single-child node, NilRef otherwise
func (t *Tree) Child(ref NodeRef) NodeRef {
	if c := t.nodes[ref].children; len(c) == 1 {
		return c[0]
	}
	return NilRef
}

// IsUnary reports whether ref has exactly one child
func (t *Tree) IsUnary(ref NodeRef) bool {
	return len(t.nodes[ref].children) == 1
}

// RotateDown swaps ref with its single child c, so that c takes ref's
// place under ref's parent and ref adopts c's only child. It returns c.
// Both nodes must be unary.
func (t *Tree) RotateDown(ref NodeRef) NodeRef {
	c := t.Child(ref)
	if c == NilRef || !t.IsUnary(c) {
		panic(fmt.Sprintf("algebra: cannot rotate %v over %v", t.Kind(ref), t.describe(c)))
	}
	grandchild := t.nodes[c].children[0]
	parent := t.nodes[ref].parent

	// c takes ref's position
	t.nodes[c].parent = parent
	if parent == NilRef {
		t.root = c
	} else {
		siblings := t.nodes[parent].children
		for i, s := range siblings {
			if s == ref {
				siblings[i] = c
			}
		}
	}

	// ref sits between c and the grandchild
	t.nodes[c].children[0] = ref
	t.nodes[ref].parent = c
	t.nodes[ref].children[0] = grandchild
	t.nodes[grandchild].parent = ref
	return c
}

func (t *Tree) describe(ref NodeRef) string {
	if ref == NilRef {
		return "nothing"
	}
	return t.Kind(ref).String()
}

// Walk visits the tree in pre-order. Returning false from fn skips the
// node's children.
func (t *Tree) Walk(fn func(ref NodeRef, depth int) bool) {
	if t.root != NilRef {
		t.walk(t.root, 0, fn)
	}
}

func (t *Tree) walk(ref NodeRef, depth int, fn func(NodeRef, int) bool) {
	if !fn(ref, depth) {
		return
	}
	for _, c := range t.nodes[ref].children {
		t.walk(c, depth+1, fn)
	}
}

// Contains reports whether any reachable node has a kind in set
func (t *Tree) Contains(set KindSet) bool {
	found := false
	t.Walk(func(ref NodeRef, _ int) bool {
		if set.Has(t.Kind(ref)) {
			found = true
		}
		return !found
	})
	return found
}

// Clone returns an independent copy of the tree
func (t *Tree) Clone() *Tree {
	c := &Tree{nodes: make([]node, len(t.nodes)), root: t.root}
	for i, n := range t.nodes {
		n.args = append([]string(nil), n.args...)
		n.children = append([]NodeRef(nil), n.children...)
		c.nodes[i] = n
	}
	return c
}

// CopyFrom replaces the contents of t with a copy of src, arena layout
// included, so NodeRefs valid in src are valid in t afterwards
func (t *Tree) CopyFrom(src *Tree) {
	c := src.Clone()
	t.nodes, t.root = c.nodes, c.root
}

// Equal compares the reachable structure of two trees, ignoring arena
// layout
func (t *Tree) Equal(other *Tree) bool {
	if t.root == NilRef || other.root == NilRef {
		return t.root == other.root
	}
	return t.equalAt(t.root, other, other.root)
}

func (t *Tree) equalAt(a NodeRef, other *Tree, b NodeRef) bool {
	na, nb := &t.nodes[a], &other.nodes[b]
	if na.kind != nb.kind || na.offset != nb.offset || na.limit != nb.limit ||
		len(na.args) != len(nb.args) || len(na.children) != len(nb.children) {
		return false
	}
	for i := range na.args {
		if na.args[i] != nb.args[i] {
			return false
		}
	}
	for i := range na.children {
		if !t.equalAt(na.children[i], other, nb.children[i]) {
			return false
		}
	}
	return true
}

// String renders the tree in its textual form, one operator per line
func (t *Tree) String() string {
	if t.root == NilRef {
		return "()"
	}
	var b strings.Builder
	t.format(&b, t.root, 0)
	return b.String()
}

func (t *Tree) format(b *strings.Builder, ref NodeRef, depth int) {
	n := &t.nodes[ref]
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteByte('(')
	b.WriteString(n.kind.Symbol())

	if n.kind == KindSlice {
		if n.offset > 0 {
			b.WriteString(" :offset ")
			b.WriteString(strconv.FormatInt(n.offset, 10))
		}
		if n.limit != NoLimit {
			b.WriteString(" :limit ")
			b.WriteString(strconv.FormatInt(n.limit, 10))
		}
	}
	for _, arg := range n.args {
		b.WriteByte(' ')
		b.WriteString(formatArg(arg))
	}

	for _, c := range n.children {
		b.WriteByte('\n')
		t.format(b, c, depth+1)
	}
	b.WriteByte(')')
}

// formatArg quotes arguments that would not read back as a single atom
func formatArg(arg string) string {
	if arg == "" || strings.ContainsAny(arg, " \t\n\r\"();,") || strings.HasPrefix(arg, ":") {
		return strconv.Quote(arg)
	}
	return arg
}
