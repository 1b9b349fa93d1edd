package storage

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/wbrown/janus-rdf/rdf"
)

// Quad is the ID-encoded form of a statement
type Quad struct {
	S, P, O, C rdf.NodeID
}

// at returns the ID at a quad position (0=S 1=P 2=O 3=C)
func (q Quad) at(pos int) rdf.NodeID {
	switch pos {
	case 0:
		return q.S
	case 1:
		return q.P
	case 2:
		return q.O
	default:
		return q.C
	}
}

func (q *Quad) set(pos int, id rdf.NodeID) {
	switch pos {
	case 0:
		q.S = id
	case 1:
		q.P = id
	case 2:
		q.O = id
	default:
		q.C = id
	}
}

// Less orders quads in SPOC order
func (q Quad) Less(other Quad) bool {
	for pos := 0; pos < 4; pos++ {
		a, b := q.at(pos), other.at(pos)
		if a != b {
			return a < b
		}
	}
	return false
}

func (q Quad) String() string {
	return fmt.Sprintf("(%d %d %d %d)", q.S, q.P, q.O, q.C)
}

// Row is the value stored under every permutation key of a statement.
// Layout: created(8) deleted(8) flags(1)
type Row struct {
	Created  uint64 // Commit version that added the statement
	Deleted  uint64 // Commit version that removed it, 0 while live
	Inferred bool
}

const rowSize = 17

const rowFlagInferred byte = 1 << 0

// Live reports whether the row has not been deleted
func (r Row) Live() bool {
	return r.Deleted == 0
}

// Bytes serializes the row
func (r Row) Bytes() []byte {
	b := make([]byte, rowSize)
	binary.BigEndian.PutUint64(b[0:8], r.Created)
	binary.BigEndian.PutUint64(b[8:16], r.Deleted)
	if r.Inferred {
		b[16] |= rowFlagInferred
	}
	return b
}

// RowFromBytes deserializes a row
func RowFromBytes(b []byte) (Row, error) {
	if len(b) != rowSize {
		return Row{}, fmt.Errorf("invalid row length %d", len(b))
	}
	return Row{
		Created:  binary.BigEndian.Uint64(b[0:8]),
		Deleted:  binary.BigEndian.Uint64(b[8:16]),
		Inferred: b[16]&rowFlagInferred != 0,
	}, nil
}

// Bound flags mark which quad positions of an IDPattern are fixed
const (
	BoundS uint8 = 1 << iota
	BoundP
	BoundO
	BoundC
)

// IDPattern is a statement pattern over node IDs. Positions whose bit is
// not set in Bound are wildcards.
type IDPattern struct {
	Quad
	Bound uint8
}

func (p IDPattern) bound(pos int) bool {
	return p.Bound&(1<<uint(pos)) != 0
}

// Matches reports whether the quad agrees with every bound position
func (p IDPattern) Matches(q Quad) bool {
	for pos := 0; pos < 4; pos++ {
		if p.bound(pos) && p.at(pos) != q.at(pos) {
			return false
		}
	}
	return true
}

func (p IDPattern) String() string {
	parts := [4]string{"?", "?", "?", "?"}
	for pos := 0; pos < 4; pos++ {
		if p.bound(pos) {
			parts[pos] = fmt.Sprintf("%d", p.at(pos))
		}
	}
	return fmt.Sprintf("(%s %s %s %s)", parts[0], parts[1], parts[2], parts[3])
}

// nodeRecord is the value stored under a nodeByID key
type nodeRecord struct {
	Key       rdf.NodeKey
	CreatedAt time.Time
}

// Bytes serializes the record as kind(1) created_at(8) followed by
// length-prefixed value, datatype and language
func (r nodeRecord) Bytes() []byte {
	buf := make([]byte, 0, 9+len(r.Key.Value)+len(r.Key.Datatype)+len(r.Key.Language)+6)
	buf = append(buf, byte(r.Key.Kind))
	buf = binary.BigEndian.AppendUint64(buf, uint64(r.CreatedAt.UnixNano()))
	return appendNodeStrings(buf, r.Key)
}

func nodeRecordFromBytes(b []byte) (nodeRecord, error) {
	if len(b) < 9 {
		return nodeRecord{}, fmt.Errorf("node record too short")
	}
	key := rdf.NodeKey{Kind: rdf.NodeKind(b[0])}
	created := time.Unix(0, int64(binary.BigEndian.Uint64(b[1:9]))).UTC()

	rest := b[9:]
	fields := []*string{&key.Value, &key.Datatype, &key.Language}
	for _, field := range fields {
		n, width := binary.Uvarint(rest)
		if width <= 0 || uint64(len(rest)-width) < n {
			return nodeRecord{}, fmt.Errorf("corrupt node record")
		}
		*field = string(rest[width : width+int(n)])
		rest = rest[width+int(n):]
	}

	return nodeRecord{Key: key, CreatedAt: created}, nil
}

func appendNodeStrings(buf []byte, k rdf.NodeKey) []byte {
	for _, s := range []string{k.Value, k.Datatype, k.Language} {
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	return buf
}

// maxInlineNodeKey is the longest canonical form stored verbatim in the
// value index. Longer forms are replaced by their SHA-256.
const maxInlineNodeKey = 256

const hashedNodeKeyMarker byte = 0xFF

// canonicalNodeKey returns the unique-index key for a node value
func canonicalNodeKey(k rdf.NodeKey) []byte {
	canonical := appendNodeStrings([]byte{byte(k.Kind)}, k)
	if len(canonical) > maxInlineNodeKey {
		hash := sha256.Sum256(canonical)
		canonical = append([]byte{hashedNodeKeyMarker}, hash[:]...)
	}
	return canonical
}
