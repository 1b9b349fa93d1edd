package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/wbrown/janus-rdf/rdf"
)

// statementKeySize is the 1-byte index prefix plus four 8-byte IDs
const statementKeySize = 1 + 4*8

// KeyEncoder builds and parses badger keys for every key space
type KeyEncoder struct{}

// EncodeKey creates a statement key for the index. IDs are laid out in
// the index's key order so prefix scans follow the bound positions.
func (e KeyEncoder) EncodeKey(index IndexType, q Quad) []byte {
	key := make([]byte, statementKeySize)
	key[0] = byte(index)
	for i, pos := range index.order() {
		binary.BigEndian.PutUint64(key[1+i*8:], uint64(q.at(pos)))
	}
	return key
}

// DecodeKey extracts the quad from a statement key
func (e KeyEncoder) DecodeKey(key []byte) (IndexType, Quad, error) {
	if len(key) != statementKeySize {
		return 0, Quad{}, fmt.Errorf("statement key has length %d", len(key))
	}

	index := IndexType(key[0])
	if index < SPOC || index > CSPO {
		return 0, Quad{}, fmt.Errorf("unknown index type: %v", index)
	}

	var q Quad
	for i, pos := range index.order() {
		q.set(pos, rdf.NodeID(binary.BigEndian.Uint64(key[1+i*8:])))
	}
	return index, q, nil
}

// EncodePrefix creates the scan prefix for the leading bound positions
// of a pattern in the index's key order
func (e KeyEncoder) EncodePrefix(index IndexType, p IDPattern) []byte {
	prefix := []byte{byte(index)}
	for _, pos := range index.order() {
		if !p.bound(pos) {
			break
		}
		prefix = append(prefix, uint64Bytes(uint64(p.at(pos)))...)
	}
	return prefix
}

// EncodePrefixRange creates start and end keys for a prefix scan
func (e KeyEncoder) EncodePrefixRange(index IndexType, p IDPattern) (start, end []byte) {
	start = e.EncodePrefix(index, p)
	return start, prefixEnd(start)
}

// NodeIDKey is the key of a node record
func (e KeyEncoder) NodeIDKey(id rdf.NodeID) []byte {
	return concatBytes([]byte{prefixNodeByID}, uint64Bytes(uint64(id)))
}

// NodeValueKey is the unique-index key of a node value
func (e KeyEncoder) NodeValueKey(k rdf.NodeKey) []byte {
	return concatBytes([]byte{prefixNodeByValue}, canonicalNodeKey(k))
}

// NamespaceKey is the key holding the IRI of a prefix
func (e KeyEncoder) NamespaceKey(prefix string) []byte {
	return concatBytes([]byte{prefixNamespace}, []byte(prefix))
}

// SequenceKey is the key holding the high-water mark of a sequence
func (e KeyEncoder) SequenceKey(name string) []byte {
	return concatBytes([]byte{prefixSequence}, []byte(name))
}

// prefixOnly is the scan prefix of a whole key space
func prefixOnly(b byte) []byte {
	return []byte{b}
}
