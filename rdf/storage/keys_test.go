package storage

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-rdf/rdf"
)

func TestKeyEncoderRoundTrip(t *testing.T) {
	var enc KeyEncoder
	q := Quad{S: 1, P: 2, O: 3, C: 4}

	for _, index := range AllIndexes {
		t.Run(index.String(), func(t *testing.T) {
			key := enc.EncodeKey(index, q)
			if len(key) != statementKeySize {
				t.Fatalf("key length %d, want %d", len(key), statementKeySize)
			}

			gotIndex, got, err := enc.DecodeKey(key)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if gotIndex != index {
				t.Errorf("index %v, want %v", gotIndex, index)
			}
			if got != q {
				t.Errorf("quad %v, want %v", got, q)
			}
		})
	}
}

func TestKeyEncoderOrdering(t *testing.T) {
	var enc KeyEncoder

	// POSC keys sort by predicate first, then object
	a := enc.EncodeKey(POSC, Quad{S: 9, P: 1, O: 5})
	b := enc.EncodeKey(POSC, Quad{S: 1, P: 1, O: 6})
	c := enc.EncodeKey(POSC, Quad{S: 1, P: 2, O: 1})
	assert.Equal(t, -1, bytes.Compare(a, b))
	assert.Equal(t, -1, bytes.Compare(b, c))

	// Big-endian IDs keep numeric order across byte boundaries
	lo := enc.EncodeKey(SPOC, Quad{S: 255})
	hi := enc.EncodeKey(SPOC, Quad{S: 256})
	assert.Equal(t, -1, bytes.Compare(lo, hi))
}

func TestDecodeKeyErrors(t *testing.T) {
	var enc KeyEncoder

	_, _, err := enc.DecodeKey([]byte{byte(SPOC), 1, 2})
	assert.Error(t, err)

	bad := enc.EncodeKey(SPOC, Quad{S: 1})
	bad[0] = 0x09
	_, _, err = enc.DecodeKey(bad)
	assert.Error(t, err)
}

func TestEncodePrefix(t *testing.T) {
	var enc KeyEncoder

	p := IDPattern{Quad: Quad{P: 7, O: 8}, Bound: BoundP | BoundO}
	prefix := enc.EncodePrefix(POSC, p)
	require.Len(t, prefix, 1+16)
	assert.True(t, bytes.HasPrefix(enc.EncodeKey(POSC, Quad{S: 3, P: 7, O: 8}), prefix))
	assert.False(t, bytes.HasPrefix(enc.EncodeKey(POSC, Quad{S: 3, P: 7, O: 9}), prefix))

	// Only the leading bound positions contribute
	assert.Len(t, enc.EncodePrefix(SPOC, p), 1)

	start, end := enc.EncodePrefixRange(POSC, p)
	assert.Equal(t, prefix, start)
	assert.Equal(t, -1, bytes.Compare(enc.EncodeKey(POSC, Quad{S: ^rdf.NodeID(0), P: 7, O: 8, C: ^rdf.NodeID(0)}), end))
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x03}, prefixEnd([]byte{0x01, 0x02}))
	assert.Equal(t, []byte{0x02}, prefixEnd([]byte{0x01, 0xFF}))
	assert.Nil(t, prefixEnd([]byte{0xFF, 0xFF}))
}

func TestChooseIndex(t *testing.T) {
	tests := []struct {
		bound uint8
		want  IndexType
	}{
		{0, SPOC},
		{BoundS, SPOC},
		{BoundS | BoundP, SPOC},
		{BoundP, POSC},
		{BoundP | BoundO, POSC},
		{BoundO, OSPC},
		{BoundS | BoundO, OSPC},
		{BoundC, CSPO},
		{BoundC | BoundS, CSPO},
		{BoundP | BoundC, POSC}, // POSC and CSPO both bind one leading position
		{BoundS | BoundP | BoundO | BoundC, SPOC},
	}

	for _, tt := range tests {
		p := IDPattern{Bound: tt.bound}
		assert.Equal(t, tt.want, ChooseIndex(p), "pattern %s", p)
	}
}

func TestIDPatternMatches(t *testing.T) {
	q := Quad{S: 1, P: 2, O: 3, C: 0}

	assert.True(t, IDPattern{}.Matches(q))
	assert.True(t, IDPattern{Quad: Quad{P: 2}, Bound: BoundP}.Matches(q))
	assert.False(t, IDPattern{Quad: Quad{P: 5}, Bound: BoundP}.Matches(q))
	assert.True(t, IDPattern{Bound: BoundC}.Matches(q), "default graph is context 0")
	assert.Equal(t, "(1 ? ? 0)", IDPattern{Quad: Quad{S: 1}, Bound: BoundS | BoundC}.String())
}

func TestRowEncoding(t *testing.T) {
	row := Row{Created: 42, Deleted: 0, Inferred: true}
	got, err := RowFromBytes(row.Bytes())
	require.NoError(t, err)
	assert.Equal(t, row, got)
	assert.True(t, got.Live())

	row.Deleted = 43
	assert.False(t, row.Live())

	_, err = RowFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestNodeRecordEncoding(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	lit, err := rdf.NewLangLiteral("chat", "fr")
	require.NoError(t, err)

	for _, n := range []rdf.Node{rdf.MustIRI("http://example.org/a"), lit, rdf.NewLiteral("")} {
		rec := nodeRecord{Key: n.Key(), CreatedAt: created}
		got, err := nodeRecordFromBytes(rec.Bytes())
		require.NoError(t, err)
		assert.Equal(t, rec.Key, got.Key)
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	}

	_, err = nodeRecordFromBytes([]byte{1, 2})
	assert.Error(t, err)
}

func TestCanonicalNodeKey(t *testing.T) {
	short := rdf.NewLiteral("short")
	assert.NotEqual(t, hashedNodeKeyMarker, canonicalNodeKey(short.Key())[0])

	long := rdf.NewLiteral(strings.Repeat("x", 1000))
	key := canonicalNodeKey(long.Key())
	assert.Equal(t, hashedNodeKeyMarker, key[0])
	assert.Len(t, key, 33)

	// Kind, datatype and language all take part in identity
	iri := rdf.MustIRI("http://example.org/x")
	lit := rdf.NewTypedLiteral("http://example.org/x", rdf.MustIRI(rdf.XSDString))
	assert.NotEqual(t, canonicalNodeKey(iri.Key()), canonicalNodeKey(lit.Key()))
}
