package storage

import (
	"fmt"
)

// IndexType represents the statement permutation indices
type IndexType uint8

const (
	SPOC IndexType = iota + 1 // Subject-Predicate-Object-Context
	POSC                      // Predicate-Object-Subject-Context
	OSPC                      // Object-Subject-Predicate-Context
	CSPO                      // Context-Subject-Predicate-Object
)

// AllIndexes lists every permutation a statement row is written to
var AllIndexes = []IndexType{SPOC, POSC, OSPC, CSPO}

// Key space prefixes that are not statement indices
const (
	prefixNodeByID    byte = 0x10
	prefixNodeByValue byte = 0x11
	prefixNamespace   byte = 0x20
	prefixSequence    byte = 0x30
)

// String returns the index name
func (i IndexType) String() string {
	switch i {
	case SPOC:
		return "SPOC"
	case POSC:
		return "POSC"
	case OSPC:
		return "OSPC"
	case CSPO:
		return "CSPO"
	default:
		return fmt.Sprintf("index(%d)", uint8(i))
	}
}

// order returns the quad positions in key order for the index.
// Positions: 0=S 1=P 2=O 3=C
func (i IndexType) order() [4]int {
	switch i {
	case SPOC:
		return [4]int{0, 1, 2, 3}
	case POSC:
		return [4]int{1, 2, 0, 3}
	case OSPC:
		return [4]int{2, 0, 1, 3}
	case CSPO:
		return [4]int{3, 0, 1, 2}
	default:
		panic(fmt.Sprintf("unknown index type: %v", i))
	}
}
