package rdf

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable means the backend is closed or unreachable.
	// The caller must retry the whole transaction.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDuplicateNodeRace marks a lost first-registration race. It is
	// recovered inside the node cache and never returned to callers.
	ErrDuplicateNodeRace = errors.New("duplicate node race")

	// ErrMalformedNode is returned when constructing an invalid term
	ErrMalformedNode = errors.New("malformed node")

	// ErrCommitConflict means a concurrent writer touched the same keys
	ErrCommitConflict = errors.New("commit conflict")

	// ErrUnknownNodeID is returned by reverse lookups of unassigned IDs
	ErrUnknownNodeID = errors.New("unknown node id")

	// ErrTransactionClosed is returned when using a finished transaction
	ErrTransactionClosed = errors.New("transaction is closed")
)

// CommitError reports a failed commit. The transaction has already been
// rolled back when this is returned.
type CommitError struct {
	TxID string
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit of transaction %s failed: %v", e.TxID, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Retryable reports whether beginning a fresh transaction may succeed
func (e *CommitError) Retryable() bool {
	return IsRetryable(e.Err)
}

// IsRetryable reports whether err is a conflict or an availability
// failure, both of which are cured by retrying in a new transaction.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCommitConflict) || errors.Is(err, ErrStoreUnavailable)
}
