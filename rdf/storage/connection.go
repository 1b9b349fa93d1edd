package storage

import (
	"errors"
	"sync"
)

// ErrTransactionActive is returned by Begin while the connection already
// has an open transaction
var ErrTransactionActive = errors.New("connection already has an active transaction")

// Connection is a client session. It runs at most one transaction at a
// time; concurrency comes from opening more connections.
type Connection struct {
	db *Database

	mu     sync.Mutex
	tx     *Transaction
	closed bool
}

// Begin opens a transaction on the connection
func (c *Connection) Begin() (*Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errConnectionClosed
	}
	if c.tx != nil {
		return nil, ErrTransactionActive
	}

	tx, err := c.db.begin(c)
	if err != nil {
		return nil, err
	}
	c.tx = tx
	return tx, nil
}

// Transaction returns the open transaction, or nil
func (c *Connection) Transaction() *Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx
}

// State reports TxOpen while a transaction is running and TxIdle otherwise
func (c *Connection) State() TxState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return TxOpen
	}
	return TxIdle
}

// Close rolls back any open transaction. The connection cannot be reused.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	tx := c.tx
	c.mu.Unlock()

	if tx != nil {
		return tx.Rollback()
	}
	return nil
}

// release is called by a finishing transaction
func (c *Connection) release(tx *Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == tx {
		c.tx = nil
	}
}

var errConnectionClosed = errors.New("connection is closed")
