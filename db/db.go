// Package db defines the key-value storage abstraction the node keeps its
// election artifacts in. Implementations live in the subpackages: pebbledb
// for on-disk storage, memdb for tests and ephemeral runs, and prefixeddb
// to carve namespaces out of a shared database.
package db

import "errors"

var (
	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrConflict is returned by Commit when a concurrent transaction
	// modified a key this transaction read.
	ErrConflict = errors.New("db: transaction conflict")
	// ErrTxDone is returned when using a transaction after Commit or
	// Discard.
	ErrTxDone = errors.New("db: transaction already committed or discarded")
)

// Options configures the opening of a database.
type Options struct {
	Path string
}

// Database is a sorted key-value store with transactional writes.
type Database interface {
	Reader
	// WriteTx starts a write transaction. The caller must end it with
	// Commit or Discard.
	WriteTx() WriteTx
	Close() error
	// Compact reclaims space from deleted entries. Implementations may
	// make it a no-op.
	Compact() error
}

// Reader is the read-only subset shared by Database and WriteTx.
type Reader interface {
	// Get returns the value of key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback on every key-value pair whose key starts
	// with prefix, in ascending key order, until callback returns false.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx buffers writes until Commit makes them visible atomically.
// Reads observe the transaction's own pending writes.
type WriteTx interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	// Apply copies every pending write of other into this transaction.
	Apply(other WriteTx) error
	Commit() error
	Discard()
}
