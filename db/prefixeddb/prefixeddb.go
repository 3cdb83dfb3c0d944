// Package prefixeddb carves namespaces out of a shared db.Database by
// transparently prepending a key prefix on writes and stripping it on
// iteration.
package prefixeddb

import (
	"github.com/voteguard/voteguard-node/db"
)

// PrefixedDatabase is a db.Database view restricted to keys under a
// prefix.
type PrefixedDatabase struct {
	db     db.Database
	prefix []byte
}

var _ db.Database = (*PrefixedDatabase)(nil)

// NewPrefixedDatabase wraps database so every operation acts under
// prefix.
func NewPrefixedDatabase(database db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{db: database, prefix: prefix}
}

func joinKey(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(joinKey(d.prefix, key))
}

func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iteratePrefixed(d.db, d.prefix, prefix, callback)
}

func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

func (d *PrefixedDatabase) Close() error {
	return d.db.Close()
}

func (d *PrefixedDatabase) Compact() error {
	return d.db.Compact()
}

// PrefixedReader is a read-only view of a database restricted to a
// prefix.
type PrefixedReader struct {
	reader db.Reader
	prefix []byte
}

var _ db.Reader = (*PrefixedReader)(nil)

// NewPrefixedReader wraps any reader (a Database or a WriteTx) under
// prefix.
func NewPrefixedReader(reader db.Reader, prefix []byte) *PrefixedReader {
	return &PrefixedReader{reader: reader, prefix: prefix}
}

func (r *PrefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(joinKey(r.prefix, key))
}

func (r *PrefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iteratePrefixed(r.reader, r.prefix, prefix, callback)
}

// PrefixedWriteTx is a db.WriteTx view restricted to keys under a prefix.
type PrefixedWriteTx struct {
	tx     db.WriteTx
	prefix []byte
}

var _ db.WriteTx = (*PrefixedWriteTx)(nil)

// NewPrefixedWriteTx wraps tx so every operation acts under prefix.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{tx: tx, prefix: prefix}
}

func (tx *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return tx.tx.Get(joinKey(tx.prefix, key))
}

func (tx *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iteratePrefixed(tx.tx, tx.prefix, prefix, callback)
}

func (tx *PrefixedWriteTx) Set(key, value []byte) error {
	return tx.tx.Set(joinKey(tx.prefix, key), value)
}

func (tx *PrefixedWriteTx) Delete(key []byte) error {
	return tx.tx.Delete(joinKey(tx.prefix, key))
}

func (tx *PrefixedWriteTx) Apply(other db.WriteTx) error {
	var applyErr error
	if err := other.Iterate(nil, func(k, v []byte) bool {
		applyErr = tx.Set(k, v)
		return applyErr == nil
	}); err != nil {
		return err
	}
	return applyErr
}

func (tx *PrefixedWriteTx) Commit() error {
	return tx.tx.Commit()
}

func (tx *PrefixedWriteTx) Discard() {
	tx.tx.Discard()
}

func iteratePrefixed(reader db.Reader, base, prefix []byte, callback func(key, value []byte) bool) error {
	full := joinKey(base, prefix)
	return reader.Iterate(full, func(k, v []byte) bool {
		return callback(k[len(base):], v)
	})
}
