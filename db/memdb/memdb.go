// Package memdb implements an ephemeral in-memory db.Database with
// optimistic concurrency: a transaction commit fails with db.ErrConflict
// when another transaction touched a key it read.
package memdb

import (
	"bytes"
	"slices"
	"sync"

	"github.com/voteguard/voteguard-node/db"
)

type record struct {
	value   []byte
	version uint64
	deleted bool
}

// MemDB implements db.Database in process memory.
type MemDB struct {
	mu      sync.RWMutex
	records map[string]record
	clock   uint64
}

var _ db.Database = (*MemDB)(nil)

// New returns an empty in-memory database. Options are ignored.
func New(_ db.Options) (*MemDB, error) {
	return &MemDB{records: make(map[string]record)}, nil
}

func (d *MemDB) Close() error   { return nil }
func (d *MemDB) Compact() error { return nil }

func (d *MemDB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.records[string(key)]
	if !ok || rec.deleted {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(rec.value), nil
}

func (d *MemDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	d.mu.RLock()
	snapshot := make(map[string][]byte)
	for k, rec := range d.records {
		if rec.deleted || !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		snapshot[k] = bytes.Clone(rec.value)
	}
	d.mu.RUnlock()
	return iterateSorted(snapshot, callback)
}

func (d *MemDB) version(key string) uint64 {
	return d.records[key].version
}

func (d *MemDB) write(key string, value []byte, deleted bool) {
	d.clock++
	rec := record{version: d.clock, deleted: deleted}
	if !deleted {
		rec.value = bytes.Clone(value)
	}
	d.records[key] = rec
}

func (d *MemDB) WriteTx() db.WriteTx {
	d.mu.RLock()
	base := d.clock
	d.mu.RUnlock()
	return &WriteTx{
		db:     d,
		writes: make(map[string]*[]byte),
		reads:  make(map[string]uint64),
		base:   base,
	}
}

// WriteTx implements db.WriteTx. Pending writes are kept in memory; a nil
// entry in writes marks a deletion.
type WriteTx struct {
	db     *MemDB
	writes map[string]*[]byte
	reads  map[string]uint64
	base   uint64
	done   bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) recordRead(key string) {
	if _, ok := tx.reads[key]; ok {
		return
	}
	tx.db.mu.RLock()
	version := tx.db.version(key)
	tx.db.mu.RUnlock()
	tx.reads[key] = version
}

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if tx.done {
		return nil, db.ErrTxDone
	}
	k := string(key)
	if pending, ok := tx.writes[k]; ok {
		if pending == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*pending), nil
	}
	tx.recordRead(k)
	return tx.db.Get(key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if tx.done {
		return db.ErrTxDone
	}
	merged := make(map[string][]byte)
	tx.db.mu.RLock()
	for k, rec := range tx.db.records {
		if rec.deleted || !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		merged[k] = bytes.Clone(rec.value)
		if _, ok := tx.reads[k]; !ok {
			tx.reads[k] = rec.version
		}
	}
	tx.db.mu.RUnlock()
	for k, pending := range tx.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if pending == nil {
			delete(merged, k)
			continue
		}
		merged[k] = bytes.Clone(*pending)
	}
	return iterateSorted(merged, callback)
}

func (tx *WriteTx) Set(key, value []byte) error {
	if tx.done {
		return db.ErrTxDone
	}
	k := string(key)
	tx.recordRead(k)
	v := bytes.Clone(value)
	tx.writes[k] = &v
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	if tx.done {
		return db.ErrTxDone
	}
	k := string(key)
	tx.recordRead(k)
	tx.writes[k] = nil
	return nil
}

func (tx *WriteTx) Apply(other db.WriteTx) error {
	if tx.done {
		return db.ErrTxDone
	}
	var applyErr error
	if err := other.Iterate(nil, func(k, v []byte) bool {
		applyErr = tx.Set(k, v)
		return applyErr == nil
	}); err != nil {
		return err
	}
	return applyErr
}

func (tx *WriteTx) Commit() error {
	if tx.done {
		return db.ErrTxDone
	}
	tx.done = true
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	for key, readVersion := range tx.reads {
		if readVersion > tx.base || tx.db.version(key) != readVersion {
			return db.ErrConflict
		}
	}
	for key, pending := range tx.writes {
		if pending == nil {
			tx.db.write(key, nil, true)
			continue
		}
		tx.db.write(key, *pending, false)
	}
	return nil
}

func (tx *WriteTx) Discard() {
	tx.done = true
	tx.writes = nil
	tx.reads = nil
}

func iterateSorted(entries map[string][]byte, callback func(key, value []byte) bool) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !callback([]byte(k), entries[k]) {
			break
		}
	}
	return nil
}
