package keystore

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/voteguard/voteguard-node/db"
	"github.com/voteguard/voteguard-node/db/memdb"
)

func openStore(c *qt.C) (*Store, *memdb.MemDB) {
	database, err := memdb.New(db.Options{})
	c.Assert(err, qt.IsNil)
	ks, err := Open(database, []byte("correct horse"))
	c.Assert(err, qt.IsNil)
	return ks, database
}

func TestPutGetRoundTrip(t *testing.T) {
	c := qt.New(t)
	ks, _ := openStore(c)

	c.Assert(ks.Put("secret-key", []byte("blob one")), qt.IsNil)
	v, err := ks.Get("secret-key")
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "blob one")

	// Overwrite.
	c.Assert(ks.Put("secret-key", []byte("blob two")), qt.IsNil)
	v, err = ks.Get("secret-key")
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "blob two")

	_, err = ks.Get("absent")
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestReopen(t *testing.T) {
	c := qt.New(t)
	ks, database := openStore(c)
	c.Assert(ks.Put("entry", []byte("payload")), qt.IsNil)

	// The right password reopens the same store.
	again, err := Open(database, []byte("correct horse"))
	c.Assert(err, qt.IsNil)
	v, err := again.Get("entry")
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "payload")

	// The wrong password is detected before any entry access.
	_, err = Open(database, []byte("battery staple"))
	c.Assert(err, qt.ErrorIs, ErrWrongPassword)
}

func TestTamperedEntry(t *testing.T) {
	c := qt.New(t)
	ks, database := openStore(c)
	c.Assert(ks.Put("entry", []byte("payload")), qt.IsNil)

	// Flip a bit of the sealed blob in the underlying store.
	raw := []byte("ks_e/entry")
	sealed, err := database.Get(raw)
	c.Assert(err, qt.IsNil)
	sealed[len(sealed)-1] ^= 0x01
	tx := database.WriteTx()
	c.Assert(tx.Set(raw, sealed), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	_, err = ks.Get("entry")
	c.Assert(err, qt.ErrorIs, ErrCorrupted)

	// A truncated blob is corruption too.
	tx = database.WriteTx()
	c.Assert(tx.Set(raw, sealed[:4]), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
	_, err = ks.Get("entry")
	c.Assert(err, qt.ErrorIs, ErrCorrupted)
}

func TestEntryNameBinding(t *testing.T) {
	c := qt.New(t)
	ks, database := openStore(c)
	c.Assert(ks.Put("a", []byte("va")), qt.IsNil)
	c.Assert(ks.Put("b", []byte("vb")), qt.IsNil)

	// Moving a's sealed blob under b's name must not decrypt.
	sealedA, err := database.Get([]byte("ks_e/a"))
	c.Assert(err, qt.IsNil)
	tx := database.WriteTx()
	c.Assert(tx.Set([]byte("ks_e/b"), sealedA), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	_, err = ks.Get("b")
	c.Assert(err, qt.ErrorIs, ErrCorrupted)
}

func TestPutBatchAndNames(t *testing.T) {
	c := qt.New(t)
	ks, _ := openStore(c)

	c.Assert(ks.PutBatch(map[string][]byte{
		"key-share":     []byte("s"),
		"proof-secrets": []byte("p"),
	}), qt.IsNil)

	names, err := ks.Names()
	c.Assert(err, qt.IsNil)
	c.Assert(names, qt.DeepEquals, []string{"key-share", "proof-secrets"})

	c.Assert(ks.Delete("key-share"), qt.IsNil)
	names, err = ks.Names()
	c.Assert(err, qt.IsNil)
	c.Assert(names, qt.DeepEquals, []string{"proof-secrets"})

	// Deleting a missing entry is fine.
	c.Assert(ks.Delete("key-share"), qt.IsNil)
}

func TestCorruptedSalt(t *testing.T) {
	c := qt.New(t)
	_, database := openStore(c)

	tx := database.WriteTx()
	c.Assert(tx.Set([]byte("ks_salt"), []byte("short")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	_, err := Open(database, []byte("correct horse"))
	c.Assert(err, qt.ErrorIs, ErrCorrupted)
}
