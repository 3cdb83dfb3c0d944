package prefixeddb

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/voteguard/voteguard-node/db"
	"github.com/voteguard/voteguard-node/db/memdb"
)

func open(c *qt.C) db.Database {
	d, err := memdb.New(db.Options{})
	c.Assert(err, qt.IsNil)
	return d
}

func TestPrefixNamespacing(t *testing.T) {
	c := qt.New(t)
	base := open(c)
	pa := NewPrefixedDatabase(base, []byte("a_"))
	pb := NewPrefixedDatabase(base, []byte("b_"))

	tx := pa.WriteTx()
	c.Assert(tx.Set([]byte("k"), []byte("va")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	tx = pb.WriteTx()
	c.Assert(tx.Set([]byte("k"), []byte("vb")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	// The same logical key lives in two separate namespaces.
	v, err := pa.Get([]byte("k"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "va")
	v, err = pb.Get([]byte("k"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "vb")

	// The backing store sees the full keys.
	v, err = base.Get([]byte("a_k"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "va")
}

func TestIterateStripsPrefix(t *testing.T) {
	c := qt.New(t)
	base := open(c)
	p := NewPrefixedDatabase(base, []byte("ns/"))

	tx := p.WriteTx()
	c.Assert(tx.Set([]byte("x/1"), []byte("1")), qt.IsNil)
	c.Assert(tx.Set([]byte("x/2"), []byte("2")), qt.IsNil)
	c.Assert(tx.Set([]byte("y/1"), []byte("3")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	// Keys come back without the namespace prefix.
	var keys []string
	c.Assert(p.Iterate([]byte("x/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"x/1", "x/2"})

	// Another namespace sees nothing.
	other := NewPrefixedDatabase(base, []byte("other/"))
	count := 0
	c.Assert(other.Iterate(nil, func(k, v []byte) bool {
		count++
		return true
	}), qt.IsNil)
	c.Assert(count, qt.Equals, 0)
}

func TestPrefixedReaderAndWriteTx(t *testing.T) {
	c := qt.New(t)
	base := open(c)

	// A prefixed view over a raw transaction reads and writes under the
	// prefix, and the pending writes are visible through the same view.
	tx := NewPrefixedWriteTx(base.WriteTx(), []byte("p_"))
	c.Assert(tx.Set([]byte("k"), []byte("v")), qt.IsNil)
	v, err := tx.Get([]byte("k"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "v")
	c.Assert(tx.Commit(), qt.IsNil)

	r := NewPrefixedReader(base, []byte("p_"))
	v, err = r.Get([]byte("k"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "v")
	_, err = r.Get([]byte("missing"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	// Deletes stay inside the namespace.
	tx = NewPrefixedWriteTx(base.WriteTx(), []byte("p_"))
	c.Assert(tx.Delete([]byte("k")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
	_, err = r.Get([]byte("k"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

func TestApplyPropagatesSetErrors(t *testing.T) {
	c := qt.New(t)
	base := open(c)

	src := base.WriteTx()
	c.Assert(src.Set([]byte("a"), []byte("1")), qt.IsNil)

	// Applying into a view whose inner transaction is already done must
	// report the failure, not claim success after writing nothing.
	inner := base.WriteTx()
	dst := NewPrefixedWriteTx(inner, []byte("p_"))
	c.Assert(inner.Commit(), qt.IsNil)
	c.Assert(dst.Apply(src), qt.ErrorIs, db.ErrTxDone)
	src.Discard()
}
