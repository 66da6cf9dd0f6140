// Package dbtest holds the behaviour every db.Database backend must pass.
package dbtest

import (
	"errors"
	"testing"

	"github.com/aragonzkresearch/rovote/db"
	"github.com/aragonzkresearch/rovote/db/prefixeddb"
	qt "github.com/frankban/quicktest"
)

// TestWriteTx checks that writes are only visible after commit, and that a
// transaction observes its own writes.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	tx := database.WriteTx()
	c.Assert(tx.Set([]byte("a"), []byte("1")), qt.IsNil)

	v, err := tx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "1")

	_, err = database.Get([]byte("a"))
	c.Assert(errors.Is(err, db.ErrKeyNotFound), qt.IsTrue)

	c.Assert(tx.Commit(), qt.IsNil)
	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "1")

	tx = database.WriteTx()
	c.Assert(tx.Delete([]byte("a")), qt.IsNil)
	_, err = tx.Get([]byte("a"))
	c.Assert(errors.Is(err, db.ErrKeyNotFound), qt.IsTrue)
	tx.Discard()

	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)

	tx = database.WriteTx()
	c.Assert(tx.Delete([]byte("a")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
	_, err = database.Get([]byte("a"))
	c.Assert(errors.Is(err, db.ErrKeyNotFound), qt.IsTrue)
}

// TestIterate checks prefix iteration order and prefix stripping.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	tx := database.WriteTx()
	for _, k := range []string{"p/c", "p/a", "q/z", "p/b"} {
		c.Assert(tx.Set([]byte(k), []byte("v"+k)), qt.IsNil)
	}
	c.Assert(tx.Commit(), qt.IsNil)

	var keys []string
	c.Assert(database.Iterate([]byte("p/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		c.Assert(string(v), qt.Equals, "vp/"+string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"a", "b", "c"})

	keys = nil
	c.Assert(database.Iterate([]byte("p/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return false
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"a"})

	// pending writes are merged when iterating through a transaction
	tx = database.WriteTx()
	c.Assert(tx.Set([]byte("p/d"), []byte("vp/d")), qt.IsNil)
	c.Assert(tx.Delete([]byte("p/a")), qt.IsNil)
	keys = nil
	c.Assert(tx.Iterate([]byte("p/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"b", "c", "d"})
	tx.Discard()
}

// TestWriteTxApplyPrefixed checks that writes made through a prefixed
// transaction can be applied into a transaction of the parent database.
func TestWriteTxApplyPrefixed(t *testing.T, database db.Database) {
	c := qt.New(t)
	prefixed := prefixeddb.NewPrefixedDatabase(database, []byte("one/"))

	ptx := prefixed.WriteTx()
	c.Assert(ptx.Set([]byte("key"), []byte("value")), qt.IsNil)

	tx := database.WriteTx()
	c.Assert(tx.Apply(ptx), qt.IsNil)
	ptx.Discard()
	c.Assert(tx.Commit(), qt.IsNil)

	v, err := database.Get([]byte("one/key"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "value")

	v, err = prefixed.Get([]byte("key"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "value")
}

// TestCompact checks that compacting keeps every committed key readable.
func TestCompact(t *testing.T, database db.Database) {
	c := qt.New(t)

	tx := database.WriteTx()
	for _, k := range []string{"a", "b", "c"} {
		c.Assert(tx.Set([]byte(k), []byte("v"+k)), qt.IsNil)
	}
	c.Assert(tx.Commit(), qt.IsNil)
	tx = database.WriteTx()
	c.Assert(tx.Delete([]byte("b")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	c.Assert(database.Compact(), qt.IsNil)

	v, err := database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "va")
	_, err = database.Get([]byte("b"))
	c.Assert(errors.Is(err, db.ErrKeyNotFound), qt.IsTrue)

	pdb := prefixeddb.NewPrefixedDatabase(database, []byte("p/"))
	c.Assert(pdb.Compact(), qt.IsNil)
	v, err = database.Get([]byte("c"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "vc")
}
