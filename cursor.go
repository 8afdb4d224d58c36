package gendb

import (
	"bytes"

	"go.etcd.io/bbolt"
)

// Cursor iterates a table, either in handle order or in one of its derived
// orderings. A cursor holds a read transaction open, so it must be closed.
// Committing a mutation invalidates all open cursors; the next movement
// stops and Err reports ErrStaleCursor.
type Cursor struct {
	db       *DB
	tbl      *table
	idx      *index // nil when iterating the data bucket directly
	btx      *bbolt.Tx
	dataBuck *bbolt.Bucket
	bcur     *bbolt.Cursor
	gen      uint64
	reverse  bool
	closed   bool
	err      error
	k, v     []byte
}

// TableCursor iterates every record of the type in handle order, which is
// creation order.
func (db *DB) TableCursor(typ ObjType) (*Cursor, error) {
	return db.openCursor(typ, nil)
}

// NameCursor iterates people ordered by collated surname; people sharing a
// surname come in creation order.
func (db *DB) NameCursor() (*Cursor, error) {
	return db.openCursor(PersonType, surnameIndex)
}

func (db *DB) openCursor(typ ObjType, idx *index) (*Cursor, error) {
	tbl := tableFor(typ)
	btx, err := db.bdb.Begin(false)
	if err != nil {
		return nil, err
	}
	tableRoot := tbl.rootBucketIn(btx)
	buck := tbl.dataBucketIn(tableRoot)
	iterBuck := buck
	if idx != nil {
		iterBuck = idx.bucketIn(btx, tableRoot)
	}
	return &Cursor{
		db:       db,
		tbl:      tbl,
		idx:      idx,
		btx:      btx,
		dataBuck: buck,
		bcur:     iterBuck.Cursor(),
		gen:      db.generation.Load(),
	}, nil
}

func (c *Cursor) live() bool {
	if c.closed {
		panic("gendb: use of closed cursor")
	}
	if c.err != nil {
		return false
	}
	if c.db.generation.Load() != c.gen {
		c.err = ErrStaleCursor
		c.k, c.v = nil, nil
		return false
	}
	return true
}

func (c *Cursor) move(k, v []byte) bool {
	c.k, c.v = k, v
	return k != nil
}

// Reversed flips the iteration order: First starts at the end and Next walks
// backward. Returns the cursor for chaining at open time.
func (c *Cursor) Reversed() *Cursor {
	c.reverse = true
	return c
}

func (c *Cursor) First() bool {
	if !c.live() {
		return false
	}
	return c.move(boltFirstLast(c.bcur, c.reverse))
}

func (c *Cursor) Last() bool {
	if !c.live() {
		return false
	}
	return c.move(boltFirstLast(c.bcur, !c.reverse))
}

func (c *Cursor) Next() bool {
	if !c.live() {
		return false
	}
	return c.move(boltAdvance(c.bcur, c.reverse))
}

func (c *Cursor) Prev() bool {
	if !c.live() {
		return false
	}
	return c.move(boltAdvance(c.bcur, !c.reverse))
}

// Seek positions the cursor at the first key matching prefix in iteration
// order: the first key >= prefix, or, reversed, the last key carrying the
// prefix. For a NameCursor the prefix is a collation key, so this is mostly
// useful with raw handles on table cursors.
func (c *Cursor) Seek(prefix []byte) bool {
	if !c.live() {
		return false
	}
	return c.move(boltSeek(c.bcur, prefix, c.reverse))
}

// Handle returns the handle at the current position, or "" when exhausted.
func (c *Cursor) Handle() Handle {
	if c.k == nil {
		return ""
	}
	switch {
	case c.idx == nil:
		return handleFromRaw(c.k)
	case c.idx.unique:
		return handleFromRaw(c.v)
	default:
		return trailingHandle(c.k)
	}
}

// Current decodes the record at the current position. It returns nil when
// the cursor is exhausted or invalidated.
func (c *Cursor) Current() (Object, error) {
	if c.k == nil {
		return nil, c.err
	}
	h := c.Handle()
	raw := c.v
	if c.idx != nil {
		raw = c.dataBuck.Get(h.raw())
		if raw == nil {
			return nil, tableErrf(c.tbl.typ, h, nil, "index entry without a record")
		}
	}
	return decodeStored(c.tbl, h, raw)
}

// Err reports whether the cursor was invalidated by a concurrent commit.
func (c *Cursor) Err() error {
	return c.err
}

func (c *Cursor) Close() {
	if c.closed {
		return
	}
	c.closed = true
	ensure(c.btx.Rollback())
}

// TreeCursor navigates the place hierarchy through the parent ordering,
// where children of one parent sit under a shared prefix.
type TreeCursor struct {
	Cursor
}

// PlaceTreeCursor opens a tree cursor over places. Top-level places are the
// children of the empty handle.
func (db *DB) PlaceTreeCursor() (*TreeCursor, error) {
	c, err := db.openCursor(PlaceType, parentIndex)
	if err != nil {
		return nil, err
	}
	return &TreeCursor{*c}, nil
}

func (tc *TreeCursor) childPrefix(parent Handle) []byte {
	prefix := make([]byte, 0, handleLen+1)
	prefix = append(prefix, parent.raw()...)
	prefix = append(prefix, 0)
	return prefix
}

// ChildrenOf returns the direct children of the parent, in creation order.
func (tc *TreeCursor) ChildrenOf(parent Handle) []Handle {
	if !tc.live() {
		return nil
	}
	prefix := tc.childPrefix(parent)
	var out []Handle
	for k, _ := tc.bcur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = tc.bcur.Next() {
		out = append(out, trailingHandle(k))
	}
	return out
}

// HasChildren reports whether the parent has at least one child without
// materializing them.
func (tc *TreeCursor) HasChildren(parent Handle) bool {
	if !tc.live() {
		return false
	}
	prefix := tc.childPrefix(parent)
	k, _ := tc.bcur.Seek(prefix)
	return k != nil && bytes.HasPrefix(k, prefix)
}

// DescendantCount counts all transitive descendants of the parent.
func (tc *TreeCursor) DescendantCount(parent Handle) int {
	var n int
	visited := map[Handle]bool{parent: true}
	queue := tc.ChildrenOf(parent)
	for len(queue) > 0 && tc.err == nil {
		h := queue[0]
		queue = queue[1:]
		if visited[h] {
			continue
		}
		visited[h] = true
		n++
		queue = append(queue, tc.ChildrenOf(h)...)
	}
	return n
}
