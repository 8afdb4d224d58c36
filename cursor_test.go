package gendb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableCursor(t *testing.T) {
	db := setupTestDB(t)

	p1 := newPerson("A", "A")
	p2 := newPerson("B", "B")
	p3 := newPerson("C", "C")
	write(t, db, "add", func(txn *Txn) {
		require.NoError(t, txn.Put(p1))
		require.NoError(t, txn.Put(p2))
		require.NoError(t, txn.Put(p3))
	})

	c, err := db.TableCursor(PersonType)
	require.NoError(t, err)
	defer c.Close()

	var handles []Handle
	for ok := c.First(); ok; ok = c.Next() {
		handles = append(handles, c.Handle())
	}
	require.NoError(t, c.Err())
	require.Equal(t, []Handle{p1.Handle, p2.Handle, p3.Handle}, handles)

	// backwards too
	handles = nil
	for ok := c.Last(); ok; ok = c.Prev() {
		handles = append(handles, c.Handle())
	}
	require.Equal(t, []Handle{p3.Handle, p2.Handle, p1.Handle}, handles)

	require.True(t, c.First())
	obj, err := c.Current()
	require.NoError(t, err)
	require.Equal(t, "A", obj.(*Person).PrimaryName.Surname)
}

func TestTableCursorEmpty(t *testing.T) {
	db := setupTestDB(t)

	c, err := db.TableCursor(PersonType)
	require.NoError(t, err)
	defer c.Close()

	require.False(t, c.First())
	require.Equal(t, Handle(""), c.Handle())
	obj, err := c.Current()
	require.NoError(t, err)
	require.Nil(t, obj)
}

func TestNameCursorOrder(t *testing.T) {
	db := setupTestDB(t)

	zimmer := newPerson("Z", "Zimmer")
	adams := newPerson("A", "Adams")
	brown := newPerson("B", "Brown")
	write(t, db, "add out of order", func(txn *Txn) {
		require.NoError(t, txn.Put(zimmer))
		require.NoError(t, txn.Put(adams))
		require.NoError(t, txn.Put(brown))
	})

	c, err := db.NameCursor()
	require.NoError(t, err)
	defer c.Close()

	var surnames []string
	for ok := c.First(); ok; ok = c.Next() {
		obj, err := c.Current()
		require.NoError(t, err)
		surnames = append(surnames, obj.(*Person).PrimaryName.Surname)
	}
	require.NoError(t, c.Err())
	require.Equal(t, []string{"Adams", "Brown", "Zimmer"}, surnames)
}

func TestNameCursorDuplicateSurnames(t *testing.T) {
	db := setupTestDB(t)

	s1 := newPerson("First", "Smith")
	s2 := newPerson("Second", "Smith")
	write(t, db, "add smiths", func(txn *Txn) {
		require.NoError(t, txn.Put(s1))
		require.NoError(t, txn.Put(s2))
	})

	c, err := db.NameCursor()
	require.NoError(t, err)
	defer c.Close()

	// duplicates come in creation order
	require.True(t, c.First())
	require.Equal(t, s1.Handle, c.Handle())
	require.True(t, c.Next())
	require.Equal(t, s2.Handle, c.Handle())
	require.False(t, c.Next())
}

func TestReversedCursor(t *testing.T) {
	db := setupTestDB(t)

	zimmer := newPerson("Z", "Zimmer")
	adams := newPerson("A", "Adams")
	brown := newPerson("B", "Brown")
	write(t, db, "add", func(txn *Txn) {
		require.NoError(t, txn.Put(zimmer))
		require.NoError(t, txn.Put(adams))
		require.NoError(t, txn.Put(brown))
	})

	c, err := db.NameCursor()
	require.NoError(t, err)
	defer c.Close()
	c.Reversed()

	var surnames []string
	for ok := c.First(); ok; ok = c.Next() {
		obj, err := c.Current()
		require.NoError(t, err)
		surnames = append(surnames, obj.(*Person).PrimaryName.Surname)
	}
	require.NoError(t, c.Err())
	require.Equal(t, []string{"Zimmer", "Brown", "Adams"}, surnames)

	// Last and Prev flip along with the direction
	require.True(t, c.Last())
	require.Equal(t, adams.Handle, c.Handle())
	require.True(t, c.Prev())
	require.Equal(t, brown.Handle, c.Handle())
}

func TestReversedCursorSeek(t *testing.T) {
	db := setupTestDB(t)

	p1 := newPerson("A", "A")
	p2 := newPerson("B", "B")
	p3 := newPerson("C", "C")
	write(t, db, "add", func(txn *Txn) {
		require.NoError(t, txn.Put(p1))
		require.NoError(t, txn.Put(p2))
		require.NoError(t, txn.Put(p3))
	})

	c, err := db.TableCursor(PersonType)
	require.NoError(t, err)
	defer c.Close()
	c.Reversed()

	// reversed seek lands on the last key carrying the prefix
	require.True(t, c.Seek(p2.Handle.raw()))
	require.Equal(t, p2.Handle, c.Handle())
	require.True(t, c.Next())
	require.Equal(t, p1.Handle, c.Handle())
}

func TestStaleCursorAfterCommit(t *testing.T) {
	db := setupTestDB(t)

	write(t, db, "seed", func(txn *Txn) {
		require.NoError(t, txn.Put(newPerson("A", "A")))
		require.NoError(t, txn.Put(newPerson("B", "B")))
	})

	c, err := db.TableCursor(PersonType)
	require.NoError(t, err)
	defer c.Close()
	require.True(t, c.First())

	write(t, db, "concurrent", func(txn *Txn) {
		require.NoError(t, txn.Put(newPerson("C", "C")))
	})

	require.False(t, c.Next())
	require.ErrorIs(t, c.Err(), ErrStaleCursor)

	// invalidation is sticky
	require.False(t, c.First())
	require.ErrorIs(t, c.Err(), ErrStaleCursor)
}

func TestCursorSurvivesReadOnlyCommit(t *testing.T) {
	db := setupTestDB(t)

	write(t, db, "seed", func(txn *Txn) {
		require.NoError(t, txn.Put(newPerson("A", "A")))
	})

	c, err := db.TableCursor(PersonType)
	require.NoError(t, err)
	defer c.Close()
	require.True(t, c.First())

	// a commit that wrote nothing doesn't invalidate anything
	write(t, db, "noop", func(txn *Txn) {})

	require.False(t, c.Next()) // just exhausted
	require.NoError(t, c.Err())
}

func TestPlaceTree(t *testing.T) {
	db := setupTestDB(t)

	country := newPlace("Sweden", "")
	city1 := newPlace("Stockholm", country.Handle)
	city2 := newPlace("Uppsala", country.Handle)
	parish := newPlace("Gamla stan", city1.Handle)
	other := newPlace("Norway", "")

	write(t, db, "add places", func(txn *Txn) {
		for _, p := range []*Place{country, city1, city2, parish, other} {
			require.NoError(t, txn.Put(p))
		}
	})

	tc, err := db.PlaceTreeCursor()
	require.NoError(t, err)
	defer tc.Close()

	require.Equal(t, []Handle{country.Handle, other.Handle}, tc.ChildrenOf(""))
	require.Equal(t, []Handle{city1.Handle, city2.Handle}, tc.ChildrenOf(country.Handle))
	require.Equal(t, []Handle{parish.Handle}, tc.ChildrenOf(city1.Handle))
	require.Empty(t, tc.ChildrenOf(parish.Handle))

	require.True(t, tc.HasChildren(country.Handle))
	require.False(t, tc.HasChildren(parish.Handle))

	require.Equal(t, 3, tc.DescendantCount(country.Handle))
	require.Equal(t, 1, tc.DescendantCount(city1.Handle))
	require.Equal(t, 0, tc.DescendantCount(other.Handle))
	require.Equal(t, 5, tc.DescendantCount(""))
}
