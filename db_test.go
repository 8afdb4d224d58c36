package gendb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	return openTestDB(t, filepath.Join(t.TempDir(), "store.gendb"))
}

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(path, Options{
		IsTesting: true,
		Verbose:   testing.Verbose(),
		Logf:      t.Logf,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.bdb.Close() // idempotent, tests may close early
	})
	return db
}

func write(t *testing.T, db *DB, description string, f func(txn *Txn)) {
	t.Helper()
	txn, err := db.Begin(description)
	require.NoError(t, err)
	defer txn.Abort()
	f(txn)
	require.NoError(t, txn.Commit())
}

func newPerson(first, surname string) *Person {
	p := &Person{PrimaryName: Name{First: first, Surname: surname}}
	p.Handle = NewHandle()
	return p
}

func newNote(text string) *Note {
	n := &Note{Text: text}
	n.Handle = NewHandle()
	return n
}

func newPlace(name string, parent Handle) *Place {
	p := &Place{Name: name, Parent: parent}
	p.Handle = NewHandle()
	return p
}

func getPerson(t *testing.T, db *DB, h Handle) *Person {
	t.Helper()
	obj, err := db.Get(PersonType, h)
	require.NoError(t, err)
	require.NotNil(t, obj)
	return obj.(*Person)
}

func TestPutGet(t *testing.T) {
	db := setupTestDB(t)

	p := newPerson("Anna", "Smith")
	write(t, db, "add person", func(txn *Txn) {
		require.NoError(t, txn.Put(p))
	})

	got := getPerson(t, db, p.Handle)
	require.Equal(t, "Smith", got.PrimaryName.Surname)
	require.Equal(t, "Anna", got.PrimaryName.First)
	require.Equal(t, "I0000", got.ID)
	require.NotZero(t, got.Changed)

	obj, err := db.Get(PersonType, NewHandle())
	require.NoError(t, err)
	require.Nil(t, obj)
}

func TestGetByID(t *testing.T) {
	db := setupTestDB(t)

	p := newPerson("Anna", "Smith")
	p.ID = "I0042"
	write(t, db, "add person", func(txn *Txn) {
		require.NoError(t, txn.Put(p))
	})

	obj, err := db.GetByID(PersonType, "I0042")
	require.NoError(t, err)
	require.NotNil(t, obj)
	require.Equal(t, p.Handle, obj.ObjHandle())

	obj, err = db.GetByID(PersonType, "I9999")
	require.NoError(t, err)
	require.Nil(t, obj)
}

func TestIDSubstitution(t *testing.T) {
	db := setupTestDB(t)

	p1 := newPerson("Anna", "Smith")
	p1.ID = "I0007"
	write(t, db, "add first", func(txn *Txn) {
		require.NoError(t, txn.Put(p1))
	})

	p2 := newPerson("Bert", "Jones")
	p2.ID = "I0007"
	write(t, db, "import second", func(txn *Txn) {
		require.NoError(t, txn.Put(p2))
		subs := txn.Substitutions()
		require.Len(t, subs, 1)
		require.Equal(t, "I0007", subs[0].Requested)
		require.Equal(t, "I0000", subs[0].Assigned)
		require.Equal(t, p2.Handle, subs[0].Handle)
	})

	require.Equal(t, "I0000", getPerson(t, db, p2.Handle).ID)
	require.Equal(t, "I0007", getPerson(t, db, p1.Handle).ID)

	// re-putting the owner keeps its ID
	write(t, db, "touch first", func(txn *Txn) {
		p1.PrimaryName.First = "Anne"
		require.NoError(t, txn.Put(p1))
		require.Empty(t, txn.Substitutions())
	})
	require.Equal(t, "I0007", getPerson(t, db, p1.Handle).ID)
}

func TestCountAndHandles(t *testing.T) {
	db := setupTestDB(t)

	p1 := newPerson("A", "A")
	p2 := newPerson("B", "B")
	write(t, db, "add two", func(txn *Txn) {
		require.NoError(t, txn.Put(p1))
		require.NoError(t, txn.Put(p2))
	})

	require.Equal(t, 2, db.Count(PersonType))
	require.Equal(t, 0, db.Count(NoteType))
	require.True(t, db.Has(PersonType, p1.Handle))
	require.False(t, db.Has(PersonType, NewHandle()))

	// UUIDv7 handles sort in creation order
	require.Equal(t, []Handle{p1.Handle, p2.Handle}, db.Handles(PersonType))
}

func TestSingleActiveTxn(t *testing.T) {
	db := setupTestDB(t)

	txn, err := db.Begin("first")
	require.NoError(t, err)

	_, err = db.Begin("second")
	require.ErrorIs(t, err, ErrTxnActive)

	_, err = db.Undo()
	require.ErrorIs(t, err, ErrTxnActive)

	txn.Abort()

	txn2, err := db.Begin("after abort")
	require.NoError(t, err)
	require.NoError(t, txn2.Commit())
}

func TestClosedTxn(t *testing.T) {
	db := setupTestDB(t)

	txn, err := db.Begin("t")
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	require.ErrorIs(t, txn.Put(newPerson("A", "A")), ErrTxnClosed)
	require.ErrorIs(t, txn.Delete(PersonType, NewHandle()), ErrTxnClosed)
	require.ErrorIs(t, txn.Commit(), ErrTxnClosed)
	txn.Abort() // no-op
}

func TestAbortDiscardsWrites(t *testing.T) {
	db := setupTestDB(t)

	p := newPerson("Anna", "Smith")
	txn, err := db.Begin("doomed")
	require.NoError(t, err)
	require.NoError(t, txn.Put(p))
	txn.Abort()

	require.False(t, db.Has(PersonType, p.Handle))
	require.False(t, db.UndoAvailable())
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.gendb")

	db := openTestDB(t, path)
	p := newPerson("Anna", "Smith")
	write(t, db, "add", func(txn *Txn) {
		require.NoError(t, txn.Put(p))
	})
	db.Close()

	db2 := openTestDB(t, path)
	got := getPerson(t, db2, p.Handle)
	require.Equal(t, "Smith", got.PrimaryName.Surname)
	require.Equal(t, "I0000", got.ID)
	db2.Close()
}

func TestUnsupportedFormatVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.gendb")

	db := openTestDB(t, path)
	db.Close()

	bdb, err := bbolt.Open(path, 0666, nil)
	require.NoError(t, err)
	require.NoError(t, bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(metaBucket.Raw()).Put(formatVersionKey, []byte{99})
	}))
	require.NoError(t, bdb.Close())

	_, err = Open(path, Options{IsTesting: true})
	var verr *VersionError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, uint64(99), verr.Stored)
	require.Equal(t, uint64(storeFormatVersion), verr.Supported)
}

func TestListeners(t *testing.T) {
	db := setupTestDB(t)

	var got []Change
	db.Listen(PersonType, func(chg Change) {
		got = append(got, chg)
	})

	p := newPerson("Anna", "Smith")
	write(t, db, "add", func(txn *Txn) {
		require.NoError(t, txn.Put(p))
	})
	require.Equal(t, []Change{{PersonType, OpAdd, p.Handle}}, got)

	got = nil
	write(t, db, "update", func(txn *Txn) {
		p.PrimaryName.First = "Anne"
		require.NoError(t, txn.Put(p))
	})
	require.Equal(t, []Change{{PersonType, OpUpdate, p.Handle}}, got)

	got = nil
	write(t, db, "delete", func(txn *Txn) {
		require.NoError(t, txn.Delete(PersonType, p.Handle))
	})
	require.Equal(t, []Change{{PersonType, OpDelete, p.Handle}}, got)
}

func TestBatchSuppressesNotifications(t *testing.T) {
	db := setupTestDB(t)

	var got []Change
	db.Listen(PersonType, func(chg Change) {
		got = append(got, chg)
	})

	txn, err := db.BeginBatch("bulk import")
	require.NoError(t, err)
	require.NoError(t, txn.Put(newPerson("A", "A")))
	require.NoError(t, txn.Put(newPerson("B", "B")))
	require.NoError(t, txn.Commit())

	require.Empty(t, got)
	require.Equal(t, 2, db.Count(PersonType))
	require.True(t, db.UndoAvailable()) // batch txns are still undoable
}

func TestNoopPutSkipped(t *testing.T) {
	db := setupTestDB(t)

	p := newPerson("Anna", "Smith")
	write(t, db, "add", func(txn *Txn) {
		require.NoError(t, txn.Put(p))
		require.NoError(t, txn.Put(p)) // identical within the same txn
	})

	require.Len(t, db.History(), 1)
}

func TestTxnReadsOwnWrites(t *testing.T) {
	db := setupTestDB(t)

	p := newPerson("Anna", "Smith")
	write(t, db, "add and read back", func(txn *Txn) {
		require.NoError(t, txn.Put(p))

		obj, err := txn.Get(PersonType, p.Handle)
		require.NoError(t, err)
		require.NotNil(t, obj)
		require.Equal(t, "Smith", obj.(*Person).PrimaryName.Surname)

		obj, err = txn.GetByID(PersonType, p.ID)
		require.NoError(t, err)
		require.NotNil(t, obj)
	})
}

func TestReindex(t *testing.T) {
	db := setupTestDB(t)

	p := newPerson("Anna", "Smith")
	n := newNote("remember this")
	p.NoteList = []Handle{n.Handle}
	write(t, db, "add", func(txn *Txn) {
		require.NoError(t, txn.Put(n))
		require.NoError(t, txn.Put(p))
	})

	require.NoError(t, db.Reindex())

	obj, err := db.GetByID(PersonType, p.ID)
	require.NoError(t, err)
	require.NotNil(t, obj)

	require.Equal(t, []ObjRef{{PersonType, p.Handle}}, db.Backlinks(n.Handle))

	c, err := db.NameCursor()
	require.NoError(t, err)
	defer c.Close()
	require.True(t, c.First())
	require.Equal(t, p.Handle, c.Handle())
}

func TestInvalidHandleRejected(t *testing.T) {
	db := setupTestDB(t)

	txn, err := db.Begin("bad handle")
	require.NoError(t, err)
	defer txn.Abort()

	p := &Person{PrimaryName: Name{Surname: "Smith"}}
	p.Handle = "not-a-handle"
	err = txn.Put(p)
	var terr *TableError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, PersonType, terr.Type)
}
