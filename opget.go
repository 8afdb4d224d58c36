package gendb

import "go.etcd.io/bbolt"

// Get returns the record by handle, or nil when it doesn't exist.
func (db *DB) Get(typ ObjType, h Handle) (Object, error) {
	var obj Object
	err := db.bdb.View(func(btx *bbolt.Tx) error {
		var err error
		obj, err = getIn(btx, typ, h)
		return err
	})
	return obj, err
}

// Get reads through the transaction, so records written earlier in the same
// transaction are visible.
func (txn *Txn) Get(typ ObjType, h Handle) (Object, error) {
	if txn.state != txnActive {
		return nil, ErrTxnClosed
	}
	return getIn(txn.btx, typ, h)
}

func getIn(btx *bbolt.Tx, typ ObjType, h Handle) (Object, error) {
	tbl := tableFor(typ)
	raw := tbl.dataBucketIn(tbl.rootBucketIn(btx)).Get(h.raw())
	if raw == nil {
		return nil, nil
	}
	return decodeStored(tbl, h, raw)
}

func decodeStored(tbl *table, h Handle, raw []byte) (Object, error) {
	var vle value
	if err := vle.decode(raw); err != nil {
		return nil, tableErrf(tbl.typ, h, err, "get")
	}
	return tbl.decodeRow(h, &vle)
}

// GetByID looks a record up by its Gramps ID, or nil when no record owns it.
func (db *DB) GetByID(typ ObjType, id string) (Object, error) {
	var obj Object
	err := db.bdb.View(func(btx *bbolt.Tx) error {
		var err error
		obj, err = getByIDIn(btx, typ, id)
		return err
	})
	return obj, err
}

func (txn *Txn) GetByID(typ ObjType, id string) (Object, error) {
	if txn.state != txnActive {
		return nil, ErrTxnClosed
	}
	return getByIDIn(txn.btx, typ, id)
}

func getByIDIn(btx *bbolt.Tx, typ ObjType, id string) (Object, error) {
	tbl := tableFor(typ)
	ids := nonNil(tbl.rootBucketIn(btx).Bucket(idsBucket.Raw()))
	hraw := ids.Get([]byte(id))
	if hraw == nil {
		return nil, nil
	}
	return getIn(btx, typ, handleFromRaw(hraw))
}

// Has reports whether a record with the handle exists.
func (db *DB) Has(typ ObjType, h Handle) bool {
	var found bool
	ensure(db.bdb.View(func(btx *bbolt.Tx) error {
		tbl := tableFor(typ)
		found = tbl.dataBucketIn(tbl.rootBucketIn(btx)).Get(h.raw()) != nil
		return nil
	}))
	return found
}

// Count returns the number of records of the type.
func (db *DB) Count(typ ObjType) int {
	var n int
	ensure(db.bdb.View(func(btx *bbolt.Tx) error {
		tbl := tableFor(typ)
		n = tbl.dataBucketIn(tbl.rootBucketIn(btx)).Stats().KeyN
		return nil
	}))
	return n
}

// Handles returns a snapshot of every handle of the type, in handle order.
func (db *DB) Handles(typ ObjType) []Handle {
	var handles []Handle
	ensure(db.bdb.View(func(btx *bbolt.Tx) error {
		tbl := tableFor(typ)
		return tbl.dataBucketIn(tbl.rootBucketIn(btx)).ForEach(func(k, v []byte) error {
			handles = append(handles, Handle(string(k)))
			return nil
		})
	}))
	return handles
}
