package gendb

import (
	"bytes"

	"go.etcd.io/bbolt"
)

// Put writes a record. The Changed timestamp is set to the transaction start
// time; an empty ID is minted; an ID already owned by a different record is
// substituted with a fresh one and reported via Substitutions. Re-putting a
// record unmodified within the same transaction is skipped entirely; across
// transactions the refreshed timestamp makes it a real write.
func (txn *Txn) Put(obj Object) error {
	if txn.state != txnActive {
		return ErrTxnClosed
	}
	tbl := tableFor(obj.ObjType())
	hdr := obj.header()
	if !hdr.Handle.isValid() {
		return tableErrf(tbl.typ, hdr.Handle, nil, "invalid handle")
	}

	db := txn.db
	tableRoot := tbl.rootBucketIn(txn.btx)
	dataBuck := tbl.dataBucketIn(tableRoot)
	keyRaw := hdr.Handle.raw()

	oldRaw := dataBuck.Get(keyRaw)
	var old value
	if oldRaw != nil {
		if err := old.decode(oldRaw); err != nil {
			return tableErrf(tbl.typ, hdr.Handle, err, "put")
		}
	}

	if err := txn.resolveID(tbl, hdr); err != nil {
		return err
	}
	hdr.Changed = txn.startTime.Unix()

	ib := makeIndexBuilder(keyRaw)
	db.buildIndexRows(obj, &ib)

	valueRaw := reserveValueHeader(nil)
	valueRaw, err := tbl.encodeRow(valueRaw, obj)
	if err != nil {
		return err
	}
	indexOff := len(valueRaw)
	valueRaw = appendIndexKeys(valueRaw, ib.rows)

	newModCount := uint64(0)
	if oldRaw != nil {
		dataUnchanged := old.SchemaVer == tbl.latestSchemaVer &&
			bytes.Equal(old.Data, valueRaw[maxValueHeaderSize:indexOff])
		indexUnchanged := bytes.Equal(old.Index, valueRaw[indexOff:])
		if dataUnchanged && indexUnchanged {
			if db.verbose {
				db.logf("db: PUT.NOOP %s/%s", tbl.typ, hdr.Handle)
			}
			return nil
		}
		newModCount = old.ModCount
		if !dataUnchanged {
			newModCount++
		}
	}
	valueRaw = putValueHeader(valueRaw, vfDefault, tbl.latestSchemaVer, newModCount, indexOff)

	ensure(dataBuck.Put(keyRaw, valueRaw))
	if oldRaw != nil {
		del := txn.indexDeleter(tableRoot)
		if err := findRemovedIndexKeys(old.Index, ib.rows, del); err != nil {
			return tableErrf(tbl.typ, hdr.Handle, err, "stored index keys")
		}
	}
	txn.putIndexRows(tableRoot, keyRaw, ib.rows)

	txn.entries = append(txn.entries, txnEntry{tbl.typ, hdr.Handle, cloneBytes(oldRaw), valueRaw})

	src := ObjRef{tbl.typ, hdr.Handle}
	for _, ref := range obj.References() {
		txn.addPendingRef(src, ref)
	}

	if db.verbose {
		db.logf("db: PUT %s/%s id=%s (%d bytes, %d index rows)", tbl.typ, hdr.Handle, hdr.ID, len(valueRaw), len(ib.rows))
	}
	return nil
}

// resolveID mints or substitutes the Gramps ID so the ID map stays unique.
func (txn *Txn) resolveID(tbl *table, hdr *ObjectHeader) error {
	db := txn.db
	if hdr.ID == "" {
		hdr.ID = db.nextIDIn(txn.btx, tbl.typ)
		return nil
	}
	ids := nonNil(tbl.rootBucketIn(txn.btx).Bucket(idsBucket.Raw()))
	owner := ids.Get([]byte(hdr.ID))
	if owner != nil && handleFromRaw(owner) != hdr.Handle {
		requested := hdr.ID
		hdr.ID = db.nextIDIn(txn.btx, tbl.typ)
		txn.substituted = append(txn.substituted, IDSubstitution{tbl.typ, hdr.Handle, requested, hdr.ID})
		if db.verbose {
			db.logf("db: PUT.SUBSTID %s/%s %s => %s", tbl.typ, hdr.Handle, requested, hdr.ID)
		}
	}
	return nil
}

func (txn *Txn) putIndexRows(tableRoot *bbolt.Bucket, dataKey []byte, rows []indexRow) {
	for _, row := range rows {
		idx := indexByOrd(row.Ord)
		buck := idx.bucketIn(txn.btx, tableRoot)
		if idx.unique {
			ensure(buck.Put(row.Key, dataKey))
		} else {
			ensure(buck.Put(row.Key, emptyIndexValue))
		}
	}
}

func (txn *Txn) indexDeleter(tableRoot *bbolt.Bucket) func(ord uint64, key []byte) {
	return func(ord uint64, key []byte) {
		idx := indexByOrd(ord)
		ensure(idx.bucketIn(txn.btx, tableRoot).Delete(key))
	}
}

var emptyIndexValue = []byte{}
