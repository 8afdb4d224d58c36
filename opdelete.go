package gendb

// Delete removes a record and its derived entries. A record that other
// records still reference cannot be deleted; the caller gets an
// IntegrityError listing the referrers and must detach or delete them first.
// Deleting a record that doesn't exist is a no-op.
func (txn *Txn) Delete(typ ObjType, h Handle) error {
	if txn.state != txnActive {
		return ErrTxnClosed
	}
	tbl := tableFor(typ)
	tableRoot := tbl.rootBucketIn(txn.btx)
	dataBuck := tbl.dataBucketIn(tableRoot)
	keyRaw := h.raw()

	oldRaw := dataBuck.Get(keyRaw)
	if oldRaw == nil {
		if txn.db.verbose {
			txn.db.logf("db: DELETE.NOOP %s/%s", typ, h)
		}
		return nil
	}

	if refs := backlinksIn(txn.btx, h, nil); len(refs) > 0 {
		return &IntegrityError{typ, h, refs, "record is still referenced"}
	}

	var old value
	if err := old.decode(oldRaw); err != nil {
		return tableErrf(typ, h, err, "delete")
	}
	del := txn.indexDeleter(tableRoot)
	if err := decodeIndexKeys(old.Index, del); err != nil {
		return tableErrf(typ, h, err, "stored index keys")
	}
	entry := txnEntry{typ, h, cloneBytes(oldRaw), nil}
	ensure(dataBuck.Delete(keyRaw))

	txn.entries = append(txn.entries, entry)
	if txn.db.verbose {
		txn.db.logf("db: DELETE %s/%s", typ, h)
	}
	return nil
}
