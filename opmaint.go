package gendb

import "go.etcd.io/bbolt"

// Reindex drops every derived bucket and rebuilds it from the stored records.
// The ID map, the orderings and the reference map are all derived data; this
// is the recovery path when they are suspected to be inconsistent.
func (db *DB) Reindex() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.activeTxn != nil {
		return ErrTxnActive
	}

	err := db.bdb.Update(func(btx *bbolt.Tx) error {
		if err := btx.DeleteBucket(refsBucket.Raw()); err != nil {
			return err
		}
		if _, err := btx.CreateBucket(refsBucket.Raw()); err != nil {
			return err
		}
		for typ := PersonType; typ <= maxObjType; typ++ {
			if err := db.reindexTable(btx, tables[typ]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.generation.Add(1)
	if db.verbose {
		db.logf("db: REINDEX done")
	}
	return nil
}

func (db *DB) reindexTable(btx *bbolt.Tx, tbl *table) error {
	tableRoot := tbl.rootBucketIn(btx)
	for _, idx := range tbl.indices {
		if idx.global {
			continue
		}
		if err := tableRoot.DeleteBucket(idx.buck.Raw()); err != nil {
			return err
		}
		if _, err := tableRoot.CreateBucket(idx.buck.Raw()); err != nil {
			return err
		}
	}

	dataBuck := tbl.dataBucketIn(tableRoot)

	// Collect keys up front; re-putting values while iterating the same
	// bucket is not allowed.
	var keys [][]byte
	if err := dataBuck.ForEach(func(k, v []byte) error {
		keys = append(keys, cloneBytes(k))
		return nil
	}); err != nil {
		return err
	}

	for _, keyRaw := range keys {
		h := handleFromRaw(keyRaw)
		raw := dataBuck.Get(keyRaw)
		var vle value
		if err := vle.decode(raw); err != nil {
			return tableErrf(tbl.typ, h, err, "reindex")
		}
		obj, err := tbl.decodeRow(h, &vle)
		if err != nil {
			return err
		}

		ib := makeIndexBuilder(keyRaw)
		db.buildIndexRows(obj, &ib)

		valueRaw := reserveValueHeader(nil)
		valueRaw = appendRaw(valueRaw, vle.Data)
		indexOff := len(valueRaw)
		valueRaw = appendIndexKeys(valueRaw, ib.rows)
		valueRaw = putValueHeader(valueRaw, vle.Flags, vle.SchemaVer, vle.ModCount, indexOff)

		if err := dataBuck.Put(keyRaw, valueRaw); err != nil {
			return err
		}
		for _, row := range ib.rows {
			idx := indexByOrd(row.Ord)
			buck := idx.bucketIn(btx, tableRoot)
			if idx.unique {
				if err := buck.Put(row.Key, keyRaw); err != nil {
					return err
				}
			} else {
				if err := buck.Put(row.Key, emptyIndexValue); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
