package gendb

import (
	"bytes"
	"slices"

	"go.etcd.io/bbolt"
)

// The reference map is a persistent backlink index. Every stored record
// contributes one entry per distinct reference it holds, keyed
// target + 0x00 + source type + source handle, so all referrers of a handle
// sit under one prefix regardless of their type.

// refKey builds the reference map key for one (target, source) pair.
func refKey(target Handle, src ObjRef) []byte {
	key := make([]byte, 0, handleLen+2+handleLen)
	key = append(key, target.raw()...)
	key = append(key, 0, byte(src.Type))
	key = append(key, src.Handle.raw()...)
	return key
}

// Backlinks returns the records that reference h, optionally restricted to
// the given source types. Order is (source type, source handle).
func (db *DB) Backlinks(h Handle, filter ...ObjType) []ObjRef {
	var refs []ObjRef
	ensure(db.bdb.View(func(btx *bbolt.Tx) error {
		refs = backlinksIn(btx, h, filter)
		return nil
	}))
	return refs
}

// Backlinks through the transaction: entries added or removed by earlier
// writes in this transaction are reflected.
func (txn *Txn) Backlinks(h Handle, filter ...ObjType) ([]ObjRef, error) {
	if txn.state != txnActive {
		return nil, ErrTxnClosed
	}
	return backlinksIn(txn.btx, h, filter), nil
}

func backlinksIn(btx *bbolt.Tx, h Handle, filter []ObjType) []ObjRef {
	refs := nonNil(btx.Bucket(refsBucket.Raw()))

	prefix := make([]byte, 0, handleLen+1)
	prefix = append(prefix, h.raw()...)
	prefix = append(prefix, 0)

	var out []ObjRef
	c := refs.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		_, src := parseRefKey(k)
		if len(filter) > 0 && !slices.Contains(filter, src.Type) {
			continue
		}
		out = append(out, src)
	}
	return out
}

// ReplaceHandleReference rewrites every stored reference to old so that it
// points at new instead, re-storing each affected record. Both handles must
// be of the same type; new must exist.
func (txn *Txn) ReplaceHandleReference(typ ObjType, old, new Handle) error {
	if txn.state != txnActive {
		return ErrTxnClosed
	}
	if !txn.hasIn(typ, new) {
		return tableErrf(typ, new, nil, "replacement target does not exist")
	}

	referrers := backlinksIn(txn.btx, old, nil)
	for _, src := range referrers {
		obj, err := getIn(txn.btx, src.Type, src.Handle)
		if err != nil {
			return err
		}
		if obj == nil {
			continue
		}
		if obj.ReplaceReferences(old, new) == 0 {
			continue
		}
		if err := txn.Put(obj); err != nil {
			return err
		}
	}
	return nil
}

func (txn *Txn) hasIn(typ ObjType, h Handle) bool {
	tbl := tableFor(typ)
	return tbl.dataBucketIn(tbl.rootBucketIn(txn.btx)).Get(h.raw()) != nil
}
