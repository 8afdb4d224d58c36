package gendb

import (
	"fmt"
	"regexp"

	"go.etcd.io/bbolt"
)

// Gramps IDs are human-readable per-type sequential identifiers like "I0001".
// Each table keeps an ID→handle map; minting scans that map for the lowest
// unused number, starting from a per-type hint that only moves forward, so
// repeated minting is O(1) amortized.

var idFormatRx = regexp.MustCompile(`^[^%]*%0\d+d$`)

func validatedIDFormat(val, fallback string) string {
	if val == "" || !idFormatRx.MatchString(val) {
		return fallback
	}
	return val
}

func (db *DB) formatID(typ ObjType, n int) string {
	return fmt.Sprintf(db.idFormats[typ], n)
}

// NextID returns the next available Gramps ID for the type. The returned ID
// is not reserved; it stays available until a record carrying it is committed.
func (db *DB) NextID(typ ObjType) (string, error) {
	var id string
	err := db.bdb.View(func(btx *bbolt.Tx) error {
		id = db.nextIDIn(btx, typ)
		return nil
	})
	return id, err
}

// NextID is the transactional variant: it sees IDs claimed by records already
// written in this transaction.
func (txn *Txn) NextID(typ ObjType) (string, error) {
	if txn.state != txnActive {
		return "", ErrTxnClosed
	}
	return txn.db.nextIDIn(txn.btx, typ), nil
}

func (db *DB) nextIDIn(btx *bbolt.Tx, typ ObjType) string {
	tbl := tableFor(typ)
	ids := nonNil(tbl.rootBucketIn(btx).Bucket(idsBucket.Raw()))

	db.idHintMu.Lock()
	defer db.idHintMu.Unlock()

	n := db.idHints[typ]
	id := db.formatID(typ, n)
	for ids.Get([]byte(id)) != nil {
		n++
		id = db.formatID(typ, n)
	}
	db.idHints[typ] = n + 1
	return id
}
