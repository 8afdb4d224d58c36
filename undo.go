package gendb

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// The undo log lives in memory and holds the raw before/after values of every
// committed transaction. Replaying raw values restores both the record bytes
// and the derived buckets exactly, because the index key records are stored
// inside the value and re-derivable from it.

type loggedTxn struct {
	time        time.Time
	description string
	entries     []txnEntry
}

type undoHistory struct {
	txns []*loggedTxn
	pos  int // number of applied transactions; txns[pos:] are redoable
}

func (h *undoHistory) record(t *loggedTxn) {
	h.txns = append(h.txns[:h.pos], t)
	h.pos = len(h.txns)
}

// HistoryEntry describes one transaction in the undo history.
type HistoryEntry struct {
	Time        time.Time
	Description string
	Applied     bool
}

// History returns the undo history, oldest first. Entries past the current
// position are redoable rather than applied.
func (db *DB) History() []HistoryEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]HistoryEntry, 0, len(db.history.txns))
	for i, t := range db.history.txns {
		out = append(out, HistoryEntry{t.time, t.description, i < db.history.pos})
	}
	return out
}

func (db *DB) UndoAvailable() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.history.pos > 0
}

func (db *DB) RedoAvailable() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.history.pos < len(db.history.txns)
}

// ClearHistory drops the undo log, e.g. after a bulk import that should not
// be unwound step by step.
func (db *DB) ClearHistory() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.history = undoHistory{}
}

// Undo reverts the most recent applied transaction. It reports false when
// there is nothing to undo, and fails with ErrTxnActive while a transaction
// is open.
func (db *DB) Undo() (bool, error) {
	return db.unwind(-1)
}

// Redo re-applies the most recently undone transaction.
func (db *DB) Redo() (bool, error) {
	return db.unwind(+1)
}

func (db *DB) unwind(dir int) (bool, error) {
	db.mu.Lock()
	if db.activeTxn != nil {
		db.mu.Unlock()
		return false, ErrTxnActive
	}

	var t *loggedTxn
	if dir < 0 {
		if db.history.pos == 0 {
			db.mu.Unlock()
			return false, nil
		}
		t = db.history.txns[db.history.pos-1]
	} else {
		if db.history.pos >= len(db.history.txns) {
			db.mu.Unlock()
			return false, nil
		}
		t = db.history.txns[db.history.pos]
	}

	err := db.bdb.Update(func(btx *bbolt.Tx) error {
		if dir < 0 {
			for i := len(t.entries) - 1; i >= 0; i-- {
				e := t.entries[i]
				if err := applyRawValue(btx, tableFor(e.typ), e.handle, e.old); err != nil {
					return err
				}
			}
		} else {
			for _, e := range t.entries {
				if err := applyRawValue(btx, tableFor(e.typ), e.handle, e.new); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		db.mu.Unlock()
		return false, fmt.Errorf("gendb: undo: %w", err)
	}

	db.history.pos += dir
	db.mu.Unlock()
	db.generation.Add(1)
	if db.verbose {
		if dir < 0 {
			db.logf("db: UNDO %q", t.description)
		} else {
			db.logf("db: REDO %q", t.description)
		}
	}
	db.notify(unwoundChanges(t.entries, dir))
	return true, nil
}

// applyRawValue stores (or removes, when newRaw is nil) a raw value under the
// key and reconciles the derived buckets from the stored index key records.
func applyRawValue(btx *bbolt.Tx, tbl *table, h Handle, newRaw []byte) error {
	tableRoot := tbl.rootBucketIn(btx)
	dataBuck := tbl.dataBucketIn(tableRoot)
	keyRaw := h.raw()

	oldRaw := dataBuck.Get(keyRaw)

	var newRows []indexRow
	if newRaw != nil {
		var nw value
		if err := nw.decode(newRaw); err != nil {
			return tableErrf(tbl.typ, h, err, "replay")
		}
		if err := decodeIndexKeys(nw.Index, func(ord uint64, key []byte) {
			newRows = append(newRows, indexRow{ord, key})
		}); err != nil {
			return tableErrf(tbl.typ, h, err, "replay index keys")
		}
	}

	if oldRaw != nil {
		var old value
		if err := old.decode(oldRaw); err != nil {
			return tableErrf(tbl.typ, h, err, "replay")
		}
		removed := func(ord uint64, key []byte) {
			idx := indexByOrd(ord)
			ensure(idx.bucketIn(btx, tableRoot).Delete(key))
		}
		if err := findRemovedIndexKeys(old.Index, newRows, removed); err != nil {
			return tableErrf(tbl.typ, h, err, "replay index keys")
		}
	}
	for _, row := range newRows {
		idx := indexByOrd(row.Ord)
		buck := idx.bucketIn(btx, tableRoot)
		if idx.unique {
			ensure(buck.Put(row.Key, keyRaw))
		} else {
			ensure(buck.Put(row.Key, emptyIndexValue))
		}
	}

	if newRaw != nil {
		ensure(dataBuck.Put(keyRaw, newRaw))
	} else if oldRaw != nil {
		ensure(dataBuck.Delete(keyRaw))
	}
	return nil
}

func unwoundChanges(entries []txnEntry, dir int) []Change {
	changes := make([]Change, 0, len(entries))
	if dir < 0 {
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			var op Op
			switch {
			case e.old == nil:
				op = OpDelete // the add was unwound
			case e.new == nil:
				op = OpAdd
			default:
				op = OpUpdate
			}
			changes = append(changes, Change{e.typ, op, e.handle})
		}
	} else {
		changes = committedChanges(entries)
	}
	return changes
}
