package gendb

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

type txnState int

const (
	txnActive txnState = iota + 1
	txnCommitted
	txnAborted
)

// Txn is a read-write transaction. Only one may be active at a time; Begin
// returns ErrTxnActive while another one is open. Every mutation goes through
// a Txn, and a committed Txn becomes one undoable step.
type Txn struct {
	db          *DB
	btx         *bbolt.Tx
	description string
	batch       bool
	startTime   time.Time
	state       txnState

	entries     []txnEntry
	pending     []pendingRef
	pendingSeen map[pendingRef]bool
	substituted []IDSubstitution
}

// txnEntry records one mutation as raw stored values, old and new, either of
// which may be nil. Replaying them (in either direction) restores records and
// derived buckets byte for byte.
type txnEntry struct {
	typ    ObjType
	handle Handle
	old    []byte
	new    []byte
}

type pendingRef struct {
	src ObjRef
	dst ObjRef
}

// IDSubstitution reports that a record asked for an ID already owned by
// another record and was assigned a fresh one instead.
type IDSubstitution struct {
	Type      ObjType
	Handle    Handle
	Requested string
	Assigned  string
}

// Begin opens a transaction. The description is kept for the undo history.
func (db *DB) Begin(description string) (*Txn, error) {
	return db.begin(description, false)
}

// BeginBatch opens a transaction that suppresses per-record change
// notifications on commit. Bulk imports use this; listeners are expected to
// do a full refresh afterwards. Batch transactions are still undoable.
func (db *DB) BeginBatch(description string) (*Txn, error) {
	return db.begin(description, true)
}

func (db *DB) begin(description string, batch bool) (*Txn, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.activeTxn != nil {
		return nil, ErrTxnActive
	}

	btx, err := db.bdb.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("gendb: begin: %w", err)
	}

	txn := &Txn{
		db:          db,
		btx:         btx,
		description: description,
		batch:       batch,
		startTime:   time.Now(),
		state:       txnActive,
	}
	db.activeTxn = txn
	if db.verbose {
		db.logf("db: BEGIN %q batch=%v", description, batch)
	}
	return txn, nil
}

func (txn *Txn) Description() string {
	return txn.description
}

// Substitutions returns the ID substitutions performed so far, for reporting
// to the user after an import.
func (txn *Txn) Substitutions() []IDSubstitution {
	return txn.substituted
}

func (txn *Txn) addPendingRef(src, dst ObjRef) {
	p := pendingRef{src, dst}
	if txn.pendingSeen[p] {
		return
	}
	if txn.pendingSeen == nil {
		txn.pendingSeen = make(map[pendingRef]bool)
	}
	txn.pendingSeen[p] = true
	txn.pending = append(txn.pending, p)
}

// validateRefs re-checks every reference written during the transaction
// against the final state, so records may be stored in any order as long as
// the set is closed by commit time. Only references still present in the
// reference map count: a reference retired by a later re-put, or whose source
// was deleted, is no longer anyone's problem.
func (txn *Txn) validateRefs() []pendingRef {
	refs := nonNil(txn.btx.Bucket(refsBucket.Raw()))
	var dangling []pendingRef
	for _, p := range txn.pending {
		if refs.Get(refKey(p.dst.Handle, p.src)) == nil {
			continue
		}
		tbl := tableFor(p.dst.Type)
		if tbl.dataBucketIn(tbl.rootBucketIn(txn.btx)).Get(p.dst.Handle.raw()) == nil {
			dangling = append(dangling, p)
		}
	}
	return dangling
}

// Commit validates referential integrity and makes the transaction durable.
// On a validation failure the transaction is aborted and the store is left
// exactly as it was before Begin.
func (txn *Txn) Commit() error {
	if txn.state != txnActive {
		return ErrTxnClosed
	}

	if dangling := txn.validateRefs(); len(dangling) > 0 {
		first := dangling[0].src
		refs := make([]ObjRef, 0, len(dangling))
		for _, p := range dangling {
			if p.src == first {
				refs = append(refs, p.dst)
			}
		}
		txn.Abort()
		return &IntegrityError{first.Type, first.Handle, refs, "reference to a nonexistent record"}
	}

	err := txn.btx.Commit()
	if err != nil {
		txn.state = txnAborted
	} else {
		txn.state = txnCommitted
	}
	db := txn.db
	db.mu.Lock()
	db.activeTxn = nil
	if err == nil && len(txn.entries) > 0 {
		db.history.record(&loggedTxn{
			time:        txn.startTime,
			description: txn.description,
			entries:     txn.entries,
		})
	}
	db.mu.Unlock()
	if err != nil {
		return fmt.Errorf("gendb: commit: %w", err)
	}

	if len(txn.entries) > 0 {
		db.generation.Add(1)
	}
	if db.verbose {
		db.logf("db: COMMIT %q entries=%d", txn.description, len(txn.entries))
	}
	if !txn.batch {
		db.notify(committedChanges(txn.entries))
	}
	return nil
}

// Abort discards the transaction. Aborting a closed transaction is a no-op.
func (txn *Txn) Abort() {
	if txn.state != txnActive {
		return
	}
	ensure(txn.btx.Rollback())
	txn.state = txnAborted
	db := txn.db
	db.mu.Lock()
	db.activeTxn = nil
	db.mu.Unlock()
	if db.verbose {
		db.logf("db: ABORT %q", txn.description)
	}
}

func committedChanges(entries []txnEntry) []Change {
	changes := make([]Change, 0, len(entries))
	for _, e := range entries {
		var op Op
		switch {
		case e.old == nil:
			op = OpAdd
		case e.new == nil:
			op = OpDelete
		default:
			op = OpUpdate
		}
		changes = append(changes, Change{e.typ, op, e.handle})
	}
	return changes
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
