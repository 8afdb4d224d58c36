package gendb

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const storeFormatVersion = 1

var formatVersionKey = []byte("format_version")

type DB struct {
	bdb     *bbolt.DB
	logf    func(format string, args ...any)
	verbose bool

	coll    *collate.Collator
	collMu  sync.Mutex
	collBuf collate.Buffer

	idFormats [maxObjType + 1]string
	idHints   [maxObjType + 1]int
	idHintMu  sync.Mutex

	// generation is bumped by every mutating commit; open cursors compare it
	// against the value they were created with.
	generation atomic.Uint64

	mu        sync.Mutex // guards activeTxn and history
	activeTxn *Txn
	history   undoHistory

	listenerMu sync.Mutex
	listeners  [maxObjType + 1][]ListenerFunc
}

type Options struct {
	Logf      func(format string, args ...any)
	Verbose   bool
	IsTesting bool
	MmapSize  int

	// Locale selects the collation used for the surname ordering. The zero
	// value picks the root collation.
	Locale language.Tag

	// IDFormats overrides the per-type ID patterns, e.g. "I%04d" for people.
	// Entries that don't end in a %0Nd verb are ignored.
	IDFormats map[ObjType]string
}

func Open(path string, opt Options) (*DB, error) {
	bopt := &bbolt.Options{
		Timeout: 10 * time.Second,
	}
	*bopt = *bbolt.DefaultOptions
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("gendb: %w", err)
	}

	db := &DB{
		bdb:     bdb,
		logf:    opt.Logf,
		verbose: opt.Verbose,
		coll:    collate.New(opt.Locale),
	}
	if db.logf == nil {
		db.logf = func(format string, args ...any) {}
	}
	for typ := PersonType; typ <= maxObjType; typ++ {
		db.idFormats[typ] = validatedIDFormat(opt.IDFormats[typ], tables[typ].idFormat)
	}

	err = bdb.Update(func(btx *bbolt.Tx) error {
		meta, err := btx.CreateBucketIfNotExists(metaBucket.Raw())
		if err != nil {
			return err
		}
		if raw := meta.Get(formatVersionKey); raw != nil {
			stored, _ := binary.Uvarint(raw)
			if stored != storeFormatVersion {
				return &VersionError{Stored: stored, Supported: storeFormatVersion}
			}
		} else {
			var buf [binary.MaxVarintLen64]byte
			n := binary.PutUvarint(buf[:], storeFormatVersion)
			if err := meta.Put(formatVersionKey, buf[:n]); err != nil {
				return err
			}
		}
		if _, err := btx.CreateBucketIfNotExists(refsBucket.Raw()); err != nil {
			return err
		}
		for typ := PersonType; typ <= maxObjType; typ++ {
			if err := prepareTable(btx, tables[typ]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	return db, nil
}

func prepareTable(btx *bbolt.Tx, tbl *table) error {
	root, err := btx.CreateBucketIfNotExists(tbl.buck.Raw())
	if err != nil {
		return err
	}
	if _, err := root.CreateBucketIfNotExists(dataBucket.Raw()); err != nil {
		return err
	}
	for _, idx := range tbl.indices {
		if idx.global {
			continue
		}
		if _, err := root.CreateBucketIfNotExists(idx.buck.Raw()); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) Bolt() *bbolt.DB {
	return db.bdb
}

func (db *DB) Close() {
	err := db.bdb.Close()
	if err != nil {
		panic(fmt.Errorf("gendb: closing: %w", err))
	}
}

// collationKey turns a surname into its sort key under the configured locale.
// The collator isn't safe for concurrent use, and its buffer gets reset, so
// the result is cloned under the lock.
func (db *DB) collationKey(s string) []byte {
	db.collMu.Lock()
	defer db.collMu.Unlock()
	db.collBuf.Reset()
	key := db.coll.KeyFromString(&db.collBuf, s)
	out := make([]byte, len(key))
	copy(out, key)
	return out
}
