package gendb

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

type bucketName []byte

func makeBucketName(name string) bucketName {
	return bucketName(name)
}

func (bn bucketName) String() string {
	return string(bn)
}

func (bn bucketName) Raw() []byte {
	return []byte(bn)
}

var (
	dataBucket    = makeBucketName("data")
	idsBucket     = makeBucketName("i_ids")
	surnameBucket = makeBucketName("i_surname")
	parentBucket  = makeBucketName("i_parent")
	refsBucket    = makeBucketName("refs")
	metaBucket    = makeBucketName("meta")
)

// index describes one derived ordering. The schema is closed, so ordinals
// are static; they are what stored index key records refer to.
type index struct {
	ord    uint64
	name   string
	buck   bucketName
	unique bool // value is the data key instead of being part of the key
	global bool // lives in a top-level bucket instead of under the table root
}

var (
	idsIndex     = &index{ord: 1, name: "ids", buck: idsBucket, unique: true}
	surnameIndex = &index{ord: 2, name: "surname", buck: surnameBucket}
	parentIndex  = &index{ord: 3, name: "parent", buck: parentBucket}
	refsIndex    = &index{ord: 4, name: "refs", buck: refsBucket, global: true}
)

var indicesByOrd = map[uint64]*index{
	idsIndex.ord:     idsIndex,
	surnameIndex.ord: surnameIndex,
	parentIndex.ord:  parentIndex,
	refsIndex.ord:    refsIndex,
}

func indexByOrd(ord uint64) *index {
	idx := indicesByOrd[ord]
	if idx == nil {
		panic(fmt.Errorf("unknown index ordinal %d", ord))
	}
	return idx
}

func (idx *index) bucketIn(btx *bbolt.Tx, tableRoot *bbolt.Bucket) *bbolt.Bucket {
	if idx.global {
		return nonNil(btx.Bucket(idx.buck.Raw()))
	}
	return nonNil(tableRoot.Bucket(idx.buck.Raw()))
}

type table struct {
	typ             ObjType
	buck            bucketName
	latestSchemaVer uint64
	indices         []*index
	newRow          func() Object
	idFormat        string

	// migrator upgrades a decoded record from oldVer to latestSchemaVer.
	// Records with no upgrade path are refused with a VersionError.
	migrator func(obj Object, oldVer uint64) error
}

var tables = [maxObjType + 1]*table{
	PersonType:     {typ: PersonType, latestSchemaVer: 1, indices: []*index{idsIndex, surnameIndex, refsIndex}, newRow: func() Object { return new(Person) }, idFormat: "I%04d"},
	FamilyType:     {typ: FamilyType, latestSchemaVer: 1, indices: []*index{idsIndex, refsIndex}, newRow: func() Object { return new(Family) }, idFormat: "F%04d"},
	EventType:      {typ: EventType, latestSchemaVer: 1, indices: []*index{idsIndex, refsIndex}, newRow: func() Object { return new(Event) }, idFormat: "E%04d"},
	PlaceType:      {typ: PlaceType, latestSchemaVer: 1, indices: []*index{idsIndex, parentIndex, refsIndex}, newRow: func() Object { return new(Place) }, idFormat: "P%04d"},
	SourceType:     {typ: SourceType, latestSchemaVer: 1, indices: []*index{idsIndex, refsIndex}, newRow: func() Object { return new(Source) }, idFormat: "S%04d"},
	CitationType:   {typ: CitationType, latestSchemaVer: 1, indices: []*index{idsIndex, refsIndex}, newRow: func() Object { return new(Citation) }, idFormat: "C%04d"},
	RepositoryType: {typ: RepositoryType, latestSchemaVer: 1, indices: []*index{idsIndex, refsIndex}, newRow: func() Object { return new(Repository) }, idFormat: "R%04d"},
	MediaType:      {typ: MediaType, latestSchemaVer: 1, indices: []*index{idsIndex, refsIndex}, newRow: func() Object { return new(Media) }, idFormat: "O%04d"},
	NoteType:       {typ: NoteType, latestSchemaVer: 1, indices: []*index{idsIndex, refsIndex}, newRow: func() Object { return new(Note) }, idFormat: "N%04d"},
	TagType:        {typ: TagType, latestSchemaVer: 1, indices: []*index{idsIndex, refsIndex}, newRow: func() Object { return new(Tag) }, idFormat: "T%04d"},
}

func init() {
	for typ := PersonType; typ <= maxObjType; typ++ {
		tables[typ].buck = makeBucketName(typ.String())
	}
}

func tableFor(typ ObjType) *table {
	if typ < 1 || typ > maxObjType {
		panic(fmt.Errorf("invalid object type %d", uint8(typ)))
	}
	return tables[typ]
}

func (tbl *table) rootBucketIn(btx *bbolt.Tx) *bbolt.Bucket {
	return nonNil(btx.Bucket(tbl.buck.Raw()))
}

func (tbl *table) dataBucketIn(tableRoot *bbolt.Bucket) *bbolt.Bucket {
	return nonNil(tableRoot.Bucket(dataBucket.Raw()))
}

func (tbl *table) hasIndex(idx *index) bool {
	return slices.Contains(tbl.indices, idx)
}

func (tbl *table) encodeRow(buf []byte, obj Object) ([]byte, error) {
	data, err := msgpack.Marshal(obj)
	if err != nil {
		return nil, tableErrf(tbl.typ, obj.ObjHandle(), err, "encoding")
	}
	return appendRaw(buf, data), nil
}

func (tbl *table) decodeRow(h Handle, vle *value) (Object, error) {
	obj := tbl.newRow()
	if err := msgpack.Unmarshal(vle.Data, obj); err != nil {
		return nil, tableErrf(tbl.typ, h, err, "decoding")
	}
	if vle.SchemaVer != tbl.latestSchemaVer {
		if vle.SchemaVer < tbl.latestSchemaVer && tbl.migrator != nil {
			if err := tbl.migrator(obj, vle.SchemaVer); err != nil {
				return nil, err
			}
		} else {
			return nil, &VersionError{tbl.typ, h, vle.SchemaVer, tbl.latestSchemaVer}
		}
	}
	obj.header().Handle = h
	return obj, nil
}

// indexRow is one (ordinal, key) pair contributed by a record. For unique
// indices the bucket value is the data key; for the rest the data key is the
// trailing handleLen bytes of the key itself.
type indexRow struct {
	Ord uint64
	Key []byte
}

type indexBuilder struct {
	rows    []indexRow
	dataKey []byte
}

func makeIndexBuilder(dataKey []byte) indexBuilder {
	return indexBuilder{dataKey: dataKey}
}

func (ib *indexBuilder) add(idx *index, key []byte) {
	ib.rows = append(ib.rows, indexRow{idx.ord, key})
}

// addGrouped appends a non-unique entry: group prefix, separator, data key.
func (ib *indexBuilder) addGrouped(idx *index, group []byte) {
	key := make([]byte, 0, len(group)+1+len(ib.dataKey))
	key = append(key, group...)
	key = append(key, 0)
	key = append(key, ib.dataKey...)
	ib.add(idx, key)
}

func (ib *indexBuilder) addRef(target Handle, srcType ObjType) {
	key := make([]byte, 0, handleLen+2+len(ib.dataKey))
	key = append(key, target.raw()...)
	key = append(key, 0, byte(srcType))
	key = append(key, ib.dataKey...)
	ib.add(refsIndex, key)
}

// finalize sorts rows by (ordinal, key) and drops duplicates; the reference
// map is a set, and a record may well reference the same handle twice.
func (ib *indexBuilder) finalize() {
	slices.SortFunc(ib.rows, func(a, b indexRow) int {
		if a.Ord != b.Ord {
			if a.Ord < b.Ord {
				return -1
			}
			return 1
		}
		return bytes.Compare(a.Key, b.Key)
	})
	ib.rows = slices.CompactFunc(ib.rows, func(a, b indexRow) bool {
		return a.Ord == b.Ord && bytes.Equal(a.Key, b.Key)
	})
}

// buildIndexRows derives every index entry for obj: the ID map entry, the
// per-type orderings, and one reference map entry per distinct reference.
func (db *DB) buildIndexRows(obj Object, ib *indexBuilder) {
	ib.add(idsIndex, []byte(obj.ObjID()))

	switch o := obj.(type) {
	case *Person:
		ib.addGrouped(surnameIndex, db.collationKey(o.PrimaryName.Surname))
	case *Place:
		ib.addGrouped(parentIndex, o.Parent.raw())
	}

	for _, ref := range obj.References() {
		ib.addRef(ref.Handle, obj.ObjType())
	}

	ib.finalize()
}

// parseRefKey decodes a reference map key back into (target, source).
func parseRefKey(key []byte) (target Handle, src ObjRef) {
	if len(key) != handleLen+2+handleLen || key[handleLen] != 0 {
		panic(fmt.Errorf("invalid reference map key %s", hexstr(key)))
	}
	target = handleFromRaw(key[:handleLen])
	src = ObjRef{ObjType(key[handleLen+1]), handleFromRaw(key[handleLen+2:])}
	return
}

// trailingHandle extracts the data key from a non-unique index key.
func trailingHandle(key []byte) Handle {
	if len(key) < handleLen {
		panic(fmt.Errorf("invalid index key %s", hexstr(key)))
	}
	return handleFromRaw(key[len(key)-handleLen:])
}
