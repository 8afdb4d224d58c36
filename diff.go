package gendb

import (
	"reflect"
	"slices"

	"go.etcd.io/bbolt"
)

// RecordSet is an in-memory collection of records keyed by (type, handle),
// typically a store snapshot or the contents of an imported file.
type RecordSet struct {
	objs map[ObjRef]Object
}

func NewRecordSet() *RecordSet {
	return &RecordSet{objs: make(map[ObjRef]Object)}
}

func (rs *RecordSet) Add(obj Object) {
	rs.objs[ObjRef{obj.ObjType(), obj.ObjHandle()}] = obj
}

func (rs *RecordSet) Get(typ ObjType, h Handle) Object {
	return rs.objs[ObjRef{typ, h}]
}

func (rs *RecordSet) Len() int {
	return len(rs.objs)
}

// Snapshot loads every record of the given types into a RecordSet. With no
// types given, every type is loaded.
func (db *DB) Snapshot(types ...ObjType) (*RecordSet, error) {
	if len(types) == 0 {
		for typ := PersonType; typ <= maxObjType; typ++ {
			types = append(types, typ)
		}
	}
	rs := NewRecordSet()
	err := db.bdb.View(func(btx *bbolt.Tx) error {
		for _, typ := range types {
			tbl := tableFor(typ)
			dataBuck := tbl.dataBucketIn(tbl.rootBucketIn(btx))
			err := dataBuck.ForEach(func(k, v []byte) error {
				obj, err := decodeStored(tbl, Handle(string(k)), v)
				if err != nil {
					return err
				}
				rs.Add(obj)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// DiffResult partitions two record sets by handle. Differing lists records
// present on both sides whose content differs.
type DiffResult struct {
	Differing []ObjRef
	LocalOnly []ObjRef
	OtherOnly []ObjRef
}

// Diff compares rs against other record by record. Change timestamps are
// ignored, and dates compare by their normalized value when both sides have
// one. Result slices come sorted by (type, handle) so runs are deterministic.
func (rs *RecordSet) Diff(other *RecordSet) DiffResult {
	var res DiffResult
	for ref, obj := range rs.objs {
		o := other.objs[ref]
		if o == nil {
			res.LocalOnly = append(res.LocalOnly, ref)
		} else if !sameRecord(obj, o) {
			res.Differing = append(res.Differing, ref)
		}
	}
	for ref := range other.objs {
		if rs.objs[ref] == nil {
			res.OtherOnly = append(res.OtherOnly, ref)
		}
	}
	sortRefs(res.Differing)
	sortRefs(res.LocalOnly)
	sortRefs(res.OtherOnly)
	return res
}

func sortRefs(refs []ObjRef) {
	slices.SortFunc(refs, func(a, b ObjRef) int {
		if a.Type != b.Type {
			return int(a.Type) - int(b.Type)
		}
		if a.Handle < b.Handle {
			return -1
		} else if a.Handle > b.Handle {
			return 1
		}
		return 0
	})
}

// sameRecord compares two records of the same type structurally.
func sameRecord(a, b Object) bool {
	if a.ObjType() != b.ObjType() {
		return false
	}
	return sameValue(reflect.ValueOf(a).Elem(), reflect.ValueOf(b).Elem())
}

func sameValue(a, b reflect.Value) bool {
	switch a.Kind() {
	case reflect.Struct:
		if a.Type() == dateType {
			return a.Interface().(Date).Equal(b.Interface().(Date))
		}
		t := a.Type()
		for i := 0; i < t.NumField(); i++ {
			if t == objectHeaderType && t.Field(i).Name == "Changed" {
				continue
			}
			if !sameValue(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Slice:
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !sameValue(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	default:
		return a.Interface() == b.Interface()
	}
}
