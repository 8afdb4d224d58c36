package gendb

import "reflect"

// Merge folds the absorbed record into the surviving one: scalar fields of
// the survivor win unless empty, list fields are unioned without duplicating
// entries that are equal in content, every reference to the absorbed record
// is re-pointed at the survivor, and the absorbed record is deleted. The
// whole merge is part of the enclosing transaction, so it is one undoable
// step when committed alone.
func (txn *Txn) Merge(typ ObjType, surviving, absorbed Handle) error {
	if txn.state != txnActive {
		return ErrTxnClosed
	}
	if surviving == absorbed {
		return tableErrf(typ, surviving, nil, "cannot merge a record with itself")
	}

	dst, err := getIn(txn.btx, typ, surviving)
	if err != nil {
		return err
	}
	if dst == nil {
		return tableErrf(typ, surviving, nil, "surviving record does not exist")
	}
	src, err := getIn(txn.btx, typ, absorbed)
	if err != nil {
		return err
	}
	if src == nil {
		return tableErrf(typ, absorbed, nil, "absorbed record does not exist")
	}

	mergeObjects(dst, src)

	// The merged record must not keep pointing at the record about to go away.
	dst.ReplaceReferences(absorbed, surviving)

	if err := txn.Put(dst); err != nil {
		return err
	}
	if err := txn.ReplaceHandleReference(typ, absorbed, surviving); err != nil {
		return err
	}
	if err := txn.Delete(typ, absorbed); err != nil {
		return err
	}
	if txn.db.verbose {
		txn.db.logf("db: MERGE %s/%s <= %s", typ, surviving, absorbed)
	}
	return nil
}

func mergeObjects(dst, src Object) {
	if p, ok := dst.(*Person); ok {
		mergePersonNames(p, src.(*Person))
	}
	mergeStruct(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem())
}

// mergePersonNames keeps the survivor's primary name and demotes the
// absorbed person's primary name to an alternate one, unless an equal name
// is already present.
func mergePersonNames(dst, src *Person) {
	demoted := src.PrimaryName
	src.PrimaryName = dst.PrimaryName // keep the generic pass from touching it
	if namesEqual(dst.PrimaryName, demoted) {
		return
	}
	for _, n := range dst.AltNames {
		if namesEqual(n, demoted) {
			return
		}
	}
	dst.AltNames = append(dst.AltNames, demoted)
}

func namesEqual(a, b Name) bool {
	return reflect.DeepEqual(a, b)
}

func mergeStruct(dst, src reflect.Value) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		switch f.Type {
		case objectHeaderType:
			// handle, ID and change time all stay the survivor's
			continue
		case dateType:
			d := dst.Field(i).Interface().(Date)
			s := src.Field(i).Interface().(Date)
			if d.IsEmpty() && !s.IsEmpty() {
				dst.Field(i).Set(src.Field(i))
			}
			continue
		}
		mergeField(dst.Field(i), src.Field(i))
	}
}

func mergeField(dst, src reflect.Value) {
	switch dst.Kind() {
	case reflect.Struct:
		mergeStruct(dst, src)
	case reflect.Slice:
		dst.Set(unionSlices(dst, src))
	default:
		if dst.IsZero() && !src.IsZero() {
			dst.Set(src)
		}
	}
}

// unionSlices appends the src elements that no dst element equals in
// content, preserving dst order first.
func unionSlices(dst, src reflect.Value) reflect.Value {
	out := dst
	for i := 0; i < src.Len(); i++ {
		e := src.Index(i)
		found := false
		for j := 0; j < dst.Len(); j++ {
			if reflect.DeepEqual(dst.Index(j).Interface(), e.Interface()) {
				found = true
				break
			}
		}
		if !found {
			out = reflect.Append(out, e)
		}
	}
	return out
}

var (
	objectHeaderType = reflect.TypeOf(ObjectHeader{})
	dateType         = reflect.TypeOf(Date{})
)
