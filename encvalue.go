package gendb

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3

	vfVerMask       = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfVer1          = vfVerBit0
	vfSupportedMask = vfVer1
	vfDefault       = vfVer1

	minValueSize       = 5
	maxValueHeaderSize = binary.MaxVarintLen64 * 5
	maxSchemaVersion   = 32768 // just a sanity value, can be increased
)

// value is a decoded stored value: header fields, the msgpack payload, and
// the index key records contributed by this record.
type value struct {
	Flags     valueFlags
	SchemaVer uint64
	ModCount  uint64
	Data      []byte
	Index     []byte
}

func reserveValueHeader(buf []byte) []byte {
	if len(buf) != 0 {
		panic("value must be written to an empty buffer")
	}
	_, buf = grow(buf, maxValueHeaderSize)
	return buf
}

func putValueHeader(buf []byte, flags valueFlags, schemaVer, modCount uint64, indexOff int) []byte {
	if indexOff > len(buf) {
		panic(fmt.Errorf("invalid indexOff=%d", indexOff)) // sanity check
	}
	if (flags &^ vfSupportedMask) != 0 {
		panic(fmt.Errorf("invalid flags %x", flags))
	}
	dataSize := indexOff - maxValueHeaderSize
	indexSize := len(buf) - indexOff

	var off = 0
	off += binary.PutUvarint(buf[off:], uint64(flags))
	off += binary.PutUvarint(buf[off:], schemaVer)
	off += binary.PutUvarint(buf[off:], modCount)
	off += binary.PutUvarint(buf[off:], uint64(dataSize))
	off += binary.PutUvarint(buf[off:], uint64(indexSize))
	headerSize := off
	if headerSize > maxValueHeaderSize {
		panic("internal error")
	}
	if headerSize < maxValueHeaderSize {
		// move the header up against the data
		start := maxValueHeaderSize - headerSize
		copy(buf[start:maxValueHeaderSize], buf[:headerSize])
		return buf[start:]
	}
	return buf
}

func (vle *value) decode(data []byte) error {
	orig := data
	if len(data) < minValueSize {
		return dataErrf(orig, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}

	v, n := binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad flags")
	}
	if (v & ^uint64(vfSupportedMask)) != 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: unsupported flags %x", v)
	}
	vle.Flags, data = valueFlags(v), data[n:]

	v, n = binary.Uvarint(data)
	if n <= 0 || v > maxSchemaVersion {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad schema version")
	}
	vle.SchemaVer, data = v, data[n:]

	v, n = binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad mod count")
	}
	vle.ModCount, data = v, data[n:]

	dataSize, n := binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad data size")
	}
	data = data[n:]

	indexSize, n := binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad index size")
	}
	data = data[n:]

	if uint64(len(data)) != dataSize+indexSize {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: got %d bytes for data+index, expected %d bytes", len(data), dataSize+indexSize)
	}
	vle.Data, data = data[:dataSize], data[dataSize:]
	vle.Index = data
	return nil
}

func appendIndexKeys(buf []byte, rows []indexRow) []byte {
	var total = binary.MaxVarintLen32 + len(rows)*(binary.MaxVarintLen32+binary.MaxVarintLen32)
	for _, row := range rows {
		total += len(row.Key)
	}

	w := prealloc(buf, total)
	w.AppendUvarinti(len(rows))
	for _, row := range rows {
		w.AppendUvarint(row.Ord)
		w.AppendVarBytes(row.Key)
	}
	return w.Trimmed()
}

func decodeIndexKeys(data []byte, f func(ord uint64, key []byte)) error {
	d := makeByteDecoder(data)
	n, err := d.Uvarinti()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		ord, err := d.Uvarint()
		if err != nil {
			return err
		}
		key, err := d.VarBytes()
		if err != nil {
			return err
		}
		f(ord, key)
	}
	return nil
}

// indexDiffer matches the sorted old index key records against the sorted
// new rows, so that removed entries can be deleted without touching the rest.
type indexDiffer struct {
	newRows []indexRow
}

func (d *indexDiffer) checkOldKey(oldOrd uint64, oldKey []byte) bool {
	// Look for a new row that's >= old row.
	for len(d.newRows) > 0 {
		newOrd := d.newRows[0].Ord
		if oldOrd < newOrd {
			return false
		} else if oldOrd == newOrd {
			c := bytes.Compare(oldKey, d.newRows[0].Key)
			if c < 0 {
				return false
			} else if c == 0 {
				return true // found exact match
			}
		}
		d.newRows = d.newRows[1:] // shift to next new row and compare again
	}
	return false // no more new rows, so remaining old rows have been deleted
}

func findRemovedIndexKeys(oldData []byte, newRows []indexRow, removed func(ord uint64, key []byte)) error {
	d := indexDiffer{newRows}
	return decodeIndexKeys(oldData, func(ord uint64, key []byte) {
		if !d.checkOldKey(ord, key) {
			removed(ord, key)
		}
	})
}
