package gendb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTxnActive is returned when a transaction is begun (or undo/redo is
	// requested) while another transaction is still active.
	ErrTxnActive = errors.New("gendb: another transaction is active")

	// ErrTxnClosed is returned when a committed or aborted transaction is used.
	ErrTxnClosed = errors.New("gendb: transaction already committed or aborted")

	// ErrStaleCursor is returned via (*Cursor).Err after the store was
	// modified underneath an open cursor.
	ErrStaleCursor = errors.New("gendb: cursor invalidated by a concurrent commit")

	// ErrUIDFormat is returned for external UID strings that are not 32 or 36
	// hex characters after separators are stripped.
	ErrUIDFormat = errors.New("gendb: invalid external UID format")

	// ErrUIDChecksum is returned for 36-character external UID strings whose
	// checksum does not match the payload.
	ErrUIDChecksum = errors.New("gendb: invalid external UID checksum")
)

// DataError reports malformed bytes in a stored value.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// TableError wraps a lower-level fault with the table and record it concerns.
type TableError struct {
	Type   ObjType
	Handle Handle
	Msg    string
	Err    error
}

func tableErrf(typ ObjType, h Handle, err error, format string, args ...any) error {
	return &TableError{typ, h, fmt.Sprintf(format, args...), err}
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func (e *TableError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Type.String())
	if e.Handle != "" {
		buf.WriteByte('/')
		buf.WriteString(string(e.Handle))
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// IntegrityError reports a referential-integrity violation: either a delete
// attempted on a record that other records still reference, or a commit of a
// record whose reference fields name nonexistent handles.
type IntegrityError struct {
	Type   ObjType
	Handle Handle
	Refs   []ObjRef // offending references, in either direction
	Msg    string
}

func (e *IntegrityError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s/%s: %s", e.Type, e.Handle, e.Msg)
	for i, ref := range e.Refs {
		if i == 0 {
			buf.WriteString(": ")
		} else {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s/%s", ref.Type, ref.Handle)
	}
	return buf.String()
}

// VersionError reports a stored schema version this build cannot read and has
// no upgrade path for. The store refuses to operate rather than guess.
type VersionError struct {
	Type      ObjType // zero when the store-level format marker mismatches
	Handle    Handle
	Stored    uint64
	Supported uint64
}

func (e *VersionError) Error() string {
	if e.Type == 0 {
		return fmt.Sprintf("gendb: unsupported store format version %d, this build supports %d", e.Stored, e.Supported)
	}
	return fmt.Sprintf("gendb: %s/%s: unsupported schema version %d, this build supports up to %d", e.Type, e.Handle, e.Stored, e.Supported)
}
