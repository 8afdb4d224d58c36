package gendb

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// UID is an optional 128-bit identifier attached to people and families for
// interchange with foreign systems. The external form is 36 hex characters:
// a 32-character payload followed by a 4-character positional checksum.
type UID [16]byte

// checksum accumulates two running sums over the payload bytes: a plain sum
// and a position-weighted sum (positions 1..16), each modulo 256, combined
// into one 16-bit value.
func (u UID) checksum() uint16 {
	var a, b uint32
	for i, by := range u {
		a = (a + uint32(by)) % 256
		b = (b + uint32(by)*uint32(i+1)) % 256
	}
	return uint16(a)<<8 | uint16(b)
}

var uidStripper = strings.NewReplacer("{", "", "}", "", "-", "", " ", "")

// ParseUID validates an external UID string. Braces, hyphens and spaces are
// stripped and the rest upper-cased; the result must be either a bare
// 32-character hex payload, or 36 characters whose trailing four verify as
// the payload checksum.
func ParseUID(text string) (UID, error) {
	var u UID
	s := strings.ToUpper(uidStripper.Replace(text))
	switch len(s) {
	case 32:
		if _, err := hex.Decode(u[:], []byte(s)); err != nil {
			return UID{}, fmt.Errorf("%w: %q", ErrUIDFormat, text)
		}
		return u, nil
	case 36:
		if _, err := hex.Decode(u[:], []byte(s[:32])); err != nil {
			return UID{}, fmt.Errorf("%w: %q", ErrUIDFormat, text)
		}
		var ck [2]byte
		if _, err := hex.Decode(ck[:], []byte(s[32:])); err != nil {
			return UID{}, fmt.Errorf("%w: %q", ErrUIDFormat, text)
		}
		if got := uint16(ck[0])<<8 | uint16(ck[1]); got != u.checksum() {
			return UID{}, fmt.Errorf("%w: %q", ErrUIDChecksum, text)
		}
		return u, nil
	default:
		return UID{}, fmt.Errorf("%w: %q is %d hex characters, expected 32 or 36", ErrUIDFormat, text, len(s))
	}
}

// String emits the canonical 36-character payload+checksum form, regardless
// of whether the value was parsed from the bare 32-character form.
func (u UID) String() string {
	return fmt.Sprintf("%X%04X", u[:], u.checksum())
}
