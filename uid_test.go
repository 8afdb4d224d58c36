package gendb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUIDRoundTrip(t *testing.T) {
	u := UID{0x01, 0x02, 0xAB, 0xCD, 0x00, 0xFF, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, 0x80, 0x90, 0xA0}
	s := u.String()
	require.Len(t, s, 36)

	got, err := ParseUID(s)
	require.NoError(t, err)
	require.Equal(t, u, got)
}

func TestUIDBareForm(t *testing.T) {
	u := UID{0xDE, 0xAD, 0xBE, 0xEF}
	bare := u.String()[:32]

	got, err := ParseUID(bare)
	require.NoError(t, err)
	require.Equal(t, u, got)

	// emitting always includes the checksum
	require.Len(t, got.String(), 36)
}

func TestUIDSeparatorsStripped(t *testing.T) {
	u := UID{0x12, 0x34, 0x56, 0x78}
	s := u.String()
	decorated := "{" + s[:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32] + "}" + s[32:]

	got, err := ParseUID(decorated)
	require.NoError(t, err)
	require.Equal(t, u, got)

	// lowercase input is accepted too
	got, err = ParseUID("deadbeef000000000000000000000000")
	require.NoError(t, err)
	require.Equal(t, UID{0xDE, 0xAD, 0xBE, 0xEF}, got)
}

func TestUIDChecksumRejected(t *testing.T) {
	u := UID{0x01, 0x02}
	s := []byte(u.String())
	if s[35] == '0' {
		s[35] = '1'
	} else {
		s[35] = '0'
	}
	_, err := ParseUID(string(s))
	require.ErrorIs(t, err, ErrUIDChecksum)

	// every checksum nibble flipped
	const digits = "0123456789ABCDEF"
	full := u.String()
	flipped := []byte(full)
	for i := 32; i < 36; i++ {
		flipped[i] = digits[15-strings.IndexByte(digits, full[i])]
	}
	_, err = ParseUID(string(flipped))
	require.ErrorIs(t, err, ErrUIDChecksum)
}

func TestUIDChecksumIsPositional(t *testing.T) {
	// Swapping two payload bytes changes the weighted sum even though the
	// plain sum is identical, so the transposition is caught.
	a := UID{0x01, 0x02}
	b := UID{0x02, 0x01}
	require.NotEqual(t, a.checksum(), b.checksum())

	swapped := b.String()[:32] + a.String()[32:]
	_, err := ParseUID(swapped)
	require.ErrorIs(t, err, ErrUIDChecksum)
}

func TestUIDFormatErrors(t *testing.T) {
	for _, text := range []string{
		"",
		"1234",
		"0123456789ABCDEF0123456789ABCDE",    // 31
		"0123456789ABCDEF0123456789ABCDEF0",  // 33
		"0123456789ABCDEF0123456789ABCDEFXY", // 34, non-hex
		"Z123456789ABCDEF0123456789ABCDEF",   // non-hex payload
	} {
		_, err := ParseUID(text)
		require.ErrorIs(t, err, ErrUIDFormat, "input %q", text)
	}
}
