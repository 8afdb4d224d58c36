package gendb

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Handle is the opaque, globally-unique, immutable primary key of a record.
// Handles are 32 lowercase hex characters and are never reused; the payload
// is a UUIDv7, so handles sort in creation order.
type Handle string

const handleLen = 32

// NewHandle mints a fresh collision-free handle.
func NewHandle() Handle {
	u := must(uuid.NewV7())
	return Handle(hex.EncodeToString(u[:]))
}

func (h Handle) raw() []byte {
	return []byte(h)
}

func handleFromRaw(b []byte) Handle {
	return Handle(b)
}

func (h Handle) isValid() bool {
	if len(h) != handleLen {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
