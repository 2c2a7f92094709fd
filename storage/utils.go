package storage

import "math"

// MaxFieldLength is the largest key or value the u32 length fields can describe.
const MaxFieldLength = math.MaxUint32

// FitsLength reports whether n bytes can be described by a record length field.
func FitsLength(n int) bool {
	return n >= 0 && uint64(n) <= MaxFieldLength
}
