package storage

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Index maps keys to the location of their latest value in the log.
// It is a derived cache: it is never persisted and is rebuilt by replaying
// the log. Index does no locking of its own.
type Index struct {
	entries map[string]LogPointer
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]LogPointer)}
}

// Insert sets the pointer for key, replacing any previous one.
func (i *Index) Insert(key []byte, p LogPointer) {
	i.entries[string(key)] = p
}

// Remove drops key. Removing an absent key is a no-op.
func (i *Index) Remove(key []byte) {
	delete(i.entries, string(key))
}

func (i *Index) Get(key []byte) (LogPointer, bool) {
	p, ok := i.entries[string(key)]
	return p, ok
}

func (i *Index) Len() int {
	return len(i.entries)
}

// Range calls fn for every entry in unspecified order until fn returns false.
func (i *Index) Range(fn func(key []byte, p LogPointer) bool) {
	for k, p := range i.entries {
		if !fn([]byte(k), p) {
			return
		}
	}
}

// Keys returns all keys in ascending byte order.
func (i *Index) Keys() [][]byte {
	keys := maps.Keys(i.entries)
	slices.Sort(keys)

	out := make([][]byte, len(keys))
	for n, k := range keys {
		out[n] = []byte(k)
	}

	return out
}

// LiveBytes is the size a log holding only the indexed values would have.
func (i *Index) LiveBytes() uint64 {
	var total uint64

	for k, p := range i.entries {
		total += PutHeaderSize + uint64(len(k)) + uint64(p.Length)
	}

	return total
}
