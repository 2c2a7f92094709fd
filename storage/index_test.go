package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexInsertOverwrites(t *testing.T) {
	idx := NewIndex()

	idx.Insert([]byte("a"), LogPointer{Offset: 10, Length: 1})
	idx.Insert([]byte("a"), LogPointer{Offset: 30, Length: 2})

	p, ok := idx.Get([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, LogPointer{Offset: 30, Length: 2}, p)
	assert.Equal(t, 1, idx.Len())
}

func TestIndexRemove(t *testing.T) {
	idx := NewIndex()
	idx.Insert([]byte("a"), LogPointer{Offset: 10, Length: 1})

	idx.Remove([]byte("a"))
	idx.Remove([]byte("missing"))

	_, ok := idx.Get([]byte("a"))
	assert.False(t, ok)
	assert.Equal(t, 0, idx.Len())
}

func TestIndexCopiesKeys(t *testing.T) {
	idx := NewIndex()
	key := []byte("abc")

	idx.Insert(key, LogPointer{Offset: 1})
	key[0] = 'z'

	_, ok := idx.Get([]byte("abc"))
	assert.True(t, ok)
}

func TestIndexKeysSorted(t *testing.T) {
	idx := NewIndex()
	for _, k := range []string{"c", "a", "b"} {
		idx.Insert([]byte(k), LogPointer{})
	}

	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, idx.Keys())
}

func TestIndexRangeStops(t *testing.T) {
	idx := NewIndex()
	for _, k := range []string{"a", "b", "c"} {
		idx.Insert([]byte(k), LogPointer{})
	}

	seen := 0
	idx.Range(func(key []byte, p LogPointer) bool {
		seen++
		return seen < 2
	})

	assert.Equal(t, 2, seen)
}

func TestIndexLiveBytes(t *testing.T) {
	idx := NewIndex()
	idx.Insert([]byte("ab"), LogPointer{Offset: 11, Length: 3})
	idx.Insert([]byte("c"), LogPointer{Offset: 30, Length: 0})

	assert.Equal(t, uint64(PutHeaderSize+2+3+PutHeaderSize+1), idx.LiveBytes())
}
