package storage

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendPutLayout(t *testing.T) {
	buf := AppendPut(nil, []byte("ab"), []byte("xyz"))

	expected := []byte{
		1,
		2, 0, 0, 0,
		3, 0, 0, 0,
		'a', 'b',
		'x', 'y', 'z',
	}

	assert.Equal(t, expected, buf)
	assert.Equal(t, len(expected), EncodedSize(&Record{Type: RecordPut, Key: []byte("ab"), Value: []byte("xyz")}))
}

func TestAppendDeleteLayout(t *testing.T) {
	buf := AppendDelete(nil, []byte("key"))

	assert.Equal(t, []byte{2, 3, 0, 0, 0, 'k', 'e', 'y'}, buf)
	assert.Equal(t, len(buf), EncodedSize(&Record{Type: RecordDelete, Key: []byte("key")}))
}

func TestDecodeHeader(t *testing.T) {
	buf := AppendPut(nil, []byte("k1"), []byte("v1"))
	buf = AppendDelete(buf, []byte("k1"))
	buf = AppendPut(buf, []byte("k2"), nil)

	h, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, Header{Type: RecordPut, KeySize: 2, ValueSize: 2}, h)
	assert.Equal(t, []byte("v1"), buf[PutHeaderSize+2:h.Size()])
	buf = buf[h.Size():]

	h, err = DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, Header{Type: RecordDelete, KeySize: 2}, h)
	assert.Equal(t, []byte("k1"), buf[DeleteHeaderSize:h.Size()])
	buf = buf[h.Size():]

	h, err = DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, RecordPut, h.Type)
	assert.Zero(t, h.ValueSize)
	assert.Equal(t, uint64(len(buf)), h.Size())
}

func TestDecodeHeaderUnknownTag(t *testing.T) {
	_, err := DecodeHeader([]byte{7, 0, 0, 0, 0})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownRecordType))
}

func TestDecodeTruncated(t *testing.T) {
	full := AppendPut(nil, []byte("key"), []byte("value"))

	for _, n := range []int{0, 1, PutHeaderSize - 1} {
		_, err := DecodeHeader(full[:n])

		require.Error(t, err, "prefix of %d bytes", n)
		assert.True(t, errors.Is(err, ErrTruncatedRecord), "prefix of %d bytes: %v", n, err)
	}
}

func TestHeaderSize(t *testing.T) {
	assert.Equal(t, uint64(PutHeaderSize+3+5), Header{Type: RecordPut, KeySize: 3, ValueSize: 5}.Size())
	assert.Equal(t, uint64(DeleteHeaderSize+3), Header{Type: RecordDelete, KeySize: 3}.Size())
	assert.Equal(t, uint64(100+PutHeaderSize+2), ValueOffset(100, 2))
}
