package storage

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var (
	ErrUnknownRecordType = errors.New("unknown record type")
	ErrTruncatedRecord   = errors.New("truncated record")
)

// DecodeHeader parses a record header. hdr must start at a record boundary;
// it may be longer than the header.
func DecodeHeader(hdr []byte) (Header, error) {
	if len(hdr) < tagSize {
		return Header{}, errors.Wrap(ErrTruncatedRecord, "missing record tag")
	}

	typ := RecordType(hdr[0])

	size, err := typ.HeaderSize()
	if err != nil {
		return Header{}, errors.Wrapf(err, "tag %d", hdr[0])
	}

	if len(hdr) < size {
		return Header{}, errors.Wrapf(ErrTruncatedRecord, "%s header needs %d bytes, got %d", typ, size, len(hdr))
	}

	h := Header{
		Type:    typ,
		KeySize: binary.LittleEndian.Uint32(hdr[1:5]),
	}

	if typ == RecordPut {
		h.ValueSize = binary.LittleEndian.Uint32(hdr[5:9])
	}

	return h, nil
}
