package storage

import "encoding/binary"

// EncodedSize returns the number of bytes r occupies in the log.
func EncodedSize(r *Record) int {
	if r.Type == RecordDelete {
		return DeleteHeaderSize + len(r.Key)
	}

	return PutHeaderSize + len(r.Key) + len(r.Value)
}

// AppendPut appends an encoded PUT record to buf and returns the extended slice.
func AppendPut(buf []byte, key, value []byte) []byte {
	var hdr [PutHeaderSize]byte

	hdr[0] = byte(RecordPut)
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(key)))
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(len(value)))

	buf = append(buf, hdr[:]...)
	buf = append(buf, key...)

	return append(buf, value...)
}

// AppendDelete appends an encoded DELETE record (tombstone) to buf.
func AppendDelete(buf []byte, key []byte) []byte {
	var hdr [DeleteHeaderSize]byte

	hdr[0] = byte(RecordDelete)
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(key)))

	buf = append(buf, hdr[:]...)

	return append(buf, key...)
}

func serialize(record *Record, buf []byte) []byte {
	if record.Type == RecordDelete {
		return AppendDelete(buf, record.Key)
	}

	return AppendPut(buf, record.Key, record.Value)
}

// ValueOffset returns where the value of a PUT record starting at
// recordOffset begins.
func ValueOffset(recordOffset uint64, keySize uint32) uint64 {
	return recordOffset + PutHeaderSize + uint64(keySize)
}
