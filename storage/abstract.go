package storage

// Record layout on disk, all integers little-endian:
//
//	PUT:    [tag=1][key len u32][value len u32][key][value]
//	DELETE: [tag=2][key len u32][key]
const (
	tagSize          = 1
	lenSize          = 4
	PutHeaderSize    = tagSize + 2*lenSize // 9 bytes
	DeleteHeaderSize = tagSize + lenSize   // 5 bytes
	MaxHeaderSize    = PutHeaderSize
)

type RecordType uint8

const (
	RecordPut    RecordType = 1
	RecordDelete RecordType = 2
)

func (t RecordType) String() string {
	switch t {
	case RecordPut:
		return "put"
	case RecordDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// HeaderSize returns the fixed header length for records of type t.
func (t RecordType) HeaderSize() (int, error) {
	switch t {
	case RecordPut:
		return PutHeaderSize, nil
	case RecordDelete:
		return DeleteHeaderSize, nil
	default:
		return 0, ErrUnknownRecordType
	}
}

// LogPointer locates a value inside the current log file.
type LogPointer struct {
	Offset uint64 //8byte, first byte of the value
	Length uint32 //4byte
}

func (p LogPointer) End() uint64 {
	return p.Offset + uint64(p.Length)
}

type Header struct {
	Type      RecordType
	KeySize   uint32
	ValueSize uint32 // always zero for deletes
}

// Size is the full encoded length of the record described by h.
func (h Header) Size() uint64 {
	if h.Type == RecordDelete {
		return DeleteHeaderSize + uint64(h.KeySize)
	}

	return PutHeaderSize + uint64(h.KeySize) + uint64(h.ValueSize)
}

type Record struct {
	Type  RecordType
	Key   []byte
	Value []byte
}
