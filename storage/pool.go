package storage

import "sync"

// BytesPool recycles record encode buffers between appends.
type BytesPool struct {
	pool sync.Pool
}

func NewBytesPool() *BytesPool {
	return &BytesPool{
		pool: sync.Pool{
			New: func() any {
				buf := new([]byte)            // Attempt to force allocation on heap.
				*buf = make([]byte, 0, 1<<10) // 1kb
				return buf
			},
		},
	}
}

func (p *BytesPool) GetBytes() *[]byte {
	return p.pool.Get().(*[]byte)
}

func (p *BytesPool) PutBytes(b *[]byte) {
	// Don't keep huge values alive in the pool.
	if cap(*b) > maxPooledBytes {
		return
	}

	*b = (*b)[:0]

	p.pool.Put(b)
}

const maxPooledBytes = 1 << 20

var recordPool = NewBytesPool()
