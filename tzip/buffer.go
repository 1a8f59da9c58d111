package tzip

import (
	"errors"
	"io"
)

// chunkBuffer is an output buffer that grows by exactly ChunkSize whenever it
// runs full. It never shrinks while in use.
type chunkBuffer struct {
	buf []byte
}

func newChunkBuffer() *chunkBuffer {
	return &chunkBuffer{buf: make([]byte, 0, ChunkSize)}
}

func (b *chunkBuffer) grow() {
	grown := make([]byte, len(b.buf), cap(b.buf)+ChunkSize)
	copy(grown, b.buf)
	b.buf = grown
}

func (b *chunkBuffer) free() []byte {
	if len(b.buf) == cap(b.buf) {
		b.grow()
	}
	return b.buf[len(b.buf):cap(b.buf)]
}

// Write implements io.Writer
func (b *chunkBuffer) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := copy(b.free(), p)
		b.buf = b.buf[:len(b.buf)+n]
		p = p[n:]
		written += n
	}
	return written, nil
}

// ReadFrom implements io.ReaderFrom. io.EOF from r is not an error.
func (b *chunkBuffer) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	for {
		n, err := r.Read(b.free())
		b.buf = b.buf[:len(b.buf)+n]
		total += int64(n)
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Len returns the number of bytes written so far
func (b *chunkBuffer) Len() int {
	return len(b.buf)
}

// Bytes returns the written bytes without copying
func (b *chunkBuffer) Bytes() []byte {
	return b.buf
}

// Exact returns a copy of the written bytes with no spare capacity
func (b *chunkBuffer) Exact() []byte {
	res := make([]byte, len(b.buf))
	copy(res, b.buf)
	return res
}

// chunkReader hands out its input in pieces of at most ChunkSize bytes
type chunkReader struct {
	data []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	if len(p) > ChunkSize {
		p = p[:ChunkSize]
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

// chunks splits data into consecutive pieces of at most ChunkSize bytes. The
// result always has at least one element, possibly empty.
func chunks(data []byte) [][]byte {
	res := make([][]byte, 0, len(data)/ChunkSize+1)
	for len(data) > ChunkSize {
		res = append(res, data[:ChunkSize])
		data = data[ChunkSize:]
	}
	return append(res, data)
}
