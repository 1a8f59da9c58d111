package tzip

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// syncMarker is the empty stored block that terminates every sync flush
var syncMarker = []byte{0x00, 0x00, 0xff, 0xff}

// messageTail restores the trimmed sync marker and adds a final empty stored
// block, so that the decoder reaches a clean end of stream on every message
var messageTail = []byte{0x00, 0x00, 0xff, 0xff, 0x01, 0x00, 0x00, 0xff, 0xff}

// A Stream is a deflate context shared by the consecutive messages of one
// connection.
//
// A Stream is not safe for concurrent use.
type Stream struct {
	raw    bool
	sink   sink
	w      compressor
	closed bool

	// the gzip header of the peer's stream has been consumed
	headerRead bool
}

// sink forwards compressor output into the buffer of the current call.
// Output produced outside of a call is dropped.
type sink struct {
	out *chunkBuffer
}

func (s *sink) Write(p []byte) (int, error) {
	if s.out == nil {
		return len(p), nil
	}
	return s.out.Write(p)
}

// NewStream allocates a compression context for a connection.
//
// If raw is false, the first message compressed by the stream starts with a
// gzip header.
func NewStream(raw bool) (*Stream, error) {
	s := &Stream{raw: raw}
	w, err := newCompressor(&s.sink, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize stream compressor: %w", err)
	}
	s.w = w
	return s, nil
}

// Raw reports whether the stream produces raw deflate data
func (s *Stream) Raw() bool {
	return s.raw
}

// Compress compresses one message.
//
// The compressor state, including the window of previously sent data, is
// kept for the next call. The returned message ends at a byte boundary and
// does not include the trailing sync marker.
func (s *Stream) Compress(input []byte) ([]byte, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}

	out := newChunkBuffer()
	s.sink.out = out
	defer func() {
		s.sink.out = nil
	}()

	for _, chunk := range chunks(input) {
		if _, err := s.w.Write(chunk); err != nil {
			return nil, fmt.Errorf("stream compression failed: %w", err)
		}
	}
	if err := s.w.Flush(); err != nil {
		return nil, fmt.Errorf("stream compression failed: %w", err)
	}

	res := out.Bytes()
	if !bytes.HasSuffix(res, syncMarker) {
		return nil, errors.New("stream compression failed: sync flush marker missing")
	}
	return res[:len(res)-len(syncMarker)], nil
}

// Decompress decodes one message produced by the peer's Stream.Compress.
//
// dict must be the dictionary returned by the previous call on this
// connection, or nil for the first message. The returned dictionary is to be
// passed to the next call.
//
// An empty message is valid once the stream is established: it is what a
// sync flush of no new data produces once the marker is cut off.
//
// In gzip mode the first message must start with a gzip header, and no
// dictionary may be passed with it. Later messages are plain deflate
// continuations, as in raw mode.
func (s *Stream) Decompress(input []byte, dict []byte) ([]byte, []byte, error) {
	if s.closed {
		return nil, nil, ErrStreamClosed
	}
	body := input
	if !s.raw && !s.headerRead {
		if len(dict) != 0 {
			return nil, nil, ErrDictionary
		}
		n, err := gzipHeaderLen(input)
		if err != nil {
			return nil, nil, err
		}
		body = input[n:]
	}

	framed := make([]byte, 0, len(body)+len(messageTail))
	framed = append(framed, body...)
	framed = append(framed, messageTail...)

	r, err := newDecompressor(&chunkReader{data: framed}, true, dict)
	if err != nil {
		return nil, nil, corrupt(err)
	}
	defer r.Close()

	out := newChunkBuffer()
	if _, err := out.ReadFrom(r); err != nil {
		return nil, nil, corrupt(err)
	}
	s.headerRead = true
	return out.Bytes(), window(dict, out.Bytes()), nil
}

const (
	gzipID1     = 0x1f
	gzipID2     = 0x8b
	gzipDeflate = 8

	gzipFlagHCRC    = 1 << 1
	gzipFlagExtra   = 1 << 2
	gzipFlagName    = 1 << 3
	gzipFlagComment = 1 << 4

	gzipFixedHeaderLen = 10
)

// gzipHeaderLen returns the length of the RFC 1952 member header at the
// start of p
func gzipHeaderLen(p []byte) (int, error) {
	if len(p) < gzipFixedHeaderLen {
		return 0, corrupt(errors.New("truncated gzip header"))
	}
	if p[0] != gzipID1 || p[1] != gzipID2 || p[2] != gzipDeflate {
		return 0, corrupt(errors.New("invalid gzip header"))
	}
	flags := p[3]
	n := gzipFixedHeaderLen
	if flags&gzipFlagExtra != 0 {
		if len(p) < n+2 {
			return 0, corrupt(errors.New("truncated gzip header"))
		}
		n += 2 + (int(p[n]) | int(p[n+1])<<8)
	}
	for _, flag := range []byte{gzipFlagName, gzipFlagComment} {
		if flags&flag == 0 {
			continue
		}
		if n > len(p) {
			return 0, corrupt(errors.New("truncated gzip header"))
		}
		end := bytes.IndexByte(p[n:], 0)
		if end < 0 {
			return 0, corrupt(errors.New("truncated gzip header"))
		}
		n += end + 1
	}
	if flags&gzipFlagHCRC != 0 {
		n += 2
	}
	if n > len(p) {
		return 0, corrupt(errors.New("truncated gzip header"))
	}
	return n, nil
}

// window returns the last WindowSize bytes of dict followed by data
func window(dict, data []byte) []byte {
	if len(data) >= WindowSize {
		return append([]byte(nil), data[len(data)-WindowSize:]...)
	}
	keep := WindowSize - len(data)
	if keep > len(dict) {
		keep = len(dict)
	}
	res := make([]byte, 0, keep+len(data))
	res = append(res, dict[len(dict)-keep:]...)
	return append(res, data...)
}

// Close releases the compression context. It must be called exactly once.
func (s *Stream) Close() error {
	if s.closed {
		return ErrStreamClosed
	}
	s.closed = true
	s.sink.out = nil
	err := s.w.Close()
	s.w = nil
	return err
}

var _ io.Closer = (*Stream)(nil)
