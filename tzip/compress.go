package tzip

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

const (
	// ChunkSize is the unit in which input is fed to the codec and in which
	// output buffers grow
	ChunkSize = 16 * 1024

	// WindowSize is the deflate back-reference window, and thus the longest
	// useful dictionary
	WindowSize = 32 * 1024

	// Level is the compression level used for all output
	Level = flate.BestSpeed
)

var (
	// ErrEmptyInput is returned when there is nothing to decompress
	ErrEmptyInput = errors.New("empty compressed input")

	// ErrCorrupt is returned when the compressed data cannot be decoded
	ErrCorrupt = errors.New("corrupt compressed stream")

	// ErrDictionary is returned when a dictionary is passed along with the
	// first message of a gzip-mode stream
	ErrDictionary = errors.New("dictionary passed before gzip header")

	// ErrStreamClosed is returned when a closed Stream is used
	ErrStreamClosed = errors.New("compression stream is closed")
)

type compressor interface {
	io.WriteCloser
	Flush() error
}

func newCompressor(w io.Writer, raw bool) (compressor, error) {
	if raw {
		return flate.NewWriter(w, Level)
	}
	return gzip.NewWriterLevel(w, Level)
}

func newDecompressor(r io.Reader, raw bool, dict []byte) (io.ReadCloser, error) {
	if raw {
		return flate.NewReaderDict(r, dict), nil
	}
	return gzip.NewReader(r)
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

// Compress returns input compressed as a complete gzip stream, or as a raw
// deflate stream if raw is set
func Compress(input []byte, raw bool) ([]byte, error) {
	out := newChunkBuffer()
	w, err := newCompressor(out, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize compressor: %w", err)
	}
	for _, chunk := range chunks(input) {
		if _, err := w.Write(chunk); err != nil {
			return nil, fmt.Errorf("compression failed: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	return out.Exact(), nil
}

// Decompress decodes a complete gzip stream, or a raw deflate stream if raw
// is set
func Decompress(input []byte, raw bool) ([]byte, error) {
	if len(input) == 0 {
		return nil, ErrEmptyInput
	}
	r, err := newDecompressor(&chunkReader{data: input}, raw, nil)
	if err != nil {
		return nil, corrupt(err)
	}
	defer r.Close()

	out := newChunkBuffer()
	if _, err := out.ReadFrom(r); err != nil {
		return nil, corrupt(err)
	}
	return out.Exact(), nil
}
