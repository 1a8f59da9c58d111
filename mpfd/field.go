// Package mpfd decodes multipart/form-data bodies.
//
// A body is fed to a Decoder chunk by chunk as it arrives. Every part becomes
// a Field: a TextField for plain form values, and for uploaded files either a
// MemoryFile or a DiskFile, depending on the storage chosen for the decoder.
// Disk files are written to uniquely named temporary files and removed when
// the field is closed.
package mpfd

import (
	"bytes"
	"fmt"
	"os"
)

// Kind is the type of a field
type Kind int

// Kind values
const (
	KindText Kind = iota + 1
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Storage tells where uploaded files are kept
type Storage int

// Storage values
const (
	StoreInMemory Storage = iota
	StoreInFilesystem
)

// Field is a decoded part of a multipart body
type Field interface {
	// Name returns the form field name
	Name() string

	// Kind returns the kind of the field; it never changes
	Kind() Kind

	// Append adds a piece of the part content. It may be called any number
	// of times as the body streams in.
	Append(p []byte) error

	// Close releases the resources held by the field
	Close() error
}

// TextField is a plain form value
type TextField struct {
	name string
	buf  []byte
}

// NewTextField creates an empty text field
func NewTextField(name string) *TextField {
	return &TextField{name: name}
}

// Name implements Field
func (f *TextField) Name() string {
	return f.name
}

// Kind implements Field
func (f *TextField) Kind() Kind {
	return KindText
}

// Append implements Field
func (f *TextField) Append(p []byte) error {
	f.buf = append(f.buf, p...)
	return nil
}

// Text returns the accumulated text up to the first NUL byte, if any
func (f *TextField) Text() string {
	if i := bytes.IndexByte(f.buf, 0); i >= 0 {
		return string(f.buf[:i])
	}
	return string(f.buf)
}

// Close implements Field
func (f *TextField) Close() error {
	return nil
}

// FileInfo is what the client declared about an uploaded file
type FileInfo struct {
	Filename    string // the original file name
	ContentType string // MIME type, empty if not declared
}

// File is a field holding an uploaded file, whatever the storage
type File interface {
	Field
	Filename() string
	ContentType() string
}

// MemoryFile is an uploaded file kept in memory
type MemoryFile struct {
	name string
	info FileInfo
	buf  []byte
}

// NewMemoryFile creates an empty in-memory file field
func NewMemoryFile(name string, info FileInfo) *MemoryFile {
	return &MemoryFile{name: name, info: info}
}

// Name implements Field
func (f *MemoryFile) Name() string {
	return f.name
}

// Kind implements Field
func (f *MemoryFile) Kind() Kind {
	return KindFile
}

// Filename implements File
func (f *MemoryFile) Filename() string {
	return f.info.Filename
}

// ContentType implements File
func (f *MemoryFile) ContentType() string {
	return f.info.ContentType
}

// Append implements Field
func (f *MemoryFile) Append(p []byte) error {
	f.buf = append(f.buf, p...)
	return nil
}

// Size returns the content length
func (f *MemoryFile) Size() int {
	return len(f.buf)
}

// Bytes returns the content. The caller must not modify it.
func (f *MemoryFile) Bytes() []byte {
	return f.buf
}

// Close implements Field
func (f *MemoryFile) Close() error {
	f.buf = nil
	return nil
}

// DiskFile is an uploaded file written to a temporary file.
//
// The temporary file is created on the first Append and removed by Close,
// unless it has been moved away with Move.
type DiskFile struct {
	name  string
	info  FileInfo
	namer Namer

	file   *os.File
	path   string
	size   int64
	moved  bool
	closed bool
}

// NewDiskFile creates a file field that will store its content in a
// temporary file created by namer
func NewDiskFile(name string, info FileInfo, namer Namer) *DiskFile {
	return &DiskFile{name: name, info: info, namer: namer}
}

// Name implements Field
func (f *DiskFile) Name() string {
	return f.name
}

// Kind implements Field
func (f *DiskFile) Kind() Kind {
	return KindFile
}

// Filename implements File
func (f *DiskFile) Filename() string {
	return f.info.Filename
}

// ContentType implements File
func (f *DiskFile) ContentType() string {
	return f.info.ContentType
}

// Append implements Field. The data is written to the file before Append
// returns.
func (f *DiskFile) Append(p []byte) error {
	if f.closed || f.moved {
		return ErrFieldClosed
	}
	if f.file == nil {
		if f.namer == nil {
			return ErrNoTempDir
		}
		file, err := f.namer.Create()
		if err != nil {
			return fmt.Errorf("failed to create temporary file for %q: %w", f.name, err)
		}
		f.file = file
		f.path = file.Name()
	}
	n, err := f.file.Write(p)
	f.size += int64(n)
	if err != nil {
		return fmt.Errorf("cannot write to file %s: %w", f.path, err)
	}
	return nil
}

// Path returns the temporary file path, empty before the first Append
func (f *DiskFile) Path() string {
	return f.path
}

// Size returns the number of bytes written so far
func (f *DiskFile) Size() int64 {
	return f.size
}

// Move renames the temporary file to dst. Afterwards the field no longer
// owns the file and Close leaves it alone.
func (f *DiskFile) Move(dst string) error {
	if f.closed || f.moved {
		return ErrFieldClosed
	}
	if f.file == nil {
		if err := f.Append(nil); err != nil {
			return err
		}
	}
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", f.path, err)
	}
	f.file = nil
	if err := os.Rename(f.path, dst); err != nil {
		// The handle is gone, so the field cannot be written anymore; the
		// temporary file is still ours to delete
		f.closed = true
		if rmErr := os.Remove(f.path); rmErr != nil {
			return fmt.Errorf("failed to move %s: %w (and to remove it: %v)", f.path, err, rmErr)
		}
		return fmt.Errorf("failed to move %s: %w", f.path, err)
	}
	f.moved = true
	f.path = dst
	return nil
}

// Close implements Field. It closes and deletes the temporary file. Calling
// Close more than once is harmless.
func (f *DiskFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.moved {
		return nil
	}
	if f.file == nil {
		return nil
	}
	closeErr := f.file.Close()
	f.file = nil
	if err := os.Remove(f.path); err != nil {
		return fmt.Errorf("failed to remove temporary file: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close temporary file: %w", closeErr)
	}
	return nil
}

// TextOf returns the text of a text field
func TextOf(f Field) (string, error) {
	tf, ok := f.(*TextField)
	if !ok {
		return "", fmt.Errorf("%w: %q is a %s field, not text", ErrWrongKind, f.Name(), f.Kind())
	}
	return tf.Text(), nil
}

// ContentOf returns the content of a file field stored in memory
func ContentOf(f Field) ([]byte, error) {
	switch f := f.(type) {
	case *MemoryFile:
		return f.Bytes(), nil
	case *DiskFile:
		return nil, fmt.Errorf("%w: %q is stored in the filesystem", ErrWrongStorage, f.Name())
	default:
		return nil, fmt.Errorf("%w: %q is a %s field, not file", ErrWrongKind, f.Name(), f.Kind())
	}
}

// ContentSizeOf returns the content length of a file field stored in memory
func ContentSizeOf(f Field) (int, error) {
	content, err := ContentOf(f)
	if err != nil {
		return 0, err
	}
	return len(content), nil
}

// TempPathOf returns the temporary file path of a file field stored in the
// filesystem
func TempPathOf(f Field) (string, error) {
	switch f := f.(type) {
	case *DiskFile:
		return f.Path(), nil
	case *MemoryFile:
		return "", fmt.Errorf("%w: %q is stored in memory", ErrWrongStorage, f.Name())
	default:
		return "", fmt.Errorf("%w: %q is a %s field, not file", ErrWrongKind, f.Name(), f.Kind())
	}
}

// InfoOf returns the declared file name and MIME type of a file field
func InfoOf(f Field) (FileInfo, error) {
	file, ok := f.(File)
	if !ok {
		return FileInfo{}, fmt.Errorf("%w: %q is a %s field, not file", ErrWrongKind, f.Name(), f.Kind())
	}
	return FileInfo{Filename: file.Filename(), ContentType: file.ContentType()}, nil
}
