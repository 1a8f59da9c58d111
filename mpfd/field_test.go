package mpfd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextField(t *testing.T) {
	f := NewTextField("name")
	assert.Equal(t, KindText, f.Kind())
	require.NoError(t, f.Append([]byte("hello, ")))
	require.NoError(t, f.Append([]byte("world")))
	assert.Equal(t, "hello, world", f.Text())

	text, err := TextOf(f)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", text)

	_, err = ContentOf(f)
	assert.ErrorIs(t, err, ErrWrongKind)
	_, err = TempPathOf(f)
	assert.ErrorIs(t, err, ErrWrongKind)
	_, err = InfoOf(f)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestTextFieldStopsAtZero(t *testing.T) {
	f := NewTextField("name")
	require.NoError(t, f.Append([]byte("abc\x00def")))
	assert.Equal(t, "abc", f.Text())
}

func TestMemoryFile(t *testing.T) {
	f := NewMemoryFile("upload", FileInfo{Filename: "a.txt", ContentType: "text/plain"})
	assert.Equal(t, KindFile, f.Kind())
	require.NoError(t, f.Append([]byte("abc")))
	require.NoError(t, f.Append([]byte("\x00def")))
	assert.Equal(t, 7, f.Size())
	assert.Equal(t, []byte("abc\x00def"), f.Bytes())
	assert.Equal(t, "a.txt", f.Filename())
	assert.Equal(t, "text/plain", f.ContentType())

	content, err := ContentOf(f)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc\x00def"), content)
	size, err := ContentSizeOf(f)
	require.NoError(t, err)
	assert.Equal(t, 7, size)

	_, err = TextOf(f)
	assert.ErrorIs(t, err, ErrWrongKind)
	_, err = TempPathOf(f)
	assert.ErrorIs(t, err, ErrWrongStorage)
}

func TestDiskFile(t *testing.T) {
	dir := t.TempDir()
	f := NewDiskFile("upload", FileInfo{Filename: "a.bin"}, NewTempDir(dir, "up"))
	assert.Equal(t, KindFile, f.Kind())
	assert.Empty(t, f.Path())

	require.NoError(t, f.Append([]byte("abc")))
	require.NoError(t, f.Append([]byte("def")))
	assert.Equal(t, filepath.Join(dir, "up_1"), f.Path())
	assert.EqualValues(t, 6, f.Size())

	// content is on disk as soon as Append returns
	content, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(content))

	path, err := TempPathOf(f)
	require.NoError(t, err)
	assert.Equal(t, f.Path(), path)
	_, err = ContentOf(f)
	assert.ErrorIs(t, err, ErrWrongStorage)
	info, err := InfoOf(f)
	require.NoError(t, err)
	assert.Equal(t, FileInfo{Filename: "a.bin"}, info)

	require.NoError(t, f.Close())
	assert.NoFileExists(t, path)
	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.Append([]byte("x")), ErrFieldClosed)
}

func TestDiskFileMove(t *testing.T) {
	dir := t.TempDir()
	f := NewDiskFile("upload", FileInfo{}, NewTempDir(dir, ""))
	require.NoError(t, f.Append([]byte("abc")))
	tmp := f.Path()

	dst := filepath.Join(dir, "kept")
	require.NoError(t, f.Move(dst))
	assert.NoFileExists(t, tmp)
	assert.Equal(t, dst, f.Path())

	require.NoError(t, f.Close())
	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(content))
}

func TestDiskFileNoNamer(t *testing.T) {
	f := NewDiskFile("upload", FileInfo{}, nil)
	assert.ErrorIs(t, f.Append([]byte("abc")), ErrNoTempDir)
	require.NoError(t, f.Close())
}

func TestAppendChunks(t *testing.T) {
	chunks := [][]byte{[]byte("ab"), []byte("cd"), []byte("ef")}

	text := NewTextField("t")
	mem := NewMemoryFile("m", FileInfo{})
	disk := NewDiskFile("d", FileInfo{}, NewTempDir(t.TempDir(), ""))
	for _, f := range []Field{text, mem, disk} {
		for _, c := range chunks {
			require.NoError(t, f.Append(c))
		}
	}

	assert.Equal(t, "abcdef", text.Text())
	assert.Equal(t, 6, mem.Size())
	content, err := os.ReadFile(disk.Path())
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(content))

	path := disk.Path()
	require.NoError(t, disk.Close())
	assert.NoFileExists(t, path)
}
