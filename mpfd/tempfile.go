package mpfd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// DefaultPrefix is the temporary file name prefix used when none is given
const DefaultPrefix = "upload"

// Namer creates uniquely named temporary files for uploaded content
type Namer interface {
	Create() (*os.File, error)
}

// TempDir hands out files named <prefix>_<n> in a directory, with n taken
// from a counter. Names already present on disk are skipped.
//
// TempDir is safe for concurrent use.
type TempDir struct {
	dir     string
	prefix  string
	counter atomic.Uint64
}

// NewTempDir creates a namer for the given directory
func NewTempDir(dir, prefix string) *TempDir {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &TempDir{dir: dir, prefix: prefix}
}

// Dir returns the directory files are created in
func (td *TempDir) Dir() string {
	return td.dir
}

// Create implements Namer
func (td *TempDir) Create() (*os.File, error) {
	for {
		path := filepath.Join(td.dir, fmt.Sprintf("%s_%d", td.prefix, td.counter.Add(1)))
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

var probeMu sync.Mutex

// ProbeNamer picks the first of <prefix>_1, <prefix>_2, ... that does not
// exist yet. Probing is serialized across the process.
type ProbeNamer struct {
	Dir    string
	Prefix string
}

// Create implements Namer
func (pn ProbeNamer) Create() (*os.File, error) {
	prefix := pn.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	probeMu.Lock()
	defer probeMu.Unlock()

	for i := 1; ; i++ {
		path := filepath.Join(pn.Dir, fmt.Sprintf("%s_%d", prefix, i))
		if _, err := os.Lstat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			// created by another process between the probe and now
			continue
		}
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}
