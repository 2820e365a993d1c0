package fileutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AtomicFile is a buffered writer whose content only appears at its final
// path once Commit succeeds.
type AtomicFile struct {
	path string
	mode os.FileMode
	tmp  *os.File
	buf  *bufio.Writer
	done bool
}

// CreateAtomic opens a temporary sibling of path for writing, creating the
// parent directory when needed.
func CreateAtomic(path string, mode os.FileMode) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, err
	}
	return &AtomicFile{path: path, mode: mode, tmp: tmp, buf: bufio.NewWriter(tmp)}, nil
}

// Path returns the final destination path.
func (f *AtomicFile) Path() string {
	return f.path
}

func (f *AtomicFile) Write(p []byte) (int, error) {
	if f.done {
		return 0, os.ErrClosed
	}
	return f.buf.Write(p)
}

// Commit flushes buffered data and renames the temporary file into place.
func (f *AtomicFile) Commit() error {
	if f.done {
		return os.ErrClosed
	}
	f.done = true
	tmpName := f.tmp.Name()
	err := f.buf.Flush()
	if err == nil {
		err = f.tmp.Chmod(f.mode)
	}
	if closeErr := f.tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, f.path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
	}
	return err
}

// Abort discards the temporary file. It is a no-op after Commit.
func (f *AtomicFile) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	closeErr := f.tmp.Close()
	removeErr := os.Remove(f.tmp.Name())
	return errors.Join(closeErr, removeErr)
}

// WriteAtomic creates path by streaming write into a temporary sibling and
// renaming it into place. On any failure the temporary file is removed and
// an existing file at path is left untouched.
func WriteAtomic(path string, mode os.FileMode, write func(w io.Writer) error) error {
	f, err := CreateAtomic(path, mode)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Abort()
		return err
	}
	return f.Commit()
}
