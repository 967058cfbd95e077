package atomicfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

var (
	// ErrCancelled is returned by Close() after RemoveIfNotClosed()
	ErrCancelled = errors.New("atomicfile: cancelled")

	_ io.WriteCloser = &File{}
)

// File is a temporary file that becomes dstPath on successful Close()
type File struct {
	dstPath string
	dir     string
	tmp     *os.File
	tmpPath string
	// first error we've seen, returned from all subsequent calls
	err error
}

// New creates a temporary file in the directory of path
func New(path string) (*File, error) {
	dir, name := filepath.Split(path)
	if name == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &File{
		dstPath: path,
		dir:     dir,
		tmp:     tmp,
		tmpPath: tmp.Name(),
	}, nil
}

func (f *File) closed() bool {
	return f.tmp == nil
}

func (f *File) setErr(err error) error {
	if err != nil && f.err == nil {
		f.err = err
	}
	return err
}

func (f *File) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.closed() {
		return 0, os.ErrClosed
	}
	n, err := f.tmp.Write(d)
	return n, f.setErr(err)
}

func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

// RemoveIfNotClosed deletes the temporary file unless Close() was already
// called. Meant to be used with defer.
func (f *File) RemoveIfNotClosed() {
	if f == nil || f.closed() {
		return
	}
	f.setErr(ErrCancelled)
	_ = f.Close()
}

// Close renames the temporary file to destination path. If there was an
// error, the temporary file is removed and the error is returned.
// Calling Close() more than once returns the result of the first call.
func (f *File) Close() error {
	if f.closed() {
		return f.err
	}
	tmp := f.tmp
	f.tmp = nil

	errSync := tmp.Sync()
	errClose := tmp.Close()
	if f.err == nil {
		if errSync != nil {
			f.err = errSync
		} else {
			f.err = errClose
		}
	}
	if f.err == nil {
		f.err = os.Rename(f.tmpPath, f.dstPath)
	}
	if f.err != nil {
		_ = os.Remove(f.tmpPath)
		return f.err
	}

	// make the rename durable, best effort
	if d, _ := os.Open(f.dir); d != nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
