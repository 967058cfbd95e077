package csvstore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kjk/csvform/atomicfile"
)

var (
	// ErrEmptyRow is returned when trying to write a row without fields
	ErrEmptyRow = errors.New("csvstore: row has no fields")
)

// WriteError is returned when the file can't be opened, written or closed.
// Permission denied, full disk and missing directory all end up here.
type WriteError struct {
	Op   string
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("csvstore: %s '%s': %s", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsWriteError returns true if err is (or wraps) a *WriteError
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

// encodeRow returns fields as a single CSV row, including
// the trailing newline
func encodeRow(fields []string) ([]byte, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyRow
	}
	// csv.Writer writes a single empty field as a blank line,
	// which csv.Reader skips
	if len(fields) == 1 && fields[0] == "" {
		return []byte("\"\"\n"), nil
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// appendToFile writes d at the end of the file, creating it if needed.
// d is written with a single Write() call
func appendToFile(path string, d []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return &WriteError{Op: "open", Path: path, Err: err}
	}
	_, err = f.Write(d)
	if err != nil {
		f.Close()
		return &WriteError{Op: "write", Path: path, Err: err}
	}
	if err = f.Close(); err != nil {
		return &WriteError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// Size returns size of the file, -1 if it doesn't exist
func Size(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return st.Size()
}

// Exists returns true if the file exists and has content
func Exists(path string) bool {
	return Size(path) > 0
}

// EnsureHeader writes header as the first row if the file doesn't exist
// or is empty. Otherwise it's a no-op.
func EnsureHeader(path string, header []string) error {
	if Exists(path) {
		return nil
	}
	d, err := encodeRow(header)
	if err != nil {
		return err
	}
	return appendToFile(path, d)
}

// AppendRow appends fields as one row at the end of the file
func AppendRow(path string, fields []string) error {
	d, err := encodeRow(fields)
	if err != nil {
		return err
	}
	return appendToFile(path, d)
}

func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	// rows written before a header change can have a different
	// number of fields
	cr.FieldsPerRecord = -1
	return cr.ReadAll()
}

// ReadAll returns all rows, including the header.
// Returns nil, nil if the file doesn't exist.
func ReadAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	rows, err := readAll(f)
	if err != nil {
		return nil, fmt.Errorf("csvstore: reading '%s': %w", path, err)
	}
	return rows, nil
}

// CountRows returns number of data rows i.e. not counting the header
func CountRows(path string) (int, error) {
	rows, err := ReadAll(path)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return len(rows) - 1, nil
}

// Store is a CSV file at Path. Writes through a Store are serialized
type Store struct {
	Path string

	mu sync.Mutex
}

func New(path string) *Store {
	return &Store{
		Path: path,
	}
}

func (s *Store) EnsureHeader(header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return EnsureHeader(s.Path, header)
}

func (s *Store) AppendRow(fields []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AppendRow(s.Path, fields)
}

// Append writes the header (if needed) and a row while holding the lock,
// so that two concurrent first writes can't both emit a header
func (s *Store) Append(header []string, fields []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := EnsureHeader(s.Path, header); err != nil {
		return err
	}
	return AppendRow(s.Path, fields)
}

func (s *Store) Exists() bool {
	return Exists(s.Path)
}

func (s *Store) Size() int64 {
	return Size(s.Path)
}

func (s *Store) CountRows() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CountRows(s.Path)
}

// Snapshot writes a copy of the file to dstPath. The copy is written
// atomically and no rows are appended while copying
func (s *Store) Snapshot(dstPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := os.Open(s.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer dst.RemoveIfNotClosed()
	if _, err = io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Close()
}
