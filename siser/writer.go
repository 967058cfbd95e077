package siser

import (
	"bytes"
	"io"
	"strconv"
	"sync"
	"time"
)

var hdrPrefix = []byte("--- ")

// Writer writes framed records to an io.Writer
type Writer struct {
	w io.Writer
	// NoTimestamp disables writing timestamp
	NoTimestamp bool

	writeBuf bytes.Buffer
	mu       sync.Mutex
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w: w,
	}
}

// WriteRecord writes r and resets it
func (w *Writer) WriteRecord(r *Record) (int, error) {
	n, err := w.Write(r.Marshal(), r.Timestamp, r.Name)
	r.Reset()
	return n, err
}

// Write writes d with a header line
func (w *Writer) Write(d []byte, t time.Time, name string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// don't keep a big buffer around
	if w.writeBuf.Cap() > 100*1024 && len(d) < 50*1024 {
		w.writeBuf = bytes.Buffer{}
	}
	if w.NoTimestamp {
		t = time.Time{}
	} else if t.IsZero() {
		t = time.Now()
	}
	return w.w.Write(MarshalLine(name, t, d, &w.writeBuf))
}

// MarshalLine frames d as:
//
//	--- $len $unix_ms $name
//	$d
//
// Timestamp is skipped if t is zero, name if empty.
// A newline is added after d if it doesn't end with one
func MarshalLine(name string, t time.Time, d []byte, wb *bytes.Buffer) []byte {
	if wb == nil {
		wb = &bytes.Buffer{}
	} else {
		wb.Reset()
	}
	wb.Grow(len(hdrPrefix) + len(name) + len(d) + 32)
	wb.Write(hdrPrefix)
	wb.WriteString(strconv.Itoa(len(d)))
	if !t.IsZero() {
		wb.WriteByte(' ')
		wb.WriteString(strconv.FormatInt(t.UnixMilli(), 10))
	}
	if name != "" {
		wb.WriteByte(' ')
		wb.WriteString(name)
	}
	wb.WriteByte('\n')
	if n := len(d); n > 0 {
		wb.Write(d)
		if d[n-1] != '\n' {
			wb.WriteByte('\n')
		}
	}
	return wb.Bytes()
}
