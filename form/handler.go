package form

import (
	"net/http"
	"time"

	"github.com/kjk/csvform/csvstore"
)

// RecordStore is where records are written to
type RecordStore interface {
	EnsureHeader(header []string) error
	AppendRow(fields []string) error
}

const (
	msgSaved            = "Data saved successfully."
	msgStoreUnavailable = "An error occurred: could not open the file. Check the server's write permissions."
	msgWriteFailed      = "An error occurred: could not save the data."
)

// Result is the outcome of handling a submission
type Result struct {
	OK      bool
	Message string
	// underlying error, nil if OK
	Err error
	// the record that was written, nil if not OK
	Record []string
}

func Succeeded(record []string) Result {
	return Result{OK: true, Message: msgSaved, Record: record}
}

func Failed(reason string, err error) Result {
	return Result{OK: false, Message: reason, Err: err}
}

// Handler stores submissions with a fixed set of columns
type Handler struct {
	Columns *Columns
	Store   RecordStore
	// Now returns current time. If nil, uses time.Now
	Now func() time.Time
}

func NewHandler(cols *Columns, store RecordStore) *Handler {
	return &Handler{
		Columns: cols,
		Store:   store,
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// HandleSubmission stores one submission
func (h *Handler) HandleSubmission(sub Submission) Result {
	return h.handle(sub, nil)
}

// HandleRequest stores a submission from a parsed form in r.
// Generators like remote_ip use r
func (h *Handler) HandleRequest(r *http.Request) Result {
	sub := Submission{}
	for _, name := range h.Columns.FormNames() {
		if vals, ok := r.Form[name]; ok && len(vals) > 0 {
			sub[name] = vals[0]
		}
	}
	return h.handle(sub, r)
}

func (h *Handler) handle(sub Submission, r *http.Request) Result {
	ctx := &AutoContext{
		Now:     h.now(),
		Request: r,
	}
	record := BuildRecord(h.Columns, sub, ctx)
	if err := h.write(record); err != nil {
		if csvstore.IsWriteError(err) {
			return Failed(msgStoreUnavailable, err)
		}
		return Failed(msgWriteFailed, err)
	}
	return Succeeded(record)
}

type appender interface {
	Append(header []string, fields []string) error
}

func (h *Handler) write(record []string) error {
	header := h.Columns.Header()
	// header and row under one lock if the store supports it
	if a, ok := h.Store.(appender); ok {
		return a.Append(header, record)
	}
	if err := h.Store.EnsureHeader(header); err != nil {
		return err
	}
	return h.Store.AppendRow(record)
}
