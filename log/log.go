package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kjk/csvform/siser"
	"github.com/toon-format/toon-go"
)

var (
	log       *WriteDaily
	errorsLog *WriteDaily
	eventsLog *WriteDaily

	// where Logf() prints, in addition to log files
	Stdout io.Writer = os.Stdout

	// if true, Verbosef() will log messages
	Verbose bool
)

// WriteDaily appends to <Dir>/YYYY-MM-DD.txt, switching files at midnight UTC
type WriteDaily struct {
	Dir         string
	currentDate string
	file        *os.File
	mu          sync.Mutex
}

func NewWriteDaily(dir string) *WriteDaily {
	return &WriteDaily{
		Dir: dir,
	}
}

// Write is safe to call on nil receiver
func (w *WriteDaily) Write(d []byte) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	if w.file != nil && w.currentDate != today {
		if err := w.close(); err != nil {
			return err
		}
	}
	if w.file == nil {
		// don't create directories until there's something to log
		if err := os.MkdirAll(w.Dir, 0755); err != nil {
			return err
		}
		path := filepath.Join(w.Dir, today+".txt")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		w.file = f
		w.currentDate = today
	}
	_, err := w.file.Write(d)
	return err
}

func (w *WriteDaily) WriteString(s string) error {
	return w.Write([]byte(s))
}

func (w *WriteDaily) close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.currentDate = ""
	return err
}

// Close is safe to call on nil receiver
func (w *WriteDaily) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.close()
}

type Config struct {
	// directory where log files are stored
	// each log type (regular, errors, events) has its own subdirectory
	Dir string
}

// Init initializes the logging system
func Init(config *Config) {
	dir := config.Dir
	log = NewWriteDaily(filepath.Join(dir, "log"))
	errorsLog = NewWriteDaily(filepath.Join(dir, "errors"))
	eventsLog = NewWriteDaily(filepath.Join(dir, "events"))
}

func Close() {
	log.Close()
	errorsLog.Close()
	eventsLog.Close()
	log = nil
	errorsLog = nil
	eventsLog = nil
}

func Logf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	fmt.Fprint(Stdout, s)
	log.WriteString(s)
}

func Verbosef(format string, args ...any) {
	if !Verbose {
		return
	}
	Logf(format, args...)
}

func GetCallstack(skip int) string {
	var callers [32]uintptr
	n := runtime.Callers(skip+1, callers[:])
	frames := runtime.CallersFrames(callers[:n])
	var cs []string
	for {
		frame, more := frames.Next()
		cs = append(cs, frame.File+":"+strconv.Itoa(frame.Line))
		if !more {
			break
		}
	}
	return strings.Join(cs, "\n")
}

// Errorf logs an error message along with the callstack
func Errorf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	s = "Error: " + s + GetCallstack(2) + "\n"
	Logf("%s", s)
	errorsLog.WriteString(s)
}

// IfErrf logs err and returns true if err is not nil
func IfErrf(err error, format string, args ...any) bool {
	if err == nil {
		return false
	}
	s := fmt.Sprintf(format, args...)
	Errorf("%s: %s", s, err)
	return true
}

// Event logs an event with key / value pairs, encoded as toon
// e.g. Event("submission", "ok", true, "rows", 5)
func Event(name string, vals ...any) error {
	n := len(vals)
	if n%2 != 0 {
		return fmt.Errorf("Event('%s'): odd number of values (%d)", name, n)
	}
	var d []byte
	if n > 0 {
		m := map[string]any{}
		for i := 0; i < n; i += 2 {
			k := fmt.Sprintf("%v", vals[i])
			m[k] = vals[i+1]
		}
		var err error
		d, err = toon.Marshal(m)
		if err != nil {
			return err
		}
	}
	line := siser.MarshalLine(name, time.Now().UTC(), d, nil)
	return eventsLog.Write(line)
}
