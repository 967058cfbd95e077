// Package filerotate is an io.Writer that switches to a new file
// when the period (hour, day) changes. Used for logs.
package filerotate

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Config struct {
	// called after a file is closed, didRotate is false on Close()
	DidClose func(path string, didRotate bool)
	// returns path of a new file if we should switch to it, "" otherwise
	PathIfShouldRotate func(creationTime time.Time, now time.Time) string
	// returns current time, time.Now if nil
	Now func() time.Time
}

type File struct {
	mu sync.Mutex

	// Path is the path of the current file
	Path string

	creationTime time.Time
	config       Config
	file         *os.File
}

func IsSameDay(t1, t2 time.Time) bool {
	return t1.Year() == t2.Year() && t1.YearDay() == t2.YearDay()
}

func IsSameHour(t1, t2 time.Time) bool {
	return IsSameDay(t1, t2) && t1.Hour() == t2.Hour()
}

func New(config *Config) (*File, error) {
	if config == nil {
		return nil, fmt.Errorf("must provide config")
	}
	if config.PathIfShouldRotate == nil {
		return nil, fmt.Errorf("must provide config.PathIfShouldRotate")
	}
	f := &File{
		config: *config,
	}
	if f.config.Now == nil {
		f.config.Now = time.Now
	}
	if err := f.reopenIfNeeded(); err != nil {
		return nil, err
	}
	return f, nil
}

func makeRotateInDir(dir, prefix, format string, same func(t1, t2 time.Time) bool) func(time.Time, time.Time) string {
	return func(creationTime time.Time, now time.Time) string {
		if same(creationTime, now) {
			return ""
		}
		name := prefix + now.Format(format) + ".txt"
		return filepath.Join(dir, name)
	}
}

// MakeDailyRotateInDir names files <dir>/<prefix>2006-01-02.txt
func MakeDailyRotateInDir(dir string, prefix string) func(time.Time, time.Time) string {
	return makeRotateInDir(dir, prefix, "2006-01-02", IsSameDay)
}

// MakeHourlyRotateInDir names files <dir>/<prefix>2006-01-02_15.txt
func MakeHourlyRotateInDir(dir string, prefix string) func(time.Time, time.Time) string {
	return makeRotateInDir(dir, prefix, "2006-01-02_15", IsSameHour)
}

// NewDaily creates a file rotating daily in a given directory
func NewDaily(dir string, prefix string, didClose func(path string, didRotate bool)) (*File, error) {
	return New(&Config{
		DidClose:           didClose,
		PathIfShouldRotate: MakeDailyRotateInDir(dir, prefix),
	})
}

// NewHourly creates a file rotating hourly in a given directory
func NewHourly(dir string, prefix string, didClose func(path string, didRotate bool)) (*File, error) {
	return New(&Config{
		DidClose:           didClose,
		PathIfShouldRotate: MakeHourlyRotateInDir(dir, prefix),
	})
}

func (f *File) close(didRotate bool) error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	if err == nil && f.config.DidClose != nil {
		f.config.DidClose(f.Path, didRotate)
	}
	return err
}

func (f *File) open(path string, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	f.file = file
	f.Path = path
	f.creationTime = now
	return nil
}

func (f *File) reopenIfNeeded() error {
	now := f.config.Now()
	newPath := f.config.PathIfShouldRotate(f.creationTime, now)
	if newPath == "" && f.file != nil {
		return nil
	}
	if newPath == "" {
		// closed by Close(), re-open the last file
		newPath = f.Path
	}
	if err := f.close(true); err != nil {
		return err
	}
	return f.open(newPath, now)
}

// Write writes data to the current file, rotating first if needed
func (f *File) Write(d []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.reopenIfNeeded(); err != nil {
		return 0, err
	}
	return f.file.Write(d)
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.close(false)
}

// Flush syncs the current file to disk
func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	return f.file.Sync()
}
