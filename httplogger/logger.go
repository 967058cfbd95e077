// Package httplogger writes one siser record per HTTP request
// into hourly rotated files.
package httplogger

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kjk/csvform/filerotate"
	"github.com/kjk/csvform/httputil"
	"github.com/kjk/csvform/siser"
)

const recName = "httplog"

type Logger struct {
	rec   siser.Record // re-usable for performance
	siser *siser.Writer
	file  *filerotate.File
	mu    sync.Mutex

	Dir string
}

// New creates a logger writing to <dir>/httplog-YYYY-MM-DD_HH.txt
func New(dir string, didRotateFn func(path string)) (*Logger, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	didClose := func(path string, didRotate bool) {
		if didRotate && didRotateFn != nil {
			didRotateFn(path)
		}
	}
	file, err := filerotate.NewHourly(absDir, "httplog-", didClose)
	if err != nil {
		return nil, err
	}
	return &Logger{
		Dir:   absDir,
		file:  file,
		siser: siser.NewWriter(file),
	}, nil
}

// Close is safe to call on nil logger
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.siser = nil
	return err
}

// headers not worth logging
var hdrsToNotLog = map[string]bool{
	"connection":                true,
	"sec-ch-ua-mobile":          true,
	"sec-fetch-dest":            true,
	"sec-ch-ua-platform":        true,
	"dnt":                       true,
	"upgrade-insecure-requests": true,
	"sec-fetch-site":            true,
	"sec-fetch-mode":            true,
	"sec-fetch-user":            true,
	"if-modified-since":         true,
	"accept-language":           true,
	"cf-ray":                    true,
	"cf-visitor":                true,
	"x-request-start":           true,
	"cdn-loop":                  true,
	"x-forwarded-proto":         true,
	"cookie":                    true,
	"authorization":             true,
}

func shouldLogHeader(s string) bool {
	return !hdrsToNotLog[strings.ToLower(s)]
}

// LogReq is safe to call on nil logger
func (l *Logger) LogReq(r *http.Request, code int, size int64, dur time.Duration) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.siser == nil {
		return nil
	}

	rec := &l.rec
	rec.Reset()
	rec.Name = recName
	rec.Write("req", fmt.Sprintf("%s %s %d", r.Method, r.RequestURI, code))
	rec.WriteNonEmpty("host", r.Host, "ipaddr", httputil.GetBestRemoteAddress(r))
	rec.Write("size", strconv.FormatInt(size, 10))
	rec.Write("durmicro", strconv.FormatInt(dur.Microseconds(), 10))

	// don't log headers for requests from our own pages
	ref := r.Header.Get("Referer")
	selfReferral := ref != "" && strings.Contains(ref, r.Host)
	if !selfReferral {
		for k, v := range r.Header {
			if shouldLogHeader(k) && len(v) > 0 {
				rec.WriteNonEmpty(k, v[0])
			}
		}
	}

	_, err := l.siser.WriteRecord(rec)
	return err
}
