package httputil

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/kjk/csvform/u"
	"github.com/klauspost/compress/gzip"
)

type FileServeOpts struct {
	// if set, sends Content-Disposition: attachment with this file name
	DownloadName string
	// if true, compresses with br or gzip, if the client accepts it
	ServeCompressed bool
}

// pick encoding from Accept-Encoding, "" means no compression
func acceptedEncoding(r *http.Request) string {
	enc := r.Header.Get("Accept-Encoding")
	if strings.Contains(enc, "br") {
		return "br"
	}
	if strings.Contains(enc, "gzip") {
		return "gzip"
	}
	return ""
}

func newCompressingWriter(w io.Writer, enc string) (io.WriteCloser, error) {
	switch enc {
	case "br":
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
	case "gzip":
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	}
	return nil, fmt.Errorf("unsupported encoding '%s'", enc)
}

// ServeFile sends a file that might be modified while we serve it.
// Compressed responses are compressed on the fly and don't support ranges.
// Returns false if the file doesn't exist, without writing a response.
func ServeFile(w http.ResponseWriter, r *http.Request, path string, opts *FileServeOpts) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return false, err
	}
	if !st.Mode().IsRegular() {
		return false, nil
	}

	hdr := w.Header()
	hdr.Set("Content-Type", u.MimeTypeFromFileName(path))
	hdr.Set("X-Content-Type-Options", "nosniff")
	if opts != nil && opts.DownloadName != "" {
		hdr.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(opts.DownloadName)))
	}

	enc := ""
	if opts != nil && opts.ServeCompressed {
		enc = acceptedEncoding(r)
	}
	if enc == "" {
		http.ServeContent(w, r, path, st.ModTime(), f)
		return true, nil
	}

	// prevent caches from serving compressed content to clients that don't accept it
	hdr.Add("Vary", "Accept-Encoding")
	hdr.Set("Content-Encoding", enc)
	hdr.Set("Last-Modified", st.ModTime().UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return true, nil
	}
	cw, err := newCompressingWriter(w, enc)
	if err != nil {
		return true, err
	}
	_, err = io.Copy(cw, f)
	err2 := cw.Close()
	if err != nil {
		return true, err
	}
	return true, err2
}
