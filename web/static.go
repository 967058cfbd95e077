package web

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"
)

//go:embed static
var staticFS embed.FS

const staticURLPrefix = "/static/"

// staticFiles serves files embedded in the binary
type staticFiles struct {
	files   map[string][]byte // url => content
	modTime time.Time
}

func newStaticFiles(fsys fs.FS, dir string, urlPrefix string) (*staticFiles, error) {
	res := &staticFiles{
		files:   map[string][]byte{},
		modTime: time.Now(),
	}
	err := fs.WalkDir(fsys, dir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(fsys, filePath)
		if err != nil {
			return err
		}
		// embed.FS uses "/" as path separator
		uri := path.Join(urlPrefix, strings.TrimPrefix(filePath, dir))
		res.files[strings.ToLower(uri)] = data
		return nil
	})
	return res, err
}

// Get returns nil if uri is not a static file
func (h *staticFiles) Get(uri string) http.HandlerFunc {
	// urls are case-insensitive
	d, ok := h.files[strings.ToLower(uri)]
	if !ok {
		return nil
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		http.ServeContent(w, r, uri, h.modTime, bytes.NewReader(d))
	}
}
