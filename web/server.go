// Package web is the HTTP front-end: the form page, form submission,
// download of the CSV file and a status endpoint.
package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/kjk/csvform/backup"
	"github.com/kjk/csvform/config"
	"github.com/kjk/csvform/csvstore"
	"github.com/kjk/csvform/form"
	"github.com/kjk/csvform/httplogger"
	"github.com/kjk/csvform/httputil"
	"github.com/kjk/csvform/log"
	"github.com/kjk/csvform/notify"
	"github.com/kjk/csvform/u"
	"github.com/tidwall/pretty"
)

const maxFormMemory = 1 << 20

// Server handles all http requests. Notifier, Backup and HTTPLog are optional
type Server struct {
	Config   *config.Config
	Store    *csvstore.Store
	Form     *form.Handler
	Notifier *notify.Notifier
	Backup   *backup.Uploader
	HTTPLog  *httplogger.Logger

	intro  template.HTML
	static *staticFiles
	fields []field
}

func New(c *config.Config, store *csvstore.Store) (*Server, error) {
	intro, err := renderIntro(c.Intro)
	if err != nil {
		return nil, fmt.Errorf("rendering intro: %w", err)
	}
	static, err := newStaticFiles(staticFS, "static", staticURLPrefix)
	if err != nil {
		return nil, err
	}
	return &Server{
		Config: c,
		Store:  store,
		Form:   form.NewHandler(c.Columns, store),
		intro:  intro,
		static: static,
		fields: makeFields(c.Columns.FormNames()),
	}, nil
}

// legacy urls of the form page and the data file
func (s *Server) legacyRedirect(uri string) string {
	switch uri {
	case "/form.php":
		return "/"
	case "/data/" + s.Config.FileName:
		return s.Config.DownloadURL()
	}
	return ""
}

// FindHandler returns nil if no handler for r
func (s *Server) FindHandler(r *http.Request) http.HandlerFunc {
	uri := r.URL.Path
	switch uri {
	case "/":
		return s.handleIndex
	case s.Config.DownloadURL():
		return s.handleDownload
	case "/api/status":
		return s.handleStatus
	case "/ping":
		return handlePing
	}
	if strings.HasPrefix(uri, staticURLPrefix) {
		return s.static.Get(uri)
	}
	if to := s.legacyRedirect(uri); to != "" {
		return func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, to, http.StatusMovedPermanently)
		}
	}
	return nil
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if h := s.FindHandler(r); h != nil {
		h(w, r)
		return
	}
	if tryServeBadClient(w, r) {
		return
	}
	http.NotFound(w, r)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// health checks are frequent, don't log them
	if r.URL.Path == "/ping" {
		handlePing(w, r)
		return
	}
	timeStart := time.Now()
	cw := httputil.NewCapturingResponseWriter(w)
	s.serve(cw, r)
	err := s.HTTPLog.LogReq(r, cw.StatusCode, cw.Size, time.Since(timeStart))
	log.IfErrf(err, "HTTPLog.LogReq()")
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("pong"))
}

func (s *Server) pageData() *pageData {
	d := &pageData{
		Title:    s.Config.Title,
		Intro:    s.intro,
		Fields:   s.fields,
		FileURL:  s.Config.DownloadURL(),
		FileName: s.Config.FileName,
	}
	d.HasData = s.Store.Exists()
	if d.HasData {
		d.Size = u.FormatSize(s.Store.Size())
		rows, err := s.Store.CountRows()
		log.IfErrf(err, "Store.CountRows()")
		d.Rows = rows
	}
	return d
}

func (s *Server) renderPage(w http.ResponseWriter, code int, d *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	err := tmplPage.Execute(w, d)
	log.IfErrf(err, "tmplPage.Execute()")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.renderPage(w, http.StatusOK, s.pageData())
	case http.MethodPost:
		s.handleSubmit(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func parseForm(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory)
	if err := parseForm(r); err != nil {
		log.Logf("parsing form failed with '%s'\n", err)
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	res := s.Form.HandleRequest(r)
	code := http.StatusOK
	if res.OK {
		s.didStore(res.Record)
	} else {
		code = http.StatusInternalServerError
		log.Errorf("storing submission in '%s' failed with '%s'\n", s.Store.Path, res.Err)
	}
	d := s.pageData()
	d.Message = res.Message
	d.OK = res.OK
	s.renderPage(w, code, d)
}

// didStore kicks off background work after a record has been written
func (s *Server) didStore(record []string) {
	header := s.Config.Columns.Header()
	err := log.Event("submission", "file", s.Config.FileName, "fields", len(record))
	log.IfErrf(err, "log.Event()")
	s.Backup.Schedule()
	s.Notifier.Notify(&notify.Payload{
		File:    s.Config.FileName,
		Columns: header,
		Values:  record,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// an empty file has no header either, same as no data
	if !s.Store.Exists() {
		http.NotFound(w, r)
		return
	}
	opts := &httputil.FileServeOpts{
		DownloadName:    s.Config.FileName,
		ServeCompressed: true,
	}
	served, err := httputil.ServeFile(w, r, s.Store.Path, opts)
	if err != nil {
		log.Errorf("serving '%s' failed with '%s'\n", s.Store.Path, err)
		if !served {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	if !served {
		http.NotFound(w, r)
	}
}

type status struct {
	Exists    bool     `json:"exists"`
	Size      int64    `json:"size"`
	SizeHuman string   `json:"size_human"`
	Rows      int      `json:"rows"`
	Columns   []string `json:"columns"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := status{
		Exists:  s.Store.Exists(),
		Columns: s.Config.Columns.Header(),
	}
	if st.Exists {
		st.Size = s.Store.Size()
		st.SizeHuman = u.FormatSize(st.Size)
		rows, err := s.Store.CountRows()
		if err != nil {
			log.Errorf("Store.CountRows() failed with '%s'\n", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		st.Rows = rows
	}
	d, err := json.Marshal(st)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if r.URL.Query().Get("pretty") != "" {
		d = pretty.Pretty(d)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(d)
}
