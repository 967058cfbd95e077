package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert"
	"github.com/andybalholm/brotli"
	"github.com/kjk/csvform/backup"
	"github.com/kjk/csvform/config"
	"github.com/kjk/csvform/csvstore"
	"github.com/kjk/csvform/httplogger"
	"github.com/kjk/csvform/log"
	"github.com/kjk/csvform/notify"
	"github.com/klauspost/compress/gzip"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)

const (
	expHeader = "name,email,message,timestamp\n"
	expRow    = "Taro,t@example.com,Hi there,2025-03-14 09:26:53\n"
)

func newTestServer(t *testing.T, env map[string]string) *Server {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	if env["CSVFORM_DATA_DIR"] == "" {
		env["CSVFORM_DATA_DIR"] = t.TempDir()
	}
	getenv := func(k string) string { return env[k] }
	c, err := config.Load(nil, getenv, io.Discard)
	assert.NoError(t, err)
	s, err := New(c, csvstore.New(c.DataPath()))
	assert.NoError(t, err)
	s.Form.Now = func() time.Time { return fixedNow }
	return s
}

func do(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, r)
	return rr
}

func get(s *Server, uri string) *httptest.ResponseRecorder {
	return do(s, httptest.NewRequest(http.MethodGet, uri, nil))
}

func postForm(s *Server, vals url.Values) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(vals.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(s, r)
}

var scenarioForm = url.Values{
	"name":    {"Taro"},
	"email":   {"t@example.com"},
	"message": {"Hi\nthere"},
}

func readFile(t *testing.T, path string) string {
	d, err := os.ReadFile(path)
	assert.NoError(t, err)
	return string(d)
}

func TestIndexNoData(t *testing.T) {
	s := newTestServer(t, nil)
	rr := get(s, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, "<title>Data entry</title>")
	assert.Contains(t, body, "No data has been saved yet.")
	assert.Contains(t, body, `<input type="text" id="name" name="name" required>`)
	assert.Contains(t, body, `<input type="email" id="email" name="email" required>`)
	assert.Contains(t, body, `<textarea id="message" name="message" rows="4"></textarea>`)
	assert.NotContains(t, body, `class="message`)
}

func TestIntroMarkdown(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"CSVFORM_TITLE": "Sign up",
		"CSVFORM_INTRO": "Please **sign up** below.",
	})
	body := get(s, "/").Body.String()
	assert.Contains(t, body, "<h1>Sign up</h1>")
	assert.Contains(t, body, "<strong>sign up</strong>")
}

func TestSubmit(t *testing.T) {
	s := newTestServer(t, nil)
	rr := postForm(s, scenarioForm)
	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `<div class="message success">Data saved successfully.</div>`)
	assert.Contains(t, body, `href="/data.csv"`)
	assert.Contains(t, body, "(1 rows,")
	assert.Equal(t, expHeader+expRow, readFile(t, s.Store.Path))

	rr = postForm(s, url.Values{"name": {"Hanako"}, "extra": {"ignored"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	exp := expHeader + expRow + "Hanako,,,2025-03-14 09:26:53\n"
	assert.Equal(t, exp, readFile(t, s.Store.Path))
}

func TestSubmitMultipart(t *testing.T) {
	s := newTestServer(t, nil)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, k := range []string{"name", "email", "message"} {
		assert.NoError(t, mw.WriteField(k, scenarioForm.Get(k)))
	}
	assert.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rr := do(s, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, expHeader+expRow, readFile(t, s.Store.Path))
}

func TestSubmitStoreUnavailable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	s := newTestServer(t, map[string]string{"CSVFORM_DATA_DIR": dir})
	rr := postForm(s, scenarioForm)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `<div class="message error">`)
	assert.Contains(t, body, "could not open the file")
	assert.Contains(t, body, "No data has been saved yet.")
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)
	rr := do(s, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	rr = do(s, httptest.NewRequest(http.MethodPost, "/data.csv", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestDownload(t *testing.T) {
	s := newTestServer(t, nil)
	rr := get(s, "/data.csv")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// empty file is the same as no file
	err := os.WriteFile(s.Store.Path, nil, 0644)
	assert.NoError(t, err)
	rr = get(s, "/data.csv")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	postForm(s, scenarioForm)
	rr = get(s, "/data.csv")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="data.csv"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, expHeader+expRow, rr.Body.String())
}

func TestDownloadCompressed(t *testing.T) {
	s := newTestServer(t, nil)
	postForm(s, scenarioForm)

	r := httptest.NewRequest(http.MethodGet, "/data.csv", nil)
	r.Header.Set("Accept-Encoding", "gzip, deflate, br")
	rr := do(s, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "br", rr.Header().Get("Content-Encoding"))
	d, err := io.ReadAll(brotli.NewReader(rr.Body))
	assert.NoError(t, err)
	assert.Equal(t, expHeader+expRow, string(d))

	r = httptest.NewRequest(http.MethodGet, "/data.csv", nil)
	r.Header.Set("Accept-Encoding", "gzip")
	rr = do(s, r)
	assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	gr, err := gzip.NewReader(rr.Body)
	assert.NoError(t, err)
	d, err = io.ReadAll(gr)
	assert.NoError(t, err)
	assert.Equal(t, expHeader+expRow, string(d))
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, nil)
	var st status
	rr := get(s, "/api/status")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.False(t, st.Exists)
	assert.Equal(t, []string{"name", "email", "message", "timestamp"}, st.Columns)

	postForm(s, scenarioForm)
	postForm(s, scenarioForm)
	rr = get(s, "/api/status?pretty=1")
	assert.Contains(t, rr.Body.String(), "\n  \"exists\": true")
	st = status{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.True(t, st.Exists)
	assert.Equal(t, 2, st.Rows)
	size := int64(len(expHeader) + 2*len(expRow))
	assert.Equal(t, size, st.Size)
	assert.Equal(t, "125 bytes", st.SizeHuman)
}

func TestPingAndMisc(t *testing.T) {
	s := newTestServer(t, nil)
	rr := get(s, "/ping")
	assert.Equal(t, "pong", rr.Body.String())

	rr = get(s, "/static/style.css")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/css")

	rr = get(s, "/form.php")
	assert.Equal(t, http.StatusMovedPermanently, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	rr = get(s, "/data/data.csv")
	assert.Equal(t, http.StatusMovedPermanently, rr.Code)
	assert.Equal(t, "/data.csv", rr.Header().Get("Location"))

	rr = get(s, "/no-such-page")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBadClients(t *testing.T) {
	s := newTestServer(t, nil)
	for _, uri := range []string{"/wp-login.php", "/.env", "/backup.sql", "/images/", "/index.php?x=1"} {
		rr := get(s, uri)
		assert.Equal(t, http.StatusOK, rr.Code, uri)
		assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("<html><body>")), uri)
	}
	assert.False(t, isBadClient("/data.csv"))
	assert.False(t, isBadClient("/"))
}

func TestAccessLog(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()
	l, err := httplogger.New(dir, nil)
	assert.NoError(t, err)
	s.HTTPLog = l
	get(s, "/")
	get(s, "/ping")
	postForm(s, scenarioForm)
	assert.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(dir, "httplog-*.txt"))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(files))
	d := readFile(t, files[0])
	assert.Contains(t, d, "req: GET / 200\n")
	assert.Contains(t, d, "req: POST / 200\n")
	assert.NotContains(t, d, "/ping")
}

type chanTarget struct {
	mu    sync.Mutex
	names []string
	done  chan struct{}
}

func (t *chanTarget) Name() string {
	return "test"
}

func (t *chanTarget) Upload(ctx context.Context, localPath string, remoteName string) error {
	t.mu.Lock()
	t.names = append(t.names, remoteName)
	t.mu.Unlock()
	t.done <- struct{}{}
	return nil
}

func TestSubmitSchedulesBackupAndNotifies(t *testing.T) {
	var mu sync.Mutex
	var got []notify.Payload
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p notify.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err == nil {
			mu.Lock()
			got = append(got, p)
			mu.Unlock()
		}
	}))
	defer hook.Close()

	s := newTestServer(t, nil)
	s.Notifier = notify.New(notify.Config{URL: hook.URL})
	target := &chanTarget{done: make(chan struct{}, 1)}
	s.Backup = backup.New(s.Store, s.Config.FileName, time.Millisecond*20, target)
	s.Backup.TempDir = t.TempDir()

	rr := postForm(s, scenarioForm)
	assert.Equal(t, http.StatusOK, rr.Code)

	select {
	case <-target.done:
	case <-time.After(time.Second * 5):
		t.Fatal("backup didn't run")
	}
	assert.True(t, strings.HasSuffix(target.names[0], ".csv.br"))

	s.Notifier.Stop()
	assert.Equal(t, 1, len(got))
	assert.Equal(t, []string{"name", "email", "message", "timestamp"}, got[0].Columns)
	assert.Equal(t, []string{"Taro", "t@example.com", "Hi there", "2025-03-14 09:26:53"}, got[0].Values)

	// failed submissions don't notify
	s2 := newTestServer(t, map[string]string{"CSVFORM_DATA_DIR": filepath.Join(t.TempDir(), "missing")})
	n := notify.New(notify.Config{URL: hook.URL})
	s2.Notifier = n
	postForm(s2, scenarioForm)
	n.Stop()
	assert.Equal(t, 1, len(got))
}

func TestLabelFromName(t *testing.T) {
	assert.Equal(t, "First name", labelFromName("first_name"))
	assert.Equal(t, "Email", labelFromName("email"))
	assert.Equal(t, "", labelFromName(""))
	assert.Equal(t, "名前", labelFromName("名前"))
	assert.Equal(t, "Élan vital", labelFromName("élan_vital"))
}

func TestSubmitLogsEventFailure(t *testing.T) {
	logDir := t.TempDir()
	// events dir can't be created, so log.Event() fails
	err := os.WriteFile(filepath.Join(logDir, "events"), nil, 0644)
	assert.NoError(t, err)
	var buf bytes.Buffer
	log.Stdout = &buf
	log.Init(&log.Config{Dir: logDir})
	defer func() {
		log.Close()
		log.Stdout = os.Stdout
	}()

	s := newTestServer(t, nil)
	rr := postForm(s, scenarioForm)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, buf.String(), "Error: log.Event()")
}
