package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func readTodayLog(t *testing.T, dir string) string {
	name := time.Now().UTC().Format("2006-01-02") + ".txt"
	d, err := os.ReadFile(filepath.Join(dir, name))
	assert.NoError(t, err)
	return string(d)
}

func initTestLog(t *testing.T) (string, *bytes.Buffer) {
	dir := t.TempDir()
	var buf bytes.Buffer
	Stdout = &buf
	Init(&Config{Dir: dir})
	t.Cleanup(func() {
		Close()
		Stdout = os.Stdout
	})
	return dir, &buf
}

func TestLogf(t *testing.T) {
	dir, buf := initTestLog(t)
	Logf("hello %s\n", "world")
	Logf("100%\n")
	assert.Equal(t, "hello world\n100%\n", buf.String())
	assert.Equal(t, "hello world\n100%\n", readTodayLog(t, filepath.Join(dir, "log")))

	Verbose = false
	Verbosef("hidden\n")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestErrorf(t *testing.T) {
	dir, buf := initTestLog(t)
	Errorf("failed to open '%s'", "data.csv")
	s := readTodayLog(t, filepath.Join(dir, "errors"))
	assert.True(t, strings.HasPrefix(s, "Error: failed to open 'data.csv'\n"))
	assert.Contains(t, s, "log_test.go")
	assert.Contains(t, buf.String(), "failed to open")

	assert.False(t, IfErrf(nil, "nothing"))
	assert.True(t, IfErrf(os.ErrPermission, "write %s", "x"))
	s = readTodayLog(t, filepath.Join(dir, "errors"))
	assert.Contains(t, s, "write x: permission denied")
}

func TestEvent(t *testing.T) {
	dir, _ := initTestLog(t)
	assert.NoError(t, Event("submission", "ok", true, "rows", 3))
	assert.NoError(t, Event("started"))
	assert.Error(t, Event("bad", "odd"))

	s := readTodayLog(t, filepath.Join(dir, "events"))
	assert.Contains(t, s, " submission\n")
	assert.Contains(t, s, "ok")
	assert.Contains(t, s, "rows")
	assert.Contains(t, s, " started\n")
	assert.Equal(t, 2, strings.Count(s, "--- "))
}

func TestNotInitialized(t *testing.T) {
	var buf bytes.Buffer
	Stdout = &buf
	defer func() { Stdout = os.Stdout }()
	Close()
	Logf("no files\n")
	assert.NoError(t, Event("x", "k", "v"))
	assert.Equal(t, "no files\n", buf.String())
}
