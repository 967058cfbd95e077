package filerotate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func TestIsSame(t *testing.T) {
	t1 := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	assert.True(t, IsSameDay(t1, t1.Add(time.Hour)))
	assert.False(t, IsSameDay(t1, t1.Add(24*time.Hour)))
	// same day of year, different year
	assert.False(t, IsSameDay(t1, t1.AddDate(1, 0, 0)))
	assert.True(t, IsSameHour(t1, t1.Add(time.Minute*59)))
	assert.False(t, IsSameHour(t1, t1.Add(time.Hour)))
}

func TestHourlyRotation(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 1, 2, 10, 30, 0, 0, time.UTC)
	var closed []string
	f, err := New(&Config{
		PathIfShouldRotate: MakeHourlyRotateInDir(dir, "httplog-"),
		DidClose: func(path string, didRotate bool) {
			if didRotate {
				closed = append(closed, filepath.Base(path))
			}
		},
		Now: func() time.Time { return now },
	})
	assert.NoError(t, err)
	path1 := filepath.Join(dir, "httplog-2025-01-02_10.txt")
	assert.Equal(t, path1, f.Path)

	_, err = f.Write([]byte("first\n"))
	assert.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = f.Write([]byte("second\n"))
	assert.NoError(t, err)
	path2 := filepath.Join(dir, "httplog-2025-01-02_11.txt")
	assert.Equal(t, path2, f.Path)
	assert.Equal(t, []string{"httplog-2025-01-02_10.txt"}, closed)
	assert.NoError(t, f.Flush())
	assert.NoError(t, f.Close())

	d, err := os.ReadFile(path1)
	assert.NoError(t, err)
	assert.Equal(t, "first\n", string(d))
	d, err = os.ReadFile(path2)
	assert.NoError(t, err)
	assert.Equal(t, "second\n", string(d))

	// writing after Close() re-opens the same file
	_, err = f.Write([]byte("third\n"))
	assert.NoError(t, err)
	assert.NoError(t, f.Close())
	d, err = os.ReadFile(path2)
	assert.NoError(t, err)
	assert.Equal(t, "second\nthird\n", string(d))
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	_, err = New(&Config{})
	assert.Error(t, err)
}
