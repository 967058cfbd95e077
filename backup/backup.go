// Package backup keeps off-site copies of the CSV file.
//
// After a write, Schedule arms a debounced timer. When it fires, a snapshot
// of the file is brotli-compressed and uploaded to every Target.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kjk/csvform/log"
	"github.com/kjk/csvform/u"
)

// Target is a place backups are uploaded to
type Target interface {
	Name() string
	// Upload uploads localPath as remoteName (a relative, slash-separated path)
	Upload(ctx context.Context, localPath string, remoteName string) error
}

// Snapshotter is implemented by csvstore.Store
type Snapshotter interface {
	Exists() bool
	Snapshot(dstPath string) error
}

const uploadTimeout = time.Minute * 5

type Uploader struct {
	Store   Snapshotter
	Targets []Target
	// base name of uploaded file e.g. "data.csv"
	Name string
	// where snapshots are created, defaults to os.TempDir()
	TempDir string
	Now     func() time.Time

	debouncer u.Debouncer
	// set by Schedule, cleared when a backup starts
	dirty atomic.Bool
	// serializes runs
	mu sync.Mutex
}

// New returns nil if there are no targets. Methods on nil Uploader do nothing
func New(store Snapshotter, name string, delay time.Duration, targets ...Target) *Uploader {
	if len(targets) == 0 {
		return nil
	}
	res := &Uploader{
		Store:   store,
		Targets: targets,
		Name:    name,
	}
	res.debouncer.Timeout = delay
	return res
}

func (b *Uploader) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// RemoteName returns e.g. "2025/03-14/data-2025-03-14_09-26-53.csv.br"
func RemoteName(name string, t time.Time) string {
	t = t.UTC()
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	return fmt.Sprintf("%s/%s/%s-%s%s.br", t.Format("2006"), t.Format("01-02"), base, t.Format("2006-01-02_15-04-05"), ext)
}

// Schedule runs a backup after the delay. Calls made while one is pending
// are coalesced into it
func (b *Uploader) Schedule() {
	if b == nil {
		return
	}
	b.dirty.Store(true)
	b.debouncer.Debounce(func() {
		if err := b.Flush(context.Background()); err != nil {
			log.Errorf("backup failed with '%s'\n", err)
		}
	})
}

// Flush runs a backup if there were writes since the last one
func (b *Uploader) Flush(ctx context.Context) error {
	if b == nil || !b.dirty.Load() {
		return nil
	}
	return b.Run(ctx)
}

// Run does a backup now
func (b *Uploader) Run(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty.Store(false)

	if !b.Store.Exists() {
		return nil
	}
	dir, err := os.MkdirTemp(b.TempDir, "csvform-backup-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	snapshotPath := filepath.Join(dir, b.Name)
	if err = b.Store.Snapshot(snapshotPath); err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}
	pathBr := snapshotPath + ".br"
	if err = u.BrCompressFileBest(pathBr, snapshotPath); err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	remoteName := RemoteName(b.Name, b.now())
	return b.uploadToAll(ctx, pathBr, remoteName)
}

func (b *Uploader) uploadToAll(ctx context.Context, path string, remoteName string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	var errs []error
	size := u.FormatSize(u.FileSize(path))
	for _, t := range b.Targets {
		timeStart := time.Now()
		err := t.Upload(ctx, path, remoteName)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
			continue
		}
		log.Logf("backup: uploaded '%s' (%s) to %s as '%s' in %s\n", path, size, t.Name(), remoteName, time.Since(timeStart))
		err = log.Event("backup", "target", t.Name(), "remote", remoteName, "size", size)
		log.IfErrf(err, "log.Event()")
	}
	return errors.Join(errs...)
}

// UploadRotatedLog compresses a rotated http log file
// (httplog-2021-10-06_01.txt) and uploads it as
// httplog/2021/10-06/2021-10-06_01.txt.br
func (b *Uploader) UploadRotatedLog(ctx context.Context, path string) error {
	if b == nil {
		return nil
	}
	remoteName := remoteLogName(path)
	if remoteName == "" {
		return fmt.Errorf("unexpected log file name '%s'", path)
	}
	pathBr := path + ".br"
	defer os.Remove(pathBr)
	if err := u.BrCompressFileBest(pathBr, path); err != nil {
		return err
	}
	return b.uploadToAll(ctx, pathBr, remoteName)
}

// remoteLogName returns "" if path is not in expected format
func remoteLogName(path string) string {
	name := filepath.Base(path)
	const prefix = "httplog-"
	const ext = ".txt"
	if len(name) != len(prefix)+len("2006-01-02_15")+len(ext) {
		return ""
	}
	if name[:len(prefix)] != prefix || name[len(name)-len(ext):] != ext {
		return ""
	}
	ts := name[len(prefix) : len(name)-len(ext)]
	t, err := time.Parse("2006-01-02_15", ts)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("httplog/%s/%s/%s.txt.br", t.Format("2006"), t.Format("01-02"), ts)
}
