package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kjk/csvform/backup"
	"github.com/kjk/csvform/config"
	"github.com/kjk/csvform/csvstore"
	"github.com/kjk/csvform/httplogger"
	"github.com/kjk/csvform/httputil"
	"github.com/kjk/csvform/log"
	"github.com/kjk/csvform/notify"
	"github.com/kjk/csvform/u"
	"github.com/kjk/csvform/web"
)

var (
	must   = u.Must
	logf   = log.Logf
	logerr = log.Errorf
)

func ctx() context.Context {
	return context.Background()
}

// loadDotEnv loads .env from the current directory, if present.
// Variables already set in the environment take precedence
func loadDotEnv() {
	if !u.FileExists(".env") {
		return
	}
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading .env failed with '%s'\n", err)
	}
}

func makeBackupTargets(c *config.Config) []backup.Target {
	var res []backup.Target
	if c.S3.Enabled() {
		t, err := backup.NewS3Target(ctx(), c.S3)
		if err != nil {
			logerr("S3 backup disabled: backup.NewS3Target() failed with '%s'\n", err)
		} else {
			res = append(res, t)
		}
	}
	if c.SFTP.Enabled() {
		t, err := backup.NewSFTPTarget(c.SFTP)
		if err != nil {
			logerr("SFTP backup disabled: backup.NewSFTPTarget() failed with '%s'\n", err)
		} else {
			res = append(res, t)
		}
	}
	return res
}

func main() {
	loadDotEnv()
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, config.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(2)
	}

	log.Init(&log.Config{Dir: cfg.LogDir})
	defer log.Close()

	store := csvstore.New(cfg.DataPath())
	if !u.DirExists(cfg.DataDir) {
		// not fatal, submissions will report that the file can't be opened
		logerr("data directory '%s' doesn't exist\n", cfg.DataDir)
	}

	srv, err := web.New(cfg, store)
	must(err)

	srv.Backup = backup.New(store, cfg.FileName, cfg.BackupDelay, makeBackupTargets(cfg)...)
	srv.Notifier = notify.New(notify.Config{
		URL:    cfg.Webhook.URL,
		APIKey: cfg.Webhook.APIKey,
	})

	didRotate := func(path string) {
		go func() {
			err := srv.Backup.UploadRotatedLog(ctx(), path)
			log.IfErrf(err, "uploading http log '%s'", path)
		}()
	}
	srv.HTTPLog, err = httplogger.New(filepath.Join(cfg.LogDir, "http"), didRotate)
	must(err)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logf("csvform: storing %v in '%s', serving on %s\n", cfg.Columns.Header(), store.Path, cfg.Addr)
	err = log.Event("start", "addr", cfg.Addr, "file", store.Path)
	log.IfErrf(err, "log.Event()")

	serverErr := httputil.RunServerUntilSignal(httpSrv, 5*time.Second)
	if serverErr != nil {
		logerr("http server failed with '%s'\n", serverErr)
	}

	srv.Notifier.Stop()
	err = srv.Backup.Flush(ctx())
	log.IfErrf(err, "final backup")
	err = srv.HTTPLog.Close()
	log.IfErrf(err, "closing http log")
	logf("csvform: stopped\n")
	if serverErr != nil {
		log.Close()
		os.Exit(1)
	}
}
