// Package config builds the immutable configuration of csvform from
// defaults, an optional TOML file, environment variables and flags
// (in increasing order of precedence).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kjk/csvform/form"
)

const (
	DefaultFileName    = "data.csv"
	DefaultAddr        = ":8080"
	DefaultLogDir      = "logs"
	DefaultTitle       = "Data entry"
	DefaultBackupDelay = time.Minute
)

var (
	DefaultFormColumns = []string{"name", "email", "message"}
	DefaultAutoColumns = []string{"timestamp"}
)

type WebhookConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

func (c WebhookConfig) Enabled() bool {
	return c.URL != ""
}

// S3Config is S3-compatible storage (AWS, DigitalOcean Spaces, Backblaze, minio)
type S3Config struct {
	Endpoint string `toml:"endpoint"`
	Access   string `toml:"access"`
	Secret   string `toml:"secret"`
	Bucket   string `toml:"bucket"`
	Region   string `toml:"region"`
	Prefix   string `toml:"prefix"`
}

func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Access != "" && c.Secret != "" && c.Bucket != ""
}

type SFTPConfig struct {
	Addr    string `toml:"addr"`
	User    string `toml:"user"`
	KeyPath string `toml:"key"`
	Dir     string `toml:"dir"`
}

func (c SFTPConfig) Enabled() bool {
	return c.Addr != "" && c.User != "" && c.KeyPath != ""
}

type autoColumnFile struct {
	Name      string `toml:"name"`
	Generator string `toml:"generator"`
}

// fileConfig is the layout of the TOML config file
type fileConfig struct {
	DataDir     string           `toml:"data_dir"`
	File        string           `toml:"file"`
	Addr        string           `toml:"addr"`
	LogDir      string           `toml:"log_dir"`
	Title       string           `toml:"title"`
	Intro       string           `toml:"intro"`
	FormColumns []string         `toml:"form_columns"`
	AutoColumns []autoColumnFile `toml:"auto_columns"`
	BackupDelay string           `toml:"backup_delay"`
	Webhook     WebhookConfig    `toml:"webhook"`
	S3          S3Config         `toml:"s3"`
	SFTP        SFTPConfig       `toml:"sftp"`
}

// Config is created once at startup and not modified afterwards
type Config struct {
	DataDir  string
	FileName string
	Addr     string
	LogDir   string
	Title    string
	// Markdown shown above the form
	Intro       string
	BackupDelay time.Duration

	Columns *form.Columns

	Webhook WebhookConfig
	S3      S3Config
	SFTP    SFTPConfig
}

// DataPath is the path of the CSV file
func (c *Config) DataPath() string {
	return filepath.Join(c.DataDir, c.FileName)
}

// DownloadURL is the URL at which the CSV file is served
func (c *Config) DownloadURL() string {
	return "/" + c.FileName
}

// SplitList splits "a, b,,c" into ["a", "b", "c"]
func SplitList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			res = append(res, part)
		}
	}
	return res
}

// raw holds values before validation
type raw struct {
	dataDir     string
	file        string
	addr        string
	logDir      string
	title       string
	intro       string
	formColumns []string
	autoColumns []form.AutoColumn
	backupDelay string
	webhook     WebhookConfig
	s3          S3Config
	sftp        SFTPConfig
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseAutoColumns(names []string) []form.AutoColumn {
	var res []form.AutoColumn
	for _, s := range names {
		res = append(res, form.ParseAutoColumn(s))
	}
	return res
}

// parseAutoList parses "timestamp,ip:remote_ip". "none" means no auto columns
func parseAutoList(s string) []form.AutoColumn {
	if strings.TrimSpace(s) == "none" {
		return nil
	}
	return parseAutoColumns(SplitList(s))
}

func defaults() *raw {
	return &raw{
		dataDir:     ".",
		file:        DefaultFileName,
		addr:        DefaultAddr,
		logDir:      DefaultLogDir,
		title:       DefaultTitle,
		formColumns: DefaultFormColumns,
		autoColumns: parseAutoColumns(DefaultAutoColumns),
	}
}

func (r *raw) applyFile(path string) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("config file '%s': %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file '%s': unknown key '%s'", path, undecoded[0])
	}
	setIfNotEmpty(&r.dataDir, fc.DataDir)
	setIfNotEmpty(&r.file, fc.File)
	setIfNotEmpty(&r.addr, fc.Addr)
	setIfNotEmpty(&r.logDir, fc.LogDir)
	setIfNotEmpty(&r.title, fc.Title)
	setIfNotEmpty(&r.intro, fc.Intro)
	setIfNotEmpty(&r.backupDelay, fc.BackupDelay)
	if len(fc.FormColumns) > 0 {
		r.formColumns = fc.FormColumns
	}
	if md.IsDefined("auto_columns") {
		r.autoColumns = nil
		for _, ac := range fc.AutoColumns {
			r.autoColumns = append(r.autoColumns, form.AutoColumn{Name: ac.Name, Generator: ac.Generator})
		}
	}
	r.webhook = fc.Webhook
	r.s3 = fc.S3
	r.sftp = fc.SFTP
	return nil
}

func (r *raw) applyEnv(getenv func(string) string) {
	// legacy name of the data dir variable
	setIfNotEmpty(&r.dataDir, getenv("PHP_WRITE_DIR"))
	setIfNotEmpty(&r.dataDir, getenv("CSVFORM_DATA_DIR"))
	setIfNotEmpty(&r.file, getenv("CSVFORM_FILE"))
	setIfNotEmpty(&r.addr, getenv("CSVFORM_ADDR"))
	setIfNotEmpty(&r.logDir, getenv("CSVFORM_LOG_DIR"))
	setIfNotEmpty(&r.title, getenv("CSVFORM_TITLE"))
	setIfNotEmpty(&r.intro, getenv("CSVFORM_INTRO"))
	setIfNotEmpty(&r.backupDelay, getenv("CSVFORM_BACKUP_DELAY"))
	if v := getenv("CSVFORM_FORM_COLUMNS"); v != "" {
		r.formColumns = SplitList(v)
	}
	if v := getenv("CSVFORM_AUTO_COLUMNS"); v != "" {
		r.autoColumns = parseAutoList(v)
	}

	setIfNotEmpty(&r.webhook.URL, getenv("CSVFORM_WEBHOOK_URL"))
	setIfNotEmpty(&r.webhook.APIKey, getenv("CSVFORM_WEBHOOK_KEY"))

	setIfNotEmpty(&r.s3.Endpoint, getenv("CSVFORM_S3_ENDPOINT"))
	setIfNotEmpty(&r.s3.Access, getenv("CSVFORM_S3_ACCESS"))
	setIfNotEmpty(&r.s3.Secret, getenv("CSVFORM_S3_SECRET"))
	setIfNotEmpty(&r.s3.Bucket, getenv("CSVFORM_S3_BUCKET"))
	setIfNotEmpty(&r.s3.Region, getenv("CSVFORM_S3_REGION"))
	setIfNotEmpty(&r.s3.Prefix, getenv("CSVFORM_S3_PREFIX"))

	setIfNotEmpty(&r.sftp.Addr, getenv("CSVFORM_SFTP_ADDR"))
	setIfNotEmpty(&r.sftp.User, getenv("CSVFORM_SFTP_USER"))
	setIfNotEmpty(&r.sftp.KeyPath, getenv("CSVFORM_SFTP_KEY"))
	setIfNotEmpty(&r.sftp.Dir, getenv("CSVFORM_SFTP_DIR"))
}

func (r *raw) build() (*Config, error) {
	cols, err := form.NewColumns(r.formColumns, r.autoColumns)
	if err != nil {
		return nil, err
	}
	if r.file != filepath.Base(r.file) || r.file == "." {
		return nil, fmt.Errorf("file name '%s' must not contain directories, use data dir for that", r.file)
	}
	delay := DefaultBackupDelay
	if r.backupDelay != "" {
		delay, err = time.ParseDuration(r.backupDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid backup delay '%s': %w", r.backupDelay, err)
		}
		if delay <= 0 {
			return nil, fmt.Errorf("backup delay must be positive, got '%s'", r.backupDelay)
		}
	}
	return &Config{
		DataDir:     r.dataDir,
		FileName:    r.file,
		Addr:        r.addr,
		LogDir:      r.logDir,
		Title:       r.title,
		Intro:       r.intro,
		BackupDelay: delay,
		Columns:     cols,
		Webhook:     r.webhook,
		S3:          r.s3,
		SFTP:        r.sftp,
	}, nil
}

// ErrHelp is returned when -h or -help was given
var ErrHelp = flag.ErrHelp

// Load builds Config from command-line args (without program name) and
// environment. usage is where flag errors and help go
func Load(args []string, getenv func(string) string, usage io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("csvform", flag.ContinueOnError)
	fs.SetOutput(usage)
	flgConfig := fs.String("config", "", "path of TOML config file (or CSVFORM_CONFIG)")
	flgDir := fs.String("dir", "", "directory of the CSV file (or CSVFORM_DATA_DIR)")
	flgFile := fs.String("file", "", "name of the CSV file (or CSVFORM_FILE)")
	flgColumns := fs.String("columns", "", "comma-separated form columns (or CSVFORM_FORM_COLUMNS)")
	flgAuto := fs.String("auto", "", "comma-separated auto columns as name[:generator], none for no auto columns (or CSVFORM_AUTO_COLUMNS)")
	flgAddr := fs.String("addr", "", "http address (or CSVFORM_ADDR)")
	flgLogDir := fs.String("logdir", "", "directory for logs (or CSVFORM_LOG_DIR)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	r := defaults()
	configPath := *flgConfig
	if configPath == "" {
		configPath = getenv("CSVFORM_CONFIG")
	}
	if configPath != "" {
		if err := r.applyFile(configPath); err != nil {
			return nil, err
		}
	}
	r.applyEnv(getenv)

	setIfNotEmpty(&r.dataDir, *flgDir)
	setIfNotEmpty(&r.file, *flgFile)
	setIfNotEmpty(&r.addr, *flgAddr)
	setIfNotEmpty(&r.logDir, *flgLogDir)
	if *flgColumns != "" {
		r.formColumns = SplitList(*flgColumns)
	}
	if *flgAuto != "" {
		r.autoColumns = parseAutoList(*flgAuto)
	}

	c, err := r.build()
	if err != nil {
		return nil, errors.Join(errors.New("invalid configuration"), err)
	}
	return c, nil
}
