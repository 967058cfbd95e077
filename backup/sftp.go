package backup

import (
	"context"
	"errors"
	"net"
	"path"
	"strconv"
	"time"

	"github.com/kjk/csvform/config"
	"github.com/melbahja/goph"
	"github.com/pkg/sftp"
)

const connectTimeout = 20 * time.Second

// SFTPTarget uploads to a directory on a server over ssh
type SFTPTarget struct {
	User    string
	Host    string
	Port    uint
	KeyPath string
	Dir     string
}

func NewSFTPTarget(c config.SFTPConfig) (*SFTPTarget, error) {
	if !c.Enabled() {
		return nil, errors.New("must provide addr, user and key")
	}
	host, port, err := splitHostPort(c.Addr)
	if err != nil {
		return nil, err
	}
	dir := c.Dir
	if dir == "" {
		dir = "."
	}
	return &SFTPTarget{
		User:    c.User,
		Host:    host,
		Port:    port,
		KeyPath: c.KeyPath,
		Dir:     dir,
	}, nil
}

// splitHostPort accepts "host" and "host:port"
func splitHostPort(addr string) (string, uint, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// no port
		return addr, 22, nil
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, errors.New("invalid port in '" + addr + "'")
	}
	return host, uint(port), nil
}

func (t *SFTPTarget) Name() string {
	return "sftp://" + t.User + "@" + net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
}

func (t *SFTPTarget) connect() (*goph.Client, error) {
	auth, err := goph.Key(t.KeyPath, "")
	if err != nil {
		return nil, err
	}
	callback, err := goph.DefaultKnownHosts()
	if err != nil {
		return nil, err
	}
	return goph.NewConn(&goph.Config{
		User:     t.User,
		Addr:     t.Host,
		Port:     t.Port,
		Auth:     auth,
		Timeout:  connectTimeout,
		Callback: callback,
	})
}

func (t *SFTPTarget) Upload(ctx context.Context, localPath string, remoteName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := t.connect()
	if err != nil {
		return err
	}
	defer client.Close()

	remotePath := path.Join(t.Dir, remoteName)
	sc, err := client.NewSftp()
	if err != nil {
		return err
	}
	err = sftpMkdirAll(sc, path.Dir(remotePath))
	sc.Close()
	if err != nil {
		return err
	}
	return client.Upload(localPath, remotePath)
}

func sftpMkdirAll(sc *sftp.Client, dir string) error {
	fi, err := sc.Stat(dir)
	if err == nil {
		if !fi.IsDir() {
			return errors.New("'" + dir + "' on the server is not a directory")
		}
		return nil
	}
	return sc.MkdirAll(dir)
}
