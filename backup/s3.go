package backup

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/kjk/csvform/config"
	"github.com/kjk/csvform/u"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Target uploads to S3-compatible storage
type S3Target struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

func NewS3Target(ctx context.Context, c config.S3Config) (*S3Target, error) {
	if !c.Enabled() {
		return nil, errors.New("must provide endpoint, access, secret and bucket")
	}
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: true,
	})
	if err != nil {
		return nil, err
	}
	found, err := mc.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &S3Target{
		Client: mc,
		Bucket: c.Bucket,
		Prefix: c.Prefix,
	}, nil
}

func (t *S3Target) Name() string {
	return "s3://" + t.Bucket
}

func (t *S3Target) remotePath(remoteName string) string {
	return path.Join(strings.TrimPrefix(t.Prefix, "/"), remoteName)
}

func (t *S3Target) Upload(ctx context.Context, localPath string, remoteName string) error {
	remotePath := t.remotePath(remoteName)
	// foo.csv.br is stored as text/csv with br encoding
	name := strings.TrimSuffix(remotePath, ".br")
	opts := minio.PutObjectOptions{
		ContentType: u.MimeTypeFromFileName(name),
	}
	if name != remotePath {
		opts.ContentEncoding = "br"
	}
	_, err := t.Client.FPutObject(ctx, t.Bucket, remotePath, localPath, opts)
	return err
}
