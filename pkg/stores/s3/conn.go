package s3

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

/*
Conn wraps an S3-compatible object store connection. MinIO is the
deployment default but any S3 endpoint works.
*/
type Conn struct {
	client *minio.Client
}

type ConnConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewConn(cfg ConnConfig) (*Conn, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})

	if err != nil {
		return nil, err
	}

	return &Conn{client: client}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (conn *Conn) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := conn.client.BucketExists(ctx, bucket)

	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return conn.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func (conn *Conn) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := conn.client.PutObject(
		ctx, bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)

	return err
}

func (conn *Conn) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := conn.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})

	if err != nil {
		return nil, err
	}

	defer obj.Close()

	return io.ReadAll(obj)
}
