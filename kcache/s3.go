package kcache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures an S3 cache.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool

	Bucket string
	Prefix string
}

// S3 stores artifacts as objects in an S3 compatible bucket, so that build
// hosts can share them.
type S3 struct {
	client *minio.Client

	bucket string
	prefix string
}

// OpenS3 connects to the endpoint and creates the bucket if it does not
// exist yet.
func OpenS3(ctx context.Context, opts S3Options) (*S3, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, err
	}

	err = client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := client.BucketExists(ctx, opts.Bucket)
		if errBucketExists != nil || !exists {
			return nil, fmt.Errorf("failed to create bucket %s: %w", opts.Bucket, err)
		}
	}

	return &S3{
		client: client,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(err)
	}
	defer obj.Close()

	v, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.translate(err)
	}
	return v, nil
}

func (s *S3) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(key), bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (s *S3) Close() error {
	return nil
}

func (s *S3) objectName(key string) string {
	return path.Join(s.prefix, key)
}

func (s *S3) translate(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrKeyNotFound
	}
	return err
}

var _ Cache = (*S3)(nil)
