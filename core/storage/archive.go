package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"lsadf-backend/core/apperror"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
)

// Archive stores JSON documents in one bucket.
type Archive struct {
	client Client
	bucket string
	region string
}

// NewArchive creates an archive over the configured bucket.
func NewArchive(client Client, cfg Config) *Archive {
	return &Archive{client: client, bucket: cfg.Bucket, region: cfg.Region}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Put writes v as JSON under key, replacing any previous document.
func (a *Archive) Put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get decodes the JSON document stored under key into dst.
func (a *Archive) Get(ctx context.Context, key string, dst any) error {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return a.mapErr(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return a.mapErr(key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (a *Archive) mapErr(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: archive %s", apperror.ErrNotFound, key)
	}
	return fmt.Errorf("get %s: %w", key, err)
}
