// Package minio implements the objectstore backend on any S3-compatible
// endpoint (MinIO, self-hosted gateways, most managed object stores) using
// the minio-go client.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"sketchvault/objectstore"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type backend struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// NewBackend creates a MinIO client and ensures the bucket exists.
func NewBackend(endpoint, accessKey, secretKey, bucket, publicBase string, useSSL bool) (*backend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %v", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %v", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %v", bucket, err)
		}
	}

	return &backend{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

func (b *backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %v", key, err)
	}
	return nil
}

func (b *backend) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %v", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		// minio defers the existence check to the first read
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("object %s: %w", key, objectstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read object %s: %v", key, err)
	}
	return data, nil
}

func (b *backend) Remove(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to delete object %s: %v", key, err)
		}
	}
	return nil
}

func (b *backend) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for object := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %v", prefix, object.Err)
		}
		names = append(names, object.Key)
	}
	return names, nil
}

func (b *backend) PublicURL(key string) string {
	return b.publicBase + "/" + key
}
