// Package s3 implements the objectstore backend on AWS S3 via aws-sdk-go-v2.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"sketchvault/objectstore"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type backend struct {
	s3Client   *s3.Client
	bucket     string
	publicBase string
}

// NewBackend creates an S3-backed object store. publicBase is the
// browser-accessible base URL objects resolve under, e.g.
// "https://my-bucket.s3.eu-central-1.amazonaws.com".
func NewBackend(bucketName, publicBase string) *backend {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &backend{
		s3Client:   s3.NewFromConfig(cfg),
		bucket:     bucketName,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

func (b *backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %v", key, err)
	}
	return nil
}

func (b *backend) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("object %s: %w", key, objectstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %v", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %v", key, err)
	}
	return data, nil
}

func (b *backend) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make([]s3types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(key)})
	}
	_, err := b.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(b.bucket),
		Delete: &s3types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete objects: %v", err)
	}
	return nil
}

func (b *backend) List(ctx context.Context, prefix string) ([]string, error) {
	output, err := b.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects under %s: %v", prefix, err)
	}

	names := make([]string, 0, len(output.Contents))
	for _, object := range output.Contents {
		names = append(names, aws.ToString(object.Key))
	}
	return names, nil
}

func (b *backend) PublicURL(key string) string {
	return b.publicBase + "/" + key
}
