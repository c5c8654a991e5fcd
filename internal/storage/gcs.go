package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

const gcsPublicHost = "storage.googleapis.com"

// GCSClient stores artifacts in a Google Cloud Storage bucket.
type GCSClient struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
}

func NewGCSClient(ctx context.Context, bucket string) (*GCSClient, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSClient{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
	}, nil
}

// Upload writes the object only if it does not exist yet. Keys embed the
// book id and a timestamp, so an existing object is a repeat of the same
// upload and is treated as success.
func (c *GCSClient) Upload(ctx context.Context, data []byte, folder string, kind Kind, key string) (Artifact, error) {
	if strings.TrimSpace(key) == "" {
		return Artifact{}, fmt.Errorf("object key is required")
	}

	name := objectKey(folder, key)
	writer := c.bucket.Object(name).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentTypeFor(kind, data)
	writer.Metadata = map[string]string{"resource-kind": string(kind)}

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return Artifact{}, fmt.Errorf("write gcs object %s: %w", name, err)
	}
	if err := writer.Close(); err != nil && !isPreconditionFailed(err) {
		return Artifact{}, fmt.Errorf("finalize gcs object %s: %w", name, err)
	}

	plain, secure := publicURLs(gcsPublicHost, c.name, name)
	return Artifact{Key: name, URL: plain, SecureURL: secure}, nil
}

func (c *GCSClient) Ping(ctx context.Context) error {
	if _, err := c.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("read gcs bucket %s: %w", c.name, err)
	}
	return nil
}

func (c *GCSClient) Close() error {
	return c.client.Close()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
