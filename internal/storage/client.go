package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint   string
	Access     string
	Secret     string
	Bucket     string
	UseSSL     bool
	PublicHost string
}

// Client stores artifacts in an S3-compatible bucket through MinIO.
type Client struct {
	minio      *minio.Client
	bucket     string
	publicHost string
}

func NewClient(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	publicHost := strings.TrimSpace(cfg.PublicHost)
	if publicHost == "" {
		publicHost = cfg.Endpoint
	}

	return &Client{
		minio:      mc,
		bucket:     cfg.Bucket,
		publicHost: publicHost,
	}, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, c.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}

	return nil
}

// Upload writes data under folder/key and returns its public URLs.
func (c *Client) Upload(ctx context.Context, data []byte, folder string, kind Kind, key string) (Artifact, error) {
	if strings.TrimSpace(key) == "" {
		return Artifact{}, fmt.Errorf("object key is required")
	}

	name := objectKey(folder, key)
	_, err := c.minio.PutObject(
		ctx,
		c.bucket,
		name,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  contentTypeFor(kind, data),
			UserMetadata: map[string]string{"resource-kind": string(kind)},
		},
	)
	if err != nil {
		return Artifact{}, fmt.Errorf("put object %s: %w", name, err)
	}

	plain, secure := publicURLs(c.publicHost, c.bucket, name)
	return Artifact{Key: name, URL: plain, SecureURL: secure}, nil
}

// Ping checks that the bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.minio.BucketExists(ctx, c.bucket); err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close is a no-op; the MinIO client holds no long-lived connections.
func (c *Client) Close() error {
	return nil
}
