package minio

import (
	"context"
	"fmt"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Fetcher materializes uploaded media objects from the upload bucket into
// a job's working directory. Locators are object keys.
type Fetcher struct {
	client *miniogo.Client
	bucket string
}

type FetcherConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Fetcher{client: client, bucket: cfg.Bucket}, nil
}

func (f *Fetcher) EnsureBucket(ctx context.Context) error {
	exists, err := f.client.BucketExists(ctx, f.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", f.bucket, err)
	}
	if !exists {
		if err := f.client.MakeBucket(ctx, f.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", f.bucket, err)
		}
	}
	return nil
}

func (f *Fetcher) Fetch(ctx context.Context, locator, destPath string) error {
	if err := f.client.FGetObject(ctx, f.bucket, locator, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("fetch object %s: %w", locator, err)
	}
	return nil
}

// Put uploads a local file under the given key; used by tests and tooling.
func (f *Fetcher) Put(ctx context.Context, locator, sourcePath, contentType string) error {
	_, err := f.client.FPutObject(ctx, f.bucket, locator, sourcePath, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", locator, err)
	}
	return nil
}
