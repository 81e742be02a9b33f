package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSProvider struct {
	client *storage.Client
	bucket string
}

// NewGCSClient prefers explicit credentials JSON and falls back to ADC.
func NewGCSClient(ctx context.Context, credentialsJSON string) (*storage.Client, error) {
	if strings.TrimSpace(credentialsJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return storage.NewClient(ctx)
}

func NewGCSProvider(client *storage.Client, bucket string) *GCSProvider {
	return &GCSProvider{client: client, bucket: bucket}
}

func (p *GCSProvider) Fetch(ctx context.Context, path string) ([]byte, error) {
	reader, err := p.client.Bucket(p.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrContentUnavailable, p.bucket, path)
		}
		return nil, fmt.Errorf("%w: open gs://%s/%s: %v", ErrContentUnavailable, p.bucket, path, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read gs://%s/%s: %v", ErrContentUnavailable, p.bucket, path, err)
	}
	return data, nil
}

func (p *GCSProvider) Put(ctx context.Context, path string, data []byte, contentType string) error {
	writer := p.client.Bucket(p.bucket).Object(path).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write gs://%s/%s: %w", p.bucket, path, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", p.bucket, path, err)
	}
	return nil
}
