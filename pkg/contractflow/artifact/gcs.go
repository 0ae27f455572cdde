package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSSink writes artifacts to a Cloud Storage bucket using application default credentials.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink creates the storage client.
func NewGCSSink(ctx context.Context, bucket, prefix string) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket, prefix: prefix}, nil
}

// Put uploads data as prefix+name and returns its gs:// URI.
func (s *GCSSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	objectName := s.prefix + name
	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write failed: %w", describe(err))
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close failed: %w", describe(err))
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// Close releases the storage client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}

// describe turns permission errors into something a batch report reader can act on.
func describe(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusForbidden || gerr.Code == http.StatusUnauthorized) {
		return fmt.Errorf("access denied to bucket (status %d): %w", gerr.Code, err)
	}
	return err
}
