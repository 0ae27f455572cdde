package artifact

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cognicore/contractflow/pkg/contractflow/internalerr"
)

// Sink persists analysis artifacts and reports where they went.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Close() error
}

// Name derives the artifact name from a document path:
// "docs/Demo NDA.docx" becomes "Demo_NDA-analysis.json".
func Name(docPath string) string {
	base := filepath.Base(docPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(stem, " ", "_") + "-analysis.json"
}

// Options carries backend settings that are not part of the location.
type Options struct {
	S3Region   string
	S3Endpoint string
}

// Open returns the sink for location: a local directory, gs://bucket/prefix
// or s3://bucket/prefix.
func Open(ctx context.Context, location string, opts Options) (Sink, error) {
	scheme, bucket, prefix, err := parseLocation(location)
	if err != nil {
		return nil, err
	}

	var sink Sink
	switch scheme {
	case "":
		sink, err = NewFileSink(location)
	case "gs":
		sink, err = NewGCSSink(ctx, bucket, prefix)
	case "s3":
		sink, err = NewS3Sink(ctx, S3Config{
			Bucket:   bucket,
			Prefix:   prefix,
			Region:   opts.S3Region,
			Endpoint: opts.S3Endpoint,
		})
	default:
		return nil, fmt.Errorf("artifact location %q: scheme %s: %w", location, scheme, internalerr.ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// parseLocation splits a bucket URL. Plain paths return an empty scheme.
func parseLocation(location string) (scheme, bucket, prefix string, err error) {
	if location == "" {
		return "", "", "", fmt.Errorf("artifact location is empty: %w", internalerr.ErrInvalidConfig)
	}
	if !strings.Contains(location, "://") {
		return "", "", "", nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", "", "", fmt.Errorf("parse artifact location: %w", err)
	}
	if u.Host == "" {
		return "", "", "", fmt.Errorf("artifact location %q has no bucket: %w", location, internalerr.ErrInvalidConfig)
	}
	prefix = strings.Trim(u.Path, "/")
	if prefix != "" {
		prefix += "/"
	}
	return u.Scheme, u.Host, prefix, nil
}

// FileSink writes artifacts into a local directory, replacing earlier runs.
type FileSink struct {
	Dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileSink{Dir: dir}, nil
}

// Put writes data to Dir/name.
func (s *FileSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Close implements Sink.
func (s *FileSink) Close() error { return nil }
