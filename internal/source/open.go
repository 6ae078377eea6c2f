// Package source loads record snapshots from local files, HTTP endpoints and
// Cloud Storage, and keeps the latest good one for the server.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/reillywatson/dorastats/internal/snapshot"
)

const defaultTimeout = 30 * time.Second

// ErrUnavailable is returned when no snapshot could be loaded
var ErrUnavailable = errors.New("data unavailable")

var httpClient = &http.Client{Timeout: defaultTimeout}

// Opener loads a snapshot from a location
type Opener func(ctx context.Context, location string) (*snapshot.Store, error)

// Open loads the snapshot at location: a gs://bucket/object URI, an http(s)
// URL or a local path
func Open(ctx context.Context, location string) (*snapshot.Store, error) {
	r, err := openReader(ctx, location)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	store, err := snapshot.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return store, nil
}

// IsLocal reports whether location is a filesystem path
func IsLocal(location string) bool {
	return !strings.Contains(location, "://")
}

func openReader(ctx context.Context, location string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(location, "gs://"):
		return openGCS(ctx, location)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return openHTTP(ctx, location)
	case IsLocal(location):
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot %s: %w", location, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported snapshot location %q", location)
	}
}

func openHTTP(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request to %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("snapshot endpoint returned status %d for URL %s: %s", resp.StatusCode, url, resp.Status)
	}
	return resp.Body, nil
}

// ParseGCSURI splits gs://bucket/object into its parts
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(uri, "gs://")
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid Cloud Storage URI %q", uri)
	}
	return bucket, object, nil
}

// gcsReader closes the client together with the object reader
type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func openGCS(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	return &gcsReader{Reader: r, client: client}, nil
}
