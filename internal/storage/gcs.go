package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSOptions configures the Cloud Storage document backend.
type GCSOptions struct {
	Bucket string
	Prefix string
	// EmulatorHost points the client at a fake-gcs-server style emulator and
	// disables authentication.
	EmulatorHost string
}

// emulatorEndpoint turns an emulator host such as "localhost:4443" into the
// JSON API endpoint the client expects. Empty means no emulator.
func emulatorEndpoint(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return host + "/storage/v1/"
}

// GCSStore keeps each document as one JSON object in a bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStore creates a Cloud Storage client using application default
// credentials, or no credentials when an emulator is configured.
func NewGCSStore(ctx context.Context, opts GCSOptions) (*GCSStore, error) {
	if err := validateString(opts.Bucket, "bucket"); err != nil {
		return nil, err
	}

	var clientOpts []option.ClientOption
	if endpoint := emulatorEndpoint(opts.EmulatorHost); endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	} else {
		clientOpts = append(clientOpts, option.WithScopes(gcs.ScopeReadWrite))
	}

	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", classifyGCSError(err))
	}
	return &GCSStore{
		client: client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

func (g *GCSStore) objectName(key string) string {
	return path.Join(g.prefix, key+".json")
}

// Get returns the document stored under key.
func (g *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	r, err := g.client.Bucket(g.bucket).Object(g.objectName(key)).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, classifyGCSError(err))
	}
	defer func() { _ = r.Close() }()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, classifyGCSError(err))
	}
	return body, nil
}

// Put replaces the document stored under key.
func (g *GCSStore) Put(ctx context.Context, key string, body []byte) error {
	if err := validateString(key, "key"); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(g.objectName(key)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write %s: %w", key, classifyGCSError(err))
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs write %s: %w", key, classifyGCSError(err))
	}
	return nil
}

// Close releases the client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}

// classifyGCSError maps Cloud Storage failures onto the storage taxonomy.
func classifyGCSError(err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
		return ErrNotFound
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case http.StatusNotFound:
			return ErrNotFound
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
