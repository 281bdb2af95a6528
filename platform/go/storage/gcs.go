package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCSStore keeps branding assets in a Cloud Storage bucket served publicly.
type GCSStore struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
}

// NewGCSStore constructs a GCSStore. An empty publicBaseURL uses the storage.googleapis.com URL
// of the bucket.
func NewGCSStore(client *gcs.Client, bucket, publicBaseURL string) *GCSStore {
	if client == nil {
		panic("storage client is required")
	}
	if publicBaseURL == "" {
		publicBaseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{client: client, bucket: bucket, publicBaseURL: publicBaseURL}
}

// Put implements Store. Keys are never reused, so objects are cached as immutable.
func (s *GCSStore) Put(ctx context.Context, slug, logicalKey, contentType string, body io.Reader) (string, error) {
	loc, err := ResolveObjectLocation(s.bucket, slug, logicalKey)
	if err != nil {
		return "", err
	}

	w := s.client.Bucket(loc.Bucket).Object(loc.FullPath).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gs://%s/%s: %w", loc.Bucket, loc.FullPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gs://%s/%s: %w", loc.Bucket, loc.FullPath, err)
	}
	return joinURL(s.publicBaseURL, loc.FullPath), nil
}

var _ Store = (*GCSStore)(nil)
