package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/maison-mobility/maison-gate/platform/go/tenant"
)

// Store writes tenant branding assets and returns the URL browsers load them from.
type Store interface {
	Put(ctx context.Context, slug, logicalKey, contentType string, body io.Reader) (string, error)
}

// ObjectLocation describes where a blob should live.
type ObjectLocation struct {
	Bucket   string
	FullPath string
}

// ResolveObjectLocation combines the tenant prefix and a logical key into a bucket/path pair.
//   - bucket comes from deployment configuration (a GCS bucket or the local asset root).
//   - every tenant owns the "tenants/<slug>/" prefix.
//   - logicalKey is tenant-relative, e.g. "branding/logo-<uuid>.png".
func ResolveObjectLocation(bucket, slug, logicalKey string) (ObjectLocation, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return ObjectLocation{}, fmt.Errorf("bucket is required")
	}
	if !tenant.IsSlug(slug) {
		return ObjectLocation{}, fmt.Errorf("invalid tenant slug %q", slug)
	}
	key := strings.TrimSpace(logicalKey)
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return ObjectLocation{}, fmt.Errorf("logical key is required")
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ObjectLocation{}, fmt.Errorf("invalid logical key %q", logicalKey)
		}
	}

	return ObjectLocation{Bucket: bucket, FullPath: "tenants/" + slug + "/" + key}, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + path
}
