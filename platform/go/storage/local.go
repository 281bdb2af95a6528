package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps branding assets on disk for local development. The gateway serves Root under
// publicBaseURL.
type LocalStore struct {
	root          string
	publicBaseURL string
}

// NewLocalStore constructs a LocalStore rooted at dir.
func NewLocalStore(dir, publicBaseURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = "/assets"
	}
	return &LocalStore{root: dir, publicBaseURL: publicBaseURL}, nil
}

// Root returns the directory assets are written to.
func (s *LocalStore) Root() string {
	return s.root
}

// Put implements Store.
func (s *LocalStore) Put(ctx context.Context, slug, logicalKey, contentType string, body io.Reader) (string, error) {
	loc, err := ResolveObjectLocation(s.root, slug, logicalKey)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.root, filepath.FromSlash(loc.FullPath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create asset dir: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create asset: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write asset: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close asset: %w", err)
	}
	return joinURL(s.publicBaseURL, loc.FullPath), nil
}

var _ Store = (*LocalStore)(nil)
