// Package blobstore persists derived binary artifacts such as embeddable paste images.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned when no blob exists for a key.
	ErrNotFound = errors.New("blobstore: not found")
	// ErrInvalidKey is returned for empty keys or keys escaping the store root.
	ErrInvalidKey = errors.New("blobstore: invalid key")
)

// Store is a key-addressable blob store.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

func cleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + trimmed)
	if cleaned == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// URLFor joins a public base URL and a blob key.
func URLFor(baseURL, key string) string {
	if key == "" {
		return ""
	}
	base := strings.TrimRight(baseURL, "/")
	return base + "/" + strings.TrimLeft(key, "/")
}
