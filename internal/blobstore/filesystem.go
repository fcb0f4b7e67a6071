package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/spf13/afero"
)

// FileStore keeps blobs on an afero filesystem rooted at a base directory.
type FileStore struct {
	fs afero.Fs
}

// NewFileStore roots a store at dir on the OS filesystem.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("blobstore: root directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}
	return NewFileStoreFs(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewFileStoreFs wraps an existing afero filesystem.
func NewFileStoreFs(fs afero.Fs) *FileStore {
	return &FileStore{fs: fs}
}

func (s *FileStore) Put(_ context.Context, key string, data []byte, _ string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	if dir := path.Dir(cleaned); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("blobstore: mkdir %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, cleaned, data, 0o644); err != nil {
		return fmt.Errorf("blobstore: write %s: %w", cleaned, err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, cleaned)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", cleaned, err)
	}
	return data, nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = s.fs.Remove(cleaned)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("blobstore: remove %s: %w", cleaned, err)
}
