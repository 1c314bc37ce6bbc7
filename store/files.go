package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"askpdf/types"

	"github.com/google/uuid"
)

// FileStore is the object storage boundary for uploaded documents.
// Keys are opaque; callers never assume a layout.
type FileStore interface {
	Download(ctx context.Context, fileKey string) ([]byte, error)
	Upload(ctx context.Context, data []byte, name string) (string, error)
	Delete(ctx context.Context, fileKey string) error
}

// LocalFileStore keeps documents in a directory on disk.
type LocalFileStore struct {
	dir string
}

func NewLocalFileStore(dir string) (*LocalFileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &LocalFileStore{dir: dir}, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func (s *LocalFileStore) Download(ctx context.Context, fileKey string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(fileKey)))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file %s: %w", fileKey, types.ErrNotFound)
	}
	return data, err
}

func (s *LocalFileStore) Upload(ctx context.Context, data []byte, name string) (string, error) {
	base := unsafeKeyChars.ReplaceAllString(strings.TrimSpace(name), "-")
	fileKey := fmt.Sprintf("%s-%s", uuid.New().String(), base)
	if err := os.WriteFile(filepath.Join(s.dir, fileKey), data, 0644); err != nil {
		return "", err
	}
	return fileKey, nil
}

func (s *LocalFileStore) Delete(ctx context.Context, fileKey string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(fileKey)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
