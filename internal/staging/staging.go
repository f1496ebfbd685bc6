// Package staging holds large job payloads at a shared, well-known path so a
// run can carry a reference instead of the payload itself.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store persists blobs by path. Put overwrites; Get reads at most maxBytes.
type Store interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string, maxBytes int64) ([]byte, error)
}

var ErrNotFound = errors.New("staged object not found")

// FileStore keeps staged objects under a local root directory.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore { return &FileStore{root: root} }

func (f *FileStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	if clean == "/" {
		return "", fmt.Errorf("empty staging path")
	}
	return filepath.Join(f.root, clean), nil
}

// Put writes to a temp file and renames it so readers never see a partial
// object.
func (f *FileStore) Put(_ context.Context, path string, data []byte) error {
	dst, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".staging-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	return nil
}

func (f *FileStore) Get(_ context.Context, path string, maxBytes int64) ([]byte, error) {
	src, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	defer fh.Close()
	return readBounded(fh, maxBytes)
}

func readBounded(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes)
	}
	return io.ReadAll(r)
}

// New returns the store for backend: "file" roots a FileStore at dir,
// "minio" dials the bucket described by mc.
func New(backend, dir string, mc MinIOConfig) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(dir), nil
	case "minio":
		return NewMinIOStore(mc)
	default:
		return nil, fmt.Errorf("unknown staging backend %q", backend)
	}
}
