// Package filesystem implements the objectstore backend on a local directory.
// Keys map to relative file paths under a base directory. Intended for
// development and tests, where a real bucket is overkill.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sketchvault/objectstore"
)

type backend struct {
	basePath   string
	publicBase string
}

// NewBackend creates a filesystem-backed object store rooted at basePath.
func NewBackend(basePath, publicBase string) (*backend, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %v", err)
	}
	return &backend{
		basePath:   basePath,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

// objectPath resolves key inside basePath and rejects escapes.
func (b *backend) objectPath(key string) (string, error) {
	p := filepath.Join(b.basePath, filepath.FromSlash(key))
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	absBase, err := filepath.Abs(b.basePath)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(abs, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q: escapes storage root", key)
	}
	return abs, nil
}

func (b *backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	p, err := b.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %v", key, err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("failed to write object %s: %v", key, err)
	}
	return nil
}

func (b *backend) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := b.objectPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s: %w", key, objectstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read object %s: %v", key, err)
	}
	return data, nil
}

func (b *backend) Remove(ctx context.Context, keys []string) error {
	for _, key := range keys {
		p, err := b.objectPath(key)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete object %s: %v", key, err)
		}
		b.pruneDir(filepath.Dir(p))
	}
	return nil
}

// pruneDir removes the directory left behind after its last object is
// deleted. Non-empty directories and the storage root are left alone.
func (b *backend) pruneDir(dir string) {
	absBase, err := filepath.Abs(b.basePath)
	if err != nil {
		return
	}
	abs, err := filepath.Abs(dir)
	if err != nil || abs == absBase {
		return
	}
	os.Remove(abs)
}

func (b *backend) List(ctx context.Context, prefix string) ([]string, error) {
	dir := filepath.Join(b.basePath, filepath.FromSlash(prefix))
	var names []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // nothing under this prefix
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.basePath, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects under %s: %v", prefix, err)
	}
	return names, nil
}

func (b *backend) PublicURL(key string) string {
	return b.publicBase + "/" + key
}
