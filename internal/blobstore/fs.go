package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/raido/internal/apperr"
)

// contentTypeByExt maps a key's extension suffix to its content type.
// The extension is the single source of truth for a stored blob's type.
var contentTypeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
}

// ContentTypeForKey returns the content type encoded in a blob key's
// extension, falling back to application/octet-stream.
func ContentTypeForKey(key string) string {
	if ct, ok := contentTypeByExt[strings.ToLower(filepath.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// FS implements Provider backed by a flat local directory.
type FS struct {
	root string // absolute path to blob directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blobstore: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("blobstore: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blobstore: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// safeKey validates that the key is a plain file name (no path
// separators, no traversal) and returns its absolute path.
func (f *FS) safeKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blobstore: empty key")
	}
	cleaned := filepath.Clean(key)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("blobstore: invalid key: %s", key)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("blobstore: key escapes blob root: %s", key)
	}
	return abs, nil
}

// Get returns the blob body and its content type.
func (f *FS) Get(_ context.Context, key string) ([]byte, string, error) {
	abs, err := f.safeKey(key)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", apperr.ErrNotFound
		}
		return nil, "", fmt.Errorf("blobstore: read %s: %w", key, err)
	}
	return data, ContentTypeForKey(key), nil
}

// Put atomically writes body: tmp file → fsync → rename. The contentType
// argument must agree with the key's extension; it is accepted for
// interface symmetry with remote blob backends.
func (f *FS) Put(_ context.Context, key, contentType string, body []byte) error {
	abs, err := f.safeKey(key)
	if err != nil {
		return err
	}
	if ct := ContentTypeForKey(key); contentType != "" && ct != contentType {
		return fmt.Errorf("blobstore: content type %q does not match key %s", contentType, key)
	}

	tmp, err := os.CreateTemp(f.root, ".raido-tmp-*")
	if err != nil {
		return fmt.Errorf("blobstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(body); err != nil {
		return fmt.Errorf("blobstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("blobstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("blobstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("blobstore: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes the blob at key.
func (f *FS) Delete(_ context.Context, key string) error {
	abs, err := f.safeKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}
	return nil
}
