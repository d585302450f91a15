// Package blobstore defines the binary-object storage abstraction.
package blobstore

import "context"

// Provider is the interface for blob operations. Keys are opaque flat
// identifiers carrying a file-extension suffix that encodes the content
// type (e.g. "3f2a...c1.jpg").
type Provider interface {
	// Get returns the blob body and its content type, or apperr.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, string, error)
	// Put atomically writes the blob body under key.
	Put(ctx context.Context, key, contentType string, body []byte) error
	// Delete removes the blob at key.
	Delete(ctx context.Context, key string) error
}
