// Package storage defines the object storage gateway used for audio blobs.
// The MinIO implementation works with any S3-compatible provider.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectMissing is returned when a key has no blob behind it.
var ErrObjectMissing = errors.New("object missing from storage")

// Gateway stores, signs and removes blobs in a single bucket.
type Gateway interface {
	// Put writes size bytes from body under key. It does not retry.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType, originalName string) error
	// SignedGetURL returns a credential-free URL valid for ttl. It fails with
	// ErrObjectMissing when the key does not exist.
	SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Remove deletes the blob at key. Removing an absent key succeeds.
	Remove(ctx context.Context, key string) error
}
