// Package storage persists validated manuals as versioned, immutable
// objects with an overwritten "latest" pointer per slug.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidSlug rejects storage operations on malformed slugs.
var ErrInvalidSlug = errors.New("invalid slug")

// ErrObjectNotFound is returned by Get for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// ObjectStore is the blob-store primitive the manual store builds on.
// Put overwrites existing keys (last writer wins).
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType, cacheControl string) (url string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
