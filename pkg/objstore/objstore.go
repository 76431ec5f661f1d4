// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package objstore wraps the object-storage backend and its key management.
package objstore

import (
	"context"
	"time"
)

// ObjectInfo describes one stored object in a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectVersion is the latest version marker of one object.
type ObjectVersion struct {
	VersionID string
	Owner     string
}

// ObjectStorage is the narrow contract over the storage backend used by the
// lifecycle and snapshot components.
type ObjectStorage interface {
	// CreatePrefix allocates the store's path inside the container.
	CreatePrefix(ctx context.Context, bucket, prefix string) error

	// ClearPrefix removes every object under the prefix.
	ClearPrefix(ctx context.Context, bucket, prefix string) error

	// ListAll returns every object under the prefix.
	ListAll(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// LatestVersion resolves the current version marker and owner of a key.
	LatestVersion(ctx context.Context, bucket, key string) (*ObjectVersion, error)

	// PutObject writes an object.
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// KeyManagement resolves encryption key aliases to their full identifiers.
type KeyManagement interface {
	ResolveKeyArn(ctx context.Context, alias string) (string, error)
}
