// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest captures immutable object-list snapshots of an egress
// store at submission time.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stagegate/stagegate/pkg/logger"
	"github.com/stagegate/stagegate/pkg/objstore"
	"github.com/stagegate/stagegate/pkg/types"
)

// Entry is one object in a manifest, pinned to its latest version marker.
type Entry struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	VersionID    string    `json:"versionId"`
	Owner        string    `json:"owner,omitempty"`
}

// Document is the serialized snapshot published alongside a submission.
type Document struct {
	WorkspaceID string    `json:"workspaceId"`
	StoreName   string    `json:"egressStoreName"`
	Ver         int64     `json:"ver"`
	CapturedAt  time.Time `json:"capturedAt"`
	Objects     []Entry   `json:"objects"`
}

// Builder writes manifest snapshots to the notification-side container.
type Builder struct {
	objects objstore.ObjectStorage
	bucket  string
}

// NewBuilder creates a manifest builder targeting the given notification
// bucket.
func NewBuilder(objects objstore.ObjectStorage, bucket string) (*Builder, error) {
	if objects == nil {
		return nil, errors.New("object storage is required")
	}
	if bucket == "" {
		return nil, errors.New("notification bucket is required")
	}
	return &Builder{objects: objects, bucket: bucket}, nil
}

// Build lists every object under the store's prefix, resolves each object's
// latest version marker, and writes the snapshot keyed by
// {storeId}/{storeName}-ver{N}.json where N is the version the submission
// will carry. Returns the bucket-qualified location of the written document.
func (b *Builder) Build(ctx context.Context, store *types.EgressStore) (string, error) {
	loc := store.StorageLocation
	infos, err := b.objects.ListAll(ctx, loc.Bucket, loc.Prefix)
	if err != nil {
		return "", fmt.Errorf("list objects of store %s: %w", store.ID, err)
	}

	doc := Document{
		WorkspaceID: store.WorkspaceID,
		StoreName:   store.EgressStoreName,
		Ver:         store.Ver + 1,
		CapturedAt:  time.Now().UTC(),
		Objects:     make([]Entry, 0, len(infos)),
	}
	for _, info := range infos {
		ver, err := b.objects.LatestVersion(ctx, loc.Bucket, info.Key)
		if err != nil {
			return "", fmt.Errorf("resolve version of %s: %w", info.Key, err)
		}
		doc.Objects = append(doc.Objects, Entry{
			Key:          info.Key,
			Size:         info.Size,
			LastModified: info.LastModified,
			VersionID:    ver.VersionID,
			Owner:        ver.Owner,
		})
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("serialize manifest of store %s: %w", store.ID, err)
	}

	key := fmt.Sprintf("%s/%s-ver%d.json", store.ID, store.EgressStoreName, doc.Ver)
	if err := b.objects.PutObject(ctx, b.bucket, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("write manifest of store %s: %w", store.ID, err)
	}

	logger.Ctx(ctx).Info().
		Str("store_id", store.ID).
		Int("objects", len(doc.Objects)).
		Str("location", b.bucket+"/"+key).
		Msg("captured object manifest")
	return b.bucket + "/" + key, nil
}
