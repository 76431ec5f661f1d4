// Package egress orchestrates the per-workspace egress-store lifecycle:
// creation, submission for export, termination, and the access grants that
// track it.
package egress

import (
	"context"

	"github.com/stagegate/stagegate/pkg/events"
	"github.com/stagegate/stagegate/pkg/types"
)

// Service defines the caller-facing egress store operations.
type Service interface {
	// GetStoreInfo returns the workspace's store record, or nil when none
	// exists. Never mutates and never takes a lock.
	GetStoreInfo(ctx context.Context, workspaceID string) (*types.EgressStore, error)

	// Create provisions the workspace's egress store and grants the linked
	// member account access to it. Returns ErrCodeAlreadyExists when the
	// workspace already has a store.
	Create(ctx context.Context, rc *types.RequestContext, ws *types.Workspace) (*Descriptor, error)

	// Terminate clears the store's contents, marks it TERMINATED, and
	// revokes the member account's access. Returns (nil, nil) when no store
	// exists; returns the record unchanged when its status admits no
	// termination; rejects with ErrCodeConflict while an export is running.
	Terminate(ctx context.Context, rc *types.RequestContext, workspaceID string) (*types.EgressStore, error)

	// Submit captures an object manifest, moves the store to PENDING, and
	// publishes the lifecycle event. Requires the store to be submittable,
	// else ErrCodeInvalidState.
	Submit(ctx context.Context, rc *types.RequestContext, workspaceID string) (*events.EgressNotification, error)

	// EnableSubmission marks the store as eligible for a new export
	// request. Internal transition, no status change.
	EnableSubmission(ctx context.Context, rec *types.EgressStore) (*types.EgressStore, error)

	// ListObjects returns up to 100 objects currently staged in the store,
	// sorted by last-modified ascending, with human-readable sizes.
	ListObjects(ctx context.Context, rc *types.RequestContext, workspaceID string) (*ListObjectsResult, error)
}

// Reconciler mutates the shared bucket policy for one store's grants.
type Reconciler interface {
	Grant(ctx context.Context, store *types.EgressStore, accountID string) error
	Revoke(ctx context.Context, store *types.EgressStore, accountID string) error
}

// SnapshotBuilder captures an immutable object-list manifest and returns its
// location.
type SnapshotBuilder interface {
	Build(ctx context.Context, store *types.EgressStore) (string, error)
}

// AccountResolver looks up the external member account linked to a
// workspace.
type AccountResolver interface {
	MemberAccountID(ctx context.Context, rc *types.RequestContext, workspaceID string) (string, error)
}
