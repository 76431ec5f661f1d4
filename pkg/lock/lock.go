// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package lock provides named mutual exclusion around critical sections.
//
// Two independent lock namespaces are in use: one per store record
// ("egress-store-<id>") and one per shared policy document
// ("bucket-policy-<bucket>"). A record lock is always released before a
// policy lock is requested, so the two namespaces never nest.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be acquired within the
// coordinator's acquisition window. The operation must treat this as
// terminal; no retry happens below this interface.
var ErrNotAcquired = errors.New("lock not acquired")

// Coordinator serializes critical sections by lock id across the fleet.
// The lock is released on every exit path of fn.
type Coordinator interface {
	WithLock(ctx context.Context, lockID string, fn func(ctx context.Context) error) error
}

// RecordLockID names the mutual-exclusion key for one store record.
func RecordLockID(workspaceID string) string {
	return "egress-store-" + workspaceID
}

// PolicyLockID names the mutual-exclusion key for one shared policy document.
func PolicyLockID(bucket string) string {
	return "bucket-policy-" + bucket
}
