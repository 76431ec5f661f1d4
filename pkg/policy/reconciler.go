// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/stagegate/stagegate/pkg/lock"
	"github.com/stagegate/stagegate/pkg/logger"
	"github.com/stagegate/stagegate/pkg/types"
)

// Store reads and replaces the policy document attached to one bucket.
// Replacement is all-or-nothing; there is no partial write.
type Store interface {
	// GetPolicy returns the serialized policy, or "" when none is attached.
	GetPolicy(ctx context.Context, bucket string) (string, error)

	// SetPolicy replaces the bucket's policy document.
	SetPolicy(ctx context.Context, bucket string, doc string) error
}

// Reconciler adds or removes one account's principal across the statements
// scoped to one store's prefix, inside the single policy document shared by
// all stores on the bucket. Every mutation is a lock-guarded
// read-modify-write of the whole document, keyed by the bucket, so
// concurrent grants and revokes for different stores cannot lose updates.
type Reconciler struct {
	policies Store
	locks    lock.Coordinator
}

// NewReconciler creates a policy reconciler.
func NewReconciler(policies Store, locks lock.Coordinator) (*Reconciler, error) {
	if policies == nil {
		return nil, errors.New("policy store is required")
	}
	if locks == nil {
		return nil, errors.New("lock coordinator is required")
	}
	return &Reconciler{policies: policies, locks: locks}, nil
}

// Grant adds accountID to the store's get, put, and list statements,
// synthesizing absent statements. Granting an already-granted account is a
// no-op and leaves the document byte-identical.
func (r *Reconciler) Grant(ctx context.Context, store *types.EgressStore, accountID string) error {
	err := r.reconcile(ctx, store.StorageLocation.Bucket, func(doc *Document) error {
		for _, kind := range KindsFor(true, true) {
			if err := AddPrincipal(doc, store, kind, accountID); err != nil {
				return err
			}
		}
		return nil
	})
	ReconcileTotal.WithLabelValues("grant", outcome(err)).Inc()
	return err
}

// Revoke removes accountID from the store's statements; statements whose
// principal set becomes empty are dropped from the document.
func (r *Reconciler) Revoke(ctx context.Context, store *types.EgressStore, accountID string) error {
	err := r.reconcile(ctx, store.StorageLocation.Bucket, func(doc *Document) error {
		for _, kind := range KindsFor(true, true) {
			if err := RemovePrincipal(doc, store.ID, kind, accountID); err != nil {
				return err
			}
		}
		return nil
	})
	ReconcileTotal.WithLabelValues("revoke", outcome(err)).Inc()
	return err
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (r *Reconciler) reconcile(ctx context.Context, bucket string, mutate func(doc *Document) error) error {
	lockID := lock.PolicyLockID(bucket)
	return r.locks.WithLock(ctx, lockID, func(ctx context.Context) error {
		raw, err := r.policies.GetPolicy(ctx, bucket)
		if err != nil {
			return fmt.Errorf("fetch policy for bucket %s: %w", bucket, err)
		}

		doc := NewDocument()
		if raw != "" {
			doc, err = FromJSON(raw)
			if err != nil {
				return fmt.Errorf("malformed policy on bucket %s: %w", bucket, err)
			}
		}

		if err := mutate(doc); err != nil {
			return fmt.Errorf("revise policy on bucket %s: %w", bucket, err)
		}

		revised, err := doc.ToJSON()
		if err != nil {
			return fmt.Errorf("serialize policy for bucket %s: %w", bucket, err)
		}
		if err := r.policies.SetPolicy(ctx, bucket, revised); err != nil {
			return fmt.Errorf("replace policy on bucket %s: %w", bucket, err)
		}

		logger.Ctx(ctx).Debug().
			Str("bucket", bucket).
			Int("statements", len(doc.Statements)).
			Msg("bucket policy reconciled")
		return nil
	})
}
