// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package store provides the durable keyed record store for egress stores.
package store

import (
	"context"
	"errors"

	"github.com/stagegate/stagegate/pkg/types"
)

var (
	// ErrAlreadyExists is returned by CreateIfAbsent when a record with the
	// same key is present.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrNotFound is returned by UpdateIfExists when no record with the key
	// is present.
	ErrNotFound = errors.New("record not found")
)

// RecordStore persists one EgressStore record per workspace with
// conditional-write semantics. The conditional write, not the caller-held
// lock, is the final correctness guarantee against duplicate creation.
type RecordStore interface {
	// CreateIfAbsent writes the record, failing with ErrAlreadyExists when a
	// record with the same ID is already present.
	CreateIfAbsent(ctx context.Context, rec *types.EgressStore) error

	// UpdateIfExists replaces the record, failing with ErrNotFound when no
	// record with the ID is present.
	UpdateIfExists(ctx context.Context, rec *types.EgressStore) error

	// Find returns the records stored under the given ID. More than one
	// result signals a broken invariant and is surfaced to the caller.
	Find(ctx context.Context, id string) ([]*types.EgressStore, error)

	// ScanAll returns every stored record.
	ScanAll(ctx context.Context) ([]*types.EgressStore, error)
}
