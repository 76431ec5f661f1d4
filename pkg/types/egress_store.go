// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package types holds the shared data model for egress stores.
package types

import (
	"time"
)

// Status is the lifecycle state of an egress store.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusProcessed  Status = "PROCESSED"
	StatusTerminated Status = "TERMINATED"
)

// StorageLocation identifies where a store's staged objects live.
type StorageLocation struct {
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}

// EgressStore is the per-workspace record tracking a scoped staging area.
// Exactly one record exists per workspace; the record is never physically
// deleted, TERMINATED is terminal.
type EgressStore struct {
	ID              string          `json:"id"`
	EgressStoreName string          `json:"egressStoreName"`
	WorkspaceID     string          `json:"workspaceId"`
	ProjectID       string          `json:"projectId"`
	StorageLocation StorageLocation `json:"storageLocation"`
	Status          Status          `json:"status"`

	// IsAbleToSubmitEgressRequest is true only while the current status
	// allows a new export request.
	IsAbleToSubmitEgressRequest bool `json:"isAbleToSubmitEgressRequest"`

	// ObjectManifestLocation references the last published object-list
	// snapshot, empty until the first submission.
	ObjectManifestLocation string `json:"egressStoreObjectListLocation,omitempty"`

	// Ver increments on every accepted mutation. The record store's
	// conditional write is the correctness guarantee; Ver is informational.
	Ver int64 `json:"ver"`

	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
}

// Clone returns a deep copy of the record.
func (s *EgressStore) Clone() *EgressStore {
	cp := *s
	return &cp
}

// Workspace is the inbound payload for store creation.
type Workspace struct {
	ID        string `json:"id" validate:"required,max=128"`
	Name      string `json:"name" validate:"required,max=128"`
	ProjectID string `json:"projectId" validate:"required,max=128"`
}

// Principal identifies the caller of an operation.
type Principal struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

// RequestContext carries caller identity and authorization for one operation.
type RequestContext struct {
	RequestID string    `json:"requestId"`
	Principal Principal `json:"principal"`
	IsAdmin   bool      `json:"isAdmin"`
}
