// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package events publishes egress-store lifecycle notifications.
package events

import (
	"context"
)

// EgressNotification is the flat payload published on a lifecycle transition.
// It carries the full record snapshot plus the manifest reference so the
// downstream processing pipeline needs no follow-up read.
type EgressNotification struct {
	EgressStoreID          string `json:"egress_store_id"`
	EgressStoreName        string `json:"egress_store_name"`
	WorkspaceID            string `json:"workspace_id"`
	ProjectID              string `json:"project_id"`
	Status                 string `json:"status"`
	Ver                    int64  `json:"ver"`
	ObjectManifestLocation string `json:"egress_store_object_list_location"`
	CreatedAt              string `json:"created_at"`
	CreatedBy              string `json:"created_by"`
	UpdatedAt              string `json:"updated_at"`
	UpdatedBy              string `json:"updated_by"`
}

// Publisher hands notifications to the external transport. Implementations
// must not retry; the caller surfaces publish failures without rolling back
// the record mutation that preceded them.
type Publisher interface {
	Publish(ctx context.Context, n *EgressNotification) error
}
