// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"

	"github.com/stagegate/stagegate/pkg/logger"
)

// NoopPublisher drops all notifications. Use it when the notification
// transport is disabled (local development, dry runs).
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, n *EgressNotification) error {
	logger.Ctx(ctx).Debug().Str("store_id", n.EgressStoreID).Msg("notification publishing disabled; dropping")
	return nil
}
