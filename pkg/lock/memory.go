// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package lock

import (
	"context"
	"sync"
)

// MemoryCoordinator is an in-process Coordinator for single-node deployments
// and tests. It provides the same at-most-one-holder guarantee within one
// process only.
type MemoryCoordinator struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemoryCoordinator creates an in-process lock coordinator.
func NewMemoryCoordinator() *MemoryCoordinator {
	return &MemoryCoordinator{locks: make(map[string]*sync.Mutex)}
}

func (c *MemoryCoordinator) named(lockID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.locks[lockID]
	if !ok {
		m = &sync.Mutex{}
		c.locks[lockID] = m
	}
	return m
}

// WithLock runs fn while holding the named in-process mutex.
func (c *MemoryCoordinator) WithLock(ctx context.Context, lockID string, fn func(ctx context.Context) error) error {
	m := c.named(lockID)
	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}
