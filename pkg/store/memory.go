// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/stagegate/stagegate/pkg/types"
)

// Memory is an in-process RecordStore for tests and local runs.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*types.EgressStore
}

// NewMemory creates an empty in-memory record store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*types.EgressStore)}
}

func (m *Memory) CreateIfAbsent(ctx context.Context, rec *types.EgressStore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; ok {
		return ErrAlreadyExists
	}
	m.records[rec.ID] = rec.Clone()
	return nil
}

func (m *Memory) UpdateIfExists(ctx context.Context, rec *types.EgressStore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; !ok {
		return ErrNotFound
	}
	m.records[rec.ID] = rec.Clone()
	return nil
}

func (m *Memory) Find(ctx context.Context, id string) ([]*types.EgressStore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.records[id]; ok {
		return []*types.EgressStore{rec.Clone()}, nil
	}
	return nil, nil
}

func (m *Memory) ScanAll(ctx context.Context) ([]*types.EgressStore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := make([]*types.EgressStore, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec.Clone())
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}
