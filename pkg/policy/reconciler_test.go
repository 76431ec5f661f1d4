// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagegate/stagegate/pkg/lock"
)

// fakePolicyStore keeps one policy document per bucket in memory. A small
// settable delay between read and write widens the read-modify-write window
// for the interleaving test.
type fakePolicyStore struct {
	mu       sync.Mutex
	policies map[string]string
	getErr   error
	setErr   error
	rmwDelay time.Duration
	setCalls int
}

func newFakePolicyStore() *fakePolicyStore {
	return &fakePolicyStore{policies: make(map[string]string)}
}

func (f *fakePolicyStore) GetPolicy(ctx context.Context, bucket string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	f.mu.Lock()
	doc := f.policies[bucket]
	f.mu.Unlock()
	if f.rmwDelay > 0 {
		time.Sleep(f.rmwDelay)
	}
	return doc, nil
}

func (f *fakePolicyStore) SetPolicy(ctx context.Context, bucket string, doc string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies[bucket] = doc
	f.setCalls++
	return nil
}

func newTestReconciler(t *testing.T, policies Store) *Reconciler {
	t.Helper()
	r, err := NewReconciler(policies, lock.NewMemoryCoordinator())
	require.NoError(t, err)
	return r
}

func TestNewReconcilerValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := NewReconciler(nil, lock.NewMemoryCoordinator())
	assert.ErrorContains(t, err, "policy store is required")

	_, err = NewReconciler(newFakePolicyStore(), nil)
	assert.ErrorContains(t, err, "lock coordinator is required")
}

func TestGrantCreatesStatementsOnEmptyBucket(t *testing.T) {
	t.Parallel()

	policies := newFakePolicyStore()
	r := newTestReconciler(t, policies)
	store := testStore("ws-1")

	require.NoError(t, r.Grant(context.Background(), store, "111122223333"))

	doc, err := FromJSON(policies.policies["egress-staging"])
	require.NoError(t, err)
	require.Len(t, doc.Statements, 3)
	for _, kind := range KindsFor(true, true) {
		stmt := doc.FindStatement(StatementID("ws-1", kind))
		require.NotNil(t, stmt, "missing statement for kind %s", kind)
		assert.Equal(t, StringOrSlice{"111122223333"}, stmt.Principal.AWS)
	}
}

func TestGrantIsIdempotent(t *testing.T) {
	t.Parallel()

	policies := newFakePolicyStore()
	r := newTestReconciler(t, policies)
	store := testStore("ws-1")

	require.NoError(t, r.Grant(context.Background(), store, "111122223333"))
	first := policies.policies["egress-staging"]

	require.NoError(t, r.Grant(context.Background(), store, "111122223333"))
	assert.Equal(t, first, policies.policies["egress-staging"])
}

func TestGrantThenRevokeRestoresDocument(t *testing.T) {
	t.Parallel()

	policies := newFakePolicyStore()
	r := newTestReconciler(t, policies)

	require.NoError(t, r.Grant(context.Background(), testStore("ws-other"), "999988887777"))
	before := policies.policies["egress-staging"]

	store := testStore("ws-1")
	require.NoError(t, r.Grant(context.Background(), store, "111122223333"))
	require.NoError(t, r.Revoke(context.Background(), store, "111122223333"))

	assert.Equal(t, before, policies.policies["egress-staging"])
}

func TestGrantSurfacesMalformedPolicy(t *testing.T) {
	t.Parallel()

	policies := newFakePolicyStore()
	policies.policies["egress-staging"] = "{not json"
	r := newTestReconciler(t, policies)

	err := r.Grant(context.Background(), testStore("ws-1"), "111122223333")
	require.ErrorContains(t, err, "malformed policy")
	assert.Zero(t, policies.setCalls, "no partial write on parse failure")
}

func TestGrantSurfacesStoreErrors(t *testing.T) {
	t.Parallel()

	ioErr := errors.New("connection reset")

	policies := newFakePolicyStore()
	policies.getErr = ioErr
	r := newTestReconciler(t, policies)
	err := r.Grant(context.Background(), testStore("ws-1"), "111122223333")
	assert.ErrorIs(t, err, ioErr)

	policies = newFakePolicyStore()
	policies.setErr = ioErr
	r = newTestReconciler(t, policies)
	err = r.Grant(context.Background(), testStore("ws-1"), "111122223333")
	assert.ErrorIs(t, err, ioErr)
}

func TestConcurrentGrantsNeverLoseUpdates(t *testing.T) {
	t.Parallel()

	// Two stores share one policy document. Interleaved grant cycles must
	// serialize on the policy lock: both principals present after each round.
	const rounds = 25

	for i := 0; i < rounds; i++ {
		policies := newFakePolicyStore()
		policies.rmwDelay = time.Millisecond
		r := newTestReconciler(t, policies)

		var wg sync.WaitGroup
		for _, ws := range []string{"ws-a", "ws-b"} {
			wg.Add(1)
			go func(ws string) {
				defer wg.Done()
				assert.NoError(t, r.Grant(context.Background(), testStore(ws), "acct-"+ws))
			}(ws)
		}
		wg.Wait()

		doc, err := FromJSON(policies.policies["egress-staging"])
		require.NoError(t, err)
		for _, ws := range []string{"ws-a", "ws-b"} {
			stmt := doc.FindStatement(StatementID(ws, KindGet))
			require.NotNil(t, stmt, "round %d lost the grant for %s", i, ws)
			assert.Equal(t, StringOrSlice{"acct-" + ws}, stmt.Principal.AWS)
		}
	}
}
