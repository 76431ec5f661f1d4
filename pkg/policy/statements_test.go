// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagegate/stagegate/pkg/types"
)

func testStore(id string) *types.EgressStore {
	return &types.EgressStore{
		ID:              id,
		EgressStoreName: id + "-egress-store",
		WorkspaceID:     id,
		StorageLocation: types.StorageLocation{
			Bucket: "egress-staging",
			Prefix: id + "/",
		},
	}
}

func grantAll(t *testing.T, doc *Document, store *types.EgressStore, accountID string) {
	t.Helper()
	for _, kind := range KindsFor(true, true) {
		require.NoError(t, AddPrincipal(doc, store, kind, accountID))
	}
}

func revokeAll(t *testing.T, doc *Document, storeID, accountID string) {
	t.Helper()
	for _, kind := range KindsFor(true, true) {
		require.NoError(t, RemovePrincipal(doc, storeID, kind, accountID))
	}
}

func TestStatementID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "egress-store-get-object-ws-1", StatementID("ws-1", KindGet))
	assert.Equal(t, "egress-store-put-object-ws-1", StatementID("ws-1", KindPut))
	assert.Equal(t, "egress-store-list-bucket-ws-1", StatementID("ws-1", KindList))
}

func TestKindsFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		read, write bool
		want        []AccessKind
	}{
		{"read only", true, false, []AccessKind{KindGet, KindList}},
		{"write only", false, true, []AccessKind{KindPut, KindList}},
		{"read write dedupes list", true, true, []AccessKind{KindGet, KindPut, KindList}},
		{"neither", false, false, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, KindsFor(tc.read, tc.write))
		})
	}
}

func TestAddPrincipalSynthesizesStatement(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	store := testStore("ws-1")

	require.NoError(t, AddPrincipal(doc, store, KindGet, "111122223333"))

	require.Len(t, doc.Statements, 1)
	stmt := doc.FindStatement("egress-store-get-object-ws-1")
	require.NotNil(t, stmt)
	assert.Equal(t, EffectAllow, stmt.Effect)
	assert.Equal(t, StringOrSlice{"111122223333"}, stmt.Principal.AWS)
	assert.Equal(t, StringOrSlice{"arn:aws:s3:::egress-staging/ws-1/*"}, stmt.Resources)
}

func TestAddPrincipalListStatementScopesPrefix(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	require.NoError(t, AddPrincipal(doc, testStore("ws-1"), KindList, "111122223333"))

	stmt := doc.FindStatement("egress-store-list-bucket-ws-1")
	require.NotNil(t, stmt)
	assert.Equal(t, StringOrSlice{"arn:aws:s3:::egress-staging"}, stmt.Resources)
	require.Contains(t, stmt.Condition, "StringLike")
	assert.Equal(t, StringOrSlice{"ws-1/*"}, stmt.Condition["StringLike"]["s3:prefix"])
}

func TestAddPrincipalIdempotent(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	store := testStore("ws-1")

	grantAll(t, doc, store, "111122223333")
	after, err := doc.ToJSON()
	require.NoError(t, err)

	grantAll(t, doc, store, "111122223333")
	again, err := doc.ToJSON()
	require.NoError(t, err)

	assert.Equal(t, after, again, "second grant must not change the document")
}

func TestRemovePrincipalDropsEmptyStatement(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	store := testStore("ws-1")
	require.NoError(t, AddPrincipal(doc, store, KindGet, "111122223333"))

	require.NoError(t, RemovePrincipal(doc, "ws-1", KindGet, "111122223333"))

	assert.Empty(t, doc.Statements)
}

func TestRemovePrincipalKeepsOtherPrincipals(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	store := testStore("ws-1")
	require.NoError(t, AddPrincipal(doc, store, KindGet, "111122223333"))
	require.NoError(t, AddPrincipal(doc, store, KindGet, "444455556666"))

	require.NoError(t, RemovePrincipal(doc, "ws-1", KindGet, "111122223333"))

	require.Len(t, doc.Statements, 1)
	stmt := doc.FindStatement("egress-store-get-object-ws-1")
	require.NotNil(t, stmt)
	assert.Equal(t, StringOrSlice{"444455556666"}, stmt.Principal.AWS)
}

func TestGrantRevokeRoundTripPreservesUnrelatedStatements(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	other := testStore("ws-other")
	grantAll(t, doc, other, "999988887777")
	before, err := doc.ToJSON()
	require.NoError(t, err)

	store := testStore("ws-1")
	grantAll(t, doc, store, "111122223333")
	revokeAll(t, doc, store.ID, "111122223333")
	after, err := doc.ToJSON()
	require.NoError(t, err)

	assert.Equal(t, before, after, "grant followed by revoke must restore the document byte-for-byte")
}

func TestRemovePrincipalNeverTouchesOtherStores(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	other := testStore("ws-other")
	require.NoError(t, AddPrincipal(doc, other, KindGet, "999988887777"))

	require.NoError(t, RemovePrincipal(doc, "ws-1", KindGet, "999988887777"))

	require.Len(t, doc.Statements, 1)
	assert.NotNil(t, doc.FindStatement("egress-store-get-object-ws-other"))
}

// Statements written by other tools carry fields our typed model does not
// use: Service and Federated principals, NotAction/NotResource, string-form
// principals, non-string condition values. A full grant/revoke cycle must
// leave every one of them byte-for-byte intact.
func TestGrantRevokePreservesForeignStatements(t *testing.T) {
	t.Parallel()

	foreign := []string{
		`{"Sid":"cloudtrail-delivery","Effect":"Allow","Principal":{"Service":"cloudtrail.amazonaws.com"},"NotAction":"s3:DeleteObject","Resource":"arn:aws:s3:::egress-staging/AWSLogs/*"}`,
		`{"Sid":"root-account","Effect":"Allow","Principal":"arn:aws:iam::999988887777:root","Action":"s3:*","Resource":"arn:aws:s3:::egress-staging"}`,
		`{"Sid":"bounded-listing","Effect":"Deny","Principal":"*","Action":"s3:ListBucket","Resource":"arn:aws:s3:::egress-staging","Condition":{"NumericGreaterThan":{"s3:max-keys":10},"Bool":{"aws:SecureTransport":false}}}`,
		`{"Sid":"federated-readers","Effect":"Allow","Principal":{"Federated":"arn:aws:iam::999988887777:oidc-provider/example.org"},"Action":["s3:GetObject"],"Resource":"arn:aws:s3:::egress-staging/shared/*"}`,
	}
	raw := `{"Version":"2012-10-17","Statement":[` + foreign[0] + `,` + foreign[1] + `,` + foreign[2] + `,` + foreign[3] + `]}`

	doc, err := FromJSON(raw)
	require.NoError(t, err)

	store := testStore("ws-1")
	grantAll(t, doc, store, "111122223333")
	revokeAll(t, doc, store.ID, "111122223333")

	out, err := doc.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, raw, out, "foreign statements must survive a grant/revoke cycle unchanged")
}

func TestGrantLeavesForeignStatementsIntactWhileGranted(t *testing.T) {
	t.Parallel()

	foreign := `{"Sid":"cloudtrail-delivery","Effect":"Allow","Principal":{"Service":"cloudtrail.amazonaws.com"},"NotAction":"s3:DeleteObject","Resource":"arn:aws:s3:::egress-staging/AWSLogs/*"}`
	doc, err := FromJSON(`{"Version":"2012-10-17","Statement":[` + foreign + `]}`)
	require.NoError(t, err)

	grantAll(t, doc, testStore("ws-1"), "111122223333")

	out, err := doc.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, out, foreign, "the foreign statement's bytes must still be present after a grant")
	require.Len(t, doc.Statements, 4)
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	grantAll(t, doc, testStore("ws-1"), "111122223333")

	raw, err := doc.ToJSON()
	require.NoError(t, err)

	parsed, err := FromJSON(raw)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(doc, parsed))
}

func TestFromJSONStringForms(t *testing.T) {
	t.Parallel()

	// A document written by another tool: single-string Action/Resource,
	// wildcard and ARN-form principals must all parse.
	raw := `{
		"Version": "2012-10-17",
		"Statement": [{
			"Sid": "external",
			"Effect": "Allow",
			"Principal": "*",
			"Action": "s3:GetObject",
			"Resource": "arn:aws:s3:::egress-staging/shared/*"
		}, {
			"Sid": "external-arn",
			"Effect": "Allow",
			"Principal": "arn:aws:iam::999988887777:root",
			"Action": "s3:GetObject",
			"Resource": "arn:aws:s3:::egress-staging/shared/*"
		}]
	}`
	doc, err := FromJSON(raw)
	require.NoError(t, err)
	require.Len(t, doc.Statements, 2)

	stmt := doc.FindStatement("external")
	require.NotNil(t, stmt)
	assert.Equal(t, StringOrSlice{"*"}, stmt.Principal.AWS)
	assert.Equal(t, StringOrSlice{"s3:GetObject"}, stmt.Actions)

	stmt = doc.FindStatement("external-arn")
	require.NotNil(t, stmt)
	assert.Equal(t, StringOrSlice{"arn:aws:iam::999988887777:root"}, stmt.Principal.AWS)
}
