// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"

	"github.com/stagegate/stagegate/pkg/types"
)

// AccessKind is one of the three permission kinds granted on a store prefix.
type AccessKind string

const (
	KindGet  AccessKind = "get-object"
	KindPut  AccessKind = "put-object"
	KindList AccessKind = "list-bucket"
)

// StatementID derives the deterministic Sid for a (store, kind) pair. A
// statement for a given pair either does not exist or exists exactly once.
func StatementID(storeID string, kind AccessKind) string {
	return fmt.Sprintf("egress-store-%s-%s", kind, storeID)
}

// KindsFor expands read/write permissions into access kinds. Both read and
// write imply list; the list kind appears at most once.
func KindsFor(read, write bool) []AccessKind {
	var kinds []AccessKind
	if read {
		kinds = append(kinds, KindGet)
	}
	if write {
		kinds = append(kinds, KindPut)
	}
	if read || write {
		kinds = append(kinds, KindList)
	}
	return kinds
}

// statementFor synthesizes an empty statement for the kind, scoped to the
// store's prefix. Object kinds target the prefix ARN; list targets the bucket
// ARN with an s3:prefix condition.
func statementFor(store *types.EgressStore, kind AccessKind) Statement {
	loc := store.StorageLocation
	stmt := Statement{
		Sid:       StatementID(store.ID, kind),
		Effect:    EffectAllow,
		Principal: &Principal{},
	}
	switch kind {
	case KindGet:
		stmt.Actions = StringOrSlice{"s3:GetObject", "s3:GetObjectVersion"}
		stmt.Resources = StringOrSlice{objectARN(loc)}
	case KindPut:
		stmt.Actions = StringOrSlice{"s3:PutObject"}
		stmt.Resources = StringOrSlice{objectARN(loc)}
	case KindList:
		stmt.Actions = StringOrSlice{"s3:ListBucket", "s3:ListBucketVersions"}
		stmt.Resources = StringOrSlice{bucketARN(loc.Bucket)}
		stmt.Condition = map[string]Condition{
			"StringLike": {"s3:prefix": StringOrSlice{loc.Prefix + "*"}},
		}
	}
	return stmt
}

func bucketARN(bucket string) string {
	return "arn:aws:s3:::" + bucket
}

func objectARN(loc types.StorageLocation) string {
	return "arn:aws:s3:::" + loc.Bucket + "/" + loc.Prefix + "*"
}

// AddPrincipal ensures accountID is present on the store's statement for the
// given kind, synthesizing the statement when absent. Adding an account that
// is already present leaves the document untouched. Only the statement
// carrying the store's Sid is decoded; every other statement keeps its
// original bytes.
func AddPrincipal(doc *Document, store *types.EgressStore, kind AccessKind, accountID string) error {
	sid := StatementID(store.ID, kind)
	i := doc.findIndex(sid)
	if i < 0 {
		stmt := statementFor(store, kind)
		stmt.Principal.AWS = StringOrSlice{accountID}
		return doc.appendStatement(&stmt)
	}

	stmt, err := doc.decodeStatement(i)
	if err != nil {
		return fmt.Errorf("decode statement %s: %w", sid, err)
	}
	if stmt.Principal == nil {
		stmt.Principal = &Principal{}
	}
	for _, existing := range stmt.Principal.AWS {
		if existing == accountID {
			return nil
		}
	}
	stmt.Principal.AWS = append(stmt.Principal.AWS, accountID)
	return doc.setStatement(i, stmt)
}

// RemovePrincipal removes accountID from the store's statement for the given
// kind. A statement whose principal set becomes empty is dropped from the
// document entirely. Statements belonging to other stores or accounts are
// never touched.
func RemovePrincipal(doc *Document, storeID string, kind AccessKind, accountID string) error {
	sid := StatementID(storeID, kind)
	i := doc.findIndex(sid)
	if i < 0 {
		return nil
	}

	stmt, err := doc.decodeStatement(i)
	if err != nil {
		return fmt.Errorf("decode statement %s: %w", sid, err)
	}
	if stmt.Principal == nil {
		return nil
	}
	found := false
	kept := make(StringOrSlice, 0, len(stmt.Principal.AWS))
	for _, existing := range stmt.Principal.AWS {
		if existing == accountID {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	if !found {
		return nil
	}
	if len(kept) == 0 {
		doc.removeStatement(i)
		return nil
	}
	stmt.Principal.AWS = kept
	return doc.setStatement(i, stmt)
}
