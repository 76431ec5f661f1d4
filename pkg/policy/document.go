// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the shared bucket-policy data model and the
// grant/revoke reconciliation over it.
package policy

import (
	"encoding/json"
)

// DefaultVersion is the policy language version stamped on new documents.
const DefaultVersion = "2012-10-17"

// Effect determines whether a statement allows or denies access.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// StringOrSlice handles JSON fields that can be either a string or []string.
type StringOrSlice []string

func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	// Try string first
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = []string{str}
		return nil
	}
	// Try array
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*s = arr
	return nil
}

func (s StringOrSlice) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

// Principal represents who a statement applies to.
type Principal struct {
	AWS       StringOrSlice `json:"AWS,omitempty"`       // AWS account IDs or ARNs
	Service   StringOrSlice `json:"Service,omitempty"`   // AWS services
	Federated StringOrSlice `json:"Federated,omitempty"` // Federated identity providers
}

// UnmarshalJSON handles both the string and object forms of Principal. The
// string form ("*" or a bare ARN) maps onto the AWS principal set.
func (p *Principal) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		p.AWS = []string{str}
		return nil
	}
	type alias Principal
	return json.Unmarshal(data, (*alias)(p))
}

// Condition represents conditional access rules, keyed by condition key
// (s3:prefix, aws:SourceIp, etc.).
type Condition map[string]StringOrSlice

// Statement is a single permission statement in a bucket policy.
type Statement struct {
	Sid          string               `json:"Sid,omitempty"`
	Effect       Effect               `json:"Effect"`
	Principal    *Principal           `json:"Principal,omitempty"`
	NotPrincipal *Principal           `json:"NotPrincipal,omitempty"`
	Actions      StringOrSlice        `json:"Action,omitempty"`
	NotActions   StringOrSlice        `json:"NotAction,omitempty"`
	Resources    StringOrSlice        `json:"Resource,omitempty"`
	NotResources StringOrSlice        `json:"NotResource,omitempty"`
	Condition    map[string]Condition `json:"Condition,omitempty"`
}

// Document is an ordered sequence of statements governing one bucket.
// Statements are held raw: only the statements this service owns are ever
// decoded and re-encoded, so statements written by other tools survive
// read-modify-write byte-for-byte, whatever fields or condition value types
// they use.
type Document struct {
	Version    string            `json:"Version"`
	ID         string            `json:"Id,omitempty"`
	Statements []json.RawMessage `json:"Statement"`
}

// NewDocument returns an empty policy document with the default version.
func NewDocument() *Document {
	return &Document{Version: DefaultVersion}
}

// FromJSON parses a serialized policy document.
func FromJSON(doc string) (*Document, error) {
	var d Document
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ToJSON serializes the document.
func (d *Document) ToJSON() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// sidOf peeks at a raw statement's Sid without decoding the rest.
func sidOf(raw json.RawMessage) string {
	var peek struct {
		Sid string `json:"Sid"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return ""
	}
	return peek.Sid
}

// findIndex returns the position of the statement carrying the Sid, or -1.
func (d *Document) findIndex(sid string) int {
	for i, raw := range d.Statements {
		if sidOf(raw) == sid {
			return i
		}
	}
	return -1
}

// FindStatement decodes and returns the statement with the given Sid, or nil
// when absent or undecodable. The returned value is a copy; mutations do not
// write back to the document.
func (d *Document) FindStatement(sid string) *Statement {
	i := d.findIndex(sid)
	if i < 0 {
		return nil
	}
	var stmt Statement
	if err := json.Unmarshal(d.Statements[i], &stmt); err != nil {
		return nil
	}
	return &stmt
}

// decodeStatement decodes the statement at position i.
func (d *Document) decodeStatement(i int) (*Statement, error) {
	var stmt Statement
	if err := json.Unmarshal(d.Statements[i], &stmt); err != nil {
		return nil, err
	}
	return &stmt, nil
}

// setStatement re-encodes stmt into position i.
func (d *Document) setStatement(i int, stmt *Statement) error {
	raw, err := json.Marshal(stmt)
	if err != nil {
		return err
	}
	d.Statements[i] = raw
	return nil
}

// appendStatement encodes stmt at the end of the document.
func (d *Document) appendStatement(stmt *Statement) error {
	raw, err := json.Marshal(stmt)
	if err != nil {
		return err
	}
	d.Statements = append(d.Statements, raw)
	return nil
}

// removeStatement drops the statement at position i.
func (d *Document) removeStatement(i int) {
	d.Statements = append(d.Statements[:i], d.Statements[i+1:]...)
}
