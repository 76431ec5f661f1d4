// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KMS implements KeyManagement over AWS KMS.
type KMS struct {
	client *kms.Client
}

// NewKMS creates a KMS client for the given region.
func NewKMS(ctx context.Context, region string) (*KMS, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &KMS{client: kms.NewFromConfig(awsCfg)}, nil
}

// NewKMSWithClient wraps an existing client (used by tests).
func NewKMSWithClient(client *kms.Client) *KMS {
	return &KMS{client: client}
}

// ResolveKeyArn resolves a key alias to the backing key's full ARN.
func (k *KMS) ResolveKeyArn(ctx context.Context, alias string) (string, error) {
	if !strings.HasPrefix(alias, "alias/") && !strings.HasPrefix(alias, "arn:") {
		alias = "alias/" + alias
	}
	out, err := k.client.DescribeKey(ctx, &kms.DescribeKeyInput{
		KeyId: aws.String(alias),
	})
	if err != nil {
		return "", fmt.Errorf("describe key %s: %w", alias, err)
	}
	return aws.ToString(out.KeyMetadata.Arn), nil
}
