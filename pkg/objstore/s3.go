// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/stagegate/stagegate/pkg/logger"
)

// S3Config holds connection settings for the S3-compatible backend.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// S3 implements ObjectStorage and the policy store contract over one S3
// endpoint.
type S3 struct {
	client *s3.Client
}

// NewS3 creates a client for the configured endpoint. When no static
// credentials are given the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for permanent credentials)
		)
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.PathStyle
		},
	}
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &S3{client: s3.NewFromConfig(awsCfg, opts...)}, nil
}

// NewS3WithClient wraps an existing client (used by tests).
func NewS3WithClient(client *s3.Client) *S3 {
	return &S3{client: client}
}

// CreatePrefix writes the zero-byte prefix marker so the path is visible to
// console users before any object lands.
func (s *S3) CreatePrefix(ctx context.Context, bucket, prefix string) error {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(prefix),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("create prefix %s/%s: %w", bucket, prefix, err)
	}
	return nil
}

// ClearPrefix deletes every object under the prefix in batches.
func (s *S3) ClearPrefix(ctx context.Context, bucket, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, s3types.ObjectIdentifier{Key: obj.Key})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete objects under %s/%s: %w", bucket, prefix, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("delete objects under %s/%s: %d failed, first: %s %s",
				bucket, prefix, len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}

	logger.Ctx(ctx).Info().Str("bucket", bucket).Str("prefix", prefix).Msg("cleared storage prefix")
	return nil
}

// ListAll returns every object under the prefix, excluding the prefix marker
// itself.
func (s *S3) ListAll(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	var objects []ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			objects = append(objects, ObjectInfo{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

// LatestVersion resolves the current version marker and owner of one key.
func (s *S3) LatestVersion(ctx context.Context, bucket, key string) (*ObjectVersion, error) {
	out, err := s.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("list versions of %s/%s: %w", bucket, key, err)
	}
	for _, v := range out.Versions {
		if aws.ToString(v.Key) != key || !aws.ToBool(v.IsLatest) {
			continue
		}
		ver := &ObjectVersion{VersionID: aws.ToString(v.VersionId)}
		if v.Owner != nil {
			ver.Owner = aws.ToString(v.Owner.ID)
		}
		return ver, nil
	}
	return nil, fmt.Errorf("no latest version found for %s/%s", bucket, key)
}

// PutObject writes one object.
func (s *S3) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// GetPolicy returns the bucket's policy document, or "" when none exists.
func (s *S3) GetPolicy(ctx context.Context, bucket string) (string, error) {
	out, err := s.client.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucketPolicy" {
			return "", nil
		}
		return "", fmt.Errorf("get policy of %s: %w", bucket, err)
	}
	return aws.ToString(out.Policy), nil
}

// SetPolicy replaces the bucket's policy document.
func (s *S3) SetPolicy(ctx context.Context, bucket string, doc string) error {
	_, err := s.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucket),
		Policy: aws.String(doc),
	})
	if err != nil {
		return fmt.Errorf("put policy of %s: %w", bucket, err)
	}
	return nil
}
