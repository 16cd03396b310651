// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package artifact is the object-store boundary for pipeline run artifacts:
// uploading artifact bytes and minting presigned GET URLs so a downstream
// worker can fetch an upstream artifact without the core ever copying bytes
// itself. Adapted from the teacher's pkg/snapshot/s3_store.go, trimmed to
// the single S3-compatible backend this runtime needs (no local-filesystem
// variant: the object store is an explicit out-of-core-scope collaborator).
package artifact

import (
	"context"
	"io"
	"time"

	"github.com/AMD-AGI/primus-workflows/pkg/config"
	"github.com/AMD-AGI/primus-workflows/pkg/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store uploads artifact bytes and mints presigned GET URLs for them, keyed
// per §6: {pipeline_uuid}/{pipeline_run_uuid}/{artifact_uuid}-{filename}.
type Store interface {
	// Upload streams an artifact's bytes to the object key derived from its
	// coordinates, returning the object key recorded on PipelineRunArtifact.
	Upload(ctx context.Context, pipelineUUID, runUUID, artifactUUID, filename string, body io.Reader, size int64) (objectKey string, err error)

	// PresignedURL mints a time-limited GET URL for an already-uploaded
	// object key.
	PresignedURL(ctx context.Context, objectKey string) (string, error)
}

// S3Store implements Store on top of any S3-compatible object store.
type S3Store struct {
	client  *minio.Client
	bucket  string
	ttl     time.Duration
}

// NewS3Store creates a new S3Store from the runtime's object-store config,
// ensuring the configured bucket exists.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.EndpointURL, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.RegionName,
	})
	if err != nil {
		return nil, errors.NewError().WithCode(errors.CodeInternal).
			WithMessage("failed to create S3 client").WithError(err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.NewError().WithCode(errors.CodeInternal).
			WithMessagef("failed to check bucket %q", cfg.Bucket).WithError(err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.RegionName}); err != nil {
			return nil, errors.NewError().WithCode(errors.CodeInternal).
				WithMessagef("failed to create bucket %q", cfg.Bucket).WithError(err)
		}
	}

	return &S3Store{client: client, bucket: cfg.Bucket, ttl: cfg.PresignedTimeout()}, nil
}

// ObjectKey builds the canonical object-store key for an artifact, per §6.
func ObjectKey(pipelineUUID, runUUID, artifactUUID, filename string) string {
	return pipelineUUID + "/" + runUUID + "/" + artifactUUID + "-" + filename
}

func (s *S3Store) Upload(ctx context.Context, pipelineUUID, runUUID, artifactUUID, filename string, body io.Reader, size int64) (string, error) {
	key := ObjectKey(pipelineUUID, runUUID, artifactUUID, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", errors.NewError().WithCode(errors.CodeInternal).
			WithMessagef("failed to upload artifact %s", key).WithError(err)
	}
	return key, nil
}

func (s *S3Store) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.ttl, nil)
	if err != nil {
		return "", errors.NewError().WithCode(errors.CodeInternal).
			WithMessagef("failed to presign %s", objectKey).WithError(err)
	}
	return u.String(), nil
}
