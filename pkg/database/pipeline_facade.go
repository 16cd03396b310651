// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	stderrors "errors"

	"github.com/AMD-AGI/primus-workflows/pkg/database/model"
	"gorm.io/gorm"
)

// PipelineFacadeInterface is the persistence boundary for Pipeline templates.
type PipelineFacadeInterface interface {
	Create(ctx context.Context, pipeline *model.Pipeline) error
	Get(ctx context.Context, uuid string) (*model.Pipeline, error)
	Update(ctx context.Context, pipeline *model.Pipeline) error
	SoftDelete(ctx context.Context, uuid string) error
}

// PipelineFacade implements PipelineFacadeInterface over GORM/Postgres,
// grounded on the teacher's AITaskFacade Create/Get/Updates pattern.
type PipelineFacade struct {
	BaseFacade
}

// NewPipelineFacade creates a new PipelineFacade.
func NewPipelineFacade() PipelineFacadeInterface {
	return &PipelineFacade{}
}

func (f *PipelineFacade) Create(ctx context.Context, pipeline *model.Pipeline) error {
	return f.getDB(ctx).Create(pipeline).Error
}

// Get is wrapped in WithRetry since it's a pure read with no side effects to
// duplicate, so retrying a transient connection hiccup is always safe.
func (f *PipelineFacade) Get(ctx context.Context, uuid string) (*model.Pipeline, error) {
	var p model.Pipeline
	err := WithRetry(ctx, func() error {
		return f.getDB(ctx).Where("uuid = ? AND is_deleted = ?", uuid, false).First(&p).Error
	})
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Update overwrites every mutable attribute in one call, matching
// original_source/app/pipelines/services.py:update_pipeline.
func (f *PipelineFacade) Update(ctx context.Context, pipeline *model.Pipeline) error {
	result := f.getDB(ctx).Model(&model.Pipeline{}).
		Where("uuid = ? AND is_deleted = ?", pipeline.UUID, false).
		Updates(map[string]interface{}{
			"name":               pipeline.Name,
			"description":        pipeline.Description,
			"docker_image_url":   pipeline.DockerImageURL,
			"repository_ssh_url": pipeline.RepositorySSHURL,
			"repository_branch":  pipeline.RepositoryBranch,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (f *PipelineFacade) SoftDelete(ctx context.Context, uuid string) error {
	result := f.getDB(ctx).Model(&model.Pipeline{}).
		Where("uuid = ? AND is_deleted = ?", uuid, false).
		Update("is_deleted", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ErrNotFound is returned by facade mutations whose WHERE clause matched no
// live row.
var ErrNotFound = stderrors.New("record not found")
