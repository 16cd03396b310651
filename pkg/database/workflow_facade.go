// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	stderrors "errors"

	"github.com/AMD-AGI/primus-workflows/pkg/database/model"
	"gorm.io/gorm"
)

// WorkflowFacadeInterface is the persistence boundary for Workflow.
type WorkflowFacadeInterface interface {
	Create(ctx context.Context, workflow *model.Workflow) error
	Get(ctx context.Context, uuid string) (*model.Workflow, error)
	Update(ctx context.Context, workflow *model.Workflow) error
	// SoftDelete soft-deletes the workflow itself; the caller (the
	// composition service) is responsible for cascading to its
	// WorkflowPipelines via WorkflowPipelineFacade.SoftDeleteByWorkflow.
	SoftDelete(ctx context.Context, uuid string) error
}

// WorkflowFacade implements WorkflowFacadeInterface over GORM/Postgres.
type WorkflowFacade struct {
	BaseFacade
}

// NewWorkflowFacade creates a new WorkflowFacade.
func NewWorkflowFacade() WorkflowFacadeInterface {
	return &WorkflowFacade{}
}

func (f *WorkflowFacade) Create(ctx context.Context, workflow *model.Workflow) error {
	return f.getDB(ctx).Create(workflow).Error
}

// Get is wrapped in WithRetry: a pure read, safe to retry on a transient
// connection error.
func (f *WorkflowFacade) Get(ctx context.Context, uuid string) (*model.Workflow, error) {
	var w model.Workflow
	err := WithRetry(ctx, func() error {
		return f.getDB(ctx).Where("uuid = ? AND is_deleted = ?", uuid, false).First(&w).Error
	})
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (f *WorkflowFacade) Update(ctx context.Context, workflow *model.Workflow) error {
	result := f.getDB(ctx).Model(&model.Workflow{}).
		Where("uuid = ? AND is_deleted = ?", workflow.UUID, false).
		Updates(map[string]interface{}{
			"name":        workflow.Name,
			"description": workflow.Description,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (f *WorkflowFacade) SoftDelete(ctx context.Context, uuid string) error {
	result := f.getDB(ctx).Model(&model.Workflow{}).
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
