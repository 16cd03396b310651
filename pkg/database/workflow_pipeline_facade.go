// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	stderrors "errors"

	"github.com/AMD-AGI/primus-workflows/pkg/database/model"
	"gorm.io/gorm"
)

// WorkflowPipelineFacadeInterface is the persistence boundary for
// WorkflowPipeline nodes.
type WorkflowPipelineFacadeInterface interface {
	Create(ctx context.Context, wp *model.WorkflowPipeline) error
	Get(ctx context.Context, uuid string) (*model.WorkflowPipeline, error)
	ListLiveByWorkflow(ctx context.Context, workflowID uint64) ([]model.WorkflowPipeline, error)
	UpdatePipelineRef(ctx context.Context, uuid string, pipelineID uint64, pipelineUUID string) error
	SoftDelete(ctx context.Context, uuid string) error
	SoftDeleteByWorkflow(ctx context.Context, workflowID uint64) error
	CountLiveByPipelineID(ctx context.Context, pipelineID uint64) (int64, error)
}

// WorkflowPipelineFacade implements WorkflowPipelineFacadeInterface over
// GORM/Postgres.
type WorkflowPipelineFacade struct {
	BaseFacade
}

// NewWorkflowPipelineFacade creates a new WorkflowPipelineFacade.
func NewWorkflowPipelineFacade() WorkflowPipelineFacadeInterface {
	return &WorkflowPipelineFacade{}
}

func (f *WorkflowPipelineFacade) Create(ctx context.Context, wp *model.WorkflowPipeline) error {
	return f.getDB(ctx).Create(wp).Error
}

func (f *WorkflowPipelineFacade) Get(ctx context.Context, uuid string) (*model.WorkflowPipeline, error) {
	var wp model.WorkflowPipeline
	err := f.getDB(ctx).Where("uuid = ? AND is_deleted = ?", uuid, false).First(&wp).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wp, nil
}

func (f *WorkflowPipelineFacade) ListLiveByWorkflow(ctx context.Context, workflowID uint64) ([]model.WorkflowPipeline, error) {
	var rows []model.WorkflowPipeline
	err := f.getDB(ctx).Where("workflow_id = ? AND is_deleted = ?", workflowID, false).Find(&rows).Error
	return rows, err
}

func (f *WorkflowPipelineFacade) UpdatePipelineRef(ctx context.Context, uuid string, pipelineID uint64, pipelineUUID string) error {
	result := f.getDB(ctx).Model(&model.WorkflowPipeline{}).
		Where("uuid = ? AND is_deleted = ?", uuid, false).
		Updates(map[string]interface{}{
			"pipeline_id":   pipelineID,
			"pipeline_uuid": pipelineUUID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (f *WorkflowPipelineFacade) SoftDelete(ctx context.Context, uuid string) error {
	result := f.getDB(ctx).Model(&model.WorkflowPipeline{}).
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

func (f *WorkflowPipelineFacade) SoftDeleteByWorkflow(ctx context.Context, workflowID uint64) error {
	return f.getDB(ctx).Model(&model.WorkflowPipeline{}).
		Where("workflow_id = ? AND is_deleted = ?", workflowID, false).
		Update("is_deleted", true).Error
}

func (f *WorkflowPipelineFacade) CountLiveByPipelineID(ctx context.Context, pipelineID uint64) (int64, error) {
	var count int64
	err := f.getDB(ctx).Model(&model.WorkflowPipeline{}).
		Where("pipeline_id = ? AND is_deleted = ?", pipelineID, false).Count(&count).Error
	return count, err
}

// WorkflowPipelineDependencyFacadeInterface is the persistence boundary for
// directed edges between WorkflowPipelines.
type WorkflowPipelineDependencyFacadeInterface interface {
	Create(ctx context.Context, dep *model.WorkflowPipelineDependency) error
	ListLiveByWorkflow(ctx context.Context, workflowID uint64) ([]model.WorkflowPipelineDependency, error)
	Exists(ctx context.Context, workflowID uint64, fromUUID, toUUID string) (bool, error)
	SoftDelete(ctx context.Context, id uint64) error
	SoftDeleteIncidentTo(ctx context.Context, workflowPipelineID uint64) error
}

// WorkflowPipelineDependencyFacade implements
// WorkflowPipelineDependencyFacadeInterface over GORM/Postgres.
type WorkflowPipelineDependencyFacade struct {
	BaseFacade
}

// NewWorkflowPipelineDependencyFacade creates a new
// WorkflowPipelineDependencyFacade.
func NewWorkflowPipelineDependencyFacade() WorkflowPipelineDependencyFacadeInterface {
	return &WorkflowPipelineDependencyFacade{}
}

func (f *WorkflowPipelineDependencyFacade) Create(ctx context.Context, dep *model.WorkflowPipelineDependency) error {
	return f.getDB(ctx).Create(dep).Error
}

func (f *WorkflowPipelineDependencyFacade) ListLiveByWorkflow(ctx context.Context, workflowID uint64) ([]model.WorkflowPipelineDependency, error) {
	var rows []model.WorkflowPipelineDependency
	err := f.getDB(ctx).Where("workflow_id = ? AND is_deleted = ?", workflowID, false).Find(&rows).Error
	return rows, err
}

// Exists reports whether the edge (fromUUID -> toUUID) already exists and is
// live, used to coalesce duplicate edges per §4.4 step 2.
func (f *WorkflowPipelineDependencyFacade) Exists(ctx context.Context, workflowID uint64, fromUUID, toUUID string) (bool, error) {
	var count int64
	err := f.getDB(ctx).Model(&model.WorkflowPipelineDependency{}).
		Where("workflow_id = ? AND from_workflow_pipeline_uuid = ? AND to_workflow_pipeline_uuid = ? AND is_deleted = ?",
			workflowID, fromUUID, toUUID, false).
		Count(&count).Error
	return count > 0, err
}

func (f *WorkflowPipelineDependencyFacade) SoftDelete(ctx context.Context, id uint64) error {
	return f.getDB(ctx).Model(&model.WorkflowPipelineDependency{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true).Error
}

func (f *WorkflowPipelineDependencyFacade) SoftDeleteIncidentTo(ctx context.Context, workflowPipelineID uint64) error {
	return f.getDB(ctx).Model(&model.WorkflowPipelineDependency{}).
		Where("(from_workflow_pipeline_id = ? OR to_workflow_pipeline_id = ?) AND is_deleted = ?",
			workflowPipelineID, workflowPipelineID, false).
		Update("is_deleted", true).Error
}
