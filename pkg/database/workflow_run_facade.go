// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/AMD-AGI/primus-workflows/pkg/database/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkflowRunFacadeInterface is the persistence boundary for WorkflowRun
// aggregates, including the row-level lock the scheduler holds for the
// duration of each reaction (§5).
type WorkflowRunFacadeInterface interface {
	Create(ctx context.Context, run *model.WorkflowRun) error
	Get(ctx context.Context, uuid string) (*model.WorkflowRun, error)
	AppendState(ctx context.Context, runID uint64, code int) error
	CurrentState(ctx context.Context, runID uint64) (*model.WorkflowRunState, error)

	// WithLock opens a transaction, takes SELECT ... FOR UPDATE on the
	// workflow_run row, and calls fn with the locked row and the tx handle
	// so the caller can make every state append and artifact-input copy
	// inside the reaction visible together (grounded on AITaskFacade's
	// SELECT FOR UPDATE SKIP LOCKED claim pattern, without SKIP LOCKED since
	// here we want to block rather than skip).
	WithLock(ctx context.Context, uuid string, fn func(tx *gorm.DB, run *model.WorkflowRun) error) error
}

// WorkflowRunFacade implements WorkflowRunFacadeInterface over GORM/Postgres.
type WorkflowRunFacade struct {
	BaseFacade
}

// NewWorkflowRunFacade creates a new WorkflowRunFacade.
func NewWorkflowRunFacade() WorkflowRunFacadeInterface {
	return &WorkflowRunFacade{}
}

func (f *WorkflowRunFacade) Create(ctx context.Context, run *model.WorkflowRun) error {
	return f.getDB(ctx).Create(run).Error
}

func (f *WorkflowRunFacade) Get(ctx context.Context, uuid string) (*model.WorkflowRun, error) {
	var run model.WorkflowRun
	err := f.getDB(ctx).Where("uuid = ?", uuid).First(&run).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (f *WorkflowRunFacade) AppendState(ctx context.Context, runID uint64, code int) error {
	return f.getDB(ctx).Create(&model.WorkflowRunState{
		WorkflowRunID: runID,
		Code:          code,
		CreatedAt:     time.Now(),
	}).Error
}

func (f *WorkflowRunFacade) CurrentState(ctx context.Context, runID uint64) (*model.WorkflowRunState, error) {
	var state model.WorkflowRunState
	err := f.getDB(ctx).Where("workflow_run_id = ?", runID).
		Order("created_at DESC, id DESC").First(&state).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (f *WorkflowRunFacade) WithLock(ctx context.Context, uuid string, fn func(tx *gorm.DB, run *model.WorkflowRun) error) error {
	db := f.getDB(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		var run model.WorkflowRun
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ?", uuid).First(&run).Error
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return fn(tx, &run)
	})
}

// WorkflowPipelineRunFacadeInterface is the persistence boundary for
// WorkflowPipelineRun bindings.
type WorkflowPipelineRunFacadeInterface interface {
	Create(ctx context.Context, wpr *model.WorkflowPipelineRun) error
	ListByWorkflowRun(ctx context.Context, workflowRunID uint64) ([]model.WorkflowPipelineRun, error)
	GetByWorkflowPipeline(ctx context.Context, workflowRunID, workflowPipelineID uint64) (*model.WorkflowPipelineRun, error)
	// GetByPipelineRun finds the WorkflowPipelineRun (if any) binding a given
	// PipelineRun, the entry point for on_pipeline_run_updated (§4.5.2) to
	// discover whether a pipeline run belongs to a workflow run at all.
	GetByPipelineRun(ctx context.Context, pipelineRunID uint64) (*model.WorkflowPipelineRun, error)
}

// WorkflowPipelineRunFacade implements WorkflowPipelineRunFacadeInterface
// over GORM/Postgres.
type WorkflowPipelineRunFacade struct {
	BaseFacade
}

// NewWorkflowPipelineRunFacade creates a new WorkflowPipelineRunFacade.
func NewWorkflowPipelineRunFacade() WorkflowPipelineRunFacadeInterface {
	return &WorkflowPipelineRunFacade{}
}

func (f *WorkflowPipelineRunFacade) Create(ctx context.Context, wpr *model.WorkflowPipelineRun) error {
	return f.getDB(ctx).Create(wpr).Error
}

func (f *WorkflowPipelineRunFacade) ListByWorkflowRun(ctx context.Context, workflowRunID uint64) ([]model.WorkflowPipelineRun, error) {
	var rows []model.WorkflowPipelineRun
	err := f.getDB(ctx).Where("workflow_run_id = ?", workflowRunID).Find(&rows).Error
	return rows, err
}

func (f *WorkflowPipelineRunFacade) GetByWorkflowPipeline(ctx context.Context, workflowRunID, workflowPipelineID uint64) (*model.WorkflowPipelineRun, error) {
	var wpr model.WorkflowPipelineRun
	err := f.getDB(ctx).Where("workflow_run_id = ? AND workflow_pipeline_id = ?", workflowRunID, workflowPipelineID).
		First(&wpr).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wpr, nil
}

func (f *WorkflowPipelineRunFacade) GetByPipelineRun(ctx context.Context, pipelineRunID uint64) (*model.WorkflowPipelineRun, error) {
	var wpr model.WorkflowPipelineRun
	err := f.getDB(ctx).Where("pipeline_run_id = ?", pipelineRunID).First(&wpr).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wpr, nil
}
