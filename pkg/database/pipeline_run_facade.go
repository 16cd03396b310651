// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/AMD-AGI/primus-workflows/pkg/database/model"
	"gorm.io/gorm"
)

// PipelineRunFacadeInterface is the persistence boundary for PipelineRun
// aggregates: the run row itself, its append-only state log, its inputs,
// and its artifacts.
type PipelineRunFacadeInterface interface {
	Create(ctx context.Context, run *model.PipelineRun) error
	Get(ctx context.Context, uuid string) (*model.PipelineRun, error)
	GetByID(ctx context.Context, id uint64) (*model.PipelineRun, error)
	CountByPipelineID(ctx context.Context, pipelineID uint64) (int64, error)

	AppendState(ctx context.Context, runID uint64, code int) error
	CurrentState(ctx context.Context, runID uint64) (*model.PipelineRunState, error)

	UpdateOutput(ctx context.Context, runID uint64, stdout, stderr string) error
	MarkStarted(ctx context.Context, runID uint64, at time.Time) error
	MarkCompleted(ctx context.Context, runID uint64, at time.Time) error

	CreateArtifact(ctx context.Context, artifact *model.PipelineRunArtifact) error
	ListArtifacts(ctx context.Context, runID uint64) ([]model.PipelineRunArtifact, error)

	// AddInputIfAbsent inserts input unless one already exists for the same
	// run with the same SourceArtifactUUID (dedupe by source artifact UUID,
	// per §4.5.3). An input with an empty SourceArtifactUUID (a caller-supplied
	// input, not a copied artifact) is always inserted. Returns true if a row
	// was inserted.
	AddInputIfAbsent(ctx context.Context, input *model.PipelineRunInput) (bool, error)
	ListInputs(ctx context.Context, runID uint64) ([]model.PipelineRunInput, error)
}

// PipelineRunFacade implements PipelineRunFacadeInterface over GORM/Postgres.
type PipelineRunFacade struct {
	BaseFacade
}

// NewPipelineRunFacade creates a new PipelineRunFacade.
func NewPipelineRunFacade() PipelineRunFacadeInterface {
	return &PipelineRunFacade{}
}

func (f *PipelineRunFacade) Create(ctx context.Context, run *model.PipelineRun) error {
	return f.getDB(ctx).Create(run).Error
}

func (f *PipelineRunFacade) Get(ctx context.Context, uuid string) (*model.PipelineRun, error) {
	var run model.PipelineRun
	err := f.getDB(ctx).Where("uuid = ?", uuid).First(&run).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (f *PipelineRunFacade) GetByID(ctx context.Context, id uint64) (*model.PipelineRun, error) {
	var run model.PipelineRun
	err := f.getDB(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (f *PipelineRunFacade) CountByPipelineID(ctx context.Context, pipelineID uint64) (int64, error) {
	var count int64
	err := f.getDB(ctx).Model(&model.PipelineRun{}).
		Where("pipeline_id = ?", pipelineID).Count(&count).Error
	return count, err
}

// AppendState inserts a new PipelineRunState row; the state log is never
// mutated, only appended to.
func (f *PipelineRunFacade) AppendState(ctx context.Context, runID uint64, code int) error {
	return f.getDB(ctx).Create(&model.PipelineRunState{
		PipelineRunID: runID,
		Code:          code,
		CreatedAt:     time.Now(),
	}).Error
}

// CurrentState returns the state entry with the greatest CreatedAt.
func (f *PipelineRunFacade) CurrentState(ctx context.Context, runID uint64) (*model.PipelineRunState, error) {
	var state model.PipelineRunState
	err := f.getDB(ctx).Where("pipeline_run_id = ?", runID).
		Order("created_at DESC, id DESC").First(&state).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (f *PipelineRunFacade) UpdateOutput(ctx context.Context, runID uint64, stdout, stderr string) error {
	return f.getDB(ctx).Model(&model.PipelineRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{"stdout": stdout, "stderr": stderr}).Error
}

func (f *PipelineRunFacade) MarkStarted(ctx context.Context, runID uint64, at time.Time) error {
	return f.getDB(ctx).Model(&model.PipelineRun{}).
		Where("id = ?", runID).Update("started_at", at).Error
}

func (f *PipelineRunFacade) MarkCompleted(ctx context.Context, runID uint64, at time.Time) error {
	return f.getDB(ctx).Model(&model.PipelineRun{}).
		Where("id = ?", runID).Update("completed_at", at).Error
}

func (f *PipelineRunFacade) CreateArtifact(ctx context.Context, artifact *model.PipelineRunArtifact) error {
	return f.getDB(ctx).Create(artifact).Error
}

func (f *PipelineRunFacade) ListArtifacts(ctx context.Context, runID uint64) ([]model.PipelineRunArtifact, error) {
	var artifacts []model.PipelineRunArtifact
	err := f.getDB(ctx).Where("pipeline_run_id = ?", runID).Order("created_at ASC").Find(&artifacts).Error
	return artifacts, err
}

func (f *PipelineRunFacade) ListInputs(ctx context.Context, runID uint64) ([]model.PipelineRunInput, error) {
	var inputs []model.PipelineRunInput
	err := f.getDB(ctx).Where("pipeline_run_id = ?", runID).Order("created_at ASC").Find(&inputs).Error
	return inputs, err
}

func (f *PipelineRunFacade) AddInputIfAbsent(ctx context.Context, input *model.PipelineRunInput) (bool, error) {
	db := f.getDB(ctx)
	if input.SourceArtifactUUID == "" {
		if err := db.Create(input).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	inserted := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.PipelineRunInput{}).
			Where("pipeline_run_id = ? AND source_artifact_uuid = ?", input.PipelineRunID, input.SourceArtifactUUID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(input).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}
