// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import "time"

const TableNameWorkflowRun = "workflow_runs"

// WorkflowRun is one execution of a Workflow. It owns one WorkflowPipelineRun
// per WorkflowPipeline of the workflow at run-creation time and an ordered
// log of WorkflowRunState.
type WorkflowRun struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UUID         string    `gorm:"column:uuid;uniqueIndex;not null;size:36" json:"uuid"`
	WorkflowID   uint64    `gorm:"column:workflow_id;not null;index" json:"-"`
	WorkflowUUID string    `gorm:"column:workflow_uuid;not null;size:36" json:"workflow_uuid"`

	// Version is a column for the optimistic-concurrency option of §5 (read
	// Version, write WHERE version = ?, retry on conflict). No code reads or
	// bumps it: scheduler reactions serialise on WorkflowRunFacade.WithLock.
	Version uint64 `gorm:"column:version;not null;default:0" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName WorkflowRun's table name
func (*WorkflowRun) TableName() string {
	return TableNameWorkflowRun
}

const TableNameWorkflowPipelineRun = "workflow_pipeline_runs"

// WorkflowPipelineRun binds a WorkflowPipeline to the PipelineRun created for
// it inside a WorkflowRun.
type WorkflowPipelineRun struct {
	ID                 uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	WorkflowRunID      uint64    `gorm:"column:workflow_run_id;not null;index" json:"-"`
	WorkflowRunUUID    string    `gorm:"column:workflow_run_uuid;not null;size:36" json:"workflow_run_uuid"`
	WorkflowPipelineID uint64    `gorm:"column:workflow_pipeline_id;not null;index" json:"-"`
	WorkflowPipelineUUID string  `gorm:"column:workflow_pipeline_uuid;not null;size:36" json:"workflow_pipeline_uuid"`
	PipelineRunID      uint64    `gorm:"column:pipeline_run_id;not null;index" json:"-"`
	PipelineRunUUID    string    `gorm:"column:pipeline_run_uuid;not null;size:36" json:"pipeline_run_uuid"`
	CreatedAt          time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName WorkflowPipelineRun's table name
func (*WorkflowPipelineRun) TableName() string {
	return TableNameWorkflowPipelineRun
}

const TableNameWorkflowRunState = "workflow_run_states"

// WorkflowRunState is one append-only state-log entry of a WorkflowRun; same
// log-entry semantics as PipelineRunState.
type WorkflowRunState struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	WorkflowRunID uint64    `gorm:"column:workflow_run_id;not null;index" json:"-"`
	Code          int       `gorm:"column:code;not null" json:"code"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName WorkflowRunState's table name
func (*WorkflowRunState) TableName() string {
	return TableNameWorkflowRunState
}
