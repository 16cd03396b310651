// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import "time"

const TableNameWorkflowPipeline = "workflow_pipelines"

// WorkflowPipeline is a node in a workflow graph, binding one Pipeline to
// one Workflow. A workflow may reference the same pipeline in multiple
// nodes.
type WorkflowPipeline struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UUID         string    `gorm:"column:uuid;uniqueIndex;not null;size:36" json:"uuid"`
	WorkflowID   uint64    `gorm:"column:workflow_id;not null;index" json:"-"`
	WorkflowUUID string    `gorm:"column:workflow_uuid;not null;size:36" json:"workflow_uuid"`
	PipelineID   uint64    `gorm:"column:pipeline_id;not null;index" json:"-"`
	PipelineUUID string    `gorm:"column:pipeline_uuid;not null;size:36" json:"pipeline_uuid"`
	IsDeleted    bool      `gorm:"column:is_deleted;not null;default:false" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName WorkflowPipeline's table name
func (*WorkflowPipeline) TableName() string {
	return TableNameWorkflowPipeline
}

const TableNameWorkflowPipelineDependency = "workflow_pipeline_dependencies"

// WorkflowPipelineDependency is a directed edge between two WorkflowPipelines
// of the same workflow.
type WorkflowPipelineDependency struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	WorkflowID   uint64    `gorm:"column:workflow_id;not null;index" json:"-"`
	FromID       uint64    `gorm:"column:from_workflow_pipeline_id;not null;index" json:"-"`
	FromUUID     string    `gorm:"column:from_workflow_pipeline_uuid;not null;size:36" json:"from_workflow_pipeline_uuid"`
	ToID         uint64    `gorm:"column:to_workflow_pipeline_id;not null;index" json:"-"`
	ToUUID       string    `gorm:"column:to_workflow_pipeline_uuid;not null;size:36" json:"to_workflow_pipeline_uuid"`
	IsDeleted    bool      `gorm:"column:is_deleted;not null;default:false" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName WorkflowPipelineDependency's table name
func (*WorkflowPipelineDependency) TableName() string {
	return TableNameWorkflowPipelineDependency
}
