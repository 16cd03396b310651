// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import "time"

const TableNamePipelineRun = "pipeline_runs"

// PipelineRun is a single execution of a Pipeline.
type PipelineRun struct {
	ID          uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UUID        string     `gorm:"column:uuid;uniqueIndex;not null;size:36" json:"uuid"`
	PipelineID  uint64     `gorm:"column:pipeline_id;not null;index" json:"-"`
	PipelineUUID string    `gorm:"column:pipeline_uuid;not null;size:36" json:"pipeline_uuid"`
	Sequence    int        `gorm:"column:sequence;not null" json:"sequence"`
	WorkerIP    string     `gorm:"column:worker_ip;size:64" json:"worker_ip,omitempty"`
	CallbackURL string     `gorm:"column:callback_url;size:512" json:"callback_url,omitempty"`
	Stdout      string     `gorm:"column:stdout;type:text" json:"stdout,omitempty"`
	Stderr      string     `gorm:"column:stderr;type:text" json:"stderr,omitempty"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName PipelineRun's table name
func (*PipelineRun) TableName() string {
	return TableNamePipelineRun
}

const TableNamePipelineRunInput = "pipeline_run_inputs"

// PipelineRunInput is a {filename, url} pair attached to a PipelineRun.
type PipelineRunInput struct {
	ID                uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	PipelineRunID     uint64    `gorm:"column:pipeline_run_id;not null;index" json:"-"`
	Filename          string    `gorm:"column:filename;not null;size:255" json:"filename"`
	URL               string    `gorm:"column:url;not null;size:2048" json:"url"`
	SourceArtifactUUID string   `gorm:"column:source_artifact_uuid;size:36;index" json:"source_artifact_uuid,omitempty"`
	CreatedAt         time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName PipelineRunInput's table name
func (*PipelineRunInput) TableName() string {
	return TableNamePipelineRunInput
}

const TableNamePipelineRunArtifact = "pipeline_run_artifacts"

// PipelineRunArtifact is a file produced by a PipelineRun.
type PipelineRunArtifact struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UUID          string    `gorm:"column:uuid;uniqueIndex;not null;size:36" json:"uuid"`
	PipelineRunID uint64    `gorm:"column:pipeline_run_id;not null;index" json:"-"`
	Name          string    `gorm:"column:name;not null;size:255" json:"name"`
	ObjectKey     string    `gorm:"column:object_key;not null;size:1024" json:"object_key"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName PipelineRunArtifact's table name
func (*PipelineRunArtifact) TableName() string {
	return TableNamePipelineRunArtifact
}

const TableNamePipelineRunState = "pipeline_run_states"

// PipelineRunState is one append-only state-log entry of a PipelineRun. The
// current state of a run is the entry with the greatest CreatedAt.
type PipelineRunState struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	PipelineRunID uint64    `gorm:"column:pipeline_run_id;not null;index" json:"-"`
	Code          int       `gorm:"column:code;not null" json:"code"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
}

// TableName PipelineRunState's table name
func (*PipelineRunState) TableName() string {
	return TableNamePipelineRunState
}
