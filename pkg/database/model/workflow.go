// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import "time"

const TableNameWorkflow = "workflows"

// Workflow is a named, described composition of pipelines.
type Workflow struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UUID        string    `gorm:"column:uuid;uniqueIndex;not null;size:36" json:"uuid"`
	Name        string    `gorm:"column:name;not null;size:255" json:"name"`
	Description string    `gorm:"column:description;size:2048" json:"description"`
	IsDeleted   bool      `gorm:"column:is_deleted;not null;default:false" json:"-"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName Workflow's table name
func (*Workflow) TableName() string {
	return TableNameWorkflow
}
