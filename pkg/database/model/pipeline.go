// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package model

import "time"

const TableNamePipeline = "pipelines"

// Pipeline is a template describing how to run a containerised job.
type Pipeline struct {
	ID                uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UUID              string    `gorm:"column:uuid;uniqueIndex;not null;size:36" json:"uuid"`
	Name              string    `gorm:"column:name;not null;size:255" json:"name"`
	Description       string    `gorm:"column:description;size:2048" json:"description"`
	DockerImageURL    string    `gorm:"column:docker_image_url;size:512" json:"docker_image_url,omitempty"`
	RepositorySSHURL  string    `gorm:"column:repository_ssh_url;size:512" json:"repository_ssh_url,omitempty"`
	RepositoryBranch  string    `gorm:"column:repository_branch;size:255" json:"repository_branch,omitempty"`
	IsDeleted         bool      `gorm:"column:is_deleted;not null;default:false" json:"-"`
	CreatedAt         time.Time `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

// TableName Pipeline's table name
func (*Pipeline) TableName() string {
	return TableNamePipeline
}
