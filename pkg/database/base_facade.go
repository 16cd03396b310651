// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package database holds the GORM-backed persistence layer: one facade per
// aggregate, each embedding BaseFacade for its database handle. Unlike the
// teacher's multi-cluster BaseFacade, this runtime targets a single
// Postgres database (no multi-tenant cluster scoping), so BaseFacade here
// is just a thin holder of the *gorm.DB connection.
package database

import (
	"context"

	"github.com/AMD-AGI/primus-workflows/pkg/errors"
	"github.com/AMD-AGI/primus-workflows/pkg/logger/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var defaultDB *gorm.DB

// Connect opens the Postgres connection used by every facade in this
// package and stores it as the process-wide default.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.NewError().WithCode(errors.CodeInternal).
			WithMessage("failed to connect to database").WithError(err)
	}
	if err := registerErrorCallbacks(db); err != nil {
		return nil, errors.NewError().WithCode(errors.CodeInternal).
			WithMessage("failed to register database error callbacks").WithError(err)
	}
	defaultDB = db
	return db, nil
}

// SetDefaultDB installs an already-open connection (or a test double) as the
// process-wide default, bypassing Connect, e.g. to wire sqlite or a mock in
// place of Postgres.
func SetDefaultDB(db *gorm.DB) {
	defaultDB = db
}

// BaseFacade is embedded by every per-entity facade, giving it DB access.
type BaseFacade struct{}

// getDB returns the process default connection, bound to ctx.
func (f *BaseFacade) getDB(ctx context.Context) *gorm.DB {
	if defaultDB == nil {
		log.Errorf("getDB: no database connection configured")
		return nil
	}
	return defaultDB.WithContext(ctx)
}
