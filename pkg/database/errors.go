// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	stderrors "errors"

	"github.com/AMD-AGI/primus-workflows/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// registerErrorCallbacks installs a single GORM callback on every verb so a
// driver-level failure becomes this package's own *errors.Error exactly
// once, centrally, instead of each facade method re-deriving it. Grounded on
// the teacher's pkg/sql/callbacks/error.go CreateErrorSolveCallback, trimmed
// to this runtime's single error code (no rest-vs-internal distinction) and
// without the teacher's companion tracing callback: there is no span
// exporter for it to feed here, so that half of the teacher's pkg/sql/opts.go
// is left out rather than adapted (see DESIGN.md).
//
// gorm.ErrRecordNotFound passes through unwrapped: facade Get methods match
// it directly with errors.Is(err, gorm.ErrRecordNotFound) to return (nil,
// nil), and *errors.Error.Unwrap keeps that match working even once a
// non-not-found cause has been wrapped below it by an earlier callback.
func registerErrorCallbacks(db *gorm.DB) error {
	translate := func(db *gorm.DB) {
		if db.Error == nil || stderrors.Is(db.Error, gorm.ErrRecordNotFound) {
			return
		}
		if _, already := db.Error.(*errors.Error); already {
			return
		}

		message := db.Error.Error()
		var pgErr *pgconn.PgError
		if stderrors.As(db.Error, &pgErr) {
			message = pgErr.Message
		}
		tableName := "unknown"
		if db.Statement != nil && db.Statement.Table != "" {
			tableName = db.Statement.Table
		}
		db.Error = errors.NewError().WithCode(errors.CodeInternal).
			WithError(db.Error).WithMessagef("%s: %s", tableName, message)
	}

	if err := db.Callback().Create().Register("primus:translate_error", translate); err != nil {
		return err
	}
	if err := db.Callback().Query().Register("primus:translate_error", translate); err != nil {
		return err
	}
	if err := db.Callback().Update().Register("primus:translate_error", translate); err != nil {
		return err
	}
	if err := db.Callback().Delete().Register("primus:translate_error", translate); err != nil {
		return err
	}
	return nil
}
