// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AMD-AGI/primus-workflows/pkg/logger/log"
)

// BackoffPolicy controls how WithRetry spaces out its attempts.
type BackoffPolicy struct {
	MaxAttempts  int           // total attempts, including the first
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultBackoffPolicy is tuned for the brief connection hiccups a pooled
// Postgres connection sees under a rolling restart or failover, not for
// sustained outages.
var DefaultBackoffPolicy = BackoffPolicy{
	MaxAttempts:  4,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Multiplier:   2.0,
}

// transientPatterns are substrings of driver/connection errors worth
// retrying: a dropped connection or a hot standby briefly in recovery, never
// a query or constraint failure.
var transientPatterns = []string{
	"cannot execute INSERT in a read-only transaction",
	"cannot execute UPDATE in a read-only transaction",
	"cannot execute DELETE in a read-only transaction",
	"SQLSTATE 25006",
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// WithRetry runs fn under DefaultBackoffPolicy, retrying only the transient
// connection errors isTransient recognises. Used by facade reads with no
// side effects to duplicate on a retried attempt (pkg/database/pipeline_facade.go,
// pkg/database/workflow_facade.go); deliberately not used by WorkflowRunFacade.WithLock,
// since retrying that closure after a partial cascade would double-apply its
// side effects.
func WithRetry(ctx context.Context, fn func() error) error {
	return WithRetryPolicy(ctx, DefaultBackoffPolicy, fn)
}

// WithRetryPolicy runs fn under an explicit BackoffPolicy.
func WithRetryPolicy(ctx context.Context, policy BackoffPolicy, fn func() error) error {
	delay := policy.InitialDelay

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				log.WithField("attempts", attempt).Info("database operation succeeded after retry")
			}
			return nil
		}

		if !isTransient(err) {
			return err
		}
		if attempt == policy.MaxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		log.WithFields(log.Fields{"attempt": attempt, "max_attempts": policy.MaxAttempts, "delay": delay}).
			Warnf("transient database error, retrying: %v", err)

		select {
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * policy.Multiplier)
			if delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
		}
	}

	return fmt.Errorf("unreachable: MaxAttempts must be >= 1")
}
