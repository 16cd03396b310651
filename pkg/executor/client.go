// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package executor is the outbound half of the executor contract (§6): a
// resty-based HTTP client that hands a pipeline run off to the external
// task queue. Grounded on the teacher's pkg/clientsets/node_exporter.go
// resty-client pattern.
package executor

import (
	"context"
	"time"

	"github.com/AMD-AGI/primus-workflows/pkg/errors"
	"github.com/AMD-AGI/primus-workflows/pkg/metrics"
	"github.com/go-resty/resty/v2"
)

// Input is one {filename, url} pair handed to the executor.
type Input struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// ExecuteRequest is the payload posted to the external task queue's
// execute(...) entry point.
type ExecuteRequest struct {
	PipelineUUID     string  `json:"pipeline_uuid"`
	RunUUID          string  `json:"run_uuid"`
	Inputs           []Input `json:"inputs"`
	DockerImageURL   string  `json:"image_url,omitempty"`
	RepositorySSHURL string  `json:"repo_url,omitempty"`
	RepositoryBranch string  `json:"branch,omitempty"`
}

// Dispatcher hands a pipeline run off to the external executor. Execute is
// fire-and-forget from the core's point of view (§5): it must only ever be
// called as a post-commit hook, never before the transaction that appended
// the run's NOT_STARTED state has committed.
type Dispatcher interface {
	Execute(ctx context.Context, req ExecuteRequest) error
}

// HTTPDispatcher implements Dispatcher over resty.
type HTTPDispatcher struct {
	client *resty.Client
}

// NewHTTPDispatcher builds a dispatcher posting to baseURL within timeout.
func NewHTTPDispatcher(baseURL string, timeout time.Duration) *HTTPDispatcher {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	return &HTTPDispatcher{client: client}
}

func (d *HTTPDispatcher) Execute(ctx context.Context, req ExecuteRequest) error {
	timer := startTimer()
	defer timer()

	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/execute")
	if err != nil {
		return errors.NewError().WithCode(errors.CodeInternal).
			WithMessagef("executor dispatch failed for run %s", req.RunUUID).WithError(err)
	}
	if resp.IsError() {
		return errors.NewError().WithCode(errors.CodeInternal).
			WithMessagef("executor returned %d for run %s", resp.StatusCode(), req.RunUUID)
	}
	return nil
}

func startTimer() func() {
	start := time.Now()
	return func() {
		metrics.ExecutorDispatchDuration.Observe(time.Since(start).Seconds())
	}
}
