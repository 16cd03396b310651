// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package metrics exposes Prometheus instrumentation for the workflow
// runtime, grounded on the teacher's pkg/task/metrics.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRunsStartedTotal counts pipeline runs dispatched to the
	// executor, labelled by pipeline UUID.
	PipelineRunsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "primus_workflows",
			Subsystem: "pipeline_run",
			Name:      "started_total",
			Help:      "Total number of pipeline runs dispatched to the executor",
		},
		[]string{"pipeline_uuid"},
	)

	// PipelineRunStateTransitionsTotal counts state transitions applied to
	// pipeline runs, labelled by the resulting state.
	PipelineRunStateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "primus_workflows",
			Subsystem: "pipeline_run",
			Name:      "state_transitions_total",
			Help:      "Total number of pipeline run state transitions, by resulting state",
		},
		[]string{"state"},
	)

	// WorkflowRunsActive is the current number of non-terminal workflow runs.
	WorkflowRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "primus_workflows",
			Subsystem: "workflow_run",
			Name:      "active",
			Help:      "Number of workflow runs currently not in a terminal state",
		},
	)

	// WorkflowRunStateTransitionsTotal counts state transitions applied to
	// workflow runs, labelled by the resulting state.
	WorkflowRunStateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "primus_workflows",
			Subsystem: "workflow_run",
			Name:      "state_transitions_total",
			Help:      "Total number of workflow run state transitions, by resulting state",
		},
		[]string{"state"},
	)

	// ArtifactCopiesTotal counts artifact-to-input propagations across DAG
	// edges, labelled by outcome ("copied" or "deduped").
	ArtifactCopiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "primus_workflows",
			Subsystem: "artifact",
			Name:      "copies_total",
			Help:      "Total number of artifact propagations across workflow edges",
		},
		[]string{"outcome"},
	)

	// ExecutorDispatchDuration measures the latency of the outbound
	// executor dispatch call.
	ExecutorDispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "primus_workflows",
			Subsystem: "executor",
			Name:      "dispatch_duration_seconds",
			Help:      "Latency of the outbound executor dispatch call",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)
)
