// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Command primus-workflows boots the core runtime: config, logger, database
// connection, object store, executor dispatch client, and the scheduler
// wired as the pipeline-run service's state observer. There is no HTTP/API
// surface here; that layer is an explicit out-of-core-scope collaborator.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AMD-AGI/primus-workflows/pkg/artifact"
	"github.com/AMD-AGI/primus-workflows/pkg/config"
	"github.com/AMD-AGI/primus-workflows/pkg/database"
	"github.com/AMD-AGI/primus-workflows/pkg/executor"
	"github.com/AMD-AGI/primus-workflows/pkg/logger/log"
	"github.com/AMD-AGI/primus-workflows/pkg/pipelinerun"
	"github.com/AMD-AGI/primus-workflows/pkg/scheduler"
	"github.com/AMD-AGI/primus-workflows/pkg/workflowcomposition"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.Init(cfg.Log.Level, cfg.Log.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := database.Connect(cfg.Database.DSN); err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	store, err := artifact.NewS3Store(ctx, cfg.S3)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise object store")
	}

	dispatcher := executor.NewHTTPDispatcher(cfg.Executor.BaseURL, cfg.Executor.CallbackTimeout())

	workflows := database.NewWorkflowFacade()
	pipelines := database.NewPipelineFacade()
	nodes := database.NewWorkflowPipelineFacade()
	dependencies := database.NewWorkflowPipelineDependencyFacade()
	pipelineRuns := database.NewPipelineRunFacade()
	workflowRuns := database.NewWorkflowRunFacade()
	workflowPipelineRuns := database.NewWorkflowPipelineRunFacade()

	_ = workflowcomposition.NewService(workflows, pipelines, nodes, dependencies)

	runService := pipelinerun.NewService(pipelines, pipelineRuns, nodes, store, dispatcher)
	sched := scheduler.New(workflows, workflowRuns, workflowPipelineRuns, nodes, dependencies, pipelines, pipelineRuns, store, dispatcher)
	runService.AddObserver(sched)

	log.Infof("primus-workflows runtime started")
	<-ctx.Done()
	log.Infof("primus-workflows runtime shutting down")
}
