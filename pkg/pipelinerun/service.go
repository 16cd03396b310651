// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package pipelinerun implements the Pipeline Run Service (§4.3): pipeline
// template CRUD, pipeline run lifecycle, and artifact upload/copy. Grounded
// on the teacher's service-over-facade layering (pkg/task/scheduler.go
// calling into facades rather than touching gorm.DB directly).
package pipelinerun

import (
	"context"
	"io"
	"time"

	"github.com/AMD-AGI/primus-workflows/pkg/artifact"
	"github.com/AMD-AGI/primus-workflows/pkg/database"
	"github.com/AMD-AGI/primus-workflows/pkg/database/model"
	"github.com/AMD-AGI/primus-workflows/pkg/errors"
	"github.com/AMD-AGI/primus-workflows/pkg/executor"
	"github.com/AMD-AGI/primus-workflows/pkg/logger/log"
	"github.com/AMD-AGI/primus-workflows/pkg/metrics"
	"github.com/AMD-AGI/primus-workflows/pkg/statemachine"
	"github.com/google/uuid"
)

// StateObserver is notified after a pipeline run's state has been durably
// appended, so the workflow run scheduler can react without this service
// importing it back (it owns pipeline runs; the scheduler owns the
// reaction, per §5's event-driven requirement).
type StateObserver interface {
	OnPipelineRunStateChanged(ctx context.Context, run *model.PipelineRun, from, to statemachine.State)
}

// Service implements the Pipeline Run Service.
type Service struct {
	pipelines    database.PipelineFacadeInterface
	runs         database.PipelineRunFacadeInterface
	workflowRefs database.WorkflowPipelineFacadeInterface
	store        artifact.Store
	dispatcher   executor.Dispatcher
	observers    []StateObserver
}

// NewService builds a pipelinerun.Service.
func NewService(
	pipelines database.PipelineFacadeInterface,
	runs database.PipelineRunFacadeInterface,
	workflowRefs database.WorkflowPipelineFacadeInterface,
	store artifact.Store,
	dispatcher executor.Dispatcher,
) *Service {
	return &Service{pipelines: pipelines, runs: runs, workflowRefs: workflowRefs, store: store, dispatcher: dispatcher}
}

// AddObserver registers a StateObserver. Not safe for concurrent use after
// start-up wiring.
func (s *Service) AddObserver(o StateObserver) {
	s.observers = append(s.observers, o)
}

// CreatePipeline registers a new pipeline template.
func (s *Service) CreatePipeline(ctx context.Context, name, description, dockerImageURL, repoSSHURL, repoBranch string) (*model.Pipeline, error) {
	if name == "" {
		return nil, errors.Invalid("pipeline name is required")
	}
	p := &model.Pipeline{
		UUID:             uuid.NewString(),
		Name:             name,
		Description:      description,
		DockerImageURL:   dockerImageURL,
		RepositorySSHURL: repoSSHURL,
		RepositoryBranch: repoBranch,
	}
	if err := s.pipelines.Create(ctx, p); err != nil {
		return nil, errors.Internal(err)
	}
	return p, nil
}

// UpdatePipeline overwrites every mutable attribute of a live pipeline.
func (s *Service) UpdatePipeline(ctx context.Context, pipelineUUID, name, description, dockerImageURL, repoSSHURL, repoBranch string) error {
	existing, err := s.pipelines.Get(ctx, pipelineUUID)
	if err != nil {
		return errors.Internal(err)
	}
	if existing == nil {
		return errors.NotFoundf("pipeline %s not found", pipelineUUID)
	}
	existing.Name = name
	existing.Description = description
	existing.DockerImageURL = dockerImageURL
	existing.RepositorySSHURL = repoSSHURL
	existing.RepositoryBranch = repoBranch
	if err := s.pipelines.Update(ctx, existing); err != nil {
		return errors.Internal(err)
	}
	return nil
}

// DeletePipeline soft-deletes a pipeline, rejecting the call if it is still
// referenced by a live WorkflowPipeline node (§4.3 Non-goals carve-out: a
// pipeline in use by a workflow cannot be deleted out from under it).
func (s *Service) DeletePipeline(ctx context.Context, pipelineUUID string) error {
	existing, err := s.pipelines.Get(ctx, pipelineUUID)
	if err != nil {
		return errors.Internal(err)
	}
	if existing == nil {
		return errors.NotFoundf("pipeline %s not found", pipelineUUID)
	}
	count, err := s.workflowRefs.CountLiveByPipelineID(ctx, existing.ID)
	if err != nil {
		return errors.Internal(err)
	}
	if count > 0 {
		return errors.InUse("pipeline is referenced by at least one live workflow pipeline")
	}
	if err := s.pipelines.SoftDelete(ctx, pipelineUUID); err != nil {
		return errors.Internal(err)
	}
	return nil
}

// CreatePipelineRun creates a new execution of a pipeline, numbering it with
// the next sequence for that pipeline and appending an initial QUEUED state.
// If autoStart is true the run is immediately advanced to NOT_STARTED and
// dispatched to the executor.
func (s *Service) CreatePipelineRun(ctx context.Context, pipelineUUID string, inputs []executor.Input, autoStart bool) (*model.PipelineRun, error) {
	pipeline, err := s.pipelines.Get(ctx, pipelineUUID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if pipeline == nil {
		return nil, errors.NotFoundf("pipeline %s not found", pipelineUUID)
	}

	count, err := s.runs.CountByPipelineID(ctx, pipeline.ID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	run := &model.PipelineRun{
		UUID:         uuid.NewString(),
		PipelineID:   pipeline.ID,
		PipelineUUID: pipeline.UUID,
		Sequence:     int(count) + 1,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, errors.Internal(err)
	}
	if err := s.runs.AppendState(ctx, run.ID, int(statemachine.Queued)); err != nil {
		return nil, errors.Internal(err)
	}
	metrics.PipelineRunStateTransitionsTotal.WithLabelValues(statemachine.Queued.String()).Inc()

	for _, in := range inputs {
		if _, err := s.runs.AddInputIfAbsent(ctx, &model.PipelineRunInput{
			PipelineRunID: run.ID,
			Filename:      in.Filename,
			URL:           in.URL,
		}); err != nil {
			return nil, errors.Internal(err)
		}
	}

	if autoStart {
		if err := s.Start(ctx, run, pipeline, inputs); err != nil {
			return run, err
		}
	}
	return run, nil
}

// Start transitions a QUEUED run to NOT_STARTED and dispatches it to the
// executor as a post-commit hook (§5: the executor must never be called
// before the NOT_STARTED state has committed).
func (s *Service) Start(ctx context.Context, run *model.PipelineRun, pipeline *model.Pipeline, inputs []executor.Input) error {
	if err := s.transition(ctx, run, statemachine.NotStarted); err != nil {
		return err
	}
	metrics.PipelineRunsStartedTotal.WithLabelValues(run.PipelineUUID).Inc()

	if s.dispatcher == nil {
		return nil
	}
	if err := s.dispatcher.Execute(ctx, executor.ExecuteRequest{
		PipelineUUID:     run.PipelineUUID,
		RunUUID:          run.UUID,
		Inputs:           inputs,
		DockerImageURL:   pipeline.DockerImageURL,
		RepositorySSHURL: pipeline.RepositorySSHURL,
		RepositoryBranch: pipeline.RepositoryBranch,
	}); err != nil {
		log.WithError(err).Errorf("executor dispatch failed for run %s", run.UUID)
		return err
	}
	return nil
}

// UpdatePipelineRunState enforces the shared legal-transition table, appends
// the new state (unless it is a same-state no-op), and notifies every
// registered observer so the workflow run scheduler can react.
func (s *Service) UpdatePipelineRunState(ctx context.Context, runUUID string, to statemachine.State) error {
	run, err := s.runs.Get(ctx, runUUID)
	if err != nil {
		return errors.Internal(err)
	}
	if run == nil {
		return errors.NotFoundf("pipeline run %s not found", runUUID)
	}
	return s.transition(ctx, run, to)
}

func (s *Service) transition(ctx context.Context, run *model.PipelineRun, to statemachine.State) error {
	current, err := s.currentState(ctx, run.ID)
	if err != nil {
		return err
	}

	if err := statemachine.Validate(current, to); err != nil {
		return err
	}
	if statemachine.IsNoop(current, to) {
		return nil
	}

	if err := s.runs.AppendState(ctx, run.ID, int(to)); err != nil {
		return errors.Internal(err)
	}
	metrics.PipelineRunStateTransitionsTotal.WithLabelValues(to.String()).Inc()

	now := time.Now()
	switch to {
	case statemachine.Running:
		_ = s.runs.MarkStarted(ctx, run.ID, now)
	case statemachine.Completed, statemachine.Failed, statemachine.Cancelled:
		_ = s.runs.MarkCompleted(ctx, run.ID, now)
	}

	for _, o := range s.observers {
		o.OnPipelineRunStateChanged(ctx, run, current, to)
	}
	return nil
}

func (s *Service) currentState(ctx context.Context, runID uint64) (statemachine.State, error) {
	row, err := s.runs.CurrentState(ctx, runID)
	if err != nil {
		return 0, errors.Internal(err)
	}
	if row == nil {
		return statemachine.Queued, nil
	}
	return statemachine.State(row.Code), nil
}

// UpdatePipelineRunOutput overwrites a run's captured stdout/stderr. Callers
// may invoke this any number of times; only the most recent write wins.
func (s *Service) UpdatePipelineRunOutput(ctx context.Context, runUUID, stdout, stderr string) error {
	run, err := s.runs.Get(ctx, runUUID)
	if err != nil {
		return errors.Internal(err)
	}
	if run == nil {
		return errors.NotFoundf("pipeline run %s not found", runUUID)
	}
	if err := s.runs.UpdateOutput(ctx, run.ID, stdout, stderr); err != nil {
		return errors.Internal(err)
	}
	return nil
}

// CreatePipelineRunArtifact sanitises filename, uploads body to the object
// store, and records the resulting PipelineRunArtifact.
func (s *Service) CreatePipelineRunArtifact(ctx context.Context, runUUID, filename string, body io.Reader, size int64) (*model.PipelineRunArtifact, error) {
	run, err := s.runs.Get(ctx, runUUID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if run == nil {
		return nil, errors.NotFoundf("pipeline run %s not found", runUUID)
	}

	clean := artifact.SanitizeFilename(filename)
	if clean == "" {
		return nil, errors.Invalidf("filename %q has no safe characters", filename)
	}

	artifactUUID := uuid.NewString()
	objectKey, err := s.store.Upload(ctx, run.PipelineUUID, run.UUID, artifactUUID, clean, body, size)
	if err != nil {
		return nil, err
	}

	rec := &model.PipelineRunArtifact{
		UUID:          artifactUUID,
		PipelineRunID: run.ID,
		Name:          clean,
		ObjectKey:     objectKey,
	}
	if err := s.runs.CreateArtifact(ctx, rec); err != nil {
		return nil, errors.Internal(err)
	}
	return rec, nil
}

// CopyPipelineRunArtifact mints a presigned URL for srcArtifactUUID and
// records it as an input of destRunUUID, deduping by source artifact UUID
// so the same upstream artifact is never copied twice onto the same
// downstream run (§9 Open Question resolution).
func (s *Service) CopyPipelineRunArtifact(ctx context.Context, destRunUUID string, srcArtifact *model.PipelineRunArtifact) (bool, error) {
	destRun, err := s.runs.Get(ctx, destRunUUID)
	if err != nil {
		return false, errors.Internal(err)
	}
	if destRun == nil {
		return false, errors.NotFoundf("pipeline run %s not found", destRunUUID)
	}

	url, err := s.store.PresignedURL(ctx, srcArtifact.ObjectKey)
	if err != nil {
		return false, err
	}

	inserted, err := s.runs.AddInputIfAbsent(ctx, &model.PipelineRunInput{
		PipelineRunID:      destRun.ID,
		Filename:           srcArtifact.Name,
		URL:                url,
		SourceArtifactUUID: srcArtifact.UUID,
	})
	if err != nil {
		return false, errors.Internal(err)
	}

	outcome := "deduped"
	if inserted {
		outcome = "copied"
	}
	metrics.ArtifactCopiesTotal.WithLabelValues(outcome).Inc()
	return inserted, nil
}

// ListArtifacts returns every artifact produced by runUUID.
func (s *Service) ListArtifacts(ctx context.Context, runUUID string) ([]model.PipelineRunArtifact, error) {
	run, err := s.runs.Get(ctx, runUUID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if run == nil {
		return nil, errors.NotFoundf("pipeline run %s not found", runUUID)
	}
	return s.runs.ListArtifacts(ctx, run.ID)
}
