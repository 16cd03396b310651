// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package scheduler implements the Workflow Run Scheduler (§4.5): it walks
// a workflow's DAG as pipeline runs complete, starting successors once every
// predecessor has finished and aggregating pipeline-run state into a single
// workflow-run state. Reaction-driven, not poll-driven: there is no scan
// loop, every reaction fires off the pipeline run service's state-change
// callback, grounded on the teacher's pkg/task/scheduler.go structure
// (a registry of in-flight dispatches, a facade-backed persistence layer)
// adapted from poll-based task claiming to event-driven DAG walking.
package scheduler

import (
	"context"
	"sync"

	"github.com/AMD-AGI/primus-workflows/pkg/artifact"
	"github.com/AMD-AGI/primus-workflows/pkg/dag"
	"github.com/AMD-AGI/primus-workflows/pkg/database"
	"github.com/AMD-AGI/primus-workflows/pkg/database/model"
	"github.com/AMD-AGI/primus-workflows/pkg/errors"
	"github.com/AMD-AGI/primus-workflows/pkg/executor"
	"github.com/AMD-AGI/primus-workflows/pkg/logger/log"
	"github.com/AMD-AGI/primus-workflows/pkg/metrics"
	"github.com/AMD-AGI/primus-workflows/pkg/statemachine"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scheduler implements the Workflow Run Scheduler.
type Scheduler struct {
	workflows            database.WorkflowFacadeInterface
	workflowRuns         database.WorkflowRunFacadeInterface
	workflowPipelineRuns database.WorkflowPipelineRunFacadeInterface
	nodes                database.WorkflowPipelineFacadeInterface
	dependencies         database.WorkflowPipelineDependencyFacadeInterface
	pipelines            database.PipelineFacadeInterface
	pipelineRuns         database.PipelineRunFacadeInterface
	store                artifact.Store
	dispatcher           executor.Dispatcher

	// dispatching tracks runs currently being handed off to the executor,
	// exposed for observability the way TaskScheduler.runningTasks is in
	// the teacher's pkg/task/scheduler.go.
	dispatchingMu sync.RWMutex
	dispatching   map[string]bool
}

// New builds a Scheduler.
func New(
	workflows database.WorkflowFacadeInterface,
	workflowRuns database.WorkflowRunFacadeInterface,
	workflowPipelineRuns database.WorkflowPipelineRunFacadeInterface,
	nodes database.WorkflowPipelineFacadeInterface,
	dependencies database.WorkflowPipelineDependencyFacadeInterface,
	pipelines database.PipelineFacadeInterface,
	pipelineRuns database.PipelineRunFacadeInterface,
	store artifact.Store,
	dispatcher executor.Dispatcher,
) *Scheduler {
	return &Scheduler{
		workflows:            workflows,
		workflowRuns:         workflowRuns,
		workflowPipelineRuns: workflowPipelineRuns,
		nodes:                nodes,
		dependencies:         dependencies,
		pipelines:            pipelines,
		pipelineRuns:         pipelineRuns,
		store:                store,
		dispatcher:           dispatcher,
		dispatching:          make(map[string]bool),
	}
}

// DispatchingCount reports how many runs currently have an in-flight
// executor dispatch outstanding, for observability.
func (s *Scheduler) DispatchingCount() int {
	s.dispatchingMu.RLock()
	defer s.dispatchingMu.RUnlock()
	return len(s.dispatching)
}

func (s *Scheduler) markDispatching(runUUID string, on bool) {
	s.dispatchingMu.Lock()
	defer s.dispatchingMu.Unlock()
	if on {
		s.dispatching[runUUID] = true
	} else {
		delete(s.dispatching, runUUID)
	}
}

// CreateWorkflowRun implements §4.5.1: it loads the workflow's live graph,
// revalidates the DAG invariant, creates a WorkflowRun with one QUEUED
// PipelineRun per node, and starts every root.
func (s *Scheduler) CreateWorkflowRun(ctx context.Context, workflowUUID string, rootInputs []executor.Input) (*model.WorkflowRun, error) {
	workflow, err := s.workflows.Get(ctx, workflowUUID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if workflow == nil {
		return nil, errors.NotFoundf("workflow %s not found", workflowUUID)
	}

	nodes, err := s.nodes.ListLiveByWorkflow(ctx, workflow.ID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	deps, err := s.dependencies.ListLiveByWorkflow(ctx, workflow.ID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if len(nodes) == 0 {
		return nil, errors.Invalid("workflow has no runnable roots")
	}

	nodeIDs := make([]string, 0, len(nodes))
	nodeByUUID := make(map[string]*model.WorkflowPipeline, len(nodes))
	for i := range nodes {
		nodeIDs = append(nodeIDs, nodes[i].UUID)
		nodeByUUID[nodes[i].UUID] = &nodes[i]
	}
	edges := make([]dag.Edge, 0, len(deps))
	for _, d := range deps {
		edges = append(edges, dag.Edge{From: d.FromUUID, To: d.ToUUID})
	}
	graph := dag.NewGraph(nodeIDs, edges)
	if err := graph.Validate(nil); err != nil {
		return nil, err
	}

	roots := graph.Roots()
	if len(roots) == 0 {
		return nil, errors.Invalid("workflow has no runnable roots")
	}

	run := &model.WorkflowRun{UUID: uuid.NewString(), WorkflowID: workflow.ID, WorkflowUUID: workflow.UUID}
	if err := s.workflowRuns.Create(ctx, run); err != nil {
		return nil, errors.Internal(err)
	}
	if err := s.workflowRuns.AppendState(ctx, run.ID, int(statemachine.NotStarted)); err != nil {
		return nil, errors.Internal(err)
	}
	metrics.WorkflowRunsActive.Inc()
	metrics.WorkflowRunStateTransitionsTotal.WithLabelValues(statemachine.NotStarted.String()).Inc()

	rootSet := make(map[string]bool, len(roots))
	for _, r := range roots {
		rootSet[r] = true
	}

	pipelineRunByNode := make(map[string]*model.PipelineRun, len(nodes))
	for _, nodeUUID := range nodeIDs {
		node := nodeByUUID[nodeUUID]
		pipeline, err := s.pipelines.Get(ctx, node.PipelineUUID)
		if err != nil {
			return nil, errors.Internal(err)
		}
		if pipeline == nil {
			return nil, errors.NotFoundf("pipeline %s not found", node.PipelineUUID)
		}
		count, err := s.pipelineRuns.CountByPipelineID(ctx, pipeline.ID)
		if err != nil {
			return nil, errors.Internal(err)
		}
		pr := &model.PipelineRun{
			UUID:         uuid.NewString(),
			PipelineID:   pipeline.ID,
			PipelineUUID: pipeline.UUID,
			Sequence:     int(count) + 1,
		}
		if err := s.pipelineRuns.Create(ctx, pr); err != nil {
			return nil, errors.Internal(err)
		}
		if err := s.pipelineRuns.AppendState(ctx, pr.ID, int(statemachine.Queued)); err != nil {
			return nil, errors.Internal(err)
		}
		if err := s.workflowPipelineRuns.Create(ctx, &model.WorkflowPipelineRun{
			WorkflowRunID:        run.ID,
			WorkflowRunUUID:      run.UUID,
			WorkflowPipelineID:   node.ID,
			WorkflowPipelineUUID: node.UUID,
			PipelineRunID:        pr.ID,
			PipelineRunUUID:      pr.UUID,
		}); err != nil {
			return nil, errors.Internal(err)
		}
		pipelineRunByNode[nodeUUID] = pr

		if rootSet[nodeUUID] {
			for _, in := range rootInputs {
				if _, err := s.pipelineRuns.AddInputIfAbsent(ctx, &model.PipelineRunInput{
					PipelineRunID: pr.ID, Filename: in.Filename, URL: in.URL,
				}); err != nil {
					return nil, errors.Internal(err)
				}
			}
		}
	}

	for _, r := range roots {
		if err := s.startNode(ctx, nodeByUUID[r], pipelineRunByNode[r]); err != nil {
			return nil, err
		}
	}

	return run, nil
}

// startNode appends NOT_STARTED to node's pipeline run and dispatches it to
// the executor. Dispatch is a post-commit hook in spirit: the state append
// happens first and only once it has succeeded is the executor called.
func (s *Scheduler) startNode(ctx context.Context, node *model.WorkflowPipeline, pr *model.PipelineRun) error {
	if err := s.pipelineRuns.AppendState(ctx, pr.ID, int(statemachine.NotStarted)); err != nil {
		return errors.Internal(err)
	}
	metrics.PipelineRunStateTransitionsTotal.WithLabelValues(statemachine.NotStarted.String()).Inc()
	metrics.PipelineRunsStartedTotal.WithLabelValues(pr.PipelineUUID).Inc()

	if s.dispatcher == nil {
		return nil
	}
	pipeline, err := s.pipelines.Get(ctx, node.PipelineUUID)
	if err != nil {
		return errors.Internal(err)
	}
	inputs, err := s.loadInputs(ctx, pr.ID)
	if err != nil {
		return err
	}

	s.markDispatching(pr.UUID, true)
	defer s.markDispatching(pr.UUID, false)
	if err := s.dispatcher.Execute(ctx, executor.ExecuteRequest{
		PipelineUUID:     pr.PipelineUUID,
		RunUUID:          pr.UUID,
		Inputs:           inputs,
		DockerImageURL:   pipeline.DockerImageURL,
		RepositorySSHURL: pipeline.RepositorySSHURL,
		RepositoryBranch: pipeline.RepositoryBranch,
	}); err != nil {
		log.WithError(err).Errorf("executor dispatch failed for run %s", pr.UUID)
		return err
	}
	return nil
}

func (s *Scheduler) loadInputs(ctx context.Context, pipelineRunID uint64) ([]executor.Input, error) {
	rows, err := s.pipelineRuns.ListInputs(ctx, pipelineRunID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	inputs := make([]executor.Input, 0, len(rows))
	for _, r := range rows {
		inputs = append(inputs, executor.Input{Filename: r.Filename, URL: r.URL})
	}
	return inputs, nil
}

// OnPipelineRunStateChanged implements pipelinerun.StateObserver: it is the
// sole entry point into the reaction described by §4.5.2, executed under a
// single row-level lock on the owning workflow run (§4.5.3, §5).
func (s *Scheduler) OnPipelineRunStateChanged(ctx context.Context, pr *model.PipelineRun, from, to statemachine.State) {
	wpr, err := s.workflowPipelineRuns.GetByPipelineRun(ctx, pr.ID)
	if err != nil {
		log.WithError(err).Errorf("failed to look up workflow binding for pipeline run %s", pr.UUID)
		return
	}
	if wpr == nil {
		// Not part of any workflow run; nothing to react to.
		return
	}

	err = s.workflowRuns.WithLock(ctx, wpr.WorkflowRunUUID, func(tx *gorm.DB, wr *model.WorkflowRun) error {
		return s.react(ctx, wr, wpr, pr, to)
	})
	if err != nil {
		log.WithError(err).Errorf("workflow run reaction failed for run %s", wpr.WorkflowRunUUID)
	}
}

// react implements the case analysis of §4.5.2 for the pipeline run's new
// state `to`, all within the caller's workflow_run row lock.
func (s *Scheduler) react(ctx context.Context, wr *model.WorkflowRun, wpr *model.WorkflowPipelineRun, pr *model.PipelineRun, to statemachine.State) error {
	switch to {
	case statemachine.Queued:
		// QUEUED is only ever the initial state; observing it as a
		// transition target is a caller bug.
		return errors.Invalid("QUEUED is not a legal transition target")

	case statemachine.NotStarted, statemachine.Running:
		current, err := s.workflowRuns.CurrentState(ctx, wr.ID)
		if err != nil {
			return errors.Internal(err)
		}
		if current != nil && statemachine.State(current.Code) == statemachine.NotStarted {
			return s.transitionWorkflowRun(ctx, wr, statemachine.Running)
		}
		return nil

	case statemachine.Failed:
		if err := s.cancelSiblings(ctx, wr, wpr); err != nil {
			return err
		}
		return s.transitionWorkflowRun(ctx, wr, statemachine.Cancelled)

	case statemachine.Cancelled:
		if err := s.propagateCancellation(ctx, wr, wpr); err != nil {
			return err
		}
		return s.applyAggregateRuleIfTerminal(ctx, wr)

	case statemachine.Completed:
		if err := s.advanceSuccessors(ctx, wr, wpr, pr); err != nil {
			return err
		}
		return s.applyAggregateRuleIfTerminal(ctx, wr)
	}
	return nil
}

// cancelSiblings moves every not-yet-terminal pipeline run of wr, other than
// pr itself, to CANCELLED.
func (s *Scheduler) cancelSiblings(ctx context.Context, wr *model.WorkflowRun, failed *model.WorkflowPipelineRun) error {
	bindings, err := s.workflowPipelineRuns.ListByWorkflowRun(ctx, wr.ID)
	if err != nil {
		return errors.Internal(err)
	}
	for _, b := range bindings {
		if b.PipelineRunID == failed.PipelineRunID {
			continue
		}
		if err := s.cancelIfNonTerminal(ctx, b.PipelineRunID); err != nil {
			return err
		}
	}
	return nil
}

// propagateCancellation cancels every transitively reachable descendant of
// wpr's node that is still QUEUED.
func (s *Scheduler) propagateCancellation(ctx context.Context, wr *model.WorkflowRun, wpr *model.WorkflowPipelineRun) error {
	graph, err := s.loadWorkflowGraph(ctx, wr.WorkflowID)
	if err != nil {
		return err
	}
	for _, descUUID := range graph.ReachableFrom(wpr.WorkflowPipelineUUID) {
		descNode, err := s.nodes.Get(ctx, descUUID)
		if err != nil {
			return errors.Internal(err)
		}
		if descNode == nil {
			continue
		}
		descWPR, err := s.workflowPipelineRuns.GetByWorkflowPipeline(ctx, wr.ID, descNode.ID)
		if err != nil {
			return errors.Internal(err)
		}
		if descWPR == nil {
			continue
		}
		if err := s.cancelIfQueued(ctx, descWPR.PipelineRunID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) cancelIfNonTerminal(ctx context.Context, pipelineRunID uint64) error {
	current, err := s.pipelineRuns.CurrentState(ctx, pipelineRunID)
	if err != nil {
		return errors.Internal(err)
	}
	state := statemachine.Queued
	if current != nil {
		state = statemachine.State(current.Code)
	}
	if state.IsTerminal() {
		return nil
	}
	return s.appendPipelineRunState(ctx, pipelineRunID, statemachine.Cancelled)
}

func (s *Scheduler) cancelIfQueued(ctx context.Context, pipelineRunID uint64) error {
	current, err := s.pipelineRuns.CurrentState(ctx, pipelineRunID)
	if err != nil {
		return errors.Internal(err)
	}
	if current == nil || statemachine.State(current.Code) != statemachine.Queued {
		return nil
	}
	return s.appendPipelineRunState(ctx, pipelineRunID, statemachine.Cancelled)
}

func (s *Scheduler) appendPipelineRunState(ctx context.Context, pipelineRunID uint64, to statemachine.State) error {
	if err := s.pipelineRuns.AppendState(ctx, pipelineRunID, int(to)); err != nil {
		return errors.Internal(err)
	}
	metrics.PipelineRunStateTransitionsTotal.WithLabelValues(to.String()).Inc()
	return nil
}

// advanceSuccessors copies pr's artifacts to every successor still QUEUED
// and starts any successor whose predecessors have all COMPLETED.
func (s *Scheduler) advanceSuccessors(ctx context.Context, wr *model.WorkflowRun, wpr *model.WorkflowPipelineRun, pr *model.PipelineRun) error {
	graph, err := s.loadWorkflowGraph(ctx, wr.WorkflowID)
	if err != nil {
		return err
	}

	artifacts, err := s.pipelineRuns.ListArtifacts(ctx, pr.ID)
	if err != nil {
		return errors.Internal(err)
	}

	for _, succUUID := range graph.Successors(wpr.WorkflowPipelineUUID) {
		succNode, err := s.nodes.Get(ctx, succUUID)
		if err != nil {
			return errors.Internal(err)
		}
		if succNode == nil {
			continue
		}
		succWPR, err := s.workflowPipelineRuns.GetByWorkflowPipeline(ctx, wr.ID, succNode.ID)
		if err != nil {
			return errors.Internal(err)
		}
		if succWPR == nil {
			continue
		}
		succCurrent, err := s.pipelineRuns.CurrentState(ctx, succWPR.PipelineRunID)
		if err != nil {
			return errors.Internal(err)
		}
		if succCurrent == nil || statemachine.State(succCurrent.Code) != statemachine.Queued {
			continue
		}

		for i := range artifacts {
			if err := s.copyArtifactToRun(ctx, succWPR.PipelineRunID, &artifacts[i]); err != nil {
				return err
			}
		}

		allComplete, err := s.allPredecessorsCompleted(ctx, graph, wr, succUUID)
		if err != nil {
			return err
		}
		if allComplete {
			succPR, err := s.pipelineRuns.GetByID(ctx, succWPR.PipelineRunID)
			if err != nil || succPR == nil {
				return errors.Internal(err)
			}
			if err := s.startNode(ctx, succNode, succPR); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) copyArtifactToRun(ctx context.Context, destRunID uint64, a *model.PipelineRunArtifact) error {
	url, err := s.store.PresignedURL(ctx, a.ObjectKey)
	if err != nil {
		return err
	}
	inserted, err := s.pipelineRuns.AddInputIfAbsent(ctx, &model.PipelineRunInput{
		PipelineRunID:      destRunID,
		Filename:           a.Name,
		URL:                url,
		SourceArtifactUUID: a.UUID,
	})
	if err != nil {
		return errors.Internal(err)
	}
	outcome := "deduped"
	if inserted {
		outcome = "copied"
	}
	metrics.ArtifactCopiesTotal.WithLabelValues(outcome).Inc()
	return nil
}

func (s *Scheduler) allPredecessorsCompleted(ctx context.Context, graph *dag.Graph, wr *model.WorkflowRun, nodeUUID string) (bool, error) {
	for _, predUUID := range graph.Predecessors(nodeUUID) {
		predNode, err := s.nodes.Get(ctx, predUUID)
		if err != nil {
			return false, errors.Internal(err)
		}
		if predNode == nil {
			continue
		}
		predWPR, err := s.workflowPipelineRuns.GetByWorkflowPipeline(ctx, wr.ID, predNode.ID)
		if err != nil {
			return false, errors.Internal(err)
		}
		if predWPR == nil {
			return false, nil
		}
		current, err := s.pipelineRuns.CurrentState(ctx, predWPR.PipelineRunID)
		if err != nil {
			return false, errors.Internal(err)
		}
		if current == nil || statemachine.State(current.Code) != statemachine.Completed {
			return false, nil
		}
	}
	return true, nil
}

// applyAggregateRuleIfTerminal sets wr's state once every pipeline run it
// owns has reached a terminal state, per §4.5.2's aggregate terminal rule.
func (s *Scheduler) applyAggregateRuleIfTerminal(ctx context.Context, wr *model.WorkflowRun) error {
	bindings, err := s.workflowPipelineRuns.ListByWorkflowRun(ctx, wr.ID)
	if err != nil {
		return errors.Internal(err)
	}

	allCompleted := true
	for _, b := range bindings {
		current, err := s.pipelineRuns.CurrentState(ctx, b.PipelineRunID)
		if err != nil {
			return errors.Internal(err)
		}
		if current == nil {
			return nil
		}
		state := statemachine.State(current.Code)
		if !state.IsTerminal() {
			return nil // at least one run is still in flight
		}
		if state != statemachine.Completed {
			allCompleted = false
		}
	}

	target := statemachine.Cancelled
	if allCompleted {
		target = statemachine.Completed
	}
	return s.transitionWorkflowRun(ctx, wr, target)
}

func (s *Scheduler) transitionWorkflowRun(ctx context.Context, wr *model.WorkflowRun, to statemachine.State) error {
	current, err := s.workflowRuns.CurrentState(ctx, wr.ID)
	if err != nil {
		return errors.Internal(err)
	}
	from := statemachine.NotStarted
	if current != nil {
		from = statemachine.State(current.Code)
	}
	if err := statemachine.Validate(from, to); err != nil {
		return err
	}
	if statemachine.IsNoop(from, to) {
		return nil
	}
	if err := s.workflowRuns.AppendState(ctx, wr.ID, int(to)); err != nil {
		return errors.Internal(err)
	}
	metrics.WorkflowRunStateTransitionsTotal.WithLabelValues(to.String()).Inc()
	if to.IsTerminal() {
		metrics.WorkflowRunsActive.Dec()
	}
	return nil
}

func (s *Scheduler) loadWorkflowGraph(ctx context.Context, workflowID uint64) (*dag.Graph, error) {
	nodes, err := s.nodes.ListLiveByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	deps, err := s.dependencies.ListLiveByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.UUID)
	}
	edges := make([]dag.Edge, 0, len(deps))
	for _, d := range deps {
		edges = append(edges, dag.Edge{From: d.FromUUID, To: d.ToUUID})
	}
	return dag.NewGraph(ids, edges), nil
}
