// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/AMD-AGI/primus-workflows/pkg/database/model"
	"github.com/AMD-AGI/primus-workflows/pkg/executor"
	"github.com/AMD-AGI/primus-workflows/pkg/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ============ Mock facades ============

type mockWorkflowFacade struct{ mock.Mock }

func (m *mockWorkflowFacade) Create(ctx context.Context, w *model.Workflow) error {
	return m.Called(ctx, w).Error(0)
}
func (m *mockWorkflowFacade) Get(ctx context.Context, uuid string) (*model.Workflow, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Workflow), args.Error(1)
}
func (m *mockWorkflowFacade) Update(ctx context.Context, w *model.Workflow) error {
	return m.Called(ctx, w).Error(0)
}
func (m *mockWorkflowFacade) SoftDelete(ctx context.Context, uuid string) error {
	return m.Called(ctx, uuid).Error(0)
}

type mockWorkflowRunFacade struct{ mock.Mock }

func (m *mockWorkflowRunFacade) Create(ctx context.Context, r *model.WorkflowRun) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockWorkflowRunFacade) Get(ctx context.Context, uuid string) (*model.WorkflowRun, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WorkflowRun), args.Error(1)
}
func (m *mockWorkflowRunFacade) AppendState(ctx context.Context, runID uint64, code int) error {
	return m.Called(ctx, runID, code).Error(0)
}
func (m *mockWorkflowRunFacade) CurrentState(ctx context.Context, runID uint64) (*model.WorkflowRunState, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WorkflowRunState), args.Error(1)
}
func (m *mockWorkflowRunFacade) WithLock(ctx context.Context, uuid string, fn func(tx *gorm.DB, run *model.WorkflowRun) error) error {
	args := m.Called(ctx, uuid)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(nil, args.Get(1).(*model.WorkflowRun))
}

type mockWorkflowPipelineRunFacade struct{ mock.Mock }

func (m *mockWorkflowPipelineRunFacade) Create(ctx context.Context, wpr *model.WorkflowPipelineRun) error {
	return m.Called(ctx, wpr).Error(0)
}
func (m *mockWorkflowPipelineRunFacade) ListByWorkflowRun(ctx context.Context, workflowRunID uint64) ([]model.WorkflowPipelineRun, error) {
	args := m.Called(ctx, workflowRunID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WorkflowPipelineRun), args.Error(1)
}
func (m *mockWorkflowPipelineRunFacade) GetByWorkflowPipeline(ctx context.Context, workflowRunID, workflowPipelineID uint64) (*model.WorkflowPipelineRun, error) {
	args := m.Called(ctx, workflowRunID, workflowPipelineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WorkflowPipelineRun), args.Error(1)
}
func (m *mockWorkflowPipelineRunFacade) GetByPipelineRun(ctx context.Context, pipelineRunID uint64) (*model.WorkflowPipelineRun, error) {
	args := m.Called(ctx, pipelineRunID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WorkflowPipelineRun), args.Error(1)
}

type mockNodeFacade struct{ mock.Mock }

func (m *mockNodeFacade) Create(ctx context.Context, wp *model.WorkflowPipeline) error {
	return m.Called(ctx, wp).Error(0)
}
func (m *mockNodeFacade) Get(ctx context.Context, uuid string) (*model.WorkflowPipeline, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WorkflowPipeline), args.Error(1)
}
func (m *mockNodeFacade) ListLiveByWorkflow(ctx context.Context, workflowID uint64) ([]model.WorkflowPipeline, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WorkflowPipeline), args.Error(1)
}
func (m *mockNodeFacade) UpdatePipelineRef(ctx context.Context, uuid string, pipelineID uint64, pipelineUUID string) error {
	return m.Called(ctx, uuid, pipelineID, pipelineUUID).Error(0)
}
func (m *mockNodeFacade) SoftDelete(ctx context.Context, uuid string) error {
	return m.Called(ctx, uuid).Error(0)
}
func (m *mockNodeFacade) SoftDeleteByWorkflow(ctx context.Context, workflowID uint64) error {
	return m.Called(ctx, workflowID).Error(0)
}
func (m *mockNodeFacade) CountLiveByPipelineID(ctx context.Context, pipelineID uint64) (int64, error) {
	args := m.Called(ctx, pipelineID)
	return args.Get(0).(int64), args.Error(1)
}

type mockDependencyFacade struct{ mock.Mock }

func (m *mockDependencyFacade) Create(ctx context.Context, dep *model.WorkflowPipelineDependency) error {
	return m.Called(ctx, dep).Error(0)
}
func (m *mockDependencyFacade) ListLiveByWorkflow(ctx context.Context, workflowID uint64) ([]model.WorkflowPipelineDependency, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WorkflowPipelineDependency), args.Error(1)
}
func (m *mockDependencyFacade) Exists(ctx context.Context, workflowID uint64, fromUUID, toUUID string) (bool, error) {
	args := m.Called(ctx, workflowID, fromUUID, toUUID)
	return args.Bool(0), args.Error(1)
}
func (m *mockDependencyFacade) SoftDelete(ctx context.Context, id uint64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockDependencyFacade) SoftDeleteIncidentTo(ctx context.Context, workflowPipelineID uint64) error {
	return m.Called(ctx, workflowPipelineID).Error(0)
}

type mockPipelineFacade struct{ mock.Mock }

func (m *mockPipelineFacade) Create(ctx context.Context, p *model.Pipeline) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPipelineFacade) Get(ctx context.Context, uuid string) (*model.Pipeline, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Pipeline), args.Error(1)
}
func (m *mockPipelineFacade) Update(ctx context.Context, p *model.Pipeline) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPipelineFacade) SoftDelete(ctx context.Context, uuid string) error {
	return m.Called(ctx, uuid).Error(0)
}

type mockPipelineRunFacade struct{ mock.Mock }

func (m *mockPipelineRunFacade) Create(ctx context.Context, r *model.PipelineRun) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockPipelineRunFacade) Get(ctx context.Context, uuid string) (*model.PipelineRun, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PipelineRun), args.Error(1)
}
func (m *mockPipelineRunFacade) GetByID(ctx context.Context, id uint64) (*model.PipelineRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PipelineRun), args.Error(1)
}
func (m *mockPipelineRunFacade) CountByPipelineID(ctx context.Context, pipelineID uint64) (int64, error) {
	args := m.Called(ctx, pipelineID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockPipelineRunFacade) AppendState(ctx context.Context, runID uint64, code int) error {
	return m.Called(ctx, runID, code).Error(0)
}
func (m *mockPipelineRunFacade) CurrentState(ctx context.Context, runID uint64) (*model.PipelineRunState, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PipelineRunState), args.Error(1)
}
func (m *mockPipelineRunFacade) UpdateOutput(ctx context.Context, runID uint64, stdout, stderr string) error {
	return m.Called(ctx, runID, stdout, stderr).Error(0)
}
func (m *mockPipelineRunFacade) MarkStarted(ctx context.Context, runID uint64, at time.Time) error {
	return nil
}
func (m *mockPipelineRunFacade) MarkCompleted(ctx context.Context, runID uint64, at time.Time) error {
	return nil
}
func (m *mockPipelineRunFacade) CreateArtifact(ctx context.Context, a *model.PipelineRunArtifact) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockPipelineRunFacade) ListArtifacts(ctx context.Context, runID uint64) ([]model.PipelineRunArtifact, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PipelineRunArtifact), args.Error(1)
}
func (m *mockPipelineRunFacade) AddInputIfAbsent(ctx context.Context, input *model.PipelineRunInput) (bool, error) {
	args := m.Called(ctx, input)
	return args.Bool(0), args.Error(1)
}
func (m *mockPipelineRunFacade) ListInputs(ctx context.Context, runID uint64) ([]model.PipelineRunInput, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PipelineRunInput), args.Error(1)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Upload(ctx context.Context, pipelineUUID, runUUID, artifactUUID, filename string, body io.Reader, size int64) (string, error) {
	args := m.Called(ctx, pipelineUUID, runUUID, artifactUUID, filename, size)
	return args.String(0), args.Error(1)
}
func (m *mockStore) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	args := m.Called(ctx, objectKey)
	return args.String(0), args.Error(1)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Execute(ctx context.Context, req executor.ExecuteRequest) error {
	return m.Called(ctx, req).Error(0)
}

// ============ Tests ============

func TestCreateWorkflowRun_RejectsEmptyWorkflow(t *testing.T) {
	workflows := new(mockWorkflowFacade)
	nodes := new(mockNodeFacade)
	deps := new(mockDependencyFacade)
	sched := New(workflows, nil, nil, nodes, deps, nil, nil, nil, nil)

	workflow := &model.Workflow{ID: 1, UUID: "wf-1"}
	workflows.On("Get", mock.Anything, "wf-1").Return(workflow, nil)
	nodes.On("ListLiveByWorkflow", mock.Anything, uint64(1)).Return([]model.WorkflowPipeline{}, nil)
	deps.On("ListLiveByWorkflow", mock.Anything, uint64(1)).Return([]model.WorkflowPipelineDependency{}, nil)

	_, err := sched.CreateWorkflowRun(context.Background(), "wf-1", nil)
	require.Error(t, err)
}

func TestOnPipelineRunStateChanged_IgnoresRunsOutsideAnyWorkflow(t *testing.T) {
	wprs := new(mockWorkflowPipelineRunFacade)
	sched := New(nil, nil, wprs, nil, nil, nil, nil, nil, nil)

	pr := &model.PipelineRun{ID: 5, UUID: "run-5"}
	wprs.On("GetByPipelineRun", mock.Anything, uint64(5)).Return(nil, nil)

	sched.OnPipelineRunStateChanged(context.Background(), pr, statemachine.Running, statemachine.Completed)
	wprs.AssertExpectations(t)
}

func TestOnPipelineRunStateChanged_CompletedStartsReadySuccessor(t *testing.T) {
	workflowRuns := new(mockWorkflowRunFacade)
	wprs := new(mockWorkflowPipelineRunFacade)
	nodes := new(mockNodeFacade)
	deps := new(mockDependencyFacade)
	pipelines := new(mockPipelineFacade)
	pipelineRuns := new(mockPipelineRunFacade)
	store := new(mockStore)
	dispatcher := new(mockDispatcher)

	sched := New(nil, workflowRuns, wprs, nodes, deps, pipelines, pipelineRuns, store, dispatcher)

	wr := &model.WorkflowRun{ID: 100, UUID: "wfr-1", WorkflowID: 1}
	upstreamPR := &model.PipelineRun{ID: 10, UUID: "run-a", PipelineUUID: "p-a"}
	upstreamWPR := &model.WorkflowPipelineRun{
		ID: 1, WorkflowRunID: 100, WorkflowRunUUID: "wfr-1",
		WorkflowPipelineID: 20, WorkflowPipelineUUID: "node-a",
		PipelineRunID: 10, PipelineRunUUID: "run-a",
	}
	succNode := &model.WorkflowPipeline{ID: 21, UUID: "node-b", WorkflowID: 1, PipelineUUID: "p-b"}
	succWPR := &model.WorkflowPipelineRun{
		ID: 2, WorkflowRunID: 100, WorkflowPipelineID: 21, WorkflowPipelineUUID: "node-b",
		PipelineRunID: 11, PipelineRunUUID: "run-b",
	}
	succPipeline := &model.Pipeline{ID: 2, UUID: "p-b"}
	succPR := &model.PipelineRun{ID: 11, UUID: "run-b", PipelineUUID: "p-b"}

	wprs.On("GetByPipelineRun", mock.Anything, uint64(10)).Return(upstreamWPR, nil)
	workflowRuns.On("WithLock", mock.Anything, "wfr-1").Return(nil, wr)

	nodes.On("ListLiveByWorkflow", mock.Anything, uint64(1)).Return([]model.WorkflowPipeline{
		{ID: 20, UUID: "node-a", WorkflowID: 1},
		*succNode,
	}, nil)
	deps.On("ListLiveByWorkflow", mock.Anything, uint64(1)).Return([]model.WorkflowPipelineDependency{
		{WorkflowID: 1, FromUUID: "node-a", ToUUID: "node-b"},
	}, nil)

	pipelineRuns.On("ListArtifacts", mock.Anything, uint64(10)).Return([]model.PipelineRunArtifact{}, nil)
	nodes.On("Get", mock.Anything, "node-b").Return(succNode, nil)
	wprs.On("GetByWorkflowPipeline", mock.Anything, uint64(100), uint64(21)).Return(succWPR, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(11)).Return(&model.PipelineRunState{Code: int(statemachine.Queued)}, nil)

	nodes.On("Get", mock.Anything, "node-a").Return(&model.WorkflowPipeline{ID: 20, UUID: "node-a", WorkflowID: 1}, nil)
	wprs.On("GetByWorkflowPipeline", mock.Anything, uint64(100), uint64(20)).Return(upstreamWPR, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(10)).Return(&model.PipelineRunState{Code: int(statemachine.Completed)}, nil)

	pipelineRuns.On("GetByID", mock.Anything, uint64(11)).Return(succPR, nil)
	pipelineRuns.On("AppendState", mock.Anything, uint64(11), int(statemachine.NotStarted)).Return(nil)
	pipelines.On("Get", mock.Anything, "p-b").Return(succPipeline, nil)
	pipelineRuns.On("ListInputs", mock.Anything, uint64(11)).Return([]model.PipelineRunInput{}, nil)
	dispatcher.On("Execute", mock.Anything, mock.MatchedBy(func(req executor.ExecuteRequest) bool {
		return req.RunUUID == "run-b"
	})).Return(nil)

	wprs.On("ListByWorkflowRun", mock.Anything, uint64(100)).Return([]model.WorkflowPipelineRun{*upstreamWPR, *succWPR}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(10)).Return(&model.PipelineRunState{Code: int(statemachine.Completed)}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(11)).Return(&model.PipelineRunState{Code: int(statemachine.Queued)}, nil)

	sched.OnPipelineRunStateChanged(context.Background(), upstreamPR, statemachine.Running, statemachine.Completed)

	dispatcher.AssertCalled(t, "Execute", mock.Anything, mock.MatchedBy(func(req executor.ExecuteRequest) bool {
		return req.RunUUID == "run-b"
	}))
}

func TestCancelSiblings_CancelsOnlyNonTerminalSiblings(t *testing.T) {
	wprs := new(mockWorkflowPipelineRunFacade)
	pipelineRuns := new(mockPipelineRunFacade)
	sched := New(nil, nil, wprs, nil, nil, nil, pipelineRuns, nil, nil)

	wr := &model.WorkflowRun{ID: 100, UUID: "wfr-1"}
	failed := &model.WorkflowPipelineRun{WorkflowRunID: 100, PipelineRunID: 10}
	running := model.WorkflowPipelineRun{WorkflowRunID: 100, PipelineRunID: 11}
	alreadyDone := model.WorkflowPipelineRun{WorkflowRunID: 100, PipelineRunID: 12}

	wprs.On("ListByWorkflowRun", mock.Anything, uint64(100)).
		Return([]model.WorkflowPipelineRun{*failed, running, alreadyDone}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(11)).
		Return(&model.PipelineRunState{Code: int(statemachine.Running)}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(12)).
		Return(&model.PipelineRunState{Code: int(statemachine.Completed)}, nil)
	pipelineRuns.On("AppendState", mock.Anything, uint64(11), int(statemachine.Cancelled)).Return(nil)

	err := sched.cancelSiblings(context.Background(), wr, failed)
	require.NoError(t, err)

	pipelineRuns.AssertCalled(t, "AppendState", mock.Anything, uint64(11), int(statemachine.Cancelled))
	pipelineRuns.AssertNotCalled(t, "AppendState", mock.Anything, uint64(12), mock.Anything)
	pipelineRuns.AssertNotCalled(t, "AppendState", mock.Anything, uint64(10), mock.Anything)
}

func TestReact_FailedCancelsSiblingsAndWorkflowRun(t *testing.T) {
	workflowRuns := new(mockWorkflowRunFacade)
	wprs := new(mockWorkflowPipelineRunFacade)
	pipelineRuns := new(mockPipelineRunFacade)
	sched := New(nil, workflowRuns, wprs, nil, nil, nil, pipelineRuns, nil, nil)

	wr := &model.WorkflowRun{ID: 100, UUID: "wfr-1"}
	failedPR := &model.PipelineRun{ID: 10, UUID: "run-a"}
	failedWPR := &model.WorkflowPipelineRun{WorkflowRunID: 100, PipelineRunID: 10}
	sibling := model.WorkflowPipelineRun{WorkflowRunID: 100, PipelineRunID: 11}

	wprs.On("ListByWorkflowRun", mock.Anything, uint64(100)).
		Return([]model.WorkflowPipelineRun{*failedWPR, sibling}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(11)).
		Return(&model.PipelineRunState{Code: int(statemachine.Running)}, nil)
	pipelineRuns.On("AppendState", mock.Anything, uint64(11), int(statemachine.Cancelled)).Return(nil)
	workflowRuns.On("CurrentState", mock.Anything, uint64(100)).
		Return(&model.WorkflowRunState{Code: int(statemachine.Running)}, nil)
	workflowRuns.On("AppendState", mock.Anything, uint64(100), int(statemachine.Cancelled)).Return(nil)

	err := sched.react(context.Background(), wr, failedWPR, failedPR, statemachine.Failed)
	require.NoError(t, err)

	workflowRuns.AssertCalled(t, "AppendState", mock.Anything, uint64(100), int(statemachine.Cancelled))
}

func TestPropagateCancellation_CancelsOnlyQueuedDescendants(t *testing.T) {
	nodes := new(mockNodeFacade)
	deps := new(mockDependencyFacade)
	wprs := new(mockWorkflowPipelineRunFacade)
	pipelineRuns := new(mockPipelineRunFacade)
	sched := New(nil, nil, wprs, nodes, deps, nil, pipelineRuns, nil, nil)

	wr := &model.WorkflowRun{ID: 100, UUID: "wfr-1", WorkflowID: 1}
	cancelledWPR := &model.WorkflowPipelineRun{WorkflowRunID: 100, WorkflowPipelineUUID: "node-a"}

	nodes.On("ListLiveByWorkflow", mock.Anything, uint64(1)).Return([]model.WorkflowPipeline{
		{ID: 20, UUID: "node-a", WorkflowID: 1},
		{ID: 21, UUID: "node-b", WorkflowID: 1},
		{ID: 22, UUID: "node-c", WorkflowID: 1},
	}, nil)
	deps.On("ListLiveByWorkflow", mock.Anything, uint64(1)).Return([]model.WorkflowPipelineDependency{
		{WorkflowID: 1, FromUUID: "node-a", ToUUID: "node-b"},
		{WorkflowID: 1, FromUUID: "node-b", ToUUID: "node-c"},
	}, nil)

	nodeB := &model.WorkflowPipeline{ID: 21, UUID: "node-b", WorkflowID: 1}
	nodeC := &model.WorkflowPipeline{ID: 22, UUID: "node-c", WorkflowID: 1}
	nodes.On("Get", mock.Anything, "node-b").Return(nodeB, nil)
	nodes.On("Get", mock.Anything, "node-c").Return(nodeC, nil)

	wprB := &model.WorkflowPipelineRun{WorkflowRunID: 100, WorkflowPipelineID: 21, PipelineRunID: 31}
	wprC := &model.WorkflowPipelineRun{WorkflowRunID: 100, WorkflowPipelineID: 22, PipelineRunID: 32}
	wprs.On("GetByWorkflowPipeline", mock.Anything, uint64(100), uint64(21)).Return(wprB, nil)
	wprs.On("GetByWorkflowPipeline", mock.Anything, uint64(100), uint64(22)).Return(wprC, nil)

	// node-b was already started (RUNNING): must not be cancelled.
	pipelineRuns.On("CurrentState", mock.Anything, uint64(31)).
		Return(&model.PipelineRunState{Code: int(statemachine.Running)}, nil)
	// node-c never started (QUEUED): must be cancelled.
	pipelineRuns.On("CurrentState", mock.Anything, uint64(32)).
		Return(&model.PipelineRunState{Code: int(statemachine.Queued)}, nil)
	pipelineRuns.On("AppendState", mock.Anything, uint64(32), int(statemachine.Cancelled)).Return(nil)

	err := sched.propagateCancellation(context.Background(), wr, cancelledWPR)
	require.NoError(t, err)

	pipelineRuns.AssertCalled(t, "AppendState", mock.Anything, uint64(32), int(statemachine.Cancelled))
	pipelineRuns.AssertNotCalled(t, "AppendState", mock.Anything, uint64(31), mock.Anything)
}

func TestApplyAggregateRuleIfTerminal_AllCompletedMarksWorkflowRunCompleted(t *testing.T) {
	workflowRuns := new(mockWorkflowRunFacade)
	wprs := new(mockWorkflowPipelineRunFacade)
	pipelineRuns := new(mockPipelineRunFacade)
	sched := New(nil, workflowRuns, wprs, nil, nil, nil, pipelineRuns, nil, nil)

	wr := &model.WorkflowRun{ID: 100, UUID: "wfr-1"}
	wprs.On("ListByWorkflowRun", mock.Anything, uint64(100)).Return([]model.WorkflowPipelineRun{
		{PipelineRunID: 10}, {PipelineRunID: 11},
	}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(10)).
		Return(&model.PipelineRunState{Code: int(statemachine.Completed)}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(11)).
		Return(&model.PipelineRunState{Code: int(statemachine.Completed)}, nil)
	workflowRuns.On("CurrentState", mock.Anything, uint64(100)).
		Return(&model.WorkflowRunState{Code: int(statemachine.Running)}, nil)
	workflowRuns.On("AppendState", mock.Anything, uint64(100), int(statemachine.Completed)).Return(nil)

	err := sched.applyAggregateRuleIfTerminal(context.Background(), wr)
	require.NoError(t, err)

	workflowRuns.AssertCalled(t, "AppendState", mock.Anything, uint64(100), int(statemachine.Completed))
}

func TestApplyAggregateRuleIfTerminal_AnyCancelledMarksWorkflowRunCancelled(t *testing.T) {
	workflowRuns := new(mockWorkflowRunFacade)
	wprs := new(mockWorkflowPipelineRunFacade)
	pipelineRuns := new(mockPipelineRunFacade)
	sched := New(nil, workflowRuns, wprs, nil, nil, nil, pipelineRuns, nil, nil)

	wr := &model.WorkflowRun{ID: 100, UUID: "wfr-1"}
	wprs.On("ListByWorkflowRun", mock.Anything, uint64(100)).Return([]model.WorkflowPipelineRun{
		{PipelineRunID: 10}, {PipelineRunID: 11},
	}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(10)).
		Return(&model.PipelineRunState{Code: int(statemachine.Completed)}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(11)).
		Return(&model.PipelineRunState{Code: int(statemachine.Cancelled)}, nil)
	workflowRuns.On("CurrentState", mock.Anything, uint64(100)).
		Return(&model.WorkflowRunState{Code: int(statemachine.Running)}, nil)
	workflowRuns.On("AppendState", mock.Anything, uint64(100), int(statemachine.Cancelled)).Return(nil)

	err := sched.applyAggregateRuleIfTerminal(context.Background(), wr)
	require.NoError(t, err)

	workflowRuns.AssertCalled(t, "AppendState", mock.Anything, uint64(100), int(statemachine.Cancelled))
}

func TestApplyAggregateRuleIfTerminal_StillInFlightIsNoop(t *testing.T) {
	workflowRuns := new(mockWorkflowRunFacade)
	wprs := new(mockWorkflowPipelineRunFacade)
	pipelineRuns := new(mockPipelineRunFacade)
	sched := New(nil, workflowRuns, wprs, nil, nil, nil, pipelineRuns, nil, nil)

	wr := &model.WorkflowRun{ID: 100, UUID: "wfr-1"}
	wprs.On("ListByWorkflowRun", mock.Anything, uint64(100)).Return([]model.WorkflowPipelineRun{
		{PipelineRunID: 10}, {PipelineRunID: 11},
	}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(10)).
		Return(&model.PipelineRunState{Code: int(statemachine.Completed)}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(11)).
		Return(&model.PipelineRunState{Code: int(statemachine.Running)}, nil)

	err := sched.applyAggregateRuleIfTerminal(context.Background(), wr)
	require.NoError(t, err)

	workflowRuns.AssertNotCalled(t, "AppendState", mock.Anything, mock.Anything, mock.Anything)
}

// TestAdvanceSuccessors_DiamondWaitsForBothPredecessors exercises a diamond
// (node-a and node-b both feed node-c): node-c must stay QUEUED until both
// predecessors have COMPLETED, then starts on whichever reaction observes
// the second completion.
func TestAdvanceSuccessors_DiamondWaitsForBothPredecessors(t *testing.T) {
	nodes := new(mockNodeFacade)
	deps := new(mockDependencyFacade)
	wprs := new(mockWorkflowPipelineRunFacade)
	pipelines := new(mockPipelineFacade)
	pipelineRuns := new(mockPipelineRunFacade)
	store := new(mockStore)
	dispatcher := new(mockDispatcher)
	sched := New(nil, nil, wprs, nodes, deps, pipelines, pipelineRuns, store, dispatcher)

	wr := &model.WorkflowRun{ID: 100, UUID: "wfr-1", WorkflowID: 1}

	nodeA := model.WorkflowPipeline{ID: 20, UUID: "node-a", WorkflowID: 1, PipelineUUID: "p-a"}
	nodeB := model.WorkflowPipeline{ID: 21, UUID: "node-b", WorkflowID: 1, PipelineUUID: "p-b"}
	nodeC := model.WorkflowPipeline{ID: 22, UUID: "node-c", WorkflowID: 1, PipelineUUID: "p-c"}

	nodes.On("ListLiveByWorkflow", mock.Anything, uint64(1)).Return([]model.WorkflowPipeline{nodeA, nodeB, nodeC}, nil)
	deps.On("ListLiveByWorkflow", mock.Anything, uint64(1)).Return([]model.WorkflowPipelineDependency{
		{WorkflowID: 1, FromUUID: "node-a", ToUUID: "node-c"},
		{WorkflowID: 1, FromUUID: "node-b", ToUUID: "node-c"},
	}, nil)
	nodes.On("Get", mock.Anything, "node-a").Return(&nodeA, nil)
	nodes.On("Get", mock.Anything, "node-b").Return(&nodeB, nil)
	nodes.On("Get", mock.Anything, "node-c").Return(&nodeC, nil)

	wprA := &model.WorkflowPipelineRun{WorkflowRunID: 100, WorkflowPipelineID: 20, WorkflowPipelineUUID: "node-a", PipelineRunID: 10}
	wprB := &model.WorkflowPipelineRun{WorkflowRunID: 100, WorkflowPipelineID: 21, WorkflowPipelineUUID: "node-b", PipelineRunID: 11}
	wprC := &model.WorkflowPipelineRun{WorkflowRunID: 100, WorkflowPipelineID: 22, WorkflowPipelineUUID: "node-c", PipelineRunID: 12}
	wprs.On("GetByWorkflowPipeline", mock.Anything, uint64(100), uint64(20)).Return(wprA, nil)
	wprs.On("GetByWorkflowPipeline", mock.Anything, uint64(100), uint64(21)).Return(wprB, nil)
	wprs.On("GetByWorkflowPipeline", mock.Anything, uint64(100), uint64(22)).Return(wprC, nil)

	prA := &model.PipelineRun{ID: 10, UUID: "run-a", PipelineUUID: "p-a"}
	prB := &model.PipelineRun{ID: 11, UUID: "run-b", PipelineUUID: "p-b"}

	pipelineRuns.On("ListArtifacts", mock.Anything, uint64(10)).Return([]model.PipelineRunArtifact{}, nil)
	pipelineRuns.On("ListArtifacts", mock.Anything, uint64(11)).Return([]model.PipelineRunArtifact{}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(12)).
		Return(&model.PipelineRunState{Code: int(statemachine.Queued)}, nil)

	// Phase 1: node-a completes first; node-b (the other predecessor) is
	// still RUNNING, so node-c must not start yet.
	pipelineRuns.On("CurrentState", mock.Anything, uint64(10)).
		Return(&model.PipelineRunState{Code: int(statemachine.Completed)}, nil)
	pipelineRuns.On("CurrentState", mock.Anything, uint64(11)).
		Return(&model.PipelineRunState{Code: int(statemachine.Running)}, nil).Once()

	err := sched.advanceSuccessors(context.Background(), wr, wprA, prA)
	require.NoError(t, err)
	dispatcher.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	pipelineRuns.AssertNotCalled(t, "AppendState", mock.Anything, uint64(12), mock.Anything)

	// Phase 2: node-b completes too; now both predecessors of node-c are
	// COMPLETED, so node-c must start.
	pipelineRuns.On("CurrentState", mock.Anything, uint64(11)).
		Return(&model.PipelineRunState{Code: int(statemachine.Completed)}, nil)
	succPipeline := &model.Pipeline{ID: 3, UUID: "p-c"}
	succPR := &model.PipelineRun{ID: 12, UUID: "run-c", PipelineUUID: "p-c"}
	pipelineRuns.On("GetByID", mock.Anything, uint64(12)).Return(succPR, nil)
	pipelineRuns.On("AppendState", mock.Anything, uint64(12), int(statemachine.NotStarted)).Return(nil)
	pipelines.On("Get", mock.Anything, "p-c").Return(succPipeline, nil)
	pipelineRuns.On("ListInputs", mock.Anything, uint64(12)).Return([]model.PipelineRunInput{}, nil)
	dispatcher.On("Execute", mock.Anything, mock.MatchedBy(func(req executor.ExecuteRequest) bool {
		return req.RunUUID == "run-c"
	})).Return(nil)

	err = sched.advanceSuccessors(context.Background(), wr, wprB, prB)
	require.NoError(t, err)

	dispatcher.AssertCalled(t, "Execute", mock.Anything, mock.MatchedBy(func(req executor.ExecuteRequest) bool {
		return req.RunUUID == "run-c"
	}))
}
