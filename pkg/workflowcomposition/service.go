// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package workflowcomposition implements the Workflow Composition Service
// (§4.4): workflow CRUD and the DAG-validated mutation of a workflow's
// WorkflowPipeline nodes and WorkflowPipelineDependency edges. Grounded on
// the teacher's service-over-facade layering, with DAG validation delegated
// to pkg/dag per the original implementation's pre-commit cycle check.
package workflowcomposition

import (
	"context"

	"github.com/AMD-AGI/primus-workflows/pkg/dag"
	"github.com/AMD-AGI/primus-workflows/pkg/database"
	"github.com/AMD-AGI/primus-workflows/pkg/database/model"
	"github.com/AMD-AGI/primus-workflows/pkg/errors"
	"github.com/google/uuid"
)

// Service implements the Workflow Composition Service.
type Service struct {
	workflows    database.WorkflowFacadeInterface
	pipelines    database.PipelineFacadeInterface
	nodes        database.WorkflowPipelineFacadeInterface
	dependencies database.WorkflowPipelineDependencyFacadeInterface
}

// NewService builds a workflowcomposition.Service.
func NewService(
	workflows database.WorkflowFacadeInterface,
	pipelines database.PipelineFacadeInterface,
	nodes database.WorkflowPipelineFacadeInterface,
	dependencies database.WorkflowPipelineDependencyFacadeInterface,
) *Service {
	return &Service{workflows: workflows, pipelines: pipelines, nodes: nodes, dependencies: dependencies}
}

// CreateWorkflow registers a new, empty workflow.
func (s *Service) CreateWorkflow(ctx context.Context, name, description string) (*model.Workflow, error) {
	if name == "" {
		return nil, errors.Invalid("workflow name is required")
	}
	w := &model.Workflow{UUID: uuid.NewString(), Name: name, Description: description}
	if err := s.workflows.Create(ctx, w); err != nil {
		return nil, errors.Internal(err)
	}
	return w, nil
}

// UpdateWorkflow overwrites a live workflow's name and description.
func (s *Service) UpdateWorkflow(ctx context.Context, workflowUUID, name, description string) error {
	existing, err := s.workflows.Get(ctx, workflowUUID)
	if err != nil {
		return errors.Internal(err)
	}
	if existing == nil {
		return errors.NotFoundf("workflow %s not found", workflowUUID)
	}
	existing.Name = name
	existing.Description = description
	if err := s.workflows.Update(ctx, existing); err != nil {
		return errors.Internal(err)
	}
	return nil
}

// DeleteWorkflow soft-deletes a workflow and cascades to its
// WorkflowPipeline nodes, per §4.4 (a workflow's nodes have no independent
// lifetime once their owning workflow is gone).
func (s *Service) DeleteWorkflow(ctx context.Context, workflowUUID string) error {
	existing, err := s.workflows.Get(ctx, workflowUUID)
	if err != nil {
		return errors.Internal(err)
	}
	if existing == nil {
		return errors.NotFoundf("workflow %s not found", workflowUUID)
	}
	if err := s.nodes.SoftDeleteByWorkflow(ctx, existing.ID); err != nil {
		return errors.Internal(err)
	}
	if err := s.workflows.SoftDelete(ctx, workflowUUID); err != nil {
		return errors.Internal(err)
	}
	return nil
}

// EdgeRequest is one requested dependency between two existing
// WorkflowPipeline nodes, used by UpdateWorkflowPipeline to reconcile a
// node's full incident-edge set.
type EdgeRequest struct {
	FromUUID string
	ToUUID   string
}

// CreateWorkflowPipeline adds a node bound to pipelineUUID to workflowUUID,
// then inserts one edge per listed source (src -> new) and per listed
// destination (new -> dst), per §4.4 step 2. Duplicate edges are coalesced.
// The whole call is rejected atomically if the resulting graph would
// contain a cycle.
func (s *Service) CreateWorkflowPipeline(ctx context.Context, workflowUUID, pipelineUUID string, sources, destinations []string) (*model.WorkflowPipeline, error) {
	workflow, err := s.workflows.Get(ctx, workflowUUID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if workflow == nil {
		return nil, errors.NotFoundf("workflow %s not found", workflowUUID)
	}
	pipeline, err := s.pipelines.Get(ctx, pipelineUUID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if pipeline == nil {
		return nil, errors.NotFoundf("pipeline %s not found", pipelineUUID)
	}

	node := &model.WorkflowPipeline{
		UUID:         uuid.NewString(),
		WorkflowID:   workflow.ID,
		WorkflowUUID: workflow.UUID,
		PipelineID:   pipeline.ID,
		PipelineUUID: pipeline.UUID,
	}

	graph, existingNodes, err := s.loadGraph(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}
	candidateNodeIDs := append(graph.Nodes(), node.UUID)
	candidateEdges := edgesOf(graph)

	dedupSrc := dedupeStrings(sources)
	dedupDst := dedupeStrings(destinations)
	for _, src := range dedupSrc {
		if _, ok := existingNodes[src]; !ok {
			return nil, errors.NotFoundf("workflow pipeline %s not found", src)
		}
		candidateEdges = append(candidateEdges, dag.Edge{From: src, To: node.UUID})
	}
	for _, dst := range dedupDst {
		if _, ok := existingNodes[dst]; !ok {
			return nil, errors.NotFoundf("workflow pipeline %s not found", dst)
		}
		candidateEdges = append(candidateEdges, dag.Edge{From: node.UUID, To: dst})
	}

	probe := dag.NewGraph(candidateNodeIDs, candidateEdges)
	if err := probe.Validate(nil); err != nil {
		return nil, err
	}

	if err := s.nodes.Create(ctx, node); err != nil {
		return nil, errors.Internal(err)
	}

	for _, src := range dedupSrc {
		if err := s.createEdgeIfAbsent(ctx, workflow.ID, existingNodes[src], node); err != nil {
			return nil, err
		}
	}
	for _, dst := range dedupDst {
		if err := s.createEdgeIfAbsent(ctx, workflow.ID, node, existingNodes[dst]); err != nil {
			return nil, err
		}
	}

	return node, nil
}

func (s *Service) createEdgeIfAbsent(ctx context.Context, workflowID uint64, from, to *model.WorkflowPipeline) error {
	exists, err := s.dependencies.Exists(ctx, workflowID, from.UUID, to.UUID)
	if err != nil {
		return errors.Internal(err)
	}
	if exists {
		return nil
	}
	if err := s.dependencies.Create(ctx, &model.WorkflowPipelineDependency{
		WorkflowID: workflowID,
		FromID:     from.ID,
		FromUUID:   from.UUID,
		ToID:       to.ID,
		ToUUID:     to.UUID,
	}); err != nil {
		return errors.Internal(err)
	}
	return nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// UpdateWorkflowPipeline swaps a node's pipeline reference and reconciles
// its incident edges to exactly the requested set, rejecting the whole call
// if the result would contain a cycle.
func (s *Service) UpdateWorkflowPipeline(ctx context.Context, nodeUUID, newPipelineUUID string, deps []EdgeRequest) error {
	node, err := s.nodes.Get(ctx, nodeUUID)
	if err != nil {
		return errors.Internal(err)
	}
	if node == nil {
		return errors.NotFoundf("workflow pipeline %s not found", nodeUUID)
	}
	pipeline, err := s.pipelines.Get(ctx, newPipelineUUID)
	if err != nil {
		return errors.Internal(err)
	}
	if pipeline == nil {
		return errors.NotFoundf("pipeline %s not found", newPipelineUUID)
	}

	graph, nodeSet, err := s.loadGraph(ctx, node.WorkflowID)
	if err != nil {
		return err
	}
	nodeIDs := graph.Nodes()

	var candidateEdges []dag.Edge
	for _, e := range edgesOf(graph) {
		if e.From == nodeUUID || e.To == nodeUUID {
			continue
		}
		candidateEdges = append(candidateEdges, e)
	}
	dedup := make(map[EdgeRequest]bool)
	for _, d := range deps {
		if d.FromUUID == d.ToUUID {
			return errors.Invalid("a workflow pipeline cannot depend on itself")
		}
		if _, ok := nodeSet[d.FromUUID]; !ok {
			return errors.NotFoundf("workflow pipeline %s not found", d.FromUUID)
		}
		if _, ok := nodeSet[d.ToUUID]; !ok {
			return errors.NotFoundf("workflow pipeline %s not found", d.ToUUID)
		}
		if dedup[d] {
			continue
		}
		dedup[d] = true
		candidateEdges = append(candidateEdges, dag.Edge{From: d.FromUUID, To: d.ToUUID})
	}

	probe := dag.NewGraph(nodeIDs, candidateEdges)
	if err := probe.Validate(nil); err != nil {
		return err
	}

	if err := s.nodes.UpdatePipelineRef(ctx, nodeUUID, pipeline.ID, pipeline.UUID); err != nil {
		return errors.Internal(err)
	}
	if err := s.dependencies.SoftDeleteIncidentTo(ctx, node.ID); err != nil {
		return errors.Internal(err)
	}
	for d := range dedup {
		if err := s.createEdgeIfAbsent(ctx, node.WorkflowID, nodeSet[d.FromUUID], nodeSet[d.ToUUID]); err != nil {
			return err
		}
	}
	return nil
}

// DeleteWorkflowPipeline soft-deletes a node and every edge incident to it.
func (s *Service) DeleteWorkflowPipeline(ctx context.Context, nodeUUID string) error {
	node, err := s.nodes.Get(ctx, nodeUUID)
	if err != nil {
		return errors.Internal(err)
	}
	if node == nil {
		return errors.NotFoundf("workflow pipeline %s not found", nodeUUID)
	}
	if err := s.dependencies.SoftDeleteIncidentTo(ctx, node.ID); err != nil {
		return errors.Internal(err)
	}
	if err := s.nodes.SoftDelete(ctx, nodeUUID); err != nil {
		return errors.Internal(err)
	}
	return nil
}

// loadGraph fetches a workflow's live nodes and edges in two queries and
// builds the in-memory dag.Graph used to validate mutations before they are
// committed (§9: "fetch the entire aggregate in one or two queries").
func (s *Service) loadGraph(ctx context.Context, workflowID uint64) (*dag.Graph, map[string]*model.WorkflowPipeline, error) {
	nodes, err := s.nodes.ListLiveByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, errors.Internal(err)
	}
	deps, err := s.dependencies.ListLiveByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, errors.Internal(err)
	}

	nodeSet := make(map[string]*model.WorkflowPipeline, len(nodes))
	ids := make([]string, 0, len(nodes))
	for i := range nodes {
		nodeSet[nodes[i].UUID] = &nodes[i]
		ids = append(ids, nodes[i].UUID)
	}
	edges := make([]dag.Edge, 0, len(deps))
	for _, d := range deps {
		edges = append(edges, dag.Edge{From: d.FromUUID, To: d.ToUUID})
	}
	return dag.NewGraph(ids, edges), nodeSet, nil
}

func edgesOf(g *dag.Graph) []dag.Edge {
	var edges []dag.Edge
	for _, n := range g.Nodes() {
		for _, to := range g.Successors(n) {
			edges = append(edges, dag.Edge{From: n, To: to})
		}
	}
	return edges
}
