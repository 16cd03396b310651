package dag

import (
	"testing"

	"github.com/AMD-AGI/primus-workflows/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsAcyclic_Linear(t *testing.T) {
	g := NewGraph([]string{"A", "B", "C"}, []Edge{{"A", "B"}, {"B", "C"}})
	assert.True(t, g.IsAcyclic(nil))
}

func TestIsAcyclic_Diamond(t *testing.T) {
	g := NewGraph([]string{"A", "B", "C", "D"}, []Edge{
		{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"},
	})
	assert.True(t, g.IsAcyclic(nil))
}

func TestIsAcyclic_RejectsCandidateCycle(t *testing.T) {
	g := NewGraph([]string{"A", "B", "C"}, []Edge{{"A", "B"}, {"B", "C"}})
	assert.False(t, g.IsAcyclic(&Edge{"C", "A"}))
}

func TestValidate_CycleDetected(t *testing.T) {
	g := NewGraph([]string{"A", "B", "C"}, []Edge{{"A", "B"}, {"B", "C"}})
	err := g.Validate(&Edge{"C", "A"})
	assert.True(t, errors.Is(err, errors.CodeCycleDetected))
}

func TestValidate_SelfLoop(t *testing.T) {
	g := NewGraph([]string{"A"}, nil)
	err := g.Validate(&Edge{"A", "A"})
	assert.True(t, errors.Is(err, errors.CodeCycleDetected))
}

func TestRoots(t *testing.T) {
	g := NewGraph([]string{"A", "B", "C", "D"}, []Edge{
		{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"},
	})
	assert.ElementsMatch(t, []string{"A"}, g.Roots())
}

func TestRoots_Empty(t *testing.T) {
	g := NewGraph(nil, nil)
	assert.Empty(t, g.Roots())
}

func TestSuccessorsAndPredecessors(t *testing.T) {
	g := NewGraph([]string{"A", "B", "C"}, []Edge{{"A", "B"}, {"A", "C"}})
	assert.ElementsMatch(t, []string{"B", "C"}, g.Successors("A"))
	assert.ElementsMatch(t, []string{"A"}, g.Predecessors("B"))
}

func TestReachableFrom(t *testing.T) {
	g := NewGraph([]string{"A", "B", "C", "D"}, []Edge{
		{"A", "B"}, {"B", "C"}, {"B", "D"},
	})
	assert.ElementsMatch(t, []string{"B", "C", "D"}, g.ReachableFrom("A"))
	assert.ElementsMatch(t, []string{"C", "D"}, g.ReachableFrom("B"))
	assert.Empty(t, g.ReachableFrom("C"))
}

func TestNodes(t *testing.T) {
	g := NewGraph([]string{"A", "B", "C"}, []Edge{{"A", "B"}})
	assert.ElementsMatch(t, []string{"A", "B", "C"}, g.Nodes())
}

func TestIndegree(t *testing.T) {
	g := NewGraph([]string{"A", "B", "C", "D"}, []Edge{
		{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"},
	})
	assert.Equal(t, 0, g.Indegree("A"))
	assert.Equal(t, 1, g.Indegree("B"))
	assert.Equal(t, 2, g.Indegree("D"))
}
