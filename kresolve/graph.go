package kresolve

import (
	"slices"

	"github.com/birdayz/xodc/kproject"
)

// Vertex is a node of the dependency graph. Parents and Children hold each
// neighbour once, no matter how many links connect the pair.
type Vertex struct {
	ID       kproject.NodeID
	Parents  []kproject.NodeID
	Children []kproject.NodeID
}

// Graph is the dependency graph derived from a project's links: an edge
// A -> B exists iff some link goes from an output of A to an input of B.
type Graph struct {
	Nodes map[kproject.NodeID]*Vertex
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[kproject.NodeID]*Vertex),
	}
}

func (g *Graph) addNode(id kproject.NodeID) {
	if _, exists := g.Nodes[id]; exists {
		return
	}
	g.Nodes[id] = &Vertex{ID: id}
}

// addEdge records parent -> child. Both nodes must exist.
func (g *Graph) addEdge(parentID, childID kproject.NodeID) {
	parent := g.Nodes[parentID]
	child := g.Nodes[childID]
	if slices.Contains(parent.Children, childID) {
		return
	}
	parent.Children = insertSorted(parent.Children, childID)
	child.Parents = insertSorted(child.Parents, parentID)
}

// insertSorted inserts an item into a sorted slice maintaining Compare order.
// This is more efficient than repeatedly sorting the entire slice.
func insertSorted(slice []kproject.NodeID, item kproject.NodeID) []kproject.NodeID {
	idx, _ := slices.BinarySearchFunc(slice, item, kproject.Compare[kproject.NodeID])
	return slices.Insert(slice, idx, item)
}

// TopologicalSort creates a deterministic topological ordering using Kahn's
// algorithm. Whenever several nodes are ready at once, the smallest id in
// kproject.Compare order goes first.
// Time complexity: O(V log V + E) where V is vertices and E is edges.
func (g *Graph) TopologicalSort() ([]kproject.NodeID, error) {
	inDegree := make(map[kproject.NodeID]int, len(g.Nodes))
	for id, v := range g.Nodes {
		inDegree[id] = len(v.Parents)
	}

	// Queue of nodes with no incoming edges, kept sorted
	queue := make([]kproject.NodeID, 0, len(g.Nodes))
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	slices.SortFunc(queue, kproject.Compare[kproject.NodeID])

	result := make([]kproject.NodeID, 0, len(g.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		// Children are already sorted
		for _, childID := range g.Nodes[id].Children {
			inDegree[childID]--
			if inDegree[childID] == 0 {
				queue = insertSorted(queue, childID)
			}
		}
	}

	if len(result) != len(g.Nodes) {
		blocked := make([]kproject.NodeID, 0, len(g.Nodes)-len(result))
		for id, degree := range inDegree {
			if degree > 0 {
				blocked = append(blocked, id)
			}
		}
		slices.SortFunc(blocked, kproject.Compare[kproject.NodeID])
		return nil, &CyclicGraphError{
			Blocked: blocked,
			Cycle:   g.findCycle(blocked),
		}
	}

	return result, nil
}

// findCycle uses DFS restricted to the given nodes to find one cycle.
// Roots and children are visited in Compare order so the reported cycle is
// stable across runs.
func (g *Graph) findCycle(within []kproject.NodeID) []kproject.NodeID {
	allowed := make(map[kproject.NodeID]bool, len(within))
	for _, id := range within {
		allowed[id] = true
	}
	visited := make(map[kproject.NodeID]bool, len(within))
	recStack := make(map[kproject.NodeID]bool, len(within))

	var dfs func(kproject.NodeID, []kproject.NodeID) []kproject.NodeID
	dfs = func(id kproject.NodeID, path []kproject.NodeID) []kproject.NodeID {
		visited[id] = true
		recStack[id] = true
		path = append(path, id)

		for _, childID := range g.Nodes[id].Children {
			if !allowed[childID] {
				continue
			}
			if !visited[childID] {
				if cycle := dfs(childID, path); cycle != nil {
					return cycle
				}
			} else if recStack[childID] {
				// Cycle detected! Cut the path at the first occurrence.
				start := slices.Index(path, childID)
				cycle := slices.Clone(path[start:])
				return append(cycle, childID)
			}
		}

		recStack[id] = false
		return nil
	}

	for _, id := range within {
		if !visited[id] {
			if cycle := dfs(id, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
