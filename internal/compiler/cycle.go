package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/mlcg/internal/ir"
)

// CycleWarning represents a cycle in the parent hierarchy of target
// descriptions.
//
// Parent cycles can never be registered, so they are reported at level
// "error". Shared ancestors reached along more than one path are legal and
// reported at level "info": flattening visits them once, at their
// breadth-first position.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "error" or "info"
}

// AnalyzeCycles performs static analysis of the parent hierarchy.
//
// The algorithm:
//  1. Build the target -> parents graph, restricted to the given specs
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle
//  4. Report ancestors reachable through several parents as shared
//
// Parents outside the batch (built-in targets) are leaves of the graph.
// A DAG without shared ancestors returns an empty list.
func AnalyzeCycles(specs []ir.TargetSpec) []CycleWarning {
	if len(specs) == 0 {
		return []CycleWarning{}
	}

	graph, order := buildParentGraph(specs)

	var warnings []CycleWarning
	cyclic := make(map[string]bool)
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
			for _, name := range scc {
				cyclic[name] = true
			}
		}
	}

	for _, name := range order {
		if cyclic[name] {
			continue
		}
		warnings = append(warnings, sharedAncestors(name, graph, cyclic)...)
	}

	return warnings
}

// dependencyGraph maps target name -> parent names, in declaration order.
type dependencyGraph map[string][]string

// buildParentGraph constructs the parent graph and the declaration order of
// its nodes.
func buildParentGraph(specs []ir.TargetSpec) (dependencyGraph, []string) {
	graph := make(dependencyGraph)
	var order []string

	for _, spec := range specs {
		if _, ok := graph[spec.Name]; !ok {
			order = append(order, spec.Name)
		}
		// Initialize with empty slice if no edges (ensures node exists in graph)
		graph[spec.Name] = append([]string{}, spec.Parents...)
	}

	return graph, order
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of target names.
// Single-node SCCs without self-loops are NOT cycles. Nodes are visited in
// the given order so the output is deterministic.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, inBatch := graph[w]; !inBatch {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Target lists itself as parent: %s → %s", name, name),
			Level:   "error",
		}
	}

	path := reconstructCyclePath(scc, graph)

	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Parent cycle detected: %s", strings.Join(path, " → ")),
		Level:   "error",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at the last node popped (the SCC root), follow edges to
// other SCC members, continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}

// sharedAncestors reports ancestors of name that are reachable through more
// than one of its parents. Built-in parents are seen but not expanded.
func sharedAncestors(name string, graph dependencyGraph, cyclic map[string]bool) []CycleWarning {
	parents := graph[name]
	if len(parents) < 2 {
		return nil
	}

	via := make(map[string]string) // ancestor -> first parent reaching it
	var warnings []CycleWarning
	reported := make(map[string]bool)

	for _, parent := range parents {
		for _, anc := range ancestorsOf(parent, graph, cyclic) {
			first, ok := via[anc]
			if !ok {
				via[anc] = parent
				continue
			}
			if first == parent || reported[anc] {
				continue
			}
			reported[anc] = true
			warnings = append(warnings, CycleWarning{
				Path:    []string{name, first, parent, anc},
				Message: fmt.Sprintf("Shared ancestor %s reached from %s through %s and %s", anc, name, first, parent),
				Level:   "info",
			})
		}
	}

	return warnings
}

// ancestorsOf returns node and its ancestors, depth first.
func ancestorsOf(node string, graph dependencyGraph, cyclic map[string]bool) []string {
	var out []string
	seen := make(map[string]bool)

	var walk func(string)
	walk = func(n string) {
		if seen[n] || cyclic[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
		for _, p := range graph[n] {
			walk(p)
		}
	}
	walk(node)

	return out
}
