package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// CycleWarning reports actions that can dispatch each other in a loop.
//
// Cycles are warnings, not errors: an action may re-dispatch itself under
// a payload-driven stop condition implemented in a bound handler.
type CycleWarning struct {
	Path    []string `json:"path"`    // ["cart/checkout", "cart/retry", "cart/checkout"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeCycles builds the dispatch graph of a module tree (action type to
// the action types its steps dispatch) and reports every strongly connected
// component with more than one node, and every self-dispatching action.
//
// A DAG returns an empty list. Output order is deterministic.
func AnalyzeCycles(spec *ModuleSpec) []CycleWarning {
	graph := buildDispatchGraph(spec)
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// dispatchGraph maps an action type to the action types it dispatches.
type dispatchGraph map[string][]string

func buildDispatchGraph(spec *ModuleSpec) dispatchGraph {
	graph := make(dispatchGraph)
	if spec == nil {
		return graph
	}
	walkNamespaced(spec, "", func(ns string, m *ModuleSpec) {
		for _, a := range m.Actions {
			from := ns + a.Name
			if a.Root {
				from = a.Name
			}
			if graph[from] == nil {
				graph[from] = []string{}
			}
			for _, step := range a.Steps {
				if step.Dispatch == "" {
					continue
				}
				to := ns + step.Dispatch
				if step.Root {
					to = step.Dispatch
				}
				graph[from] = append(graph[from], to)
			}
		}
	})
	return graph
}

// walkNamespaced visits modules with the namespace prefix their types get.
func walkNamespaced(m *ModuleSpec, ns string, fn func(string, *ModuleSpec)) {
	fn(ns, m)
	for _, child := range m.Modules {
		childNS := ns
		if child.Namespaced {
			childNS += child.Key + "/"
		}
		walkNamespaced(child, childNS, fn)
	}
}

func hasSelfLoop(node string, graph dispatchGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order and each SCC is returned sorted.
func tarjanSCC(graph dispatchGraph) [][]string {
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
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

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
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	slices.SortFunc(sccs, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return sccs
}

func cycleSCCToWarning(scc []string, graph dispatchGraph) CycleWarning {
	if len(scc) == 1 {
		typ := scc[0]
		return CycleWarning{
			Path:    []string{typ, typ},
			Message: fmt.Sprintf("Self-dispatching action detected: %s → %s", typ, typ),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential dispatch cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks from the first SCC member along edges that
// stay inside the SCC until it returns to the start or runs out of
// unvisited members.
func reconstructCyclePath(scc []string, graph dispatchGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := map[string]bool{}

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
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
