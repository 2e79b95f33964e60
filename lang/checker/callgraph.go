package checker

import (
	"github.com/seqlang/seq/lang/ast"
)

// callGraph records which user words call which other user words. Calls to
// builtins and external words are excluded: they are total and cannot
// participate in recursion. Calls inside quotations, if branches and match
// arms are included.
type callGraph struct {
	edges map[string]map[string]bool
	order []string // word names in program order, for deterministic walks
}

func buildCallGraph(prog *ast.Program) *callGraph {
	known := make(map[string]bool, len(prog.Words))
	for _, w := range prog.Words {
		known[w.Name] = true
	}

	g := &callGraph{edges: make(map[string]map[string]bool, len(prog.Words))}
	for _, w := range prog.Words {
		callees := make(map[string]bool)
		ast.Walk(w.Body, func(s ast.Statement) {
			if call, ok := s.(*ast.WordCall); ok && known[call.Name] {
				callees[call.Name] = true
			}
		})
		g.edges[w.Name] = callees
		g.order = append(g.order, w.Name)
	}
	return g
}

// callees returns the set of user words called by word.
func (g *callGraph) callees(word string) map[string]bool {
	return g.edges[word]
}

// isRecursiveSCC reports whether the component needs fixed-point inference:
// either it has several members, or its single member calls itself.
func (g *callGraph) isRecursiveSCC(scc []string) bool {
	if len(scc) > 1 {
		return true
	}
	return len(scc) == 1 && g.edges[scc[0]][scc[0]]
}

// sccs computes the strongly connected components of the call graph with
// Tarjan's algorithm. Components are returned in dependency order: every
// component appears after the components it calls into, so checking them in
// order sees callee effects before caller bodies.
func (g *callGraph) sccs() [][]string {
	t := &tarjan{
		graph:    g,
		indices:  make(map[string]int),
		lowlinks: make(map[string]int),
		onStack:  make(map[string]bool),
	}
	for _, word := range g.order {
		if _, seen := t.indices[word]; !seen {
			t.visit(word)
		}
	}
	return t.sccs
}

type tarjan struct {
	graph    *callGraph
	index    int
	stack    []string
	indices  map[string]int
	lowlinks map[string]int
	onStack  map[string]bool
	sccs     [][]string
}

func (t *tarjan) visit(word string) {
	t.indices[word] = t.index
	t.lowlinks[word] = t.index
	t.index++
	t.stack = append(t.stack, word)
	t.onStack[word] = true

	// iterate callees in a stable order
	for _, callee := range t.graph.order {
		if !t.graph.edges[word][callee] {
			continue
		}
		if _, seen := t.indices[callee]; !seen {
			t.visit(callee)
			if t.lowlinks[callee] < t.lowlinks[word] {
				t.lowlinks[word] = t.lowlinks[callee]
			}
		} else if t.onStack[callee] {
			if t.indices[callee] < t.lowlinks[word] {
				t.lowlinks[word] = t.indices[callee]
			}
		}
	}

	if t.lowlinks[word] == t.indices[word] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == word {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}
