package lower

import (
	"fmt"
	"strings"

	"martianoff/simc/internal/ast"
)

// CycleError represents a chain of calls that leads back to its start.
type CycleError struct {
	Cycle []string // Function names forming the cycle
	Call  *ast.Call
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("recursive call cycle: %s", strings.Join(e.Cycle, " -> "))
}

// CallGraph records which functions each function calls.
type CallGraph struct {
	order []string
	calls map[string][]*ast.Call
}

// BuildCallGraph collects the calls made by every function of mod, in source
// order.
func BuildCallGraph(mod *ast.Module) *CallGraph {
	g := &CallGraph{calls: make(map[string][]*ast.Call)}
	for _, fn := range mod.Funcs {
		g.order = append(g.order, fn.Name)
		var calls []*ast.Call
		ast.Walk(fn.Body, func(e ast.Expr) bool {
			if c, ok := e.(*ast.Call); ok {
				calls = append(calls, c)
			}
			return true
		})
		g.calls[fn.Name] = calls
	}
	return g
}

// Callees returns the distinct functions called by name, in call order.
func (g *CallGraph) Callees(name string) []string {
	var res []string
	seen := make(map[string]bool)
	for _, c := range g.calls[name] {
		if !seen[c.Name] {
			seen[c.Name] = true
			res = append(res, c.Name)
		}
	}
	return res
}

// DetectCycles checks every function for direct or mutual recursion.
// Returns nil if no cycles are found, or a CycleError describing the first
// cycle found.
func (g *CallGraph) DetectCycles() error {
	// Track visit state: 0 = unvisited, 1 = in progress, 2 = done
	state := make(map[string]int)
	// Track the path for cycle reporting
	path := make([]string, 0)

	var visit func(name string) error
	visit = func(name string) error {
		state[name] = 1
		path = append(path, name)

		for _, call := range g.calls[name] {
			switch state[call.Name] {
			case 2:
				continue
			case 1:
				cycleStart := 0
				for i, p := range path {
					if p == call.Name {
						cycleStart = i
						break
					}
				}
				cycle := append(append([]string(nil), path[cycleStart:]...), call.Name)
				return &CycleError{Cycle: cycle, Call: call}
			}
			if _, ok := g.calls[call.Name]; !ok {
				continue
			}
			if err := visit(call.Name); err != nil {
				return err
			}
		}

		state[name] = 2
		path = path[:len(path)-1]
		return nil
	}

	// Visit every function so unreachable cycles are found too
	for _, name := range g.order {
		if state[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopologicalSort returns the functions reachable from root with callees
// before callers. It returns an error if a cycle is detected.
func (g *CallGraph) TopologicalSort(root string) ([]string, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	var result []string
	visited := make(map[string]bool)

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true

		// Visit callees first
		for _, callee := range g.Callees(name) {
			visit(callee)
		}

		result = append(result, name)
	}

	visit(root)
	return result, nil
}
