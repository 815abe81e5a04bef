// Package depgraph analyzes the explicit dependency edges of a
// CloudFormation template: deployment ordering, cycles, and references to
// resources that do not exist.
package depgraph

import (
	"fmt"

	"github.com/dominikbraun/graph"

	"github.com/fabrichq/fabric-aws-cdk/assembly"
)

// Reference is a DependsOn entry pointing at a resource missing from the
// template. The renderer still draws these edges; they are surfaced here
// so a batch run can warn about them.
type Reference struct {
	// Resource declared the dependency.
	Resource string

	// Target is the missing logical ID.
	Target string
}

// Analysis is the result of analyzing one template.
type Analysis struct {
	// Order lists all resources in a valid deployment order: every
	// resource appears after the resources it depends on. Ties are
	// broken by name so the order is stable.
	Order []string

	// Dangling lists DependsOn entries whose target is not in the
	// template.
	Dangling []Reference
}

// Analyze builds the dependency graph for a template and computes a
// deployment order. It fails when the explicit dependencies form a cycle,
// which CloudFormation would reject at deploy time.
func Analyze(t *assembly.Template) (*Analysis, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	names := make(map[string]bool, len(t.Resources))
	for _, r := range t.Resources {
		names[r.Name] = true
		if err := g.AddVertex(r.Name); err != nil {
			return nil, fmt.Errorf("adding resource %s: %w", r.Name, err)
		}
	}

	analysis := &Analysis{}

	// An edge dep -> resource means dep must be created first.
	for _, r := range t.Resources {
		for _, dep := range r.DependsOn {
			if !names[dep] {
				analysis.Dangling = append(analysis.Dangling, Reference{Resource: r.Name, Target: dep})
				continue
			}
			err := g.AddEdge(dep, r.Name)
			switch err {
			case nil, graph.ErrEdgeAlreadyExists:
			case graph.ErrEdgeCreatesCycle:
				return nil, fmt.Errorf("dependency cycle through %s -> %s", r.Name, dep)
			default:
				return nil, fmt.Errorf("adding edge %s -> %s: %w", dep, r.Name, err)
			}
		}
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		return nil, fmt.Errorf("computing deployment order: %w", err)
	}
	analysis.Order = order

	return analysis, nil
}
