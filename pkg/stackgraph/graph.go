// Package stackgraph models the composition of an environment's child stacks:
// which stack produces which outputs, and which stack consumes them as
// inputs. The edges form a DAG whose topological order is the deploy order.
package stackgraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
)

type (
	// OutputKey names a single exported value of a stack.
	OutputKey struct {
		Stack string
		Name  string
	}

	// Binding wires a producer's output into a consumer's named input.
	Binding struct {
		Consumer string
		Input    string
		Source   OutputKey
	}

	Plan struct {
		g        graph.Graph[string, string]
		stacks   map[string]struct{}
		bindings []Binding
	}
)

func (k OutputKey) String() string {
	return fmt.Sprintf("%s.%s", k.Stack, k.Name)
}

func NewPlan() *Plan {
	return &Plan{
		g: graph.New(
			func(name string) string { return name },
			graph.Directed(),
			graph.Acyclic(),
			graph.PreventCycles(),
		),
		stacks: make(map[string]struct{}),
	}
}

// AddStack registers a child stack. Names must be unique within the plan.
func (p *Plan) AddStack(name string) error {
	if name == "" {
		return errors.New("stack name must not be empty")
	}
	if _, ok := p.stacks[name]; ok {
		return fmt.Errorf("duplicate stack %q", name)
	}
	if err := p.g.AddVertex(name); err != nil {
		return fmt.Errorf("could not add stack %q: %w", name, err)
	}
	p.stacks[name] = struct{}{}
	return nil
}

// Bind declares that consumer's input is fed by source. The edge direction is
// producer -> consumer so that deploy order follows edges.
func (p *Plan) Bind(consumer, input string, source OutputKey) error {
	if _, ok := p.stacks[consumer]; !ok {
		return fmt.Errorf("binding %s.%s: unknown consumer stack %q", consumer, input, consumer)
	}
	if _, ok := p.stacks[source.Stack]; !ok {
		return fmt.Errorf("binding %s.%s: unknown producer stack %q", consumer, input, source.Stack)
	}
	if consumer == source.Stack {
		return fmt.Errorf("binding %s.%s: stack cannot consume its own output %s", consumer, input, source)
	}

	err := p.g.AddEdge(source.Stack, consumer)
	switch {
	case errors.Is(err, graph.ErrEdgeAlreadyExists):
		// Multiple bindings between the same pair reuse one edge.
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		return fmt.Errorf("binding %s.%s <- %s would create a dependency cycle: %s",
			consumer, input, source, strings.Join(p.cyclePath(consumer, source.Stack), " -> "))
	case err != nil:
		return fmt.Errorf("binding %s.%s <- %s: %w", consumer, input, source, err)
	}

	p.bindings = append(p.bindings, Binding{Consumer: consumer, Input: input, Source: source})
	return nil
}

// cyclePath walks the existing edges from consumer back to producer. The
// rejected edge producer -> consumer would close that walk into a cycle, so
// the returned path ends on consumer again.
func (p *Plan) cyclePath(consumer, producer string) []string {
	adjacency, err := p.g.AdjacencyMap()
	if err != nil {
		return []string{consumer, producer, consumer}
	}

	visited := make(map[string]struct{})
	var walk func(node string, path []string) []string
	walk = func(node string, path []string) []string {
		path = append(path, node)
		if node == producer {
			return append(path, consumer)
		}
		visited[node] = struct{}{}

		next := make([]string, 0, len(adjacency[node]))
		for succ := range adjacency[node] {
			next = append(next, succ)
		}
		sort.Strings(next)
		for _, succ := range next {
			if _, ok := visited[succ]; ok {
				continue
			}
			if found := walk(succ, path); found != nil {
				return found
			}
		}
		return nil
	}

	if found := walk(consumer, nil); found != nil {
		return found
	}
	return []string{consumer, producer, consumer}
}

// Bindings returns the declared bindings in declaration order.
func (p *Plan) Bindings() []Binding {
	out := make([]Binding, len(p.bindings))
	copy(out, p.bindings)
	return out
}

// Dependencies returns the names of stacks that must be deployed before the
// given stack, sorted for determinism.
func (p *Plan) Dependencies(stack string) ([]string, error) {
	if _, ok := p.stacks[stack]; !ok {
		return nil, fmt.Errorf("unknown stack %q", stack)
	}
	preds, err := p.g.PredecessorMap()
	if err != nil {
		return nil, err
	}
	deps := make([]string, 0, len(preds[stack]))
	for dep := range preds[stack] {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps, nil
}

// DeployOrder returns a stable topological ordering of the plan's stacks.
// Stacks with no ordering constraint between them come out sorted by name so
// repeated runs produce identical plans.
func (p *Plan) DeployOrder() ([]string, error) {
	predecessors, err := p.g.PredecessorMap()
	if err != nil {
		return nil, fmt.Errorf("could not get predecessor map: %w", err)
	}
	if len(predecessors) == 0 {
		return nil, nil
	}

	var queue []string
	for stack, preds := range predecessors {
		if len(preds) == 0 {
			queue = append(queue, stack)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(predecessors))
	visited := make(map[string]struct{})

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if _, ok := visited[current]; ok {
			continue
		}
		order = append(order, current)
		visited[current] = struct{}{}
		delete(predecessors, current)

		var frontier []string
		for stack, preds := range predecessors {
			delete(preds, current)
			if len(preds) == 0 {
				frontier = append(frontier, stack)
			}
		}
		sort.Strings(frontier)
		queue = append(queue, frontier...)
	}

	if len(order) != len(p.stacks) {
		return nil, errors.New("deploy order incomplete, plan contains a cycle")
	}
	return order, nil
}
