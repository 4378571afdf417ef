package graph

import (
	"context"
	"fmt"

	"github.com/hedgeline/engine/pkg/api"
)

type (
	// Name identifies a registered node within a graph
	Name string

	// Node is the capability contract every pipeline step implements. A
	// node receives the accumulated run state and the opaque per-run
	// config, and declares its side effect as a partial update. Nodes
	// must treat absent state keys as normal, not as errors
	Node interface {
		Run(context.Context, *api.State, api.Config) (*api.PartialUpdate, error)
	}

	// NodeFunc adapts an ordinary function to the Node interface
	NodeFunc func(context.Context, *api.State, api.Config) (*api.PartialUpdate, error)

	// Builder accumulates a mutable graph definition: named nodes, their
	// ordered successor lists, and the entry node. Compile freezes the
	// definition and consumes the builder
	Builder struct {
		nodes map[Name]Node
		edges map[Name][]Name
		entry Name
		err   error
		done  bool
	}

	// CompiledGraph is an immutable snapshot of a graph definition. It is
	// safe to invoke repeatedly and concurrently; invocations share no
	// state beyond the graph's read-only structure
	CompiledGraph struct {
		nodes map[Name]Node
		edges map[Name][]Name
		entry Name
	}
)

// End is the reserved terminal sentinel. It ends an invocation when
// reached and is never a real, invokable node
const End Name = "END"

// Run calls f
func (f NodeFunc) Run(
	ctx context.Context, st *api.State, cfg api.Config,
) (*api.PartialUpdate, error) {
	return f(ctx, st, cfg)
}

// New creates an empty graph builder
func New() *Builder {
	return &Builder{
		nodes: map[Name]Node{},
		edges: map[Name][]Name{},
	}
}

// AddNode binds a name to a node capability. The last registration for a
// name wins. Registering the terminal sentinel is a configuration error
// reported by Compile
func (b *Builder) AddNode(name Name, node Node) *Builder {
	if !b.usable() {
		return b
	}
	if name == End {
		b.err = fmt.Errorf("%w: %s", ErrReservedName, name)
		return b
	}
	b.nodes[name] = node
	return b
}

// AddNodeFunc binds a name to a plain node function
func (b *Builder) AddNodeFunc(name Name, fn NodeFunc) *Builder {
	return b.AddNode(name, fn)
}

// AddEdge appends to the ordered successor list of from. Multiple calls
// accumulate successors, but an invocation only ever follows the first;
// later successors are unreachable by construction
func (b *Builder) AddEdge(from, to Name) *Builder {
	if !b.usable() {
		return b
	}
	b.edges[from] = append(b.edges[from], to)
	return b
}

// SetEntry designates the starting node. The last call wins
func (b *Builder) SetEntry(name Name) *Builder {
	if !b.usable() {
		return b
	}
	b.entry = name
	return b
}

// Compile validates the definition and freezes it into a CompiledGraph.
// The builder is consumed: further mutation and recompilation fail
func (b *Builder) Compile() (*CompiledGraph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.done {
		return nil, ErrBuilderConsumed
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	res := &CompiledGraph{
		nodes: b.nodes,
		edges: b.edges,
		entry: b.entry,
	}
	b.nodes = nil
	b.edges = nil
	b.done = true
	return res, nil
}

// Entry returns the designated starting node
func (g *CompiledGraph) Entry() Name {
	return g.entry
}

func (b *Builder) usable() bool {
	if b.done && b.err == nil {
		b.err = ErrBuilderConsumed
	}
	return b.err == nil
}

func (b *Builder) validate() error {
	if b.entry == "" {
		return ErrNoEntryPoint
	}
	if err := b.checkName(b.entry); err != nil {
		return fmt.Errorf("entry point: %w", err)
	}
	for from, succs := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			return fmt.Errorf("edge source: %w: %s", ErrUnknownNode, from)
		}
		for _, to := range succs {
			if err := b.checkName(to); err != nil {
				return fmt.Errorf("edge %s -> %s: %w", from, to, err)
			}
		}
	}
	return nil
}

// checkName accepts registered nodes and the terminal sentinel
func (b *Builder) checkName(name Name) error {
	if name == End {
		return nil
	}
	if _, ok := b.nodes[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	return nil
}
