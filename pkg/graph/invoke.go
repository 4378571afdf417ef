package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hedgeline/engine/internal/util"
	"github.com/hedgeline/engine/pkg/api"
	"github.com/hedgeline/engine/pkg/log"
)

// Invoke walks the graph from its entry node, calling each node with the
// accumulated state and a clone of cfg, merging the returned partial
// update, and following the first outgoing edge, until the terminal
// sentinel is reached. Nodes run strictly one after another; the first
// failure aborts the invocation. The final state is returned on success.
// A nil initial state starts from an empty one
func (g *CompiledGraph) Invoke(
	ctx context.Context, initial *api.State, cfg api.Config,
) (*api.State, error) {
	st := initial
	if st == nil {
		st = api.NewState()
	}

	visited := util.Set[Name]{}
	for current := g.entry; current != End; {
		if visited.Contains(current) {
			return nil, fmt.Errorf("%w: %s", ErrCycleDetected, current)
		}
		visited.Add(current)

		node, ok := g.nodes[current]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, current)
		}

		start := time.Now()
		update, err := node.Run(ctx, st, cfg.Clone())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNodeFailed, current, err)
		}
		st = st.Apply(update)

		slog.Debug("Node completed",
			log.Node(current),
			slog.Duration("duration", time.Since(start)))

		succs := g.edges[current]
		if len(succs) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrDeadEnd, current)
		}
		current = succs[0]
	}
	return st, nil
}
