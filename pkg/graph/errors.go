package graph

import "errors"

// Configuration errors, reported when a definition is compiled
var (
	ErrNoEntryPoint    = errors.New("no entry point set")
	ErrUnknownNode     = errors.New("unknown node")
	ErrReservedName    = errors.New("node name is reserved")
	ErrBuilderConsumed = errors.New("graph definition already compiled")
)

// Structure errors, reported while an invocation walks the graph
var (
	ErrCycleDetected = errors.New("cycle detected at node")
	ErrDeadEnd       = errors.New("dead end at node")
)

// ErrNodeFailed wraps the error a node capability produced. The failing
// node's name and the original error both travel in the chain
var ErrNodeFailed = errors.New("node execution failed")
