// Package graph implements the pipeline execution engine
//
// A caller registers named node capabilities and directed edges on a
// Builder, compiles the definition once, then invokes the compiled graph
// many times with fresh initial states. Each invocation walks nodes
// strictly sequentially from the entry node, merging every node's partial
// update into the run state, until the terminal sentinel is reached
package graph
