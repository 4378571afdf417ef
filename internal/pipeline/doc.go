// Package pipeline assembles analyst graphs and runs them. A run wires
// the selected analysts into a linear chain ending in the risk and
// portfolio manager stages, seeds the initial state from the request,
// and publishes lifecycle events while the graph executes.
package pipeline
