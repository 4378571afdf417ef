// Package engine hosts shared identity for the Hedgeline trading
// pipeline service.
package engine

const (
	// Name identifies the service in logs and the health endpoint
	Name = "hedgeline-engine"

	// Version is the release reported by the health endpoint
	Version = "1.0.0"
)
