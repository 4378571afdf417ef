// Package helpers provides shared fixtures for tests that exercise whole
// pipeline runs: canned market data, a canned LLM, and deterministic
// analyst nodes.
package helpers

import (
	"context"
	"maps"
	"testing"

	"github.com/hedgeline/engine/internal/analyst"
	"github.com/hedgeline/engine/internal/events"
	"github.com/hedgeline/engine/pkg/api"
	"github.com/hedgeline/engine/pkg/graph"
)

// RunEnv bundles everything a pipeline run needs, with the built-in
// analyst replaced by a deterministic node
type RunEnv struct {
	Registry *analyst.Registry
	Market   *MockMarket
	Chatter  *MockChatter
	Hub      *events.Hub
}

// DecisionsContent is a canned portfolio manager completion that buys
// ten shares of AAPL
const DecisionsContent = `{"decisions": {"AAPL": {"action": "buy", ` +
	`"quantity": 10, "confidence": 90, "reasoning": "strong signals"}}}`

// NewRunEnv assembles a registry, hub, and canned backends ready for a
// run over AAPL. Callers adjust the mocks before building their service
func NewRunEnv(t *testing.T) *RunEnv {
	t.Helper()

	md := &MockMarket{
		Prices: []api.Price{{Time: "2024-06-30", Close: 100.0}},
	}
	chatter := &MockChatter{Content: DecisionsContent}

	reg := analyst.NewRegistry(md, chatter)
	reg.Register(&analyst.Analyst{
		Key:         "warren_buffett",
		DisplayName: "Warren Buffett",
		Order:       8,
		Node:        SignalsNode("warren_buffett_agent", "bullish"),
	})

	hub := events.NewHub()
	t.Cleanup(hub.Close)

	return &RunEnv{
		Registry: reg,
		Market:   md,
		Chatter:  chatter,
		Hub:      hub,
	}
}

// SignalsNode returns a node that writes a fixed per-ticker signal the
// way the built-in agents do, merging with any signals already present
func SignalsNode(agent, signal string) graph.NodeFunc {
	return func(
		_ context.Context, st *api.State, _ api.Config,
	) (*api.PartialUpdate, error) {
		signals := map[string]any{}
		for _, ticker := range st.Data.GetStrings(analyst.DataTickers) {
			signals[ticker] = map[string]any{
				"signal":     signal,
				"confidence": 80.0,
			}
		}

		merged := map[string]any{}
		if m, ok := st.Data[analyst.DataAnalystSignals].(map[string]any); ok {
			maps.Copy(merged, m)
		}
		merged[agent] = signals

		return &api.PartialUpdate{
			Messages: []api.Message{{Role: api.RoleAssistant, Content: "{}"}},
			Data:     api.Data{analyst.DataAnalystSignals: merged},
		}, nil
	}
}
