package analyst

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"slices"

	"github.com/hedgeline/engine/internal/llm"
	"github.com/hedgeline/engine/pkg/api"
	"github.com/hedgeline/engine/pkg/graph"
	"github.com/hedgeline/engine/pkg/log"
)

type (
	// MarketData is the slice of the market data client that analyst
	// nodes consume
	MarketData interface {
		GetPrices(ctx context.Context, ticker, startDate, endDate string,
		) ([]api.Price, error)

		GetFinancialMetrics(
			ctx context.Context, ticker, endDate, period string, limit int,
		) ([]api.FinancialMetrics, error)

		SearchLineItems(
			ctx context.Context, ticker string, items []string,
			endDate, period string, limit int,
		) ([]api.LineItem, error)

		GetMarketCap(
			ctx context.Context, ticker, endDate string,
		) (float64, error)
	}

	// Analyst pairs a pipeline node with the listing metadata the API
	// exposes for it
	Analyst struct {
		Key         api.AnalystKey
		DisplayName string
		Order       int
		Node        graph.Node
	}

	// Registry holds the analysts available to pipeline runs. It is
	// populated during startup and read-only afterward
	Registry struct {
		analysts map[api.AnalystKey]*Analyst
	}
)

// State keys shared between the pipeline service that seeds a run and
// the agents that read it.
const (
	DataTickers        = "tickers"
	DataStartDate      = "start_date"
	DataEndDate        = "end_date"
	DataPortfolio      = "portfolio"
	DataAnalystSignals = "analyst_signals"

	MetaModelName     = "model_name"
	MetaModelProvider = "model_provider"
	MetaShowReasoning = "show_reasoning"
)

// NewRegistry returns a registry seeded with the built-in analysts
func NewRegistry(md MarketData, chatter llm.Chatter) *Registry {
	r := &Registry{
		analysts: map[api.AnalystKey]*Analyst{},
	}
	r.Register(&Analyst{
		Key:         "warren_buffett",
		DisplayName: "Warren Buffett",
		Order:       8,
		Node:        NewBuffettAgent(md, chatter),
	})
	return r
}

// Register adds an analyst, replacing any prior registration of its key
func (r *Registry) Register(a *Analyst) {
	r.analysts[a.Key] = a
}

// Lookup returns the analyst registered for key
func (r *Registry) Lookup(key api.AnalystKey) (*Analyst, bool) {
	a, ok := r.analysts[key]
	return a, ok
}

// Keys returns every registered analyst key in listing order
func (r *Registry) Keys() []api.AnalystKey {
	res := make([]api.AnalystKey, 0, len(r.analysts))
	for key := range r.analysts {
		res = append(res, key)
	}
	slices.SortFunc(res, func(a, b api.AnalystKey) int {
		if d := r.analysts[a].Order - r.analysts[b].Order; d != 0 {
			return d
		}
		return cmp.Compare(a, b)
	})
	return res
}

// List returns the listing metadata for every analyst in listing order
func (r *Registry) List() []*api.AnalystInfo {
	res := make([]*api.AnalystInfo, 0, len(r.analysts))
	for _, key := range r.Keys() {
		a := r.analysts[key]
		res = append(res, &api.AnalystInfo{
			Key:         a.Key,
			DisplayName: a.DisplayName,
			Order:       a.Order,
		})
	}
	return res
}

// NodeName returns the pipeline node name for an analyst key
func NodeName(key api.AnalystKey) graph.Name {
	return graph.Name(string(key) + "_agent")
}

// analystSignals returns the signal map accumulated in run state so far
func analystSignals(st *api.State) map[string]any {
	if m, ok := st.Data[DataAnalystSignals].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// signalUpdate merges an agent's per-ticker output into the run's analyst
// signal map and pairs it with the assistant message downstream agents
// read. Existing signals from other agents are preserved
func signalUpdate(
	st *api.State, agent string, signals map[string]any,
) (*api.PartialUpdate, error) {
	content, err := json.Marshal(signals)
	if err != nil {
		return nil, err
	}

	merged := map[string]any{}
	maps.Copy(merged, analystSignals(st))
	merged[agent] = signals

	logReasoning(st, agent, string(content))
	return &api.PartialUpdate{
		Messages: []api.Message{{
			Role:    api.RoleAssistant,
			Content: string(content),
		}},
		Data: api.Data{DataAnalystSignals: merged},
	}, nil
}

// logReasoning surfaces an agent's full output when the run asks for it
func logReasoning(st *api.State, agent, content string) {
	if st.Metadata.GetBool(MetaShowReasoning, false) {
		slog.Info("Agent reasoning",
			log.Analyst(agent),
			slog.String("output", content))
	}
}

// modelFromState reads the model selection shared by the LLM-backed
// agents. Reports false when the run carries no usable selection
func modelFromState(st *api.State) (string, api.Provider, bool) {
	name := st.Metadata.GetString(MetaModelName, "")
	rawProvider := st.Metadata.GetString(MetaModelProvider, "")
	if name == "" || rawProvider == "" {
		return "", "", false
	}
	provider, err := api.ParseProvider(rawProvider)
	if err != nil {
		return "", "", false
	}
	return name, provider, true
}

// portfolioFromState pulls the portfolio seeded into run state. The value
// stays in-process for the life of a run, so a type assertion suffices
func portfolioFromState(st *api.State) (*api.Portfolio, bool) {
	p, ok := st.Data[DataPortfolio].(*api.Portfolio)
	return p, ok && p != nil
}
