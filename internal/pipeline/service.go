package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hedgeline/engine/internal/analyst"
	"github.com/hedgeline/engine/internal/events"
	"github.com/hedgeline/engine/internal/llm"
	"github.com/hedgeline/engine/pkg/api"
	"github.com/hedgeline/engine/pkg/graph"
	"github.com/hedgeline/engine/pkg/log"
)

// Service turns run requests into graph invocations. The graph for a run
// chains the selected analysts in registry order, then the risk stage,
// then the portfolio manager
type Service struct {
	registry *analyst.Registry
	hub      *events.Hub
	risk     graph.Node
	manager  graph.Node

	// Compiled once over every registered analyst, so requests without an
	// explicit selection skip graph assembly
	defaultGraph *graph.CompiledGraph
	defaultKeys  []api.AnalystKey
}

const (
	startNodeName graph.Name = "start_node"

	// configRunID carries the run identifier to instrumented nodes
	configRunID = "run_id"

	// kickoffContent opens the conversation that agents append to
	kickoffContent = "Make trading decisions based on the provided data."

	defaultInitialCash  = 100000.0
	defaultLookbackDays = 90
)

// Model selection applied when a request leaves it out.
const (
	DefaultModelName     = "gpt-4o"
	DefaultModelProvider = api.ProviderOpenAI
)

var ErrUnknownAnalyst = errors.New("unknown analyst")

// New creates a pipeline service and compiles its default graph
func New(
	reg *analyst.Registry, md analyst.MarketData, chatter llm.Chatter,
	hub *events.Hub,
) (*Service, error) {
	s := &Service{
		registry: reg,
		hub:      hub,
		risk:     analyst.NewRiskAgent(md),
		manager:  analyst.NewPortfolioManager(chatter),
	}

	keys := reg.Keys()
	g, err := s.compile(keys)
	if err != nil {
		return nil, err
	}
	s.defaultGraph = g
	s.defaultKeys = keys
	return s, nil
}

// Run executes one pipeline invocation for the request, publishing
// lifecycle events along the way, and collects the final decisions and
// accumulated analyst signals
func (s *Service) Run(
	ctx context.Context, req *api.RunRequest,
) (*api.RunResponse, error) {
	g, keys := s.defaultGraph, s.defaultKeys
	if len(req.SelectedAnalysts) > 0 {
		var err error
		if keys, err = s.selectKeys(req.SelectedAnalysts); err != nil {
			return nil, err
		}
		if g, err = s.compile(keys); err != nil {
			return nil, err
		}
	}

	runID := api.NewRunID()
	slog.Info("Run started",
		log.RunID(runID),
		slog.Int("tickers", len(req.Tickers)),
		slog.Int("analysts", len(keys)))
	s.hub.Publish(api.EventTypeRunStarted, runID, &api.RunStartedEvent{
		Tickers:  req.Tickers,
		Analysts: keys,
	})

	start := time.Now()
	final, err := g.Invoke(ctx, seedState(req), api.Config{
		configRunID: string(runID),
	})
	if err != nil {
		if !errors.Is(err, graph.ErrNodeFailed) {
			// Node failures are published by the node that observed them
			s.hub.Publish(api.EventTypeRunFailed, runID,
				&api.RunFailedEvent{Error: err.Error()})
		}
		slog.Error("Run failed",
			log.RunID(runID),
			log.Error(err))
		return nil, err
	}
	dur := time.Since(start)

	s.hub.Publish(api.EventTypeRunCompleted, runID,
		&api.RunCompletedEvent{Duration: dur.Milliseconds()})
	slog.Info("Run completed",
		log.RunID(runID),
		slog.Duration("duration", dur))

	return &api.RunResponse{
		RunID:          runID,
		Decisions:      decisionsFromState(final),
		AnalystSignals: signalsFromState(final),
	}, nil
}

// Analysts returns the keys the default graph runs, in registry order
func (s *Service) Analysts() []api.AnalystKey {
	return s.defaultKeys
}

// selectKeys resolves a requested selection against the registry,
// normalizing each key, dropping duplicates, and restoring registry order
func (s *Service) selectKeys(
	selected []api.AnalystKey,
) ([]api.AnalystKey, error) {
	want := make(map[api.AnalystKey]bool, len(selected))
	for _, raw := range selected {
		key := api.SanitizeKey(raw)
		if _, ok := s.registry.Lookup(key); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAnalyst, raw)
		}
		want[key] = true
	}

	res := make([]api.AnalystKey, 0, len(want))
	for _, key := range s.registry.Keys() {
		if want[key] {
			res = append(res, key)
		}
	}
	return res, nil
}

// compile assembles the linear run graph for the given analyst keys
func (s *Service) compile(
	keys []api.AnalystKey,
) (*graph.CompiledGraph, error) {
	b := graph.New().
		AddNode(startNodeName,
			s.instrument(startNodeName, graph.NodeFunc(startNode))).
		SetEntry(startNodeName)

	prev := startNodeName
	for _, key := range keys {
		a, ok := s.registry.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAnalyst, key)
		}
		name := analyst.NodeName(key)
		b.AddNode(name, s.instrument(name, a.Node))
		b.AddEdge(prev, name)
		prev = name
	}

	b.AddNode(analyst.RiskNodeName, s.instrument(analyst.RiskNodeName, s.risk))
	b.AddEdge(prev, analyst.RiskNodeName)

	b.AddNode(analyst.PortfolioNodeName,
		s.instrument(analyst.PortfolioNodeName, s.manager))
	b.AddEdge(analyst.RiskNodeName, analyst.PortfolioNodeName)
	b.AddEdge(analyst.PortfolioNodeName, graph.End)

	return b.Compile()
}

// instrument wraps a node so its start, completion, and failure are
// published to the event hub under the run that invoked it
func (s *Service) instrument(name graph.Name, node graph.Node) graph.Node {
	return graph.NodeFunc(func(
		ctx context.Context, st *api.State, cfg api.Config,
	) (*api.PartialUpdate, error) {
		id, _ := cfg[configRunID].(string)
		runID := api.RunID(id)

		s.hub.Publish(api.EventTypeNodeStarted, runID,
			&api.NodeStartedEvent{Node: string(name)})

		start := time.Now()
		update, err := node.Run(ctx, st, cfg)
		if err != nil {
			s.hub.Publish(api.EventTypeRunFailed, runID, &api.RunFailedEvent{
				Node:  string(name),
				Error: err.Error(),
			})
			return nil, err
		}

		s.hub.Publish(api.EventTypeNodeCompleted, runID,
			&api.NodeCompletedEvent{
				Node:     string(name),
				Duration: time.Since(start).Milliseconds(),
			})
		return update, nil
	})
}

// startNode anchors every chain. State is seeded by the service before
// Invoke, so there is nothing left to do here
func startNode(
	context.Context, *api.State, api.Config,
) (*api.PartialUpdate, error) {
	return &api.PartialUpdate{}, nil
}

// seedState builds the initial run state: the kickoff message, the data
// every agent reads, and the model selection metadata
func seedState(req *api.RunRequest) *api.State {
	endDate := req.EndDate
	if endDate == "" {
		endDate = time.Now().Format(api.DateLayout)
	}
	startDate := req.StartDate
	if startDate == "" {
		end, err := time.Parse(api.DateLayout, endDate)
		if err != nil {
			end = time.Now()
		}
		startDate = end.AddDate(0, 0, -defaultLookbackDays).
			Format(api.DateLayout)
	}

	cash := defaultInitialCash
	if req.InitialCash != nil {
		cash = *req.InitialCash
	}
	var margin float64
	if req.MarginRequirement != nil {
		margin = *req.MarginRequirement
	}

	model := req.ModelName
	if model == "" {
		model = DefaultModelName
	}
	provider := req.ModelProvider
	if provider == "" {
		provider = DefaultModelProvider
	}

	return api.NewState().
		WithMessages(api.Message{
			Role:    api.RoleUser,
			Content: kickoffContent,
		}).
		WithData(api.Data{
			analyst.DataTickers:        req.Tickers,
			analyst.DataStartDate:      startDate,
			analyst.DataEndDate:        endDate,
			analyst.DataPortfolio:      api.NewPortfolio(cash, margin, req.Tickers),
			analyst.DataAnalystSignals: map[string]any{},
		}).
		WithMetadata(api.Data{
			analyst.MetaModelName:     model,
			analyst.MetaModelProvider: string(provider),
			analyst.MetaShowReasoning: req.ShowReasoning,
		})
}

// decisionsFromState parses the portfolio manager's closing message. A
// run that ends without parseable decisions yields nil rather than an
// error, matching the schemaless response contract
func decisionsFromState(st *api.State) map[string]*api.Decision {
	if len(st.Messages) == 0 {
		return nil
	}
	last := st.Messages[len(st.Messages)-1]

	var decisions map[string]*api.Decision
	if err := json.Unmarshal([]byte(last.Content), &decisions); err != nil {
		slog.Error("Failed to parse final decisions",
			log.Error(err))
		return nil
	}
	return decisions
}

// signalsFromState collects the per-agent signal maps accumulated in run
// state, keyed by agent then ticker
func signalsFromState(st *api.State) map[string]map[string]any {
	raw, _ := st.Data[analyst.DataAnalystSignals].(map[string]any)
	res := make(map[string]map[string]any, len(raw))
	for agent, v := range raw {
		if byTicker, ok := v.(map[string]any); ok {
			res[agent] = byTicker
		}
	}
	return res
}
