package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/hedgeline/engine/internal/llm"
	"github.com/hedgeline/engine/pkg/api"
	"github.com/hedgeline/engine/pkg/graph"
	"github.com/hedgeline/engine/pkg/log"
)

// PortfolioManager is the last agent in every pipeline. It folds the
// accumulated analyst signals and the risk agent's position limits into a
// final per-ticker trading decision via the selected language model
type PortfolioManager struct {
	chatter llm.Chatter
}

// PortfolioNodeName is the final graph node of every pipeline run
const PortfolioNodeName graph.Name = portfolioManagerName

const portfolioManagerName = "portfolio_manager"

const portfolioSystemPrompt = `You are a portfolio manager making final trading decisions based on multiple tickers.
Trading Rules:
- For long positions:
* Only buy if you have available cash
* Only sell if you currently hold long shares of that ticker
* Sell quantity must be ≤ current long position shares
* Buy quantity must be ≤ max_shares for that ticker

- For short positions:
* Only short if you have available margin (position value × margin requirement)
* Only cover if you currently have short shares of that ticker
* Cover quantity must be ≤ current short position shares
* Short quantity must respect margin requirements

- The max_shares values are pre-calculated to respect position limits
- Consider both long and short opportunities based on signals
- Maintain appropriate risk management with both long and short exposure

Available Actions:
- "buy": Open or add to long position
- "sell": Close or reduce long position
- "short": Open or add to short position
- "cover": Close or reduce short position
- "hold": No action

Inputs:
- signals_by_ticker: dictionary of ticker → signals
- max_shares: maximum shares allowed per ticker
- portfolio_cash: current cash in portfolio
- portfolio_positions: current positions (both long and short)
- current_prices: current prices for each ticker
- margin_requirement: current margin requirement for short positions (e.g., 0.5 means 50%)
- total_margin_used: total margin currently in use`

const portfolioUserPrompt = `Based on the team's analysis, make your trading decisions for each ticker.
Here are the signals by ticker:
%s

Current Prices:
%s

Maximum Shares Allowed For Purchases:
%s

Portfolio Cash: %.2f
Current Positions: %s
Current Margin Requirement: %.2f
Total Margin Used: %.2f

Output strictly in JSON with the following structure without any explanation:
{
  "decisions": {
    "TICKER1": {
      "action": "buy/sell/short/cover/hold",
      "quantity": integer,
      "confidence": float between 0 and 100,
      "reasoning": "string"
    },
    "TICKER2": {
      ...
    },
    ...
  }
}`

// NewPortfolioManager returns the decision node
func NewPortfolioManager(chatter llm.Chatter) *PortfolioManager {
	return &PortfolioManager{chatter: chatter}
}

// Run produces the run's final assistant message: a JSON map of ticker to
// trading decision
func (a *PortfolioManager) Run(
	ctx context.Context, st *api.State, _ api.Config,
) (*api.PartialUpdate, error) {
	portfolio, ok := portfolioFromState(st)
	_, hasSignals := st.Data[DataAnalystSignals]
	tickers := st.Data.GetStrings(DataTickers)
	if !ok || !hasSignals || len(tickers) == 0 {
		slog.Error(
			"Portfolio manager is missing its portfolio, signals, or tickers")
		return &api.PartialUpdate{}, nil
	}
	signals := analystSignals(st)
	riskAnalysis, _ := signals[riskAgentName].(map[string]any)

	currentPrices := make(map[string]float64, len(tickers))
	maxShares := make(map[string]int64, len(tickers))
	signalsByTicker := make(map[string]map[string]any, len(tickers))

	for _, ticker := range tickers {
		var limit, price float64
		if rd, ok := riskAnalysis[ticker].(map[string]any); ok {
			limit, _ = rd["remaining_position_limit"].(float64)
			price, _ = rd["current_price"].(float64)
		}
		currentPrices[ticker] = price
		if price > 0 {
			maxShares[ticker] = int64(limit / price)
		} else {
			maxShares[ticker] = 0
		}

		tickerSignals := map[string]any{}
		for agent, agentSignals := range signals {
			if agent == riskAgentName {
				continue
			}
			am, ok := agentSignals.(map[string]any)
			if !ok {
				continue
			}
			ts, ok := am[ticker].(map[string]any)
			if !ok {
				continue
			}
			entry := map[string]any{}
			if s, ok := ts["signal"].(string); ok {
				entry["signal"] = s
			}
			if c, ok := ts["confidence"].(float64); ok {
				entry["confidence"] = c
			}
			tickerSignals[agent] = entry
		}
		signalsByTicker[ticker] = tickerSignals
	}

	model, provider, ok := modelFromState(st)
	if !ok {
		slog.Error("Portfolio manager is missing the run's model selection")
		return &api.PartialUpdate{}, nil
	}

	decisions, err := a.decide(ctx, decisionInputs{
		tickers:         tickers,
		signalsByTicker: signalsByTicker,
		currentPrices:   currentPrices,
		maxShares:       maxShares,
		portfolio:       portfolio,
	}, model, provider)
	if err != nil {
		return nil, err
	}

	content, err := json.Marshal(decisions)
	if err != nil {
		return nil, err
	}
	logReasoning(st, portfolioManagerName, string(content))
	return &api.PartialUpdate{
		Messages: []api.Message{{
			Role:    api.RoleAssistant,
			Content: string(content),
		}},
	}, nil
}

type decisionInputs struct {
	tickers         []string
	signalsByTicker map[string]map[string]any
	currentPrices   map[string]float64
	maxShares       map[string]int64
	portfolio       *api.Portfolio
}

// decide asks the language model for decisions. Transport errors propagate;
// an unparseable response degrades to holding every ticker
func (a *PortfolioManager) decide(
	ctx context.Context, in decisionInputs, model string,
	provider api.Provider,
) (map[string]*api.Decision, error) {
	signalsJSON, err := json.MarshalIndent(in.signalsByTicker, "", "  ")
	if err != nil {
		return nil, err
	}
	pricesJSON, err := json.MarshalIndent(in.currentPrices, "", "  ")
	if err != nil {
		return nil, err
	}
	sharesJSON, err := json.MarshalIndent(in.maxShares, "", "  ")
	if err != nil {
		return nil, err
	}
	positionsJSON, err := json.MarshalIndent(in.portfolio.Positions, "", "  ")
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(portfolioUserPrompt,
		signalsJSON, pricesJSON, sharesJSON,
		in.portfolio.Cash, positionsJSON,
		in.portfolio.MarginRequirement, in.portfolio.MarginUsed)

	content, err := a.chatter.Chat(ctx, provider, model, []api.Message{
		{Role: api.RoleSystem, Content: portfolioSystemPrompt},
		{Role: api.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	raw := gjson.Get(content, "decisions")
	if !raw.Exists() {
		return holdEverything(in.tickers,
			errors.New("response carries no decisions")), nil
	}
	var decisions map[string]*api.Decision
	if err := json.Unmarshal([]byte(raw.Raw), &decisions); err != nil {
		return holdEverything(in.tickers, err), nil
	}
	for ticker, d := range decisions {
		if d == nil {
			return holdEverything(in.tickers,
				fmt.Errorf("null decision for %s", ticker)), nil
		}
		action, err := api.ParseAction(string(d.Action))
		if err != nil {
			return holdEverything(in.tickers, err), nil
		}
		d.Action = action
	}
	return decisions, nil
}

// holdEverything is the fallback when the model's response cannot be used
func holdEverything(tickers []string, err error) map[string]*api.Decision {
	slog.Error("Failed to parse trading decisions", log.Error(err))
	decisions := make(map[string]*api.Decision, len(tickers))
	for _, ticker := range tickers {
		decisions[ticker] = api.HoldDecision(
			"Error in portfolio management, defaulting to hold")
	}
	return decisions
}
