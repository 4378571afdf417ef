package analyst

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/hedgeline/engine/pkg/api"
	"github.com/hedgeline/engine/pkg/graph"
	"github.com/hedgeline/engine/pkg/log"
)

// RiskAgent sizes positions rather than judging direction. Every ticker is
// capped at a fixed share of total portfolio value, and the remaining
// headroom is clamped to available cash
type RiskAgent struct {
	market MarketData
}

// RiskNodeName is the graph node every pipeline run passes through after
// its analysts and before the portfolio manager
const RiskNodeName graph.Name = riskAgentName

const (
	riskAgentName = "risk_management_agent"

	// Largest share of total portfolio value a single position may take.
	positionLimitRatio = 0.20
)

// NewRiskAgent returns the position sizing node
func NewRiskAgent(md MarketData) *RiskAgent {
	return &RiskAgent{market: md}
}

// Run computes per-ticker position limits from recent prices and the
// current portfolio, then merges them into the run's analyst signals
func (a *RiskAgent) Run(
	ctx context.Context, st *api.State, _ api.Config,
) (*api.PartialUpdate, error) {
	portfolio, ok := portfolioFromState(st)
	tickers := st.Data.GetStrings(DataTickers)
	startDate := st.Data.GetString(DataStartDate, "")
	endDate := st.Data.GetString(DataEndDate, "")
	if !ok || len(tickers) == 0 || startDate == "" || endDate == "" {
		slog.Error("Risk agent is missing its portfolio, tickers, or dates")
		return &api.PartialUpdate{}, nil
	}

	totalValue := portfolio.Cash
	for _, cost := range portfolio.CostBasis {
		totalValue += cost
	}
	positionLimit := totalValue * positionLimitRatio

	analysis := make(map[string]any, len(tickers))
	for _, ticker := range tickers {
		prices, err := a.market.GetPrices(ctx, ticker, startDate, endDate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ticker, err)
		}
		if len(prices) == 0 {
			slog.Warn("No price data for ticker", log.Ticker(ticker))
			continue
		}

		// Prices arrive oldest first, so the last close is current.
		currentPrice := prices[len(prices)-1].Close
		currentPosition := portfolio.CostBasis[ticker]
		remaining := positionLimit - currentPosition

		analysis[ticker] = map[string]any{
			"remaining_position_limit": math.Min(remaining, portfolio.Cash),
			"current_price":            currentPrice,
			"reasoning": map[string]any{
				"portfolio_value":  totalValue,
				"current_position": currentPosition,
				"position_limit":   positionLimit,
				"remaining_limit":  remaining,
				"available_cash":   portfolio.Cash,
			},
		}
	}
	return signalUpdate(st, riskAgentName, analysis)
}
