package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/hedgeline/engine/internal/llm"
	"github.com/hedgeline/engine/internal/market"
	"github.com/hedgeline/engine/pkg/api"
	"github.com/hedgeline/engine/pkg/log"
)

// BuffettAgent scores tickers against Warren Buffett's playbook: strong
// fundamentals, consistent earnings, a durable moat, shareholder-friendly
// management, and a margin of safety against a DCF of owner earnings. The
// quantitative read is then turned into a final signal by the selected
// language model
type BuffettAgent struct {
	market  MarketData
	chatter llm.Chatter
}

const (
	buffettAgentName = "warren_buffett_agent"

	// Reporting periods of history fetched per ticker.
	buffettHistory = 5

	// Sub-analysis score ceilings.
	fundamentalMaxScore = 7
	consistencyMaxScore = 3
	moatMaxScore        = 3
	managementMaxScore  = 2
	buffettMaxScore     = fundamentalMaxScore + consistencyMaxScore +
		moatMaxScore + managementMaxScore

	// Owner earnings DCF assumptions.
	buffettGrowthRate       = 0.05
	buffettDiscountRate     = 0.09
	buffettTerminalMultiple = 12
	buffettProjectionYears  = 10

	// Maintenance share of reported capital expenditure.
	maintenanceCapexRatio = 0.75
)

var buffettLineItems = []string{
	"capital_expenditure",
	"depreciation_and_amortization",
	"net_income",
	"outstanding_shares",
	"total_assets",
	"total_liabilities",
	"dividends_and_other_cash_distributions",
	"issuance_or_purchase_of_equity_shares",
}

const buffettSystemPrompt = `You are a Warren Buffett AI agent. Decide on investment signals based on Warren Buffett's principles:
- Circle of Competence: Only invest in businesses you understand
- Margin of Safety (> 30%): Buy at a significant discount to intrinsic value
- Economic Moat: Look for durable competitive advantages
- Quality Management: Seek conservative, shareholder-oriented teams
- Financial Strength: Favor low debt, strong returns on equity
- Long-term Horizon: Invest in businesses, not just stocks
- Sell only if fundamentals deteriorate or valuation far exceeds intrinsic value

When providing your reasoning, be thorough and specific by:
1. Explaining the key factors that influenced your decision the most (both positive and negative)
2. Highlighting how the company aligns with or violates specific Buffett principles
3. Providing quantitative evidence where relevant (e.g., specific margins, ROE values, debt levels)
4. Concluding with a Buffett-style assessment of the investment opportunity
5. Using Warren Buffett's voice and conversational style in your explanation

For example, if bullish: "I'm particularly impressed with [specific strength], reminiscent of our early investment in See's Candies where we saw [similar attribute]..."
For example, if bearish: "The declining returns on capital remind me of the textile operations at Berkshire that we eventually exited because..."

Follow these guidelines strictly.`

const buffettUserPrompt = `Based on the following data, create the investment signal as Warren Buffett would:

Analysis Data for %s:
%s

Return the trading signal in the following JSON format exactly without any explanation:
{
  "signal": "bullish" | "bearish" | "neutral",
  "confidence": float between 0 and 100,
  "reasoning": "string"
}`

// NewBuffettAgent returns the Warren Buffett analyst node
func NewBuffettAgent(md MarketData, chatter llm.Chatter) *BuffettAgent {
	return &BuffettAgent{
		market:  md,
		chatter: chatter,
	}
}

// Run analyzes every ticker in the run and merges a per-ticker signal map
// into the run's analyst signals
func (a *BuffettAgent) Run(
	ctx context.Context, st *api.State, _ api.Config,
) (*api.PartialUpdate, error) {
	tickers := st.Data.GetStrings(DataTickers)
	endDate := st.Data.GetString(DataEndDate, "")
	if len(tickers) == 0 || endDate == "" {
		slog.Warn("Buffett agent has no tickers or end date to work with")
		return &api.PartialUpdate{}, nil
	}
	model, provider, ok := modelFromState(st)
	if !ok {
		slog.Error("Buffett agent is missing the run's model selection")
		return &api.PartialUpdate{}, nil
	}

	signals := make(map[string]any, len(tickers))
	for _, ticker := range tickers {
		analysis, err := a.analyze(ctx, ticker, endDate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ticker, err)
		}
		sig, err := a.generateSignal(ctx, ticker, analysis, model, provider)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ticker, err)
		}
		signals[ticker] = map[string]any{
			"signal":     string(sig.Signal),
			"confidence": sig.Confidence,
			"reasoning":  sig.Reasoning,
		}
	}
	return signalUpdate(st, buffettAgentName, signals)
}

// analyze runs the quantitative playbook for one ticker and returns the
// analysis payload handed to the language model
func (a *BuffettAgent) analyze(
	ctx context.Context, ticker, endDate string,
) (map[string]any, error) {
	metrics, err := a.market.GetFinancialMetrics(
		ctx, ticker, endDate, market.DefaultPeriod, buffettHistory,
	)
	if err != nil {
		return nil, err
	}
	items, err := a.market.SearchLineItems(
		ctx, ticker, buffettLineItems, endDate,
		market.DefaultPeriod, buffettHistory,
	)
	if err != nil {
		return nil, err
	}

	marketCap, err := a.market.GetMarketCap(ctx, ticker, endDate)
	hasMarketCap := err == nil
	if err != nil && !errors.Is(err, market.ErrNoMarketCap) {
		return nil, err
	}

	fundScore, fundamental := analyzeFundamentals(metrics)
	consScore, consistency := analyzeConsistency(items)
	moatScore, moat := analyzeMoat(metrics)
	mgmtScore, management := analyzeManagement(items)
	iv, hasIV, valuation := intrinsicValue(items)

	totalScore := fundScore + consScore + moatScore + mgmtScore
	maxScore := float64(buffettMaxScore)
	bullishThreshold := int(0.7 * maxScore)
	bearishThreshold := int(0.3 * maxScore)

	var marginOfSafety float64
	hasMOS := hasIV && hasMarketCap && math.Abs(marketCap) > 1e-6
	if hasMOS {
		marginOfSafety = (iv - marketCap) / marketCap
	}

	signal := api.SignalNeutral
	switch {
	case totalScore >= bullishThreshold && hasMOS && marginOfSafety >= 0.3:
		signal = api.SignalBullish
	case totalScore <= bearishThreshold ||
		(hasMOS && marginOfSafety < -0.3):
		signal = api.SignalBearish
	}

	payload := map[string]any{
		"signal":                   signal,
		"score":                    totalScore,
		"max_score":                buffettMaxScore,
		"fundamental_analysis":     fundamental,
		"consistency_analysis":     consistency,
		"moat_analysis":            moat,
		"management_analysis":      management,
		"intrinsic_value_analysis": valuation,
	}
	if hasMarketCap {
		payload["market_cap"] = marketCap
	}
	if hasMOS {
		payload["margin_of_safety"] = marginOfSafety
	}
	return payload, nil
}

// generateSignal asks the language model for the final signal. Transport
// errors propagate; an unparseable response degrades to neutral
func (a *BuffettAgent) generateSignal(
	ctx context.Context, ticker string, analysis map[string]any,
	model string, provider api.Provider,
) (*api.Signal, error) {
	payload, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return nil, err
	}

	content, err := a.chatter.Chat(ctx, provider, model, []api.Message{
		{Role: api.RoleSystem, Content: buffettSystemPrompt},
		{
			Role:    api.RoleUser,
			Content: fmt.Sprintf(buffettUserPrompt, ticker, payload),
		},
	})
	if err != nil {
		return nil, err
	}

	computed := api.SignalNeutral
	if s, ok := analysis["signal"].(api.SignalKind); ok {
		computed = s
	}
	var sig api.Signal
	if err := json.Unmarshal([]byte(content), &sig); err != nil {
		return buffettFallback(ticker, computed, err), nil
	}
	kind, err := api.ParseSignal(string(sig.Signal))
	if err != nil {
		return buffettFallback(ticker, computed, err), nil
	}
	sig.Signal = kind
	return &sig, nil
}

// buffettFallback keeps the computed signal when the language model's
// response cannot be parsed
func buffettFallback(
	ticker string, computed api.SignalKind, err error,
) *api.Signal {
	slog.Error("Failed to parse Buffett signal",
		log.Ticker(ticker),
		log.Error(err))
	return &api.Signal{
		Signal:     computed,
		Confidence: 0,
		Reasoning: fmt.Sprintf(
			"Error in LLM analysis or response parsing for ticker %s: %v. "+
				"Falling back to the computed %s signal.",
			ticker, err, computed),
	}
}

// analyzeFundamentals scores the latest reporting period on return on
// equity, leverage, operating margin, and liquidity
func analyzeFundamentals(
	metrics []api.FinancialMetrics,
) (int, map[string]any) {
	if len(metrics) == 0 {
		return 0, map[string]any{
			"score":   0,
			"details": "Insufficient fundamental data",
		}
	}

	latest := metrics[0]
	score := 0
	var reasons []string

	if latest.ReturnOnEquity != nil {
		if roe := *latest.ReturnOnEquity; roe > 0.15 {
			score += 2
			reasons = append(reasons,
				fmt.Sprintf("Strong ROE of %.1f%%", roe*100))
		} else {
			reasons = append(reasons,
				fmt.Sprintf("Weak ROE of %.1f%%", roe*100))
		}
	} else {
		reasons = append(reasons, "ROE data not available")
	}

	if latest.DebtToEquity != nil {
		if de := *latest.DebtToEquity; de < 0.5 {
			score += 2
			reasons = append(reasons,
				fmt.Sprintf("Conservative debt-to-equity ratio of %.1f", de))
		} else {
			reasons = append(reasons,
				fmt.Sprintf("High debt-to-equity ratio of %.1f", de))
		}
	} else {
		reasons = append(reasons, "Debt-to-equity data not available")
	}

	if latest.OperatingMargin != nil {
		if om := *latest.OperatingMargin; om > 0.15 {
			score += 2
			reasons = append(reasons,
				fmt.Sprintf("Strong operating margin of %.1f%%", om*100))
		} else {
			reasons = append(reasons,
				fmt.Sprintf("Weak operating margin of %.1f%%", om*100))
		}
	} else {
		reasons = append(reasons, "Operating margin data not available")
	}

	if latest.CurrentRatio != nil {
		if cr := *latest.CurrentRatio; cr > 1.5 {
			score++
			reasons = append(reasons,
				fmt.Sprintf("Good liquidity with current ratio of %.1f", cr))
		} else {
			reasons = append(reasons,
				fmt.Sprintf("Weak liquidity with current ratio of %.1f", cr))
		}
	} else {
		reasons = append(reasons, "Current ratio data not available")
	}

	return score, map[string]any{
		"score":     score,
		"reasoning": strings.Join(reasons, "; "),
		"metrics":   latest,
	}
}

// analyzeConsistency rewards an unbroken earnings growth streak across the
// fetched reporting periods
func analyzeConsistency(items []api.LineItem) (int, map[string]any) {
	if len(items) < 4 {
		return 0, map[string]any{
			"score":   0,
			"details": "Insufficient historical data",
		}
	}

	score := 0
	var reasons []string

	var earnings []float64
	for _, item := range items {
		if v, ok := item.GetItem("net_income"); ok {
			earnings = append(earnings, v)
		}
	}

	if len(earnings) >= 4 {
		// Items arrive newest first, so growth means every period beats
		// the one before it.
		growing := true
		for i := 0; i < len(earnings)-1; i++ {
			if earnings[i] <= earnings[i+1] {
				growing = false
				break
			}
		}
		if growing {
			score += consistencyMaxScore
			reasons = append(reasons,
				"Consistent earnings growth over the past period.")
		} else {
			reasons = append(reasons, "Inconsistent earnings growth pattern")
		}

		latest, oldest := earnings[0], earnings[len(earnings)-1]
		if math.Abs(oldest) > 1e-6 {
			rate := (latest - oldest) / math.Abs(oldest)
			reasons = append(reasons, fmt.Sprintf(
				"Total earnings growth of %.1f%% over considered %d periods",
				rate*100, len(earnings)))
		}
	} else {
		reasons = append(reasons,
			"Insufficient earnings data for trend analysis")
	}

	return score, map[string]any{
		"score":   score,
		"details": strings.Join(reasons, "; "),
	}
}

// analyzeMoat treats sustained high returns and margins as evidence of a
// durable competitive advantage
func analyzeMoat(metrics []api.FinancialMetrics) (int, map[string]any) {
	if len(metrics) < 3 {
		return 0, map[string]any{
			"score":     0,
			"max_score": moatMaxScore,
			"details":   "Insufficient data for moat analysis",
		}
	}

	score := 0
	var reasons []string

	var roes, margins []float64
	for _, m := range metrics {
		if m.ReturnOnEquity != nil {
			roes = append(roes, *m.ReturnOnEquity)
		}
		if m.OperatingMargin != nil {
			margins = append(margins, *m.OperatingMargin)
		}
	}

	if len(roes) >= 3 && allAbove(roes, 0.15) {
		score++
		reasons = append(reasons,
			"Stable ROE above 15% across periods (suggests moat)")
	} else {
		reasons = append(reasons, "ROE not consistently above 15%")
	}

	if len(margins) >= 3 && allAbove(margins, 0.15) {
		score++
		reasons = append(reasons,
			"Stable operating margin above 15% (moat score indicator)")
	} else {
		reasons = append(reasons,
			"Operating margin not consistently above 15%")
	}

	if score == 2 {
		score++
		reasons = append(reasons,
			"Both ROE and margin stability indicate a solid moat")
	}

	return score, map[string]any{
		"score":     score,
		"max_score": moatMaxScore,
		"details":   strings.Join(reasons, "; "),
	}
}

// analyzeManagement looks at the latest period for buybacks and dividends,
// both reported as negative cash flows
func analyzeManagement(items []api.LineItem) (int, map[string]any) {
	if len(items) == 0 {
		return 0, map[string]any{
			"score":     0,
			"max_score": managementMaxScore,
			"details":   "Insufficient data for management analysis",
		}
	}

	score := 0
	var reasons []string
	latest := items[0]

	if issuance, ok := latest.GetItem(
		"issuance_or_purchase_of_equity_shares"); ok {
		switch {
		case issuance < 0:
			score++
			reasons = append(reasons,
				"Company has been repurchasing shares (shareholder-friendly)")
		case issuance > 0:
			reasons = append(reasons,
				"Recent common stock issuance (potential dilution)")
		default:
			reasons = append(reasons,
				"No significant new stock issuance detected")
		}
	} else {
		reasons = append(reasons,
			"Data on stock issuance/repurchase not available")
	}

	if dividends, ok := latest.GetItem(
		"dividends_and_other_cash_distributions"); ok {
		if dividends < 0 {
			score++
			reasons = append(reasons,
				"Company has a track record of paying dividends")
		} else {
			reasons = append(reasons, "No or minimal dividends paid")
		}
	} else {
		reasons = append(reasons, "Dividend payment data not available")
	}

	return score, map[string]any{
		"score":     score,
		"max_score": managementMaxScore,
		"details":   strings.Join(reasons, "; "),
	}
}

// ownerEarnings computes net income plus depreciation less maintenance
// capital expenditure for the latest period
func ownerEarnings(items []api.LineItem) (float64, bool, map[string]any) {
	if len(items) == 0 {
		return 0, false, map[string]any{
			"owner_earnings": nil,
			"details": []string{
				"Insufficient data for owner earnings calculation",
			},
		}
	}

	latest := items[0]
	netIncome, okNI := latest.GetItem("net_income")
	depreciation, okDep := latest.GetItem("depreciation_and_amortization")
	capex, okCapex := latest.GetItem("capital_expenditure")
	if !okNI || !okDep || !okCapex {
		return 0, false, map[string]any{
			"owner_earnings": nil,
			"details": []string{
				"Missing components for owner earnings calculation",
			},
		}
	}

	maintenanceCapex := capex * maintenanceCapexRatio
	earnings := netIncome + depreciation - maintenanceCapex
	return earnings, true, map[string]any{
		"owner_earnings": earnings,
		"components": map[string]any{
			"net_income":        netIncome,
			"depreciation":      depreciation,
			"maintenance_capex": maintenanceCapex,
		},
		"details": []string{"Owner earnings calculated successfully"},
	}
}

// intrinsicValue discounts ten years of projected owner earnings plus a
// terminal multiple back to the present
func intrinsicValue(items []api.LineItem) (float64, bool, map[string]any) {
	if len(items) == 0 {
		return 0, false, map[string]any{
			"intrinsic_value": nil,
			"details":         []string{"Insufficient data for valuation"},
		}
	}

	earnings, ok, earningsPayload := ownerEarnings(items)
	if !ok {
		return 0, false, map[string]any{
			"intrinsic_value": nil,
			"details":         earningsPayload["details"],
		}
	}
	if _, ok := items[0].GetItem("outstanding_shares"); !ok {
		return 0, false, map[string]any{
			"intrinsic_value": nil,
			"details":         []string{"Missing shares outstanding data"},
		}
	}

	var presentValue float64
	for year := 1; year <= buffettProjectionYears; year++ {
		future := earnings * math.Pow(1+buffettGrowthRate, float64(year))
		presentValue += future / math.Pow(1+buffettDiscountRate, float64(year))
	}

	terminal := earnings *
		math.Pow(1+buffettGrowthRate, buffettProjectionYears) *
		buffettTerminalMultiple /
		math.Pow(1+buffettDiscountRate, buffettProjectionYears)

	value := presentValue + terminal
	return value, true, map[string]any{
		"intrinsic_value": value,
		"owner_earnings":  earnings,
		"assumptions": map[string]any{
			"growth_rate":       buffettGrowthRate,
			"discount_rate":     buffettDiscountRate,
			"terminal_multiple": buffettTerminalMultiple,
			"projection_years":  buffettProjectionYears,
		},
		"details": []string{
			"Intrinsic value calculated using DCF model with owner earnings",
		},
	}
}

func allAbove(vals []float64, threshold float64) bool {
	for _, v := range vals {
		if v <= threshold {
			return false
		}
	}
	return true
}
