package api

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

type (
	// SignalKind is an analyst's directional read on a ticker
	SignalKind string

	// Action is a portfolio decision for a single ticker
	Action string

	// Signal is one analyst's conclusion for one ticker
	Signal struct {
		Signal     SignalKind `json:"signal"`
		Confidence float64    `json:"confidence"`
		Reasoning  any        `json:"reasoning,omitempty"`
	}

	// Decision is the final per-ticker trading decision. Quantity is a
	// whole share count
	Decision struct {
		Action     Action  `json:"action"`
		Quantity   int64   `json:"quantity"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning,omitempty"`
	}

	// Position tracks long and short exposure for one ticker
	Position struct {
		Long            float64 `json:"long"`
		Short           float64 `json:"short"`
		LongCostBasis   float64 `json:"long_cost_basis"`
		ShortCostBasis  float64 `json:"short_cost_basis"`
		ShortMarginUsed float64 `json:"short_margin_used"`
	}

	// RealizedGains tracks realized profit and loss for one ticker
	RealizedGains struct {
		Long  float64 `json:"long"`
		Short float64 `json:"short"`
	}

	// Portfolio is the account scaffolding a run trades against
	Portfolio struct {
		Cash              float64                   `json:"cash"`
		MarginRequirement float64                   `json:"margin_requirement"`
		MarginUsed        float64                   `json:"margin_used"`
		Positions         map[string]*Position      `json:"positions"`
		CostBasis         map[string]float64        `json:"cost_basis"`
		RealizedGains     map[string]*RealizedGains `json:"realized_gains"`
	}
)

const (
	SignalBullish SignalKind = "bullish"
	SignalBearish SignalKind = "bearish"
	SignalNeutral SignalKind = "neutral"
)

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionShort Action = "short"
	ActionCover Action = "cover"
	ActionHold  Action = "hold"
)

var (
	ErrInvalidSignal = errors.New("invalid signal")
	ErrInvalidAction = errors.New("invalid action")
)

// ParseSignal resolves a directional signal case-insensitively, since
// language models are loose about casing
func ParseSignal(s string) (SignalKind, error) {
	kind := SignalKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case SignalBullish, SignalBearish, SignalNeutral:
		return kind, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidSignal, s)
}

// ParseAction resolves a trading action case-insensitively
func ParseAction(s string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(s)))
	switch action {
	case ActionBuy, ActionSell, ActionShort, ActionCover, ActionHold:
		return action, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidAction, s)
}

// NewPortfolio creates portfolio scaffolding for the given tickers with
// zeroed positions and realized gains
func NewPortfolio(
	cash, marginRequirement float64, tickers []string,
) *Portfolio {
	positions := make(map[string]*Position, len(tickers))
	basis := make(map[string]float64, len(tickers))
	gains := make(map[string]*RealizedGains, len(tickers))
	for _, t := range tickers {
		positions[t] = &Position{}
		basis[t] = 0
		gains[t] = &RealizedGains{}
	}
	return &Portfolio{
		Cash:              cash,
		MarginRequirement: marginRequirement,
		Positions:         positions,
		CostBasis:         basis,
		RealizedGains:     gains,
	}
}

// Position returns the position for a ticker, or a zero position when the
// ticker is not tracked
func (p *Portfolio) Position(ticker string) *Position {
	if pos, ok := p.Positions[ticker]; ok {
		return pos
	}
	return &Position{}
}

// Clone returns a copy of the portfolio with freshly cloned position and
// gains maps
func (p *Portfolio) Clone() *Portfolio {
	res := *p
	res.Positions = maps.Clone(p.Positions)
	res.CostBasis = maps.Clone(p.CostBasis)
	res.RealizedGains = maps.Clone(p.RealizedGains)
	return &res
}

// HoldDecision returns the fallback decision used when no actionable
// decision can be produced for a ticker
func HoldDecision(reasoning string) *Decision {
	return &Decision{
		Action:    ActionHold,
		Quantity:  0,
		Reasoning: reasoning,
	}
}
