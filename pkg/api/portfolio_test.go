package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hedgeline/engine/pkg/api"
)

func TestNewPortfolio(t *testing.T) {
	p := api.NewPortfolio(100000, 0.5, []string{"AAPL", "MSFT"})

	assert.Equal(t, 100000.0, p.Cash)
	assert.Equal(t, 0.5, p.MarginRequirement)
	assert.Zero(t, p.MarginUsed)
	assert.Len(t, p.Positions, 2)
	assert.Len(t, p.RealizedGains, 2)
	assert.Zero(t, p.Positions["AAPL"].Long)
	assert.Zero(t, p.RealizedGains["MSFT"].Short)
}

func TestPortfolioPosition(t *testing.T) {
	p := api.NewPortfolio(1000, 0, []string{"AAPL"})
	p.Positions["AAPL"].Long = 10

	assert.Equal(t, 10.0, p.Position("AAPL").Long)
	assert.Zero(t, p.Position("NVDA").Long, "untracked tickers read as flat")
}

func TestPortfolioClone(t *testing.T) {
	p := api.NewPortfolio(1000, 0, []string{"AAPL"})
	clone := p.Clone()
	clone.Positions["NVDA"] = &api.Position{Long: 5}

	assert.NotContains(t, p.Positions, "NVDA")
	assert.Contains(t, clone.Positions, "NVDA")
}

func TestHoldDecision(t *testing.T) {
	d := api.HoldDecision("no parseable output")

	assert.Equal(t, api.ActionHold, d.Action)
	assert.Zero(t, d.Quantity)
	assert.Zero(t, d.Confidence)
	assert.Equal(t, "no parseable output", d.Reasoning)
}
