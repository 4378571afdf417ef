package analyst_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeline/engine/internal/analyst"
	"github.com/hedgeline/engine/pkg/api"
)

// decisionState seeds the state the portfolio manager sees after the
// analysts and the risk agent have run
func decisionState() *api.State {
	st := runState("AAPL", "MSFT")
	portfolio := api.NewPortfolio(80000, 0.5, []string{"AAPL", "MSFT"})
	st.Data["portfolio"] = portfolio
	st.Data["analyst_signals"] = map[string]any{
		"risk_management_agent": map[string]any{
			"AAPL": map[string]any{
				"remaining_position_limit": 10000.0,
				"current_price":            200.0,
			},
			"MSFT": map[string]any{
				"remaining_position_limit": 9000.0,
				"current_price":            0.0,
			},
		},
		"warren_buffett_agent": map[string]any{
			"AAPL": map[string]any{
				"signal":     "bullish",
				"confidence": 85.5,
				"reasoning":  "wonderful",
			},
			"MSFT": map[string]any{
				"signal":     "bearish",
				"confidence": 60.0,
			},
		},
	}
	return st
}

func decisionsFromUpdate(
	t *testing.T, u *api.PartialUpdate,
) map[string]*api.Decision {
	t.Helper()
	require.Len(t, u.Messages, 1)
	assert.Equal(t, api.RoleAssistant, u.Messages[0].Role)
	var decisions map[string]*api.Decision
	require.NoError(t,
		json.Unmarshal([]byte(u.Messages[0].Content), &decisions))
	return decisions
}

func TestPortfolioManagerDecides(t *testing.T) {
	chatter := &stubChatter{
		content: `{"decisions": {
			"AAPL": {"action": "BUY", "quantity": 50,
				"confidence": 90, "reasoning": "strong signal"},
			"MSFT": {"action": "hold", "quantity": 0,
				"confidence": 55, "reasoning": "mixed signal"}
		}}`,
	}
	agent := analyst.NewPortfolioManager(chatter)

	update, err := agent.Run(context.Background(), decisionState(), nil)
	require.NoError(t, err)

	decisions := decisionsFromUpdate(t, update)
	require.Contains(t, decisions, "AAPL")
	require.Contains(t, decisions, "MSFT")
	assert.Equal(t, api.ActionBuy, decisions["AAPL"].Action)
	assert.Equal(t, int64(50), decisions["AAPL"].Quantity)
	assert.Equal(t, 90.0, decisions["AAPL"].Confidence)
	assert.Equal(t, api.ActionHold, decisions["MSFT"].Action)

	// The decision node only appends its message; signals are left as
	// the analysts wrote them.
	assert.Empty(t, update.Data)

	prompt := userPrompt(t, chatter, 0)
	assert.Contains(t, prompt, `"AAPL": 50`)
	assert.Contains(t, prompt, `"MSFT": 0`)
	assert.Contains(t, prompt, "Portfolio Cash: 80000.00")
	assert.Contains(t, prompt, "Current Margin Requirement: 0.50")
	assert.Contains(t, prompt, "warren_buffett_agent")
	assert.NotContains(t, prompt, "risk_management_agent")

	// Only signal and confidence travel into the prompt.
	assert.NotContains(t, prompt, "wonderful")
}

func TestPortfolioManagerHoldsOnUnparseableResponse(t *testing.T) {
	chatter := &stubChatter{content: "I would buy a little of everything."}
	agent := analyst.NewPortfolioManager(chatter)

	update, err := agent.Run(context.Background(), decisionState(), nil)
	require.NoError(t, err)

	decisions := decisionsFromUpdate(t, update)
	require.Len(t, decisions, 2)
	for _, d := range decisions {
		assert.Equal(t, api.ActionHold, d.Action)
		assert.Equal(t, int64(0), d.Quantity)
		assert.Equal(t,
			"Error in portfolio management, defaulting to hold", d.Reasoning)
	}
}

func TestPortfolioManagerHoldsOnFractionalQuantity(t *testing.T) {
	chatter := &stubChatter{
		content: `{"decisions": {"AAPL": {"action": "buy",
			"quantity": 12.5, "confidence": 80, "reasoning": "oops"}}}`,
	}
	agent := analyst.NewPortfolioManager(chatter)

	update, err := agent.Run(context.Background(), decisionState(), nil)
	require.NoError(t, err)

	decisions := decisionsFromUpdate(t, update)
	require.Len(t, decisions, 2)
	assert.Equal(t, api.ActionHold, decisions["AAPL"].Action)
	assert.Equal(t, api.ActionHold, decisions["MSFT"].Action)
}

func TestPortfolioManagerHoldsOnUnknownAction(t *testing.T) {
	chatter := &stubChatter{
		content: `{"decisions": {"AAPL": {"action": "accumulate",
			"quantity": 5, "confidence": 80, "reasoning": "hmm"}}}`,
	}
	agent := analyst.NewPortfolioManager(chatter)

	update, err := agent.Run(context.Background(), decisionState(), nil)
	require.NoError(t, err)

	decisions := decisionsFromUpdate(t, update)
	assert.Equal(t, api.ActionHold, decisions["AAPL"].Action)
	assert.Equal(t, api.ActionHold, decisions["MSFT"].Action)
}

func TestPortfolioManagerChatErrorPropagates(t *testing.T) {
	chatter := &stubChatter{err: errors.New("model offline")}
	agent := analyst.NewPortfolioManager(chatter)

	_, err := agent.Run(context.Background(), decisionState(), nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "model offline")
}

func TestPortfolioManagerMissingModel(t *testing.T) {
	chatter := &stubChatter{}
	agent := analyst.NewPortfolioManager(chatter)

	st := decisionState()
	delete(st.Metadata, "model_name")

	update, err := agent.Run(context.Background(), st, nil)
	require.NoError(t, err)
	assert.Empty(t, update.Messages)
	assert.Empty(t, chatter.calls)
}

func TestPortfolioManagerMissingInputs(t *testing.T) {
	chatter := &stubChatter{}
	agent := analyst.NewPortfolioManager(chatter)

	st := decisionState()
	delete(st.Data, "analyst_signals")

	update, err := agent.Run(context.Background(), st, nil)
	require.NoError(t, err)
	assert.Empty(t, update.Messages)
	assert.Empty(t, chatter.calls)
}
