package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hedgeline/engine/pkg/api"
	"github.com/hedgeline/engine/pkg/log"
)

// ScriptedAgent runs an operator-provided Lua script once per ticker. The
// script sees two locals, the ticker symbol and a table holding the run's
// data, and returns a table with signal, confidence, and reasoning fields
type ScriptedAgent struct {
	env      *LuaEnv
	name     string
	compiled *CompiledScript
}

// Locals bound by every analyst script, in argument order.
var scriptArgNames = []string{"ticker", "data"}

// NewScriptedAgent compiles the script and returns its analyst node.
// Compilation errors surface here so a bad manifest fails at startup
func NewScriptedAgent(
	env *LuaEnv, key api.AnalystKey, script string,
) (*ScriptedAgent, error) {
	compiled, err := env.Compile(script, scriptArgNames...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &ScriptedAgent{
		env:      env,
		name:     string(NodeName(key)),
		compiled: compiled,
	}, nil
}

// Run evaluates the script per ticker and merges the resulting signals
// into the run's analyst signals
func (a *ScriptedAgent) Run(
	_ context.Context, st *api.State, _ api.Config,
) (*api.PartialUpdate, error) {
	tickers := st.Data.GetStrings(DataTickers)
	if len(tickers) == 0 {
		slog.Error("Scripted analyst has no tickers to work with",
			log.Analyst(a.name))
		return &api.PartialUpdate{}, nil
	}

	data, err := scriptData(st)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}

	signals := make(map[string]any, len(tickers))
	for _, ticker := range tickers {
		result, err := a.env.Execute(a.compiled, ticker, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", a.name, ticker, err)
		}
		sig, err := scriptSignal(result)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", a.name, ticker, err)
		}
		signals[ticker] = sig
	}
	return signalUpdate(st, a.name, signals)
}

// scriptData renders run data into the JSON-shaped form scripts consume.
// The round trip flattens typed values like the portfolio into plain
// tables
func scriptData(st *api.State) (map[string]any, error) {
	raw, err := json.Marshal(st.Data)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// scriptSignal validates a script's result table and normalizes it into
// the signal map shape shared by every analyst
func scriptSignal(result map[string]any) (map[string]any, error) {
	raw, _ := result["signal"].(string)
	kind, err := api.ParseSignal(raw)
	if err != nil {
		return nil, err
	}
	sig := map[string]any{
		"signal":     string(kind),
		"confidence": floatValue(result["confidence"]),
	}
	if reasoning, ok := result["reasoning"]; ok {
		sig["reasoning"] = reasoning
	}
	return sig, nil
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
