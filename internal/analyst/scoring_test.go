package analyst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeline/engine/pkg/api"
)

func metricsWith(roe, de, om, cr *float64, n int) []api.FinancialMetrics {
	res := make([]api.FinancialMetrics, n)
	for i := range res {
		res[i] = api.FinancialMetrics{
			ReturnOnEquity:  roe,
			DebtToEquity:    de,
			OperatingMargin: om,
			CurrentRatio:    cr,
		}
	}
	return res
}

func itemsWithEarnings(earnings ...float64) []api.LineItem {
	res := make([]api.LineItem, len(earnings))
	for i, e := range earnings {
		res[i] = api.LineItem{Items: map[string]float64{"net_income": e}}
	}
	return res
}

func ptr(v float64) *float64 {
	return &v
}

func TestAnalyzeFundamentals(t *testing.T) {
	t.Run("full marks", func(t *testing.T) {
		score, payload := analyzeFundamentals(
			metricsWith(ptr(0.20), ptr(0.30), ptr(0.20), ptr(2.0), 1))
		assert.Equal(t, 7, score)
		reasoning := payload["reasoning"].(string)
		assert.Contains(t, reasoning, "Strong ROE of 20.0%")
		assert.Contains(t, reasoning, "Conservative debt-to-equity ratio of 0.3")
		assert.Contains(t, reasoning, "Strong operating margin of 20.0%")
		assert.Contains(t, reasoning, "Good liquidity with current ratio of 2.0")
	})

	t.Run("all weak", func(t *testing.T) {
		score, payload := analyzeFundamentals(
			metricsWith(ptr(0.05), ptr(1.2), ptr(0.05), ptr(1.0), 1))
		assert.Equal(t, 0, score)
		reasoning := payload["reasoning"].(string)
		assert.Contains(t, reasoning, "Weak ROE of 5.0%")
		assert.Contains(t, reasoning, "High debt-to-equity ratio of 1.2")
		assert.Contains(t, reasoning, "Weak operating margin of 5.0%")
		assert.Contains(t, reasoning, "Weak liquidity with current ratio of 1.0")
	})

	t.Run("missing values", func(t *testing.T) {
		score, payload := analyzeFundamentals(metricsWith(nil, nil, nil, nil, 1))
		assert.Equal(t, 0, score)
		reasoning := payload["reasoning"].(string)
		assert.Contains(t, reasoning, "ROE data not available")
		assert.Contains(t, reasoning, "Debt-to-equity data not available")
		assert.Contains(t, reasoning, "Operating margin data not available")
		assert.Contains(t, reasoning, "Current ratio data not available")
	})

	t.Run("no metrics", func(t *testing.T) {
		score, payload := analyzeFundamentals(nil)
		assert.Equal(t, 0, score)
		assert.Equal(t, "Insufficient fundamental data", payload["details"])
	})
}

func TestAnalyzeConsistency(t *testing.T) {
	t.Run("growth streak", func(t *testing.T) {
		score, payload := analyzeConsistency(
			itemsWithEarnings(500, 400, 300, 200, 100))
		assert.Equal(t, 3, score)
		details := payload["details"].(string)
		assert.Contains(t, details, "Consistent earnings growth")
		assert.Contains(t, details,
			"Total earnings growth of 400.0% over considered 5 periods")
	})

	t.Run("broken streak", func(t *testing.T) {
		score, payload := analyzeConsistency(
			itemsWithEarnings(500, 600, 300, 200))
		assert.Equal(t, 0, score)
		assert.Contains(t, payload["details"].(string),
			"Inconsistent earnings growth pattern")
	})

	t.Run("too little history", func(t *testing.T) {
		score, payload := analyzeConsistency(itemsWithEarnings(100, 90))
		assert.Equal(t, 0, score)
		assert.Equal(t, "Insufficient historical data", payload["details"])
	})

	t.Run("earnings gaps", func(t *testing.T) {
		items := itemsWithEarnings(500, 400)
		items = append(items,
			api.LineItem{Items: map[string]float64{}},
			api.LineItem{Items: map[string]float64{}})
		score, payload := analyzeConsistency(items)
		assert.Equal(t, 0, score)
		assert.Contains(t, payload["details"].(string),
			"Insufficient earnings data for trend analysis")
	})
}

func TestAnalyzeMoat(t *testing.T) {
	t.Run("durable moat", func(t *testing.T) {
		score, payload := analyzeMoat(
			metricsWith(ptr(0.20), nil, ptr(0.18), nil, 3))
		assert.Equal(t, 3, score)
		details := payload["details"].(string)
		assert.Contains(t, details, "Stable ROE above 15% across periods")
		assert.Contains(t, details, "Stable operating margin above 15%")
		assert.Contains(t, details,
			"Both ROE and margin stability indicate a solid moat")
	})

	t.Run("margins only", func(t *testing.T) {
		score, payload := analyzeMoat(
			metricsWith(ptr(0.10), nil, ptr(0.18), nil, 3))
		assert.Equal(t, 1, score)
		assert.Contains(t, payload["details"].(string),
			"ROE not consistently above 15%")
	})

	t.Run("too little history", func(t *testing.T) {
		score, payload := analyzeMoat(
			metricsWith(ptr(0.20), nil, ptr(0.18), nil, 2))
		assert.Equal(t, 0, score)
		assert.Equal(t, "Insufficient data for moat analysis",
			payload["details"])
	})
}

func TestAnalyzeManagement(t *testing.T) {
	t.Run("shareholder friendly", func(t *testing.T) {
		score, payload := analyzeManagement([]api.LineItem{{
			Items: map[string]float64{
				"issuance_or_purchase_of_equity_shares":  -10,
				"dividends_and_other_cash_distributions": -5,
			},
		}})
		assert.Equal(t, 2, score)
		details := payload["details"].(string)
		assert.Contains(t, details, "repurchasing shares")
		assert.Contains(t, details, "track record of paying dividends")
	})

	t.Run("dilutive", func(t *testing.T) {
		score, payload := analyzeManagement([]api.LineItem{{
			Items: map[string]float64{
				"issuance_or_purchase_of_equity_shares":  25,
				"dividends_and_other_cash_distributions": 0,
			},
		}})
		assert.Equal(t, 0, score)
		details := payload["details"].(string)
		assert.Contains(t, details, "potential dilution")
		assert.Contains(t, details, "No or minimal dividends paid")
	})

	t.Run("no data", func(t *testing.T) {
		score, payload := analyzeManagement(nil)
		assert.Equal(t, 0, score)
		assert.Equal(t, "Insufficient data for management analysis",
			payload["details"])
	})
}

func TestOwnerEarnings(t *testing.T) {
	t.Run("computed", func(t *testing.T) {
		earnings, ok, payload := ownerEarnings([]api.LineItem{{
			Items: map[string]float64{
				"net_income":                    500,
				"depreciation_and_amortization": 50,
				"capital_expenditure":           40,
			},
		}})
		require.True(t, ok)
		assert.InDelta(t, 520.0, earnings, 1e-9)
		components := payload["components"].(map[string]any)
		assert.InDelta(t, 30.0, components["maintenance_capex"].(float64), 1e-9)
	})

	t.Run("missing component", func(t *testing.T) {
		_, ok, payload := ownerEarnings([]api.LineItem{{
			Items: map[string]float64{"net_income": 500},
		}})
		assert.False(t, ok)
		assert.Contains(t, payload["details"].([]string)[0],
			"Missing components")
	})
}

func TestIntrinsicValue(t *testing.T) {
	t.Run("dcf", func(t *testing.T) {
		value, ok, payload := intrinsicValue([]api.LineItem{{
			Items: map[string]float64{
				"net_income":                    500,
				"depreciation_and_amortization": 50,
				"capital_expenditure":           40,
				"outstanding_shares":            1000,
			},
		}})
		require.True(t, ok)

		// Ten years of owner earnings of 520 growing at 5%, discounted
		// at 9%, plus a 12x terminal multiple.
		assert.InDelta(t, 8551.5, value, 2.0)
		assert.Equal(t, value, payload["intrinsic_value"])
	})

	t.Run("missing shares", func(t *testing.T) {
		_, ok, payload := intrinsicValue([]api.LineItem{{
			Items: map[string]float64{
				"net_income":                    500,
				"depreciation_and_amortization": 50,
				"capital_expenditure":           40,
			},
		}})
		assert.False(t, ok)
		assert.Equal(t, []string{"Missing shares outstanding data"},
			payload["details"])
	})

	t.Run("no owner earnings", func(t *testing.T) {
		_, ok, payload := intrinsicValue([]api.LineItem{{
			Items: map[string]float64{"net_income": 500},
		}})
		assert.False(t, ok)
		assert.Contains(t, payload["details"].([]string)[0],
			"Missing components")
	})

	t.Run("no data", func(t *testing.T) {
		_, ok, payload := intrinsicValue(nil)
		assert.False(t, ok)
		assert.Equal(t, []string{"Insufficient data for valuation"},
			payload["details"])
	})
}
