package helpers

import (
	"context"
	"sync"

	"github.com/hedgeline/engine/internal/analyst"
	"github.com/hedgeline/engine/pkg/api"
)

// MockMarket is a canned market data source. Responses and errors are
// set through its exported fields; lookups are recorded for inspection
type MockMarket struct {
	Prices     []api.Price
	PricesErr  error
	Metrics    []api.FinancialMetrics
	MetricsErr error
	Items      []api.LineItem
	ItemsErr   error
	MarketCap  float64
	CapErr     error

	mu         sync.Mutex
	priceCalls []string
}

var _ analyst.MarketData = (*MockMarket)(nil)

func (m *MockMarket) GetPrices(
	_ context.Context, ticker, _, _ string,
) ([]api.Price, error) {
	m.mu.Lock()
	m.priceCalls = append(m.priceCalls, ticker)
	m.mu.Unlock()
	return m.Prices, m.PricesErr
}

func (m *MockMarket) GetFinancialMetrics(
	context.Context, string, string, string, int,
) ([]api.FinancialMetrics, error) {
	return m.Metrics, m.MetricsErr
}

func (m *MockMarket) SearchLineItems(
	context.Context, string, []string, string, string, int,
) ([]api.LineItem, error) {
	return m.Items, m.ItemsErr
}

func (m *MockMarket) GetMarketCap(
	context.Context, string, string,
) (float64, error) {
	return m.MarketCap, m.CapErr
}

// PriceCalls returns the tickers price data was requested for, in order
func (m *MockMarket) PriceCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.priceCalls...)
}
