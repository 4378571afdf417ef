package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hedgeline/engine/internal/config"
	"github.com/hedgeline/engine/internal/store"
	"github.com/hedgeline/engine/pkg/api"
	"github.com/hedgeline/engine/pkg/log"
)

type (
	// Client fetches market data from the financialdatasets.ai API. Reads
	// consult the record store first and fetched rows are merged back into
	// it, so repeated runs over the same window stay off the network.
	Client struct {
		httpClient *http.Client
		store      store.Store
		apiKey     string

		// BaseURL overrides the upstream endpoint. Useful for proxies
		// and tests.
		BaseURL string
	}

	lineItemQuery struct {
		Tickers   []string `json:"tickers"`
		LineItems []string `json:"line_items"`
		EndDate   string   `json:"end_date"`
		Period    string   `json:"period"`
		Limit     int      `json:"limit"`
	}
)

const (
	// DefaultPeriod is the reporting period requested when a caller does
	// not name one.
	DefaultPeriod = "ttm"

	// DefaultMetricsLimit bounds how many reporting periods a metrics or
	// line item request returns by default.
	DefaultMetricsLimit = 10

	// DefaultPageLimit is the page size for the paginated insider trade
	// and news feeds.
	DefaultPageLimit = 1000

	defaultBaseURL = "https://api.financialdatasets.ai"
)

var (
	ErrHTTPError   = errors.New("market data request failed")
	ErrNoMarketCap = errors.New("no market cap reported")
)

// NewClient returns a Client backed by st for caching. Requests carry the
// configured financialdatasets.ai API key.
func NewClient(cfg *config.Config, st store.Store) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		store:   st,
		apiKey:  cfg.FinancialAPIKey,
		BaseURL: defaultBaseURL,
	}
}

// GetPrices returns daily OHLCV bars for ticker between startDate and
// endDate inclusive, in ascending time order
func (c *Client) GetPrices(
	ctx context.Context, ticker, startDate, endDate string,
) ([]api.Price, error) {
	cached, err := c.store.Get(ctx, store.CategoryPrices, ticker)
	if err != nil {
		return nil, err
	}
	var prices []api.Price
	if err := api.DecodeRecords(cached, &prices); err != nil {
		return nil, err
	}
	if res := filterPrices(prices, startDate, endDate); len(res) > 0 {
		return res, nil
	}

	query := url.Values{
		"ticker":              {ticker},
		"interval":            {"day"},
		"interval_multiplier": {"1"},
		"start_date":          {startDate},
		"end_date":            {endDate},
	}
	body, err := c.get(ctx, "/prices/", query)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Prices []api.Price `json:"prices"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Prices) == 0 {
		return nil, nil
	}
	c.cache(ctx, store.CategoryPrices, ticker, envelope.Prices)
	return filterPrices(envelope.Prices, startDate, endDate), nil
}

// GetFinancialMetrics returns up to limit reporting periods of derived
// ratios for ticker, newest first, for periods ending on or before endDate
func (c *Client) GetFinancialMetrics(
	ctx context.Context, ticker, endDate, period string, limit int,
) ([]api.FinancialMetrics, error) {
	if period == "" {
		period = DefaultPeriod
	}
	if limit <= 0 {
		limit = DefaultMetricsLimit
	}

	cached, err := c.store.Get(ctx, store.CategoryFinancialMetrics, ticker)
	if err != nil {
		return nil, err
	}
	var metrics []api.FinancialMetrics
	if err := api.DecodeRecords(cached, &metrics); err != nil {
		return nil, err
	}
	if res := filterMetrics(metrics, endDate, limit); len(res) > 0 {
		return res, nil
	}

	query := url.Values{
		"ticker":            {ticker},
		"report_period_lte": {endDate},
		"limit":             {strconv.Itoa(limit)},
		"period":            {period},
	}
	body, err := c.get(ctx, "/financial-metrics/", query)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		FinancialMetrics []api.FinancialMetrics `json:"financial_metrics"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.FinancialMetrics) == 0 {
		return nil, nil
	}
	c.cache(
		ctx, store.CategoryFinancialMetrics, ticker,
		envelope.FinancialMetrics,
	)
	return filterMetrics(envelope.FinancialMetrics, endDate, limit), nil
}

// SearchLineItems fetches the named statement line items for ticker,
// newest first. Results are not cached: searches request differing item
// sets, and a period cached by one search would satisfy another while
// missing its items
func (c *Client) SearchLineItems(
	ctx context.Context, ticker string, items []string,
	endDate, period string, limit int,
) ([]api.LineItem, error) {
	if period == "" {
		period = DefaultPeriod
	}
	if limit <= 0 {
		limit = DefaultMetricsLimit
	}

	payload, err := json.Marshal(lineItemQuery{
		Tickers:   []string{ticker},
		LineItems: items,
		EndDate:   endDate,
		Period:    period,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	body, err := c.post(ctx, "/financials/search/line-items", payload)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		SearchResults []api.LineItem `json:"search_results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	res := envelope.SearchResults
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// GetInsiderTrades returns insider transactions for ticker filed on or
// before endDate, newest first. When startDate is set the upstream feed is
// paged back until the window is covered
func (c *Client) GetInsiderTrades(
	ctx context.Context, ticker, endDate, startDate string, limit int,
) ([]api.InsiderTrade, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	cached, err := c.store.Get(ctx, store.CategoryInsiderTrades, ticker)
	if err != nil {
		return nil, err
	}
	var trades []api.InsiderTrade
	if err := api.DecodeRecords(cached, &trades); err != nil {
		return nil, err
	}
	if res := filterTrades(trades, startDate, endDate); len(res) > 0 {
		return res, nil
	}

	var all []api.InsiderTrade
	pageEnd := endDate
	for {
		query := url.Values{
			"ticker":          {ticker},
			"filing_date_lte": {pageEnd},
			"limit":           {strconv.Itoa(limit)},
		}
		if startDate != "" {
			query.Set("filing_date_gte", startDate)
		}
		body, err := c.get(ctx, "/insider-trades/", query)
		if err != nil {
			return nil, err
		}

		var envelope struct {
			InsiderTrades []api.InsiderTrade `json:"insider_trades"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		batch := envelope.InsiderTrades
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)

		// A short page means the feed is exhausted. Without a start
		// date there is no window to page back toward.
		if startDate == "" || len(batch) < limit {
			break
		}
		oldest := batch[0].FilingDate
		for _, t := range batch[1:] {
			if t.FilingDate < oldest {
				oldest = t.FilingDate
			}
		}
		pageEnd = dateOnly(oldest)
		if pageEnd <= startDate {
			break
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	c.cache(ctx, store.CategoryInsiderTrades, ticker, all)
	return filterTrades(all, startDate, endDate), nil
}

// GetCompanyNews returns news articles for ticker dated on or before
// endDate, newest first, paging back toward startDate when one is set
func (c *Client) GetCompanyNews(
	ctx context.Context, ticker, endDate, startDate string, limit int,
) ([]api.CompanyNews, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	cached, err := c.store.Get(ctx, store.CategoryCompanyNews, ticker)
	if err != nil {
		return nil, err
	}
	var news []api.CompanyNews
	if err := api.DecodeRecords(cached, &news); err != nil {
		return nil, err
	}
	if res := filterNews(news, startDate, endDate); len(res) > 0 {
		return res, nil
	}

	var all []api.CompanyNews
	pageEnd := endDate
	for {
		query := url.Values{
			"ticker":   {ticker},
			"end_date": {pageEnd},
			"limit":    {strconv.Itoa(limit)},
		}
		if startDate != "" {
			query.Set("start_date", startDate)
		}
		body, err := c.get(ctx, "/news/", query)
		if err != nil {
			return nil, err
		}

		var envelope struct {
			News []api.CompanyNews `json:"news"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		batch := envelope.News
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)

		if startDate == "" || len(batch) < limit {
			break
		}
		oldest := batch[0].Date
		for _, n := range batch[1:] {
			if n.Date < oldest {
				oldest = n.Date
			}
		}
		pageEnd = dateOnly(oldest)
		if pageEnd <= startDate {
			break
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	c.cache(ctx, store.CategoryCompanyNews, ticker, all)
	return filterNews(all, startDate, endDate), nil
}

// GetCompanyFacts returns the current company profile for ticker
func (c *Client) GetCompanyFacts(
	ctx context.Context, ticker string,
) (*api.CompanyFacts, error) {
	query := url.Values{
		"ticker": {ticker},
	}
	body, err := c.get(ctx, "/company/facts/", query)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		CompanyFacts *api.CompanyFacts `json:"company_facts"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	return envelope.CompanyFacts, nil
}

// GetMarketCap returns the market capitalization of ticker as of endDate.
// Today's value comes from the company facts profile; historical values
// fall back to the most recent financial metrics at that date
func (c *Client) GetMarketCap(
	ctx context.Context, ticker, endDate string,
) (float64, error) {
	if endDate == time.Now().Format(api.DateLayout) {
		facts, err := c.GetCompanyFacts(ctx, ticker)
		if err != nil {
			return 0, err
		}
		if facts == nil || facts.MarketCap == nil {
			return 0, fmt.Errorf("%w: %s", ErrNoMarketCap, ticker)
		}
		return *facts.MarketCap, nil
	}

	metrics, err := c.GetFinancialMetrics(
		ctx, ticker, endDate, DefaultPeriod, DefaultMetricsLimit,
	)
	if err != nil {
		return 0, err
	}
	if len(metrics) == 0 || metrics[0].MarketCap == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoMarketCap, ticker)
	}
	return *metrics[0].MarketCap, nil
}

// cache merges fetched rows into the store. A failed write is logged and
// otherwise ignored; the fetched rows still serve this request
func (c *Client) cache(
	ctx context.Context, cat store.Category, ticker string, rows any,
) {
	recs, err := api.ToRecords(rows)
	if err == nil {
		err = c.store.Set(ctx, cat, ticker, recs)
	}
	if err != nil {
		slog.Warn("Failed to cache market data",
			log.Category(cat),
			log.Ticker(ticker),
			log.Error(err))
	}
}

func (c *Client) get(
	ctx context.Context, path string, query url.Values,
) ([]byte, error) {
	endpoint := c.BaseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, endpoint, nil,
	)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(
	ctx context.Context, path string, payload []byte,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(payload),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	dur := time.Since(start)

	if err != nil {
		slog.Error("Market data request failed",
			slog.String("path", req.URL.Path),
			slog.Duration("duration", dur),
			log.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("Market data request failed",
			slog.String("path", req.URL.Path),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)))
		return nil, fmt.Errorf(
			"%w: %s: HTTP %d", ErrHTTPError, req.URL.Path, resp.StatusCode,
		)
	}
	return body, nil
}

func filterPrices(prices []api.Price, startDate, endDate string) []api.Price {
	var res []api.Price
	for _, p := range prices {
		day := dateOnly(p.Time)
		if day >= startDate && day <= endDate {
			res = append(res, p)
		}
	}
	slices.SortFunc(res, func(a, b api.Price) int {
		return strings.Compare(a.Time, b.Time)
	})
	return res
}

func filterMetrics(
	metrics []api.FinancialMetrics, endDate string, limit int,
) []api.FinancialMetrics {
	var res []api.FinancialMetrics
	for _, m := range metrics {
		if m.ReportPeriod <= endDate {
			res = append(res, m)
		}
	}
	slices.SortFunc(res, func(a, b api.FinancialMetrics) int {
		return strings.Compare(b.ReportPeriod, a.ReportPeriod)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res
}

func filterTrades(
	trades []api.InsiderTrade, startDate, endDate string,
) []api.InsiderTrade {
	var res []api.InsiderTrade
	for _, t := range trades {
		day := dateOnly(t.FilingDate)
		if startDate != "" && day < startDate {
			continue
		}
		if day <= endDate {
			res = append(res, t)
		}
	}
	slices.SortFunc(res, func(a, b api.InsiderTrade) int {
		return strings.Compare(b.FilingDate, a.FilingDate)
	})
	return res
}

func filterNews(
	news []api.CompanyNews, startDate, endDate string,
) []api.CompanyNews {
	var res []api.CompanyNews
	for _, n := range news {
		day := dateOnly(n.Date)
		if startDate != "" && day < startDate {
			continue
		}
		if day <= endDate {
			res = append(res, n)
		}
	}
	slices.SortFunc(res, func(a, b api.CompanyNews) int {
		return strings.Compare(b.Date, a.Date)
	})
	return res
}

// dateOnly strips any time component from an upstream timestamp, which may
// be a bare date or RFC 3339
func dateOnly(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}
