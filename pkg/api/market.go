package api

import "encoding/json"

type (
	// Price is a single OHLCV bar for a ticker. Time is the bar timestamp
	// string as reported upstream and is the identity field for cached
	// price records
	Price struct {
		Time   string  `json:"time"`
		Open   float64 `json:"open"`
		Close  float64 `json:"close"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Volume float64 `json:"volume"`
	}

	// FinancialMetrics is one reporting period's worth of derived ratios
	// for a ticker. Optional upstream values stay nil rather than zero so
	// consumers can distinguish missing from zero
	FinancialMetrics struct {
		Ticker                  string   `json:"ticker"`
		ReportPeriod            string   `json:"report_period"`
		Period                  string   `json:"period"`
		Currency                string   `json:"currency,omitempty"`
		MarketCap               *float64 `json:"market_cap,omitempty"`
		EnterpriseValue         *float64 `json:"enterprise_value,omitempty"`
		PriceToEarningsRatio    *float64 `json:"price_to_earnings_ratio,omitempty"`
		PriceToBookRatio        *float64 `json:"price_to_book_ratio,omitempty"`
		PriceToSalesRatio       *float64 `json:"price_to_sales_ratio,omitempty"`
		FreeCashFlowYield       *float64 `json:"free_cash_flow_yield,omitempty"`
		PayoutRatio             *float64 `json:"payout_ratio,omitempty"`
		GrossMargin             *float64 `json:"gross_margin,omitempty"`
		OperatingMargin         *float64 `json:"operating_margin,omitempty"`
		NetMargin               *float64 `json:"net_margin,omitempty"`
		ReturnOnEquity          *float64 `json:"return_on_equity,omitempty"`
		ReturnOnAssets          *float64 `json:"return_on_assets,omitempty"`
		ReturnOnInvestedCapital *float64 `json:"return_on_invested_capital,omitempty"`
		CurrentRatio            *float64 `json:"current_ratio,omitempty"`
		QuickRatio              *float64 `json:"quick_ratio,omitempty"`
		DebtToEquity            *float64 `json:"debt_to_equity,omitempty"`
		DebtToAssets            *float64 `json:"debt_to_assets,omitempty"`
		InterestCoverage        *float64 `json:"interest_coverage,omitempty"`
		RevenueGrowth           *float64 `json:"revenue_growth,omitempty"`
		EarningsGrowth          *float64 `json:"earnings_growth,omitempty"`
		BookValueGrowth         *float64 `json:"book_value_growth,omitempty"`
		EarningsPerShare        *float64 `json:"earnings_per_share,omitempty"`
		FreeCashFlowPerShare    *float64 `json:"free_cash_flow_per_share,omitempty"`
		BookValuePerShare       *float64 `json:"book_value_per_share,omitempty"`
	}

	// LineItem is one reporting period's worth of requested statement line
	// items. The requested values are flattened alongside the fixed fields
	// on the wire, so the type carries them in Items and handles its own
	// JSON form
	LineItem struct {
		Ticker       string
		ReportPeriod string
		Period       string
		Currency     string
		Items        map[string]float64
	}

	// InsiderTrade is a single reported insider transaction. FilingDate is
	// the identity field for cached insider trade records
	InsiderTrade struct {
		Ticker                       string   `json:"ticker"`
		Issuer                       string   `json:"issuer,omitempty"`
		Name                         string   `json:"name,omitempty"`
		Title                        string   `json:"title,omitempty"`
		IsBoardDirector              *bool    `json:"is_board_director,omitempty"`
		TransactionDate              string   `json:"transaction_date,omitempty"`
		TransactionShares            *float64 `json:"transaction_shares,omitempty"`
		TransactionPricePerShare     *float64 `json:"transaction_price_per_share,omitempty"`
		TransactionValue             *float64 `json:"transaction_value,omitempty"`
		SharesOwnedBeforeTransaction *float64 `json:"shares_owned_before_transaction,omitempty"`
		SharesOwnedAfterTransaction  *float64 `json:"shares_owned_after_transaction,omitempty"`
		SecurityTitle                string   `json:"security_title,omitempty"`
		FilingDate                   string   `json:"filing_date"`
	}

	// CompanyNews is a single news article reference. Date is the identity
	// field for cached news records
	CompanyNews struct {
		Ticker    string `json:"ticker"`
		Title     string `json:"title"`
		Author    string `json:"author,omitempty"`
		Source    string `json:"source,omitempty"`
		Date      string `json:"date"`
		URL       string `json:"url,omitempty"`
		Sentiment string `json:"sentiment,omitempty"`
	}

	// CompanyFacts is the company profile record used for current market
	// capitalization lookups
	CompanyFacts struct {
		Ticker                string   `json:"ticker"`
		Name                  string   `json:"name,omitempty"`
		MarketCap             *float64 `json:"market_cap,omitempty"`
		NumberOfEmployees     *float64 `json:"number_of_employees,omitempty"`
		WeightedAverageShares *float64 `json:"weighted_average_shares,omitempty"`
		ListingDate           string   `json:"listing_date,omitempty"`
		WebsiteURL            string   `json:"website_url,omitempty"`
	}
)

// GetItem returns the named line item value, reporting false when the
// period does not carry it
func (li *LineItem) GetItem(name string) (float64, bool) {
	val, ok := li.Items[name]
	return val, ok
}

// MarshalJSON flattens the requested line item values alongside the fixed
// fields, matching the upstream wire format
func (li LineItem) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(li.Items)+4)
	for k, v := range li.Items {
		flat[k] = v
	}
	flat["ticker"] = li.Ticker
	flat["report_period"] = li.ReportPeriod
	flat["period"] = li.Period
	if li.Currency != "" {
		flat["currency"] = li.Currency
	}
	return json.Marshal(flat)
}

// UnmarshalJSON splits the fixed fields from the requested line item
// values, which land in Items
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	li.Items = map[string]float64{}
	for k, v := range flat {
		switch k {
		case "ticker":
			li.Ticker, _ = v.(string)
		case "report_period":
			li.ReportPeriod, _ = v.(string)
		case "period":
			li.Period, _ = v.(string)
		case "currency":
			li.Currency, _ = v.(string)
		default:
			if num, ok := v.(float64); ok {
				li.Items[k] = num
			}
		}
	}
	return nil
}
