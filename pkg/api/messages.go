package api

import (
	"errors"
	"fmt"
	"time"
)

type (
	// RunRequest contains parameters for starting a pipeline run
	RunRequest struct {
		Tickers           []string     `json:"tickers"`
		StartDate         string       `json:"start_date,omitempty"`
		EndDate           string       `json:"end_date,omitempty"`
		SelectedAnalysts  []AnalystKey `json:"selected_analysts,omitempty"`
		ModelName         string       `json:"model_name,omitempty"`
		ModelProvider     Provider     `json:"model_provider,omitempty"`
		InitialCash       *float64     `json:"initial_cash,omitempty"`
		MarginRequirement *float64     `json:"margin_requirement,omitempty"`
		ShowReasoning     bool         `json:"show_reasoning,omitempty"`
	}

	// RunResponse is returned when a pipeline run completes. Analyst
	// signals are keyed by agent then ticker; the payload shape varies by
	// agent, so entries stay schemaless
	RunResponse struct {
		RunID          RunID                     `json:"run_id"`
		Decisions      map[string]*Decision      `json:"decisions"`
		AnalystSignals map[string]map[string]any `json:"analyst_signals"`
	}

	// AnalystInfo describes one registered analyst capability
	AnalystInfo struct {
		Key         AnalystKey `json:"key"`
		DisplayName string     `json:"display_name"`
		Order       int        `json:"order"`
	}

	// AnalystsListResponse contains the ordered analyst catalog
	AnalystsListResponse struct {
		Analysts []*AnalystInfo `json:"analysts"`
		Count    int            `json:"count"`
	}

	// ModelsListResponse contains the model catalog
	ModelsListResponse struct {
		Models       []*ModelEntry `json:"models"`
		OllamaModels []*ModelEntry `json:"ollama_models"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}
)

// DateLayout is the wire format for request and record dates
const DateLayout = "2006-01-02"

const (
	MaxTickers  = 32
	MaxAnalysts = 64
)

var (
	ErrTickersRequired = errors.New("at least one ticker is required")
	ErrTooManyTickers  = errors.New("too many tickers")
	ErrTickerEmpty     = errors.New("ticker must not be empty")
	ErrTooManyAnalysts = errors.New("too many selected analysts")
	ErrBadDate         = errors.New("dates must use YYYY-MM-DD")
	ErrDateOrder       = errors.New("start_date must not follow end_date")
	ErrNegativeCash    = errors.New("initial_cash must not be negative")
	ErrNegativeMargin  = errors.New("margin_requirement must not be negative")
)

// Validate checks a run request for structural problems and normalizes
// the provider casing. Defaults for omitted fields are applied by the
// pipeline service, not here
func (r *RunRequest) Validate() error {
	if len(r.Tickers) == 0 {
		return ErrTickersRequired
	}
	if len(r.Tickers) > MaxTickers {
		return fmt.Errorf("%w: %d > %d",
			ErrTooManyTickers, len(r.Tickers), MaxTickers)
	}
	for _, t := range r.Tickers {
		if t == "" {
			return ErrTickerEmpty
		}
	}
	if len(r.SelectedAnalysts) > MaxAnalysts {
		return fmt.Errorf("%w: %d > %d",
			ErrTooManyAnalysts, len(r.SelectedAnalysts), MaxAnalysts)
	}
	for _, d := range []string{r.StartDate, r.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d); err != nil {
			return fmt.Errorf("%w: %q", ErrBadDate, d)
		}
	}
	if r.StartDate != "" && r.EndDate != "" && r.StartDate > r.EndDate {
		return fmt.Errorf("%w: %s > %s", ErrDateOrder, r.StartDate, r.EndDate)
	}
	if r.ModelProvider != "" {
		p, err := ParseProvider(string(r.ModelProvider))
		if err != nil {
			return err
		}
		r.ModelProvider = p
	}
	if r.InitialCash != nil && *r.InitialCash < 0 {
		return ErrNegativeCash
	}
	if r.MarginRequirement != nil && *r.MarginRequirement < 0 {
		return ErrNegativeMargin
	}
	return nil
}
