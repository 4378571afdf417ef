package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/hedgeline/engine/internal/util"
	"github.com/hedgeline/engine/pkg/api"
)

type (
	// Category identifies one of the market data record families the
	// store manages. Each category dedupes its records on a fixed
	// identity field.
	Category string

	// Store provides merge-on-write caching of market data records,
	// keyed by category and entity key (usually a ticker)
	Store interface {
		// Get retrieves the records cached for a category and key. A key
		// that has never been written yields an empty result, not an
		// error.
		Get(ctx context.Context, cat Category, key string) (
			[]api.Record, error,
		)

		// Set merges records into the sequence cached for a category and
		// key. Records whose identity is already present are dropped;
		// the rest append in encounter order.
		Set(ctx context.Context, cat Category, key string,
			recs []api.Record) error
	}

	// Dump is a deep copy of a store's full contents, used for snapshots
	Dump map[Category]map[string][]api.Record
)

const (
	CategoryPrices           Category = "prices"
	CategoryFinancialMetrics Category = "financial_metrics"
	CategoryLineItems        Category = "line_items"
	CategoryInsiderTrades    Category = "insider_trades"
	CategoryCompanyNews      Category = "company_news"
)

var (
	ErrUnknownCategory = errors.New("unknown store category")
	ErrMissingKeyField = errors.New("record missing key field")

	keyFields = map[Category]string{
		CategoryPrices:           "time",
		CategoryFinancialMetrics: "report_period",
		CategoryLineItems:        "report_period",
		CategoryInsiderTrades:    "filing_date",
		CategoryCompanyNews:      "date",
	}

	defaultOnce  sync.Once
	defaultStore *MemoryStore
)

// Default returns the process-wide store, creating it on first use. Code
// that can take an injected Store should prefer that over this handle.
func Default() *MemoryStore {
	defaultOnce.Do(func() {
		defaultStore = NewMemoryStore()
	})
	return defaultStore
}

// KeyField returns the identity field records of this category dedupe on
func (c Category) KeyField() (string, bool) {
	field, ok := keyFields[c]
	return field, ok
}

// Merge appends records from incoming that introduce a new identity under
// the category's key field, preserving encounter order. Existing records
// are never modified or reordered. Incoming records are validated before
// any merging occurs, so a failed merge leaves existing untouched.
func Merge(
	cat Category, existing, incoming []api.Record,
) ([]api.Record, error) {
	field, ok := keyFields[cat]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, cat)
	}

	ids := make([]string, len(incoming))
	for i, rec := range incoming {
		id, ok := recordIdentity(rec, field)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingKeyField, field)
		}
		ids[i] = id
	}

	seen := make(util.Set[string], len(existing))
	for _, rec := range existing {
		if id, ok := recordIdentity(rec, field); ok {
			seen.Add(id)
		}
	}

	merged := existing
	for i, rec := range incoming {
		if seen.Contains(ids[i]) {
			continue
		}
		seen.Add(ids[i])
		merged = append(merged, maps.Clone(rec))
	}
	return merged, nil
}

func recordIdentity(rec api.Record, field string) (string, bool) {
	v, ok := rec[field]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

func cloneRecords(recs []api.Record) []api.Record {
	if len(recs) == 0 {
		return nil
	}
	res := make([]api.Record, len(recs))
	for i, rec := range recs {
		res[i] = maps.Clone(rec)
	}
	return res
}
