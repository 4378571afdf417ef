package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Record is the raw, schemaless form in which market data rows are cached.
// A record's identity within a cache category is the value of that
// category's identity field
type Record map[string]any

var ErrNotRecordSlice = errors.New("value does not encode a record slice")

// ToRecords converts a slice of typed values into raw records by way of
// their JSON form, preserving element order
func ToRecords(v any) ([]Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var res []Record
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotRecordSlice, err)
	}
	return res, nil
}

// DecodeRecords maps raw records onto out, a pointer to a slice of typed
// values. Field names are resolved through json struct tags so the same
// types serve both the wire format and the cache
func DecodeRecords(recs []Record, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(recs)
}
