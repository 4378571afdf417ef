package api

import (
	"maps"

	"github.com/mitchellh/mapstructure"
)

type (
	// Role identifies the author of a chat message
	Role string

	// Message is a single chat message carried through a pipeline run
	Message struct {
		Role    Role   `json:"role"`
		Content string `json:"content"`
	}

	// Data is a keyed payload accumulated across a pipeline run. Merges are
	// last-write-wins per key; nodes that share a key namespace overwrite
	// each other by convention
	Data map[string]any

	// Config is an opaque bag of per-run settings handed to every node. The
	// engine clones it for each call and never inspects its contents
	Config map[string]any

	// State is the value threaded through every node of a pipeline run. It
	// is created fresh per invocation and owned exclusively by that
	// invocation. Messages grow append-only; Data and Metadata merge
	// last-write-wins per key
	State struct {
		Messages []Message `json:"messages"`
		Data     Data      `json:"data"`
		Metadata Data      `json:"metadata"`
	}

	// PartialUpdate is the declared side effect of one node execution,
	// merged into the running State by the executor
	PartialUpdate struct {
		Messages []Message `json:"messages,omitempty"`
		Data     Data      `json:"data,omitempty"`
		Metadata Data      `json:"metadata,omitempty"`
	}
)

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// NewState creates an empty state with initialized maps
func NewState() *State {
	return &State{
		Messages: []Message{},
		Data:     Data{},
		Metadata: Data{},
	}
}

// WithMessages returns a new State with the messages appended in order
func (st *State) WithMessages(msgs ...Message) *State {
	if len(msgs) == 0 {
		return st
	}
	res := *st
	res.Messages = make([]Message, len(st.Messages)+len(msgs))
	copy(res.Messages, st.Messages)
	copy(res.Messages[len(st.Messages):], msgs)
	return &res
}

// WithData returns a new State with the entries merged into Data,
// last write wins per key
func (st *State) WithData(data Data) *State {
	if len(data) == 0 {
		return st
	}
	res := *st
	res.Data = applyMap(st.Data, data)
	return &res
}

// WithMetadata returns a new State with the entries merged into Metadata,
// last write wins per key
func (st *State) WithMetadata(meta Data) *State {
	if len(meta) == 0 {
		return st
	}
	res := *st
	res.Metadata = applyMap(st.Metadata, meta)
	return &res
}

// Apply returns a new State with the partial update merged in: messages are
// appended in order, data and metadata entries replace existing keys
func (st *State) Apply(u *PartialUpdate) *State {
	if u == nil {
		return st
	}
	return st.WithMessages(u.Messages...).
		WithData(u.Data).
		WithMetadata(u.Metadata)
}

// GetString retrieves a string from data, returning defaultValue if the key
// is absent or holds another type
func (d Data) GetString(key, defaultValue string) string {
	val, ok := d[key]
	if !ok {
		return defaultValue
	}
	str, ok := val.(string)
	if !ok {
		return defaultValue
	}
	return str
}

// GetBool retrieves a boolean from data, returning defaultValue if the key
// is absent or holds another type
func (d Data) GetBool(key string, defaultValue bool) bool {
	val, ok := d[key]
	if !ok {
		return defaultValue
	}
	b, ok := val.(bool)
	if !ok {
		return defaultValue
	}
	return b
}

// GetFloat retrieves a numeric value from data, returning defaultValue if
// the key is absent or not numeric. Supports int and float64 (converting
// from JSON numbers)
func (d Data) GetFloat(key string, defaultValue float64) float64 {
	val, ok := d[key]
	if !ok {
		return defaultValue
	}
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return defaultValue
}

// GetStrings retrieves a string slice from data, accepting both []string and
// []any of strings (converting from JSON arrays)
func (d Data) GetStrings(key string) []string {
	val, ok := d[key]
	if !ok {
		return nil
	}
	switch v := val.(type) {
	case []string:
		return v
	case []any:
		res := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}
	return nil
}

// Decode maps the value stored under key onto out, which must be a pointer
// to a struct or map. Absent keys leave out untouched and report false
func (d Data) Decode(key string, out any) (bool, error) {
	val, ok := d[key]
	if !ok {
		return false, nil
	}
	if err := mapstructure.Decode(val, out); err != nil {
		return false, err
	}
	return true, nil
}

// Clone returns a shallow copy of the configuration, or an empty one when
// the receiver is nil
func (c Config) Clone() Config {
	if c == nil {
		return Config{}
	}
	return maps.Clone(c)
}

func applyMap[M ~map[string]any](m, other M) M {
	res := maps.Clone(m)
	if res == nil {
		res = M{}
	}
	maps.Copy(res, other)
	return res
}
