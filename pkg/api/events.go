package api

import "time"

type (
	// EventType identifies the kind of a run lifecycle event
	EventType string

	// Event is the envelope streamed to run event subscribers
	Event struct {
		Type      EventType `json:"type"`
		RunID     RunID     `json:"run_id"`
		Timestamp time.Time `json:"timestamp"`
		Data      any       `json:"data,omitempty"`
	}

	// RunStartedEvent is emitted when a pipeline invocation begins
	RunStartedEvent struct {
		Tickers  []string     `json:"tickers"`
		Analysts []AnalystKey `json:"analysts"`
	}

	// NodeStartedEvent is emitted when a node begins execution
	NodeStartedEvent struct {
		Node string `json:"node"`
	}

	// NodeCompletedEvent is emitted when a node completes successfully.
	// Duration is in milliseconds
	NodeCompletedEvent struct {
		Node     string `json:"node"`
		Duration int64  `json:"duration"`
	}

	// RunCompletedEvent is emitted when a pipeline invocation completes.
	// Duration is in milliseconds
	RunCompletedEvent struct {
		Duration int64 `json:"duration"`
	}

	// RunFailedEvent is emitted when a pipeline invocation fails
	RunFailedEvent struct {
		Node  string `json:"node,omitempty"`
		Error string `json:"error"`
	}

	// ClientSubscription narrows the events a websocket client receives.
	// An empty subscription matches every event
	ClientSubscription struct {
		RunID      RunID       `json:"run_id,omitempty"`
		EventTypes []EventType `json:"event_types,omitempty"`
	}

	// SubscribeRequest is sent by a websocket client to replace its
	// event filter
	SubscribeRequest struct {
		Type string             `json:"type"`
		Data ClientSubscription `json:"data"`
	}

	// SubscribedResult acknowledges a subscription with the filter
	// that took effect
	SubscribedResult struct {
		Type       string      `json:"type"`
		RunID      RunID       `json:"run_id,omitempty"`
		EventTypes []EventType `json:"event_types,omitempty"`
	}
)

const (
	EventTypeRunStarted    EventType = "run_started"
	EventTypeNodeStarted   EventType = "node_started"
	EventTypeNodeCompleted EventType = "node_completed"
	EventTypeRunCompleted  EventType = "run_completed"
	EventTypeRunFailed     EventType = "run_failed"
)

// NewEvent wraps event data in a timestamped envelope for a run
func NewEvent(typ EventType, runID RunID, data any) *Event {
	return &Event{
		Type:      typ,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}
