package events

import (
	"sync"
	"sync/atomic"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/hedgeline/engine/pkg/api"
)

type (
	// Hub fans run events out to any number of subscribers. Publishing
	// never blocks on slow subscribers.
	Hub struct {
		topic     topic.Topic[*api.Event]
		prod      topic.Producer[*api.Event]
		closed    atomic.Bool
		closeOnce sync.Once
	}

	// Consumer receives run events published to a Hub. Callers must Close
	// a consumer when they are done with it.
	Consumer = topic.Consumer[*api.Event]
)

// NewHub creates a new run event hub
func NewHub() *Hub {
	t := caravan.NewTopic[*api.Event]()
	return &Hub{
		topic: t,
		prod:  t.NewProducer(),
	}
}

// Publish emits a run event to all current subscribers. Events published
// after Close are discarded
func (h *Hub) Publish(typ api.EventType, runID api.RunID, data any) {
	if h.closed.Load() {
		return
	}
	h.prod.Send() <- api.NewEvent(typ, runID, data)
}

// NewConsumer registers a new subscriber with the hub
func (h *Hub) NewConsumer() Consumer {
	return h.topic.NewConsumer()
}

// Close stops the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.prod.Close()
	})
}
