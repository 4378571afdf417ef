package helpers

import (
	"context"
	"sync"

	"github.com/hedgeline/engine/internal/llm"
	"github.com/hedgeline/engine/pkg/api"
)

// MockChatter is a canned LLM backend. Every call returns Content or Err
// and records the conversation it was given
type MockChatter struct {
	Content string
	Err     error

	mu    sync.Mutex
	calls [][]api.Message
}

var _ llm.Chatter = (*MockChatter)(nil)

func (c *MockChatter) Chat(
	_ context.Context, _ api.Provider, _ string, messages []api.Message,
) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, messages)
	c.mu.Unlock()
	return c.Content, c.Err
}

// Calls returns the recorded conversations in call order
func (c *MockChatter) Calls() [][]api.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]api.Message(nil), c.calls...)
}
