// Package aitest provides scriptable chat models for tests.
package aitest

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RespondFunc produces the reply for one Generate call.
type RespondFunc func(ctx context.Context, input []*schema.Message) (*schema.Message, error)

// Model is an in-memory model.ChatModel that records every call.
type Model struct {
	respond RespondFunc

	mu    sync.Mutex
	calls [][]*schema.Message
}

var _ model.ChatModel = (*Model)(nil)

// New returns a model answering with fn.
func New(fn RespondFunc) *Model {
	return &Model{respond: fn}
}

// Reply returns a model that always answers with content.
func Reply(content string) *Model {
	return New(func(context.Context, []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(content, nil), nil
	})
}

// Fail returns a model whose every call fails with err.
func Fail(err error) *Model {
	return New(func(context.Context, []*schema.Message) (*schema.Message, error) {
		return nil, err
	})
}

// Block returns a model that waits for the context to end.
func Block() *Model {
	return New(func(ctx context.Context, _ []*schema.Message) (*schema.Message, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func (m *Model) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]*schema.Message(nil), input...))
	m.mu.Unlock()

	return m.respond(ctx, input)
}

func (m *Model) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *Model) BindTools([]*schema.ToolInfo) error {
	return nil
}

// Calls returns the number of Generate calls so far.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Call returns the messages of the i-th Generate call.
func (m *Model) Call(i int) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.calls) {
		return nil
	}
	return m.calls[i]
}
