package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ModelID selects one of the two configured provider models.
type ModelID string

const (
	// ModelCheap serves classification and ordinary turns.
	ModelCheap ModelID = "cheap"
	// ModelStrong serves turns classified as complex.
	ModelStrong ModelID = "strong"
)

// DefaultTimeout bounds a single provider call when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrEmptyReply   = errors.New("provider returned no message")
)

// TransportError reports a failed provider call. It is a result, not a crash:
// callers decide whether it is fatal.
type TransportError struct {
	Model   ModelID
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("completion %s timed out: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("completion %s failed: %v", e.Model, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Config binds each ModelID to a chat model.
type Config struct {
	Cheap      model.ChatModel
	CheapName  string
	Strong     model.ChatModel
	StrongName string
	Timeout    time.Duration
}

type boundModel struct {
	name  string
	chain compose.Runnable[[]*schema.Message, *schema.Message]
}

// Client sends chat-completion requests. It never retries and never caches.
type Client struct {
	models   map[ModelID]boundModel
	timeout  time.Duration
	observer einocb.Handler
}

// NewClient compiles one single-node chain per model.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Cheap == nil || cfg.Strong == nil {
		return nil, fmt.Errorf("both cheap and strong chat models are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		models:   make(map[ModelID]boundModel, 2),
		timeout:  timeout,
		observer: newModelObserver(),
	}

	for id, m := range map[ModelID]struct {
		name  string
		model model.ChatModel
	}{
		ModelCheap:  {name: cfg.CheapName, model: cfg.Cheap},
		ModelStrong: {name: cfg.StrongName, model: cfg.Strong},
	} {
		name := m.name
		if name == "" {
			name = string(id)
		}

		chain := compose.NewChain[[]*schema.Message, *schema.Message]()
		chain.AppendChatModel(m.model, compose.WithNodeName(name))

		runnable, err := chain.Compile(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s completion chain: %w", id, err)
		}

		c.models[id] = boundModel{name: name, chain: runnable}
	}

	return c, nil
}

// ModelName returns the provider model bound to id.
func (c *Client) ModelName(id ModelID) string {
	if m, ok := c.models[id]; ok {
		return m.name
	}
	return ""
}

// Complete sends messages to the model bound to id and returns the reply message.
// Every failure, including a timeout or an empty envelope, is a *TransportError.
func (c *Client) Complete(ctx context.Context, id ModelID, messages []*schema.Message) (reply *schema.Message, err error) {
	m, ok := c.models[id]
	if !ok {
		return nil, &TransportError{Model: id, Err: fmt.Errorf("%w: %q", ErrUnknownModel, id)}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			reply = nil
			err = &TransportError{Model: id, Err: fmt.Errorf("provider call panicked: %v", r)}
		}
	}()

	reply, err = m.chain.Invoke(callCtx, messages, compose.WithCallbacks(c.observer))
	if err != nil {
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return nil, &TransportError{Model: id, Timeout: timedOut, Err: err}
	}
	if reply == nil {
		return nil, &TransportError{Model: id, Err: ErrEmptyReply}
	}
	return reply, nil
}
