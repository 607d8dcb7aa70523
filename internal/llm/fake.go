package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// FakeModel is a scripted ToolCallingChatModel for tests. Replies are returned
// in order and the last one repeats.
type FakeModel struct {
	mu      sync.Mutex
	Replies []*schema.Message
	Err     error
	Inputs  [][]*schema.Message
	Tools   []*schema.ToolInfo
}

// NewFakeModel creates a fake replying with the given messages.
func NewFakeModel(replies ...*schema.Message) *FakeModel {
	return &FakeModel{Replies: replies}
}

// FakeFactory returns a ModelFactory that always hands out m and records the names asked for.
func FakeFactory(m *FakeModel, names *[]string) ModelFactory {
	return func(ctx context.Context, name string) (model.ToolCallingChatModel, error) {
		if names != nil {
			*names = append(*names, name)
		}
		return m, nil
	}
}

func (f *FakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Inputs = append(f.Inputs, input)
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Replies) == 0 {
		return nil, errors.New("fake model has no replies")
	}
	idx := len(f.Inputs) - 1
	if idx >= len(f.Replies) {
		idx = len(f.Replies) - 1
	}
	return f.Replies[idx], nil
}

func (f *FakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *FakeModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tools = tools
	return f, nil
}

// Calls returns how many times Generate ran.
func (f *FakeModel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Inputs)
}

// ToolCallMessage builds an assistant message requesting one tool call.
func ToolCallMessage(id, name, argsJSON string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:   id,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      name,
				Arguments: argsJSON,
			},
		}},
	}
}

var _ model.ToolCallingChatModel = (*FakeModel)(nil)
