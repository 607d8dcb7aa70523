// Package llm builds hosted chat models and the tracing hooks attached to
// every agent invocation.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent"
)

// ModelFactory returns a tool-calling chat model for the named model.
type ModelFactory func(ctx context.Context, name string) (model.ToolCallingChatModel, error)

// NewOpenAIFactory creates chat models against the OpenAI API (or a compatible base URL).
func NewOpenAIFactory(apiKey, baseURL string, timeout time.Duration) ModelFactory {
	return func(ctx context.Context, name string) (model.ToolCallingChatModel, error) {
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  apiKey,
			BaseURL: baseURL,
			Model:   name,
			Timeout: timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("openai chat model %s: %w", name, err)
		}
		return cm, nil
	}
}

// Tracer logs component start, end and error events of agent runs.
// A nil Tracer is valid and attaches nothing.
type Tracer struct {
	project string
	handler callbacks.Handler
}

// NewTracer returns a Tracer tagging events with project, or nil when disabled.
func NewTracer(enabled bool, project string, logger *slog.Logger) *Tracer {
	if !enabled {
		return nil
	}
	h := callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			logger.Debug("trace start", runAttrs(project, info)...)
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackOutput) context.Context {
			logger.Debug("trace end", runAttrs(project, info)...)
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			logger.Warn("trace error", append(runAttrs(project, info), "error", err)...)
			return ctx
		}).
		Build()
	return &Tracer{project: project, handler: h}
}

// AgentOptions returns the options to pass to a react agent's Generate.
func (t *Tracer) AgentOptions() []agent.AgentOption {
	if t == nil {
		return nil
	}
	return []agent.AgentOption{agent.WithComposeOptions(compose.WithCallbacks(t.handler))}
}

// Project returns the tracing project name.
func (t *Tracer) Project() string {
	if t == nil {
		return ""
	}
	return t.project
}

func runAttrs(project string, info *callbacks.RunInfo) []any {
	attrs := []any{"project", project}
	if info != nil {
		attrs = append(attrs, "name", info.Name, "type", info.Type, "component", string(info.Component))
	}
	return attrs
}
