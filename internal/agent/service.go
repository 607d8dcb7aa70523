// Package agent runs the conversational session agent that answers objectives
// and follow-up questions with the finance tools.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/RRaffay/Finance-Data-Agent/internal/llm"
	"github.com/RRaffay/Finance-Data-Agent/internal/sessions"
	"github.com/RRaffay/Finance-Data-Agent/internal/store"
	"github.com/RRaffay/Finance-Data-Agent/internal/tools"
)

// Config wires a Service.
type Config struct {
	Factory     llm.ModelFactory
	Model       string
	MaxSteps    int
	Toolkit     *tools.Toolkit
	Checkpoints *store.CheckpointStore
	Registry    *sessions.Registry
	Tracer      *llm.Tracer
	Logger      *slog.Logger
}

// Service creates sessions and runs their turns against the checkpoint store.
type Service struct {
	cfg Config
}

// NewService creates a session agent service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{cfg: cfg}
}

// Result is the outcome of an objective analysis.
type Result struct {
	Analysis      string
	SystemMessage string
}

// NewSession builds a react agent over the finance tools. The session becomes
// current only once Analyze or Warm succeeds on it.
func (s *Service) NewSession(ctx context.Context, objective string) (*sessions.Session, error) {
	cm, err := s.cfg.Factory(ctx, s.cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	ts, err := s.cfg.Toolkit.Tools()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	direct := make(map[string]struct{}, len(ts))
	for _, name := range tools.Names() {
		direct[name] = struct{}{}
	}

	ag, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel:   cm,
		ToolsConfig:        compose.ToolsNodeConfig{Tools: ts},
		MaxStep:            s.cfg.MaxSteps,
		ToolReturnDirectly: direct,
	})
	if err != nil {
		return nil, fmt.Errorf("new session: build agent: %w", err)
	}

	return &sessions.Session{
		ID:        sessions.NewID(),
		Objective: objective,
		CreatedAt: time.Now(),
		Agent:     &reactInvoker{agent: ag, tracer: s.cfg.Tracer},
	}, nil
}

// activate makes sess the current session and drops the checkpoints of the
// one it replaces.
func (s *Service) activate(ctx context.Context, sess *sessions.Session) {
	if old := s.cfg.Registry.Replace(sess); old != nil && old.ID != sess.ID {
		if err := s.cfg.Checkpoints.DeleteThread(ctx, old.ID); err != nil {
			s.cfg.Logger.Warn("failed to drop replaced session checkpoints", "session", old.ID, "error", err)
		}
	}
	s.cfg.Logger.Info("session activated", "session", sess.ID)
}

// Analyze runs the first turn of sess: the directory overview as system
// message and the objective as the question. On success sess replaces the
// current session; on failure the current session is left as it was.
func (s *Service) Analyze(ctx context.Context, sess *sessions.Session, overview, objective string) (*Result, error) {
	system := SystemMessage(overview)
	reply, err := s.invoke(ctx, sess, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(objectiveMessage(objective)),
	})
	if err != nil {
		return nil, fmt.Errorf("analyze objective: %w", err)
	}
	s.activate(ctx, sess)
	return &Result{Analysis: reply, SystemMessage: system}, nil
}

// Ask answers a follow-up question in the session with id, or the current
// session when id is empty.
func (s *Service) Ask(ctx context.Context, id, question string) (string, string, error) {
	sess, err := s.cfg.Registry.Get(id)
	if err != nil {
		return "", "", err
	}
	reply, err := s.invoke(ctx, sess, []*schema.Message{
		schema.UserMessage(question + askSuffix),
	})
	if err != nil {
		return "", "", fmt.Errorf("ask: %w", err)
	}
	return sess.ID, reply, nil
}

// Warm primes sess with a previously recorded system message and, on
// success, makes it the current session.
func (s *Service) Warm(ctx context.Context, sess *sessions.Session, systemMessage string) (string, error) {
	reply, err := s.invoke(ctx, sess, []*schema.Message{
		schema.SystemMessage(systemMessage),
		schema.UserMessage(warmMessage),
	})
	if err != nil {
		return "", fmt.Errorf("warm session: %w", err)
	}
	s.activate(ctx, sess)
	return reply, nil
}

// invoke replays the session's checkpoints followed by turn, then records the
// turn and the final reply.
func (s *Service) invoke(ctx context.Context, sess *sessions.Session, turn []*schema.Message) (string, error) {
	history, err := s.cfg.Checkpoints.Load(ctx, sess.ID)
	if err != nil {
		return "", err
	}

	msgs := make([]*schema.Message, 0, len(history)+len(turn))
	for _, m := range history {
		msgs = append(msgs, &schema.Message{Role: schema.RoleType(m.Role), Content: m.Content})
	}
	msgs = append(msgs, turn...)

	start := time.Now()
	reply, err := sess.Agent.Invoke(ctx, msgs)
	if err != nil {
		return "", err
	}
	content := ""
	if reply != nil {
		content = reply.Content
	}
	s.cfg.Logger.Debug("agent turn", "session", sess.ID, "history", len(history), "duration", time.Since(start))

	records := make([]store.Message, 0, len(turn)+1)
	for _, m := range turn {
		records = append(records, store.Message{Role: string(m.Role), Content: m.Content})
	}
	// A tool result returned directly ends the turn as the assistant's answer.
	records = append(records, store.Message{Role: string(schema.Assistant), Content: content})
	if _, err := s.cfg.Checkpoints.Append(ctx, sess.ID, records); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	return content, nil
}

type reactInvoker struct {
	agent  *react.Agent
	tracer *llm.Tracer
}

func (r *reactInvoker) Invoke(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	return r.agent.Generate(ctx, msgs, r.tracer.AgentOptions()...)
}
