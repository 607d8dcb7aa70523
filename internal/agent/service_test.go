package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/RRaffay/Finance-Data-Agent/internal/llm"
	"github.com/RRaffay/Finance-Data-Agent/internal/loader"
	"github.com/RRaffay/Finance-Data-Agent/internal/sandbox"
	"github.com/RRaffay/Finance-Data-Agent/internal/sessions"
	"github.com/RRaffay/Finance-Data-Agent/internal/store"
	"github.com/RRaffay/Finance-Data-Agent/internal/tools"
)

type fixture struct {
	svc         *Service
	fake        *llm.FakeModel
	checkpoints *store.CheckpointStore
	registry    *sessions.Registry
}

func newFixture(t *testing.T, replies ...*schema.Message) *fixture {
	t.Helper()
	db, err := store.Open(store.MemoryPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fake := llm.NewFakeModel(replies...)
	factory := llm.FakeFactory(fake, nil)
	checkpoints := store.NewCheckpointStore(db)
	registry := sessions.NewRegistry()

	toolkit := tools.New(tools.Config{
		Factory:   factory,
		Runner:    sandbox.NewMockRunner("", nil),
		Loader:    loader.New(),
		ToolModel: "tool-model",
		MaxSteps:  10,
		Logger:    logger,
	})
	svc := NewService(Config{
		Factory:     factory,
		Model:       "agent-model",
		MaxSteps:    10,
		Toolkit:     toolkit,
		Checkpoints: checkpoints,
		Registry:    registry,
		Logger:      logger,
	})
	return &fixture{svc: svc, fake: fake, checkpoints: checkpoints, registry: registry}
}

func assistant(content string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: content}
}

func TestAnalyzeThenAsk(t *testing.T) {
	f := newFixture(t, assistant("Revenue grew 10%."), assistant("I compared Q1 and Q2."))
	ctx := context.Background()

	sess, err := f.svc.NewSession(ctx, "Find revenue growth")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	res, err := f.svc.Analyze(ctx, sess, "acme.\n", "Find revenue growth")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Analysis != "Revenue grew 10%." {
		t.Errorf("analysis = %q", res.Analysis)
	}
	if !strings.Contains(res.SystemMessage, "acme.\n") {
		t.Errorf("system message missing overview: %q", res.SystemMessage)
	}

	id, reply, err := f.svc.Ask(ctx, "", "How?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if id != sess.ID || reply != "I compared Q1 and Q2." {
		t.Errorf("Ask = %q, %q", id, reply)
	}

	second := f.fake.Inputs[1]
	if len(second) != 4 {
		t.Fatalf("follow-up saw %d messages, want 4", len(second))
	}
	if second[1].Content != "This is the objective: Find revenue growth Keep response to a maximum of a 100 words." {
		t.Errorf("objective message = %q", second[1].Content)
	}
	if second[2].Role != schema.Assistant || second[2].Content != "Revenue grew 10%." {
		t.Errorf("history reply = %+v", second[2])
	}
	if !strings.HasPrefix(second[3].Content, "How?\n Return how you've conducted your analysis") {
		t.Errorf("question = %q", second[3].Content)
	}

	history, err := f.checkpoints.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(history) != 5 {
		t.Errorf("checkpointed %d messages, want 5", len(history))
	}
}

func TestAskBeforeSession(t *testing.T) {
	f := newFixture(t, assistant("unused"))

	_, _, err := f.svc.Ask(context.Background(), "", "Anything?")
	if !errors.Is(err, sessions.ErrNotInitialized) {
		t.Fatalf("Ask error = %v, want ErrNotInitialized", err)
	}
	if f.fake.Calls() != 0 {
		t.Errorf("model was called %d times", f.fake.Calls())
	}
	if f.registry.Len() != 0 {
		t.Error("Ask must not create a session")
	}
}

func TestNewSessionReplacesPrevious(t *testing.T) {
	f := newFixture(t, assistant("ok"))
	ctx := context.Background()

	first, err := f.svc.NewSession(ctx, "one")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := f.svc.Analyze(ctx, first, "tree", "one"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	second, err := f.svc.NewSession(ctx, "two")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := f.svc.Analyze(ctx, second, "tree", "two"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("sessions share an id")
	}

	if _, _, err := f.svc.Ask(ctx, first.ID, "still there?"); !errors.Is(err, sessions.ErrUnknownSession) {
		t.Errorf("Ask(first) error = %v, want ErrUnknownSession", err)
	}
	id, _, err := f.svc.Ask(ctx, "", "hello")
	if err != nil || id != second.ID {
		t.Errorf("Ask(current) = %q, %v; want %q", id, err, second.ID)
	}

	old, err := f.checkpoints.Load(ctx, first.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("replaced session kept %d checkpoints", len(old))
	}
}

func TestToolReplyReturnedDirectly(t *testing.T) {
	f := newFixture(t,
		llm.ToolCallMessage("call_1", tools.FileAnalysisName, `{"file_path":"acme/pnl.csv","objective":"margin"}`),
		assistant("Margin is 20%, from acme/pnl.csv."),
	)
	ctx := context.Background()

	sess, err := f.svc.NewSession(ctx, "margin")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	res, err := f.svc.Analyze(ctx, sess, "acme.\n", "margin")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Analysis != "Margin is 20%, from acme/pnl.csv." {
		t.Errorf("analysis = %q", res.Analysis)
	}
	if f.fake.Calls() != 2 {
		t.Errorf("model calls = %d, want 2 (outer tool call, inner answer)", f.fake.Calls())
	}

	history, err := f.checkpoints.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	last := history[len(history)-1]
	if last.Role != string(schema.Assistant) || last.Content != res.Analysis {
		t.Errorf("last checkpoint = %+v", last)
	}
}

func TestWarm(t *testing.T) {
	f := newFixture(t, assistant("Hi!"))
	ctx := context.Background()

	sess, err := f.svc.NewSession(ctx, "cached objective")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	reply, err := f.svc.Warm(ctx, sess, "stored system message")
	if err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if reply != "Hi!" {
		t.Errorf("reply = %q", reply)
	}
	in := f.fake.Inputs[0]
	if in[0].Content != "stored system message" || in[1].Content != "Say Hi!" {
		t.Errorf("warm input = %+v", in)
	}
}

func TestAnalyzeModelError(t *testing.T) {
	f := newFixture(t)
	f.fake.Err = errors.New("upstream down")
	ctx := context.Background()

	sess, err := f.svc.NewSession(ctx, "x")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	_, err = f.svc.Analyze(ctx, sess, "tree", "x")
	if err == nil || !strings.Contains(err.Error(), "analyze objective") {
		t.Fatalf("Analyze error = %v", err)
	}
}

func TestFailedAnalyzeKeepsCurrentSession(t *testing.T) {
	f := newFixture(t, assistant("Revenue grew 10%."), assistant("Still acme."))
	ctx := context.Background()

	first, err := f.svc.NewSession(ctx, "one")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := f.svc.Analyze(ctx, first, "acme.\n", "one"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	second, err := f.svc.NewSession(ctx, "two")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if cur, _ := f.registry.Current(); cur.ID != first.ID {
		t.Fatalf("NewSession alone replaced the current session")
	}
	f.fake.Err = errors.New("upstream down")
	if _, err := f.svc.Analyze(ctx, second, "globex.\n", "two"); err == nil {
		t.Fatal("expected analyze error")
	}
	f.fake.Err = nil

	id, reply, err := f.svc.Ask(ctx, "", "Which company?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if id != first.ID {
		t.Errorf("Ask answered in %q, want the first session %q", id, first.ID)
	}
	if reply != "Still acme." {
		t.Errorf("reply = %q", reply)
	}

	last := f.fake.Inputs[len(f.fake.Inputs)-1]
	if len(last) != 4 || last[0].Role != schema.System || !strings.Contains(last[0].Content, "acme.\n") {
		t.Errorf("follow-up lost the first session's history: %+v", last)
	}
	if _, _, err := f.svc.Ask(ctx, second.ID, "hello"); !errors.Is(err, sessions.ErrUnknownSession) {
		t.Errorf("Ask(failed session) error = %v, want ErrUnknownSession", err)
	}
}

func TestFailedWarmKeepsCurrentSession(t *testing.T) {
	f := newFixture(t, assistant("Hi!"))
	ctx := context.Background()

	first, err := f.svc.NewSession(ctx, "one")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := f.svc.Warm(ctx, first, "system"); err != nil {
		t.Fatalf("Warm: %v", err)
	}

	second, _ := f.svc.NewSession(ctx, "two")
	f.fake.Err = errors.New("upstream down")
	if _, err := f.svc.Warm(ctx, second, "system"); err == nil {
		t.Fatal("expected warm error")
	}

	cur, err := f.registry.Current()
	if err != nil || cur.ID != first.ID {
		t.Errorf("current = %v, %v; want %q", cur, err, first.ID)
	}
	if f.registry.Len() != 1 {
		t.Errorf("registry holds %d sessions", f.registry.Len())
	}
}
