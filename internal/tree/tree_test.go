package tree

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/RRaffay/Finance-Data-Agent/internal/llm"
	"github.com/RRaffay/Finance-Data-Agent/internal/loader"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

type stubSummarizer struct {
	err   error
	calls []string
}

func (s *stubSummarizer) Summarize(ctx context.Context, fileName, content string) (string, error) {
	s.calls = append(s.calls, fileName)
	if s.err != nil {
		return "", s.err
	}
	return "summary of " + fileName, nil
}

func TestBuildDisallowedOnly(t *testing.T) {
	root := filepath.Join(t.TempDir(), "acme")
	writeFiles(t, root, map[string]string{
		"logo.png":       "x",
		"deck.pptx":      "x",
		"scripts/run.sh": "x",
	})

	tr, err := NewBuilder(loader.New(), nil, testLogger()).Build(context.Background(), root, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if files := tr.Files(); len(files) != 0 {
		t.Errorf("expected no file leaves, got %v", files)
	}

	last := tr.Root.Children[len(tr.Root.Children)-1]
	if last.Kind != KindMetadata {
		t.Fatalf("last child kind = %s, want metadata", last.Kind)
	}
	if len(last.Children) != 0 {
		t.Errorf("expected empty metadata node, got %d children", len(last.Children))
	}
}

func TestBuildStructure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "acme")
	writeFiles(t, root, map[string]string{
		"b.csv":                "q,rev\n",
		"a.md":                 "# notes",
		"finance/pnl.XLSX":     "not really a workbook",
		"finance/raw/data.txt": "x",
		"__MACOSX/._b.csv":     "junk",
		".DS_Store":            "junk",
		"photo.jpg":            "x",
	})
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	tr, err := NewBuilder(loader.New(), nil, testLogger()).Build(context.Background(), root, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if tr.Root.Name != "acme" {
		t.Errorf("root name = %q", tr.Root.Name)
	}

	var names []string
	for _, c := range tr.Root.Children {
		names = append(names, c.Name)
	}
	want := []string{"a.md", "b.csv", "empty", "finance", "metadata"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("top-level children = %v, want %v", names, want)
	}

	empty := tr.Root.Children[2]
	if empty.Kind != KindDirectory || len(empty.Children) != 0 {
		t.Errorf("empty dir node = %+v", empty)
	}

	wantCounts := map[string]int{".csv": 1, ".md": 1, ".xlsx": 1, ".txt": 1}
	for ext, n := range wantCounts {
		if tr.Counts[ext] != n {
			t.Errorf("count[%s] = %d, want %d", ext, tr.Counts[ext], n)
		}
	}

	meta := tr.Root.Children[len(tr.Root.Children)-1]
	var metaNames []string
	for _, c := range meta.Children {
		metaNames = append(metaNames, c.Name)
	}
	if got := strings.Join(metaNames, ","); got != ".csv: 1,.md: 1,.txt: 1,.xlsx: 1" {
		t.Errorf("metadata children = %s", got)
	}
}

func TestExportsListSameFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "acme")
	writeFiles(t, root, map[string]string{
		"q1/revenue.csv": "a",
		"q1/costs.csv":   "b",
		"q2/memo.docx":   "c",
		"readme.txt":     "d",
	})

	tr, err := NewBuilder(loader.New(), nil, testLogger()).Build(context.Background(), root, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	data, err := tr.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded Node
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	fromJSON := (&Tree{Root: &decoded}).Files()

	re := regexp.MustCompile(`\(Path: ([^)]+)\)`)
	var fromText []string
	for _, m := range re.FindAllStringSubmatch(tr.Text(), -1) {
		fromText = append(fromText, m[1])
	}
	sort.Strings(fromText)

	if len(fromJSON) != 4 {
		t.Fatalf("expected 4 files, got %v", fromJSON)
	}
	if strings.Join(fromJSON, "|") != strings.Join(fromText, "|") {
		t.Errorf("json files %v != text files %v", fromJSON, fromText)
	}
	for _, f := range fromJSON {
		if !strings.HasPrefix(f, filepath.ToSlash(root)+"/") {
			t.Errorf("file path %q not rooted at %q", f, root)
		}
	}
}

func TestTextRendering(t *testing.T) {
	root := filepath.Join(t.TempDir(), "acme")
	writeFiles(t, root, map[string]string{
		"docs/plan.md": "x",
		"sales.csv":    "y",
	})

	tr, err := NewBuilder(loader.New(), nil, testLogger()).Build(context.Background(), root, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	base := filepath.ToSlash(root)
	want := "acme.\n" +
		"├── docs.\n" +
		"│   └── plan.md (Path: " + base + "/docs/plan.md).\n" +
		"├── sales.csv (Path: " + base + "/sales.csv).\n" +
		"└── metadata.\n" +
		"    ├── .csv: 1.\n" +
		"    └── .md: 1.\n"
	if got := tr.Text(); got != want {
		t.Errorf("Text() =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildAnnotates(t *testing.T) {
	root := filepath.Join(t.TempDir(), "acme")
	writeFiles(t, root, map[string]string{
		"sales.csv":  "q,rev\nQ1,100\n",
		"legacy.doc": "binary",
	})

	s := &stubSummarizer{}
	tr, err := NewBuilder(loader.New(), s, testLogger()).Build(context.Background(), root, true)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	byName := map[string]*Node{}
	for _, c := range tr.Root.Children {
		byName[c.Name] = c
	}
	if got := byName["sales.csv"].FileAnalysis; got != "summary of sales.csv" {
		t.Errorf("sales.csv analysis = %q", got)
	}
	if got := byName["legacy.doc"].FileAnalysis; got != ParseFailed {
		t.Errorf("legacy.doc analysis = %q, want %q", got, ParseFailed)
	}
	if len(s.calls) != 1 {
		t.Errorf("summarizer calls = %v", s.calls)
	}
	if !strings.Contains(tr.Text(), "(Content Summary: summary of sales.csv).") {
		t.Errorf("text missing summary:\n%s", tr.Text())
	}
}

func TestBuildSummarizerFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "acme")
	writeFiles(t, root, map[string]string{"sales.csv": "q,rev\n"})

	s := &stubSummarizer{err: errors.New("rate limited")}
	tr, err := NewBuilder(loader.New(), s, testLogger()).Build(context.Background(), root, true)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := tr.Root.Children[0].FileAnalysis; got != SummarizeFailed {
		t.Errorf("analysis = %q, want %q", got, SummarizeFailed)
	}
}

func TestBuildRequiresSummarizerForAnalysis(t *testing.T) {
	_, err := NewBuilder(loader.New(), nil, testLogger()).Build(context.Background(), t.TempDir(), true)
	if err == nil {
		t.Fatal("expected error without summarizer")
	}
}

func TestBuildMissingRoot(t *testing.T) {
	_, err := NewBuilder(loader.New(), nil, testLogger()).Build(context.Background(), "/nonexistent/dir", false)
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestFileSummarizer(t *testing.T) {
	fake := llm.NewFakeModel(&schema.Message{Role: schema.Assistant, Content: "  Quarterly revenue by region.  "})
	s := NewFileSummarizer(fake)

	got, err := s.Summarize(context.Background(), "sales.csv", "q,rev")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Quarterly revenue by region." {
		t.Errorf("summary = %q", got)
	}

	in := fake.Inputs[0]
	if len(in) != 2 || in[0].Role != schema.System || !strings.Contains(in[0].Content, "20 words") {
		t.Errorf("unexpected prompt %+v", in)
	}
	if in[1].Content != "sales.csv \n q,rev" {
		t.Errorf("user message = %q", in[1].Content)
	}
}

func TestFileSummarizerTruncatesOnRuneBoundary(t *testing.T) {
	fake := llm.NewFakeModel(&schema.Message{Role: schema.Assistant, Content: "Euro ledger."})
	s := NewFileSummarizer(fake)

	// "€" is three bytes; the limit falls inside the last one.
	content := strings.Repeat("a", maxSummaryInput-1) + "€€"
	if _, err := s.Summarize(context.Background(), "ledger.csv", content); err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	sent := fake.Inputs[0][1].Content
	if !utf8.ValidString(sent) {
		t.Fatal("summary prompt is not valid UTF-8")
	}
	if want := "ledger.csv \n " + strings.Repeat("a", maxSummaryInput-1); sent != want {
		t.Errorf("sent %d bytes, want %d", len(sent), len(want))
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abc", 2, "ab"},
		{"a€b", 2, "a"},
		{"a€b", 4, "a€"},
		{"€", 1, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFileSummarizerEmpty(t *testing.T) {
	s := NewFileSummarizer(llm.NewFakeModel(&schema.Message{Role: schema.Assistant}))
	if _, err := s.Summarize(context.Background(), "a.csv", "x"); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestLoadFixture(t *testing.T) {
	dir := t.TempDir()
	jp := filepath.Join(dir, "tree.json")
	tp := filepath.Join(dir, "tree.txt")
	os.WriteFile(jp, []byte(`{"name":"acme","kind":"directory"}`), 0o644)
	os.WriteFile(tp, []byte("acme.\n"), 0o644)

	ov, err := LoadFixture(jp, tp)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if ov.Text != "acme.\n" || string(ov.JSON) != `{"name":"acme","kind":"directory"}` {
		t.Errorf("unexpected overview %+v", ov)
	}

	os.WriteFile(jp, []byte("not json"), 0o644)
	if _, err := LoadFixture(jp, tp); err == nil {
		t.Error("expected error for invalid JSON fixture")
	}
}
