package tree

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/document"

	"github.com/RRaffay/Finance-Data-Agent/internal/loader"
)

// Builder walks extracted archives into Trees.
type Builder struct {
	loader     document.Loader
	summarizer Summarizer
	logger     *slog.Logger
}

// NewBuilder creates a builder. summarizer may be nil when file analysis is never requested.
func NewBuilder(l document.Loader, summarizer Summarizer, logger *slog.Logger) *Builder {
	return &Builder{loader: l, summarizer: summarizer, logger: logger}
}

// Build walks root and returns its tree. Directory entries are visited in
// lexical order; archive artefacts and dot-files are skipped; only allow-listed
// files appear. With analyze set, each file is annotated with a short summary.
func (b *Builder) Build(ctx context.Context, root string, analyze bool) (*Tree, error) {
	if analyze && b.summarizer == nil {
		return nil, fmt.Errorf("build tree: file analysis requested without a summarizer")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("build tree: %s is not a directory", root)
	}

	clean := filepath.Clean(root)
	node, counts, err := b.fold(ctx, clean, filepath.ToSlash(clean), analyze)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}
	node.Name = filepath.Base(clean)
	node.Children = append(node.Children, metadataNode(counts))

	return &Tree{Root: node, Counts: counts}, nil
}

// fold returns the node for dir together with the extension counts beneath it.
func (b *Builder) fold(ctx context.Context, dir, display string, analyze bool) (*Node, map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	node := &Node{Name: filepath.Base(dir), Kind: KindDirectory}
	counts := map[string]int{}

	for _, e := range entries {
		if skipped(e.Name()) {
			continue
		}
		full := filepath.Join(dir, e.Name())
		shown := path.Join(display, e.Name())

		switch {
		case e.IsDir():
			child, sub, err := b.fold(ctx, full, shown, analyze)
			if err != nil {
				return nil, nil, err
			}
			node.Children = append(node.Children, child)
			for ext, n := range sub {
				counts[ext] += n
			}
		case e.Type().IsRegular() && loader.Allowed(e.Name()):
			counts[loader.Ext(e.Name())]++
			leaf := &Node{Name: e.Name(), Kind: KindFile, Path: shown}
			if analyze {
				leaf.FileAnalysis = b.annotate(ctx, full)
			}
			node.Children = append(node.Children, leaf)
		}
	}
	return node, counts, nil
}

func (b *Builder) annotate(ctx context.Context, path string) string {
	content, err := loader.LoadText(ctx, b.loader, path)
	if err != nil {
		b.logger.Warn("failed to parse file", "path", path, "error", err)
		return ParseFailed
	}
	summary, err := b.summarizer.Summarize(ctx, filepath.Base(path), content)
	if err != nil {
		b.logger.Warn("failed to summarize file", "path", path, "error", err)
		return SummarizeFailed
	}
	return summary
}

func skipped(name string) bool {
	return name == "__MACOSX" || strings.HasPrefix(name, ".")
}
