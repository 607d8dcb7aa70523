// Package tree renders an extracted archive as a directory tree of business
// files for the agent's system prompt and the UI.
package tree

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Kind classifies a node.
type Kind string

const (
	KindDirectory Kind = "directory"
	KindFile      Kind = "file"
	KindMetadata  Kind = "metadata"
	KindCount     Kind = "count"
)

// Sentinel annotations for files that could not be summarized.
const (
	ParseFailed     = "Error parsing file"
	SummarizeFailed = "Error summarizing file"
)

// Node is one entry of the tree. Children are owned by their parent.
type Node struct {
	Name         string  `json:"name"`
	Kind         Kind    `json:"kind"`
	Path         string  `json:"path,omitempty"`
	FileAnalysis string  `json:"file_analysis,omitempty"`
	Children     []*Node `json:"children,omitempty"`
}

// Tree is the result of one build: the root node and per-extension file counts.
type Tree struct {
	Root   *Node
	Counts map[string]int
}

// Overview is the pair of renderings handed to the agent and the client.
type Overview struct {
	JSON json.RawMessage
	Text string
}

// JSON returns the nested JSON export.
func (t *Tree) JSON() (json.RawMessage, error) {
	data, err := json.Marshal(t.Root)
	if err != nil {
		return nil, fmt.Errorf("marshal tree: %w", err)
	}
	return data, nil
}

// Text renders the tree with box-drawing guides. File lines carry their path
// and, when annotated, their content summary. Every line ends with a period.
func (t *Tree) Text() string {
	var sb strings.Builder
	sb.WriteString(label(t.Root))
	sb.WriteString(".\n")
	renderChildren(&sb, t.Root, "")
	return sb.String()
}

// Files returns the sorted paths of all file leaves.
func (t *Tree) Files() []string {
	var files []string
	var visit func(n *Node)
	visit = func(n *Node) {
		if n.Kind == KindFile {
			files = append(files, n.Path)
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(t.Root)
	sort.Strings(files)
	return files
}

// Overview returns both renderings.
func (t *Tree) Overview() (Overview, error) {
	data, err := t.JSON()
	if err != nil {
		return Overview{}, err
	}
	return Overview{JSON: data, Text: t.Text()}, nil
}

// LoadFixture reads a prepared overview from disk instead of walking an archive.
func LoadFixture(jsonPath, textPath string) (Overview, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Overview{}, fmt.Errorf("read tree fixture: %w", err)
	}
	if !json.Valid(data) {
		return Overview{}, fmt.Errorf("tree fixture %s is not valid JSON", jsonPath)
	}
	text, err := os.ReadFile(textPath)
	if err != nil {
		return Overview{}, fmt.Errorf("read tree fixture: %w", err)
	}
	return Overview{JSON: data, Text: string(text)}, nil
}

func renderChildren(sb *strings.Builder, n *Node, prefix string) {
	for i, c := range n.Children {
		last := i == len(n.Children)-1
		branch, fill := "├── ", "│   "
		if last {
			branch, fill = "└── ", "    "
		}
		sb.WriteString(prefix)
		sb.WriteString(branch)
		sb.WriteString(label(c))
		sb.WriteString(".\n")
		renderChildren(sb, c, prefix+fill)
	}
}

func label(n *Node) string {
	if n.Kind != KindFile {
		return n.Name
	}
	s := fmt.Sprintf("%s (Path: %s)", n.Name, n.Path)
	if n.FileAnalysis != "" {
		s += fmt.Sprintf(" (Content Summary: %s)", n.FileAnalysis)
	}
	return s
}

// metadataNode lists "<ext>: <count>" children in extension order.
func metadataNode(counts map[string]int) *Node {
	exts := make([]string, 0, len(counts))
	for ext := range counts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	meta := &Node{Name: "metadata", Kind: KindMetadata}
	for _, ext := range exts {
		meta.Children = append(meta.Children, &Node{
			Name: fmt.Sprintf("%s: %d", ext, counts[ext]),
			Kind: KindCount,
		})
	}
	return meta
}
