package tree

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Summarizer produces a one-line description of a file's contents.
type Summarizer interface {
	Summarize(ctx context.Context, fileName, content string) (string, error)
}

const summaryPrompt = `You are a financial analyst. You will be given a file name and the contents of the file. Your job is describe in 20 words what useful information can this file provide. Note that the description may be used to search for this file.`

// maxSummaryInput bounds the bytes of file content sent to the model.
const maxSummaryInput = 32000

// FileSummarizer asks a chat model for a 20-word description of a file.
type FileSummarizer struct {
	model model.BaseChatModel
}

// NewFileSummarizer creates a summarizer backed by cm.
func NewFileSummarizer(cm model.BaseChatModel) *FileSummarizer {
	return &FileSummarizer{model: cm}
}

// Summarize returns the model's trimmed description.
func (s *FileSummarizer) Summarize(ctx context.Context, fileName, content string) (string, error) {
	content = truncate(content, maxSummaryInput)

	msg, err := s.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(summaryPrompt),
		schema.UserMessage(fmt.Sprintf("%s \n %s", fileName, content)),
	})
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", fileName, err)
	}

	summary := strings.TrimSpace(msg.Content)
	if summary == "" {
		return "", fmt.Errorf("summarize %s: empty response", fileName)
	}
	return summary, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
