package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"github.com/RRaffay/Finance-Data-Agent/internal/loader"
	"github.com/RRaffay/Finance-Data-Agent/internal/sandbox"
)

const (
	pythonREPLName     = "python_repl"
	fileContentName    = "get_file_content"
	spreadsheetMaxRows = 200

	noOutputText       = "No output from the code. Please add a print statement to get the output."
	fileContentFailed  = "Error retrieving file content."
	spreadsheetWarning = "WARNING: Content length is longer than recommended for emulating in python using StringIO. Read file directly in python code from file path."
)

type pythonInput struct {
	Code string `json:"code" jsonschema_description:"The python code to execute. To access the output, you must add a print statement."`
}

type fileContentInput struct {
	FilePath string `json:"file_path" jsonschema_description:"Path of the file to analyze. Has to be with respect to the root directory."`
}

// repl is the interpreter behind every python_repl call of one tool run, so
// variables defined by one call are visible to the next. It starts on first
// use and is replaced after a timeout or crash.
type repl struct {
	runner sandbox.Runner
	mu     sync.Mutex
	sess   sandbox.Session
}

func (r *repl) Run(ctx context.Context, code string) (*sandbox.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess == nil {
		sess, err := r.runner.Start(ctx)
		if err != nil {
			return nil, err
		}
		r.sess = sess
	}
	out, err := r.sess.Run(ctx, code)
	var codeErr *sandbox.CodeError
	if err != nil && !errors.As(err, &codeErr) {
		r.sess.Close()
		r.sess = nil
	}
	return out, err
}

func (r *repl) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess == nil {
		return nil
	}
	err := r.sess.Close()
	r.sess = nil
	return err
}

// pythonTool exposes the sandbox to an inner agent. With requireOutput set,
// code that prints nothing is reported back so the model can add a print.
func (k *Toolkit) pythonTool(py *repl, requireOutput bool) (tool.BaseTool, error) {
	desc := "Use this to execute python code. This will return the output of the code."
	if requireOutput {
		desc = "Use this to execute python code where you need to perform calculations. To access the output, you must add a print statement. Not using print statement will not return any output."
	}
	return utils.InferTool(pythonREPLName, desc, func(ctx context.Context, in *pythonInput) (string, error) {
		return k.runPython(ctx, py, in.Code, requireOutput), nil
	})
}

func (k *Toolkit) fileContentTool() (tool.BaseTool, error) {
	return utils.InferTool(fileContentName,
		"Use this tool to get the content of the file. This will return the content of the file.",
		func(ctx context.Context, in *fileContentInput) (string, error) {
			return k.fileContent(ctx, in.FilePath), nil
		})
}

// runPython returns the model-facing result of running code.
func (k *Toolkit) runPython(ctx context.Context, py *repl, code string, requireOutput bool) string {
	stdout, err := k.execute(ctx, py, code, requireOutput)
	switch {
	case errors.Is(err, ErrEmptyOutput):
		stdout = noOutputText
	case err != nil:
		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			err = execErr.Err
		}
		k.cfg.Logger.Debug("python execution failed", "error", err)
		return fmt.Sprintf("Failed to execute. Error: %v", err)
	}
	return fmt.Sprintf("Code:\n```python\n%s\n```\nStdout: %s", code, stdout)
}

func (k *Toolkit) execute(ctx context.Context, py *repl, code string, requireOutput bool) (string, error) {
	out, err := py.Run(ctx, code)
	if err != nil {
		return "", &ExecutionError{Err: err}
	}
	stdout := out.Stdout
	if out.Truncated {
		stdout += "\n[output truncated]"
	}
	if requireOutput && stdout == "" {
		return "", ErrEmptyOutput
	}
	return stdout, nil
}

// fileContent returns the file's text, or the fixed failure string.
func (k *Toolkit) fileContent(ctx context.Context, path string) string {
	content, err := k.readFile(ctx, path)
	if err != nil {
		k.cfg.Logger.Warn("failed to read file for tool", "path", path, "error", err)
		return fileContentFailed
	}
	return content
}

// readFile loads path and prefixes a warning on long spreadsheets, which the
// model should read from disk rather than inline.
func (k *Toolkit) readFile(ctx context.Context, path string) (string, error) {
	content, err := loader.LoadText(ctx, k.cfg.Loader, path)
	if err != nil {
		return "", &LoadError{Path: path, Err: err}
	}
	if loader.IsSpreadsheet(path) && lineCount(content) > spreadsheetMaxRows {
		return spreadsheetWarning + "\n\n" + content, nil
	}
	return content, nil
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return len(strings.Split(strings.TrimSuffix(s, "\n"), "\n"))
}
