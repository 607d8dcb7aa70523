package tools

import (
	"errors"
	"fmt"
)

// ErrEmptyOutput is returned when code ran but printed nothing.
var ErrEmptyOutput = errors.New("no output from the code")

// ErrEmptyReply is returned when an inner agent finishes with no text.
var ErrEmptyReply = errors.New("empty agent reply")

// LoadError represents a file that could not be turned into text.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load error %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ExecutionError represents model-written code that failed in the sandbox.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// AgentError represents a failed inner agent run for one tool.
type AgentError struct {
	Tool string
	Op   string // "model", "build", "generate"
	Err  error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Tool, e.Op, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}
