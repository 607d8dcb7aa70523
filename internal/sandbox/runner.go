// Package sandbox runs model-written code outside the server process.
// Each session is its own child interpreter with a scrubbed environment;
// every run in it gets a deadline and a cap on captured output.
package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"sync"
	"time"
)

// Runner starts interpreter sessions.
// Inject this instead of calling exec.Command directly.
type Runner interface {
	Start(ctx context.Context) (Session, error)
}

// Session is one live interpreter. Globals set by a run stay visible to the
// runs after it until Close.
type Session interface {
	Run(ctx context.Context, code string) (*Output, error)
	Close() error
}

// Output is the captured result of a successful run.
type Output struct {
	Stdout    string
	Stderr    string
	Truncated bool
	Duration  time.Duration
}

var (
	// ErrTimeout is returned when a run exceeds its deadline. The session is dead afterwards.
	ErrTimeout = errors.New("execution timed out")
	// ErrClosed is returned by runs on a session that was closed or killed.
	ErrClosed = errors.New("interpreter session closed")
)

// CodeError is an exception raised by the submitted code. The session survives it.
type CodeError struct {
	Message string
	Stderr  string
}

func (e *CodeError) Error() string {
	return e.Message
}

// ExitError is returned when the interpreter process itself exits.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := lastLine(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("exit status %d: %s", e.Code, msg)
}

// replDriver reads length-prefixed code blocks from stdin, executes each in
// one shared namespace and answers with a JSON line per block.
const replDriver = `import contextlib, io, json, sys, traceback
_in = sys.stdin.buffer
_out = sys.stdout
sys.stdin = io.StringIO()
_ns = {"__name__": "__main__"}
while True:
    _header = _in.readline()
    if not _header:
        break
    _code = _in.read(int(_header)).decode("utf-8")
    _stdout, _stderr, _error = io.StringIO(), io.StringIO(), None
    with contextlib.redirect_stdout(_stdout), contextlib.redirect_stderr(_stderr):
        try:
            exec(compile(_code, "<python_repl>", "exec"), _ns)
        except BaseException as e:
            _error = "".join(traceback.format_exception_only(type(e), e)).strip()
    _out.write(json.dumps({"stdout": _stdout.getvalue(), "stderr": _stderr.getvalue(), "error": _error}) + "\n")
    _out.flush()
`

// closeGrace is how long Close waits for the interpreter to exit on EOF.
const closeGrace = 2 * time.Second

// PythonRunner starts python interpreters that keep state between runs.
type PythonRunner struct {
	Bin       string
	Dir       string
	Timeout   time.Duration
	MaxOutput int
	// Env is appended to the minimal base environment.
	Env []string
}

// NewPythonRunner creates a runner executing in dir.
func NewPythonRunner(bin, dir string, timeout time.Duration, maxOutput int) *PythonRunner {
	return &PythonRunner{
		Bin:       bin,
		Dir:       dir,
		Timeout:   timeout,
		MaxOutput: maxOutput,
	}
}

// Start launches an interpreter. The process lives until Close, a run
// timeout, or ctx of a run being cancelled.
func (r *PythonRunner) Start(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := osexec.Command(r.Bin, "-c", replDriver)
	cmd.Dir = r.Dir
	cmd.Env = r.environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &cappedBuffer{max: r.MaxOutput}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.Bin, err)
	}
	return &pythonSession{
		cmd:       cmd,
		stdin:     stdin,
		stdout:    bufio.NewReader(stdout),
		stderr:    stderr,
		timeout:   r.Timeout,
		maxOutput: r.MaxOutput,
	}, nil
}

// Available checks the interpreter can be found.
func (r *PythonRunner) Available() error {
	if _, err := osexec.LookPath(r.Bin); err != nil {
		return fmt.Errorf("python interpreter %q: %w", r.Bin, err)
	}
	return nil
}

func (r *PythonRunner) environ() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"LANG=C.UTF-8",
		"MPLBACKEND=Agg",
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONUNBUFFERED=1",
	}
	return append(env, r.Env...)
}

type pythonSession struct {
	mu        sync.Mutex
	cmd       *osexec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	stderr    *cappedBuffer
	timeout   time.Duration
	maxOutput int
	closed    bool
}

type replReply struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Error  *string `json:"error"`
}

type readResult struct {
	line []byte
	err  error
}

func (s *pythonSession) Run(ctx context.Context, code string) (*Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if _, err := fmt.Fprintf(s.stdin, "%d\n%s", len(code), code); err != nil {
		return nil, s.exited()
	}

	done := make(chan readResult, 1)
	go func() {
		line, err := s.stdout.ReadBytes('\n')
		done <- readResult{line: line, err: err}
	}()

	var res readResult
	select {
	case <-ctx.Done():
		s.kill()
		<-done
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, s.exited()
	}

	var reply replReply
	if err := json.Unmarshal(res.line, &reply); err != nil {
		return nil, fmt.Errorf("decode interpreter reply: %w", err)
	}
	stdout, outCut := capText(reply.Stdout, s.maxOutput)
	stderr, errCut := capText(reply.Stderr, s.maxOutput)
	if reply.Error != nil {
		return nil, &CodeError{Message: *reply.Error, Stderr: stderr}
	}
	return &Output{
		Stdout:    stdout,
		Stderr:    stderr,
		Truncated: outCut || errCut,
		Duration:  time.Since(start),
	}, nil
}

func (s *pythonSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.stdin.Close()

	waited := make(chan error, 1)
	go func() { waited <- s.cmd.Wait() }()
	select {
	case <-waited:
	case <-time.After(closeGrace):
		s.cmd.Process.Kill()
		<-waited
	}
	return nil
}

// exited reaps an interpreter that stopped answering and reports how it ended.
func (s *pythonSession) exited() error {
	s.closed = true
	s.stdin.Close()
	s.cmd.Wait()
	code := -1
	if s.cmd.ProcessState != nil {
		code = s.cmd.ProcessState.ExitCode()
	}
	return &ExitError{Code: code, Stderr: s.stderr.String()}
}

func (s *pythonSession) kill() {
	s.closed = true
	s.cmd.Process.Kill()
	s.stdin.Close()
	go s.cmd.Wait()
}

func capText(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	return s[:max], true
}

// cappedBuffer keeps the first max bytes written and drops the rest.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max <= 0 {
		return b.buf.Write(p)
	}
	room := b.max - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// MockRunner implements Runner for testing. Every session it starts shares
// the same canned reply.
type MockRunner struct {
	mu sync.Mutex
	// Calls records every code snippet received, across sessions.
	Calls  []string
	Starts int
	Closes int

	Stdout string
	Err    error
}

// NewMockRunner creates a mock returning stdout and err for every run.
func NewMockRunner(stdout string, err error) *MockRunner {
	return &MockRunner{Stdout: stdout, Err: err}
}

func (m *MockRunner) Start(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Starts++
	return &mockSession{m: m}, nil
}

// Available always succeeds for the mock.
func (m *MockRunner) Available() error {
	return nil
}

type mockSession struct {
	m *MockRunner
}

func (s *mockSession) Run(ctx context.Context, code string) (*Output, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.Calls = append(s.m.Calls, code)
	if s.m.Err != nil {
		return nil, s.m.Err
	}
	return &Output{Stdout: s.m.Stdout}, nil
}

func (s *mockSession) Close() error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.Closes++
	return nil
}

var (
	_ Runner  = (*PythonRunner)(nil)
	_ Runner  = (*MockRunner)(nil)
	_ Session = (*pythonSession)(nil)
)
