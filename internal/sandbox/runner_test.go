package sandbox

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPython(t *testing.T, timeout time.Duration, maxOut int) Session {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	r := NewPythonRunner("python3", t.TempDir(), timeout, maxOut)
	s, err := r.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunCapturesStdout(t *testing.T) {
	s := startPython(t, 5*time.Second, 1024)

	out, err := s.Run(context.Background(), "print('hello')")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.Stdout)
	assert.False(t, out.Truncated)
}

func TestRunKeepsGlobalsBetweenRuns(t *testing.T) {
	s := startPython(t, 5*time.Second, 1024)
	ctx := context.Background()

	out, err := s.Run(ctx, "x = 41\nimport math")
	require.NoError(t, err)
	assert.Empty(t, out.Stdout)

	out, err = s.Run(ctx, "print(x + 1, math.floor(2.5))")
	require.NoError(t, err)
	assert.Equal(t, "42 2\n", out.Stdout)
}

func TestRunCodeErrorKeepsSession(t *testing.T) {
	s := startPython(t, 5*time.Second, 1024)
	ctx := context.Background()

	_, err := s.Run(ctx, "total = 10\nprint(missing)")
	var codeErr *CodeError
	require.True(t, errors.As(err, &codeErr), "got %v", err)
	assert.Contains(t, codeErr.Error(), "NameError: name 'missing' is not defined")

	out, err := s.Run(ctx, "print(total)")
	require.NoError(t, err)
	assert.Equal(t, "10\n", out.Stdout)
}

func TestRunInterpreterExit(t *testing.T) {
	s := startPython(t, 5*time.Second, 1024)
	ctx := context.Background()

	_, err := s.Run(ctx, "import os, sys\nsys.__stderr__.write('boom\\n')\nsys.__stderr__.flush()\nos._exit(3)")
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.Error(), "boom")

	_, err = s.Run(ctx, "print(1)")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRunTimeout(t *testing.T) {
	s := startPython(t, 200*time.Millisecond, 1024)

	_, err := s.Run(context.Background(), "import time\ntime.sleep(5)")
	assert.ErrorIs(t, err, ErrTimeout)

	_, err = s.Run(context.Background(), "print(1)")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRunCapsOutput(t *testing.T) {
	s := startPython(t, 5*time.Second, 4)

	out, err := s.Run(context.Background(), "print('a' * 10, end='')")
	require.NoError(t, err)
	assert.Equal(t, "aaaa", out.Stdout)
	assert.True(t, out.Truncated)
}

func TestRunScrubsEnvironment(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	t.Setenv("FINAGENT_SECRET", "do-not-leak")
	r := NewPythonRunner("python3", t.TempDir(), 5*time.Second, 1024)
	r.Env = []string{"EXTRA=1"}

	s, err := r.Start(context.Background())
	require.NoError(t, err)
	defer s.Close()

	out, err := s.Run(context.Background(), `import os; print(os.environ.get("FINAGENT_SECRET", "") + "|" + os.environ["MPLBACKEND"] + "|" + os.environ["EXTRA"])`)
	require.NoError(t, err)
	assert.Equal(t, "|Agg|1\n", out.Stdout)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := startPython(t, 5*time.Second, 1024)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err := s.Run(context.Background(), "print(1)")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStartMissingInterpreter(t *testing.T) {
	r := NewPythonRunner("definitely-not-an-interpreter", "", time.Second, 10)
	assert.Error(t, r.Available())

	_, err := r.Start(context.Background())
	assert.Error(t, err)
}

func TestMockRunnerRecordsCalls(t *testing.T) {
	m := NewMockRunner("42\n", nil)
	s, err := m.Start(context.Background())
	require.NoError(t, err)

	out, err := s.Run(context.Background(), "print(42)")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out.Stdout)
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"print(42)"}, m.Calls)
	assert.Equal(t, 1, m.Starts)
	assert.Equal(t, 1, m.Closes)
}
