package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/oshokin/conda-buildenv/internal/logger"
)

// defaultTailSize bounds how much output an Error keeps.
const defaultTailSize = 4 << 10

var errEmptyCommand = errors.New("empty command")

// Command describes one external process invocation.
type Command struct {
	// Args is the full argument vector; Args[0] is the program.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env replaces the process environment when non-nil.
	Env []string
}

// String renders the argument vector the way a shell user would type it.
func (c *Command) String() string {
	quoted := make([]string, len(c.Args))

	for i, arg := range c.Args {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			quoted[i] = fmt.Sprintf("%q", arg)
		} else {
			quoted[i] = arg
		}
	}

	return strings.Join(quoted, " ")
}

// Result is the outcome of a finished process.
type Result struct {
	// ExitCode is the process exit status.
	ExitCode int
	// Output is the tail of combined stdout and stderr.
	Output []byte
}

// Error reports a command that could not start or exited non-zero.
type Error struct {
	// Command is the invocation that failed.
	Command *Command
	// ExitCode is -1 when the process never ran.
	ExitCode int
	// Output is the tail of combined stdout and stderr.
	Output string
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("failed to run %s: %v", e.Command.String(), e.Err)
	}

	return fmt.Sprintf("failed to run %s: exit code %d", e.Command.String(), e.ExitCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd *Command) (*Result, error)
}

// ExecRunner runs commands with os/exec, streaming their output to Stdout
// while keeping a tail for error reports.
type ExecRunner struct {
	// Stdout receives live process output; nil means os.Stdout.
	Stdout io.Writer
	// TailSize is how many trailing output bytes to keep; zero means 4 KiB.
	TailSize int
}

// NewExecRunner returns an ExecRunner writing to os.Stdout.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, TailSize: defaultTailSize}
}

// Run starts cmd, waits for it and returns an *Error when it fails.
func (r *ExecRunner) Run(ctx context.Context, cmd *Command) (*Result, error) {
	if cmd == nil || len(cmd.Args) == 0 {
		return nil, errEmptyCommand
	}

	out := r.Stdout
	if out == nil {
		out = os.Stdout
	}

	tail := newTailBuffer(r.TailSize)
	sink := io.MultiWriter(out, tail)

	//nolint:gosec // Running external tools is the purpose of this package.
	process := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	process.Dir = cmd.Dir
	process.Env = cmd.Env
	process.Stdout = sink
	process.Stderr = sink

	logger.DebugKV(ctx, "Running command", "command", cmd.String(), "dir", cmd.Dir)

	err := process.Run()
	result := &Result{ExitCode: process.ProcessState.ExitCode(), Output: tail.Bytes()}

	if err == nil {
		return result, nil
	}

	cmdErr := &Error{
		Command:  cmd,
		ExitCode: -1,
		Output:   string(tail.Bytes()),
		Err:      err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	}

	return result, cmdErr
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = defaultTailSize
	}

	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)

	if len(p) >= t.limit {
		t.buf.Reset()
		t.buf.Write(p[len(p)-t.limit:])

		return n, nil
	}

	if overflow := t.buf.Len() + len(p) - t.limit; overflow > 0 {
		t.buf.Next(overflow)
	}

	t.buf.Write(p)

	return n, nil
}

func (t *tailBuffer) Bytes() []byte {
	return bytes.Clone(t.buf.Bytes())
}
