package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/clubfridge/kasse-deploy/internal/logger"
)

// maxErrorOutput limits how much tool output is copied into an error.
const maxErrorOutput = 2048

// ErrEmptyCommand is returned for a Cmd without a program name.
var ErrEmptyCommand = errors.New("command name is empty")

// Cmd describes one invocation of an external tool.
type Cmd struct {
	// Name is the program to run, resolved through PATH.
	Name string
	// Args are the program arguments.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env []string
}

// New creates a Cmd for name and args.
func New(name string, args ...string) *Cmd {
	return &Cmd{Name: name, Args: args}
}

// InDir sets the working directory.
func (c *Cmd) InDir(dir string) *Cmd {
	c.Dir = dir
	return c
}

// WithEnv appends KEY=VALUE pairs to the environment.
func (c *Cmd) WithEnv(kvs ...string) *Cmd {
	c.Env = append(c.Env, kvs...)
	return c
}

// String renders the command line for logs and errors.
func (c *Cmd) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes commands and returns their combined output.
type Runner interface {
	Run(ctx context.Context, cmd *Cmd) ([]byte, error)
}

// Error is returned when a command exits unsuccessfully.
type Error struct {
	// Command is the rendered command line.
	Command string
	// Output is the trimmed combined output of the command.
	Output string
	// Err is the underlying exec error.
	Err error
}

func (e *Error) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}

	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Output)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Exec runs commands as subprocesses of the current process.
type Exec struct{}

// NewExec returns a Runner backed by os/exec.
func NewExec() *Exec {
	return &Exec{}
}

// Run executes cmd and waits for it to finish.
func (e *Exec) Run(ctx context.Context, cmd *Cmd) ([]byte, error) {
	if cmd == nil || cmd.Name == "" {
		return nil, ErrEmptyCommand
	}

	logger.DebugKV(ctx, "Running command", "command", cmd.String(), "dir", cmd.Dir)

	//nolint:gosec // Commands are assembled by the adapters, not from user input.
	process := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	process.Dir = cmd.Dir

	if len(cmd.Env) > 0 {
		process.Env = append(os.Environ(), cmd.Env...)
	}

	var output bytes.Buffer

	process.Stdout = &output
	process.Stderr = &output

	if err := process.Run(); err != nil {
		return output.Bytes(), &Error{
			Command: cmd.String(),
			Output:  truncate(strings.TrimSpace(output.String())),
			Err:     err,
		}
	}

	return output.Bytes(), nil
}

func truncate(s string) string {
	if len(s) <= maxErrorOutput {
		return s
	}

	return "..." + s[len(s)-maxErrorOutput:]
}
