// Package e2etests exercises the built ams binary end to end. The tests are
// driven by the AMS_CMD environment variable pointing at the binary and skip
// when it is unset, so unit test runs stay self-contained:
//
//	go build -o /tmp/ams . && AMS_CMD=/tmp/ams go test ./e2etests/
package e2etests

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes ams commands inside a sandbox directory.
type Runner struct {
	AmsCmd string
}

// Sandbox is an isolated working directory with its own .ams store.
type Sandbox struct {
	Dir string
}

// SetupSandbox creates a fresh sandbox directory.
func (r *Runner) SetupSandbox() (*Sandbox, error) {
	dir, err := os.MkdirTemp("", "ams-e2e-*")
	if err != nil {
		return nil, fmt.Errorf("creating sandbox: %w", err)
	}
	return &Sandbox{Dir: dir}, nil
}

// TeardownSandbox removes the sandbox directory.
func (r *Runner) TeardownSandbox(s *Sandbox) {
	os.RemoveAll(s.Dir)
}

// Result holds the outcome of one command invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run invokes the ams binary with args in the sandbox.
func (r *Runner) Run(s *Sandbox, args ...string) (*Result, error) {
	cmd := exec.Command(r.AmsCmd, args...)
	cmd.Dir = s.Dir
	// Keep output deterministic regardless of the invoking terminal.
	cmd.Env = append(os.Environ(), "NO_COLOR=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("running %s %s: %w", r.AmsCmd, strings.Join(args, " "), err)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}

// MustRun invokes the binary and fails on a non-zero exit.
func (r *Runner) MustRun(s *Sandbox, args ...string) (*Result, error) {
	result, err := r.Run(s, args...)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("ams %s exited %d\nstdout: %s\nstderr: %s",
			strings.Join(args, " "), result.ExitCode, result.Stdout, result.Stderr)
	}
	return result, nil
}
