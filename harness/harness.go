// Package harness runs wasmtrap artifacts as subprocesses and reports their
// outcome the way integration tests expect: stdout on success, and on failure
// an error carrying both output streams verbatim.
package harness

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"unicode/utf8"

	"github.com/wippyai/wasm-traps/engine"
	"github.com/wippyai/wasm-traps/errors"
)

// Compiler selects the backend of the artifact under test.
type Compiler = engine.Backend

// Engine selects how the artifact's compiled code is kept.
type Engine = engine.Strategy

// Flags returns the command-line switches selecting c and e.
func Flags(c Compiler, e Engine) []string {
	return []string{c.Flag(), e.Flag()}
}

// RunError reports an executable that exited unsuccessfully.
type RunError struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func (e *RunError) Error() string {
	return fmt.Sprintf("running executable failed: stdout: %s\n\nstderr: %s", e.Stdout, e.Stderr)
}

// Unwrap exposes the exit status as an errors.KindExitStatus error.
func (e *RunError) Unwrap() error {
	return errors.ExitStatus(e.ExitCode, fmt.Sprintf("exit status %d", e.ExitCode))
}

// RunCode runs the executable at path with args and returns its stdout.
//
// A non-zero exit yields *RunError. Output that is not valid UTF-8 is an
// invalid_utf8 error whichever way the process exited; when it also failed the
// *RunError is attached as the cause.
func RunCode(ctx context.Context, path string, args ...string) (string, error) {
	return RunCodeIn(ctx, "", path, args...)
}

// RunCodeIn is RunCode with the working directory set to dir.
func RunCodeIn(ctx context.Context, dir, path string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var runErr *RunError
	if err != nil {
		var exitErr *exec.ExitError
		if !stderrors.As(err, &exitErr) {
			return "", fmt.Errorf("start %s: %w", path, err)
		}
		runErr = &RunError{
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
	}

	if err := checkUTF8("stdout", stdout.Bytes()); err != nil {
		return "", withCause(err, runErr)
	}
	if err := checkUTF8("stderr", stderr.Bytes()); err != nil {
		return "", withCause(err, runErr)
	}
	if runErr != nil {
		return "", runErr
	}
	return stdout.String(), nil
}

func checkUTF8(stream string, data []byte) *errors.Error {
	if utf8.Valid(data) {
		return nil
	}
	return errors.InvalidUTF8(errors.PhaseHarness, []string{stream}, data)
}

func withCause(err *errors.Error, cause *RunError) error {
	if cause != nil {
		err.Cause = cause
	}
	return err
}
