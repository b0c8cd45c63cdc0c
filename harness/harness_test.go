package harness

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/wasm-traps/engine"
	"github.com/wippyai/wasm-traps/errors"
	"github.com/wippyai/wasm-traps/internal/wasmtest"
	"github.com/wippyai/wasm-traps/runner"
	"github.com/wippyai/wasm-traps/trap"
)

// helperEnv makes the test binary behave as the wasmtrap command.
const helperEnv = "WASMTRAP_HARNESS_HELPER"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		os.Exit(runner.Main(os.Args[1:], os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

// artifact writes wasm to a temporary file and returns the command line that
// runs it through the helper process.
func artifact(t *testing.T, wasm []byte, c Compiler, e Engine, extra ...string) (string, []string) {
	t.Helper()
	t.Setenv(helperEnv, "1")

	path := filepath.Join(t.TempDir(), "artifact.wasm")
	if err := os.WriteFile(path, wasm, 0o644); err != nil {
		t.Fatal(err)
	}
	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}

	args := append([]string{"-wasm", path, "-cache-dir", t.TempDir()}, Flags(c, e)...)
	return exe, append(args, extra...)
}

func TestFlags(t *testing.T) {
	tests := []struct {
		c    Compiler
		e    Engine
		want string
	}{
		{engine.Cranelift, engine.JIT, "--cranelift --jit"},
		{engine.LLVM, engine.Native, "--llvm --native"},
		{engine.Singlepass, engine.ObjectFile, "--singlepass --object-file"},
	}

	for _, tc := range tests {
		if got := strings.Join(Flags(tc.c, tc.e), " "); got != tc.want {
			t.Errorf("Flags(%v, %v) = %q, want %q", tc.c, tc.e, got, tc.want)
		}
	}
}

func TestRunCode_DivideByZeroFails(t *testing.T) {
	if !engine.CompilerSupported() {
		t.Skip("compiler not supported on this platform")
	}

	exe, args := artifact(t, wasmtest.PrintThenDivide("about to divide\n"), engine.Cranelift, engine.JIT)
	out, err := RunCode(context.Background(), exe, args...)
	if err == nil {
		t.Fatalf("expected failure, got output %q", out)
	}

	var runErr *RunError
	if !stderrors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %T: %v", err, err)
	}
	if runErr.ExitCode == 0 {
		t.Error("exit code should be non-zero")
	}
	if runErr.ExitCode != 128+int(trap.IntegerDivisionByZero) {
		t.Errorf("exit code = %d, want 136", runErr.ExitCode)
	}
	if runErr.Stdout != "about to divide\n" {
		t.Errorf("Stdout = %q", runErr.Stdout)
	}
	if !strings.Contains(runErr.Stderr, "int_divz") {
		t.Errorf("Stderr should name the trap:\n%s", runErr.Stderr)
	}

	msg := err.Error()
	for _, want := range []string{"running executable failed", "stdout: about to divide", "stderr: ", "integer divide by zero"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q:\n%s", want, msg)
		}
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseHarness, Kind: errors.KindExitStatus}) {
		t.Error("RunError should match the exit_status kind")
	}
}

func TestRunCode_Success(t *testing.T) {
	exe, args := artifact(t, wasmtest.Add(), engine.Singlepass, engine.JIT, "-func", "add", "-args", "2,40")
	out, err := RunCode(context.Background(), exe, args...)
	if err != nil {
		t.Fatalf("RunCode failed: %v", err)
	}
	if out != "42\n" {
		t.Errorf("output = %q, want %q", out, "42\n")
	}
}

func TestRunCode_Strategies(t *testing.T) {
	for _, s := range []Engine{engine.JIT, engine.Native, engine.ObjectFile} {
		t.Run(s.String(), func(t *testing.T) {
			exe, args := artifact(t, wasmtest.Exit(3), engine.Singlepass, s)
			_, err := RunCode(context.Background(), exe, args...)
			var runErr *RunError
			if !stderrors.As(err, &runErr) {
				t.Fatalf("expected *RunError, got %v", err)
			}
			if runErr.ExitCode != 3 {
				t.Errorf("exit code = %d, want 3", runErr.ExitCode)
			}
		})
	}
}

func TestRunCode_InvalidUTF8(t *testing.T) {
	exe, args := artifact(t, wasmtest.PrintThenDivide("\xff\xfe"), engine.Singlepass, engine.JIT)
	_, err := RunCode(context.Background(), exe, args...)

	want := &errors.Error{Phase: errors.PhaseHarness, Kind: errors.KindInvalidUTF8}
	if !stderrors.Is(err, want) {
		t.Fatalf("expected invalid_utf8, got %v", err)
	}
	if !strings.Contains(err.Error(), "stdout") {
		t.Errorf("error should name the stream: %v", err)
	}
	var runErr *RunError
	if !stderrors.As(err, &runErr) {
		t.Error("the failed run should be attached as the cause")
	}
}

func TestRunCode_MissingExecutable(t *testing.T) {
	_, err := RunCode(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("expected an error")
	}
	var runErr *RunError
	if stderrors.As(err, &runErr) {
		t.Error("a process that never started is not a RunError")
	}
}

func TestCheckUTF8(t *testing.T) {
	if err := checkUTF8("stdout", []byte("héllo")); err != nil {
		t.Errorf("valid UTF-8 rejected: %v", err)
	}
	err := checkUTF8("stderr", []byte{'o', 'k', 0xc3})
	if err == nil || err.Kind != errors.KindInvalidUTF8 {
		t.Fatalf("checkUTF8 = %v, want invalid_utf8", err)
	}
	if len(err.Path) != 1 || err.Path[0] != "stderr" {
		t.Errorf("Path = %v", err.Path)
	}
}
