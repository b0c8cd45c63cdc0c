package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-traps/engine"
	"github.com/wippyai/wasm-traps/errors"
	"github.com/wippyai/wasm-traps/trap"
)

// EntryPoints are tried in order when Config.Func is empty.
var EntryPoints = []string{"_start", "run", "main"}

// Config describes one run.
type Config struct {
	// Stdout and Stderr receive the guest's WASI output. nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// Path names the module file. It is read only when Wasm is nil.
	Path string

	// Func is the export to call. Empty picks the first of EntryPoints the
	// module exports, or its only export.
	Func string

	Wasm   []byte
	Args   []uint64
	Engine engine.Config
}

// Result is the outcome of a call that returned normally.
type Result struct {
	Func   string
	Values []uint64
}

// Run loads the module, instantiates it and calls the selected export.
// Guest faults come back as *trap.Trap and WASI exits as *sys.ExitError,
// possibly wrapped.
func Run(ctx context.Context, cfg Config) (Result, error) {
	wasm := cfg.Wasm
	if wasm == nil {
		if cfg.Path == "" {
			return Result{}, errors.InvalidInput(errors.PhaseConfig, "no module given")
		}
		data, err := os.ReadFile(cfg.Path)
		if err != nil {
			return Result{}, fmt.Errorf("read file: %w", err)
		}
		wasm = data
	}

	eng, err := engine.NewEngineWithConfig(ctx, &cfg.Engine)
	if err != nil {
		return Result{}, fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close(ctx)

	mod, err := eng.Load(ctx, wasm)
	if err != nil {
		return Result{}, fmt.Errorf("load module: %w", err)
	}

	name := cfg.Func
	if name == "" {
		exports, err := mod.Exports(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("load module: %w", err)
		}
		if name = pickEntryPoint(exports); name == "" {
			return Result{}, errors.NotFound(errors.PhaseRuntime, "entry point", strings.Join(EntryPoints, "|"))
		}
	}
	res := Result{Func: name}

	progName := "wasmtrap"
	if cfg.Path != "" {
		progName = filepath.Base(cfg.Path)
	}
	inst, err := mod.Instantiate(ctx, &engine.InstanceConfig{
		Stdout: cfg.Stdout,
		Stderr: cfg.Stderr,
		Args:   []string{progName},
	})
	if err != nil {
		logOutcome(name, err)
		return res, fmt.Errorf("instantiate: %w", err)
	}
	defer inst.Close(ctx)

	res.Values, err = inst.Call(ctx, name, cfg.Args...)
	if err != nil {
		logOutcome(name, err)
		return res, fmt.Errorf("call %s: %w", name, err)
	}
	Logger().Debug("call returned", zap.String("func", name), zap.Int("results", len(res.Values)))
	return res, nil
}

func pickEntryPoint(exports []engine.Export) string {
	names := make([]string, len(exports))
	for i, e := range exports {
		names[i] = e.Name
	}
	for _, candidate := range EntryPoints {
		if slices.Contains(names, candidate) {
			return candidate
		}
	}
	if len(names) == 1 {
		return names[0]
	}
	return ""
}

func logOutcome(name string, err error) {
	log := Logger().With(zap.String("func", name))

	if t, ok := trap.From(err); ok {
		fields := []zap.Field{zap.Stringer("kind", t.Kind())}
		if code, ok := t.Code(); ok {
			fields = append(fields, zap.Stringer("code", code))
		}
		if pc, ok := t.PC(); ok {
			fields = append(fields, zap.Uintptr("pc", pc))
		}
		if bt, ok := t.Backtrace(); ok {
			fields = append(fields, zap.Int("frames", bt.Len()))
		}
		log.Info("guest trapped", fields...)
		return
	}

	var exitErr *sys.ExitError
	if stderrors.As(err, &exitErr) {
		log.Debug("guest exited", zap.Uint32("status", exitErr.ExitCode()))
		return
	}
	log.Debug("call failed", zap.Error(err))
}

// ExitCode maps the error returned by Run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *sys.ExitError
	if stderrors.As(err, &exitErr) {
		return int(exitErr.ExitCode())
	}
	if t, ok := trap.From(err); ok {
		if code, ok := t.Code(); ok {
			return 128 + int(code)
		}
		return 2
	}
	return 1
}
