package runner

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-traps/engine"
	"github.com/wippyai/wasm-traps/errors"
	"github.com/wippyai/wasm-traps/internal/browse"
)

const usage = `Usage: wasmtrap -wasm <file.wasm> [-func name] [-args 1,2] [--cranelift|--llvm|--singlepass] [--jit|--native|--object-file]
       wasmtrap -codes
       wasmtrap -i [-wasm <file.wasm>]  (interactive mode)
`

// Main runs the wasmtrap command line with args (program name excluded) and
// returns the process exit status.
func Main(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wasmtrap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var (
		wasmFile    = fs.String("wasm", "", "Path to wasm module")
		funcName    = fs.String("func", "", "Function to call (optional)")
		argList     = fs.String("args", "", "Arguments (comma-separated integers)")
		cacheDir    = fs.String("cache-dir", "", "Compilation cache directory for --object-file")
		verbose     = fs.Bool("v", false, "Verbose logging and resolved backtraces")
		listCodes   = fs.Bool("codes", false, "Print the trap codes and exit")
		interactive = fs.Bool("i", false, "Interactive mode with TUI")
	)
	backendFlags := make([]*bool, len(engine.Backends()))
	for i, b := range engine.Backends() {
		backendFlags[i] = fs.Bool(b.String(), false, "Use the "+b.String()+" backend")
	}
	strategyFlags := make([]*bool, len(engine.Strategies()))
	for i, s := range engine.Strategies() {
		strategyFlags[i] = fs.Bool(s.String(), false, "Use the "+s.String()+" strategy")
	}

	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	log := newLogger(stderr, *verbose)
	defer log.Sync()
	prevRunner, prevEngine := Logger(), engine.Logger()
	SetLogger(log)
	engine.SetLogger(log)
	defer func() {
		SetLogger(prevRunner)
		engine.SetLogger(prevEngine)
	}()

	if *listCodes {
		writeCodes(stdout, isTerminal(stdout))
		return 0
	}

	backend, err := selectOne("backend", backendFlags, engine.Backends())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	strategy, err := selectOne("strategy", strategyFlags, engine.Strategies())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	engineCfg := engine.Config{
		Backend:            backend,
		Strategy:           strategy,
		CacheDir:           *cacheDir,
		CloseOnContextDone: true,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *interactive {
		if !isTerminal(os.Stdin) || !isTerminal(stdout) {
			fmt.Fprintln(stderr, "Error: interactive mode needs a terminal")
			return 1
		}
		err := browse.Run(ctx, browse.Config{
			Path:   *wasmFile,
			Engine: engineCfg,
			Input:  os.Stdin,
			Output: stdout,
		})
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if *wasmFile == "" {
		fmt.Fprint(stderr, usage)
		return 1
	}

	params, err := ParseArgs(*argList)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	res, err := Run(ctx, Config{
		Path:   *wasmFile,
		Func:   *funcName,
		Args:   params,
		Stdout: stdout,
		Stderr: stderr,
		Engine: engineCfg,
	})
	if err != nil {
		writeReport(stderr, err, *verbose, isTerminal(stderr))
		return ExitCode(err)
	}

	if len(res.Values) > 0 {
		vals := make([]string, len(res.Values))
		for i, v := range res.Values {
			vals[i] = strconv.FormatUint(v, 10)
		}
		fmt.Fprintln(stdout, strings.Join(vals, " "))
	}
	return 0
}

// selectOne returns the choice whose flag is set, or the first choice when
// none is. Setting more than one is an error.
func selectOne[T fmt.Stringer](what string, set []*bool, choices []T) (T, error) {
	picked := -1
	for i, on := range set {
		if !*on {
			continue
		}
		if picked >= 0 {
			var zero T
			return zero, errors.InvalidInput(errors.PhaseParse,
				fmt.Sprintf("conflicting %s flags --%s and --%s", what, choices[picked], choices[i]))
		}
		picked = i
	}
	if picked < 0 {
		picked = 0
	}
	return choices[picked], nil
}

// ParseArgs parses comma-separated call arguments. Negative values are
// accepted and passed in two's complement.
func ParseArgs(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint64, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "-") {
			v, err := strconv.ParseInt(part, 0, 64)
			if err != nil {
				return nil, errors.Unrecognized(errors.PhaseParse, "argument", part)
			}
			out[i] = uint64(v)
			continue
		}
		v, err := strconv.ParseUint(part, 0, 64)
		if err != nil {
			return nil, errors.Unrecognized(errors.PhaseParse, "argument", part)
		}
		out[i] = v
	}
	return out, nil
}
