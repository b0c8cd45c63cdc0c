package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-traps/errors"
	"github.com/wippyai/wasm-traps/trap"
)

// Engine owns a wazero runtime configured for one backend and strategy.
type Engine struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	cfg     Config

	hostInitMu  sync.Mutex
	hostInitErr error
	hostInit    bool
}

// Config holds configuration for engine creation.
type Config struct {
	// CacheDir is where the ObjectFile strategy keeps compiled code.
	// Empty means a "wasmtrap" directory under os.TempDir().
	CacheDir string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// Backend selects the code generator. The zero value is Cranelift.
	Backend Backend

	// Strategy selects how compiled code is kept. The zero value is JIT.
	Strategy Strategy

	// CloseOnContextDone stops running guests when the call context is
	// cancelled. The call then fails with *sys.ExitError.
	CloseOnContextDone bool
}

// sharedCache backs the Native strategy for every engine in the process.
var sharedCache = sync.OnceValue(wazero.NewCompilationCache)

// NewEngine creates an engine with the default backend and strategy.
func NewEngine(ctx context.Context) (*Engine, error) {
	return NewEngineWithConfig(ctx, nil)
}

// NewEngineWithConfig creates an engine with custom configuration.
func NewEngineWithConfig(ctx context.Context, cfg *Config) (*Engine, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}

	var runtimeCfg wazero.RuntimeConfig
	switch c.Backend {
	case Cranelift, LLVM:
		if !CompilerSupported() {
			return nil, errors.Unsupported(errors.PhaseConfig,
				fmt.Sprintf("%s backend on %s/%s", c.Backend, runtime.GOOS, runtime.GOARCH))
		}
		runtimeCfg = wazero.NewRuntimeConfigCompiler()
	case Singlepass:
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	default:
		return nil, errors.InvalidInput(errors.PhaseConfig, "unknown backend "+c.Backend.String())
	}

	var cache wazero.CompilationCache
	switch c.Strategy {
	case JIT:
	case Native:
		cache = sharedCache()
	case ObjectFile:
		if c.CacheDir == "" {
			c.CacheDir = filepath.Join(os.TempDir(), "wasmtrap")
		}
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(c.CacheDir)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "open cache directory "+c.CacheDir)
		}
	default:
		return nil, errors.InvalidInput(errors.PhaseConfig, "unknown strategy "+c.Strategy.String())
	}
	if cache != nil {
		runtimeCfg = runtimeCfg.WithCompilationCache(cache)
	}

	if c.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(c.MemoryLimitPages)
	}
	if c.CloseOnContextDone {
		runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
	}

	Logger().Debug("engine created",
		zap.Stringer("backend", c.Backend),
		zap.Stringer("strategy", c.Strategy))

	e := &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		cfg:     c,
	}
	// The shared cache outlives any one engine.
	if c.Strategy == ObjectFile {
		e.cache = cache
	}
	return e, nil
}

// CompilerSupported reports whether the compiling backends can run on this
// platform. Singlepass is always available.
func CompilerSupported() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64":
	default:
		return false
	}
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd", "netbsd", "dragonfly", "windows":
		return true
	}
	return false
}

// Config returns the configuration the engine was created with, defaults
// filled in.
func (e *Engine) Config() Config {
	return e.cfg
}

// Close releases the runtime and every module loaded through it.
func (e *Engine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}

// initHostModules registers the runtime library and WASI once per engine.
func (e *Engine) initHostModules(ctx context.Context) error {
	e.hostInitMu.Lock()
	defer e.hostInitMu.Unlock()

	if e.hostInit {
		return e.hostInitErr
	}
	e.hostInit = true

	if _, err := instantiateLib(ctx, e.runtime); err != nil {
		e.hostInitErr = errors.Registration(LibModule, "*", err)
		return e.hostInitErr
	}
	if _, err := instantiateWASI(ctx, e.runtime); err != nil {
		e.hostInitErr = errors.Registration(WASIModule, "*", err)
		return e.hostInitErr
	}
	debugf("host modules %s and %s registered", LibModule, WASIModule)
	return nil
}

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Load prepares wasmBytes for instantiation. LLVM compiles here; the other
// backends compile on first instantiation.
func (e *Engine) Load(ctx context.Context, wasmBytes []byte) (*Module, error) {
	if !bytes.HasPrefix(wasmBytes, wasmHeader) {
		return nil, errors.Load("not a WebAssembly 1.0 binary", nil)
	}

	m := &Module{
		engine:    e,
		wasmBytes: slices.Clone(wasmBytes),
	}
	if e.cfg.Backend == LLVM {
		if _, err := m.compile(ctx); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Module is a loaded WebAssembly module.
type Module struct {
	engine     *Engine
	compiled   wazero.CompiledModule
	compileErr error
	wasmBytes  []byte
	compileMu  sync.Mutex
}

func (m *Module) compile(ctx context.Context) (wazero.CompiledModule, error) {
	m.compileMu.Lock()
	defer m.compileMu.Unlock()

	if m.compiled != nil || m.compileErr != nil {
		return m.compiled, m.compileErr
	}

	compiled, err := m.engine.runtime.CompileModule(ctx, m.wasmBytes)
	if err != nil {
		m.compileErr = errors.Load("compile failed", err)
		return nil, m.compileErr
	}
	m.compiled = compiled
	debugf("compiled module with %s", m.engine.cfg.Backend)
	return compiled, nil
}

// Export describes an exported function.
type Export struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Exports lists the module's exported functions sorted by name.
func (m *Module) Exports(ctx context.Context) ([]Export, error) {
	compiled, err := m.compile(ctx)
	if err != nil {
		return nil, err
	}
	defs := compiled.ExportedFunctions()
	exports := make([]Export, 0, len(defs))
	for name, def := range defs {
		exports = append(exports, Export{
			Name:    name,
			Params:  def.ParamTypes(),
			Results: def.ResultTypes(),
		})
	}
	slices.SortFunc(exports, func(a, b Export) int {
		return strings.Compare(a.Name, b.Name)
	})
	return exports, nil
}

// Close releases the compiled code.
func (m *Module) Close(ctx context.Context) error {
	m.compileMu.Lock()
	defer m.compileMu.Unlock()

	compiled := m.compiled
	m.compiled = nil
	m.compileErr = errors.NotInitialized(errors.PhaseLoad, "module closed")
	if compiled == nil {
		return nil
	}
	return compiled.Close(ctx)
}

// InstanceConfig holds configuration for module instantiation.
type InstanceConfig struct {
	// Stdout and Stderr receive the guest's WASI output. nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// Name registers the instance so later modules can import from it.
	// Empty leaves it anonymous.
	Name string

	// Args are the guest's WASI arguments, program name first.
	Args []string
}

// Instantiate creates a new instance. Start functions are not run; callers
// invoke exports explicitly with Instance.Call.
func (m *Module) Instantiate(ctx context.Context, cfg *InstanceConfig) (*Instance, error) {
	if err := m.engine.initHostModules(ctx); err != nil {
		return nil, err
	}
	compiled, err := m.compile(ctx)
	if err != nil {
		return nil, err
	}

	modCfg := wazero.NewModuleConfig().WithStartFunctions()
	if cfg != nil {
		if cfg.Name != "" {
			modCfg = modCfg.WithName(cfg.Name)
		}
		if cfg.Stdout != nil {
			modCfg = modCfg.WithStdout(cfg.Stdout)
		}
		if cfg.Stderr != nil {
			modCfg = modCfg.WithStderr(cfg.Stderr)
		}
		if len(cfg.Args) > 0 {
			modCfg = modCfg.WithArgs(cfg.Args...)
		}
	}

	mod, err := m.engine.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		if t, ok := trap.From(Translate(err)); ok {
			return nil, t
		}
		return nil, errors.Instantiation(err)
	}
	return &Instance{module: mod}, nil
}

// Instance is an instantiated module.
type Instance struct {
	module api.Module
}

// Call invokes the exported function name. Errors pass through Translate, so
// guest faults come back as *trap.Trap.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "exported function", name)
	}
	if want := len(fn.Definition().ParamTypes()); want != len(params) {
		return nil, errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("%s takes %d arguments, got %d", name, want, len(params)))
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, Translate(err)
	}
	return results, nil
}

// HasExport reports whether the instance exports a function called name.
func (i *Instance) HasExport(name string) bool {
	return i.module.ExportedFunction(name) != nil
}

// Memory returns the instance's exported memory, or nil if it has none.
func (i *Instance) Memory() api.Memory {
	return i.module.Memory()
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}
