// Package engine runs WebAssembly modules on wazero and reports every guest
// fault as a *trap.Trap.
//
// # Backends and strategies
//
// A Backend picks the code generator and a Strategy picks how generated code
// is kept between runs:
//
//	Backend      wazero configuration
//	─────────────────────────────────────────────────────────
//	Cranelift    compiler, compiled on first instantiation
//	LLVM         compiler, compiled ahead of time by Load
//	Singlepass   interpreter
//
//	Strategy     compilation cache
//	─────────────────────────────────────────────────────────
//	JIT          none
//	Native       process-wide in-memory cache
//	ObjectFile   on-disk cache under Config.CacheDir
//
// # Faults
//
// Instance.Call passes every error through Translate. Guest faults reported
// by wazero ("wasm error: ...") become Wasm traps carrying the matching
// trap.Code. Traps raised by the runtime library module (see LibModule) reach
// the caller unchanged, and WASI proc_exit surfaces as *sys.ExitError.
//
// # Thread Safety
//
// Engine and Module are safe for concurrent use. Instance is not and should be
// used by a single goroutine.
package engine
