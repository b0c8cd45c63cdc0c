// Package wasmtraps classifies WebAssembly faults into one shared taxonomy.
//
// Every way guest code can stop abnormally, whether a fault in compiled code,
// a failed check in a runtime library call, an allocator failure, or an error
// raised by the embedder, is reported as a *trap.Trap carrying the evidence
// needed to explain it: a kind, an optional trap code, the faulting address,
// and an unresolved native backtrace.
//
// # Architecture Overview
//
//	wasmtraps/
//	├── trap/            Trap codes, the Trap envelope and backtrace capture
//	│   ├── trapwire/    Compact binary encoding (protobuf wire format)
//	│   └── trapjson/    JSON encoding
//	├── debuginfo/       Interfaces for mapping faults back to source entities
//	├── engine/          wazero backends and strategies, fault translation
//	├── runner/          Load, call and report; the wasmtrap command line
//	├── harness/         Subprocess runner for integration tests
//	├── errors/          Structured error types for debugging
//	└── cmd/wasmtrap/    Command-line entry point
//
// # Quick Start
//
// Run an export and inspect how it ended:
//
//	eng, _ := engine.NewEngine(ctx)
//	defer eng.Close(ctx)
//
//	mod, _ := eng.Load(ctx, wasmBytes)
//	inst, _ := mod.Instantiate(ctx, nil)
//
//	_, err := inst.Call(ctx, "main")
//	if t, ok := trap.From(err); ok {
//	    code, _ := t.Code()
//	    fmt.Println(t.Kind(), code)   // wasm int_divz
//	}
//
// # Backtraces
//
// Traps capture raw return addresses when they are raised and never resolve
// them on their own. Call Backtrace.Resolve when the trap is presented.
package wasmtraps
