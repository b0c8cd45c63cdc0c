// Command wasmtrap runs a WebAssembly export and reports how it ended.
//
// A guest fault is printed to stderr as a classified trap and sets the exit
// status to 128 plus the trap code, so scripts can tell faults apart:
//
//	wasmtrap -wasm divide.wasm --cranelift --jit
//	wasmtrap -codes
//	wasmtrap -i -wasm divide.wasm
package main

import (
	"os"

	"github.com/wippyai/wasm-traps/runner"
)

func main() {
	os.Exit(runner.Main(os.Args[1:], os.Stdout, os.Stderr))
}
