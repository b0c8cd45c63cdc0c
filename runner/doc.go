// Package runner loads a WebAssembly module, calls one export and reports
// how it ended.
//
// Run is the library entry point. Main implements the wasmtrap command line
// on top of it so the command can be driven in-process by tests, and
// ExitCode turns an outcome into a process exit status:
//
//	outcome                      status
//	──────────────────────────────────────────
//	success                      0
//	WASI proc_exit(n)            n
//	trap with a code             128 + code
//	trap without a code          2
//	any other error              1
package runner
