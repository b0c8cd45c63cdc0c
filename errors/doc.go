// Package errors provides structured error types for the wasm-traps library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes context: field path, offending input, and cause chain.
//
// Traps are not errors of this package: a trap is the domain value describing an
// aborted guest call (see package trap). Errors here describe failures of the
// surrounding machinery: parsing tags, decoding archived traps, running artifacts.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidData).
//		Path("trap", "frames").
//		Input("0xff").
//		Detail("truncated varint").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Unrecognized(errors.PhaseParse, "trap code", "bogus")
//	err := errors.InvalidDiscriminant(errors.PhaseDecode, path, 12, 11)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
