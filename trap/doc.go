// Package trap classifies abnormal terminations of guest WebAssembly code.
//
// A Trap is the single value every backend produces when guest execution cannot
// continue: an explicit check emitted by a code generator, a hardware fault mapped
// back to a reason, a checked runtime library call, or an allocator failure. The
// value is built at the point of detection, returned through ordinary error
// propagation, and inspected once by whoever started the guest call.
//
// # Trap codes
//
// Code is a closed enumeration of twelve reasons shared by all backends. The
// numeric value of each code is part of the compiled-artifact format and never
// changes. Each code has a human message and a short tag used for textual
// interchange:
//
//	code := trap.IntegerDivisionByZero
//	code.Message() // "integer divide by zero"
//	code.String()  // "int_divz"
//
//	c, err := trap.ParseCode("int_divz")
//
// ParseCode accepts exact tags only. There is no numbered extension space.
//
// # Trap kinds
//
//	KindUser  an error supplied by the embedder, stored opaquely
//	KindWasm  fault in compiled guest code: pc, backtrace, optional code
//	KindLib   fault in a checked runtime library call: code, backtrace
//	KindOOM   allocator failure: backtrace
//
// Every kind except KindUser captures a native backtrace before its constructor
// returns. Frames are raw return addresses; symbolization is left to the caller
// (see Backtrace.Resolve).
//
// # Interchange
//
// The trap package has no serialization of its own. The trapwire and trapjson
// subpackages provide binary and textual codecs.
package trap
