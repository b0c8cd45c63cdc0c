// Package debuginfo declares the metadata that symbolization and inspection
// tools use to interpret trap addresses.
//
// Nothing here is produced or consumed by trap construction. Code generators
// fill these structures; debuggers and presentation layers read them. The
// only data that flows from a trap into this package is the list of raw
// addresses returned by Addresses.
//
// Two groups of metadata exist:
//
//	address map   vmctx offsets → linear memories, globals, stack slots
//	frame layout  pc ranges → variable locations and CFA rules per function
package debuginfo
