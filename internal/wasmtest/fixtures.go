package wasmtest

import (
	"encoding/binary"
	"math"
)

// HostModule is the import module name of the runtime library calls.
const HostModule = "wasmtrap"

var void = FuncType{}

func mainOnly(body []byte) *Module {
	return &Module{
		Types:   []FuncType{void},
		Funcs:   []Func{{Type: 0, Body: body}},
		Exports: []Export{{Name: "main", Kind: ExportFunc, Index: 0}},
	}
}

// DivideByZero traps with an inline integer division by zero.
func DivideByZero() []byte {
	return mainOnly(Concat(I32Const(1), I32Const(0), []byte{OpI32DivS, OpDrop})).Encode()
}

// IntegerOverflow divides MinInt32 by -1.
func IntegerOverflow() []byte {
	return mainOnly(Concat(I32Const(math.MinInt32), I32Const(-1), []byte{OpI32DivS, OpDrop})).Encode()
}

// Unreachable executes an unreachable instruction.
func Unreachable() []byte {
	return mainOnly([]byte{OpUnreachable}).Encode()
}

// StackOverflow recurses without bound.
func StackOverflow() []byte {
	return mainOnly(Call(0)).Encode()
}

// BadConversion truncates NaN to an integer.
func BadConversion() []byte {
	return mainOnly(Concat(F32Const(float32(math.NaN())), []byte{OpI32TruncF32S, OpDrop})).Encode()
}

// OutOfBoundsLoad reads one byte past a single-page memory.
func OutOfBoundsLoad() []byte {
	m := mainOnly(Concat(I32Const(65536), []byte{OpI32Load, 0x02, 0x00, OpDrop}))
	m.Memory = &Limits{Min: 1}
	return m.Encode()
}

// NullIndirectCall calls through an empty table slot.
func NullIndirectCall() []byte {
	m := mainOnly(Concat(I32Const(0), []byte{OpCallIndirect, 0x00, 0x00}))
	m.Table = &Limits{Min: 1}
	return m.Encode()
}

// Add exports add(i32, i32) -> i32 and never traps.
func Add() []byte {
	return (&Module{
		Types:   []FuncType{{Params: []byte{I32, I32}, Results: []byte{I32}}},
		Funcs:   []Func{{Type: 0, Body: []byte{OpLocalGet, 0, OpLocalGet, 1, 0x6a}}},
		Exports: []Export{{Name: "add", Kind: ExportFunc, Index: 0}},
	}).Encode()
}

// LibDivide calls the checked division library function with a and b.
func LibDivide(a, b int32) []byte {
	return (&Module{
		Types: []FuncType{
			void,
			{Params: []byte{I32, I32}, Results: []byte{I32}},
		},
		Imports: []Import{{Module: HostModule, Name: "div_s", Type: 1}},
		Funcs:   []Func{{Type: 0, Body: Concat(I32Const(a), I32Const(b), Call(0), []byte{OpDrop})}},
		Exports: []Export{{Name: "main", Kind: ExportFunc, Index: 1}},
	}).Encode()
}

// LibRaise asks the library to raise code.
func LibRaise(code int32) []byte {
	return (&Module{
		Types:   []FuncType{void, {Params: []byte{I32}}},
		Imports: []Import{{Module: HostModule, Name: "raise", Type: 1}},
		Funcs:   []Func{{Type: 0, Body: Concat(I32Const(code), Call(0))}},
		Exports: []Export{{Name: "main", Kind: ExportFunc, Index: 1}},
	}).Encode()
}

// LibGrow asks the library to grow a memory capped at one page.
func LibGrow(pages int32) []byte {
	one := uint32(1)
	return (&Module{
		Memory: &Limits{Min: 1, Max: &one},
		Types:  []FuncType{void, {Params: []byte{I32}, Results: []byte{I32}}},
		Imports: []Import{
			{Module: HostModule, Name: "grow", Type: 1},
		},
		Funcs: []Func{{Type: 0, Body: Concat(I32Const(pages), Call(0), []byte{OpDrop})}},
		Exports: []Export{
			{Name: "main", Kind: ExportFunc, Index: 1},
			{Name: "memory", Kind: ExportMemory, Index: 0},
		},
	}).Encode()
}

// PrintThenDivide writes msg to stdout through WASI and then divides by zero.
func PrintThenDivide(msg string) []byte {
	const msgOffset = 16

	data := make([]byte, msgOffset+len(msg))
	binary.LittleEndian.PutUint32(data[0:], msgOffset)
	binary.LittleEndian.PutUint32(data[4:], uint32(len(msg)))
	copy(data[msgOffset:], msg)

	return (&Module{
		Memory: &Limits{Min: 1},
		Types: []FuncType{
			void,
			{Params: []byte{I32, I32, I32, I32}, Results: []byte{I32}},
		},
		Imports: []Import{{Module: "wasi_snapshot_preview1", Name: "fd_write", Type: 1}},
		Funcs: []Func{{Type: 0, Body: Concat(
			I32Const(1), // stdout
			I32Const(0), // iovs
			I32Const(1), // iovs_len
			I32Const(8), // nwritten
			Call(0),
			[]byte{OpDrop},
			I32Const(1), I32Const(0), []byte{OpI32DivS, OpDrop},
		)}},
		Exports: []Export{
			{Name: "main", Kind: ExportFunc, Index: 1},
			{Name: "memory", Kind: ExportMemory, Index: 0},
		},
		Data: []Data{{Offset: 0, Bytes: data}},
	}).Encode()
}

// Exit calls WASI proc_exit with code.
func Exit(code int32) []byte {
	return (&Module{
		Types:   []FuncType{void, {Params: []byte{I32}}},
		Imports: []Import{{Module: "wasi_snapshot_preview1", Name: "proc_exit", Type: 1}},
		Funcs:   []Func{{Type: 0, Body: Concat(I32Const(code), Call(0))}},
		Exports: []Export{{Name: "main", Kind: ExportFunc, Index: 1}},
	}).Encode()
}
