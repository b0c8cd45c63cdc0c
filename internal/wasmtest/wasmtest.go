// Package wasmtest assembles small WebAssembly modules for tests.
package wasmtest

import (
	"encoding/binary"
	"math"
)

// Value types
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
	F32 byte = 0x7d
)

// Export kinds
const (
	ExportFunc   byte = 0x00
	ExportMemory byte = 0x02
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionTable    = 4
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11
)

// Opcodes used by the fixtures.
const (
	OpUnreachable  byte = 0x00
	OpEnd          byte = 0x0b
	OpCall         byte = 0x10
	OpCallIndirect byte = 0x11
	OpDrop         byte = 0x1a
	OpLocalGet     byte = 0x20
	OpI32Load      byte = 0x28
	OpMemoryGrow   byte = 0x40
	OpI32Const     byte = 0x41
	OpF32Const     byte = 0x43
	OpI32DivS      byte = 0x6d
	OpI32TruncF32S byte = 0xa8
)

type FuncType struct {
	Params  []byte
	Results []byte
}

// Import is a function import.
type Import struct {
	Module string
	Name   string
	Type   uint32
}

// Func is a defined function. Body excludes the final end opcode.
type Func struct {
	Body []byte
	Type uint32
}

type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// Data is an active segment in memory 0.
type Data struct {
	Bytes  []byte
	Offset int32
}

type Limits struct {
	Max *uint32
	Min uint32
}

// Module is a minimal module description.
type Module struct {
	Memory  *Limits
	Table   *Limits
	Types   []FuncType
	Imports []Import
	Funcs   []Func
	Exports []Export
	Data    []Data
}

// Encode returns the binary encoding of m.
func (m *Module) Encode() []byte {
	var w writer
	w.WriteBytes([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	if len(m.Types) > 0 {
		var s writer
		s.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			s.Byte(0x60)
			s.WriteU32(uint32(len(ft.Params)))
			s.WriteBytes(ft.Params)
			s.WriteU32(uint32(len(ft.Results)))
			s.WriteBytes(ft.Results)
		}
		w.WriteSection(sectionType, s.Bytes())
	}

	if len(m.Imports) > 0 {
		var s writer
		s.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			s.WriteName(imp.Module)
			s.WriteName(imp.Name)
			s.Byte(ExportFunc)
			s.WriteU32(imp.Type)
		}
		w.WriteSection(sectionImport, s.Bytes())
	}

	if len(m.Funcs) > 0 {
		var s writer
		s.WriteU32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			s.WriteU32(f.Type)
		}
		w.WriteSection(sectionFunction, s.Bytes())
	}

	if m.Table != nil {
		var s writer
		s.WriteU32(1)
		s.Byte(0x70) // funcref
		writeLimits(&s, *m.Table)
		w.WriteSection(sectionTable, s.Bytes())
	}

	if m.Memory != nil {
		var s writer
		s.WriteU32(1)
		writeLimits(&s, *m.Memory)
		w.WriteSection(sectionMemory, s.Bytes())
	}

	if len(m.Exports) > 0 {
		var s writer
		s.WriteU32(uint32(len(m.Exports)))
		for _, e := range m.Exports {
			s.WriteName(e.Name)
			s.Byte(e.Kind)
			s.WriteU32(e.Index)
		}
		w.WriteSection(sectionExport, s.Bytes())
	}

	if len(m.Funcs) > 0 {
		var s writer
		s.WriteU32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			var body writer
			body.WriteU32(0) // no locals
			body.WriteBytes(f.Body)
			body.Byte(OpEnd)
			s.WriteU32(uint32(len(body.Bytes())))
			s.WriteBytes(body.Bytes())
		}
		w.WriteSection(sectionCode, s.Bytes())
	}

	if len(m.Data) > 0 {
		var s writer
		s.WriteU32(uint32(len(m.Data)))
		for _, d := range m.Data {
			s.WriteU32(0) // active, memory 0
			s.WriteBytes(I32Const(d.Offset))
			s.Byte(OpEnd)
			s.WriteU32(uint32(len(d.Bytes)))
			s.WriteBytes(d.Bytes)
		}
		w.WriteSection(sectionData, s.Bytes())
	}

	return w.Bytes()
}

func writeLimits(w *writer, l Limits) {
	if l.Max != nil {
		w.Byte(0x01)
		w.WriteU32(l.Min)
		w.WriteU32(*l.Max)
		return
	}
	w.Byte(0x00)
	w.WriteU32(l.Min)
}

// I32Const encodes an i32.const instruction.
func I32Const(v int32) []byte {
	return appendS64([]byte{OpI32Const}, int64(v))
}

// F32Const encodes an f32.const instruction.
func F32Const(v float32) []byte {
	b := []byte{OpF32Const, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(b[1:], math.Float32bits(v))
	return b
}

// Call encodes a call instruction.
func Call(fn uint32) []byte {
	return appendU32([]byte{OpCall}, fn)
}

// Concat joins instruction sequences.
func Concat(parts ...[]byte) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}
