package debuginfo

import (
	"github.com/wippyai/wasm-traps/trap"
)

// FuncIndex is the index of a function defined (not imported) by a module.
type FuncIndex uint32

// CodeOffset is an offset from the start of a function's machine code.
type CodeOffset uint32

// Addresses returns the trap's faulting pc, if it has one, followed by its
// backtrace frames. Values are never adjusted or filtered.
func Addresses(t *trap.Trap) []uintptr {
	var addrs []uintptr
	if pc, ok := t.PC(); ok {
		addrs = append(addrs, pc)
	}
	if bt, ok := t.Backtrace(); ok {
		addrs = append(addrs, bt.Frames()...)
	}
	return addrs
}

// MemoryOffsetKind says where a module's linear memory definition lives.
type MemoryOffsetKind uint8

const (
	MemoryNone MemoryOffsetKind = iota
	MemoryLocal
	MemoryImported
)

// MemoryOffset locates linear memory relative to the VM context.
type MemoryOffset struct {
	Kind MemoryOffsetKind

	// Offset of a locally defined memory's base pointer (MemoryLocal).
	Offset int32

	// Offset of the imported memory's definition pointer, and of the base
	// pointer within that definition (MemoryImported).
	DefinitionOffset uint32
	BaseOffset       uint32
}

// StackSlot is a spill slot in a function's frame.
type StackSlot struct {
	Offset int32
	Size   uint32
}

// VMContextInfo describes how compiled code reaches module state.
type VMContextInfo struct {
	Memory     MemoryOffset
	StackSlots map[FuncIndex][]StackSlot
}

// EntityKind identifies a module entity reached through the VM context.
type EntityKind uint8

const (
	EntityMemory EntityKind = iota
	EntityGlobal
	EntityTable
)

// Entity is a logical module construct.
type Entity struct {
	Kind  EntityKind
	Index uint32
}

// AddressMapper translates VM-context offsets back to module entities.
type AddressMapper interface {
	EntityAt(vmctxOffset uint32) (Entity, bool)
}

// ValueLabel identifies a source-level variable.
type ValueLabel uint32

// ValueLocKind says where a value lives over a range.
type ValueLocKind uint8

const (
	LocRegister ValueLocKind = iota
	LocStack
)

// ValueLocRange is a variable location valid for code offsets [Start, End).
type ValueLocRange struct {
	Kind     ValueLocKind
	Register uint16
	Slot     int32
	Start    CodeOffset
	End      CodeOffset
}

// Contains reports whether off falls within the range.
func (r ValueLocRange) Contains(off CodeOffset) bool {
	return off >= r.Start && off < r.End
}

// ValueLabelsRanges lists variable locations per function.
type ValueLabelsRanges map[FuncIndex]map[ValueLabel][]ValueLocRange

// At returns the locations of every label live at off in fn.
func (v ValueLabelsRanges) At(fn FuncIndex, off CodeOffset) map[ValueLabel]ValueLocRange {
	live := make(map[ValueLabel]ValueLocRange)
	for label, ranges := range v[fn] {
		for _, r := range ranges {
			if r.Contains(off) {
				live[label] = r
				break
			}
		}
	}
	return live
}

// LocationResolver maps a native pc and canonical frame address to variable
// locations.
type LocationResolver interface {
	Locations(pc, cfa uintptr) (map[ValueLabel]ValueLocRange, bool)
}
