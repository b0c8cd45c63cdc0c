package trap

import (
	"cmp"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/wippyai/wasm-traps/errors"
)

// Code describes the reason for a trap.
//
// Values are stable: compiled artifacts may embed them in side tables.
type Code uint32

const (
	// StackOverflow means the call stack was exhausted. Some platforms report
	// it as a fault on the stack guard page instead.
	StackOverflow Code = 0

	// HeapAccessOutOfBounds means a heap bounds check failed. Accesses that land
	// on an unmapped guard page fault in hardware and may not carry this code.
	HeapAccessOutOfBounds Code = 1

	// HeapMisaligned means a heap address was misaligned.
	HeapMisaligned Code = 2

	// TableAccessOutOfBounds means a table bounds check failed.
	TableAccessOutOfBounds Code = 3

	// OutOfBounds is any other bounds check failure.
	OutOfBounds Code = 4

	// IndirectCallToNull means an indirect call hit a null table entry.
	IndirectCallToNull Code = 5

	// BadSignature means an indirect call target had the wrong signature.
	BadSignature Code = 6

	// IntegerOverflow means integer arithmetic overflowed.
	IntegerOverflow Code = 7

	// IntegerDivisionByZero means an integer division or remainder by zero.
	IntegerDivisionByZero Code = 8

	// BadConversionToInteger means a float-to-int conversion failed.
	BadConversionToInteger Code = 9

	// UnreachableCodeReached means an unreachable instruction was executed.
	UnreachableCodeReached Code = 10

	// UnalignedAtomic means an atomic access used an unaligned address.
	UnalignedAtomic Code = 11
)

// NumCodes is the number of defined trap codes.
const NumCodes = 12

var codeTable = [NumCodes]struct {
	tag     string
	message string
}{
	StackOverflow:          {"stk_ovf", "call stack exhausted"},
	HeapAccessOutOfBounds:  {"heap_get_oob", "out of bounds memory access"},
	HeapMisaligned:         {"heap_misaligned", "misaligned heap"},
	TableAccessOutOfBounds: {"table_get_oob", "undefined element: out of bounds table access"},
	OutOfBounds:            {"oob", "out of bounds"},
	IndirectCallToNull:     {"icall_null", "uninitialized element"},
	BadSignature:           {"bad_sig", "indirect call type mismatch"},
	IntegerOverflow:        {"int_ovf", "integer overflow"},
	IntegerDivisionByZero:  {"int_divz", "integer divide by zero"},
	BadConversionToInteger: {"bad_toint", "invalid conversion to integer"},
	UnreachableCodeReached: {"unreachable", "unreachable"},
	UnalignedAtomic:        {"unalign_atom", "unaligned atomic access"},
}

var codesByTag = func() map[string]Code {
	m := make(map[string]Code, NumCodes)
	for i, e := range codeTable {
		m[e.tag] = Code(i)
	}
	return m
}()

// ErrUnrecognizedCode matches (via errors.Is) the error returned by ParseCode.
var ErrUnrecognizedCode = &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindUnrecognized}

// Codes returns all defined codes in numeric order.
func Codes() []Code {
	codes := make([]Code, NumCodes)
	for i := range codes {
		codes[i] = Code(i)
	}
	return codes
}

// Valid reports whether c is one of the defined codes.
func (c Code) Valid() bool {
	return c < NumCodes
}

// Message returns the human-readable description.
func (c Code) Message() string {
	if !c.Valid() {
		return fmt.Sprintf("unknown trap code %d", uint32(c))
	}
	return codeTable[c].message
}

// String returns the short tag, e.g. "int_divz".
func (c Code) String() string {
	if !c.Valid() {
		return fmt.Sprintf("code(%d)", uint32(c))
	}
	return codeTable[c].tag
}

// Hash is keyed on the numeric value only.
func (c Code) Hash() uint64 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(c))
	return xxhash.Sum64(b[:])
}

// Compare orders codes by numeric value.
func (c Code) Compare(other Code) int {
	return cmp.Compare(c, other)
}

// Size reports the memory footprint of a Code value.
func (Code) Size() uintptr {
	return 4
}

// ParseCode returns the code whose tag is exactly s.
func ParseCode(s string) (Code, error) {
	if c, ok := codesByTag[s]; ok {
		return c, nil
	}
	return 0, errors.Unrecognized(errors.PhaseParse, "trap code", s)
}
