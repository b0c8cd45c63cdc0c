package trap

import (
	"cmp"
	"encoding/binary"
	"slices"
	"strings"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// Equal reports whether a and b have the same kind and evidence. User traps
// compare by error message, since the wrapped values are opaque.
func Equal(a, b *Trap) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case KindUser:
		return userMessage(a.err) == userMessage(b.err) && (a.err == nil) == (b.err == nil)

	case KindWasm:
		return a.pc == b.pc &&
			a.hasCode == b.hasCode &&
			(!a.hasCode || a.code == b.code) &&
			a.backtrace.Equal(b.backtrace)

	case KindLib:
		return a.code == b.code && a.backtrace.Equal(b.backtrace)

	default:
		return a.backtrace.Equal(b.backtrace)
	}
}

// Compare orders traps by kind, then code presence and value, pc, and frames.
// User traps order by message. Compare returns 0 exactly when Equal holds,
// except that a nil user error sorts with an empty message.
func Compare(a, b *Trap) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c := cmp.Compare(a.kind, b.kind); c != 0 {
		return c
	}
	if a.kind == KindUser {
		return strings.Compare(userMessage(a.err), userMessage(b.err))
	}
	if c := compareBool(a.hasCode, b.hasCode); c != 0 {
		return c
	}
	if a.hasCode {
		if c := a.code.Compare(b.code); c != 0 {
			return c
		}
	}
	if a.kind == KindWasm {
		if c := cmp.Compare(a.pc, b.pc); c != 0 {
			return c
		}
	}
	return slices.Compare(a.backtrace.pcs, b.backtrace.pcs)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

// Hash is consistent with Equal.
func (t *Trap) Hash() uint64 {
	d := xxhash.New()

	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}

	_, _ = d.Write([]byte{byte(t.kind)})

	if t.kind == KindUser {
		_, _ = d.WriteString(userMessage(t.err))
		return d.Sum64()
	}

	if t.hasCode {
		writeU64(1)
		writeU64(uint64(t.code))
	} else {
		writeU64(0)
	}
	if t.kind == KindWasm {
		writeU64(uint64(t.pc))
	}
	for _, pc := range t.backtrace.pcs {
		writeU64(uint64(pc))
	}
	return d.Sum64()
}

// Size reports the footprint of the Trap header. Backtrace storage and the
// user error are not walked.
func (t *Trap) Size() uintptr {
	return unsafe.Sizeof(Trap{})
}

func userMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
