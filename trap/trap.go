package trap

import (
	stderrors "errors"
	"fmt"
	"slices"

	"github.com/wippyai/wasm-traps/errors"
)

// Kind identifies which evidence a Trap carries.
type Kind uint8

const (
	// KindUser wraps an error raised by the embedder.
	KindUser Kind = iota
	// KindWasm is a fault in compiled guest code.
	KindWasm
	// KindLib is a failed check in a runtime library call.
	KindLib
	// KindOOM is an allocator failure.
	KindOOM
)

var kindNames = [...]string{
	KindUser: "user",
	KindWasm: "wasm",
	KindLib:  "lib",
	KindOOM:  "oom",
}

// Valid reports whether k is one of the four kinds.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

// String returns the kind's lowercase name, or kind(N) when k is not valid.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// ParseKind returns the kind named exactly s.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, errors.Unrecognized(errors.PhaseParse, "trap kind", s)
}

// Trap is the outcome of an aborted guest call. It is read-only after
// construction and safe to share between goroutines.
type Trap struct {
	err       error
	backtrace Backtrace
	pc        uintptr
	code      Code
	hasCode   bool
	kind      Kind
}

// User wraps an error raised by embedder code. The error is stored as is and
// never inspected.
func User(err error) *Trap {
	return &Trap{kind: KindUser, err: err}
}

// Wasm describes a fault in compiled guest code at pc. code is nil when the
// fault mechanism carries no specific reason, as with a bare segmentation fault
// on a guard page. An empty backtrace is replaced by one captured here.
func Wasm(pc uintptr, bt Backtrace, code *Code) *Trap {
	if bt.IsEmpty() {
		bt = CaptureBacktrace(1)
	}
	t := &Trap{kind: KindWasm, pc: pc, backtrace: bt}
	if code != nil {
		t.code = *code
		t.hasCode = true
	}
	return t
}

// WasmCode is Wasm with an attributed code.
func WasmCode(pc uintptr, bt Backtrace, code Code) *Trap {
	if bt.IsEmpty() {
		bt = CaptureBacktrace(1)
	}
	return &Trap{kind: KindWasm, pc: pc, backtrace: bt, code: code, hasCode: true}
}

// Lib describes a fault raised by a checked runtime library call. The
// caller's stack is captured unresolved.
func Lib(code Code) *Trap {
	return &Trap{
		kind:      KindLib,
		code:      code,
		hasCode:   true,
		backtrace: CaptureBacktrace(1),
	}
}

// OOM describes an allocator failure. The caller's stack is captured
// unresolved.
func OOM() *Trap {
	return &Trap{
		kind:      KindOOM,
		backtrace: CaptureBacktrace(1),
	}
}

func (t *Trap) Kind() Kind {
	return t.kind
}

// PC returns the faulting program counter of a KindWasm trap.
func (t *Trap) PC() (uintptr, bool) {
	return t.pc, t.kind == KindWasm
}

// Code returns the attributed trap code. KindLib always has one, KindWasm
// may have one.
func (t *Trap) Code() (Code, bool) {
	return t.code, t.hasCode
}

// Backtrace returns the captured stack. It is present for every kind except
// KindUser.
func (t *Trap) Backtrace() (Backtrace, bool) {
	return t.backtrace, t.kind != KindUser
}

// UserError returns the wrapped error of a KindUser trap.
func (t *Trap) UserError() error {
	if t.kind != KindUser {
		return nil
	}
	return t.err
}

// Deterministic reports whether the same guest input on a deterministic host
// produces the same trap. OOM depends on host memory state and user traps on
// the embedder.
func (t *Trap) Deterministic() bool {
	return t.kind == KindWasm || t.kind == KindLib
}

func (t *Trap) Error() string {
	switch t.kind {
	case KindUser:
		if t.err == nil {
			return "user trap"
		}
		return "user trap: " + t.err.Error()

	case KindWasm:
		if t.hasCode {
			return fmt.Sprintf("wasm trap at %#x: %s", t.pc, t.code.Message())
		}
		return fmt.Sprintf("wasm trap at %#x", t.pc)

	case KindLib:
		return "lib trap: " + t.code.Message()

	case KindOOM:
		return "oom trap: out of memory"

	default:
		return t.kind.String() + " trap"
	}
}

// Unwrap exposes the error of a KindUser trap to errors.Is and errors.As.
func (t *Trap) Unwrap() error {
	return t.UserError()
}

// From finds a Trap in err's chain.
func From(err error) (*Trap, bool) {
	var t *Trap
	if stderrors.As(err, &t) {
		return t, true
	}
	return nil, false
}

// RemoteError stands in for a user error whose original value is not
// available, e.g. after decoding an archived trap.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Evidence is the raw content of a Trap. Codecs use it to archive and rebuild
// traps without access to the unexported fields.
type Evidence struct {
	Err     error
	Message string
	Frames  []uintptr
	PC      uintptr
	Code    Code
	HasCode bool
	Kind    Kind
}

// Evidence returns a copy of the trap's raw fields. Message is the user
// error's text for KindUser.
func (t *Trap) Evidence() Evidence {
	ev := Evidence{
		Err:     t.UserError(),
		Frames:  t.backtrace.Frames(),
		PC:      t.pc,
		Code:    t.code,
		HasCode: t.hasCode,
		Kind:    t.kind,
	}
	if ev.Err != nil {
		ev.Message = ev.Err.Error()
	}
	return ev
}

// FromEvidence rebuilds a trap without capturing a new backtrace. The
// evidence must satisfy the same invariants the constructors establish.
func FromEvidence(ev Evidence) (*Trap, error) {
	if !ev.Kind.Valid() {
		return nil, errors.InvalidDiscriminant(errors.PhaseDecode, []string{"kind"}, uint64(ev.Kind), uint64(KindOOM))
	}
	if ev.HasCode && !ev.Code.Valid() {
		return nil, errors.InvalidDiscriminant(errors.PhaseDecode, []string{"code"}, uint64(ev.Code), NumCodes-1)
	}

	switch ev.Kind {
	case KindUser:
		if ev.HasCode || len(ev.Frames) > 0 || ev.PC != 0 {
			return nil, errors.InvalidData(errors.PhaseDecode, nil, "user trap carries machine evidence")
		}
		err := ev.Err
		if err == nil && ev.Message != "" {
			err = &RemoteError{Message: ev.Message}
		}
		return User(err), nil

	case KindLib:
		if !ev.HasCode {
			return nil, errors.InvalidData(errors.PhaseDecode, []string{"code"}, "lib trap without code")
		}

	case KindOOM:
		if ev.HasCode {
			return nil, errors.InvalidData(errors.PhaseDecode, []string{"code"}, "oom trap with code")
		}
	}

	if ev.Kind != KindWasm && ev.PC != 0 {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{"pc"}, "pc outside wasm trap")
	}
	if len(ev.Frames) == 0 {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{"frames"}, ev.Kind.String()+" trap without backtrace")
	}

	return &Trap{
		kind:      ev.Kind,
		pc:        ev.PC,
		code:      ev.Code,
		hasCode:   ev.HasCode,
		backtrace: Backtrace{pcs: slices.Clone(ev.Frames)},
	}, nil
}
