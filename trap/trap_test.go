package trap

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/wippyai/wasm-traps/errors"
)

//go:noinline
func libHere(code Code) *Trap {
	return Lib(code)
}

//go:noinline
func oomHere() *Trap {
	return OOM()
}

func TestWasm_EchoesFields(t *testing.T) {
	code := HeapAccessOutOfBounds
	bt := captureHere()
	tr := Wasm(0x1000, bt, &code)

	if tr.Kind() != KindWasm {
		t.Fatalf("Kind() = %v, want wasm", tr.Kind())
	}
	pc, ok := tr.PC()
	if !ok || pc != 0x1000 {
		t.Errorf("PC() = %#x, %v; want 0x1000, true", pc, ok)
	}
	got, ok := tr.Code()
	if !ok || got != HeapAccessOutOfBounds {
		t.Errorf("Code() = %v, %v; want heap_get_oob, true", got, ok)
	}
	if got.Message() != "out of bounds memory access" {
		t.Errorf("Message() = %q", got.Message())
	}
	if got.String() != "heap_get_oob" {
		t.Errorf("String() = %q", got.String())
	}
	gotBT, ok := tr.Backtrace()
	if !ok || !gotBT.Equal(bt) {
		t.Error("backtrace was not stored unmodified")
	}
	if !tr.Deterministic() {
		t.Error("wasm trap should be deterministic")
	}
}

func TestWasm_NoCode(t *testing.T) {
	tr := Wasm(0xdead, captureHere(), nil)
	if _, ok := tr.Code(); ok {
		t.Error("Code() reported a code for a signal without one")
	}
	if !strings.Contains(tr.Error(), "0xdead") {
		t.Errorf("Error() = %q, want pc", tr.Error())
	}
}

func TestWasm_EmptyBacktraceCaptured(t *testing.T) {
	tr := WasmCode(0x42, Backtrace{}, UnreachableCodeReached)
	bt, ok := tr.Backtrace()
	if !ok || bt.IsEmpty() {
		t.Fatal("wasm trap without backtrace")
	}
	if !containsFunction(bt.Resolve(), "TestWasm_EmptyBacktraceCaptured") {
		t.Error("captured backtrace does not include the constructing caller")
	}
}

func TestLib(t *testing.T) {
	tr := libHere(IntegerDivisionByZero)

	if tr.Kind() != KindLib {
		t.Fatalf("Kind() = %v, want lib", tr.Kind())
	}
	code, ok := tr.Code()
	if !ok || code != IntegerDivisionByZero {
		t.Errorf("Code() = %v, %v", code, ok)
	}
	if code.String() != "int_divz" {
		t.Errorf("tag = %q, want int_divz", code.String())
	}
	if _, ok := tr.PC(); ok {
		t.Error("lib trap should not report a pc")
	}

	bt, ok := tr.Backtrace()
	if !ok || bt.IsEmpty() {
		t.Fatal("lib trap without backtrace")
	}
	frames := bt.Resolve()
	if !containsFunction(frames, "trap.libHere") {
		t.Error("raising function missing from backtrace")
	}
	if strings.HasSuffix(frames[0].Function, "trap.Lib") {
		t.Error("constructor frame should be skipped")
	}
	if tr.Error() != "lib trap: integer divide by zero" {
		t.Errorf("Error() = %q", tr.Error())
	}
}

func TestOOM(t *testing.T) {
	tr := oomHere()

	if tr.Kind() != KindOOM {
		t.Fatalf("Kind() = %v, want oom", tr.Kind())
	}
	if _, ok := tr.Code(); ok {
		t.Error("oom trap should not have a code")
	}
	bt, ok := tr.Backtrace()
	if !ok || bt.IsEmpty() {
		t.Fatal("oom trap without backtrace")
	}
	if !containsFunction(bt.Resolve(), "trap.oomHere") {
		t.Error("raising function missing from backtrace")
	}
	if tr.Deterministic() {
		t.Error("oom trap should not be deterministic")
	}
}

type hostError struct {
	op string
}

func (e hostError) Error() string { return "host failed: " + e.op }

func TestUser(t *testing.T) {
	cause := hostError{op: "read"}
	tr := User(cause)

	if tr.Kind() != KindUser {
		t.Fatalf("Kind() = %v, want user", tr.Kind())
	}
	if tr.UserError() != cause {
		t.Error("UserError() did not return the wrapped error")
	}
	if _, ok := tr.Backtrace(); ok {
		t.Error("user trap should not report a backtrace")
	}
	if _, ok := tr.Code(); ok {
		t.Error("user trap should not have a code")
	}

	var he hostError
	if !stderrors.As(tr, &he) || he.op != "read" {
		t.Error("errors.As should reach the wrapped error")
	}
	if !strings.Contains(tr.Error(), "host failed: read") {
		t.Errorf("Error() = %q", tr.Error())
	}
	if User(nil).Error() != "user trap" {
		t.Errorf("nil user error: %q", User(nil).Error())
	}
}

func TestFrom(t *testing.T) {
	tr := Lib(IntegerOverflow)
	wrapped := fmt.Errorf("call main: %w", tr)

	got, ok := From(wrapped)
	if !ok || got != tr {
		t.Error("From did not find the trap")
	}
	if _, ok := From(stderrors.New("plain")); ok {
		t.Error("From found a trap in a plain error")
	}
	if _, ok := From(nil); ok {
		t.Error("From found a trap in nil")
	}
}

func TestKind_Parse(t *testing.T) {
	for _, k := range []Kind{KindUser, KindWasm, KindLib, KindOOM} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("OOM"); err == nil {
		t.Error("ParseKind should be case-sensitive")
	}
	if Kind(9).Valid() || Kind(9).String() != "kind(9)" {
		t.Error("out-of-range kind")
	}
}

func TestEqual(t *testing.T) {
	bt := BacktraceFrom([]uintptr{0x10, 0x20})
	other := BacktraceFrom([]uintptr{0x10, 0x30})
	div := IntegerDivisionByZero
	ovf := IntegerOverflow

	tests := []struct {
		name string
		a, b *Trap
		want bool
	}{
		{"same wasm", Wasm(1, bt, &div), Wasm(1, bt, &div), true},
		{"wasm pc", Wasm(1, bt, &div), Wasm(2, bt, &div), false},
		{"wasm code", Wasm(1, bt, &div), Wasm(1, bt, &ovf), false},
		{"wasm code presence", Wasm(1, bt, &div), Wasm(1, bt, nil), false},
		{"wasm frames", Wasm(1, bt, nil), Wasm(1, other, nil), false},
		{"user message", User(stderrors.New("x")), User(&RemoteError{Message: "x"}), true},
		{"user differs", User(stderrors.New("x")), User(stderrors.New("y")), false},
		{"user nil", User(nil), User(nil), true},
		{"user nil vs empty", User(nil), User(stderrors.New("")), false},
		{"kind", User(nil), Wasm(0, bt, nil), false},
		{"nil", nil, nil, true},
		{"nil vs trap", nil, User(nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
			if tt.want && tt.a != nil && tt.a.Hash() != tt.b.Hash() {
				t.Error("equal traps hash differently")
			}
		})
	}

	// Lib traps built at different call sites differ by backtrace.
	first := Lib(div)
	second := libHere(div)
	firstBT, _ := first.Backtrace()
	secondBT, _ := second.Backtrace()
	if firstBT.PC() == secondBT.PC() {
		t.Fatalf("both captures start at %#x", firstBT.PC())
	}
	if Equal(first, second) {
		t.Error("lib traps from different sites compared equal")
	}
}

func TestCompare(t *testing.T) {
	bt := BacktraceFrom([]uintptr{0x10, 0x20})
	later := BacktraceFrom([]uintptr{0x10, 0x30})
	div := IntegerDivisionByZero
	ovf := IntegerOverflow

	tests := []struct {
		name string
		a, b *Trap
		want int
	}{
		{"same wasm", Wasm(1, bt, &div), Wasm(1, bt, &div), 0},
		{"user before wasm", User(nil), Wasm(0, bt, nil), -1},
		{"wasm before lib", Wasm(9, bt, &ovf), Lib(div), -1},
		{"lib before oom", Lib(div), OOM(), -1},
		{"uncoded before coded", Wasm(5, bt, nil), Wasm(1, bt, &div), -1},
		{"code order", Wasm(1, bt, &div), Wasm(1, bt, &ovf), 1},
		{"pc order", Wasm(1, bt, &div), Wasm(2, bt, &div), -1},
		{"frames", Wasm(1, bt, nil), Wasm(1, later, nil), -1},
		{"user message", User(stderrors.New("a")), User(stderrors.New("b")), -1},
		{"user same message", User(stderrors.New("x")), User(&RemoteError{Message: "x"}), 0},
		{"nil first", nil, User(nil), -1},
		{"nil last", OOM(), nil, 1},
		{"both nil", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare = %d, want %d", got, tt.want)
			}
			if got := Compare(tt.b, tt.a); got != -tt.want {
				t.Errorf("reversed Compare = %d, want %d", got, -tt.want)
			}
			if (tt.want == 0) != Equal(tt.a, tt.b) {
				t.Errorf("Compare and Equal disagree")
			}
		})
	}
}

func TestSize_Constant(t *testing.T) {
	small := User(nil)
	large := Wasm(1, captureNested(100), nil)
	if small.Size() != large.Size() || small.Size() == 0 {
		t.Errorf("Size() = %d and %d, want equal non-zero", small.Size(), large.Size())
	}
}

func TestEvidence_RoundTrip(t *testing.T) {
	for _, tr := range []*Trap{
		User(stderrors.New("boom")),
		User(nil),
		WasmCode(0x1000, captureHere(), HeapAccessOutOfBounds),
		Wasm(0x2000, captureHere(), nil),
		Lib(IntegerDivisionByZero),
		OOM(),
	} {
		t.Run(tr.Kind().String(), func(t *testing.T) {
			got, err := FromEvidence(tr.Evidence())
			if err != nil {
				t.Fatalf("FromEvidence failed: %v", err)
			}
			if !Equal(got, tr) {
				t.Errorf("rebuilt %v, want %v", got, tr)
			}
		})
	}
}

func TestFromEvidence_Invalid(t *testing.T) {
	frames := []uintptr{0x10}
	tests := []struct {
		name string
		ev   Evidence
		kind errors.Kind
	}{
		{"bad kind", Evidence{Kind: 7, Frames: frames}, errors.KindInvalidVariant},
		{"bad code", Evidence{Kind: KindLib, Code: 12, HasCode: true, Frames: frames}, errors.KindInvalidVariant},
		{"lib without code", Evidence{Kind: KindLib, Frames: frames}, errors.KindInvalidData},
		{"oom with code", Evidence{Kind: KindOOM, HasCode: true, Frames: frames}, errors.KindInvalidData},
		{"oom with pc", Evidence{Kind: KindOOM, PC: 4, Frames: frames}, errors.KindInvalidData},
		{"wasm without frames", Evidence{Kind: KindWasm, PC: 4}, errors.KindInvalidData},
		{"user with frames", Evidence{Kind: KindUser, Frames: frames}, errors.KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEvidence(tt.ev)
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("error = %v, want *errors.Error", err)
			}
			if e.Kind != tt.kind || e.Phase != errors.PhaseDecode {
				t.Errorf("error = %v, want [decode] %s", err, tt.kind)
			}
		})
	}
}

func TestConcurrentConstruction(t *testing.T) {
	const workers = 32

	var wg sync.WaitGroup
	traps := make([]*Trap, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			traps[i] = Lib(Code(i % NumCodes))
		}(i)
	}
	wg.Wait()

	for i, tr := range traps {
		code, _ := tr.Code()
		if code != Code(i%NumCodes) {
			t.Errorf("worker %d: code = %v", i, code)
		}
		if bt, _ := tr.Backtrace(); bt.IsEmpty() {
			t.Errorf("worker %d: empty backtrace", i)
		}
	}
}
