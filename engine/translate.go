package engine

import (
	stderrors "errors"
	"strings"

	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-traps/trap"
)

const (
	faultPrefix    = "wasm error: "
	faultTraceSep  = "\nwasm stack trace:"
	faultRecovered = " (recovered by wazero)"
)

// faultCodes maps the reasons wazero reports for guest faults.
var faultCodes = map[string]trap.Code{
	"stack overflow":                trap.StackOverflow,
	"out of bounds memory access":   trap.HeapAccessOutOfBounds,
	"invalid table access":          trap.TableAccessOutOfBounds,
	"indirect call type mismatch":   trap.BadSignature,
	"integer overflow":              trap.IntegerOverflow,
	"integer divide by zero":        trap.IntegerDivisionByZero,
	"invalid conversion to integer": trap.BadConversionToInteger,
	"unreachable":                   trap.UnreachableCodeReached,
	"unaligned atomic":              trap.UnalignedAtomic,
}

// Translate maps an error returned by wazero into the trap taxonomy.
//
// A *trap.Trap already in the chain is returned as is, and so is a
// *sys.ExitError. A guest fault becomes a Wasm trap; reasons without a code
// produce a Wasm trap with none. Anything else is returned unchanged.
//
// The compiler reports some faults, such as stack overflow, as a bare reason
// without the "wasm error: " prefix. Those are recognized when the whole
// message is a known reason.
//
// wazero does not expose the address of the faulting guest instruction. The
// trap's pc is the first frame of a capture taken here, the native address at
// which the engine observed the fault, and the backtrace starts there.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if t, ok := trap.From(err); ok {
		return t
	}
	var exitErr *sys.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr
	}

	reason, ok := faultReason(err.Error())
	if !ok {
		return err
	}

	bt := trap.CaptureBacktrace(1)
	var t *trap.Trap
	if code, ok := faultCodes[reason]; ok {
		t = trap.WasmCode(bt.PC(), bt, code)
	} else {
		t = trap.Wasm(bt.PC(), bt, nil)
	}

	Logger().Debug("translated guest fault",
		zap.String("reason", reason),
		zap.Stringer("kind", t.Kind()),
		zap.Uintptr("pc", bt.PC()),
		zap.Int("frames", bt.Len()))
	return t
}

// faultReason extracts the reason from "wasm error: <reason>\nwasm stack trace: ...".
// A message without the prefix is a reason only if it names a known fault.
func faultReason(msg string) (string, bool) {
	rest, prefixed := strings.CutPrefix(msg, faultPrefix)
	reason, _, _ := strings.Cut(rest, faultTraceSep)
	reason = strings.TrimSpace(strings.TrimSuffix(reason, faultRecovered))
	if !prefixed {
		if _, known := faultCodes[reason]; !known {
			return "", false
		}
	}
	return reason, true
}
