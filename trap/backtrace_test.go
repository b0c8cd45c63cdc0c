package trap

import (
	"strings"
	"testing"
)

//go:noinline
func captureHere() Backtrace {
	return CaptureBacktrace(0)
}

//go:noinline
func captureNested(depth int) Backtrace {
	if depth == 0 {
		return CaptureBacktrace(0)
	}
	return captureNested(depth - 1)
}

func TestCaptureBacktrace(t *testing.T) {
	bt := captureHere()
	if bt.IsEmpty() {
		t.Fatal("backtrace is empty")
	}

	frames := bt.Resolve()
	if len(frames) == 0 {
		t.Fatal("no resolved frames")
	}
	if !strings.HasSuffix(frames[0].Function, "trap.captureHere") {
		t.Errorf("first frame = %q, want captureHere", frames[0].Function)
	}
	if !containsFunction(frames, "TestCaptureBacktrace") {
		t.Error("test function missing from backtrace")
	}
}

func TestCaptureBacktrace_Deep(t *testing.T) {
	// Deeper than the initial buffer, so the walk has to grow it.
	bt := captureNested(3 * initialFrames)
	if bt.Len() < 3*initialFrames {
		t.Fatalf("Len() = %d, want at least %d", bt.Len(), 3*initialFrames)
	}
	if !containsFunction(bt.Resolve(), "TestCaptureBacktrace_Deep") {
		t.Error("outer frames were truncated")
	}
}

func TestBacktrace_FramesCopy(t *testing.T) {
	bt := captureHere()
	frames := bt.Frames()
	first := frames[0]
	frames[0] = 0

	if bt.PC() != first {
		t.Error("mutating Frames() result changed the backtrace")
	}
}

func TestBacktraceFrom(t *testing.T) {
	pcs := []uintptr{0x1000, 0x2000, 0x3000}
	bt := BacktraceFrom(pcs)
	pcs[0] = 0

	got := bt.Frames()
	if len(got) != 3 || got[0] != 0x1000 || got[2] != 0x3000 {
		t.Errorf("Frames() = %#x", got)
	}
	if !bt.Equal(BacktraceFrom([]uintptr{0x1000, 0x2000, 0x3000})) {
		t.Error("Equal failed for identical frames")
	}
	if bt.Equal(BacktraceFrom([]uintptr{0x1000})) {
		t.Error("Equal succeeded for different frames")
	}

	if !BacktraceFrom(nil).IsEmpty() {
		t.Error("BacktraceFrom(nil) should be empty")
	}
	if BacktraceFrom(nil).PC() != 0 {
		t.Error("empty PC() should be 0")
	}
}

func TestBacktrace_ResolveForeign(t *testing.T) {
	frames := BacktraceFrom([]uintptr{0x10}).Resolve()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Function != "" || frames[0].PC != 0x10 {
		t.Errorf("foreign address resolved to %+v", frames[0])
	}
	if (Backtrace{}).Resolve() != nil {
		t.Error("empty backtrace should resolve to nil")
	}
}

func containsFunction(frames []Frame, name string) bool {
	for _, f := range frames {
		if strings.Contains(f.Function, name) {
			return true
		}
	}
	return false
}
